// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package web

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pdiddy/kbpanel/internal/history"
)

func (s *Server) listRuns(c *gin.Context) {
	p := &runsPage{page: newPage(c, "Run History", "runs"), Enabled: s.runs != nil}
	if s.runs == nil {
		c.HTML(http.StatusOK, "runs.html", p)
		return
	}
	p.Filter = c.Query("kb")

	runs, err := s.runs.Recent(c.Request.Context(), history.Filter{KnowledgeBase: p.Filter})
	if err != nil {
		p.fail(fmt.Sprintf("Error reading run history: %v", err), err)
		c.HTML(http.StatusInternalServerError, "runs.html", p)
		return
	}
	p.Runs = runs
	c.HTML(http.StatusOK, "runs.html", p)
}

func (s *Server) showRun(c *gin.Context) {
	id := c.Param("id")
	p := &runPage{page: newPage(c, "Run "+id, "runs")}
	if s.runs == nil {
		p.info("Run history is disabled.")
		c.HTML(http.StatusNotFound, "run.html", p)
		return
	}

	run, err := s.runs.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, history.ErrNotFound) {
			p.fail(fmt.Sprintf("Run '%s' not found.", id), err)
		} else {
			p.fail(fmt.Sprintf("Error reading run: %v", err), err)
		}
		c.HTML(statusFor(err), "run.html", p)
		return
	}
	p.Run = &run
	c.HTML(http.StatusOK, "run.html", p)
}

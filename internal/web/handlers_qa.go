// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package web

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pdiddy/kbpanel/internal/kb"
	"github.com/pdiddy/kbpanel/pkg/types"
)

func (s *Server) newQAPage(c *gin.Context) (*qaPage, bool) {
	p := &qaPage{
		page:    newPage(c, "Knowledge Base Q&A", "qa"),
		Methods: types.QueryMethods,
		Method:  string(types.MethodLocal),
	}
	names, err := s.kbs.List()
	if err != nil {
		p.fail(fmt.Sprintf("Error listing knowledge bases: %v", err), err)
		return p, false
	}
	if len(names) == 0 {
		p.fail("No knowledge bases available. Please create one first.", nil)
		return p, false
	}
	p.KnowledgeBases = names
	p.Selected = names[0]
	return p, true
}

func (s *Server) showQA(c *gin.Context) {
	p, _ := s.newQAPage(c)
	if name := c.Query("name"); slices.Contains(p.KnowledgeBases, name) {
		p.Selected = name
	}
	c.HTML(http.StatusOK, "qa.html", p)
}

func (s *Server) query(c *gin.Context) {
	p, ok := s.newQAPage(c)
	if !ok {
		c.HTML(http.StatusNotFound, "qa.html", p)
		return
	}
	name := c.PostForm("name")
	if slices.Contains(p.KnowledgeBases, name) {
		p.Selected = name
	}
	p.Method = strings.ToLower(c.DefaultPostForm("method", string(types.MethodLocal)))
	p.Question = c.PostForm("question")

	if strings.TrimSpace(p.Question) == "" {
		p.fail("Please enter your question!", nil)
		c.HTML(http.StatusBadRequest, "qa.html", p)
		return
	}

	answer, err := s.kbs.Query(c.Request.Context(), name, p.Method, p.Question)
	switch {
	case err == nil:
		p.Answer = s.markdown(answer.Answer)
		p.RunID = answer.RunID
	case errors.Is(err, kb.ErrNoResponse):
		p.fail("No valid response found. The knowledge base might not be initialized or there might be other errors.", err)
	case errors.Is(err, kb.ErrNotFound):
		p.fail(fmt.Sprintf("Knowledge base '%s' does not exist!", name), err)
	default:
		p.fail(fmt.Sprintf("Error running query: %v", err), err)
	}
	c.HTML(statusFor(err), "qa.html", p)
}

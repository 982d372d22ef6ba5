// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package web

import (
	"bytes"
	"errors"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pdiddy/kbpanel/internal/history"
	"github.com/pdiddy/kbpanel/internal/kb"
	"github.com/pdiddy/kbpanel/pkg/types"
)

// Message kinds.
const (
	kindSuccess = "success"
	kindError   = "error"
	kindInfo    = "info"
)

// Message is shown once, in the response to the request that produced it.
type Message struct {
	Kind   string
	Text   string
	Detail string
}

// page holds what every template needs.
type page struct {
	Title     string
	Section   string
	RequestID string
	Messages  []Message
}

func (p *page) success(text string) { p.Messages = append(p.Messages, Message{Kind: kindSuccess, Text: text}) }
func (p *page) info(text string)    { p.Messages = append(p.Messages, Message{Kind: kindInfo, Text: text}) }

// fail adds an error message, attaching the tool output when err carries it.
func (p *page) fail(text string, err error) {
	m := Message{Kind: kindError, Text: text}
	if out, ok := kb.Output(err); ok {
		m.Detail = out
	}
	p.Messages = append(p.Messages, m)
}

func newPage(c *gin.Context, title, section string) page {
	return page{Title: title, Section: section, RequestID: RequestID(c.Request.Context())}
}

type kbPage struct {
	page
	KnowledgeBases []string
	Selected       string
	Tab            string
	Env            string
	EnvKeys        []string
	Settings       string
	Documents      []types.Document
}

type qaPage struct {
	page
	KnowledgeBases []string
	Selected       string
	Methods        []types.QueryMethod
	Method         string
	Question       string
	Answer         template.HTML
	RunID          string
}

type runsPage struct {
	page
	Enabled bool
	Filter  string
	Runs    []types.Run
}

type runPage struct {
	page
	Run *types.Run
}

// statusFor maps an action error to the response status.
func statusFor(err error) int {
	var ae *kb.ActionError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, kb.ErrNotFound), errors.Is(err, history.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, kb.ErrExists), errors.Is(err, kb.ErrIndexBusy):
		return http.StatusConflict
	case errors.Is(err, kb.ErrInvalidName),
		errors.Is(err, kb.ErrInvalidEnv),
		errors.Is(err, kb.ErrInvalidSettings),
		errors.Is(err, kb.ErrEmptyQuestion),
		errors.Is(err, kb.ErrUnsupportedFile),
		errors.Is(err, types.ErrUnknownMethod):
		return http.StatusBadRequest
	case errors.As(err, &ae):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// markdown renders an answer to HTML. Raw HTML in the answer is dropped.
func (s *Server) markdown(src string) template.HTML {
	var buf bytes.Buffer
	if err := s.md.Convert([]byte(src), &buf); err != nil {
		return template.HTML("<pre>" + template.HTMLEscapeString(src) + "</pre>")
	}
	return template.HTML(buf.String())
}

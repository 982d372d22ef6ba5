// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package web serves the browser control panel: knowledge-base management,
// question answering, and the run history.
//
// Every page is rendered per request. Success and error messages belong to
// the response that produced them; the server keeps no UI state between
// requests.
package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yuin/goldmark"

	"github.com/pdiddy/kbpanel/internal/history"
	"github.com/pdiddy/kbpanel/internal/kb"
	"github.com/pdiddy/kbpanel/pkg/types"
)

//go:embed templates/*.html
var templateFS embed.FS

const shutdownTimeout = 10 * time.Second

// KnowledgeBases is the set of knowledge-base actions the panel exposes.
type KnowledgeBases interface {
	List() ([]string, error)
	Exists(name string) (bool, error)
	Create(ctx context.Context, name string) (kb.Outcome, error)
	Delete(name string) error
	ReadEnv(name string) (string, error)
	WriteEnv(name, text string) error
	EnvKeys(name string) ([]string, error)
	ReadSettings(name string) (string, error)
	WriteSettings(name, text string) error
	ListDocuments(name string) ([]types.Document, error)
	UploadDocuments(name string, uploads []kb.Upload) (kb.UploadResult, error)
	DeleteDocument(name, file string) error
	Index(ctx context.Context, name string, clearCache bool) (kb.Outcome, error)
	Query(ctx context.Context, name, method, question string) (types.QueryAnswer, error)
}

// RunHistory reads recorded tool invocations.
type RunHistory interface {
	Recent(ctx context.Context, f history.Filter) ([]types.Run, error)
	Get(ctx context.Context, id string) (types.Run, error)
}

// Config holds the server settings.
type Config struct {
	Addr           string
	MaxUploadBytes int64
	Mode           string
	Version        string
}

// Server is the web panel.
type Server struct {
	cfg    Config
	kbs    KnowledgeBases
	runs   RunHistory
	md     goldmark.Markdown
	engine *gin.Engine
	logger *slog.Logger
}

// New builds the panel. runs may be nil when history is disabled.
func New(cfg Config, kbs KnowledgeBases, runs RunHistory, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = types.DefaultPanelConfig().Server.MaxUploadBytes
	}
	switch cfg.Mode {
	case "":
	case gin.DebugMode, gin.ReleaseMode, gin.TestMode:
		gin.SetMode(cfg.Mode)
	default:
		return nil, fmt.Errorf("unknown server mode %q: use debug, release, or test", cfg.Mode)
	}

	tmpl, err := parseTemplates()
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:    cfg,
		kbs:    kbs,
		runs:   runs,
		md:     goldmark.New(),
		logger: logger,
	}

	r := gin.New()
	r.Use(gin.Recovery(), RequestIDMiddleware(logger))
	r.SetHTMLTemplate(tmpl)
	r.MaxMultipartMemory = cfg.MaxUploadBytes
	s.routes(r)
	s.engine = r
	return s, nil
}

func parseTemplates() (*template.Template, error) {
	funcs := template.FuncMap{
		"bytesize":   byteSize,
		"fmtTime":    func(t time.Time) string { return t.Local().Format("2006-01-02 15:04:05") },
		"join":       strings.Join,
		"pathEscape": url.PathEscape,
	}
	sub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		return nil, err
	}
	tmpl, err := template.New("").Funcs(funcs).ParseFS(sub, "*.html")
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}
	return tmpl, nil
}

func (s *Server) routes(r *gin.Engine) {
	r.GET("/", func(c *gin.Context) { c.Redirect(http.StatusFound, "/kb") })
	r.GET("/health", s.health)

	r.GET("/kb", s.showKB)
	r.POST("/kb", s.createKB)
	r.POST("/kb/delete", s.deleteKB)
	r.POST("/kb/:name/env", s.saveEnv)
	r.POST("/kb/:name/settings", s.saveSettings)
	r.POST("/kb/:name/files", s.uploadFiles)
	r.POST("/kb/:name/files/delete", s.deleteFile)
	r.POST("/kb/:name/index", s.indexKB)

	r.GET("/qa", s.showQA)
	r.POST("/qa", s.query)

	r.GET("/runs", s.listRuns)
	r.GET("/runs/:id", s.showRun)
}

// Handler returns the HTTP handler for the panel.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("panel listening", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down panel")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status         string    `json:"status"`
	Timestamp      time.Time `json:"timestamp"`
	Version        string    `json:"version"`
	KnowledgeBases int       `json:"knowledge_bases"`
	History        string    `json:"history"`
}

func (s *Server) health(c *gin.Context) {
	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Version:   s.cfg.Version,
		History:   "disabled",
	}
	if s.runs != nil {
		resp.History = "enabled"
	}
	names, err := s.kbs.List()
	if err != nil {
		resp.Status = "degraded"
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	resp.KnowledgeBases = len(names)
	c.JSON(http.StatusOK, resp)
}

func byteSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package web

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pdiddy/kbpanel/internal/kb"
)

const (
	tabEnv      = "env"
	tabSettings = "settings"
	tabFiles    = "files"
	tabIndex    = "index"

	toolFailureHint = "Please check if GraphRAG is installed and configured correctly."
)

var tabs = []string{tabEnv, tabSettings, tabFiles, tabIndex}

func (s *Server) newKBPage(c *gin.Context) *kbPage {
	return &kbPage{page: newPage(c, "Knowledge Base Management", "kb")}
}

// renderKB fills the list and the selected tab, then writes the page.
func (s *Server) renderKB(c *gin.Context, status int, p *kbPage) {
	names, err := s.kbs.List()
	if err != nil {
		p.fail(fmt.Sprintf("Error listing knowledge bases: %v", err), err)
		status = http.StatusInternalServerError
	}
	p.KnowledgeBases = names

	if p.Selected != "" && !slices.Contains(names, p.Selected) {
		p.Selected = ""
	}
	if p.Selected == "" && len(names) > 0 {
		p.Selected = names[0]
	}
	if !slices.Contains(tabs, p.Tab) {
		p.Tab = tabEnv
	}

	if p.Selected != "" {
		s.loadTab(p)
	}
	c.HTML(status, "kb.html", p)
}

func (s *Server) loadTab(p *kbPage) {
	name := p.Selected
	switch p.Tab {
	case tabEnv:
		text, err := s.kbs.ReadEnv(name)
		if err != nil {
			p.fail(fmt.Sprintf("Error reading .env file: %v", err), err)
		}
		p.Env = text
		// Keys are informational; an unparsable file is still editable.
		p.EnvKeys, _ = s.kbs.EnvKeys(name)
	case tabSettings:
		text, err := s.kbs.ReadSettings(name)
		if err != nil {
			p.fail(fmt.Sprintf("Error reading settings.yaml file: %v", err), err)
		}
		p.Settings = text
	case tabFiles:
		docs, err := s.kbs.ListDocuments(name)
		if err != nil {
			p.fail(fmt.Sprintf("Error listing files: %v", err), err)
		}
		p.Documents = docs
	}
}

func (s *Server) showKB(c *gin.Context) {
	p := s.newKBPage(c)
	p.Selected = c.Query("name")
	p.Tab = c.Query("tab")
	s.renderKB(c, http.StatusOK, p)
}

func (s *Server) createKB(c *gin.Context) {
	p := s.newKBPage(c)
	name := strings.TrimSpace(c.PostForm("name"))
	if name == "" {
		p.fail("Please enter a knowledge base name!", nil)
		s.renderKB(c, http.StatusBadRequest, p)
		return
	}

	_, err := s.kbs.Create(c.Request.Context(), name)
	switch {
	case err == nil:
		p.success("Knowledge base successfully created and initialized!")
		p.Selected = name
	case errors.Is(err, kb.ErrExists):
		p.fail("Knowledge base name already exists!", err)
	case errors.Is(err, kb.ErrInitFailed):
		p.fail("Initialization failed. "+toolFailureHint, err)
		p.Selected = name
	default:
		p.fail(fmt.Sprintf("Error creating knowledge base: %v", err), err)
	}
	s.renderKB(c, statusFor(err), p)
}

func (s *Server) deleteKB(c *gin.Context) {
	p := s.newKBPage(c)
	name := c.PostForm("name")
	if name == "" {
		p.fail("Please select a knowledge base to delete!", nil)
		s.renderKB(c, http.StatusBadRequest, p)
		return
	}

	err := s.kbs.Delete(name)
	switch {
	case err == nil:
		p.success(fmt.Sprintf("Knowledge base '%s' has been deleted!", name))
	case errors.Is(err, kb.ErrNotFound):
		p.fail(fmt.Sprintf("Knowledge base '%s' does not exist!", name), err)
	default:
		p.fail(fmt.Sprintf("Error deleting knowledge base '%s': %v", name, err), err)
	}
	s.renderKB(c, statusFor(err), p)
}

// selected starts a page for the knowledge base named in the path. It
// renders a not-found page and returns nil when the name is unknown.
func (s *Server) selected(c *gin.Context, tab string) *kbPage {
	p := s.newKBPage(c)
	p.Tab = tab
	name := c.Param("name")
	ok, err := s.kbs.Exists(name)
	if err != nil || !ok {
		if err == nil {
			err = kb.ErrNotFound
		}
		p.fail(fmt.Sprintf("Knowledge base '%s' does not exist!", name), err)
		s.renderKB(c, statusFor(err), p)
		return nil
	}
	p.Selected = name
	return p
}

// editorText returns the submitted textarea content. Browsers send CRLF
// line endings, which are stored as LF.
func editorText(c *gin.Context) string {
	return strings.ReplaceAll(c.PostForm("content"), "\r\n", "\n")
}

func (s *Server) saveEnv(c *gin.Context) {
	p := s.selected(c, tabEnv)
	if p == nil {
		return
	}
	err := s.kbs.WriteEnv(p.Selected, editorText(c))
	if err != nil {
		p.fail(fmt.Sprintf("Error saving .env file: %v", err), err)
	} else {
		p.success(".env file saved!")
	}
	s.renderKB(c, statusFor(err), p)
}

func (s *Server) saveSettings(c *gin.Context) {
	p := s.selected(c, tabSettings)
	if p == nil {
		return
	}
	err := s.kbs.WriteSettings(p.Selected, editorText(c))
	if err != nil {
		p.fail(fmt.Sprintf("Error saving settings.yaml file: %v", err), err)
	} else {
		p.success("settings.yaml file saved!")
	}
	s.renderKB(c, statusFor(err), p)
}

func (s *Server) uploadFiles(c *gin.Context) {
	p := s.selected(c, tabFiles)
	if p == nil {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxUploadBytes)
	form, err := c.MultipartForm()
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			p.fail(fmt.Sprintf("Upload exceeds the %s limit.", byteSize(s.cfg.MaxUploadBytes)), nil)
			s.renderKB(c, http.StatusRequestEntityTooLarge, p)
			return
		}
		p.fail(fmt.Sprintf("Error reading upload: %v", err), nil)
		s.renderKB(c, http.StatusBadRequest, p)
		return
	}

	headers := form.File["files"]
	if len(headers) == 0 {
		p.fail("Please choose at least one TXT file to upload.", nil)
		s.renderKB(c, http.StatusBadRequest, p)
		return
	}

	uploads := make([]kb.Upload, 0, len(headers))
	for _, fh := range headers {
		data, err := readUpload(fh)
		if err != nil {
			p.fail(fmt.Sprintf("Error uploading file '%s': %v", fh.Filename, err), nil)
			continue
		}
		uploads = append(uploads, kb.Upload{Name: fh.Filename, Data: data})
	}

	res, err := s.kbs.UploadDocuments(p.Selected, uploads)
	if err != nil {
		p.fail(fmt.Sprintf("Error uploading files: %v", err), err)
		s.renderKB(c, statusFor(err), p)
		return
	}
	for _, fe := range res.Failed {
		p.fail(fmt.Sprintf("Error uploading file '%s': %v", fe.Name, fe.Err), nil)
	}
	status := http.StatusOK
	if len(res.Saved) > 0 {
		p.success(fmt.Sprintf("Uploaded %d files.", len(res.Saved)))
	} else {
		status = http.StatusBadRequest
	}
	s.renderKB(c, status, p)
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func (s *Server) deleteFile(c *gin.Context) {
	p := s.selected(c, tabFiles)
	if p == nil {
		return
	}
	file := c.PostForm("file")
	err := s.kbs.DeleteDocument(p.Selected, file)
	if err != nil {
		p.fail(fmt.Sprintf("Error deleting file '%s': %v", file, err), err)
	} else {
		p.success(fmt.Sprintf("File '%s' deleted!", file))
	}
	s.renderKB(c, statusFor(err), p)
}

func (s *Server) indexKB(c *gin.Context) {
	p := s.selected(c, tabIndex)
	if p == nil {
		return
	}
	clearCache := c.PostForm("clear_cache") != ""

	out, err := s.kbs.Index(c.Request.Context(), p.Selected, clearCache)
	if out.Cleared != nil && (err == nil || errors.Is(err, kb.ErrIndexFailed)) {
		p.success("Cache cleared!")
	}
	if out.Shared {
		p.info("This indexing run was shared with a concurrent request.")
	}
	switch {
	case err == nil:
		p.success("Knowledge base indexed successfully!")
	case errors.Is(err, kb.ErrIndexFailed):
		p.fail("Indexing failed. "+toolFailureHint, err)
	case errors.Is(err, kb.ErrIndexBusy):
		p.fail("This knowledge base is already being indexed. Try clearing the cache once the current run finishes.", err)
	default:
		p.fail(fmt.Sprintf("Error indexing knowledge base: %v", err), err)
	}
	s.renderKB(c, statusFor(err), p)
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/kbpanel/internal/history"
	"github.com/pdiddy/kbpanel/internal/kb"
	"github.com/pdiddy/kbpanel/internal/runner"
	"github.com/pdiddy/kbpanel/internal/storage"
	"github.com/pdiddy/kbpanel/pkg/types"
)

const testRoot = "/data/knowledge_bases"

// scriptedRunner answers each tool verb with a fixed output.
type scriptedRunner struct {
	mu      sync.Mutex
	outputs map[string]string
	calls   [][]string
}

func (r *scriptedRunner) Run(_ context.Context, args ...string) runner.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, args)
	now := time.Now()
	return runner.Result{Args: args, Output: r.outputs[args[0]], Raw: r.outputs[args[0]], StartedAt: now, FinishedAt: now}
}

// memHistory is an in-memory RunHistory and kb.Recorder.
type memHistory struct {
	mu   sync.Mutex
	runs []types.Run
}

func (h *memHistory) Record(_ context.Context, run types.Run) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	run.ID = fmt.Sprintf("01TESTRUN%02d", len(h.runs)+1)
	h.runs = append(h.runs, run)
	return run.ID, nil
}

func (h *memHistory) Recent(_ context.Context, f history.Filter) ([]types.Run, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []types.Run
	for i := len(h.runs) - 1; i >= 0; i-- {
		if f.KnowledgeBase == "" || h.runs[i].KnowledgeBase == f.KnowledgeBase {
			out = append(out, h.runs[i])
		}
	}
	return out, nil
}

func (h *memHistory) Get(_ context.Context, id string) (types.Run, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, r := range h.runs {
		if r.ID == id {
			return r, nil
		}
	}
	return types.Run{}, fmt.Errorf("%w: %s", history.ErrNotFound, id)
}

type testPanel struct {
	fs      *storage.FS
	run     *scriptedRunner
	history *memHistory
	handler http.Handler
}

func newTestPanel(t *testing.T, maxUpload int64) *testPanel {
	t.Helper()
	gin.SetMode(gin.TestMode)

	p := &testPanel{
		fs:      storage.NewMemory(),
		run:     &scriptedRunner{outputs: map[string]string{}},
		history: &memHistory{},
	}
	mgr := kb.NewManager(p.fs, testRoot, p.run, p.history, nil)
	srv, err := New(Config{MaxUploadBytes: maxUpload, Version: "test"}, mgr, p.history, nil)
	require.NoError(t, err)
	p.handler = srv.Handler()
	return p
}

func (p *testPanel) seed(t *testing.T, name string, files map[string]string) {
	t.Helper()
	require.NoError(t, p.fs.MkdirAll(name+"/input"))
	for f, content := range files {
		require.NoError(t, p.fs.WriteFile(name+"/"+f, []byte(content)))
	}
}

func (p *testPanel) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	p.handler.ServeHTTP(rr, req)
	return rr
}

func (p *testPanel) get(target string) *httptest.ResponseRecorder {
	return p.do(httptest.NewRequest(http.MethodGet, target, nil))
}

func (p *testPanel) postForm(target string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return p.do(req)
}

func multipartBody(t *testing.T, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for name, content := range files {
		part, err := w.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestRootRedirects(t *testing.T) {
	p := newTestPanel(t, 0)
	rr := p.get("/")
	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/kb", rr.Header().Get("Location"))
}

func TestHealth(t *testing.T) {
	p := newTestPanel(t, 0)
	p.seed(t, "alpha", nil)

	rr := p.get("/health")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "test", resp.Version)
	assert.Equal(t, 1, resp.KnowledgeBases)
	assert.Equal(t, "enabled", resp.History)
}

func TestRequestID(t *testing.T) {
	p := newTestPanel(t, 0)

	rr := p.get("/health")
	assert.Len(t, rr.Header().Get(RequestIDHeader), 36, "generated UUID")

	req := httptest.NewRequest(http.MethodGet, "/kb", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rr = p.do(req)
	assert.Equal(t, "abc-123", rr.Header().Get(RequestIDHeader))
	assert.Contains(t, rr.Body.String(), "request abc-123")
}

func TestShowKB(t *testing.T) {
	p := newTestPanel(t, 0)

	rr := p.get("/kb")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "No knowledge bases currently available.")

	p.seed(t, "alpha", map[string]string{".env": "GRAPHRAG_API_KEY=secret\n", "settings.yaml": "models: {}\n", "input/a.txt": "abc"})
	p.seed(t, "beta", nil)

	tests := []struct {
		name   string
		target string
		want   []string
	}{
		{name: "defaults to first kb and env tab", target: "/kb", want: []string{"Currently managing: <strong>alpha</strong>", "GRAPHRAG_API_KEY=secret", "<code>GRAPHRAG_API_KEY</code>"}},
		{name: "settings tab", target: "/kb?name=alpha&tab=settings", want: []string{"models: {}"}},
		{name: "files tab", target: "/kb?name=alpha&tab=files", want: []string{"a.txt", "3 B"}},
		{name: "files tab empty", target: "/kb?name=beta&tab=files", want: []string{"No uploaded TXT files."}},
		{name: "index tab", target: "/kb?name=beta&tab=index", want: []string{"Clear Cache"}},
		{name: "unknown kb falls back", target: "/kb?name=ghost", want: []string{"Currently managing: <strong>alpha</strong>"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := p.get(tt.target)
			require.Equal(t, http.StatusOK, rr.Code)
			for _, w := range tt.want {
				assert.Contains(t, rr.Body.String(), w)
			}
		})
	}
}

func TestCreateKB(t *testing.T) {
	tests := []struct {
		name       string
		form       url.Values
		existing   bool
		initOutput string
		wantStatus int
		wantText   string
		wantCalls  int
	}{
		{
			name:       "created",
			form:       url.Values{"name": {"alpha"}},
			initOutput: "Initializing project at " + testRoot + "/alpha\n",
			wantStatus: http.StatusOK,
			wantText:   "Knowledge base successfully created and initialized!",
			wantCalls:  1,
		},
		{
			name:       "empty name",
			form:       url.Values{"name": {"  "}},
			wantStatus: http.StatusBadRequest,
			wantText:   "Please enter a knowledge base name!",
		},
		{
			name:       "existing name",
			form:       url.Values{"name": {"alpha"}},
			existing:   true,
			wantStatus: http.StatusConflict,
			wantText:   "Knowledge base name already exists!",
		},
		{
			name:       "init failed",
			form:       url.Values{"name": {"alpha"}},
			initOutput: "Error: graphrag not installed",
			wantStatus: http.StatusBadGateway,
			wantText:   "Initialization failed.",
			wantCalls:  1,
		},
		{
			name:       "invalid name",
			form:       url.Values{"name": {"a/b"}},
			wantStatus: http.StatusBadRequest,
			wantText:   "Error creating knowledge base",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPanel(t, 0)
			if tt.existing {
				p.seed(t, "alpha", nil)
			}
			p.run.outputs["init"] = tt.initOutput

			rr := p.postForm("/kb", tt.form)
			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Contains(t, rr.Body.String(), tt.wantText)
			assert.Len(t, p.run.calls, tt.wantCalls)
		})
	}
}

func TestInitFailureShowsOutput(t *testing.T) {
	p := newTestPanel(t, 0)
	p.run.outputs["init"] = "Error: <missing module>"

	rr := p.postForm("/kb", url.Values{"name": {"alpha"}})
	assert.Contains(t, rr.Body.String(), "<pre>Error: &lt;missing module&gt;</pre>")
}

func TestDeleteKB(t *testing.T) {
	p := newTestPanel(t, 0)
	p.seed(t, "alpha", nil)

	rr := p.postForm("/kb/delete", url.Values{"name": {"alpha"}})
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Knowledge base &#39;alpha&#39; has been deleted!")

	rr = p.postForm("/kb/delete", url.Values{"name": {"alpha"}})
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "does not exist!")

	rr = p.postForm("/kb/delete", url.Values{})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "Please select a knowledge base to delete!")
}

func TestSaveEnvAndSettings(t *testing.T) {
	p := newTestPanel(t, 0)
	p.seed(t, "alpha", nil)

	rr := p.postForm("/kb/alpha/env", url.Values{"content": {"GRAPHRAG_API_KEY=k\n"}})
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), ".env file saved!")
	data, err := p.fs.ReadFile("alpha/.env")
	require.NoError(t, err)
	assert.Equal(t, "GRAPHRAG_API_KEY=k\n", string(data))

	rr = p.postForm("/kb/alpha/settings", url.Values{"content": {"models: [oops\n"}})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "Error saving settings.yaml file")

	rr = p.postForm("/kb/alpha/settings", url.Values{"content": {"models: {}\n"}})
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "settings.yaml file saved!")

	rr = p.postForm("/kb/ghost/env", url.Values{"content": {"A=1"}})
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestEditorLineEndings(t *testing.T) {
	p := newTestPanel(t, 0)
	p.seed(t, "alpha", nil)

	rr := p.postForm("/kb/alpha/env", url.Values{"content": {"A=1\r\nB=2\r\n"}})
	assert.Equal(t, http.StatusOK, rr.Code)
	data, err := p.fs.ReadFile("alpha/.env")
	require.NoError(t, err)
	assert.Equal(t, "A=1\nB=2\n", string(data))

	rr = p.postForm("/kb/alpha/settings", url.Values{"content": {"models:\r\n  a: 1\r\n"}})
	assert.Equal(t, http.StatusOK, rr.Code)
	data, err = p.fs.ReadFile("alpha/settings.yaml")
	require.NoError(t, err)
	assert.Equal(t, "models:\n  a: 1\n", string(data))
}

func TestNamesNeedingEscapeStayReachable(t *testing.T) {
	for _, name := range []string{"q?a", "a#b", "50% off"} {
		t.Run(name, func(t *testing.T) {
			p := newTestPanel(t, 0)
			p.seed(t, name, nil)

			rr := p.get("/kb?name=" + url.QueryEscape(name) + "&tab=env")
			require.Equal(t, http.StatusOK, rr.Code)
			action := "/kb/" + url.PathEscape(name) + "/env"
			assert.Contains(t, rr.Body.String(), `action="`+action+`"`)

			rr = p.postForm(action, url.Values{"content": {"A=1\n"}})
			assert.Equal(t, http.StatusOK, rr.Code)
			data, err := p.fs.ReadFile(name + "/.env")
			require.NoError(t, err)
			assert.Equal(t, "A=1\n", string(data))
		})
	}
}

func TestUploadAndDeleteFiles(t *testing.T) {
	p := newTestPanel(t, 0)
	p.seed(t, "alpha", nil)

	body, ctype := multipartBody(t, map[string]string{"a.txt": "alpha text", "b.txt": "beta text", "c.pdf": "%PDF"})
	req := httptest.NewRequest(http.MethodPost, "/kb/alpha/files", body)
	req.Header.Set("Content-Type", ctype)
	rr := p.do(req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Uploaded 2 files.")
	assert.Contains(t, rr.Body.String(), "Error uploading file &#39;c.pdf&#39;")

	names, err := p.fs.Glob("alpha/input", "*")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.txt"}, names)
	data, err := p.fs.ReadFile("alpha/input/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "alpha text", string(data))

	rr = p.postForm("/kb/alpha/files/delete", url.Values{"file": {"a.txt"}})
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "File &#39;a.txt&#39; deleted!")

	rr = p.postForm("/kb/alpha/files/delete", url.Values{"file": {"a.txt"}})
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestUploadWithoutFiles(t *testing.T) {
	p := newTestPanel(t, 0)
	p.seed(t, "alpha", nil)

	body, ctype := multipartBody(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/kb/alpha/files", body)
	req.Header.Set("Content-Type", ctype)
	rr := p.do(req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "Please choose at least one TXT file")
}

func TestUploadTooLarge(t *testing.T) {
	p := newTestPanel(t, 64)
	p.seed(t, "alpha", nil)

	body, ctype := multipartBody(t, map[string]string{"big.txt": strings.Repeat("x", 4096)})
	req := httptest.NewRequest(http.MethodPost, "/kb/alpha/files", body)
	req.Header.Set("Content-Type", ctype)
	rr := p.do(req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	ok, err := p.fs.Exists("alpha/input/big.txt")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIndexKB(t *testing.T) {
	tests := []struct {
		name       string
		form       url.Values
		output     string
		wantStatus int
		want       []string
	}{
		{
			name:       "indexed",
			output:     "All workflows completed successfully.",
			wantStatus: http.StatusOK,
			want:       []string{"Knowledge base indexed successfully!"},
		},
		{
			name:       "indexed after clearing cache",
			form:       url.Values{"clear_cache": {"1"}},
			output:     "All workflows completed successfully.",
			wantStatus: http.StatusOK,
			want:       []string{"Cache cleared!", "Knowledge base indexed successfully!"},
		},
		{
			name:       "failed",
			output:     "Error: pipeline crashed",
			wantStatus: http.StatusBadGateway,
			want:       []string{"Indexing failed.", "pipeline crashed"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPanel(t, 0)
			p.seed(t, "alpha", map[string]string{"settings.yaml": "a: 1"})
			require.NoError(t, p.fs.MkdirAll("alpha/cache"))
			p.run.outputs["index"] = tt.output

			rr := p.postForm("/kb/alpha/index", tt.form)
			assert.Equal(t, tt.wantStatus, rr.Code)
			for _, w := range tt.want {
				assert.Contains(t, rr.Body.String(), w)
			}

			cacheLeft, err := p.fs.Exists("alpha/cache")
			require.NoError(t, err)
			assert.Equal(t, tt.form.Get("clear_cache") == "", cacheLeft)
		})
	}
}

func TestQA(t *testing.T) {
	p := newTestPanel(t, 0)

	rr := p.get("/qa")
	assert.Contains(t, rr.Body.String(), "No knowledge bases available. Please create one first.")

	p.seed(t, "alpha", nil)
	p.run.outputs["query"] = "INFO: loading\nSUCCESS: Global Search Response:\n## Themes\n\n**Bold** answer <script>x</script>\n"

	rr = p.get("/qa")
	assert.Contains(t, rr.Body.String(), "Submit Query")

	tests := []struct {
		name       string
		form       url.Values
		wantStatus int
		want       []string
		notWant    []string
	}{
		{
			name:       "answer rendered as markdown",
			form:       url.Values{"name": {"alpha"}, "method": {"global"}, "question": {"What are the themes?"}},
			wantStatus: http.StatusOK,
			want:       []string{"<h2>Themes</h2>", "<strong>Bold</strong> answer", `href="/runs/01TESTRUN01"`},
			notWant:    []string{"<script>"},
		},
		{
			name:       "marker for another method",
			form:       url.Values{"name": {"alpha"}, "method": {"local"}, "question": {"q"}},
			wantStatus: http.StatusBadGateway,
			want:       []string{"No valid response found."},
		},
		{
			name:       "empty question",
			form:       url.Values{"name": {"alpha"}, "method": {"local"}},
			wantStatus: http.StatusBadRequest,
			want:       []string{"Please enter your question!"},
		},
		{
			name:       "unknown method",
			form:       url.Values{"name": {"alpha"}, "method": {"hybrid"}, "question": {"q"}},
			wantStatus: http.StatusBadRequest,
			want:       []string{"unknown query method"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := p.postForm("/qa", tt.form)
			assert.Equal(t, tt.wantStatus, rr.Code)
			for _, w := range tt.want {
				assert.Contains(t, rr.Body.String(), w)
			}
			for _, w := range tt.notWant {
				assert.NotContains(t, rr.Body.String(), w)
			}
		})
	}
}

func TestRuns(t *testing.T) {
	p := newTestPanel(t, 0)
	p.seed(t, "alpha", nil)
	p.run.outputs["index"] = "All workflows completed successfully."
	rr := p.postForm("/kb/alpha/index", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = p.get("/runs")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `href="/runs/01TESTRUN01"`)

	rr = p.get("/runs/01TESTRUN01")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "index --root "+testRoot+"/alpha")
	assert.Contains(t, rr.Body.String(), "All workflows completed successfully.")

	rr = p.get("/runs/nope")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRunsDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mgr := kb.NewManager(storage.NewMemory(), testRoot, &scriptedRunner{}, nil, nil)
	srv, err := New(Config{}, mgr, nil, nil)
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/runs", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Run history is disabled.")
}

func TestByteSize(t *testing.T) {
	assert.Equal(t, "3 B", byteSize(3))
	assert.Equal(t, "1.5 KiB", byteSize(1536))
	assert.Equal(t, "32.0 MiB", byteSize(32<<20))
}

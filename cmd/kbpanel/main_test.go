// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/kbpanel/internal/history"
	"github.com/pdiddy/kbpanel/pkg/types"
)

func TestLoadConfigDefaults(t *testing.T) {
	v := viper.New()
	configureViper(v)

	got, err := loadConfig(v)
	require.NoError(t, err)
	assert.Equal(t, types.DefaultPanelConfig(), got)
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	t.Setenv("KBPANEL_TOOL_TIMEOUT", "90s")
	t.Setenv("KBPANEL_SERVER_ADDR", "127.0.0.1:9000")

	v := viper.New()
	configureViper(v)
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(`
root_dir: /srv/kbs
tool:
  interpreter: python3
log:
  format: json
`)))

	got, err := loadConfig(v)
	require.NoError(t, err)
	assert.Equal(t, "/srv/kbs", got.RootDir)
	assert.Equal(t, "python3", got.Tool.Interpreter)
	assert.Equal(t, "graphrag", got.Tool.Module)
	assert.Equal(t, 90*time.Second, got.Tool.Timeout)
	assert.Equal(t, "127.0.0.1:9000", got.Server.Addr)
	assert.Equal(t, "json", got.Log.Format)
}

func TestLoadConfigRejectsEmptyRoot(t *testing.T) {
	v := viper.New()
	configureViper(v)
	v.Set("root_dir", "")

	_, err := loadConfig(v)
	assert.ErrorContains(t, err, "root_dir")
}

func TestFormatRuns(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	runs := []types.Run{{
		ID:            "01HZX",
		KnowledgeBase: "alpha",
		Kind:          types.RunQuery,
		Method:        types.MethodLocal,
		Succeeded:     true,
		StartedAt:     start,
		FinishedAt:    start.Add(2500 * time.Millisecond),
	}}

	var buf bytes.Buffer
	require.NoError(t, formatRuns(&buf, runs, false))
	assert.Contains(t, buf.String(), "01HZX")
	assert.Contains(t, buf.String(), "alpha")
	assert.Contains(t, buf.String(), "2.5s")

	buf.Reset()
	require.NoError(t, formatRuns(&buf, nil, false))
	assert.Equal(t, "No runs recorded.\n", buf.String())

	buf.Reset()
	require.NoError(t, formatRuns(&buf, runs, true))
	assert.Contains(t, buf.String(), `"knowledge_base": "alpha"`)
}

func TestSortedKeys(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, sortedKeys(map[string]string{"b": "2", "a": "1"}))
}

func TestExportRuns(t *testing.T) {
	dir := t.TempDir()
	store, err := history.Open(filepath.Join(dir, "data"), nil)
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()
	_, err = store.Record(ctx, types.Run{KnowledgeBase: "alpha", Kind: types.RunIndex, Output: "done"})
	require.NoError(t, err)

	t.Run("unknown format leaves no file", func(t *testing.T) {
		out := filepath.Join(dir, "runs.xml")
		err := exportRuns(ctx, store, nil, out, "xml", history.Filter{}, false)
		assert.ErrorContains(t, err, `unknown format "xml"`)
		_, statErr := os.Stat(out)
		assert.True(t, os.IsNotExist(statErr))
	})

	t.Run("json to file", func(t *testing.T) {
		out := filepath.Join(dir, "runs.json")
		require.NoError(t, exportRuns(ctx, store, nil, out, "json", history.Filter{}, true))
		data, err := os.ReadFile(out)
		require.NoError(t, err)
		var entries []history.ExportEntry
		require.NoError(t, json.Unmarshal(data, &entries))
		require.Len(t, entries, 1)
		assert.Equal(t, "done", entries[0].Output)
	})

	t.Run("yaml to stdout", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, exportRuns(ctx, store, &buf, "", "yaml", history.Filter{}, false))
		assert.Contains(t, buf.String(), "knowledge_base: alpha")
	})

	t.Run("unwritable path", func(t *testing.T) {
		err := exportRuns(ctx, store, nil, filepath.Join(dir, "missing", "runs.yaml"), "yaml", history.Filter{}, false)
		assert.ErrorContains(t, err, "creating")
	})
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQueryMethod(t *testing.T) {
	tests := []struct {
		in      string
		want    QueryMethod
		wantErr bool
	}{
		{in: "local", want: MethodLocal},
		{in: "Global", want: MethodGlobal},
		{in: " DRIFT ", want: MethodDrift},
		{in: "hybrid", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseQueryMethod(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownMethod)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRunDuration(t *testing.T) {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	r := Run{StartedAt: start, FinishedAt: start.Add(3 * time.Second)}
	assert.Equal(t, 3*time.Second, r.Duration())
}

func TestDefaultPanelConfig(t *testing.T) {
	c := DefaultPanelConfig()
	assert.Equal(t, "knowledge_bases", c.RootDir)
	assert.Equal(t, "python", c.Tool.Interpreter)
	assert.Equal(t, "graphrag", c.Tool.Module)
	assert.Zero(t, c.Tool.Timeout)
	assert.Equal(t, ":8501", c.Server.Addr)
	assert.Equal(t, int64(32<<20), c.Server.MaxUploadBytes)
}

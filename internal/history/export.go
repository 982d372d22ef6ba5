// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package history

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"go.yaml.in/yaml/v3"
)

// ExportEntry is the exported form of a run. Output is omitted unless
// requested since it can be large.
type ExportEntry struct {
	ID            string   `json:"id" yaml:"id"`
	KnowledgeBase string   `json:"knowledge_base" yaml:"knowledge_base"`
	Kind          string   `json:"kind" yaml:"kind"`
	Method        string   `json:"method,omitempty" yaml:"method,omitempty"`
	Question      string   `json:"question,omitempty" yaml:"question,omitempty"`
	Args          []string `json:"args" yaml:"args"`
	ExitCode      int      `json:"exit_code" yaml:"exit_code"`
	Succeeded     bool     `json:"succeeded" yaml:"succeeded"`
	StartedAt     string   `json:"started_at" yaml:"started_at"`
	DurationMS    int64    `json:"duration_ms" yaml:"duration_ms"`
	Output        string   `json:"output,omitempty" yaml:"output,omitempty"`
}

// ExportYAML writes the runs matching f to w as a YAML list.
func (s *Store) ExportYAML(ctx context.Context, w io.Writer, f Filter, withOutput bool) error {
	entries, err := s.exportEntries(ctx, f, withOutput)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(entries); err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	return enc.Close()
}

// ExportJSON writes the runs matching f to w as an indented JSON array.
func (s *Store) ExportJSON(ctx context.Context, w io.Writer, f Filter, withOutput bool) error {
	entries, err := s.exportEntries(ctx, f, withOutput)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(entries); err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	return nil
}

func (s *Store) exportEntries(ctx context.Context, f Filter, withOutput bool) ([]ExportEntry, error) {
	if f.Limit == 0 {
		f.Limit = -1
	}
	runs, err := s.Recent(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("querying for export: %w", err)
	}

	entries := make([]ExportEntry, len(runs))
	for i, r := range runs {
		entries[i] = ExportEntry{
			ID:            r.ID,
			KnowledgeBase: r.KnowledgeBase,
			Kind:          string(r.Kind),
			Method:        string(r.Method),
			Question:      r.Question,
			Args:          r.Args,
			ExitCode:      r.ExitCode,
			Succeeded:     r.Succeeded,
			StartedAt:     r.StartedAt.UTC().Format(time.RFC3339),
			DurationMS:    r.Duration().Milliseconds(),
		}
		if withOutput {
			entries[i].Output = r.Output
		}
	}
	return entries, nil
}

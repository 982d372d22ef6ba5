// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Run is one recorded invocation of the external tool.
type Run struct {
	// ID is a ULID assigned when the run is recorded.
	ID string `json:"id" yaml:"id"`

	KnowledgeBase string      `json:"knowledge_base" yaml:"knowledge_base"`
	Kind          RunKind     `json:"kind" yaml:"kind"`
	Method        QueryMethod `json:"method,omitempty" yaml:"method,omitempty"`
	Question      string      `json:"question,omitempty" yaml:"question,omitempty"`
	Args          []string    `json:"args" yaml:"args"`

	// ExitCode is the process exit status, or -1 when the process did not
	// start or was killed.
	ExitCode int `json:"exit_code" yaml:"exit_code"`

	// Succeeded reports whether the expected marker appeared in the output.
	// It is independent of ExitCode.
	Succeeded bool `json:"succeeded" yaml:"succeeded"`

	Output     string    `json:"output" yaml:"output"`
	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at" yaml:"finished_at"`
}

// Duration returns how long the invocation took.
func (r Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

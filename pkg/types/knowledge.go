// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"errors"
	"fmt"
	"strings"
)

// Fixed entries inside every knowledge base directory.
const (
	InputDir     = "input"
	PromptsDir   = "prompts"
	EnvFile      = ".env"
	SettingsFile = "settings.yaml"
)

// QueryMethod selects the GraphRAG search strategy.
type QueryMethod string

const (
	MethodLocal  QueryMethod = "local"
	MethodGlobal QueryMethod = "global"
	MethodDrift  QueryMethod = "drift"
)

// QueryMethods lists the supported methods in display order.
var QueryMethods = []QueryMethod{MethodLocal, MethodGlobal, MethodDrift}

// ErrUnknownMethod rejects a query method other than local, global, or drift.
var ErrUnknownMethod = errors.New("unknown query method")

// ParseQueryMethod normalizes s to a known method. Matching ignores case.
func ParseQueryMethod(s string) (QueryMethod, error) {
	m := QueryMethod(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range QueryMethods {
		if m == known {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w %q: use local, global, or drift", ErrUnknownMethod, s)
}

// RunKind identifies which tool verb an invocation used.
type RunKind string

const (
	RunInit  RunKind = "init"
	RunIndex RunKind = "index"
	RunQuery RunKind = "query"
)

// Document is a plaintext source file under a knowledge base's input/ directory.
type Document struct {
	Name string `json:"name" yaml:"name"`
	Size int64  `json:"size" yaml:"size"`
}

// QueryAnswer is the text extracted from one query invocation.
type QueryAnswer struct {
	KnowledgeBase string      `json:"knowledge_base" yaml:"knowledge_base"`
	Method        QueryMethod `json:"method" yaml:"method"`
	Question      string      `json:"question" yaml:"question"`
	Answer        string      `json:"answer" yaml:"answer"`
	RunID         string      `json:"run_id,omitempty" yaml:"run_id,omitempty"`
}

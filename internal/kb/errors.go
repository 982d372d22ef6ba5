// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package kb

import (
	"errors"
	"fmt"
)

var (
	// ErrExists is returned by Create when the name is already taken.
	ErrExists = errors.New("knowledge base already exists")

	// ErrNotFound is returned when a knowledge base or document is missing.
	ErrNotFound = errors.New("not found")

	// ErrInvalidName rejects names that are not a single path segment.
	ErrInvalidName = errors.New("invalid name")

	// ErrInitFailed means the init output lacked the initialization phrase.
	ErrInitFailed = errors.New("initialization failed")

	// ErrIndexFailed means the index output lacked the completion phrase.
	ErrIndexFailed = errors.New("indexing failed")

	// ErrIndexBusy rejects a cache-clearing index while an index run without
	// cache clearing is in progress for the same knowledge base.
	ErrIndexBusy = errors.New("an index run is already in progress")

	// ErrNoResponse means the query output held no answer for the method.
	ErrNoResponse = errors.New("no valid response found")

	// ErrEmptyQuestion rejects a query without a question.
	ErrEmptyQuestion = errors.New("question is required")

	// ErrInvalidEnv rejects .env text that does not parse.
	ErrInvalidEnv = errors.New("invalid .env content")

	// ErrInvalidSettings rejects settings text that is not YAML.
	ErrInvalidSettings = errors.New("invalid settings.yaml content")

	// ErrUnsupportedFile rejects uploads that are not plaintext documents.
	ErrUnsupportedFile = errors.New("only .txt files are accepted")
)

// ActionError is returned when a tool invocation did not produce the
// expected phrase. It carries the captured output for display.
type ActionError struct {
	Op            string
	KnowledgeBase string
	Output        string
	RunID         string
	Err           error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.KnowledgeBase, e.Err)
}

func (e *ActionError) Unwrap() error { return e.Err }

// Output returns the tool output attached to err, if any.
func Output(err error) (string, bool) {
	var ae *ActionError
	if errors.As(err, &ae) {
		return ae.Output, true
	}
	return "", false
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package markers holds every literal phrase kbpanel scrapes from the
// GraphRAG tool's output. Success is decided from the text alone, never
// from the exit status, so a change in the tool's wording breaks detection
// silently. Keep all such phrases here.
package markers

import (
	"strings"

	"github.com/pdiddy/kbpanel/pkg/types"
)

// IndexComplete is printed by `graphrag index` when every workflow finished.
const IndexComplete = "All workflows completed successfully."

// initPrefix precedes the project root in `graphrag init` output.
const initPrefix = "Initializing project at "

// responseMarkers maps each query method to the line that precedes its answer.
var responseMarkers = map[types.QueryMethod]string{
	types.MethodLocal:  "SUCCESS: Local Search Response:",
	types.MethodGlobal: "SUCCESS: Global Search Response:",
	types.MethodDrift:  "SUCCESS: DRIFT Search Response:",
}

// ResponseMarker returns the marker for method. Method lookup ignores case.
func ResponseMarker(method string) (string, bool) {
	m, ok := responseMarkers[types.QueryMethod(strings.ToLower(method))]
	return m, ok
}

// Extract returns the text after the first occurrence of method's marker,
// trimmed of surrounding whitespace. It reports false when the method is
// unknown or the marker does not appear verbatim in output.
func Extract(output, method string) (string, bool) {
	marker, ok := ResponseMarker(method)
	if !ok {
		return "", false
	}
	i := strings.Index(output, marker)
	if i < 0 {
		return "", false
	}
	return strings.TrimSpace(output[i+len(marker):]), true
}

// Answer returns the extracted answer for method. An answer that is empty
// once trimmed counts as no response.
func Answer(output, method string) (string, bool) {
	a, ok := Extract(output, method)
	if !ok || a == "" {
		return "", false
	}
	return a, true
}

// InitMessage is the phrase `graphrag init` prints for kbPath.
func InitMessage(kbPath string) string {
	return initPrefix + kbPath
}

// InitSucceeded reports whether output announces initialization of kbPath.
func InitSucceeded(output, kbPath string) bool {
	return strings.Contains(output, InitMessage(kbPath))
}

// IndexSucceeded reports whether output announces a completed index run.
func IndexSucceeded(output string) bool {
	return strings.Contains(output, IndexComplete)
}

// Succeeded decides success for a run of kind. For queries it requires a
// non-empty answer for method. kbPath is used by init only.
func Succeeded(kind types.RunKind, output, kbPath string, method types.QueryMethod) bool {
	switch kind {
	case types.RunInit:
		return InitSucceeded(output, kbPath)
	case types.RunIndex:
		return IndexSucceeded(output)
	case types.RunQuery:
		_, ok := Answer(output, string(method))
		return ok
	}
	return false
}

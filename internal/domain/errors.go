package domain

import (
	"errors"
	"fmt"
)

// Kind classifies a pipeline failure for the boundary layer.
type Kind string

const (
	// KindExtraction marks unreadable or corrupt source input. Not retried.
	KindExtraction Kind = "extraction"
	// KindConfiguration marks invalid chunking parameters. Programmer error.
	KindConfiguration Kind = "configuration"
	// KindEmbedding marks embedding provider failure after retry exhaustion.
	KindEmbedding Kind = "embedding"
	// KindIndex marks vector index failure after retry exhaustion.
	KindIndex Kind = "index"
	// KindLanguageModel marks LLM failure after retry exhaustion.
	KindLanguageModel Kind = "language_model"
	// KindInvalidQuestion marks empty or whitespace-only question input.
	KindInvalidQuestion Kind = "invalid_question"
)

// Error is a stage-tagged pipeline error. Every failure the core surfaces
// carries the kind and the originating stage so callers can map it to a
// transport-level status without string matching.
type Error struct {
	Kind  Kind
	Stage string
	Err   error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Stage, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// E wraps err with a kind and the stage it originated from.
func E(kind Kind, stage string, err error) *Error {
	return &Error{Kind: kind, Stage: stage, Err: err}
}

// Errorf is E with a formatted message.
func Errorf(kind Kind, stage, format string, args ...any) *Error {
	return &Error{Kind: kind, Stage: stage, Err: fmt.Errorf(format, args...)}
}

// KindOf reports the Kind carried by err, or "" if err is not a pipeline error.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

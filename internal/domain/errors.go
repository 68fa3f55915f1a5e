package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedKind indicates a file extension that maps to no kind.
	ErrUnsupportedKind = errors.New("unsupported document kind")

	// ErrLoad indicates a loader could not parse a file.
	ErrLoad = errors.New("load failed")

	// ErrEmptyCorpus guards against fitting an index over zero units.
	ErrEmptyCorpus = errors.New("empty corpus")

	// ErrClassificationMiss is logged when the router output names no
	// available kind. It is resolved by fallback and never returned to callers.
	ErrClassificationMiss = errors.New("router classification miss")

	// ErrModel indicates the language model call failed.
	ErrModel = errors.New("language model error")

	// ErrNotInitialized indicates a query arrived before any document was ingested.
	ErrNotInitialized = errors.New("not initialized")
)

// NotInitializedMessage is the QueryResult error for an empty manager.
const NotInitializedMessage = "No documents loaded. Please upload documents first."

// UnsupportedKindError reports the offending path and extension.
type UnsupportedKindError struct {
	Path string
	Ext  string
}

func (e *UnsupportedKindError) Error() string {
	return fmt.Sprintf("unsupported file extension %q: %s", e.Ext, e.Path)
}

func (e *UnsupportedKindError) Unwrap() error { return ErrUnsupportedKind }

// LoadError wraps a parser failure for one file.
type LoadError struct {
	Path string
	Kind Kind
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s file %s: %v", e.Kind, e.Path, e.Err)
}

func (e *LoadError) Unwrap() []error { return []error{ErrLoad, e.Err} }

// ModelError wraps a failed language model call.
type ModelError struct {
	Provider string
	Err      error
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *ModelError) Unwrap() []error { return []error{ErrModel, e.Err} }

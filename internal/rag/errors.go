package rag

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyQuery is returned for blank queries.
	ErrEmptyQuery = errors.New("query cannot be empty")

	// ErrInvalidRequest is returned for out-of-range request fields.
	ErrInvalidRequest = errors.New("invalid query request")

	// ErrDocumentNotFound is returned when a document has no stored chunks.
	ErrDocumentNotFound = errors.New("document not found")
)

// State is a step of the query state machine.
type State string

const (
	StateIntentCheck     State = "INTENT_CHECK"
	StateSummaryPath     State = "SUMMARY_PATH"
	StateRetrievalPath   State = "RETRIEVAL_PATH"
	StateContextAssembly State = "CONTEXT_ASSEMBLY"
	StateGeneration      State = "GENERATION"
	StateHistoryAppend   State = "HISTORY_APPEND"
	StateDone            State = "DONE"

	StateEmbeddingFailed  State = "EMBEDDING_FAILED"
	StateRetrievalFailed  State = "RETRIEVAL_FAILED"
	StateGenerationFailed State = "GENERATION_FAILED"
)

// PipelineError reports the failure state a query ended in.
type PipelineError struct {
	State State
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("query pipeline %s: %v", e.State, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

func fail(state State, err error) error {
	return &PipelineError{State: state, Err: err}
}

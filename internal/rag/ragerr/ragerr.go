// Package ragerr defines the error taxonomy shared by every pipeline stage.
package ragerr

import "fmt"

// Code is one of the fixed error categories a stage can fail with.
type Code string

const (
	// InvalidInput marks a missing question or otherwise malformed state.
	InvalidInput Code = "invalid_input"
	// BackendUnavailable marks a transport failure talking to the search backend.
	BackendUnavailable Code = "backend_unavailable"
	// SchemaError marks a configured text field missing from the collection schema.
	SchemaError Code = "schema_error"
	// RerankError marks a reranker transport/model failure.
	RerankError Code = "rerank_error"
	// CompressError marks an LLM-compressor transport/model failure.
	CompressError Code = "compress_error"
	// MalformedModelOutput marks unparseable JSON from a reranker/compressor model.
	MalformedModelOutput Code = "malformed_model_output"
	// Cancelled marks a pipeline run aborted via context cancellation.
	Cancelled Code = "cancelled"
)

// Error is the tagged-result error type threaded through every stage. It
// plays the role the teacher's chat_pipline.PluginError plays for the chat
// pipeline, flattened to one exported type since this pipeline's call sites
// outnumber the teacher's fixed set of plugin sentinels.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether err carries the given code, so callers can write
// errors.Is(err, ragerr.New(ragerr.BackendUnavailable, "")) style checks, or
// more idiomatically use CodeOf(err) == ragerr.BackendUnavailable.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New builds an *Error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap builds an *Error with the given code, message and underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// CodeOf extracts the Code carried by err, or "" if err is not an *Error.
func CodeOf(err error) Code {
	var e *Error
	if err == nil {
		return ""
	}
	if ae, ok := err.(*Error); ok {
		return ae.Code
	}
	_ = e
	return ""
}

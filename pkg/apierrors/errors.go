// Package apierrors classifies every failure the analysis workflow can surface:
// local validation, transport, server-reported and response-parsing errors.
package apierrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind represents the category of a failure.
type Kind int8

const (
	// KindValidation is a local input error. It never reaches the network.
	KindValidation Kind = iota
	// KindNetwork is a transport failure with no server response (DNS, reset, timeout).
	KindNetwork
	// KindServer is a non-2xx response from the backend.
	KindServer
	// KindParse is a malformed or unexpected response body.
	KindParse
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNetwork:
		return "network"
	case KindServer:
		return "server"
	case KindParse:
		return "parse"
	default:
		return "invalid"
	}
}

// Parse stages identify which response failed to decode.
const (
	StageInitial   = "initial"
	StageQuestions = "questions"
	StageReport    = "report"
)

// Default user-facing messages per kind.
const (
	MessageNetwork    = "network error, please check your connection and try again"
	MessageParse      = "the server response could not be processed"
	MessageValidation = "please complete the required fields"
)

// Error is a classified failure.
type Error struct {
	Err        error  // Wrapped underlying error
	Op         string // Operation that failed ("start_analysis", "fetch_questions", "submit_answers")
	Detail     string // Server-supplied detail message, if any
	Stage      string // Parse stage for KindParse
	Field      string // Offending field for KindValidation
	Kind       Kind
	StatusCode int // HTTP status for KindServer
	Missing    []string
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch e.Kind {
	case KindValidation:
		if len(e.Missing) > 0 {
			return fmt.Sprintf("validation error (%s): %d unanswered, first %s", e.Field, len(e.Missing), e.Missing[0])
		}
		return fmt.Sprintf("validation error: %s is required", e.Field)
	case KindServer:
		return fmt.Sprintf("%s: server error (status %d): %s", e.Op, e.StatusCode, e.Detail)
	case KindParse:
		if e.Err != nil {
			return fmt.Sprintf("%s: parse error (%s): %v", e.Op, e.Stage, e.Err)
		}
		return fmt.Sprintf("%s: parse error (%s)", e.Op, e.Stage)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s: %s error: %v", e.Op, e.Kind, e.Err)
		}
		return fmt.Sprintf("%s: %s error", e.Op, e.Kind)
	}
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether a user-initiated retry is likely to help.
// It never triggers an automatic retry.
func (e *Error) IsRetryable() bool {
	switch e.Kind {
	case KindNetwork:
		return true
	case KindServer:
		return e.StatusCode >= http.StatusInternalServerError || e.StatusCode == http.StatusTooManyRequests
	default:
		return false
	}
}

// UserMessage returns the single message shown to the user.
func (e *Error) UserMessage() string {
	switch e.Kind {
	case KindServer:
		if e.Detail != "" {
			return e.Detail
		}
		return GenericServerMessage(e.StatusCode)
	case KindNetwork:
		return MessageNetwork
	case KindParse:
		return MessageParse
	default:
		if e.Detail != "" {
			return e.Detail
		}
		if e.Field != "" {
			return fmt.Sprintf("%s is required", e.Field)
		}
		return MessageValidation
	}
}

// GenericServerMessage is the fallback when no detail can be extracted from an error body.
func GenericServerMessage(status int) string {
	return fmt.Sprintf("the server could not complete the request (code: %d)", status)
}

// Is checks if an error is classified as the given kind.
func Is(err error, kind Kind) bool {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind == kind
	}
	return false
}

// KindOf returns the kind of a classified error and false if err is not classified.
func KindOf(err error) (Kind, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind, true
	}
	return 0, false
}

// As extracts the classified error.
func As(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// NewValidation creates a field-tagged validation error.
func NewValidation(field string) *Error {
	return &Error{Kind: KindValidation, Field: field}
}

// NewUnanswered creates a validation error naming the unanswered question ids.
func NewUnanswered(missing []string) *Error {
	return &Error{Kind: KindValidation, Field: "answers", Missing: missing}
}

// NewNetwork wraps a transport failure.
func NewNetwork(op string, cause error) *Error {
	return &Error{Kind: KindNetwork, Op: op, Err: cause}
}

// NewServer creates a server-reported failure.
func NewServer(op string, status int, detail string) *Error {
	if detail == "" {
		detail = GenericServerMessage(status)
	}
	return &Error{Kind: KindServer, Op: op, StatusCode: status, Detail: detail}
}

// NewParse wraps a response decoding failure.
func NewParse(op, stage string, cause error) *Error {
	return &Error{Kind: KindParse, Op: op, Stage: stage, Err: cause}
}

package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrStorageCorrupt       = errors.New("stored documents are corrupt")
	ErrCredentialMissing    = errors.New("cloud API key was not provided")
	ErrUnrecognizedResponse = errors.New("unrecognized response format")
	ErrOCRFailure           = errors.New("ocr failed")
	ErrFileRead             = errors.New("file read failed")
	ErrEmptyQuery           = errors.New("query is empty")
	ErrBusy                 = errors.New("a request is already in flight")
	ErrNothingToPromote     = errors.New("no pasted or recognized text to save")
)

// Backend names a model backend family.
type Backend string

const (
	BackendLocal Backend = "ollama"
	BackendCloud Backend = "gemini"
)

// BackendHTTPError is a non-success HTTP status returned by a model backend.
type BackendHTTPError struct {
	Backend    Backend
	Status     int
	StatusText string
	Detail     string
}

func (e *BackendHTTPError) Error() string {
	return fmt.Sprintf("%s error: %d %s: %s", e.Backend, e.Status, e.StatusText, e.Detail)
}

// BackendError is a failure reported inside an otherwise successful response body.
type BackendError struct {
	Message string
}

func (e *BackendError) Error() string { return "backend error: " + e.Message }

// NoticeError attaches a user-facing notice produced during error recovery.
type NoticeError struct {
	Err    error
	Notice string
}

func (e *NoticeError) Error() string { return e.Err.Error() }

func (e *NoticeError) Unwrap() error { return e.Err }

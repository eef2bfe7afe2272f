package domain

import "context"

// Document represents a single named text held in a collection.
type Document struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// ScoredDocument is a document with its relevance score for one query.
type ScoredDocument struct {
	Document
	Score int
}

// ModelRequest is one fully built request for a model backend.
type ModelRequest struct {
	Endpoint  string
	Payload   any
	Streaming bool
}

// BlobStore is a key-value store holding opaque blobs.
// Get returns ErrNotFound when the key is absent.
type BlobStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Interactor asks the user for input on behalf of a running operation.
// Calls may block until the user answers.
type Interactor interface {
	// PromptCredential returns the entered credential, or ok=false when the
	// user declined.
	PromptCredential(ctx context.Context, message string) (value string, ok bool, err error)
	Confirm(ctx context.Context, message string) (bool, error)
}

package router

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"plower/internal/domain"
)

const credentialPromptMessage = "Enter your Gemini API key (it is stored locally). Keys are issued in Google AI Studio."

// Credentials manages the cloud API key kept in the blob store.
type Credentials struct {
	blobs      domain.BlobStore
	key        string
	interactor domain.Interactor
}

func NewCredentials(blobs domain.BlobStore, key string, interactor domain.Interactor) *Credentials {
	return &Credentials{blobs: blobs, key: key, interactor: interactor}
}

// Stored returns the saved key, trimmed. A missing or blank key yields domain.ErrNotFound.
func (c *Credentials) Stored(ctx context.Context) (string, error) {
	data, err := c.blobs.Get(ctx, c.key)
	if err != nil {
		return "", err
	}
	v := strings.TrimSpace(string(data))
	if v == "" {
		return "", domain.ErrNotFound
	}
	return v, nil
}

// Acquire returns the saved key, prompting for and saving one when absent.
// A declined or blank prompt returns domain.ErrCredentialMissing.
func (c *Credentials) Acquire(ctx context.Context) (string, error) {
	v, err := c.Stored(ctx)
	if err == nil {
		return v, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return "", fmt.Errorf("read credential: %w", err)
	}
	if c.interactor == nil {
		return "", domain.ErrCredentialMissing
	}
	entered, ok, err := c.interactor.PromptCredential(ctx, credentialPromptMessage)
	if err != nil {
		return "", err
	}
	entered = strings.TrimSpace(entered)
	if !ok || entered == "" {
		return "", domain.ErrCredentialMissing
	}
	if err := c.Save(ctx, entered); err != nil {
		return "", err
	}
	return entered, nil
}

// Save stores a key after trimming surrounding whitespace.
func (c *Credentials) Save(ctx context.Context, value string) error {
	if err := c.blobs.Put(ctx, c.key, []byte(strings.TrimSpace(value))); err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	return nil
}

// Clear deletes the saved key.
func (c *Credentials) Clear(ctx context.Context) error {
	if err := c.blobs.Delete(ctx, c.key); err != nil {
		return fmt.Errorf("clear credential: %w", err)
	}
	return nil
}

func (c *Credentials) confirm(ctx context.Context, message string) bool {
	if c.interactor == nil {
		return false
	}
	ok, err := c.interactor.Confirm(ctx, message)
	return err == nil && ok
}

// Package router decides which model backend serves a model id and builds
// the request for it.
package router

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/sirupsen/logrus"

	"plower/internal/domain"
)

// Config holds the routing rules.
type Config struct {
	CloudModels         []string
	LocalEndpoint       string
	CloudBaseURL        string
	Temperature         float32
	LargeContextMarkers []string
	LargeContext        int
	DefaultContext      int
}

// Route is the resolved backend for one send.
type Route struct {
	Backend   domain.Backend
	ModelID   string
	Endpoint  string
	Streaming bool
	// NumCtx is the context window requested from the local backend.
	NumCtx int

	build func(prompt string) any
}

// Request builds the model request carrying prompt.
func (r *Route) Request(prompt string) domain.ModelRequest {
	return domain.ModelRequest{Endpoint: r.Endpoint, Payload: r.build(prompt), Streaming: r.Streaming}
}

// Router resolves model ids to backends.
type Router struct {
	cfg   Config
	creds *Credentials
	log   *logrus.Logger
}

func New(cfg Config, creds *Credentials, log *logrus.Logger) *Router {
	return &Router{cfg: cfg, creds: creds, log: log}
}

// IsCloud reports whether modelID is one of the configured cloud models.
func (r *Router) IsCloud(modelID string) bool {
	return slices.Contains(r.cfg.CloudModels, modelID)
}

// ContextWindow picks the local num_ctx from size markers in the model id.
func (r *Router) ContextWindow(modelID string) int {
	for _, m := range r.cfg.LargeContextMarkers {
		if strings.Contains(modelID, m) {
			return r.cfg.LargeContext
		}
	}
	return r.cfg.DefaultContext
}

// Route resolves modelID. Cloud routes acquire the API key first and fail
// with domain.ErrCredentialMissing when the user declines to enter one.
func (r *Router) Route(ctx context.Context, modelID string) (*Route, error) {
	temperature := r.cfg.Temperature
	if !r.IsCloud(modelID) {
		numCtx := r.ContextWindow(modelID)
		return &Route{
			Backend:   domain.BackendLocal,
			ModelID:   modelID,
			Endpoint:  r.cfg.LocalEndpoint,
			Streaming: true,
			NumCtx:    numCtx,
			build: func(prompt string) any {
				return GenerateRequest{
					Model:   modelID,
					Prompt:  prompt,
					Stream:  true,
					Options: GenerateOptions{Temperature: temperature, NumCtx: numCtx},
				}
			},
		}, nil
	}

	key, err := r.creds.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	endpoint := fmt.Sprintf("%s/%s:generateContent?key=%s",
		strings.TrimRight(r.cfg.CloudBaseURL, "/"), modelID, url.QueryEscape(key))
	return &Route{
		Backend:   domain.BackendCloud,
		ModelID:   modelID,
		Endpoint:  endpoint,
		Streaming: false,
		build: func(prompt string) any {
			return newGenerateContentRequest(prompt, temperature)
		},
	}, nil
}

// Recover applies credential recovery after a failed cloud request and
// returns a notice for the user, or "" when nothing was done.
//
// 400 and 403 mean the key is invalid: it is deleted. 404 means the model or
// API is unavailable for the project: the key is kept unless the user asks to
// clear it.
func (r *Router) Recover(ctx context.Context, route *Route, err error) string {
	var herr *domain.BackendHTTPError
	if route == nil || route.Backend != domain.BackendCloud || !errors.As(err, &herr) {
		return ""
	}
	fields := logrus.Fields{"model": route.ModelID, "status": herr.Status}

	switch herr.Status {
	case http.StatusBadRequest, http.StatusForbidden:
		if cerr := r.creds.Clear(ctx); cerr != nil {
			r.log.WithFields(fields).WithError(cerr).Error("failed to delete rejected API key")
			return fmt.Sprintf("Gemini API error (%d). The stored API key could not be deleted: %v", herr.Status, cerr)
		}
		r.log.WithFields(fields).Warn("deleted rejected API key")
		return fmt.Sprintf("Gemini API error (%d). The stored API key was deleted; send again and enter a valid key.", herr.Status)
	case http.StatusNotFound:
		question := fmt.Sprintf("Gemini API error (404): model %q was not found, or the Generative Language API is not enabled for this key's project.\nClear the stored API key?", route.ModelID)
		if r.creds.confirm(ctx, question) {
			if cerr := r.creds.Clear(ctx); cerr != nil {
				r.log.WithFields(fields).WithError(cerr).Error("failed to delete API key")
				return fmt.Sprintf("The stored API key could not be deleted: %v", cerr)
			}
			r.log.WithFields(fields).Info("API key cleared on request")
			return "The stored API key was cleared."
		}
		return "Check that the model exists and the Generative Language API is enabled. The stored API key was kept."
	}
	return ""
}

// ClearCredential deletes the stored cloud API key.
func (r *Router) ClearCredential(ctx context.Context) error {
	return r.creds.Clear(ctx)
}

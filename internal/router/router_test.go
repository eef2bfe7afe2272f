package router

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plower/internal/blobstore/memory"
	"plower/internal/domain"
)

type stubInteractor struct {
	credential string
	declined   bool
	confirm    bool
	prompts    int
	confirms   int
}

func (s *stubInteractor) PromptCredential(context.Context, string) (string, bool, error) {
	s.prompts++
	if s.declined {
		return "", false, nil
	}
	return s.credential, true, nil
}

func (s *stubInteractor) Confirm(context.Context, string) (bool, error) {
	s.confirms++
	return s.confirm, nil
}

func testConfig() Config {
	return Config{
		CloudModels:         []string{"gemini-1.5-flash", "gemini-1.5-pro"},
		LocalEndpoint:       "http://localhost:11434/api/generate",
		CloudBaseURL:        "https://generativelanguage.googleapis.com/v1beta/models",
		Temperature:         0.1,
		LargeContextMarkers: []string{"20b", "12b", "120b"},
		LargeContext:        8192,
		DefaultContext:      4096,
	}
}

func newTestRouter(in *stubInteractor) (*Router, *memory.Store) {
	blobs := memory.New()
	var interactor domain.Interactor
	if in != nil {
		interactor = in
	}
	log := logrus.New()
	log.SetOutput(io.Discard)
	return New(testConfig(), NewCredentials(blobs, "geminiApiKey", interactor), log), blobs
}

func payloadJSON(t *testing.T, v any) map[string]any {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestRoute_CloudModel(t *testing.T) {
	in := &stubInteractor{credential: "  my-key \n"}
	r, blobs := newTestRouter(in)
	ctx := context.Background()

	route, err := r.Route(ctx, "gemini-1.5-flash")
	require.NoError(t, err)

	assert.Equal(t, domain.BackendCloud, route.Backend)
	assert.False(t, route.Streaming)
	assert.Contains(t, route.Endpoint, ":generateContent")
	assert.Equal(t, "https://generativelanguage.googleapis.com/v1beta/models/gemini-1.5-flash:generateContent?key=my-key", route.Endpoint)

	stored, err := blobs.Get(ctx, "geminiApiKey")
	require.NoError(t, err)
	assert.Equal(t, "my-key", string(stored))

	req := route.Request("hello")
	assert.False(t, req.Streaming)
	body := payloadJSON(t, req.Payload)
	assert.Equal(t, []any{map[string]any{"parts": []any{map[string]any{"text": "hello"}}}}, body["contents"])
	gen := body["generationConfig"].(map[string]any)
	assert.InDelta(t, 0.1, gen["temperature"], 1e-6)

	// second route uses the stored key without prompting
	_, err = r.Route(ctx, "gemini-1.5-pro")
	require.NoError(t, err)
	assert.Equal(t, 1, in.prompts)
}

func TestRoute_CloudModelDeclinedCredential(t *testing.T) {
	in := &stubInteractor{declined: true}
	r, _ := newTestRouter(in)

	_, err := r.Route(context.Background(), "gemini-1.5-flash")
	assert.ErrorIs(t, err, domain.ErrCredentialMissing)
}

func TestRoute_CloudModelBlankCredential(t *testing.T) {
	in := &stubInteractor{credential: "   "}
	r, blobs := newTestRouter(in)

	_, err := r.Route(context.Background(), "gemini-1.5-flash")
	assert.ErrorIs(t, err, domain.ErrCredentialMissing)
	_, err = blobs.Get(context.Background(), "geminiApiKey")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRoute_LocalModelContextWindow(t *testing.T) {
	r, _ := newTestRouter(nil)
	tests := []struct {
		model  string
		numCtx int
	}{
		{"llama3:70b", 4096},
		{"gpt-oss:20b", 8192},
		{"gemma3:12b", 8192},
		{"gpt-oss:120b", 8192},
		{"gemini-2.5-flash", 4096},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			route, err := r.Route(context.Background(), tt.model)
			require.NoError(t, err)
			assert.Equal(t, domain.BackendLocal, route.Backend)
			assert.True(t, route.Streaming)
			assert.Equal(t, "http://localhost:11434/api/generate", route.Endpoint)
			assert.Equal(t, tt.numCtx, route.NumCtx)

			body := payloadJSON(t, route.Request("p").Payload)
			assert.Equal(t, tt.model, body["model"])
			assert.Equal(t, "p", body["prompt"])
			assert.Equal(t, true, body["stream"])
			opts := body["options"].(map[string]any)
			assert.Equal(t, float64(tt.numCtx), opts["num_ctx"])
			assert.InDelta(t, 0.1, opts["temperature"], 1e-6)
		})
	}
}

func TestRecover_ForbiddenDeletesCredential(t *testing.T) {
	in := &stubInteractor{credential: "bad-key"}
	r, blobs := newTestRouter(in)
	ctx := context.Background()

	route, err := r.Route(ctx, "gemini-1.5-flash")
	require.NoError(t, err)

	notice := r.Recover(ctx, route, &domain.BackendHTTPError{Backend: domain.BackendCloud, Status: http.StatusForbidden})
	assert.Contains(t, notice, "deleted")
	_, err = blobs.Get(ctx, "geminiApiKey")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// the next send prompts again
	in.credential = "good-key"
	route, err = r.Route(ctx, "gemini-1.5-flash")
	require.NoError(t, err)
	assert.Equal(t, 2, in.prompts)
	assert.True(t, strings.HasSuffix(route.Endpoint, "key=good-key"))
}

func TestRecover_BadRequestDeletesCredential(t *testing.T) {
	in := &stubInteractor{credential: "bad-key"}
	r, blobs := newTestRouter(in)
	ctx := context.Background()
	route, err := r.Route(ctx, "gemini-1.5-pro")
	require.NoError(t, err)

	r.Recover(ctx, route, &domain.BackendHTTPError{Status: http.StatusBadRequest})
	_, err = blobs.Get(ctx, "geminiApiKey")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRecover_NotFoundAsksBeforeClearing(t *testing.T) {
	ctx := context.Background()

	t.Run("kept when declined", func(t *testing.T) {
		in := &stubInteractor{credential: "key", confirm: false}
		r, blobs := newTestRouter(in)
		route, err := r.Route(ctx, "gemini-1.5-flash")
		require.NoError(t, err)

		notice := r.Recover(ctx, route, &domain.BackendHTTPError{Status: http.StatusNotFound})
		assert.NotEmpty(t, notice)
		assert.Equal(t, 1, in.confirms)
		stored, err := blobs.Get(ctx, "geminiApiKey")
		require.NoError(t, err)
		assert.Equal(t, "key", string(stored))
	})

	t.Run("cleared when confirmed", func(t *testing.T) {
		in := &stubInteractor{credential: "key", confirm: true}
		r, blobs := newTestRouter(in)
		route, err := r.Route(ctx, "gemini-1.5-flash")
		require.NoError(t, err)

		r.Recover(ctx, route, &domain.BackendHTTPError{Status: http.StatusNotFound})
		_, err = blobs.Get(ctx, "geminiApiKey")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestRecover_IgnoresLocalAndOtherErrors(t *testing.T) {
	in := &stubInteractor{credential: "key"}
	r, blobs := newTestRouter(in)
	ctx := context.Background()

	local, err := r.Route(ctx, "llama3")
	require.NoError(t, err)
	assert.Empty(t, r.Recover(ctx, local, &domain.BackendHTTPError{Status: http.StatusForbidden}))

	cloud, err := r.Route(ctx, "gemini-1.5-flash")
	require.NoError(t, err)
	assert.Empty(t, r.Recover(ctx, cloud, &domain.BackendHTTPError{Status: http.StatusInternalServerError}))
	assert.Empty(t, r.Recover(ctx, cloud, domain.ErrUnrecognizedResponse))

	_, err = blobs.Get(ctx, "geminiApiKey")
	assert.NoError(t, err)
}

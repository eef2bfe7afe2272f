package stream

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plower/internal/domain"
)

// chunkReader returns one chunk per Read call.
type chunkReader struct {
	chunks []string
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.chunks) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.chunks[0])
	if n < len(r.chunks[0]) {
		r.chunks[0] = r.chunks[0][n:]
	} else {
		r.chunks = r.chunks[1:]
	}
	return n, nil
}

func TestConsume_StreamingTwoChunks(t *testing.T) {
	body := &chunkReader{chunks: []string{"{\"response\":\"Hel\"}\n", "{\"response\":\"lo\"}\n"}}
	var partials []string

	got, err := Consume(body, true, func(s string) { partials = append(partials, s) })

	require.NoError(t, err)
	assert.Equal(t, "Hello", got)
	assert.Equal(t, []string{"Hel", "Hello"}, partials)
}

func TestConsume_StreamingLineSplitAcrossReads(t *testing.T) {
	body := &chunkReader{chunks: []string{
		`{"respo`, `nse":"a"}` + "\n" + `{"response":"b"`, "}\n",
		`{"response":"c","done":true}`,
	}}
	var partials []string
	got, err := Consume(body, true, func(s string) { partials = append(partials, s) })
	require.NoError(t, err)
	assert.Equal(t, "abc", got)
	assert.Equal(t, []string{"a", "ab", "abc"}, partials)
}

func TestConsume_StreamingSkipsGarbageAndEmptyLines(t *testing.T) {
	body := strings.NewReader("\n\nnot json\n{\"response\":\"x\"}\n{\"done\":true}\n\n")
	calls := 0
	got, err := Consume(body, true, func(string) { calls++ })
	require.NoError(t, err)
	assert.Equal(t, "x", got)
	assert.Equal(t, 1, calls)
}

func TestConsume_StreamingMultibyteAcrossReads(t *testing.T) {
	line := `{"response":"東京"}` + "\n"
	cut := strings.Index(line, "京") + 1
	body := &chunkReader{chunks: []string{line[:cut], line[cut:]}}
	got, err := Consume(body, true, nil)
	require.NoError(t, err)
	assert.Equal(t, "東京", got)
}

func TestConsume_StreamingErrorLine(t *testing.T) {
	body := strings.NewReader("{\"response\":\"par\"}\n{\"error\":\"model 'x' not found\"}\n")
	got, err := Consume(body, true, nil)
	var berr *domain.BackendError
	require.True(t, errors.As(err, &berr))
	assert.Equal(t, "model 'x' not found", berr.Message)
	assert.Equal(t, "par", got)
}

func TestConsume_StreamingReadError(t *testing.T) {
	boom := errors.New("connection reset")
	body := io.MultiReader(strings.NewReader("{\"response\":\"a\"}\n"), errReader{boom})
	got, err := Consume(body, true, nil)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "a", got)
}

type errReader struct{ err error }

func (r errReader) Read([]byte) (int, error) { return 0, r.err }

func TestConsume_Batch(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    string
		wantErr error
		backend string
	}{
		{
			name: "gemini candidates",
			body: `{"candidates":[{"content":{"parts":[{"text":"Hel"},{"text":"lo"}],"role":"model"},"finishReason":"STOP"}]}`,
			want: "Hello",
		},
		{
			name: "candidates win over response",
			body: `{"candidates":[{"content":{"parts":[{"text":"a"}]}}],"response":"b"}`,
			want: "a",
		},
		{
			name: "flat response",
			body: `{"response":"plain answer","done":true}`,
			want: "plain answer",
		},
		{
			name: "candidate without content falls through",
			body: `{"candidates":[{"finishReason":"SAFETY"}],"response":"r"}`,
			want: "r",
		},
		{
			name:    "error object",
			body:    `{"error":{"code":400,"message":"API key not valid","status":"INVALID_ARGUMENT"}}`,
			backend: "API key not valid",
		},
		{
			name:    "detail",
			body:    `{"detail":"Not Found"}`,
			backend: "Not Found",
		},
		{
			name:    "unknown shape",
			body:    `{"foo":"bar"}`,
			wantErr: domain.ErrUnrecognizedResponse,
		},
		{
			name:    "not json",
			body:    `<html>oops</html>`,
			wantErr: domain.ErrUnrecognizedResponse,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			partialCalled := false
			got, err := Consume(strings.NewReader(tt.body), false, func(string) { partialCalled = true })
			assert.False(t, partialCalled)
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.backend != "":
				var berr *domain.BackendError
				require.True(t, errors.As(err, &berr))
				assert.Equal(t, tt.backend, berr.Message)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

// Package stream turns model response bodies into answer text.
package stream

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"google.golang.org/genai"

	"plower/internal/domain"
)

const readChunkSize = 4096

// batchResponse covers every non-streaming body shape we recognize.
type batchResponse struct {
	Candidates []*genai.Candidate `json:"candidates"`
	Response   string             `json:"response"`
	Error      json.RawMessage    `json:"error"`
	Detail     json.RawMessage    `json:"detail"`
}

// streamLine is one NDJSON object of a streaming body.
type streamLine struct {
	Response *string         `json:"response"`
	Error    json.RawMessage `json:"error"`
}

// Consume reads body to completion and returns the answer text. For streaming
// bodies onPartial receives the cumulative text after every fragment.
func Consume(body io.Reader, streaming bool, onPartial func(string)) (string, error) {
	if onPartial == nil {
		onPartial = func(string) {}
	}
	if streaming {
		return consumeStream(body, onPartial)
	}
	return consumeBatch(body)
}

func consumeBatch(body io.Reader) (string, error) {
	var resp batchResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrUnrecognizedResponse, err)
	}
	if len(resp.Candidates) > 0 && resp.Candidates[0] != nil && resp.Candidates[0].Content != nil {
		var sb strings.Builder
		for _, p := range resp.Candidates[0].Content.Parts {
			if p != nil {
				sb.WriteString(p.Text)
			}
		}
		return sb.String(), nil
	}
	if resp.Response != "" {
		return resp.Response, nil
	}
	if msg, ok := errorMessage(resp.Error); ok {
		return "", &domain.BackendError{Message: msg}
	}
	if msg, ok := errorMessage(resp.Detail); ok {
		return "", &domain.BackendError{Message: msg}
	}
	return "", domain.ErrUnrecognizedResponse
}

func consumeStream(body io.Reader, onPartial func(string)) (string, error) {
	var (
		result  strings.Builder
		pending []byte
		buf     = make([]byte, readChunkSize)
	)
	handle := func(line []byte) error {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			return nil
		}
		var sl streamLine
		if err := json.Unmarshal(line, &sl); err != nil {
			// partial chunk boundary
			return nil
		}
		if msg, ok := errorMessage(sl.Error); ok {
			return &domain.BackendError{Message: msg}
		}
		if sl.Response != nil && *sl.Response != "" {
			result.WriteString(*sl.Response)
			onPartial(result.String())
		}
		return nil
	}

	for {
		n, rerr := body.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)
			for {
				i := bytes.IndexByte(pending, '\n')
				if i < 0 {
					break
				}
				if err := handle(pending[:i]); err != nil {
					return result.String(), err
				}
				pending = pending[i+1:]
			}
		}
		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil {
			return result.String(), fmt.Errorf("read stream: %w", rerr)
		}
	}
	if err := handle(pending); err != nil {
		return result.String(), err
	}
	return result.String(), nil
}

// errorMessage extracts a message from an error field that is either a string
// or an object with a "message" member.
func errorMessage(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, s != ""
	}
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Message != "" {
		return obj.Message, true
	}
	return string(raw), true
}

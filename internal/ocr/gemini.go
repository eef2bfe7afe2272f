package ocr

import (
	"context"
	"fmt"

	"github.com/gabriel-vasile/mimetype"
	"google.golang.org/genai"
)

const extractInstruction = "Transcribe all text visible in this image exactly as written. Output only the text, preserving line breaks. Output nothing if there is no text."

// CredentialSource supplies the Gemini API key, prompting when needed.
type CredentialSource interface {
	Acquire(ctx context.Context) (string, error)
}

// Gemini recognizes text with a multimodal Gemini model.
type Gemini struct {
	Model   string
	BaseURL string
	creds   CredentialSource
}

func NewGemini(model string, creds CredentialSource) *Gemini {
	if model == "" {
		model = "gemini-1.5-flash"
	}
	return &Gemini{Model: model, creds: creds}
}

func (g *Gemini) Recognize(ctx context.Context, image []byte) *Job {
	return Start(ctx, func(ctx context.Context, report func(Progress)) (string, error) {
		report(Progress{Status: StatusInitializing, Percent: 0})
		mt := mimetype.Detect(image)
		if !mimetype.EqualsAny(mt.String(), "image/png", "image/jpeg", "image/webp", "image/heic", "image/heif") {
			return "", fmt.Errorf("unsupported image type %s", mt.String())
		}
		key, err := g.creds.Acquire(ctx)
		if err != nil {
			return "", err
		}
		cfg := &genai.ClientConfig{APIKey: key, Backend: genai.BackendGeminiAPI}
		if g.BaseURL != "" {
			cfg.HTTPOptions = genai.HTTPOptions{BaseURL: g.BaseURL}
		}
		client, err := genai.NewClient(ctx, cfg)
		if err != nil {
			return "", fmt.Errorf("init gemini client: %w", err)
		}

		report(Progress{Status: StatusRecognizing, Percent: 10})
		contents := []*genai.Content{{
			Role: genai.RoleUser,
			Parts: []*genai.Part{
				genai.NewPartFromBytes(image, mt.String()),
				genai.NewPartFromText(extractInstruction),
			},
		}}
		resp, err := client.Models.GenerateContent(ctx, g.Model, contents, &genai.GenerateContentConfig{
			Temperature: genai.Ptr[float32](0),
		})
		if err != nil {
			return "", fmt.Errorf("gemini ocr: %w", err)
		}
		report(Progress{Status: StatusRecognizing, Percent: 100})
		return resp.Text(), nil
	})
}

package router

import "google.golang.org/genai"

// GenerateRequest is the body of Ollama's /api/generate.
type GenerateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options GenerateOptions `json:"options"`
}

// GenerateOptions are the sampling options sent to Ollama.
type GenerateOptions struct {
	Temperature float32 `json:"temperature"`
	NumCtx      int     `json:"num_ctx"`
}

// GenerateContentRequest is the body of Gemini's models/{id}:generateContent.
type GenerateContentRequest struct {
	Contents         []*genai.Content        `json:"contents"`
	GenerationConfig *genai.GenerationConfig `json:"generationConfig,omitempty"`
}

func newGenerateContentRequest(prompt string, temperature float32) GenerateContentRequest {
	return GenerateContentRequest{
		Contents: []*genai.Content{
			{Parts: []*genai.Part{genai.NewPartFromText(prompt)}},
		},
		GenerationConfig: &genai.GenerationConfig{Temperature: genai.Ptr(temperature)},
	}
}

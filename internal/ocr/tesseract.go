package ocr

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Tesseract runs the tesseract command line program.
type Tesseract struct {
	Binary    string
	Languages string
}

func NewTesseract(binary, languages string) *Tesseract {
	if binary == "" {
		binary = "tesseract"
	}
	if languages == "" {
		languages = "jpn+eng"
	}
	return &Tesseract{Binary: binary, Languages: languages}
}

func (t *Tesseract) Recognize(ctx context.Context, image []byte) *Job {
	return Start(ctx, func(ctx context.Context, report func(Progress)) (string, error) {
		report(Progress{Status: StatusInitializing, Percent: 0})
		path, err := exec.LookPath(t.Binary)
		if err != nil {
			return "", fmt.Errorf("tesseract not available: %w", err)
		}

		report(Progress{Status: StatusRecognizing, Percent: 0})
		cmd := exec.CommandContext(ctx, path, "stdin", "stdout", "-l", t.Languages)
		cmd.Stdin = bytes.NewReader(image)
		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
		if err := cmd.Run(); err != nil {
			return "", fmt.Errorf("tesseract: %w: %s", err, strings.TrimSpace(stderr.String()))
		}
		report(Progress{Status: StatusRecognizing, Percent: 100})
		return stdout.String(), nil
	})
}

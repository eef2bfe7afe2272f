package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"plower/internal/display"
)

// stdinInteractor answers prompts on the terminal for one-shot commands.
type stdinInteractor struct {
	in  *bufio.Reader
	out io.Writer
}

func newStdinInteractor(in io.Reader, out io.Writer) *stdinInteractor {
	return &stdinInteractor{in: bufio.NewReader(in), out: out}
}

func (s *stdinInteractor) PromptCredential(_ context.Context, message string) (string, bool, error) {
	display.Notice(s.out, display.Warning, message)
	fmt.Fprint(s.out, "API key (empty to cancel): ")
	line, err := s.readLine()
	if err != nil {
		return "", false, err
	}
	return line, line != "", nil
}

func (s *stdinInteractor) Confirm(_ context.Context, message string) (bool, error) {
	display.Notice(s.out, display.Warning, message)
	fmt.Fprint(s.out, "[y/N]: ")
	line, err := s.readLine()
	if err != nil {
		return false, err
	}
	switch strings.ToLower(line) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

// readLine treats end of input as an empty answer.
func (s *stdinInteractor) readLine() (string, error) {
	line, err := s.in.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

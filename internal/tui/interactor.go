package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
)

type credentialReply struct {
	value string
	ok    bool
}

// credentialRequest asks the UI for an API key on behalf of a worker.
type credentialRequest struct {
	message string
	reply   chan credentialReply
}

// confirmRequest asks the UI a yes/no question on behalf of a worker.
type confirmRequest struct {
	message string
	reply   chan bool
}

// Interactor answers domain prompts through the running TUI. Workers block
// until the user responds in the input line.
type Interactor struct {
	events chan tea.Msg
}

func NewInteractor() *Interactor {
	return &Interactor{events: make(chan tea.Msg, 64)}
}

func (i *Interactor) PromptCredential(ctx context.Context, message string) (string, bool, error) {
	req := credentialRequest{message: message, reply: make(chan credentialReply, 1)}
	if err := i.send(ctx, req); err != nil {
		return "", false, err
	}
	select {
	case r := <-req.reply:
		return r.value, r.ok, nil
	case <-ctx.Done():
		return "", false, ctx.Err()
	}
}

func (i *Interactor) Confirm(ctx context.Context, message string) (bool, error) {
	req := confirmRequest{message: message, reply: make(chan bool, 1)}
	if err := i.send(ctx, req); err != nil {
		return false, err
	}
	select {
	case ok := <-req.reply:
		return ok, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func (i *Interactor) send(ctx context.Context, msg tea.Msg) error {
	select {
	case i.events <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

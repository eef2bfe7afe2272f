// Package ocr recognizes text in images. Each recognition runs as a Job that
// reports progress on a channel closed when the job ends.
package ocr

import (
	"context"
	"sync"
)

// Progress is one status update of a running recognition.
type Progress struct {
	Status  string
	Percent int
}

// Status labels emitted by the recognizers.
const (
	StatusInitializing = "initializing api"
	StatusRecognizing  = "recognizing text"
	StatusDone         = "done"
)

// Recognizer extracts text from an encoded image.
type Recognizer interface {
	Recognize(ctx context.Context, image []byte) *Job
}

// Job is a single recognition. Progress events are for display only.
type Job struct {
	progress chan Progress
	done     chan struct{}
	once     sync.Once
	text     string
	err      error
}

func newJob() *Job {
	return &Job{progress: make(chan Progress, 8), done: make(chan struct{})}
}

// Progress returns the event stream. It is closed when the job finishes and
// cannot be restarted.
func (j *Job) Progress() <-chan Progress { return j.progress }

// Wait blocks until the job finishes.
func (j *Job) Wait() (string, error) {
	<-j.done
	return j.text, j.err
}

// Start runs fn in a goroutine and wraps it in a Job.
func Start(ctx context.Context, fn func(ctx context.Context, report func(Progress)) (string, error)) *Job {
	j := newJob()
	go func() {
		report := func(p Progress) {
			select {
			case j.progress <- p:
			case <-ctx.Done():
			}
		}
		text, err := fn(ctx, report)
		j.finish(text, err)
	}()
	return j
}

func (j *Job) finish(text string, err error) {
	j.once.Do(func() {
		j.text, j.err = text, err
		close(j.progress)
		close(j.done)
	})
}

// Drain forwards every progress event to fn and then waits for the result.
func Drain(j *Job, fn func(Progress)) (string, error) {
	for p := range j.Progress() {
		if fn != nil {
			fn(p)
		}
	}
	return j.Wait()
}

// Package service ties document retrieval, prompt assembly, model routing and
// response handling into the operations the user interfaces call.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"plower/internal/docstore"
	"plower/internal/domain"
	"plower/internal/llmclient"
	"plower/internal/ocr"
	"plower/internal/prompt"
	"plower/internal/ranker"
	"plower/internal/router"
	"plower/internal/stream"
)

// Config holds the retrieval settings of the service.
type Config struct {
	DefaultModel    string
	TopK            int
	MaxContextChars int
}

// AskRequest is one question for a model.
type AskRequest struct {
	Query   string
	ModelID string
	// PasteText is the free-text paste area; it joins the corpus for this
	// request only.
	PasteText string
}

// Answer is the completed reply to an AskRequest.
type Answer struct {
	RequestID string
	ModelID   string
	Backend   domain.Backend
	Text      string
	Sources   []domain.ScoredDocument
}

type RAGServiceImpl struct {
	cfg     Config
	store   *docstore.Store
	router  *router.Router
	client  *llmclient.Client
	ocr     ocr.Recognizer
	prompts *prompt.Builder
	log     *logrus.Logger
	now     func() time.Time

	busy atomic.Bool
}

func NewRAGService(cfg Config, store *docstore.Store, rt *router.Router, client *llmclient.Client, recognizer ocr.Recognizer, prompts *prompt.Builder, log *logrus.Logger) *RAGServiceImpl {
	if cfg.TopK <= 0 {
		cfg.TopK = ranker.DefaultTopK
	}
	if cfg.MaxContextChars <= 0 {
		cfg.MaxContextChars = prompt.DefaultMaxChars
	}
	return &RAGServiceImpl{
		cfg:     cfg,
		store:   store,
		router:  rt,
		client:  client,
		ocr:     recognizer,
		prompts: prompts,
		log:     log,
		now:     time.Now,
	}
}

// DefaultModel is the model used when a request names none.
func (s *RAGServiceImpl) DefaultModel() string { return s.cfg.DefaultModel }

// Busy reports whether a model request is in flight.
func (s *RAGServiceImpl) Busy() bool { return s.busy.Load() }

// Ask ranks the corpus against the query, builds the prompt and sends it to
// the routed backend. onPartial receives the cumulative text of streamed
// replies. Only one Ask runs at a time; a concurrent call fails with
// domain.ErrBusy.
func (s *RAGServiceImpl) Ask(ctx context.Context, req AskRequest, onPartial func(string)) (*Answer, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, domain.ErrEmptyQuery
	}
	if !s.busy.CompareAndSwap(false, true) {
		return nil, domain.ErrBusy
	}
	defer s.busy.Store(false)

	modelID := strings.TrimSpace(req.ModelID)
	if modelID == "" {
		modelID = s.cfg.DefaultModel
	}
	ans := &Answer{RequestID: uuid.NewString(), ModelID: modelID}
	log := s.log.WithFields(logrus.Fields{"request_id": ans.RequestID, "model": modelID})

	corpus := s.store.Corpus(req.PasteText)
	ans.Sources = ranker.Rank(query, corpus, s.cfg.TopK)
	p := s.prompts.Build(prompt.BuildContext(ans.Sources, s.cfg.MaxContextChars), query)
	log.WithFields(logrus.Fields{"documents": len(corpus), "prompt_chars": len([]rune(p))}).Info("sending question")

	route, err := s.router.Route(ctx, modelID)
	if err != nil {
		log.WithError(err).Warn("routing failed")
		return nil, err
	}
	ans.Backend = route.Backend

	body, err := s.client.Send(ctx, route.Backend, route.Request(p))
	if err != nil {
		log.WithError(err).Error("model request failed")
		if notice := s.router.Recover(ctx, route, err); notice != "" {
			return nil, &domain.NoticeError{Err: err, Notice: notice}
		}
		return nil, err
	}
	defer body.Close()

	text, err := stream.Consume(body, route.Streaming, onPartial)
	if err != nil {
		log.WithError(err).Error("reading model response failed")
		return nil, err
	}
	ans.Text = text
	log.WithField("answer_chars", len([]rune(text))).Info("answer received")
	return ans, nil
}

// PasteImage starts a new OCR batch with one image. Recognized text joins the
// ephemeral collection; nil is returned when the image held no text.
func (s *RAGServiceImpl) PasteImage(ctx context.Context, image []byte, onProgress func(ocr.Progress)) (*domain.Document, error) {
	s.store.BeginPaste()
	text, err := ocr.Drain(s.ocr.Recognize(ctx, image), onProgress)
	if err != nil {
		s.log.WithError(err).Warn("ocr failed")
		return nil, fmt.Errorf("%w: %w", domain.ErrOCRFailure, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	doc := domain.Document{
		Name:    fmt.Sprintf("一時貼付画像_%d", s.now().UnixMilli()),
		Content: text,
	}
	s.store.AddEphemeral(doc)
	s.log.WithFields(logrus.Fields{"name": doc.Name, "chars": len([]rune(text))}).Info("image text recognized")
	return &doc, nil
}

// SavePaste turns the OCR batch and the paste text into a durable memo.
func (s *RAGServiceImpl) SavePaste(ctx context.Context, pasteText string) (domain.Document, error) {
	return s.store.Promote(ctx, pasteText, s.now())
}

// Upload adds text files to the durable collection.
func (s *RAGServiceImpl) Upload(ctx context.Context, paths []string) (docstore.UploadResult, error) {
	return s.store.Upload(ctx, paths)
}

// Reset deletes every stored and temporary document.
func (s *RAGServiceImpl) Reset(ctx context.Context) error {
	return s.store.Reset(ctx)
}

// Documents returns the durable collection in insertion order.
func (s *RAGServiceImpl) Documents() []domain.Document {
	return s.store.Durable()
}

// Pending returns the documents of the current OCR batch.
func (s *RAGServiceImpl) Pending() []domain.Document {
	return s.store.Ephemeral()
}

// ClearCredential deletes the stored cloud API key.
func (s *RAGServiceImpl) ClearCredential(ctx context.Context) error {
	return s.router.ClearCredential(ctx)
}

// Describe converts an error from any operation into a message for the user.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	var notice *domain.NoticeError
	if errors.As(err, &notice) {
		return Describe(notice.Err) + "\n" + notice.Notice
	}

	var herr *domain.BackendHTTPError
	var berr *domain.BackendError
	switch {
	case errors.Is(err, domain.ErrEmptyQuery):
		return "Enter a question."
	case errors.Is(err, domain.ErrBusy):
		return "A request is already running. Wait for the answer before sending again."
	case errors.Is(err, domain.ErrCredentialMissing):
		return "No API key was entered, so the request was not sent."
	case errors.As(err, &herr):
		if herr.Backend == domain.BackendCloud {
			return fmt.Sprintf("Gemini API error (%d %s).\nDetail: %s", herr.Status, herr.StatusText, herr.Detail)
		}
		return fmt.Sprintf("Ollama error (%d %s). Check that the model is pulled.\nDetail: %s", herr.Status, herr.StatusText, herr.Detail)
	case errors.As(err, &berr):
		return "The model reported an error: " + berr.Message
	case errors.Is(err, domain.ErrUnrecognizedResponse):
		return "The model returned a response in an unexpected format."
	case errors.Is(err, domain.ErrOCRFailure):
		return "Text recognition failed: " + err.Error()
	case errors.Is(err, domain.ErrFileRead):
		return "A file could not be read, so no files were added: " + err.Error()
	case errors.Is(err, domain.ErrNothingToPromote):
		return "There is no recognized or pasted text to save."
	case errors.Is(err, domain.ErrStorageCorrupt):
		return "The stored documents could not be read and were ignored."
	case errors.Is(err, context.Canceled):
		return "Cancelled."
	}
	return "Error: " + err.Error()
}

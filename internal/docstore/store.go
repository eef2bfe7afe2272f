// Package docstore owns the durable and ephemeral document collections.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"plower/internal/domain"
)

// PasteDocumentName names the paste-area text when it joins the corpus.
const PasteDocumentName = "貼付けテキスト(一時)"

const pasteSectionName = "貼付テキスト"

// Config configures persistence.
type Config struct {
	DocumentsKey string
	// ExportDir, when set, also receives saved memos as files.
	ExportDir string
	// MaxFileBytes is the upload size limit.
	MaxFileBytes int64
}

// Store holds the durable collection (persisted) and the ephemeral
// collection (current OCR batch).
type Store struct {
	mu        sync.Mutex
	cfg       Config
	blobs     domain.BlobStore
	log       *logrus.Logger
	durable   []domain.Document
	ephemeral []domain.Document
}

func New(cfg Config, blobs domain.BlobStore, log *logrus.Logger) *Store {
	return &Store{cfg: cfg, blobs: blobs, log: log}
}

// Load restores the durable collection. Missing or corrupt data yields an
// empty collection; only blob store failures are returned.
func (s *Store) Load(ctx context.Context) error {
	data, err := s.blobs.Get(ctx, s.cfg.DocumentsKey)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.durable = nil
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load documents: %w", err)
	}
	docs, err := Decode(data)
	if err != nil {
		s.log.WithError(err).WithField("key", s.cfg.DocumentsKey).Error("stored documents are corrupt, starting empty")
		return nil
	}
	s.durable = docs
	s.log.WithField("documents", len(docs)).Debug("documents loaded")
	return nil
}

// Decode parses a persisted collection.
func Decode(data []byte) ([]domain.Document, error) {
	var docs []domain.Document
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageCorrupt, err)
	}
	return docs, nil
}

// Encode serializes a collection as a JSON array.
func Encode(docs []domain.Document) ([]byte, error) {
	if docs == nil {
		docs = []domain.Document{}
	}
	return json.Marshal(docs)
}

// Save persists the durable collection.
func (s *Store) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(ctx)
}

func (s *Store) saveLocked(ctx context.Context) error {
	data, err := Encode(s.durable)
	if err != nil {
		return fmt.Errorf("encode documents: %w", err)
	}
	if err := s.blobs.Put(ctx, s.cfg.DocumentsKey, data); err != nil {
		s.log.WithError(err).Error("failed to save documents")
		return fmt.Errorf("save documents: %w", err)
	}
	return nil
}

// Durable returns a copy of the durable collection.
func (s *Store) Durable() []domain.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Document(nil), s.durable...)
}

// Ephemeral returns a copy of the ephemeral collection.
func (s *Store) Ephemeral() []domain.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Document(nil), s.ephemeral...)
}

// AddDurable appends documents and persists the collection. Nothing is kept
// in memory when the save fails.
func (s *Store) AddDurable(ctx context.Context, docs ...domain.Document) error {
	if len(docs) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	before := len(s.durable)
	s.durable = append(s.durable, docs...)
	if err := s.saveLocked(ctx); err != nil {
		s.durable = s.durable[:before]
		return err
	}
	return nil
}

// BeginPaste starts a new OCR batch, dropping the previous one.
func (s *Store) BeginPaste() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ephemeral = nil
}

// AddEphemeral adds a document to the current OCR batch.
func (s *Store) AddEphemeral(doc domain.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ephemeral = append(s.ephemeral, doc)
}

// Corpus is everything a query is ranked against: durable, ephemeral, and
// the paste-area text as a temporary document.
func (s *Store) Corpus(pasteText string) []domain.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Document, 0, len(s.durable)+len(s.ephemeral)+1)
	out = append(out, s.durable...)
	out = append(out, s.ephemeral...)
	if p := strings.TrimSpace(pasteText); p != "" {
		out = append(out, domain.Document{Name: PasteDocumentName, Content: p})
	}
	return out
}

// MemoName is the file name given to a promoted memo.
func MemoName(now time.Time) string {
	return "plower_memo_" + now.Format("20060102_150405") + ".txt"
}

// Promote merges the OCR batch and the paste-area text into one memo
// document, appends it to the durable collection, and clears the batch.
func (s *Store) Promote(ctx context.Context, pasteText string, now time.Time) (domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sb strings.Builder
	for _, d := range s.ephemeral {
		writeMemoSection(&sb, d.Name, d.Content)
	}
	if p := strings.TrimSpace(pasteText); p != "" {
		writeMemoSection(&sb, pasteSectionName, p)
	}
	content := sb.String()
	if strings.TrimSpace(content) == "" {
		return domain.Document{}, domain.ErrNothingToPromote
	}

	memo := domain.Document{Name: MemoName(now), Content: content}
	before := len(s.durable)
	s.durable = append(s.durable, memo)
	if err := s.saveLocked(ctx); err != nil {
		s.durable = s.durable[:before]
		return domain.Document{}, err
	}
	s.ephemeral = nil

	if s.cfg.ExportDir != "" {
		if err := s.export(memo); err != nil {
			// the memo is already persisted; a failed copy only gets logged
			s.log.WithError(err).WithField("dir", s.cfg.ExportDir).Warn("failed to export memo")
		}
	}
	s.log.WithFields(logrus.Fields{"name": memo.Name, "chars": len(memo.Content)}).Info("memo saved")
	return memo, nil
}

func writeMemoSection(sb *strings.Builder, name, content string) {
	sb.WriteString("--- ファイル名: ")
	sb.WriteString(name)
	sb.WriteString(" ---\n")
	sb.WriteString(content)
	sb.WriteString("\n\n")
}

func (s *Store) export(memo domain.Document) error {
	if err := os.MkdirAll(s.cfg.ExportDir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.cfg.ExportDir, memo.Name), []byte(memo.Content), 0o644)
}

// Reset deletes the persisted collection and clears both collections.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.blobs.Delete(ctx, s.cfg.DocumentsKey); err != nil {
		return fmt.Errorf("reset documents: %w", err)
	}
	s.durable = nil
	s.ephemeral = nil
	s.log.Info("documents reset")
	return nil
}

package docstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"plower/internal/domain"
)

// DefaultMaxFileBytes is the upload limit when none is configured.
const DefaultMaxFileBytes = 10 * 1024 * 1024

// SkippedFile is an upload rejected for exceeding the size limit.
type SkippedFile struct {
	Name  string
	Size  int64
	Limit int64
}

// Notice is the user-facing explanation for the skip.
func (f SkippedFile) Notice() string {
	return fmt.Sprintf("%s (%s) exceeds the %s limit and was skipped",
		f.Name, humanize.IBytes(uint64(f.Size)), humanize.IBytes(uint64(f.Limit)))
}

// UploadResult reports what an upload batch did.
type UploadResult struct {
	Added   []domain.Document
	Skipped []SkippedFile
}

// Upload reads every file under the size limit as text and appends them to
// the durable collection in the given order. Oversized files are skipped. A
// read failure aborts the whole batch and nothing is added.
func (s *Store) Upload(ctx context.Context, paths []string) (UploadResult, error) {
	limit := s.cfg.MaxFileBytes
	if limit <= 0 {
		limit = DefaultMaxFileBytes
	}

	var res UploadResult
	var accepted []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return UploadResult{}, fmt.Errorf("%w: %s: %v", domain.ErrFileRead, p, err)
		}
		if info.IsDir() {
			return UploadResult{}, fmt.Errorf("%w: %s is a directory", domain.ErrFileRead, p)
		}
		if info.Size() > limit {
			res.Skipped = append(res.Skipped, SkippedFile{Name: filepath.Base(p), Size: info.Size(), Limit: limit})
			continue
		}
		accepted = append(accepted, p)
	}

	docs := make([]domain.Document, len(accepted))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range accepted {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			text, err := readText(p)
			if err != nil {
				return fmt.Errorf("%w: %s: %v", domain.ErrFileRead, p, err)
			}
			docs[i] = domain.Document{Name: filepath.Base(p), Content: text}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.log.WithError(err).Error("upload aborted")
		return UploadResult{}, err
	}

	if err := s.AddDurable(ctx, docs...); err != nil {
		return UploadResult{}, err
	}
	res.Added = docs
	s.log.WithFields(logrus.Fields{"added": len(res.Added), "skipped": len(res.Skipped)}).Info("upload finished")
	return res, nil
}

// readText decodes a file as UTF-8, honoring a byte order mark and replacing
// invalid sequences.
func readText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	decoded, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), data)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}

package docstore

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plower/internal/blobstore/memory"
	"plower/internal/domain"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestStore(t *testing.T, cfg Config) (*Store, *memory.Store) {
	t.Helper()
	if cfg.DocumentsKey == "" {
		cfg.DocumentsKey = "ragDocs"
	}
	blobs := memory.New()
	return New(cfg, blobs, quietLogger()), blobs
}

type failingBlobs struct {
	*memory.Store
	putErr error
}

func (f failingBlobs) Put(context.Context, string, []byte) error { return f.putErr }

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	st, blobs := newTestStore(t, Config{})
	docs := []domain.Document{
		{Name: "a.txt", Content: "alpha\nwith newline"},
		{Name: "b.txt", Content: "ベータ \"quoted\" <html>"},
		{Name: "a.txt", Content: ""},
	}
	require.NoError(t, st.AddDurable(ctx, docs...))

	reloaded := New(Config{DocumentsKey: "ragDocs"}, blobs, quietLogger())
	require.NoError(t, reloaded.Load(ctx))
	assert.Equal(t, docs, reloaded.Durable())
}

func TestStore_PersistedFormIsJSONArray(t *testing.T) {
	ctx := context.Background()
	st, blobs := newTestStore(t, Config{})
	require.NoError(t, st.AddDurable(ctx, domain.Document{Name: "n", Content: "c"}))

	raw, err := blobs.Get(ctx, "ragDocs")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"name":"n","content":"c"}]`, string(raw))
}

func TestStore_LoadMissingAndCorrupt(t *testing.T) {
	ctx := context.Background()

	t.Run("missing", func(t *testing.T) {
		st, _ := newTestStore(t, Config{})
		require.NoError(t, st.Load(ctx))
		assert.Empty(t, st.Durable())
	})

	t.Run("corrupt", func(t *testing.T) {
		st, blobs := newTestStore(t, Config{})
		require.NoError(t, blobs.Put(ctx, "ragDocs", []byte("{not json")))
		require.NoError(t, st.Load(ctx))
		assert.Empty(t, st.Durable())
	})

	t.Run("decode reports corruption", func(t *testing.T) {
		_, err := Decode([]byte("[1,2"))
		assert.ErrorIs(t, err, domain.ErrStorageCorrupt)
	})
}

func TestStore_AddDurableRollsBackOnSaveFailure(t *testing.T) {
	boom := errors.New("disk full")
	st := New(Config{DocumentsKey: "ragDocs"}, failingBlobs{Store: memory.New(), putErr: boom}, quietLogger())
	err := st.AddDurable(context.Background(), domain.Document{Name: "x", Content: "y"})
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, st.Durable())
}

func TestStore_CorpusIncludesEphemeralAndPaste(t *testing.T) {
	ctx := context.Background()
	st, _ := newTestStore(t, Config{})
	require.NoError(t, st.AddDurable(ctx, domain.Document{Name: "d", Content: "durable"}))
	st.AddEphemeral(domain.Document{Name: "img", Content: "ocr"})

	corpus := st.Corpus("  pasted text \n")
	require.Len(t, corpus, 3)
	assert.Equal(t, "d", corpus[0].Name)
	assert.Equal(t, "img", corpus[1].Name)
	assert.Equal(t, domain.Document{Name: PasteDocumentName, Content: "pasted text"}, corpus[2])

	assert.Len(t, st.Corpus("   "), 2)
}

func TestStore_BeginPasteClearsPreviousBatch(t *testing.T) {
	st, _ := newTestStore(t, Config{})
	st.AddEphemeral(domain.Document{Name: "old", Content: "x"})
	st.BeginPaste()
	assert.Empty(t, st.Ephemeral())
	st.AddEphemeral(domain.Document{Name: "new", Content: "y"})
	assert.Equal(t, []domain.Document{{Name: "new", Content: "y"}}, st.Ephemeral())
}

func TestStore_Promote(t *testing.T) {
	ctx := context.Background()
	exportDir := filepath.Join(t.TempDir(), "memos")
	st, _ := newTestStore(t, Config{ExportDir: exportDir})
	st.AddEphemeral(domain.Document{Name: "一時貼付画像_1", Content: "画像の文字"})
	now := time.Date(2024, 3, 5, 7, 8, 9, 0, time.Local)

	memo, err := st.Promote(ctx, " メモ ", now)
	require.NoError(t, err)

	assert.Equal(t, "plower_memo_20240305_070809.txt", memo.Name)
	assert.Equal(t,
		"--- ファイル名: 一時貼付画像_1 ---\n画像の文字\n\n--- ファイル名: 貼付テキスト ---\nメモ\n\n",
		memo.Content)
	assert.Empty(t, st.Ephemeral())
	assert.Equal(t, []domain.Document{memo}, st.Durable())

	exported, err := os.ReadFile(filepath.Join(exportDir, memo.Name))
	require.NoError(t, err)
	assert.Equal(t, memo.Content, string(exported))
}

func TestStore_PromoteNothing(t *testing.T) {
	st, _ := newTestStore(t, Config{})
	_, err := st.Promote(context.Background(), "  ", time.Now())
	assert.ErrorIs(t, err, domain.ErrNothingToPromote)
	assert.Empty(t, st.Durable())
}

func TestStore_Reset(t *testing.T) {
	ctx := context.Background()
	st, blobs := newTestStore(t, Config{})
	require.NoError(t, st.AddDurable(ctx, domain.Document{Name: "d", Content: "c"}))
	st.AddEphemeral(domain.Document{Name: "e", Content: "c"})

	require.NoError(t, st.Reset(ctx))
	assert.Empty(t, st.Durable())
	assert.Empty(t, st.Ephemeral())
	_, err := blobs.Get(ctx, "ragDocs")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_Upload(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	write := func(name string, data []byte) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, data, 0o644))
		return p
	}
	small := write("small.txt", []byte("hello"))
	bom := write("bom.txt", append([]byte{0xEF, 0xBB, 0xBF}, []byte("本文")...))
	big := write("big.txt", []byte(strings.Repeat("x", 64)))

	st, _ := newTestStore(t, Config{MaxFileBytes: 32})
	res, err := st.Upload(ctx, []string{small, big, bom})
	require.NoError(t, err)

	assert.Equal(t, []domain.Document{
		{Name: "small.txt", Content: "hello"},
		{Name: "bom.txt", Content: "本文"},
	}, res.Added)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, "big.txt", res.Skipped[0].Name)
	assert.Contains(t, res.Skipped[0].Notice(), "big.txt")
	assert.Equal(t, res.Added, st.Durable())
}

func TestStore_UploadAbortsWholeBatchOnReadFailure(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	ok := filepath.Join(dir, "ok.txt")
	require.NoError(t, os.WriteFile(ok, []byte("fine"), 0o644))

	st, _ := newTestStore(t, Config{})
	_, err := st.Upload(ctx, []string{ok, filepath.Join(dir, "missing.txt")})
	assert.ErrorIs(t, err, domain.ErrFileRead)
	assert.Empty(t, st.Durable())
}

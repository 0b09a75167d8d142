package loader

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/minisearch/pkg/errors"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func collect(t *testing.T, src Source) []index.Document {
	t.Helper()
	var docs []index.Document
	err := src.Load(context.Background(), func(d index.Document) error {
		docs = append(docs, d)
		return nil
	})
	require.NoError(t, err)
	return docs
}

func newTestFS(root string) *FS {
	return NewFS(FSOptions{
		Root:        root,
		Extensions:  []string{".txt", "md", ".HTML"},
		MaxFileSize: 1024,
		Workers:     3,
	})
}

func TestFSLoadOrderAndFilters(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "zeta.txt", "last")
	writeFile(t, root, "alpha_notes.txt", "first")
	writeFile(t, root, "sub/beta.md", "# beta")
	writeFile(t, root, "image.png", "binary")
	writeFile(t, root, ".git/config.txt", "hidden")
	writeFile(t, root, "big.txt", strings.Repeat("x", 2048))
	writeFile(t, root, "bad.txt", string([]byte{0xff, 0xfe, 0x00}))

	docs := collect(t, newTestFS(root))
	names := make([]string, len(docs))
	for i, d := range docs {
		names[i] = d.Filename
	}
	assert.Equal(t, []string{"alpha_notes.txt", "beta.md", "zeta.txt"}, names)

	assert.Equal(t, "alpha notes", docs[0].Title)
	assert.Equal(t, "first", docs[0].Body)
	assert.Equal(t, int64(5), docs[0].Size)
	assert.Equal(t, filepath.Join(root, "sub", "beta.md"), docs[1].Path)
}

func TestFSHTMLDocument(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "page.html", `<html><head><title> Rust  Guide </title>
<style>body{color:red}</style></head>
<body><h1>Ownership</h1><p>Borrowing rules.</p><script>var x = 1;</script></body></html>`)
	writeFile(t, root, "untitled.html", `<p>no title here</p>`)

	docs := collect(t, newTestFS(root))
	require.Len(t, docs, 2)
	assert.Equal(t, "Rust Guide", docs[0].Title)
	assert.Equal(t, "Ownership\nBorrowing rules.", docs[0].Body)
	assert.NotContains(t, docs[0].Body, "color")
	assert.NotContains(t, docs[0].Body, "var x")

	assert.Equal(t, "untitled", docs[1].Title)
	assert.Equal(t, "no title here", docs[1].Body)
}

func TestFSMissingDirectory(t *testing.T) {
	src := newTestFS(filepath.Join(t.TempDir(), "nope"))
	err := src.Load(context.Background(), func(index.Document) error { return nil })
	assert.ErrorIs(t, err, apperrors.ErrIndexUnavailable)

	file := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	err = newTestFS(file).Load(context.Background(), func(index.Document) error { return nil })
	assert.ErrorIs(t, err, apperrors.ErrIndexUnavailable)
}

func TestFSEmitErrorAborts(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", "a")
	writeFile(t, root, "b.txt", "b")
	stop := errors.New("stop")
	calls := 0
	err := newTestFS(root).Load(context.Background(), func(index.Document) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestFSCancelledContext(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", "a")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := newTestFS(root).Load(ctx, func(index.Document) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFSFingerprint(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", "alpha")
	src := newTestFS(root)

	first, err := src.Fingerprint(context.Background())
	require.NoError(t, err)
	again, err := src.Fingerprint(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, again)

	writeFile(t, root, "b.txt", "beta")
	changed, err := src.Fingerprint(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, first, changed)

	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(root, "a.txt"), future, future))
	touched, err := src.Fingerprint(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, changed, touched)
}

func TestTitleFromName(t *testing.T) {
	tests := map[string]string{
		"rust_ownership-guide.txt": "rust ownership guide",
		"dir/v1.2.notes.md":        "v1 2 notes",
		"plain":                    "plain",
	}
	for in, want := range tests {
		assert.Equal(t, want, titleFromName(in), in)
	}
}

type failingQuerier struct{}

func (failingQuerier) QueryContext(context.Context, string, ...any) (*sql.Rows, error) {
	return nil, errors.New("connection refused")
}

type failingDB struct{ err error }

func (d failingDB) ReadOnly(context.Context, func(*sql.Tx) error) error {
	return d.err
}

func TestPostgresQueryFailure(t *testing.T) {
	src := NewPostgres(failingDB{}, "SELECT id, title, body FROM documents ORDER BY id")
	assert.Equal(t, "postgres", src.Name())
	err := src.scan(context.Background(), failingQuerier{}, func(index.Document) error { return nil })
	assert.ErrorIs(t, err, apperrors.ErrIndexUnavailable)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestPostgresTransactionFailure(t *testing.T) {
	src := NewPostgres(failingDB{err: errors.New("too many connections")}, "SELECT 1")
	err := src.Load(context.Background(), func(index.Document) error { return nil })
	assert.ErrorIs(t, err, apperrors.ErrIndexUnavailable)
	assert.ErrorContains(t, err, "too many connections")
}

type pingingDB struct {
	failingDB
	pingErr error
}

func (d pingingDB) Ping(context.Context) error { return d.pingErr }

func TestPostgresPing(t *testing.T) {
	assert.NoError(t, NewPostgres(failingDB{}, "").Ping(context.Background()), "no Ping support counts as healthy")
	assert.NoError(t, NewPostgres(pingingDB{}, "").Ping(context.Background()))
	down := errors.New("down")
	assert.ErrorIs(t, NewPostgres(pingingDB{pingErr: down}, "").Ping(context.Background()), down)
}

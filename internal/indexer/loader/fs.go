package loader

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/minisearch/pkg/errors"
)

// FSOptions configures a filesystem source.
type FSOptions struct {
	Root        string
	Extensions  []string
	MaxFileSize int64
	Workers     int
}

// FS loads documents from a directory tree. Files are read in parallel but
// emitted in lexicographic order of their path relative to Root.
type FS struct {
	opts   FSOptions
	exts   map[string]struct{}
	logger *slog.Logger
}

type fileEntry struct {
	rel   string
	size  int64
	mtime int64
}

func NewFS(opts FSOptions) *FS {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	exts := make(map[string]struct{}, len(opts.Extensions))
	for _, e := range opts.Extensions {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts[e] = struct{}{}
	}
	return &FS{
		opts:   opts,
		exts:   exts,
		logger: slog.Default().With("component", "loader", "source", "fs"),
	}
}

func (f *FS) Name() string {
	return f.opts.Root
}

func (f *FS) Load(ctx context.Context, emit func(index.Document) error) error {
	files, err := f.scan(ctx, true)
	if err != nil {
		return err
	}

	docs := make([]*index.Document, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.opts.Workers)
	for i, fe := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			doc, err := f.read(fe)
			if err != nil {
				f.logger.Warn("skipping document", "path", fe.rel, "error", err)
				return nil
			}
			docs[i] = &doc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("loading documents from %s: %w", f.opts.Root, err)
	}

	for _, d := range docs {
		if d == nil {
			continue
		}
		if err := emit(*d); err != nil {
			return err
		}
	}
	return nil
}

// Fingerprint hashes the relative path, size and modification time of every
// eligible file.
func (f *FS) Fingerprint(ctx context.Context) (string, error) {
	files, err := f.scan(ctx, false)
	if err != nil {
		return "", err
	}
	h := sha256.New()
	for _, fe := range files {
		fmt.Fprintf(h, "%s\x00%d\x00%d\n", fe.rel, fe.size, fe.mtime)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (f *FS) scan(ctx context.Context, logSkips bool) ([]fileEntry, error) {
	info, err := os.Stat(f.opts.Root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.IndexUnavailablef("data directory %s does not exist", f.opts.Root)
		}
		return nil, apperrors.IndexUnavailablef("data directory %s is unreadable: %v", f.opts.Root, err)
	}
	if !info.IsDir() {
		return nil, apperrors.IndexUnavailablef("data directory %s is not a directory", f.opts.Root)
	}

	var files []fileEntry
	err = filepath.WalkDir(f.opts.Root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == f.opts.Root {
				return err
			}
			if logSkips {
				f.logger.Warn("skipping unreadable path", "path", path, "error", err)
			}
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != f.opts.Root && strings.HasPrefix(d.Name(), ".") {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if _, ok := f.exts[strings.ToLower(filepath.Ext(d.Name()))]; !ok {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			if logSkips {
				f.logger.Warn("skipping unreadable file", "path", path, "error", err)
			}
			return nil
		}
		if f.opts.MaxFileSize > 0 && fi.Size() > f.opts.MaxFileSize {
			if logSkips {
				f.logger.Warn("skipping oversized file", "path", path, "size", fi.Size(), "max", f.opts.MaxFileSize)
			}
			return nil
		}
		rel, err := filepath.Rel(f.opts.Root, path)
		if err != nil {
			return err
		}
		files = append(files, fileEntry{
			rel:   filepath.ToSlash(rel),
			size:  fi.Size(),
			mtime: fi.ModTime().UnixNano(),
		})
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, apperrors.IndexUnavailablef("scanning data directory %s: %v", f.opts.Root, err)
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].rel < files[j].rel
	})
	return files, nil
}

func (f *FS) read(fe fileEntry) (index.Document, error) {
	path := filepath.Join(f.opts.Root, filepath.FromSlash(fe.rel))
	data, err := os.ReadFile(path)
	if err != nil {
		return index.Document{}, fmt.Errorf("reading file: %w", err)
	}
	if !utf8.Valid(data) {
		return index.Document{}, fmt.Errorf("file is not valid UTF-8")
	}

	doc := index.Document{
		Filename: filepath.Base(path),
		Path:     path,
		Size:     int64(len(data)),
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		title, text, err := parseHTML(bytes.NewReader(data))
		if err != nil {
			return index.Document{}, err
		}
		doc.Title = title
		doc.Body = text
	default:
		doc.Body = string(data)
	}
	if doc.Title == "" {
		doc.Title = titleFromName(path)
	}
	return doc, nil
}

// Package loader discovers input documents and hands them to the index
// builder. A Source emits documents in a deterministic order so that
// identical inputs always produce identical document ids.
package loader

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/indexer/index"
)

// Source produces the documents of one index build. Load calls emit once
// per document, in id order, from a single goroutine. Returning an error
// from emit aborts the load.
type Source interface {
	Name() string
	Load(ctx context.Context, emit func(index.Document) error) error
}

// Fingerprinter is implemented by sources that can cheaply describe their
// current contents, so a persisted snapshot can be reused when nothing
// changed.
type Fingerprinter interface {
	Fingerprint(ctx context.Context) (string, error)
}

// titleFromName turns "rust_ownership-guide.txt" into "rust ownership guide".
func titleFromName(name string) string {
	stem := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	stem = strings.Map(func(r rune) rune {
		switch r {
		case '_', '-', '.':
			return ' '
		}
		return r
	}, stem)
	return strings.Join(strings.Fields(stem), " ")
}

package index

import (
	"sync/atomic"

	apperrors "github.com/Adithya-Monish-Kumar-K/minisearch/pkg/errors"
)

// Handle publishes the current Index. Readers grab a pointer once per
// request and keep using it even if a rebuild swaps in a new one.
type Handle struct {
	current atomic.Pointer[Index]
}

func NewHandle(ix *Index) *Handle {
	h := &Handle{}
	if ix != nil {
		h.current.Store(ix)
	}
	return h
}

// Load returns the published index or ErrIndexUnavailable.
func (h *Handle) Load() (*Index, error) {
	ix := h.current.Load()
	if ix == nil {
		return nil, apperrors.IndexUnavailablef("index has not been built")
	}
	return ix, nil
}

// Swap publishes ix and returns the previous index, if any.
func (h *Handle) Swap(ix *Index) *Index {
	return h.current.Swap(ix)
}

func (h *Handle) Ready() bool {
	return h.current.Load() != nil
}

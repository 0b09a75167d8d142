// Package paginator slices an ordered result list into 1-based pages.
package paginator

import (
	apperrors "github.com/Adithya-Monish-Kumar-K/minisearch/pkg/errors"
)

// MaxPageSize bounds a single response.
const MaxPageSize = 1000

// Page describes one window over a result list. Start and End are slice
// bounds into the full list.
type Page struct {
	Number       int
	Size         int
	TotalResults int
	TotalPages   int
	Start        int
	End          int
}

// TotalPages is ceil(total/size), and never less than 1.
func TotalPages(total, size int) int {
	if size < 1 || total <= 0 {
		return 1
	}
	return (total + size - 1) / size
}

// Paginate validates page and size against total and returns the window.
// Page 1 is always valid; a page beyond the last one is rejected rather than
// clamped.
func Paginate(total, page, size, maxSize int) (Page, error) {
	if maxSize <= 0 || maxSize > MaxPageSize {
		maxSize = MaxPageSize
	}
	if size < 1 || size > maxSize {
		return Page{}, apperrors.InvalidArgumentf("page size must be between 1 and %d, got %d", maxSize, size)
	}
	pages := TotalPages(total, size)
	if page < 1 || page > pages {
		return Page{}, apperrors.InvalidArgumentf("page %d is out of range, total pages is %d", page, pages)
	}
	start := (page - 1) * size
	end := min(start+size, total)
	if start > end {
		start = end
	}
	return Page{
		Number:       page,
		Size:         size,
		TotalResults: total,
		TotalPages:   pages,
		Start:        start,
		End:          end,
	}, nil
}

// Slice returns the items of p.
func Slice[T any](items []T, p Page) []T {
	if p.Start >= len(items) {
		return items[:0]
	}
	return items[p.Start:min(p.End, len(items))]
}

// Next returns the following page number, if any.
func (p Page) Next() (int, bool) {
	if p.Number < p.TotalPages {
		return p.Number + 1, true
	}
	return 0, false
}

// Prev returns the preceding page number, if any.
func (p Page) Prev() (int, bool) {
	if p.Number > 1 {
		return p.Number - 1, true
	}
	return 0, false
}

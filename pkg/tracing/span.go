// Package tracing records in-process stage timings for one request. Spans
// form a tree carried in the context; the finished tree is written to slog
// at debug level, one record per span.
package tracing

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type contextKey struct{}

// Span is a timed stage of a request.
type Span struct {
	Name     string
	TraceID  string
	Start    time.Time
	Duration time.Duration

	mu       sync.Mutex
	attrs    []any
	children []*Span
}

// Start begins a root span. traceID is usually the request id.
func Start(ctx context.Context, name, traceID string) (context.Context, *Span) {
	s := &Span{Name: name, TraceID: traceID, Start: time.Now()}
	return context.WithValue(ctx, contextKey{}, s), s
}

// StartChild begins a span under the one in ctx. Without a parent it
// behaves like Start with an empty trace id.
func StartChild(ctx context.Context, name string) (context.Context, *Span) {
	parent := FromContext(ctx)
	if parent == nil {
		return Start(ctx, name, "")
	}
	child := &Span{Name: name, TraceID: parent.TraceID, Start: time.Now()}
	parent.mu.Lock()
	parent.children = append(parent.children, child)
	parent.mu.Unlock()
	return context.WithValue(ctx, contextKey{}, child), child
}

func FromContext(ctx context.Context) *Span {
	s, _ := ctx.Value(contextKey{}).(*Span)
	return s
}

func (s *Span) End() {
	s.mu.Lock()
	s.Duration = time.Since(s.Start)
	s.mu.Unlock()
}

// SetAttr attaches a key/value pair that is logged with the span.
func (s *Span) SetAttr(key string, value any) {
	s.mu.Lock()
	s.attrs = append(s.attrs, key, value)
	s.mu.Unlock()
}

// Children returns a copy of the direct children.
func (s *Span) Children() []*Span {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Span(nil), s.children...)
}

// Walk visits s and its descendants depth-first. path is the slash-joined
// chain of span names from the root.
func (s *Span) Walk(fn func(path string, span *Span)) {
	s.walk("", fn)
}

func (s *Span) walk(prefix string, fn func(string, *Span)) {
	path := s.Name
	if prefix != "" {
		path = prefix + "/" + s.Name
	}
	fn(path, s)
	for _, c := range s.Children() {
		c.walk(path, fn)
	}
}

// Log writes the tree to logger at debug level. Nothing is formatted when
// debug is disabled.
func (s *Span) Log(ctx context.Context, logger *slog.Logger) {
	if !logger.Enabled(ctx, slog.LevelDebug) {
		return
	}
	s.Walk(func(path string, span *Span) {
		span.mu.Lock()
		args := []any{
			"trace_id", span.TraceID,
			"span", path,
			"duration_ms", float64(span.Duration.Microseconds()) / 1000,
		}
		args = append(args, span.attrs...)
		span.mu.Unlock()
		logger.DebugContext(ctx, "span", args...)
	})
}

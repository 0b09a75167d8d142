// Package grpc is the engine's RPC boundary: newline-delimited JSON
// requests and responses over a persistent TCP connection. Handlers are
// registered per "Service.Method" name and receive typed messages from
// pkg/proto, so RPC clients see the same payloads as HTTP and the command
// line.
//
//	s := grpc.NewServer()
//	grpc.Handle(s, "SearchService.Search", svc.Search)
//	go s.ListenAndServe(":9000")
//
//	c, _ := grpc.Dial(ctx, "localhost:9000")
//	var resp proto.SearchResponse
//	err := c.Call(ctx, "SearchService.Search", proto.SearchRequest{Query: "rust"}, &resp)
package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"slices"
	"sync"

	apperrors "github.com/Adithya-Monish-Kumar-K/minisearch/pkg/errors"
)

// HandlerFunc processes raw request params.
type HandlerFunc func(ctx context.Context, params json.RawMessage) (any, error)

type Request struct {
	Method string          `json:"method"`
	ID     string          `json:"id"`
	Params json.RawMessage `json:"params"`
}

type Response struct {
	ID    string          `json:"id"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error *Error          `json:"error,omitempty"`
}

// Error travels on the wire with a code so clients can restore the error
// class.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Server struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	listener net.Listener
	ctx      context.Context
	cancel   context.CancelFunc
	conns    sync.WaitGroup
	logger   *slog.Logger
}

func NewServer() *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		handlers: make(map[string]HandlerFunc),
		ctx:      ctx,
		cancel:   cancel,
		logger:   slog.Default().With("component", "rpc-server"),
	}
}

func (s *Server) Register(method string, handler HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = handler
}

// Handle registers a typed method: params decode into Req, the result is
// encoded as data.
func Handle[Req, Resp any](s *Server, method string, fn func(context.Context, Req) (Resp, error)) {
	s.Register(method, func(ctx context.Context, params json.RawMessage) (any, error) {
		var req Req
		if len(params) > 0 && string(params) != "null" {
			if err := json.Unmarshal(params, &req); err != nil {
				return nil, apperrors.InvalidArgumentf("decoding %s params: %v", method, err)
			}
		}
		return fn(ctx, req)
	})
}

// Methods lists the registered method names in sorted order.
func (s *Server) Methods() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.handlers))
	for m := range s.handlers {
		out = append(out, m)
	}
	slices.Sort(out)
	return out
}

func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Stop is called.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	if s.ctx.Err() != nil {
		// Stopped before the listener was published.
		ln.Close()
		return nil
	}
	s.logger.Info("rpc server listening", "addr", ln.Addr().String(), "methods", s.Methods())

	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Error("accept failed", "error", err)
			continue
		}
		s.conns.Add(1)
		go s.serveConn(conn)
	}
}

func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) serveConn(conn net.Conn) {
	defer s.conns.Done()
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-s.ctx.Done():
		case <-done:
		}
		conn.Close()
	}()

	dec := json.NewDecoder(conn)
	enc := json.NewEncoder(conn)
	for {
		var req Request
		if err := dec.Decode(&req); err != nil {
			return
		}
		resp := s.dispatch(req)
		if err := enc.Encode(resp); err != nil {
			s.logger.Error("write failed", "method", req.Method, "error", err)
			return
		}
	}
}

func (s *Server) dispatch(req Request) Response {
	resp := Response{ID: req.ID}
	s.mu.RLock()
	handler, ok := s.handlers[req.Method]
	s.mu.RUnlock()
	if !ok {
		resp.Error = &Error{Code: codeNotFound, Message: fmt.Sprintf("unknown method: %s", req.Method)}
		return resp
	}

	result, err := handler(s.ctx, req.Params)
	if err == nil {
		encoded, merr := json.Marshal(result)
		if merr == nil {
			resp.Data = encoded
			return resp
		}
		err = merr
	}
	resp.Error = toWire(err)
	if resp.Error.Code == codeInternal {
		s.logger.Error("rpc failed", "method", req.Method, "error", err)
	}
	return resp
}

// Stop closes the listener and every open connection, then waits for
// connection goroutines to exit.
func (s *Server) Stop() {
	s.cancel()
	s.mu.RLock()
	ln := s.listener
	s.mu.RUnlock()
	if ln != nil {
		ln.Close()
	}
	s.conns.Wait()
	s.logger.Info("rpc server stopped")
}

const (
	codeInvalidArgument  = "invalid_argument"
	codeIndexUnavailable = "index_unavailable"
	codeNotFound         = "not_found"
	codeTimeout          = "timeout"
	codeInternal         = "internal"
)

func toWire(err error) *Error {
	code := codeInternal
	switch {
	case errors.Is(err, apperrors.ErrInvalidArgument):
		code = codeInvalidArgument
	case errors.Is(err, apperrors.ErrIndexUnavailable):
		code = codeIndexUnavailable
	case errors.Is(err, apperrors.ErrNotFound):
		code = codeNotFound
	case errors.Is(err, apperrors.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		code = codeTimeout
	}
	return &Error{Code: code, Message: apperrors.Message(err)}
}

func fromWire(e *Error) error {
	switch e.Code {
	case codeInvalidArgument:
		return apperrors.InvalidArgumentf("%s", e.Message)
	case codeIndexUnavailable:
		return apperrors.IndexUnavailablef("%s", e.Message)
	case codeNotFound:
		return fmt.Errorf("%w: %s", apperrors.ErrNotFound, e.Message)
	case codeTimeout:
		return fmt.Errorf("%w: %s", apperrors.ErrTimeout, e.Message)
	default:
		return fmt.Errorf("%w: %s", apperrors.ErrInternal, e.Message)
	}
}

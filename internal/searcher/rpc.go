package searcher

import (
	"context"

	"github.com/Adithya-Monish-Kumar-K/minisearch/pkg/grpc"
	"github.com/Adithya-Monish-Kumar-K/minisearch/pkg/proto"
)

const (
	MethodSearch       = "SearchService.Search"
	MethodAutocomplete = "SearchService.Autocomplete"
	MethodStatus       = "SearchService.Status"
)

// Backend is what the command line queries: a local Service or a Remote
// one behind the RPC server.
type Backend interface {
	Search(ctx context.Context, req proto.SearchRequest) (*proto.SearchResponse, error)
	Autocomplete(ctx context.Context, req proto.AutocompleteRequest) (*proto.AutocompleteResponse, error)
	Status(ctx context.Context) (*proto.StatusResponse, error)
}

// RegisterRPC exposes svc on s.
func RegisterRPC(s *grpc.Server, svc *Service) {
	grpc.Handle(s, MethodSearch, svc.Search)
	grpc.Handle(s, MethodAutocomplete, svc.Autocomplete)
	grpc.Handle(s, MethodStatus, func(ctx context.Context, _ proto.StatusRequest) (*proto.StatusResponse, error) {
		return svc.Status(ctx)
	})
}

// Remote calls a serve-mode instance over RPC.
type Remote struct {
	client *grpc.Client
}

func DialRemote(ctx context.Context, addr string) (*Remote, error) {
	c, err := grpc.Dial(ctx, addr)
	if err != nil {
		return nil, err
	}
	return &Remote{client: c}, nil
}

func (r *Remote) Search(ctx context.Context, req proto.SearchRequest) (*proto.SearchResponse, error) {
	var resp proto.SearchResponse
	if err := r.client.Call(ctx, MethodSearch, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (r *Remote) Autocomplete(ctx context.Context, req proto.AutocompleteRequest) (*proto.AutocompleteResponse, error) {
	var resp proto.AutocompleteResponse
	if err := r.client.Call(ctx, MethodAutocomplete, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (r *Remote) Status(ctx context.Context) (*proto.StatusResponse, error) {
	var resp proto.StatusResponse
	if err := r.client.Call(ctx, MethodStatus, proto.StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (r *Remote) Close() error {
	return r.client.Close()
}

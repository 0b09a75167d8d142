package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/auth/apikey"
	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/searcher"
	"github.com/Adithya-Monish-Kumar-K/minisearch/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/minisearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/minisearch/pkg/grpc"
	"github.com/Adithya-Monish-Kumar-K/minisearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/minisearch/pkg/proto"
)

func dataDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"rust_intro.txt": "Systems programming with ownership.",
		"notes.txt":      "rust rust rust rust rust and more text",
		"cooking.md":     "bread and butter",
	}
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	return dir
}

func run(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := Execute(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestSearchCommand(t *testing.T) {
	code, out, _ := run(t, "--data-dir", dataDir(t), "--search", "rust", "--topK", "10", "--page", "1")
	require.Equal(t, 0, code)

	var resp proto.SearchResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "rust", resp.Query)
	assert.Equal(t, proto.ModeExact, resp.Mode)
	assert.Equal(t, 2, resp.TotalResults)
	assert.Equal(t, 2, resp.Count)
	assert.Equal(t, 1, resp.TotalPages)
	var names []string
	for _, r := range resp.Results {
		names = append(names, r.Filename)
	}
	assert.ElementsMatch(t, []string{"notes.txt", "rust_intro.txt"}, names)
}

func TestPrefixSearchCommand(t *testing.T) {
	code, out, _ := run(t, "--data-dir", dataDir(t), "--prefixsearch", "own", "--expandLimit", "5")
	require.Equal(t, 0, code)

	var resp proto.SearchResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "own", resp.Prefix)
	assert.Equal(t, []string{"ownership"}, resp.ExpandedTerms)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "rust_intro.txt", resp.Results[0].Filename)
}

func TestAutocompleteCommand(t *testing.T) {
	code, out, _ := run(t, "--data-dir", dataDir(t), "--autocomplete", "ru", "--limit", "3")
	require.Equal(t, 0, code)

	var resp proto.AutocompleteResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, []string{"rust"}, resp.Suggestions)
}

func TestStatusWithoutMode(t *testing.T) {
	code, out, _ := run(t, "--data-dir", dataDir(t))
	require.Equal(t, 0, code)

	var resp proto.StatusResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ready", resp.Status)
	assert.Equal(t, 3, resp.Documents)
	assert.NotEmpty(t, resp.BuildID)
}

func TestCommandErrors(t *testing.T) {
	dir := dataDir(t)
	tests := []struct {
		name string
		args []string
		code int
	}{
		{"zero topK", []string{"--data-dir", dir, "--search", "rust", "--topK", "0"}, apperrors.ExitInvalidArgument},
		{"negative limit", []string{"--data-dir", dir, "--autocomplete", "ru", "--limit", "-1"}, apperrors.ExitInvalidArgument},
		{"non-numeric page", []string{"--data-dir", dir, "--search", "rust", "--page", "two"}, apperrors.ExitInvalidArgument},
		{"two modes", []string{"--data-dir", dir, "--search", "rust", "--autocomplete", "ru"}, apperrors.ExitInvalidArgument},
		{"page out of range", []string{"--data-dir", dir, "--search", "rust", "--page", "5"}, apperrors.ExitInvalidArgument},
		{"blank query", []string{"--data-dir", dir, "--search", "  "}, apperrors.ExitInvalidArgument},
		{"unknown flag", []string{"--data-dir", dir, "--fuzzy", "rust"}, apperrors.ExitInvalidArgument},
		{"positional argument", []string{"--data-dir", dir, "rust"}, apperrors.ExitInvalidArgument},
		{"bad match policy", []string{"--data-dir", dir, "--match", "most", "--search", "rust"}, apperrors.ExitInvalidArgument},
		{"missing data dir", []string{"--data-dir", filepath.Join(dir, "nope"), "--search", "rust"}, apperrors.ExitIndexUnavailable},
		{"empty data dir", []string{"--data-dir", t.TempDir(), "--search", "rust"}, apperrors.ExitIndexUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, out, errOut := run(t, tt.args...)
			assert.Equal(t, tt.code, code)
			assert.Empty(t, out)
			assert.Contains(t, errOut, "error: ")
		})
	}
}

func TestZeroResultsIsNotAnError(t *testing.T) {
	code, out, _ := run(t, "--data-dir", dataDir(t), "--search", "haskell")
	require.Equal(t, 0, code)

	var resp proto.SearchResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, 0, resp.TotalResults)
	assert.Equal(t, 1, resp.TotalPages)
	assert.NotNil(t, resp.Results)
}

func TestRemoteBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Indexer.DataDir = dataDir(t)
	engine, closeSource, err := newEngine(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer closeSource()
	ix, err := engine.Build(context.Background())
	require.NoError(t, err)

	srv := grpc.NewServer()
	searcher.RegisterRPC(srv, searcher.New(index.NewHandle(ix), searcher.OptionsFromConfig(cfg), nil, nil, nil))
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(srv.Stop)

	code, out, _ := run(t, "--remote", ln.Addr().String(), "--autocomplete", "bu")
	require.Equal(t, 0, code)
	var resp proto.AutocompleteResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, []string{"butter"}, resp.Suggestions)

	code, _, errOut := run(t, "--remote", ln.Addr().String(), "--search", "rust", "--page", "3")
	assert.Equal(t, apperrors.ExitInvalidArgument, code)
	assert.Contains(t, errOut, "error: ")
}

func TestRebuildHandler(t *testing.T) {
	cfg := config.Default()
	cfg.Indexer.DataDir = dataDir(t)
	engine, closeSource, err := newEngine(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer closeSource()

	handle := index.NewHandle(nil)
	rb := &rebuilder{engine: engine, handle: handle}
	handleMsg := rebuildHandler(rb)

	require.NoError(t, handleMsg(context.Background(), nil, []byte("not json")))
	assert.False(t, handle.Ready(), "malformed requests are skipped")

	payload, err := json.Marshal(kafka.RebuildRequest{Reason: "test"})
	require.NoError(t, err)
	require.NoError(t, handleMsg(context.Background(), nil, payload))
	assert.True(t, handle.Ready())

	require.NoError(t, os.RemoveAll(cfg.Indexer.DataDir))
	assert.Error(t, handleMsg(context.Background(), nil, payload))
	assert.True(t, handle.Ready(), "a failed rebuild keeps the previous index")
}

func TestKeygen(t *testing.T) {
	code, out, _ := run(t, "keygen")
	require.Equal(t, 0, code)

	var got map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Len(t, got["key"], 64)
	assert.Equal(t, apikey.HashKey(got["key"]), got["hash"])
}

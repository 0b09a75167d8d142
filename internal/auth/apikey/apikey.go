// Package apikey protects the serve-mode admin endpoints (reload, cache
// invalidation). Only SHA-256 hashes of keys are configured; raw keys are
// generated once with crypto/rand and handed to the operator.
package apikey

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/minisearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/minisearch/pkg/proto"
)

const Header = "X-API-Key"

var ErrInvalidKey = errors.New("invalid api key")

// Validator checks presented keys against a fixed set of hashes.
type Validator struct {
	hashes [][]byte
	logger *slog.Logger
}

// NewValidator accepts hex-encoded SHA-256 hashes. An empty set yields a
// Validator that is disabled, see Enabled.
func NewValidator(hashes []string) (*Validator, error) {
	v := &Validator{logger: slog.Default().With("component", "apikey")}
	for _, h := range hashes {
		h = strings.ToLower(strings.TrimSpace(h))
		if h == "" {
			continue
		}
		raw, err := hex.DecodeString(h)
		if err != nil || len(raw) != sha256.Size {
			return nil, fmt.Errorf("admin key hash %q is not a hex SHA-256 digest", h)
		}
		v.hashes = append(v.hashes, raw)
	}
	return v, nil
}

func (v *Validator) Enabled() bool {
	return len(v.hashes) > 0
}

// Validate returns ErrInvalidKey unless raw hashes to a configured digest.
// Every digest is compared in constant time.
func (v *Validator) Validate(raw string) error {
	if raw == "" {
		return ErrInvalidKey
	}
	sum := sha256.Sum256([]byte(raw))
	match := 0
	for _, h := range v.hashes {
		match |= subtle.ConstantTimeCompare(sum[:], h)
	}
	if match != 1 {
		return ErrInvalidKey
	}
	return nil
}

// Require rejects requests without a valid key with 401. The key is read
// from X-API-Key or an "Authorization: Bearer" header. A disabled Validator
// lets everything through.
func Require(v *Validator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !v.Enabled() {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := v.Validate(keyFrom(r)); err != nil {
				logger.FromContext(r.Context()).Warn("admin request rejected", "path", r.URL.Path, "remote", r.RemoteAddr)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(proto.ErrorResponse{Error: err.Error(), Code: "unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func keyFrom(r *http.Request) string {
	if k := r.Header.Get(Header); k != "" {
		return k
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return ""
}

// HashKey returns the hex SHA-256 digest of raw, the form stored in config.
func HashKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Generate returns a random 32-byte key, hex encoded.
func Generate() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating api key: %w", err)
	}
	return hex.EncodeToString(b), nil
}

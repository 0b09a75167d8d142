package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"invalid argument", InvalidArgumentf("page %d out of range", 5), ExitInvalidArgument},
		{"wrapped invalid argument", fmt.Errorf("search: %w", ErrInvalidArgument), ExitInvalidArgument},
		{"index unavailable", IndexUnavailablef("no documents"), ExitIndexUnavailable},
		{"other", fmt.Errorf("boom"), ExitInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestHTTPStatusCode(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, HTTPStatusCode(InvalidArgumentf("x")))
	assert.Equal(t, http.StatusServiceUnavailable, HTTPStatusCode(fmt.Errorf("wrap: %w", ErrIndexUnavailable)))
	assert.Equal(t, http.StatusTooManyRequests, HTTPStatusCode(ErrRateLimited))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatusCode(fmt.Errorf("boom")))
}

func TestMessage(t *testing.T) {
	err := fmt.Errorf("handling request: %w", InvalidArgumentf("limit must be in [1, %d]", 1000))
	assert.Equal(t, "limit must be in [1, 1000]", Message(err))
	assert.Equal(t, "plain", Message(fmt.Errorf("plain")))
}

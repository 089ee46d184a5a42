package errors

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", Wrap(ErrNotFound, "job 405690"), http.StatusNotFound},
		{"identity conflict", Wrapf(ErrIdentityConflict, "external id %s", "405690"), http.StatusConflict},
		{"duplicate", ErrDuplicate, http.StatusConflict},
		{"invalid input", Wrap(ErrInvalidInput, "top_k"), http.StatusBadRequest},
		{"missing data", MissingData("job-1", "city"), http.StatusUnprocessableEntity},
		{"unauthorized", ErrUnauthorized, http.StatusUnauthorized},
		{"rate limited", Wrap(ErrRateLimited, "acme"), http.StatusTooManyRequests},
		{"timeout", ErrTimeout, http.StatusServiceUnavailable},
		{"app error", NewApp(ErrInvalidInput, http.StatusTooManyRequests, "slow down"), http.StatusTooManyRequests},
		{"unknown", context.Canceled, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatusCode(tt.err))
		})
	}
}

func TestMissingDataError(t *testing.T) {
	err := Wrap(MissingData("cand-7", "city", "location"), "ranking")

	var md *MissingDataError
	assert.True(t, As(err, &md))
	assert.Equal(t, "cand-7", md.DocumentID)
	assert.Equal(t, []string{"city", "location"}, md.Fields)
	assert.True(t, Is(err, ErrMissingData))
	assert.Contains(t, err.Error(), "city")
}

func TestAppErrorUnwraps(t *testing.T) {
	err := NewAppf(ErrNotFound, http.StatusNotFound, "tenant %s", "acme")
	assert.True(t, Is(err, ErrNotFound))
	assert.Equal(t, "not found: tenant acme", err.Error())
}

package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err    *Error
		status int
	}{
		{Validation("email", "Email is required"), http.StatusBadRequest},
		{NotFound("service.not_found", "Service not found"), http.StatusNotFound},
		{Authentication("Invalid signature"), http.StatusUnauthorized},
		{Authorization("Admin role required"), http.StatusForbidden},
		{Database(errors.New("conn refused")), http.StatusInternalServerError},
		{Network(errors.New("timeout"), true), http.StatusServiceUnavailable},
		{Payment("BAD_REQUEST_ERROR", "Payment could not be created", nil), http.StatusInternalServerError},
		{RateLimited(2 * time.Second), http.StatusTooManyRequests},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.status, tc.err.HTTPStatus(), tc.err.Code)
	}
}

func TestRetryClassification(t *testing.T) {
	assert.True(t, IsRetryable(Database(errors.New("deadlock"))))
	assert.True(t, IsRetryable(Network(errors.New("timeout"), true)))
	assert.False(t, IsRetryable(Network(errors.New("dns failure"), false)))
	assert.False(t, IsRetryable(Validation("phone", "Phone is required")))
	assert.False(t, IsRetryable(Payment("GATEWAY_ERROR", "declined", nil)))
	assert.False(t, IsRetryable(nil))

	// bare errors default to retryable storage failures
	assert.True(t, IsRetryable(errors.New("something broke")))
}

func TestWrap(t *testing.T) {
	bare := errors.New("write: broken pipe")
	wrapped := Wrap(bare)
	assert.Equal(t, KindDatabase, wrapped.Kind)
	assert.True(t, errors.Is(wrapped, bare))

	typed := Payment("SERVER_ERROR", "gateway unavailable", nil)
	assert.Same(t, typed, Wrap(typed))

	// typed errors survive further wrapping
	deep := fmt.Errorf("create intent: %w", typed)
	assert.Same(t, typed, Wrap(deep))

	assert.Nil(t, Wrap(nil))
}

func TestUnwrapChain(t *testing.T) {
	cause := errors.New("i/o timeout")
	err := Network(cause, true)
	assert.True(t, errors.Is(err, cause))

	var appErr *Error
	assert.True(t, errors.As(fmt.Errorf("outer: %w", err), &appErr))
	assert.Equal(t, KindNetwork, appErr.Kind)
}

package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
)

func TestStatusCode(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{Validation("bad"), fiber.StatusBadRequest},
		{NotFound("missing"), fiber.StatusNotFound},
		{Unauthorized("no"), fiber.StatusUnauthorized},
		{Forbidden("denied"), fiber.StatusForbidden},
		{LimitExceeded("limit"), fiber.StatusForbidden},
		{Conflict("exists"), fiber.StatusConflict},
		{Upstream("gateway", errors.New("boom")), fiber.StatusBadGateway},
		{Incomplete("partial"), fiber.StatusInternalServerError},
		{errors.New("plain"), fiber.StatusInternalServerError},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, StatusCode(tc.err))
	}
}

func TestIsKindThroughWrapping(t *testing.T) {
	err := fmt.Errorf("outer: %w", LimitExceeded("limit"))
	assert.True(t, IsKind(err, KindLimitExceeded))
	assert.False(t, IsKind(err, KindNotFound))
	assert.False(t, IsKind(errors.New("plain"), KindNotFound))
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "missing", NotFound("missing").Error())

	wrapped := Upstream("gateway failed", errors.New("timeout"))
	assert.Equal(t, "gateway failed: timeout", wrapped.Error())
	assert.Equal(t, "timeout", errors.Unwrap(wrapped).Error())
}

package session

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKind_StatusAndName(t *testing.T) {
	cases := []struct {
		kind   Kind
		name   string
		status int
	}{
		{KindAuthentication, "AuthenticationError", http.StatusUnauthorized},
		{KindTokenExpired, "TokenExpiredError", http.StatusUnauthorized},
		{KindJSONWebToken, "JsonWebTokenError", http.StatusUnauthorized},
		{KindNotFound, "NotFoundError", http.StatusNotFound},
		{KindConflict, "ConflictError", http.StatusConflict},
		{KindValidation, "ValidationError", http.StatusBadRequest},
		{KindForbidden, "ForbiddenError", http.StatusForbidden},
		{KindServer, "ServerError", http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.name, tc.kind.String())
		assert.Equal(t, tc.status, tc.kind.Status())
	}
}

func TestError_UnwrapAndAs(t *testing.T) {
	err := fmt.Errorf("refresh: %w", newError(KindNotFound, TokenTypeRefresh, "device not registered for this session", ErrDeviceNotRegistered))

	assert.ErrorIs(t, err, ErrDeviceNotRegistered)

	e, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindNotFound, e.Kind)
	assert.True(t, e.ClearsCookies())
	assert.Equal(t, "NotFoundError: device not registered for this session", e.Error())

	_, ok = AsError(errors.New("plain"))
	assert.False(t, ok)
}

func TestError_OnlyRefreshFailuresClearCookies(t *testing.T) {
	assert.False(t, newError(KindTokenExpired, TokenTypeAccess, "token expired", nil).ClearsCookies())
	assert.False(t, newError(KindAuthentication, TokenTypeGeneric, "invalid username or password", nil).ClearsCookies())
	assert.True(t, newError(KindTokenExpired, TokenTypeRefresh, "token expired", nil).ClearsCookies())
}

func TestServerError_HidesCause(t *testing.T) {
	cause := errors.New("dial tcp 10.0.0.5:5432: connection refused")
	e := serverError(cause)
	assert.NotContains(t, e.Error(), "10.0.0.5")
	assert.ErrorIs(t, e, cause)
}

package authapi

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.9:51234"
	r.Header.Set("X-Forwarded-For", "garbage, 203.0.113.7, 10.0.0.1")
	r.Header.Set("X-Real-IP", "198.51.100.4")

	assert.Equal(t, "10.0.0.9", ipString(clientIP(r, false)))
	assert.Equal(t, "203.0.113.7", ipString(clientIP(r, true)))

	r.Header.Del("X-Forwarded-For")
	assert.Equal(t, "198.51.100.4", ipString(clientIP(r, true)))

	r.RemoteAddr = "not-an-addr"
	assert.Equal(t, "", ipString(clientIP(r, false)))
}

func TestBearerToken(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	assert.Equal(t, "", bearerToken(r))

	r.Header.Set("Authorization", "bearer  abc:def:012 ")
	assert.Equal(t, "abc:def:012", bearerToken(r))

	r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	assert.Equal(t, "", bearerToken(r))
}

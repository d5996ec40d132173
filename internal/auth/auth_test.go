package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestGate(username, password string) *Gate {
	ts := NewTokenStore("pepper", time.Hour, time.Hour)
	creds := Credentials{Username: username, PasswordHash: HashPassword(password, ts.salt), Salt: ts.salt}
	return NewGate(creds, ts, OriginLAN)
}

func TestNoCredentialsConfiguredAllowsAnyRequest(t *testing.T) {
	g := newTestGate("", "")
	r := httptest.NewRequest(http.MethodGet, "/api/apps", nil)
	r.RemoteAddr = "127.0.0.1:5000"

	result, _, _ := g.Authenticate(r)
	require.Equal(t, Allow, result)
}

func TestOriginGateRejectsOutOfScopeRemote(t *testing.T) {
	g := newTestGate("admin", "hunter2")
	r := httptest.NewRequest(http.MethodGet, "/api/apps", nil)
	r.RemoteAddr = "8.8.8.8:5000"

	result, _, _ := g.Authenticate(r)
	require.Equal(t, Forbidden, result)
}

func TestBasicAuthSucceedsWithCorrectCredentials(t *testing.T) {
	g := newTestGate("admin", "hunter2")
	r := httptest.NewRequest(http.MethodGet, "/api/apps", nil)
	r.RemoteAddr = "127.0.0.1:5000"
	r.SetBasicAuth("Admin", "hunter2")

	result, _, _ := g.Authenticate(r)
	require.Equal(t, Allow, result)
}

func TestBasicAuthFailsWithWrongPassword(t *testing.T) {
	g := newTestGate("admin", "hunter2")
	r := httptest.NewRequest(http.MethodGet, "/api/apps", nil)
	r.RemoteAddr = "127.0.0.1:5000"
	r.SetBasicAuth("admin", "wrong")

	result, _, _ := g.Authenticate(r)
	require.Equal(t, Unauthorized, result)
}

func TestSessionCookieGrantsAccess(t *testing.T) {
	g := newTestGate("admin", "hunter2")
	raw, _, err := g.Tokens.CreateSession("admin", "ua", "127.0.0.1:5000")
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/api/apps", nil)
	r.RemoteAddr = "127.0.0.1:5000"
	r.AddCookie(&http.Cookie{Name: SessionCookieName, Value: raw})

	result, tok, _ := g.Authenticate(r)
	require.Equal(t, Allow, result)
	require.Equal(t, "admin", tok.Username)
}

func TestSessionHeaderGrantsAccess(t *testing.T) {
	g := newTestGate("admin", "hunter2")
	raw, _, err := g.Tokens.CreateSession("admin", "ua", "127.0.0.1:5000")
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/api/apps", nil)
	r.RemoteAddr = "127.0.0.1:5000"
	r.Header.Set("Authorization", "Session "+raw)

	result, tok, _ := g.Authenticate(r)
	require.Equal(t, Allow, result)
	require.Equal(t, "admin", tok.Username)
}

func TestMissingCredentialsReturnsUnauthorized(t *testing.T) {
	g := newTestGate("admin", "hunter2")
	r := httptest.NewRequest(http.MethodGet, "/api/apps", nil)
	r.RemoteAddr = "127.0.0.1:5000"

	result, _, _ := g.Authenticate(r)
	require.Equal(t, Unauthorized, result)
}

package auth

import (
	"net"
	"net/http"
	"strings"
)

// Result is the outcome of a per-request auth check.
type Result int

const (
	Allow Result = iota
	Unauthorized
	Forbidden
	RedirectToLogin
)

// OriginScope controls how aggressively the origin gate restricts remote
// callers.
type OriginScope string

const (
	OriginLAN    OriginScope = "lan"
	OriginWAN    OriginScope = "wan"
	OriginLocal  OriginScope = "pc"
)

// Gate evaluates the three-layer auth policy:
// origin, then credentials, then per-request token/session/basic check.
type Gate struct {
	Creds  Credentials
	Tokens *TokenStore
	Scope  OriginScope
}

// NewGate builds a Gate bound to a credentials record and token store.
func NewGate(creds Credentials, tokens *TokenStore, scope OriginScope) *Gate {
	return &Gate{Creds: creds, Tokens: tokens, Scope: scope}
}

// CheckOrigin classifies remoteAddr against Scope; a
// caller outside the allowed scope is rejected with 403 before credentials
// are even consulted.
func (g *Gate) CheckOrigin(remoteAddr string) bool {
	if g.Scope == OriginWAN {
		return true
	}
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	if g.Scope == OriginLocal {
		return ip.IsLoopback()
	}
	// OriginLAN (default): loopback or private/link-local ranges.
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast()
}

// CredentialsConfigured reports whether a username has been set; an empty
// username means first-run, no auth enforced.
func (g *Gate) CredentialsConfigured() bool { return g.Creds.Username != "" }

// CheckBasic validates HTTP Basic credentials against the configured user,
// comparing the username case-insensitively and the password hash in
// constant time.
func (g *Gate) CheckBasic(username, password string) bool {
	if !g.CredentialsConfigured() {
		return false
	}
	if !strings.EqualFold(username, g.Creds.Username) {
		return false
	}
	return ConstantTimeEqual(HashPassword(password, g.Tokens.salt), g.Creds.PasswordHash)
}

// Authenticate implements the full per-request auth decision for r, given
// that the endpoint requires auth at all: Basic, then Session
// cookie/header, then Bearer API token. The 307 redirect is only
// used by the caller for a browser GET; Authenticate itself never returns
// RedirectToLogin, the HTTP layer decides that from Unauthorized + method.
func (g *Gate) Authenticate(r *http.Request) (Result, *SessionToken, *ApiToken) {
	if !g.CheckOrigin(r.RemoteAddr) {
		return Forbidden, nil, nil
	}

	if !g.CredentialsConfigured() {
		return Allow, nil, nil
	}

	if user, pass, ok := r.BasicAuth(); ok {
		if g.CheckBasic(user, pass) {
			return Allow, nil, nil
		}
		return Unauthorized, nil, nil
	}

	if raw := extractSessionCookie(r); raw != "" {
		tok, err := g.Tokens.CheckSession(raw)
		if err == nil {
			return Allow, tok, nil
		}
		return Unauthorized, nil, nil
	}

	if bearer := extractBearer(r); bearer != "" {
		tok, err := g.Tokens.checkAPIToken(bearer, r.URL.Path, r.Method)
		if err == nil {
			return Allow, nil, tok
		}
		return Unauthorized, nil, nil
	}

	return Unauthorized, nil, nil
}

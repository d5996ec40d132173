// Package auth implements session cookies, refresh tokens, scoped API
// tokens, and the origin/credentials/per-request auth layers of the config
// API. Tokens are extracted from the `Authorization: Bearer` header, the
// session cookie, or an `Authorization: Session` header, compared in
// constant time; an hourly sweeper prunes expired sessions.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"sync"
	"time"
)

const (
	// SessionCookieName is the short-lived session cookie.
	SessionCookieName = "auth"
	// RefreshCookieName extends session TTL across restarts when remember_me
	// was requested at login.
	RefreshCookieName = "auth_refresh"
)

// SessionToken is the persisted-in-memory record behind the `auth` cookie.
// Only its hash is ever compared; the raw token is returned to the client
// once, at creation.
type SessionToken struct {
	Hash       string
	Username   string
	CreatedAt  time.Time
	ExpiresAt  time.Time
	UserAgent  string
	RemoteAddr string
}

// RefreshToken extends a session's lifetime without re-entering credentials.
type RefreshToken struct {
	Hash      string
	Username  string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Scope is one path/method grant an ApiToken carries.
type Scope struct {
	PathRegex *regexp.Regexp
	Methods   map[string]bool
}

// ApiToken is a long-lived, scope-restricted bearer credential.
type ApiToken struct {
	Hash      string
	Username  string
	CreatedAt time.Time
	Scopes    []Scope
}

// hashToken computes `hex(sha256(raw + salt))`.
func hashToken(raw, salt string) string {
	sum := sha256.Sum256([]byte(raw + salt))
	return hex.EncodeToString(sum[:])
}

// HashPassword computes `hex(sha256(password + salt))`, the stored form of
// the configured user's password.
func HashPassword(password, salt string) string { return hashToken(password, salt) }

// Credentials is the single configured user. An empty
// Username means first-run/no-auth.
type Credentials struct {
	Username     string
	PasswordHash string
	Salt         string
}

// TokenStore owns session tokens, refresh tokens, and API tokens, each under
// its own lock. The stores live in memory only: nothing is written to disk,
// so tokens do not survive a restart.
type TokenStore struct {
	salt string

	sessMu   sync.RWMutex
	sessions map[string]*SessionToken // keyed by hash

	refreshMu sync.RWMutex
	refresh   map[string]*RefreshToken

	apiMu  sync.RWMutex
	tokens map[string]*ApiToken

	sessionTTL time.Duration
	refreshTTL time.Duration
}

// NewTokenStore builds an empty, in-memory token store. salt is the
// server-wide password/token salt (persisted alongside Credentials).
func NewTokenStore(salt string, sessionTTL, refreshTTL time.Duration) *TokenStore {
	if sessionTTL <= 0 {
		sessionTTL = time.Hour
	}
	if refreshTTL <= 0 {
		refreshTTL = 30 * 24 * time.Hour
	}
	return &TokenStore{
		salt:       salt,
		sessions:   map[string]*SessionToken{},
		refresh:    map[string]*RefreshToken{},
		tokens:     map[string]*ApiToken{},
		sessionTTL: sessionTTL,
		refreshTTL: refreshTTL,
	}
}

// randomRawToken returns 32 random bytes hex-encoded (64 hex chars), matching
// the `Set-Cookie: auth=<64-hex>` form clients see.
func randomRawToken() (string, error) {
	return randomHex(32)
}

// CreateSession mints a new session token for username, returning the raw
// token (to be set as a cookie) and its record. Uses the monotonic clock via
// time.Now()+duration arithmetic only, never wall-clock comparisons.
func (t *TokenStore) CreateSession(username, userAgent, remoteAddr string) (raw string, tok *SessionToken, err error) {
	raw, err = randomRawToken()
	if err != nil {
		return "", nil, err
	}
	now := time.Now()
	tok = &SessionToken{
		Hash:       hashToken(raw, t.salt),
		Username:   username,
		CreatedAt:  now,
		ExpiresAt:  now.Add(t.sessionTTL),
		UserAgent:  userAgent,
		RemoteAddr: remoteAddr,
	}
	t.sessMu.Lock()
	t.sessions[tok.Hash] = tok
	t.sessMu.Unlock()
	return raw, tok, nil
}

// CreateRefresh mints a refresh token tied to username.
func (t *TokenStore) CreateRefresh(username string) (raw string, tok *RefreshToken, err error) {
	raw, err = randomRawToken()
	if err != nil {
		return "", nil, err
	}
	now := time.Now()
	tok = &RefreshToken{
		Hash:      hashToken(raw, t.salt),
		Username:  username,
		CreatedAt: now,
		ExpiresAt: now.Add(t.refreshTTL),
	}
	t.refreshMu.Lock()
	t.refresh[tok.Hash] = tok
	t.refreshMu.Unlock()
	return raw, tok, nil
}

// ErrExpired is returned when a presented token's TTL has elapsed.
var ErrExpired = errors.New("auth: token expired")

// ErrNotFound is returned when a presented token hash matches nothing.
var ErrNotFound = errors.New("auth: token not found")

// CheckSession validates raw (already extracted from a cookie/header)
// against the session store, returning the record on success. Expired
// tokens always fail regardless of origin or path.
func (t *TokenStore) CheckSession(raw string) (*SessionToken, error) {
	h := hashToken(raw, t.salt)
	t.sessMu.RLock()
	tok, ok := t.sessions[h]
	t.sessMu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	if time.Now().After(tok.ExpiresAt) {
		return nil, ErrExpired
	}
	return tok, nil
}

// RevokeSession deletes a session token by its raw value (logout, or
// DELETE /api/auth/sessions/{hash}).
func (t *TokenStore) RevokeSession(raw string) {
	h := hashToken(raw, t.salt)
	t.sessMu.Lock()
	delete(t.sessions, h)
	t.sessMu.Unlock()
}

// RevokeSessionByHash deletes a session token given its already-hashed id,
// matching the `DELETE /api/auth/sessions/{hash}` route shape.
func (t *TokenStore) RevokeSessionByHash(hash string) {
	t.sessMu.Lock()
	delete(t.sessions, hash)
	t.sessMu.Unlock()
}

// HashOf exposes the salted hash of a raw token, so handlers can report
// "the hash of current session" without storing the raw value anywhere.
func (t *TokenStore) HashOf(raw string) string { return hashToken(raw, t.salt) }

// Sessions returns a snapshot of all live (non-expired) session records, for
// GET /api/auth/sessions.
func (t *TokenStore) Sessions() []*SessionToken {
	t.sessMu.RLock()
	defer t.sessMu.RUnlock()
	now := time.Now()
	out := make([]*SessionToken, 0, len(t.sessions))
	for _, tok := range t.sessions {
		if now.Before(tok.ExpiresAt) {
			out = append(out, tok)
		}
	}
	return out
}

// RefreshSession extends the session TTL using a valid, unexpired refresh
// token, returning a new raw session token so the session TTL extends.
func (t *TokenStore) RefreshSession(refreshRaw, userAgent, remoteAddr string) (raw string, tok *SessionToken, err error) {
	h := hashToken(refreshRaw, t.salt)
	t.refreshMu.RLock()
	rt, ok := t.refresh[h]
	t.refreshMu.RUnlock()
	if !ok {
		return "", nil, ErrNotFound
	}
	if time.Now().After(rt.ExpiresAt) {
		return "", nil, ErrExpired
	}
	return t.CreateSession(rt.Username, userAgent, remoteAddr)
}

// SweepExpired deletes every session token whose ExpiresAt has elapsed;
// returns the count removed.
func (t *TokenStore) SweepExpired() int {
	now := time.Now()
	removed := 0
	t.sessMu.Lock()
	for h, tok := range t.sessions {
		if now.After(tok.ExpiresAt) {
			delete(t.sessions, h)
			removed++
		}
	}
	t.sessMu.Unlock()

	t.refreshMu.Lock()
	for h, tok := range t.refresh {
		if now.After(tok.ExpiresAt) {
			delete(t.refresh, h)
		}
	}
	t.refreshMu.Unlock()
	return removed
}

// RunSweeper blocks, running SweepExpired every interval, until stop
// fires. Intended to run as the background sweeper goroutine.
func (t *TokenStore) RunSweeper(stop <-chan struct{}, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			t.SweepExpired()
		}
	}
}

// CreateAPIToken mints a new scoped bearer token for the `/api/tokens`
// CRUD surface.
func (t *TokenStore) CreateAPIToken(username string, scopes []Scope) (raw string, tok *ApiToken, err error) {
	raw, err = randomRawToken()
	if err != nil {
		return "", nil, err
	}
	tok = &ApiToken{Hash: hashToken(raw, t.salt), Username: username, CreatedAt: time.Now(), Scopes: scopes}
	t.apiMu.Lock()
	t.tokens[tok.Hash] = tok
	t.apiMu.Unlock()
	return raw, tok, nil
}

// RevokeAPIToken deletes an API token by its hash.
func (t *TokenStore) RevokeAPIToken(hash string) {
	t.apiMu.Lock()
	delete(t.tokens, hash)
	t.apiMu.Unlock()
}

// APITokens returns a snapshot of all API tokens.
func (t *TokenStore) APITokens() []*ApiToken {
	t.apiMu.RLock()
	defer t.apiMu.RUnlock()
	out := make([]*ApiToken, 0, len(t.tokens))
	for _, tok := range t.tokens {
		out = append(out, tok)
	}
	return out
}

// checkAPIToken validates raw against the API token store and confirms at
// least one of its scopes matches (path, method).
func (t *TokenStore) checkAPIToken(raw, path, method string) (*ApiToken, error) {
	h := hashToken(raw, t.salt)
	t.apiMu.RLock()
	tok, ok := t.tokens[h]
	t.apiMu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	for _, sc := range tok.Scopes {
		if sc.PathRegex != nil && sc.PathRegex.MatchString(path) && sc.Methods[method] {
			return tok, nil
		}
	}
	return nil, fmt.Errorf("auth: token has no matching scope for %s %s", method, path)
}

// extractBearer pulls the raw token from an `Authorization: Bearer` header.
func extractBearer(r *http.Request) string {
	const prefix = "Bearer "
	if auth := r.Header.Get("Authorization"); len(auth) > len(prefix) && auth[:len(prefix)] == prefix {
		return auth[len(prefix):]
	}
	return ""
}

// extractSessionCookie returns the session token presented either as the
// `auth` cookie or an `Authorization: Session
// <token>` header.
func extractSessionCookie(r *http.Request) string {
	const prefix = "Session "
	if auth := r.Header.Get("Authorization"); len(auth) > len(prefix) && auth[:len(prefix)] == prefix {
		return auth[len(prefix):]
	}
	c, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

// ConstantTimeEqual wraps crypto/subtle for the password-hash comparison in
// credential checks.
func ConstantTimeEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

package api

import (
	"encoding/json"
	"net/http"
	"regexp"
	"time"

	"github.com/Nonary/Vibepollo-sub000/internal/auth"
)

func (s *Server) handleAuthLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username   string `json:"username"`
		Password   string `json:"password"`
		RememberMe bool   `json:"remember_me"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErrorf(w, http.StatusBadRequest, "decode login: %v", err)
		return
	}
	if !s.Auth.CheckBasic(body.Username, body.Password) {
		writeErrorf(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	raw, tok, err := s.Auth.Tokens.CreateSession(body.Username, r.UserAgent(), r.RemoteAddr)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	http.SetCookie(w, sessionCookie(raw, int(time.Until(tok.ExpiresAt).Seconds())))
	if body.RememberMe {
		refreshRaw, rtok, err := s.Auth.Tokens.CreateRefresh(body.Username)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		http.SetCookie(w, &http.Cookie{
			Name:     auth.RefreshCookieName,
			Value:    refreshRaw,
			Path:     "/api/auth",
			HttpOnly: true,
			Secure:   true,
			SameSite: http.SameSiteStrictMode,
			MaxAge:   int(time.Until(rtok.ExpiresAt).Seconds()),
		})
	}
	writeOK(w)
}

// sessionCookie builds the short-lived auth cookie
// (Secure; SameSite=Strict; Path=/).
func sessionCookie(raw string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     auth.SessionCookieName,
		Value:    raw,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   maxAge,
	}
}

func (s *Server) handleAuthRefresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(auth.RefreshCookieName)
	if err != nil {
		writeErrorf(w, http.StatusUnauthorized, "missing refresh cookie")
		return
	}
	raw, tok, err := s.Auth.Tokens.RefreshSession(cookie.Value, r.UserAgent(), r.RemoteAddr)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	http.SetCookie(w, sessionCookie(raw, int(time.Until(tok.ExpiresAt).Seconds())))
	writeOK(w)
}

func (s *Server) handleAuthLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(auth.SessionCookieName); err == nil {
		s.Auth.Tokens.RevokeSession(cookie.Value)
	}
	http.SetCookie(w, sessionCookie("", -1))
	http.SetCookie(w, &http.Cookie{Name: auth.RefreshCookieName, Value: "", Path: "/api/auth", MaxAge: -1})
	writeOK(w)
}

// handleAuthStatus stays public: it reports whether the caller is
// authenticated, probing the gate directly instead of sitting behind it,
// so an unauthenticated caller still gets a 200 with authenticated:false.
func (s *Server) handleAuthStatus(w http.ResponseWriter, r *http.Request) {
	configured := s.Auth.CredentialsConfigured()
	authenticated := false
	username := ""
	if result, sessTok, apiTok := s.Auth.Authenticate(r); result == auth.Allow {
		authenticated = true
		switch {
		case sessTok != nil:
			username = sessTok.Username
		case apiTok != nil:
			username = apiTok.Username
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"credentials_configured": configured,
		"login_required":         configured && !authenticated,
		"authenticated":          authenticated,
		"username":               username,
	})
}

func (s *Server) handleAuthSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Auth.Tokens.Sessions())
}

func (s *Server) handleAuthSessionDelete(w http.ResponseWriter, r *http.Request) {
	hash := paramFrom(r, "hash")
	s.Auth.Tokens.RevokeSessionByHash(hash)
	// Deleting your own session logs you out: clear the cookie too.
	if cookie, err := r.Cookie(auth.SessionCookieName); err == nil && s.Auth.Tokens.HashOf(cookie.Value) == hash {
		http.SetCookie(w, sessionCookie("", -1))
	}
	writeOK(w)
}

func (s *Server) handleListTokens(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Auth.Tokens.APITokens())
}

func (s *Server) handleCreateToken(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Scopes []struct {
			PathRegex string   `json:"pathRegex"`
			Methods   []string `json:"methods"`
		} `json:"scopes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErrorf(w, http.StatusBadRequest, "decode token request: %v", err)
		return
	}
	scopes := make([]auth.Scope, 0, len(body.Scopes))
	for _, sc := range body.Scopes {
		re, err := regexp.Compile(sc.PathRegex)
		if err != nil {
			writeErrorf(w, http.StatusBadRequest, "invalid scope pathRegex: %v", err)
			return
		}
		methods := map[string]bool{}
		for _, m := range sc.Methods {
			methods[m] = true
		}
		scopes = append(scopes, auth.Scope{PathRegex: re, Methods: methods})
	}
	raw, tok, err := s.Auth.Tokens.CreateAPIToken(usernameFrom(r), scopes)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"token": raw, "hash": tok.Hash})
}

func (s *Server) handleRevokeToken(w http.ResponseWriter, r *http.Request) {
	hash := paramFrom(r, "hash")
	s.Auth.Tokens.RevokeAPIToken(hash)
	writeOK(w)
}

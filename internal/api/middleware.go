package api

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/Nonary/Vibepollo-sub000/internal/auth"
)

// writeJSON writes v as the JSON body with the given status code, matching
// the convention that every response carries either {status:true} or
// {error: <string>}.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeOK(w http.ResponseWriter)             { writeJSON(w, http.StatusOK, map[string]bool{"status": true}) }
func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
func writeErrorf(w http.ResponseWriter, status int, format string, args ...interface{}) {
	writeError(w, status, fmt.Errorf(format, args...))
}

// securityHeaders sets the CORS/CSP/frame headers sent on every response.
func (s *Server) securityHeaders(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", s.originHeader())
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Content-Security-Policy", "frame-ancestors 'none';")
}

func (s *Server) originHeader() string {
	return fmt.Sprintf("https://localhost:%d", s.HTTPSPort)
}

// checkContentType validates a declared Content-Type against want, ignoring
// parameters (`; charset=utf-8`) and case.
func checkContentType(r *http.Request, want string) bool {
	if want == "" {
		return true
	}
	got := r.Header.Get("Content-Type")
	mt, _, err := mime.ParseMediaType(got)
	if err != nil {
		return false
	}
	return strings.EqualFold(mt, want)
}

// ServeHTTP is the per-request pipeline: match route, set
// security headers, validate content-type, run the auth layer unless
// the route is marked public, then dispatch.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.securityHeaders(w, r)

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	route, params, ok := s.router.Match(r)
	if !ok {
		// Unmatched GETs outside the reserved prefixes fall through to the
		// SPA shell; unhandled mutating methods default to 400.
		if r.Method == http.MethodGet {
			if !s.router.isReserved(r.URL.Path) {
				s.router.spa(w, r)
				return
			}
			writeErrorf(w, http.StatusNotFound, "not found")
			return
		}
		writeErrorf(w, http.StatusBadRequest, "unhandled request")
		return
	}

	if needsBody(r.Method) && !checkContentType(r, route.contentType) {
		writeErrorf(w, http.StatusBadRequest, "expected Content-Type %q", route.contentType)
		return
	}

	if route.auth {
		result, sessTok, apiTok := s.Auth.Authenticate(r)
		switch result {
		case auth.Allow:
			if sessTok != nil {
				r = r.WithContext(withUsername(r.Context(), sessTok.Username))
			} else if apiTok != nil {
				r = r.WithContext(withUsername(r.Context(), apiTok.Username))
			}
		case auth.Forbidden:
			writeErrorf(w, http.StatusForbidden, "origin not allowed")
			return
		default:
			// The 307 is only for a browser GET navigating to a
			// protected page; API callers always get the JSON 401.
			if r.Method == http.MethodGet && wantsHTML(r) && !s.router.isReserved(r.URL.Path) {
				http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
				return
			}
			writeErrorf(w, http.StatusUnauthorized, "unauthorized")
			return
		}
	}

	r = withParams(r, params)
	route.handler(w, r)
}

func needsBody(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	default:
		return false
	}
}

func wantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "html")
}

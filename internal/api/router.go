// Package api implements the config HTTPS API: a regex-anchored,
// first-match-wins routing table over `METHOD path`, with a fall-through
// to the SPA shell for unmatched GETs outside the reserved prefixes.
package api

import (
	"net/http"
	"regexp"
	"strings"
)

// Route is one entry in the regex-anchored routing table.
type Route struct {
	method      string
	pattern     *regexp.Regexp
	auth        bool
	contentType string // required Content-Type for POST/PUT/PATCH bodies, "" = none declared
	handler     http.HandlerFunc
}

// Router dispatches `METHOD path` against Routes in registration order,
// first match wins, falling through to the SPA shell for unmatched GETs
// whose path is not under a reserved prefix.
type Router struct {
	routes   []Route
	spa      http.HandlerFunc
	reserved []string
}

// NewRouter builds an empty Router; spaHandler serves the front-end shell
// for unmatched GETs and reservedPrefixes are the path prefixes that must
// NOT fall through to it.
func NewRouter(spaHandler http.HandlerFunc, reservedPrefixes []string) *Router {
	return &Router{spa: spaHandler, reserved: reservedPrefixes}
}

// Handle registers a route. pattern is a regexp anchored against the
// request path only (the method is matched separately via method); auth
// marks whether the auth layer must run before handler; contentType, if
// non-empty, is the exact Content-Type POST/PUT/PATCH bodies must declare.
func (rt *Router) Handle(method, pattern string, auth bool, contentType string, handler http.HandlerFunc) {
	rt.routes = append(rt.routes, Route{
		method:      method,
		pattern:     regexp.MustCompile("^" + pattern + "$"),
		auth:        auth,
		contentType: contentType,
		handler:     handler,
	})
}

func (rt *Router) isReserved(path string) bool {
	for _, p := range rt.reserved {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// Match finds the first route whose method and compiled pattern match r,
// returning (route, pathParams, true) on success. Named capture groups in
// pattern become pathParams entries.
func (rt *Router) Match(r *http.Request) (Route, map[string]string, bool) {
	for _, route := range rt.routes {
		if !route.matchesMethod(r.Method) {
			continue
		}
		m := route.pattern.FindStringSubmatch(r.URL.Path)
		if m == nil {
			continue
		}
		params := map[string]string{}
		for i, name := range route.pattern.SubexpNames() {
			if i == 0 || name == "" {
				continue
			}
			params[name] = m[i]
		}
		return route, params, true
	}
	return Route{}, nil, false
}

func (rt Route) matchesMethod(method string) bool { return rt.method == method }

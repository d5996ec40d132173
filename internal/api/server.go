package api

import (
	"context"
	"crypto/tls"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/Nonary/Vibepollo-sub000/internal/auth"
	"github.com/Nonary/Vibepollo-sub000/internal/capture"
	"github.com/Nonary/Vibepollo-sub000/internal/config"
	"github.com/Nonary/Vibepollo-sub000/internal/displayconfig"
	"github.com/Nonary/Vibepollo-sub000/internal/losslessscaling"
	"github.com/Nonary/Vibepollo-sub000/internal/moncrypto"
	"github.com/Nonary/Vibepollo-sub000/internal/pairing"
	"github.com/Nonary/Vibepollo-sub000/internal/playnite"
	"github.com/Nonary/Vibepollo-sub000/internal/proc"
	"github.com/Nonary/Vibepollo-sub000/internal/webrtcsess"
)

// Server is the config HTTPS API: it owns no business logic itself and
// instead wires the subsystem components behind the regex router, holding a
// direct reference to each one it dispatches into.
type Server struct {
	HTTPSPort int
	StaticDir string
	HostUUID  string
	HostName  string
	LogPath   string

	Identity  *moncrypto.Identity
	Pairing   *pairing.Manager
	Clients   *pairing.Store
	Display   *displayconfig.HelperClient
	Apps      *proc.Store
	Supervisor *proc.Supervisor
	Capture   *capture.Session
	WebRTC    *webrtcsess.Registry
	Engine    *webrtcsess.Engine
	Auth      *auth.Gate
	Config    *config.Store
	Playnite  *playnite.Client
	LSFG      *losslessscaling.Controller
	Golden    *displayconfig.GoldenStore

	log zerolog.Logger

	router *Router
	srv    *http.Server
}

// NewServer builds the Server and registers all routes. staticDir is the
// built front-end's asset directory, served for unmatched GETs as the
// SPA-shell fallback.
func NewServer(httpsPort int, staticDir string, log zerolog.Logger) *Server {
	s := &Server{HTTPSPort: httpsPort, StaticDir: staticDir, log: log}
	s.router = NewRouter(s.serveSPA, []string{"/api", "/assets", "/covers", "/images"})
	s.registerRoutes()
	return s
}

// serveSPA serves the built front-end's index.html for any unmatched GET;
// when no static directory is configured it answers 404 Not Found.
func (s *Server) serveSPA(w http.ResponseWriter, r *http.Request) {
	if s.StaticDir == "" {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, s.StaticDir+"/index.html")
}

// ListenAndServeTLS starts the HTTPS listener using the host identity's
// self-signed certificate, the same certificate clients pin at pairing.
func (s *Server) ListenAndServeTLS(ctx context.Context) error {
	cert, err := tls.X509KeyPair([]byte(s.Identity.CertPEM), []byte(s.Identity.KeyPEM))
	if err != nil {
		return err
	}
	s.srv = &http.Server{
		Addr:              ":" + strconv.Itoa(s.HTTPSPort),
		Handler:           s,
		TLSConfig:         &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12},
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(shutdownCtx)
	}()
	return s.srv.ListenAndServeTLS("", "")
}

type ctxKey int

const (
	ctxKeyUsername ctxKey = iota
	ctxKeyParams
)

func withUsername(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, ctxKeyUsername, username)
}

func usernameFrom(r *http.Request) string {
	v, _ := r.Context().Value(ctxKeyUsername).(string)
	return v
}

func withParams(r *http.Request, params map[string]string) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), ctxKeyParams, params))
}

func paramFrom(r *http.Request, name string) string {
	params, _ := r.Context().Value(ctxKeyParams).(map[string]string)
	return params[name]
}

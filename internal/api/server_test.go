package api

import (
	"bytes"
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/Nonary/Vibepollo-sub000/internal/auth"
	"github.com/Nonary/Vibepollo-sub000/internal/config"
	"github.com/Nonary/Vibepollo-sub000/internal/displayconfig"
	"github.com/Nonary/Vibepollo-sub000/internal/moncrypto"
	"github.com/Nonary/Vibepollo-sub000/internal/pairing"
	"github.com/Nonary/Vibepollo-sub000/internal/proc"
	"github.com/Nonary/Vibepollo-sub000/internal/webrtcsess"
)

const (
	testUsername = "admin"
	testPassword = "hunter2!"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()

	identity, err := moncrypto.Generate("test-host")
	require.NoError(t, err)

	clients, err := pairing.NewStore(filepath.Join(dir, "clients.json"))
	require.NoError(t, err)

	apps, err := proc.NewStore(filepath.Join(dir, "apps.json"))
	require.NoError(t, err)

	cfg, err := config.Load(filepath.Join(dir, "sunshine.conf"))
	require.NoError(t, err)

	tokens := auth.NewTokenStore("pepper", time.Hour, 24*time.Hour)
	gate := auth.NewGate(auth.Credentials{
		Username:     testUsername,
		PasswordHash: auth.HashPassword(testPassword, "pepper"),
	}, tokens, auth.OriginLAN)

	srv := NewServer(47990, "", zerolog.Nop())
	srv.HostUUID = "11111111-2222-3333-4444-555555555555"
	srv.HostName = "test-host"
	srv.Identity = identity
	srv.Pairing = pairing.NewManager(identity, clients)
	srv.Clients = clients
	srv.Apps = apps
	srv.Supervisor = proc.NewSupervisor(apps, nil, zerolog.Nop())
	srv.WebRTC = webrtcsess.NewRegistry(identity)
	srv.Auth = gate
	srv.Config = cfg
	srv.Golden = displayconfig.NewGoldenStore(filepath.Join(dir, "golden_display.json"))
	return srv
}

// do issues a request from a LAN address, optionally with a session cookie.
func do(srv *Server, method, path, cookie string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.RemoteAddr = "127.0.0.1:50000"
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: cookie})
	}
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func login(t *testing.T, srv *Server) string {
	t.Helper()
	w := do(srv, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": testUsername,
		"password": testPassword,
	})
	require.Equal(t, http.StatusOK, w.Code)
	for _, c := range w.Result().Cookies() {
		if c.Name == auth.SessionCookieName {
			return c.Value
		}
	}
	t.Fatal("login response did not set the auth cookie")
	return ""
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestSecurityHeadersOnEveryResponse(t *testing.T) {
	srv := newTestServer(t)
	w := do(srv, http.MethodGet, "/api/configLocale", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "https://localhost:47990", w.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	require.Equal(t, "frame-ancestors 'none';", w.Header().Get("Content-Security-Policy"))
}

func TestUnauthenticatedRequestsAreRejected(t *testing.T) {
	srv := newTestServer(t)
	w := do(srv, http.MethodGet, "/api/apps", "", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestForbiddenOriginRejectedBeforeCredentials(t *testing.T) {
	srv := newTestServer(t)
	cookie := login(t, srv)

	req := httptest.NewRequest(http.MethodGet, "/api/apps", nil)
	req.RemoteAddr = "203.0.113.7:40000" // public address, outside LAN scope
	req.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: cookie})
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestContentTypeValidatedOnJSONRoutes(t *testing.T) {
	srv := newTestServer(t)
	cookie := login(t, srv)

	req := httptest.NewRequest(http.MethodPost, "/api/apps", bytes.NewBufferString(`{"name":"x"}`))
	req.RemoteAddr = "127.0.0.1:50000"
	req.Header.Set("Content-Type", "text/plain")
	req.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: cookie})
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)

	// Parameters and case on the declared type are ignored.
	req = httptest.NewRequest(http.MethodPost, "/api/apps", bytes.NewBufferString(`{"name":"x"}`))
	req.RemoteAddr = "127.0.0.1:50000"
	req.Header.Set("Content-Type", "Application/JSON; charset=utf-8")
	req.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: cookie})
	w = httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestUnmatchedAPIPathReturns404NotSPA(t *testing.T) {
	srv := newTestServer(t)
	w := do(srv, http.MethodGet, "/api/nope", "", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Contains(t, w.Body.String(), "error")
}

func TestUnhandledMutatingMethodDefaultsTo400(t *testing.T) {
	srv := newTestServer(t)
	w := do(srv, http.MethodPut, "/api/nope", "", map[string]string{})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

// The auth status/login/logout flow end to end.
func TestAuthFlow(t *testing.T) {
	srv := newTestServer(t)

	// 1. No cookie: configured but unauthenticated.
	body := decodeBody(t, do(srv, http.MethodGet, "/api/auth/status", "", nil))
	require.Equal(t, true, body["credentials_configured"])
	require.Equal(t, true, body["login_required"])
	require.Equal(t, false, body["authenticated"])

	// 2. Login sets a 64-hex Secure SameSite=Strict cookie.
	w := do(srv, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": testUsername,
		"password": testPassword,
	})
	require.Equal(t, http.StatusOK, w.Code)
	var authCookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == auth.SessionCookieName {
			authCookie = c
		}
	}
	require.NotNil(t, authCookie)
	require.Regexp(t, regexp.MustCompile(`^[0-9a-f]{64}$`), authCookie.Value)
	require.True(t, authCookie.Secure)
	require.Equal(t, http.SameSiteStrictMode, authCookie.SameSite)
	require.Equal(t, "/", authCookie.Path)

	// 3. Status with the cookie reports authenticated.
	body = decodeBody(t, do(srv, http.MethodGet, "/api/auth/status", authCookie.Value, nil))
	require.Equal(t, true, body["authenticated"])
	require.Equal(t, false, body["login_required"])

	// 4. Deleting the current session clears the cookie and revokes access.
	hash := srv.Auth.Tokens.HashOf(authCookie.Value)
	w = do(srv, http.MethodDelete, "/api/auth/sessions/"+hash, authCookie.Value, nil)
	require.Equal(t, http.StatusOK, w.Code)
	cleared := false
	for _, c := range w.Result().Cookies() {
		if c.Name == auth.SessionCookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	require.True(t, cleared)

	w = do(srv, http.MethodGet, "/api/apps", authCookie.Value, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLoginRejectsBadPassword(t *testing.T) {
	srv := newTestServer(t)
	w := do(srv, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": testUsername,
		"password": "wrong",
	})
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

// Session create / list / close over the HTTP surface.
func TestWebRTCSessionLifecycle(t *testing.T) {
	srv := newTestServer(t)
	cookie := login(t, srv)

	w := do(srv, http.MethodPost, "/api/webrtc/sessions", cookie, map[string]bool{
		"audio": true, "video": true, "encoded": true,
	})
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	require.Equal(t, true, body["status"])
	require.NotEmpty(t, body["cert_pem"])
	require.Regexp(t, regexp.MustCompile(`^([0-9A-F]{2}:)+[0-9A-F]{2}$`), body["cert_fingerprint"])
	require.Equal(t, []interface{}{}, body["ice_servers"])

	session, ok := body["session"].(map[string]interface{})
	require.True(t, ok)
	id, _ := session["id"].(string)
	require.NotEmpty(t, id)
	require.Equal(t, true, session["audio"])
	require.Equal(t, true, session["video"])
	require.Equal(t, true, session["encoded"])
	require.EqualValues(t, 0, session["audio_packets"])
	require.EqualValues(t, 0, session["video_packets"])

	list := decodeBody(t, do(srv, http.MethodGet, "/api/webrtc/sessions", cookie, nil))
	sessions, ok := list["sessions"].([]interface{})
	require.True(t, ok)
	require.Len(t, sessions, 1)
	require.Equal(t, id, sessions[0].(map[string]interface{})["id"])

	w = do(srv, http.MethodDelete, "/api/webrtc/sessions/"+id, cookie, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, true, decodeBody(t, w)["status"])

	list = decodeBody(t, do(srv, http.MethodGet, "/api/webrtc/sessions", cookie, nil))
	require.Empty(t, list["sessions"])
}

func TestCreateSessionRejectsInvalidOptions(t *testing.T) {
	srv := newTestServer(t)
	cookie := login(t, srv)

	w := do(srv, http.MethodPost, "/api/webrtc/sessions", cookie, map[string]interface{}{
		"video": true, "codec": "vp9",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = do(srv, http.MethodPost, "/api/webrtc/sessions", cookie, map[string]interface{}{
		"video": true, "video_pacing_mode": "smooth",
	})
	require.Equal(t, http.StatusOK, w.Code)
}

// Launching an unknown uuid is a client error with the literal message.
func TestLaunchUnknownAppReturns400(t *testing.T) {
	srv := newTestServer(t)
	cookie := login(t, srv)

	w := do(srv, http.MethodPost, "/api/apps/launch", cookie, map[string]string{"uuid": "nonexistent"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "Cannot find requested application", decodeBody(t, w)["error"])
	require.Equal(t, proc.Idle, srv.Supervisor.State())
}

// Reorder places listed apps first and preserves unlisted order.
func TestReorderPreservesUnlistedApps(t *testing.T) {
	srv := newTestServer(t)
	cookie := login(t, srv)

	for _, u := range []string{"A", "B", "C"} {
		require.NoError(t, srv.Apps.Upsert(&proc.AppDef{UUID: u, Name: "App " + u}))
	}

	w := do(srv, http.MethodPost, "/api/apps/reorder", cookie, map[string][]string{"order": {"C", "A"}})
	require.Equal(t, http.StatusOK, w.Code)

	apps := srv.Apps.Apps()
	require.Len(t, apps, 3)
	require.Equal(t, "C", apps[0].UUID)
	require.Equal(t, "A", apps[1].UUID)
	require.Equal(t, "B", apps[2].UUID)

	// Idempotent: a second identical reorder changes nothing.
	w = do(srv, http.MethodPost, "/api/apps/reorder", cookie, map[string][]string{"order": {"C", "A"}})
	require.Equal(t, http.StatusOK, w.Code)
	again := srv.Apps.Apps()
	for i := range apps {
		require.Equal(t, apps[i].UUID, again[i].UUID)
	}
}

func TestReorderRejectsMissingOrder(t *testing.T) {
	srv := newTestServer(t)
	cookie := login(t, srv)
	w := do(srv, http.MethodPost, "/api/apps/reorder", cookie, map[string]string{})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

// Config patch classification: hot-apply vs deferred vs restart.
func TestConfigPatchClassification(t *testing.T) {
	srv := newTestServer(t)
	cookie := login(t, srv)

	// With an active stream session, a Playnite key still hot-applies.
	srv.WebRTC.CreateSession(webrtcsess.CreateOptions{Video: true})

	body := decodeBody(t, do(srv, http.MethodPatch, "/api/config", cookie, map[string]string{
		"playnite_auto_sync": "true",
	}))
	require.Equal(t, true, body["status"])
	require.Equal(t, true, body["appliedNow"])
	require.Equal(t, false, body["deferred"])
	require.Equal(t, false, body["restartRequired"])

	// A restart key always requires a restart.
	body = decodeBody(t, do(srv, http.MethodPatch, "/api/config", cookie, map[string]string{
		"port": "48020",
	}))
	require.Equal(t, false, body["appliedNow"])
	require.Equal(t, false, body["deferred"])
	require.Equal(t, true, body["restartRequired"])

	// A plain key mid-session is deferred.
	body = decodeBody(t, do(srv, http.MethodPatch, "/api/config", cookie, map[string]string{
		"fec_percentage": "25",
	}))
	require.Equal(t, false, body["appliedNow"])
	require.Equal(t, true, body["deferred"])
	require.Equal(t, false, body["restartRequired"])
}

func TestConfigPatchAppliesNowWithoutActiveSessions(t *testing.T) {
	srv := newTestServer(t)
	cookie := login(t, srv)
	body := decodeBody(t, do(srv, http.MethodPatch, "/api/config", cookie, map[string]string{
		"fec_percentage": "25",
	}))
	require.Equal(t, true, body["appliedNow"])
}

func TestGetAppsIncludesHostIdentityAndCurrentApp(t *testing.T) {
	srv := newTestServer(t)
	cookie := login(t, srv)

	body := decodeBody(t, do(srv, http.MethodGet, "/api/apps", cookie, nil))
	require.Equal(t, srv.HostUUID, body["host_uuid"])
	require.Equal(t, srv.HostName, body["host_name"])
	require.Equal(t, "", body["current_app"])
}

func TestSaveAppMigratesLegacyFramegenKey(t *testing.T) {
	srv := newTestServer(t)
	cookie := login(t, srv)

	payload := map[string]interface{}{
		"name": "Legacy Game",
		"cmd":  "game.exe",
		"dlss-framegen-capture-fix": false,
	}
	w := do(srv, http.MethodPost, "/api/apps", cookie, payload)
	require.Equal(t, http.StatusOK, w.Code)

	apps := srv.Apps.Apps()
	require.Len(t, apps, 1)
	require.NotEmpty(t, apps[0].UUID)
	require.False(t, apps[0].Gen1FramegenFix)
}

func TestDeleteAppByUUIDAndIndex(t *testing.T) {
	srv := newTestServer(t)
	cookie := login(t, srv)

	require.NoError(t, srv.Apps.Upsert(&proc.AppDef{UUID: "aaa", Name: "First"}))
	require.NoError(t, srv.Apps.Upsert(&proc.AppDef{UUID: "bbb", Name: "Second"}))

	w := do(srv, http.MethodPost, "/api/apps/delete", cookie, map[string]string{"uuid": "aaa"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, srv.Apps.Apps(), 1)

	w = do(srv, http.MethodDelete, "/api/apps/0", cookie, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, srv.Apps.Apps())

	w = do(srv, http.MethodDelete, "/api/apps/0", cookie, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeletingPlayniteFullscreenEntryDisablesConfigFlag(t *testing.T) {
	srv := newTestServer(t)
	cookie := login(t, srv)

	require.NoError(t, srv.Config.Set("playnite_fullscreen_entry_enabled", "true"))
	require.NoError(t, srv.Apps.Upsert(&proc.AppDef{UUID: "fs", Name: "Playnite Fullscreen", PlayniteFullscreen: true}))

	w := do(srv, http.MethodPost, "/api/apps/delete", cookie, map[string]string{"uuid": "fs"})
	require.Equal(t, http.StatusOK, w.Code)

	v, ok := srv.Config.Get("playnite_fullscreen_entry_enabled")
	require.True(t, ok)
	require.Equal(t, "false", v)
}

func TestGoldenDisplayEndpoints(t *testing.T) {
	srv := newTestServer(t)
	cookie := login(t, srv)

	body := decodeBody(t, do(srv, http.MethodGet, "/api/display/golden_status", cookie, nil))
	require.Equal(t, false, body["exists"])

	w := do(srv, http.MethodPost, "/api/display/export_golden", cookie, nil)
	require.Equal(t, http.StatusOK, w.Code)

	body = decodeBody(t, do(srv, http.MethodGet, "/api/display/golden_status", cookie, nil))
	require.Equal(t, true, body["exists"])

	w = do(srv, http.MethodDelete, "/api/display/golden", cookie, nil)
	require.Equal(t, http.StatusOK, w.Code)

	body = decodeBody(t, do(srv, http.MethodGet, "/api/display/golden_status", cookie, nil))
	require.Equal(t, false, body["exists"])
}

func TestICEStreamEmitsCandidatesWithMonotonicIDs(t *testing.T) {
	srv := newTestServer(t)
	cookie := login(t, srv)

	snap := srv.WebRTC.CreateSession(webrtcsess.CreateOptions{Video: true})
	require.NoError(t, srv.WebRTC.AddICECandidate(snap.ID, "0", 0, "candidate-a"))
	require.NoError(t, srv.WebRTC.AddICECandidate(snap.ID, "0", 0, "candidate-b"))

	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/webrtc/sessions/%s/ice/stream?since=-1", snap.ID), nil)
	req.RemoteAddr = "127.0.0.1:50000"
	req.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: cookie})
	ctx, cancel := context.WithTimeout(req.Context(), 600*time.Millisecond)
	defer cancel()
	req = req.WithContext(ctx)

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	out := w.Body.String()
	require.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	require.Contains(t, out, "event: candidate\nid: 0\n")
	require.Contains(t, out, "event: candidate\nid: 1\n")
	require.Contains(t, out, "candidate-a")
	require.Contains(t, out, "candidate-b")
}

// The full pairing handshake over the HTTP surface: PIN entry from the
// authenticated web UI, then the four /api/pair phases from the
// unauthenticated client.
func TestPairingHandshakeOverAPI(t *testing.T) {
	srv := newTestServer(t)
	cookie := login(t, srv)

	w := do(srv, http.MethodPost, "/api/pin", cookie, map[string]string{
		"uniqueid": "moon-1", "name": "Living Room", "pin": "4321",
	})
	require.Equal(t, http.StatusOK, w.Code)

	clientIdentity, err := moncrypto.Generate("moonlight-client")
	require.NoError(t, err)
	salt := make([]byte, 16)
	_, err = rand.Read(salt)
	require.NoError(t, err)

	body := decodeBody(t, do(srv, http.MethodPost, "/api/pair", "", map[string]string{
		"uniqueid":   "moon-1",
		"phrase":     "getservercert",
		"salt":       hex.EncodeToString(salt),
		"clientcert": hex.EncodeToString(clientIdentity.CertPEM),
	}))
	require.EqualValues(t, 1, body["paired"])
	serverCertPEM, err := hex.DecodeString(body["plaincert"].(string))
	require.NoError(t, err)
	require.Contains(t, string(serverCertPEM), "BEGIN CERTIFICATE")

	keyMaterial := sha256.Sum256(append(append([]byte{}, salt...), []byte("4321")...))
	ctx, err := moncrypto.NewContext(keyMaterial[:16])
	require.NoError(t, err)

	clientChallenge := make([]byte, 16)
	_, _ = rand.Read(clientChallenge)
	challengeCT, err := ctx.EncryptECB(clientChallenge)
	require.NoError(t, err)

	body = decodeBody(t, do(srv, http.MethodPost, "/api/pair", "", map[string]string{
		"uniqueid":        "moon-1",
		"clientchallenge": hex.EncodeToString(challengeCT),
	}))
	require.EqualValues(t, 1, body["paired"])
	respCT, err := hex.DecodeString(body["challengeresponse"].(string))
	require.NoError(t, err)
	respPT, err := ctx.DecryptECB(respCT)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(respPT), 48)
	serverChallenge := respPT[32:48]

	clientSecret := make([]byte, 16)
	_, _ = rand.Read(clientSecret)
	h := sha256.New()
	h.Write(serverChallenge)
	h.Write(clientIdentity.Cert.Signature)
	h.Write(clientSecret)
	proofCT, err := ctx.EncryptECB(h.Sum(nil))
	require.NoError(t, err)

	body = decodeBody(t, do(srv, http.MethodPost, "/api/pair", "", map[string]string{
		"uniqueid":            "moon-1",
		"serverchallengeresp": hex.EncodeToString(proofCT),
	}))
	require.EqualValues(t, 1, body["paired"])
	require.NotEmpty(t, body["pairingsecret"])

	digest := sha256.Sum256(clientSecret)
	sig, err := rsa.SignPKCS1v15(rand.Reader, clientIdentity.Key(), crypto.SHA256, digest[:])
	require.NoError(t, err)

	body = decodeBody(t, do(srv, http.MethodPost, "/api/pair", "", map[string]string{
		"uniqueid":            "moon-1",
		"clientpairingsecret": hex.EncodeToString(append(clientSecret, sig...)),
	}))
	require.EqualValues(t, 1, body["paired"])

	stored, ok := srv.Clients.FindByCert(string(clientIdentity.CertPEM))
	require.True(t, ok)
	require.Equal(t, "Living Room", stored.Name)
}

// A client that derived its key from the wrong PIN must be rejected at the
// final phase and never persisted.
func TestPairingOverAPIRejectsWrongPIN(t *testing.T) {
	srv := newTestServer(t)
	cookie := login(t, srv)

	w := do(srv, http.MethodPost, "/api/pin", cookie, map[string]string{
		"uniqueid": "moon-2", "name": "Bedroom", "pin": "4321",
	})
	require.Equal(t, http.StatusOK, w.Code)

	clientIdentity, err := moncrypto.Generate("moonlight-client")
	require.NoError(t, err)
	salt := make([]byte, 16)
	_, _ = rand.Read(salt)

	body := decodeBody(t, do(srv, http.MethodPost, "/api/pair", "", map[string]string{
		"uniqueid":   "moon-2",
		"phrase":     "getservercert",
		"salt":       hex.EncodeToString(salt),
		"clientcert": hex.EncodeToString(clientIdentity.CertPEM),
	}))
	require.EqualValues(t, 1, body["paired"])

	// Wrong PIN on the client side.
	keyMaterial := sha256.Sum256(append(append([]byte{}, salt...), []byte("0000")...))
	ctx, err := moncrypto.NewContext(keyMaterial[:16])
	require.NoError(t, err)

	clientChallenge := make([]byte, 16)
	challengeCT, err := ctx.EncryptECB(clientChallenge)
	require.NoError(t, err)
	body = decodeBody(t, do(srv, http.MethodPost, "/api/pair", "", map[string]string{
		"uniqueid":        "moon-2",
		"clientchallenge": hex.EncodeToString(challengeCT),
	}))
	require.EqualValues(t, 1, body["paired"])
	respCT, err := hex.DecodeString(body["challengeresponse"].(string))
	require.NoError(t, err)
	respPT, err := ctx.DecryptECB(respCT)
	require.NoError(t, err)
	serverChallenge := respPT[32:48]

	clientSecret := make([]byte, 16)
	h := sha256.New()
	h.Write(serverChallenge)
	h.Write(clientIdentity.Cert.Signature)
	h.Write(clientSecret)
	proofCT, err := ctx.EncryptECB(h.Sum(nil))
	require.NoError(t, err)
	body = decodeBody(t, do(srv, http.MethodPost, "/api/pair", "", map[string]string{
		"uniqueid":            "moon-2",
		"serverchallengeresp": hex.EncodeToString(proofCT),
	}))
	require.EqualValues(t, 1, body["paired"])

	digest := sha256.Sum256(clientSecret)
	sig, err := rsa.SignPKCS1v15(rand.Reader, clientIdentity.Key(), crypto.SHA256, digest[:])
	require.NoError(t, err)

	w = do(srv, http.MethodPost, "/api/pair", "", map[string]string{
		"uniqueid":            "moon-2",
		"clientpairingsecret": hex.EncodeToString(append(clientSecret, sig...)),
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	_, ok := srv.Clients.FindByCert(string(clientIdentity.CertPEM))
	require.False(t, ok)
}

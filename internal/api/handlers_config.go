package api

import (
	"encoding/json"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/Nonary/Vibepollo-sub000/internal/config"
)

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Config.All())
}

// configApplyResult is the classification both config write endpoints
// return: exactly one of appliedNow/deferred/restartRequired
// is true for a non-empty change set.
type configApplyResult struct {
	Status          bool `json:"status"`
	AppliedNow      bool `json:"appliedNow"`
	Deferred        bool `json:"deferred"`
	RestartRequired bool `json:"restartRequired"`
}

// classifyConfigChange decides hot-apply vs. deferred vs. restart-required:
// restart keys always require a restart; anything else applies
// now unless a stream session is active, in which case only
// Playnite-prefixed keys stay hot-apply-safe.
func (s *Server) classifyConfigChange(result config.PatchResult) configApplyResult {
	out := configApplyResult{Status: true}
	switch {
	case result.RestartRequired:
		out.RestartRequired = true
	case len(result.Changed) == 0:
		out.AppliedNow = true
	case s.activeStreamSessions() == 0 || result.PlayniteOnly:
		out.AppliedNow = true
	default:
		out.Deferred = true
	}
	return out
}

// activeStreamSessions counts live streaming sessions; WebRTC registrations
// stand in for RTSP sessions, which terminate in the out-of-scope Moonlight
// transport.
func (s *Server) activeStreamSessions() int64 {
	if s.WebRTC == nil {
		return 0
	}
	return s.WebRTC.ActiveSessions()
}

func (s *Server) handleSaveConfig(w http.ResponseWriter, r *http.Request) {
	var body map[string]string
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErrorf(w, http.StatusBadRequest, "decode config: %v", err)
		return
	}
	patch := make(map[string]*string, len(body))
	for k := range body {
		v := body[k]
		patch[k] = &v
	}
	result, err := s.Config.ApplyPatch(patch)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, s.classifyConfigChange(result))
}

func (s *Server) handlePatchConfig(w http.ResponseWriter, r *http.Request) {
	var body map[string]*string
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErrorf(w, http.StatusBadRequest, "decode patch: %v", err)
		return
	}
	result, err := s.Config.ApplyPatch(body)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, s.classifyConfigChange(result))
}

func (s *Server) handleConfigLocale(w http.ResponseWriter, r *http.Request) {
	locale, _ := s.Config.Get("locale")
	if locale == "" {
		locale = "en"
	}
	writeJSON(w, http.StatusOK, map[string]string{"locale": locale})
}

func (s *Server) handleMetadata(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"version":   "1.0.0",
		"platform":  runtime.GOOS,
		"host_uuid": s.HostUUID,
		"host_name": s.HostName,
	})
}

func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	writeOK(w)
	go func() {
		time.Sleep(500 * time.Millisecond)
		os.Exit(0)
	}()
}

func (s *Server) handleQuit(w http.ResponseWriter, r *http.Request) {
	writeOK(w)
	go func() {
		time.Sleep(200 * time.Millisecond)
		os.Exit(0)
	}()
}

func (s *Server) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"state":           s.Supervisor.State().String(),
		"active_sessions": s.activeStreamSessions(),
	})
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErrorf(w, http.StatusBadRequest, "decode password change: %v", err)
		return
	}
	s.Auth.Creds.Username = body.Username
	s.Auth.Creds.PasswordHash = s.Auth.Tokens.HashOf(body.Password)
	writeOK(w)
}

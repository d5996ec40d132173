package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/Nonary/Vibepollo-sub000/internal/proc"
)

func (s *Server) handleGetApps(w http.ResponseWriter, r *http.Request) {
	currentApp := ""
	if app := s.Supervisor.Current(); app != nil {
		currentApp = app.UUID
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"env":         s.Apps.Env(),
		"apps":        s.Apps.Apps(),
		"current_app": currentApp,
		"host_uuid":   s.HostUUID,
		"host_name":   s.HostName,
	})
}

func (s *Server) handleSaveApp(w http.ResponseWriter, r *http.Request) {
	// The legacy key rides alongside the AppDef fields and is folded into
	// gen1-framegen-fix on save.
	var body struct {
		proc.AppDef
		LegacyDlssFramegenFix *bool `json:"dlss-framegen-capture-fix"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErrorf(w, http.StatusBadRequest, "decode app: %v", err)
		return
	}
	app := body.AppDef
	if body.LegacyDlssFramegenFix != nil {
		app.Gen1FramegenFix = *body.LegacyDlssFramegenFix
	}
	if runtime.GOOS != "windows" && (app.Gen1FramegenFix || app.Gen2FramegenFix) {
		writeErrorf(w, http.StatusBadRequest, "frame-gen capture fixes are only supported on Windows")
		return
	}
	if err := s.Apps.Upsert(&app); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

func (s *Server) handleReorderApps(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Order []string `json:"order"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErrorf(w, http.StatusBadRequest, "decode order: %v", err)
		return
	}
	if body.Order == nil {
		writeErrorf(w, http.StatusBadRequest, "missing order")
		return
	}
	if err := s.Apps.Reorder(body.Order); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeOK(w)
}

func (s *Server) handleDeleteApp(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UUID string `json:"uuid"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErrorf(w, http.StatusBadRequest, "decode delete: %v", err)
		return
	}
	removed, err := s.Apps.DeleteByUUID(body.UUID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if removed == nil {
		writeErrorf(w, http.StatusNotFound, "unknown app")
		return
	}
	s.afterAppDelete(removed)
	writeOK(w)
}

func (s *Server) handleDeleteAppByIndex(w http.ResponseWriter, r *http.Request) {
	idx, err := strconv.Atoi(paramFrom(r, "index"))
	if err != nil {
		writeErrorf(w, http.StatusBadRequest, "invalid index")
		return
	}
	removed, err := s.Apps.DeleteByIndex(idx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if removed == nil {
		writeErrorf(w, http.StatusNotFound, "unknown app")
		return
	}
	s.afterAppDelete(removed)
	writeOK(w)
}

// afterAppDelete disables the Playnite fullscreen entry in the main config
// when that entry itself was just removed, applying immediately.
func (s *Server) afterAppDelete(removed *proc.AppDef) {
	if removed.PlayniteFullscreen && s.Config != nil {
		if err := s.Config.Set("playnite_fullscreen_entry_enabled", "false"); err != nil {
			s.log.Warn().Err(err).Msg("disable playnite fullscreen entry after delete")
		}
	}
}

func (s *Server) handleGetAppCover(w http.ResponseWriter, r *http.Request) {
	uuid := paramFrom(r, "uuid")
	app, ok := s.Apps.ByUUID(uuid)
	if !ok {
		writeErrorf(w, http.StatusNotFound, "unknown app")
		return
	}
	if app.ImagePath == "" {
		writeErrorf(w, http.StatusNotFound, "app has no cover image")
		return
	}
	if _, err := os.Stat(app.ImagePath); err != nil {
		writeErrorf(w, http.StatusNotFound, "cover image missing")
		return
	}
	switch strings.ToLower(filepath.Ext(app.ImagePath)) {
	case ".png":
		w.Header().Set("Content-Type", "image/png")
	case ".jpg", ".jpeg":
		w.Header().Set("Content-Type", "image/jpeg")
	default:
		w.Header().Set("Content-Type", "application/octet-stream")
	}
	http.ServeFile(w, r, app.ImagePath)
}

func (s *Server) handleLaunchApp(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UUID       string `json:"uuid"`
		DeviceName string `json:"deviceName"`
		Width      int    `json:"width"`
		Height     int    `json:"height"`
		FPS        int    `json:"fps"`
		EnableHDR  bool   `json:"enableHdr"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErrorf(w, http.StatusBadRequest, "decode launch: %v", err)
		return
	}

	session := &proc.LaunchSession{
		UniqueID:        usernameFrom(r),
		DeviceName:      body.DeviceName,
		Width:           body.Width,
		Height:          body.Height,
		FPS:             body.FPS,
		EnableHDR:       body.EnableHDR,
		LaunchStartedAt: time.Now(),
	}
	if err := s.Supervisor.Execute(r.Context(), body.UUID, session); err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, proc.ErrNotFound):
			status = http.StatusBadRequest
			err = fmt.Errorf("Cannot find requested application")
		case errors.Is(err, proc.ErrAlreadyRunning):
			status = http.StatusConflict
		}
		writeError(w, status, err)
		return
	}
	writeOK(w)
}

func (s *Server) handleCloseApp(w http.ResponseWriter, r *http.Request) {
	if err := s.Supervisor.Terminate(r.Context(), proc.TerminateOptions{ExitTimeout: 10 * time.Second}); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeOK(w)
}

func (s *Server) handlePurgeAutosynced(w http.ResponseWriter, r *http.Request) {
	apps := s.Apps.Apps()
	out := make([]*proc.AppDef, 0, len(apps))
	for _, a := range apps {
		if a.PlayniteManaged == "auto" {
			continue
		}
		out = append(out, a)
	}
	if err := s.Apps.ReplaceAll(out); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeOK(w)
}

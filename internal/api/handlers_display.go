package api

import (
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/Nonary/Vibepollo-sub000/internal/displayconfig"
)

func (s *Server) handleDisplayDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := displayconfig.EnumerateDevices()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if devices == nil {
		devices = []displayconfig.Device{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"devices": devices})
}

func (s *Server) handleExportGolden(w http.ResponseWriter, r *http.Request) {
	if s.Golden == nil {
		writeErrorf(w, http.StatusNotFound, "golden restore not available")
		return
	}
	devices, err := displayconfig.EnumerateDevices()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	snap, err := s.Golden.Export(devices)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": true, "golden": snap})
}

func (s *Server) handleGoldenStatus(w http.ResponseWriter, r *http.Request) {
	if s.Golden == nil {
		writeErrorf(w, http.StatusNotFound, "golden restore not available")
		return
	}
	snap, err := s.Golden.Status()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"exists": snap != nil,
		"golden": snap,
	})
}

func (s *Server) handleDeleteGolden(w http.ResponseWriter, r *http.Request) {
	if s.Golden == nil {
		writeErrorf(w, http.StatusNotFound, "golden restore not available")
		return
	}
	if err := s.Golden.Delete(); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeOK(w)
}

// handleHdrProfiles lists the .icm/.icc color-profile files installed under
// the configured hdr_profiles_dir; paired clients reference these by
// filename.
func (s *Server) handleHdrProfiles(w http.ResponseWriter, r *http.Request) {
	dir, _ := s.Config.Get("hdr_profiles_dir")
	if dir == "" {
		writeJSON(w, http.StatusOK, map[string]interface{}{"profiles": []string{}})
		return
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"profiles": []string{}})
		return
	}
	profiles := []string{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".icm", ".icc":
			profiles = append(profiles, e.Name())
		}
	}
	sort.Strings(profiles)
	writeJSON(w, http.StatusOK, map[string]interface{}{"profiles": profiles})
}

// handleFramegenEdidRefresh reports the refresh rate the virtual display
// should advertise when frame generation doubles effective refresh: the
// floor max(display_fps, 2*fps).
func (s *Server) handleFramegenEdidRefresh(w http.ResponseWriter, r *http.Request) {
	displayFPS := 60
	if raw, ok := s.Config.Get("dd_refresh_rate"); ok && raw != "" {
		if rate, err := displayconfig.ParseRefreshRateString(raw, true); err == nil && rate != nil && rate.Den != 0 {
			displayFPS = int(rate.Num / rate.Den)
		}
	}
	sessionFPS := displayFPS
	if raw := r.URL.Query().Get("fps"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			sessionFPS = v
		}
	}
	effective := displayconfig.EffectiveVirtualRefresh(displayFPS, sessionFPS, true)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"display_refresh": displayFPS,
		"edid_refresh":    effective,
	})
}

func (s *Server) handleVigemHealth(w http.ResponseWriter, r *http.Request) {
	installed, detail := vigemHealth()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"installed": installed,
		"detail":    detail,
	})
}

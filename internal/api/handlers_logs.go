package api

import (
	"net/http"
	"os"
	"path/filepath"
)

// handleGetLogs returns the current log file as plain text, one of the few
// non-JSON responses.
func (s *Server) handleGetLogs(w http.ResponseWriter, r *http.Request) {
	if s.LogPath == "" {
		writeErrorf(w, http.StatusNotFound, "no log file configured")
		return
	}
	data, err := os.ReadFile(s.LogPath)
	if err != nil {
		writeErrorf(w, http.StatusNotFound, "log file unavailable")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// handleExportLogs serves the log file as an attachment download.
func (s *Server) handleExportLogs(w http.ResponseWriter, r *http.Request) {
	if s.LogPath == "" {
		writeErrorf(w, http.StatusNotFound, "no log file configured")
		return
	}
	if _, err := os.Stat(s.LogPath); err != nil {
		writeErrorf(w, http.StatusNotFound, "log file unavailable")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filepath.Base(s.LogPath)+`"`)
	http.ServeFile(w, r, s.LogPath)
}

// handleExportCrashLogs serves the most recent crash dump, if one exists
// next to the log file (Windows only; elsewhere there is never a dump).
func (s *Server) handleExportCrashLogs(w http.ResponseWriter, r *http.Request) {
	dump := crashDumpPath(s.LogPath)
	if dump == "" {
		writeErrorf(w, http.StatusNotFound, "no crash dump available")
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filepath.Base(dump)+`"`)
	http.ServeFile(w, r, dump)
}

package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/Nonary/Vibepollo-sub000/internal/playnite"
)

func (s *Server) handlePlayniteStatus(w http.ResponseWriter, r *http.Request) {
	if s.Playnite == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"connected": false})
		return
	}
	snap := s.Playnite.Snapshot()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"connected":  true,
		"games":      len(snap.Games),
		"categories": snap.Categories,
	})
}

// handlePlayniteSync runs an immediate autosync reconcile pass against the
// last-known Playnite snapshot, matching the manual "Sync now" action.
func (s *Server) handlePlayniteSync(w http.ResponseWriter, r *http.Request) {
	if s.Playnite == nil {
		writeErrorf(w, http.StatusServiceUnavailable, "playnite not connected")
		return
	}
	snap := s.Playnite.Snapshot()

	uninstalled := map[string]bool{}
	for _, g := range snap.Games {
		if !g.Installed {
			uninstalled[strings.ToLower(g.ID)] = true
		}
	}
	updated, changed := playnite.AutosyncReconcile(s.Apps.Apps(), snap.Games, uninstalled, s.reconcileOptionsFromConfig())
	if changed {
		if err := s.Apps.ReplaceAll(updated); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": true, "changed": changed})
}

// reconcileOptionsFromConfig maps the playnite_* config keys onto the
// reconcile knobs.
func (s *Server) reconcileOptionsFromConfig() playnite.ReconcileOptions {
	intKey := func(key string, def int) int {
		raw, ok := s.Config.Get(key)
		if !ok || raw == "" {
			return def
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return def
		}
		return v
	}
	listKey := func(key string) []string {
		var out []string
		if _, err := s.Config.GetJSON(key, &out); err != nil {
			return nil
		}
		return out
	}
	return playnite.ReconcileOptions{
		RecentGames:             intKey("playnite_recent_games", 10),
		RecentMaxAgeDays:        intKey("playnite_recent_max_age_days", 0),
		AutosyncDeleteAfterDays: intKey("playnite_autosync_delete_after_days", 0),
		IncludeCategories:       listKey("playnite_sync_categories"),
		ExcludeCategories:       listKey("playnite_sync_exclude_categories"),
		ExcludeGames:            listKey("playnite_sync_exclude_games"),
		ExcludePlugins:          listKey("playnite_sync_exclude_plugins"),
	}
}

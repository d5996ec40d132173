// Package playnite implements the Playnite plugin IPC client and the
// library reconcile logic behind auto-sync.
package playnite

import "time"

// Game is one library entry reported by the plugin.
type Game struct {
	ID         string
	Name       string
	LastPlayed string // ISO-8601 UTC, parsed defensively
	Installed  bool
	Categories []string
	PluginID   string
	PluginName string
	Exe        string
	WorkingDir string
	BoxArtPath string
}

// Plugin is a `{id, name}` entry from a `plugins` message.
type Plugin struct {
	ID   string
	Name string
}

// sourceBit is the autosync bitfield: bit 0 = recent, bit 1 = category.
const (
	sourceRecent   = 1
	sourceCategory = 2
)

// SourceLabel converts the bitfield to the persisted playnite-source enum.
func SourceLabel(flags int) string {
	switch flags & (sourceRecent | sourceCategory) {
	case sourceRecent:
		return "recent"
	case sourceCategory:
		return "category"
	case sourceRecent | sourceCategory:
		return "recent+category"
	default:
		return "unknown"
	}
}

// nowISO8601UTC is a package-level var so tests can stub it and so the
// caller's clock discipline stays centralized.
var nowISO8601UTC = func() string { return time.Now().UTC().Format(time.RFC3339) }

// ParseISO8601 parses timestamps defensively, tolerating fractional
// seconds.
func ParseISO8601(s string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05.999999999Z07:00"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

package playnite

import (
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Nonary/Vibepollo-sub000/internal/proc"
)

// SelectRecentInstalledGames sorts by
// last_played desc, keeps top n, drops entries with no parseable timestamp
// when recentMaxAgeDays > 0 and the timestamp is older than that window.
// Selected ids get the "recent" bit set in flags.
func SelectRecentInstalledGames(games []Game, n, recentMaxAgeDays int, excludeGames, excludeCategories, excludePlugins map[string]bool, flags map[string]int) []Game {
	candidates := make([]Game, 0, len(games))
	for _, g := range games {
		if excludeGames[g.ID] || excludePlugins[strings.ToLower(g.PluginID)] {
			continue
		}
		excluded := false
		for _, c := range g.Categories {
			if excludeCategories[c] {
				excluded = true
				break
			}
		}
		if excluded {
			continue
		}
		candidates = append(candidates, g)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		ti, oki := ParseISO8601(candidates[i].LastPlayed)
		tj, okj := ParseISO8601(candidates[j].LastPlayed)
		if !oki {
			return false
		}
		if !okj {
			return true
		}
		return ti.After(tj)
	})

	out := make([]Game, 0, n)
	cutoff := time.Time{}
	if recentMaxAgeDays > 0 {
		cutoff = time.Now().UTC().AddDate(0, 0, -recentMaxAgeDays)
	}
	for _, g := range candidates {
		if len(out) >= n {
			break
		}
		t, ok := ParseISO8601(g.LastPlayed)
		if !ok {
			continue
		}
		if recentMaxAgeDays > 0 && t.Before(cutoff) {
			continue
		}
		out = append(out, g)
		flags[g.ID] |= sourceRecent
	}
	return out
}

// SelectCategoryGames picks games matching the include/exclude category and
// plugin configuration, setting the "category" bit in flags.
func SelectCategoryGames(games []Game, includeCategories []string, excludeGames, excludeCategories, excludePlugins map[string]bool, flags map[string]int) []Game {
	if len(includeCategories) == 0 {
		return nil
	}
	include := make(map[string]bool, len(includeCategories))
	for _, c := range includeCategories {
		include[c] = true
	}

	var out []Game
	for _, g := range games {
		if excludeGames[g.ID] || excludePlugins[strings.ToLower(g.PluginID)] {
			continue
		}
		matched, excluded := false, false
		for _, c := range g.Categories {
			if excludeCategories[c] {
				excluded = true
				break
			}
			if include[c] {
				matched = true
			}
		}
		if excluded || !matched {
			continue
		}
		out = append(out, g)
		flags[g.ID] |= sourceCategory
	}
	return out
}

// GameRef is a pointer-like reference used by the app-matching indexes.
type GameRef = *Game

// BuildGameIndexes builds by-id, by-cmd(exe), and by-working-dir lookup
// tables over the selected games, for MatchAppAgainstIndexes.
func BuildGameIndexes(selected []Game) (byID, byExe, byDir map[string]GameRef) {
	byID = map[string]GameRef{}
	byExe = map[string]GameRef{}
	byDir = map[string]GameRef{}
	for i := range selected {
		g := &selected[i]
		byID[g.ID] = g
		if g.Exe != "" {
			byExe[normalizePath(g.Exe)] = g
		}
		if g.WorkingDir != "" {
			byDir[normalizePath(g.WorkingDir)] = g
		}
	}
	return
}

// normalizePath strips quotes and normalizes separators so "C:/Games/Game.exe"
// and "\"C:/Games/Game.exe\"" compare equal; the result is lowercased.
func normalizePath(p string) string {
	p = strings.Trim(p, "\"")
	p = filepath.ToSlash(p)
	return strings.ToLower(p)
}

// MatchAppAgainstIndexes matches an AppDef against the selected-game
// indexes, preferring playnite-id, then cmd, then working-dir.
func MatchAppAgainstIndexes(app *proc.AppDef, byID, byExe, byDir map[string]GameRef) GameRef {
	if app.PlayniteID != "" {
		if g, ok := byID[app.PlayniteID]; ok {
			return g
		}
	}
	if app.Cmd != "" {
		if g, ok := byExe[normalizePath(app.Cmd)]; ok {
			return g
		}
	}
	if app.WorkingDir != "" {
		if g, ok := byDir[normalizePath(app.WorkingDir)]; ok {
			return g
		}
	}
	return nil
}

// MarkAppAsPlayniteAuto sets playnite-managed=auto and the playnite-source
// label derived from the bitfield.
func MarkAppAsPlayniteAuto(app *proc.AppDef, flags int) {
	app.PlayniteManaged = "auto"
	app.PlayniteSource = SourceLabel(flags)
}

// ShouldTTLDelete implements should_ttl_delete: disabled when
// deleteAfterDays<=0, and skipped whenever the game's last-played time is at
// or after the app's playnite-added-at stamp (the user played it since it
// was added).
func ShouldTTLDelete(app *proc.AppDef, deleteAfterDays int, now time.Time, lastPlayed map[string]time.Time) bool {
	if deleteAfterDays <= 0 {
		return false
	}
	added, ok := ParseISO8601(app.PlayniteAddedAt)
	if !ok {
		return false
	}
	if lp, ok := lastPlayed[app.PlayniteID]; ok && !lp.Before(added) {
		return false
	}
	return now.Sub(added) > time.Duration(deleteAfterDays)*24*time.Hour
}

// PurgeUninstalledAndTTL removes auto-managed apps that are no longer
// installed (case-insensitive id match against uninstalledLower) or that
// exceed the TTL, reporting whether anything changed.
func PurgeUninstalledAndTTL(apps []*proc.AppDef, uninstalledLower map[string]bool, deleteAfterDays int, now time.Time, lastPlayed map[string]time.Time) ([]*proc.AppDef, bool) {
	changed := false
	out := apps[:0:0]
	for _, app := range apps {
		if app.PlayniteManaged != "auto" || app.PlayniteID == "" {
			out = append(out, app)
			continue
		}
		if uninstalledLower[strings.ToLower(app.PlayniteID)] || ShouldTTLDelete(app, deleteAfterDays, now, lastPlayed) {
			changed = true
			continue
		}
		out = append(out, app)
	}
	return out, changed
}

// AddMissingAutoEntries appends a new AppDef for every selected game not
// already matched, stamping playnite-added-at with the current time.
func AddMissingAutoEntries(apps []*proc.AppDef, selected []Game, matchedIDs map[string]bool, sourceFlags map[string]int) ([]*proc.AppDef, bool) {
	changed := false
	for _, g := range selected {
		if matchedIDs[g.ID] {
			continue
		}
		apps = append(apps, &proc.AppDef{
			Name:            g.Name,
			PlayniteID:      g.ID,
			PlayniteManaged: "auto",
			PlayniteSource:  SourceLabel(sourceFlags[g.ID]),
			PlayniteAddedAt: nowISO8601UTC(),
		})
		changed = true
	}
	return apps, changed
}

// ReconcileOptions bundles the config knobs the reconcile pass consults.
type ReconcileOptions struct {
	RecentGames           int
	RecentMaxAgeDays      int
	AutosyncDeleteAfterDays int
	IncludeCategories     []string
	ExcludeCategories     []string
	ExcludeGames          []string
	ExcludePlugins        []string
}

func toSet(items []string) map[string]bool {
	out := make(map[string]bool, len(items))
	for _, i := range items {
		out[i] = true
	}
	return out
}

// AutosyncReconcile runs the full library reconcile pass over
// the current apps list and the latest Playnite snapshot, returning the
// updated apps list and whether anything changed (the caller persists only
// on change, then calls proc.Store to reparse).
func AutosyncReconcile(apps []*proc.AppDef, games []Game, uninstalledLower map[string]bool, opts ReconcileOptions) ([]*proc.AppDef, bool) {
	excludeGames := toSet(opts.ExcludeGames)
	excludeCategories := toSet(opts.ExcludeCategories)
	excludePlugins := toSet(opts.ExcludePlugins)

	flags := map[string]int{}
	recent := SelectRecentInstalledGames(games, opts.RecentGames, opts.RecentMaxAgeDays, excludeGames, excludeCategories, excludePlugins, flags)
	category := SelectCategoryGames(games, opts.IncludeCategories, excludeGames, excludeCategories, excludePlugins, flags)

	selectedByID := map[string]Game{}
	for _, g := range recent {
		selectedByID[g.ID] = g
	}
	for _, g := range category {
		selectedByID[g.ID] = g
	}
	selected := make([]Game, 0, len(selectedByID))
	for _, g := range selectedByID {
		selected = append(selected, g)
	}
	sort.Slice(selected, func(i, j int) bool { return selected[i].ID < selected[j].ID })

	byID, byExe, byDir := BuildGameIndexes(selected)

	matchedIDs := map[string]bool{}
	changed := false
	for _, app := range apps {
		if g := MatchAppAgainstIndexes(app, byID, byExe, byDir); g != nil {
			MarkAppAsPlayniteAuto(app, flags[g.ID])
			matchedIDs[g.ID] = true
			changed = true
		}
	}

	lastPlayed := map[string]time.Time{}
	for _, g := range games {
		if t, ok := ParseISO8601(g.LastPlayed); ok {
			lastPlayed[g.ID] = t
		}
	}

	var purged bool
	apps, purged = PurgeUninstalledAndTTL(apps, uninstalledLower, opts.AutosyncDeleteAfterDays, time.Now().UTC(), lastPlayed)
	changed = changed || purged

	var added bool
	apps, added = AddMissingAutoEntries(apps, selected, matchedIDs, flags)
	changed = changed || added

	return apps, changed
}

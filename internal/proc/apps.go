package proc

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// AppsFile is the on-disk apps.json shape.
type AppsFile struct {
	Env  map[string]string `json:"env"`
	Apps []*AppDef         `json:"apps"`
}

// Store owns the parsed apps.json, recomputes ids on every load, and
// assigns a uuid to any app missing one. All mutation goes through this
// type so id recomputation and atomic persistence stay centralized
// under one writer lock.
type Store struct {
	mu   sync.RWMutex
	path string
	file AppsFile
}

// NewStore loads path, or starts empty if it does not exist yet.
func NewStore(path string) (*Store, error) {
	s := &Store{path: path, file: AppsFile{Env: map[string]string{}}}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("proc: read apps.json: %w", err)
	}
	var parsed AppsFile
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("proc: parse apps.json: %w", err)
	}
	if parsed.Env == nil {
		parsed.Env = map[string]string{}
	}
	s.file = parsed
	changed := normalizeAndAssignIDs(s.file.Apps)
	if changed {
		if err := s.persistLocked(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// normalizeAndAssignIDs assigns missing uuids and recomputes every app's
// short id, resolving CRC32 collisions by salting with the app's index.
// Reports whether anything changed (uuid assignment), since that must be
// persisted immediately.
func normalizeAndAssignIDs(apps []*AppDef) bool {
	changed := false
	seen := map[string]bool{}
	for i, a := range apps {
		if a.UUID == "" {
			a.UUID = uuid.NewString()
			changed = true
		}
		withoutIdx, withIdx := CalculateAppID(a.Name, a.ImagePath, i)
		id := withoutIdx
		if seen[id] {
			id = withIdx
		}
		seen[id] = true
		a.ID = id
	}
	return changed
}

// Apps returns a snapshot slice of the current app list.
func (s *Store) Apps() []*AppDef {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*AppDef, len(s.file.Apps))
	copy(out, s.file.Apps)
	return out
}

// Env returns a copy of the global env map.
func (s *Store) Env() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.file.Env))
	for k, v := range s.file.Env {
		out[k] = v
	}
	return out
}

// ByUUID returns the app with the given uuid.
func (s *Store) ByUUID(id string) (*AppDef, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.file.Apps {
		if a.UUID == id {
			return a, true
		}
	}
	return nil, false
}

// Upsert implements `POST /api/apps`: replaces the app with the same uuid,
// or appends when none matches; assigns a uuid if missing.
func (s *Store) Upsert(app *AppDef) error {
	s.mu.Lock()
	if app.UUID == "" {
		app.UUID = uuid.NewString()
	}
	replaced := false
	for i, a := range s.file.Apps {
		if a.UUID == app.UUID {
			s.file.Apps[i] = app
			replaced = true
			break
		}
	}
	if !replaced {
		s.file.Apps = append(s.file.Apps, app)
	}
	normalizeAndAssignIDs(s.file.Apps)
	err := s.persistLocked()
	s.mu.Unlock()
	return err
}

// DeleteByUUID removes the app with the given uuid, returning the removed
// entry so callers can run its teardown side effects, or nil if not found.
func (s *Store) DeleteByUUID(id string) (*AppDef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, a := range s.file.Apps {
		if a.UUID == id {
			s.file.Apps = append(s.file.Apps[:i], s.file.Apps[i+1:]...)
			return a, s.persistLocked()
		}
	}
	return nil, nil
}

// DeleteByIndex removes the app at list position idx, serving the legacy
// DELETE /api/apps/{index} route. Returns the removed entry or nil when idx
// is out of range.
func (s *Store) DeleteByIndex(idx int) (*AppDef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx < 0 || idx >= len(s.file.Apps) {
		return nil, nil
	}
	removed := s.file.Apps[idx]
	s.file.Apps = append(s.file.Apps[:idx], s.file.Apps[idx+1:]...)
	return removed, s.persistLocked()
}

// Reorder applies `order` (a uuid list) as the
// new prefix ordering, appending apps not named in `order` in their
// original relative order, and silently dropping uuids in `order` that
// don't exist. It is idempotent: applying the same order twice yields the
// same result as applying it once.
func Reorder(apps []*AppDef, order []string) []*AppDef {
	byUUID := make(map[string]*AppDef, len(apps))
	for _, a := range apps {
		byUUID[a.UUID] = a
	}

	out := make([]*AppDef, 0, len(apps))
	placed := map[string]bool{}
	for _, id := range order {
		if a, ok := byUUID[id]; ok && !placed[id] {
			out = append(out, a)
			placed[id] = true
		}
	}
	for _, a := range apps {
		if !placed[a.UUID] {
			out = append(out, a)
			placed[a.UUID] = true
		}
	}
	return out
}

// Reorder applies a new uuid ordering in place and persists it.
func (s *Store) Reorder(order []string) error {
	s.mu.Lock()
	s.file.Apps = Reorder(s.file.Apps, order)
	err := s.persistLocked()
	s.mu.Unlock()
	return err
}

// ReplaceAll swaps the entire app list, used by the Playnite autosync
// reconciler to apply an add/annotate/purge pass in one persisted write.
func (s *Store) ReplaceAll(apps []*AppDef) error {
	s.mu.Lock()
	s.file.Apps = apps
	normalizeAndAssignIDs(s.file.Apps)
	err := s.persistLocked()
	s.mu.Unlock()
	return err
}

func (s *Store) persistLocked() error {
	data, err := json.MarshalIndent(s.file, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

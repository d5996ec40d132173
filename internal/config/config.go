// Package config implements the `key = value` configuration file grammar:
// one assignment per line, blank lines and comments ignored, unknown keys
// preserved verbatim, and a small set of keys holding a JSON array instead
// of a raw string. Backed by ini.v1 directly rather than viper, whose
// typed-config model would normalize away unknown keys and the JSON-array
// special-casing this grammar needs.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/ini.v1"
)

// jsonKeys is the set of keys whose value is a JSON array rather than a raw
// string (playnite_sync_categories
// and similar list-shaped settings).
var jsonKeys = map[string]bool{
	"playnite_sync_categories":         true,
	"playnite_sync_exclude_categories": true,
	"playnite_sync_exclude_games":      true,
	"playnite_sync_exclude_plugins":    true,
	"dd_resolution_override":           true,
	"dd_remap":                         true,
}

// RestartRequiredKeys names the keys whose change cannot be hot-applied:
// changing any of these requires a process restart to take effect.
var RestartRequiredKeys = map[string]bool{
	"port":           true,
	"address_family": true,
	"upnp":           true,
	"pkey":           true,
	"cert":           true,
}

// IsJSONKey reports whether key's value is stored as a JSON array.
func IsJSONKey(key string) bool { return jsonKeys[key] }

// Store is the mutex-guarded, ini.v1-backed key=value file. Every value is
// read/written as a raw string, except JSONKeys which round-trip an
// encoding/json array.
type Store struct {
	mu   sync.RWMutex
	path string
	file *ini.File
}

func newEmptyFile() *ini.File {
	f := ini.Empty(ini.LoadOptions{
		PreserveSurroundedQuote: true,
		IgnoreInlineComment:     true,
	})
	return f
}

// Load reads path, or starts an empty store if the file does not exist yet.
func Load(path string) (*Store, error) {
	s := &Store{path: path}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		s.file = newEmptyFile()
		return s, nil
	}
	f, err := ini.LoadSources(ini.LoadOptions{
		PreserveSurroundedQuote: true,
		IgnoreInlineComment:     true,
	}, path)
	if err != nil {
		return nil, fmt.Errorf("config: load %s: %w", path, err)
	}
	s.file = f
	return s, nil
}

func (s *Store) section() *ini.Section {
	return s.file.Section(ini.DefaultSection)
}

// Get returns the raw string value for key, or ("", false) if unset.
func (s *Store) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.section().HasKey(key) {
		return "", false
	}
	return s.section().Key(key).String(), true
}

// GetJSON decodes a JSON-valued key into v.
func (s *Store) GetJSON(key string, v interface{}) (bool, error) {
	raw, ok := s.Get(key)
	if !ok || raw == "" {
		return false, nil
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return false, fmt.Errorf("config: key %q is not valid JSON: %w", key, err)
	}
	return true, nil
}

// All returns a snapshot of every key=value pair currently set, as a map;
// the order of its entries is not defined.
func (s *Store) All() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := map[string]string{}
	for _, k := range s.section().Keys() {
		out[k.Name()] = k.String()
	}
	return out
}

// Keys returns the set key names in stable (sorted) order, for deterministic
// serialization in API responses.
func (s *Store) Keys() []string {
	all := s.All()
	out := make([]string, 0, len(all))
	for k := range all {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Set assigns key=value and persists immediately.
func (s *Store) Set(key, value string) error {
	s.mu.Lock()
	s.section().Key(key).SetValue(value)
	s.mu.Unlock()
	return s.save()
}

// SetJSON marshals v and stores it under key as a JSON-array value.
func (s *Store) SetJSON(key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("config: marshal %q: %w", key, err)
	}
	return s.Set(key, string(data))
}

// Delete removes key entirely, matching PATCH's null/empty-string removal
// semantics.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	s.section().DeleteKey(key)
	s.mu.Unlock()
	return s.save()
}

// PatchResult reports what an ApplyPatch call changed, so the API layer can
// decide hot-apply vs. deferred vs. restart-required.
type PatchResult struct {
	Changed          []string
	RestartRequired  bool
	PlayniteOnly     bool // every changed key is Playnite-prefixed: hot-apply-safe mid-session
}

// ApplyPatch applies a set of key->value assignments in one locked pass; a
// nil value pointer or an empty string deletes the key (PATCH semantics).
// Values that are unchanged (same string) are not reported as Changed.
func (s *Store) ApplyPatch(patch map[string]*string) (PatchResult, error) {
	var result PatchResult
	s.mu.Lock()
	for key, val := range patch {
		cur, existed := "", false
		if s.section().HasKey(key) {
			cur = s.section().Key(key).String()
			existed = true
		}
		if val == nil || *val == "" {
			if existed {
				s.section().DeleteKey(key)
				result.Changed = append(result.Changed, key)
			}
			continue
		}
		if existed && cur == *val {
			continue
		}
		s.section().Key(key).SetValue(*val)
		result.Changed = append(result.Changed, key)
	}
	s.mu.Unlock()

	if err := s.save(); err != nil {
		return result, err
	}

	sort.Strings(result.Changed)
	result.PlayniteOnly = len(result.Changed) > 0
	for _, k := range result.Changed {
		if RestartRequiredKeys[k] {
			result.RestartRequired = true
		}
		if !isPlaynitePrefixed(k) {
			result.PlayniteOnly = false
		}
	}
	return result, nil
}

func isPlaynitePrefixed(key string) bool {
	return len(key) >= len("playnite_") && key[:len("playnite_")] == "playnite_"
}

func (s *Store) save() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil && filepath.Dir(s.path) != "." {
		return err
	}
	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := s.file.WriteTo(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

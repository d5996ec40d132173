package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetGetRoundTripsAndPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sunshine.conf")
	s, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, s.Set("port", "47989"))

	reloaded, err := Load(path)
	require.NoError(t, err)
	v, ok := reloaded.Get("port")
	require.True(t, ok)
	require.Equal(t, "47989", v)
}

func TestUnknownKeysPreservedVerbatim(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sunshine.conf")
	s, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, s.Set("some_future_key", "raw-value"))

	reloaded, err := Load(path)
	require.NoError(t, err)
	v, ok := reloaded.Get("some_future_key")
	require.True(t, ok)
	require.Equal(t, "raw-value", v)
}

func TestJSONKeyRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sunshine.conf")
	s, err := Load(path)
	require.NoError(t, err)
	require.True(t, IsJSONKey("playnite_sync_categories"))
	require.NoError(t, s.SetJSON("playnite_sync_categories", []string{"Recent", "Shooter"}))

	var out []string
	ok, err := s.GetJSON("playnite_sync_categories", &out)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []string{"Recent", "Shooter"}, out)
}

func TestApplyPatchDetectsRestartRequiredKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sunshine.conf")
	s, err := Load(path)
	require.NoError(t, err)

	val := "48020"
	res, err := s.ApplyPatch(map[string]*string{"port": &val})
	require.NoError(t, err)
	require.True(t, res.RestartRequired)
	require.Equal(t, []string{"port"}, res.Changed)
}

func TestApplyPatchPlayniteOnlyIsHotApplySafe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sunshine.conf")
	s, err := Load(path)
	require.NoError(t, err)

	val := "true"
	res, err := s.ApplyPatch(map[string]*string{"playnite_auto_sync": &val})
	require.NoError(t, err)
	require.False(t, res.RestartRequired)
	require.True(t, res.PlayniteOnly)
}

func TestApplyPatchNullValueDeletesKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sunshine.conf")
	s, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, s.Set("locale", "en"))

	res, err := s.ApplyPatch(map[string]*string{"locale": nil})
	require.NoError(t, err)
	require.Equal(t, []string{"locale"}, res.Changed)
	_, ok := s.Get("locale")
	require.False(t, ok)
}

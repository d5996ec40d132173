package pairing

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStorePersistsAcrossReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clients.json")
	s, err := NewStore(path)
	require.NoError(t, err)

	require.NoError(t, s.Upsert(&PairedClient{Name: "Living Room", Perm: PermInput | PermLaunch}))
	require.Len(t, s.List(), 1)

	reloaded, err := NewStore(path)
	require.NoError(t, err)
	list := reloaded.List()
	require.Len(t, list, 1)
	require.Equal(t, "Living Room", list[0].Name)
	require.True(t, list[0].Has(PermInput))
	require.False(t, list[0].Has(PermClipboard))
}

func TestUnpairRemovesClient(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clients.json")
	s, err := NewStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Upsert(&PairedClient{UUID: "abc", Name: "X"}))
	require.NoError(t, s.Unpair("abc"))
	_, ok := s.Get("abc")
	require.False(t, ok)
}

func TestUnpairAllClearsStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clients.json")
	s, err := NewStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Upsert(&PairedClient{Name: "A"}))
	require.NoError(t, s.Upsert(&PairedClient{Name: "B"}))
	require.NoError(t, s.UnpairAll())
	require.Empty(t, s.List())
}

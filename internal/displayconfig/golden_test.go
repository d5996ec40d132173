package displayconfig

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGoldenStoreExportStatusDeleteRoundTrip(t *testing.T) {
	store := NewGoldenStore(filepath.Join(t.TempDir(), "golden_display.json"))

	snap, err := store.Status()
	require.NoError(t, err)
	require.Nil(t, snap)

	devices := []Device{
		{DeviceID: `MONITOR\DEL1234`, DeviceName: `\\.\DISPLAY1`, Active: true, Primary: true},
		{DeviceID: `MONITOR\SUV0420`, DeviceName: `\\.\DISPLAY2`, Active: true},
	}
	exported, err := store.Export(devices)
	require.NoError(t, err)
	require.False(t, exported.CapturedAt.IsZero())

	snap, err = store.Status()
	require.NoError(t, err)
	require.NotNil(t, snap)
	require.Equal(t, devices, snap.Devices)

	require.NoError(t, store.Delete())
	snap, err = store.Status()
	require.NoError(t, err)
	require.Nil(t, snap)

	// Deleting again stays a no-op.
	require.NoError(t, store.Delete())
}

package losslessscaling

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const seedXML = `<?xml version="1.0"?>
<Profiles>
  <Profile Name="Default">
    <Settings>
      <Setting Key="AutoScale" Value="false"/>
      <Setting Key="AutoScaleDelay" Value="3"/>
      <Setting Key="LSFG3Target" Value="60"/>
    </Settings>
  </Profile>
</Profiles>`

func seedProfiles(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profiles.xml")
	require.NoError(t, os.WriteFile(path, []byte(seedXML), 0o644))
	return path
}

func TestApplyProfileBacksUpDefaultAndWritesVibeshine(t *testing.T) {
	path := seedProfiles(t)

	backup, err := ApplyProfile(path, Options{TargetFPS: 120, ScalingType: "ls1", FlowScale: 50, ResolutionScale: 75, Sharpening: 3})
	require.NoError(t, err)
	require.Equal(t, "false", backup.AutoScale)
	require.Equal(t, "3", backup.AutoScaleDelay)
	require.Equal(t, "60", backup.LSFG3Target)

	doc, err := loadProfileDoc(path)
	require.NoError(t, err)

	def := findProfile(doc, defaultProfileName)
	require.NotNil(t, def)
	v, _ := def.get(keyAutoScale)
	require.Equal(t, "true", v)
	v, _ = def.get(keyLSFG3Target)
	require.Equal(t, "120", v)

	vb := findProfile(doc, vibeshineProfile)
	require.NotNil(t, vb)
	v, _ = vb.get("ScalingType")
	require.Equal(t, "ls1", v)
}

func TestRestoreProfileWritesBackBackup(t *testing.T) {
	path := seedProfiles(t)

	backup, err := ApplyProfile(path, Options{TargetFPS: 120})
	require.NoError(t, err)
	require.NoError(t, RestoreProfile(path, backup))

	doc, err := loadProfileDoc(path)
	require.NoError(t, err)
	def := findProfile(doc, defaultProfileName)
	v, _ := def.get(keyAutoScale)
	require.Equal(t, "false", v)
	v, _ = def.get(keyLSFG3Target)
	require.Equal(t, "60", v)
}

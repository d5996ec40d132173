package displayconfig

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestParseResolutionStringValid(t *testing.T) {
	res, err := ParseResolutionString("1920x1080")
	require.NoError(t, err)
	require.Equal(t, &Resolution{Width: 1920, Height: 1080}, res)
}

func TestParseResolutionStringEmptyMeansUnchanged(t *testing.T) {
	res, err := ParseResolutionString("   ")
	require.NoError(t, err)
	require.Nil(t, res)
}

func TestParseResolutionStringRejectsGarbage(t *testing.T) {
	for _, in := range []string{"1920", "1920x", "x1080", "1920x1080x60", "abcxdef"} {
		_, err := ParseResolutionString(in)
		require.Error(t, err, in)
	}
}

func TestParseRefreshRateStringInteger(t *testing.T) {
	r, err := ParseRefreshRateString("60", true)
	require.NoError(t, err)
	require.Equal(t, &Rational{Num: 60, Den: 1}, r)
}

func TestParseRefreshRateStringDecimal(t *testing.T) {
	r, err := ParseRefreshRateString("59.94", true)
	require.NoError(t, err)
	require.Equal(t, &Rational{Num: 5994, Den: 100}, r)
}

func TestParseRefreshRateStringTrailingZerosStripped(t *testing.T) {
	r, err := ParseRefreshRateString("60.00", true)
	require.NoError(t, err)
	require.Equal(t, &Rational{Num: 60, Den: 1}, r)
}

func TestParseRefreshRateStringEmpty(t *testing.T) {
	r, err := ParseRefreshRateString("", true)
	require.NoError(t, err)
	require.Nil(t, r)
}

func TestParseRefreshRateStringDecimalDisallowed(t *testing.T) {
	_, err := ParseRefreshRateString("59.94", false)
	require.Error(t, err)
}

func TestParseRefreshRatePreferHighestSentinel(t *testing.T) {
	cfg := UserConfig{DevicePrep: "ensure_active", RefreshMode: "prefer_highest"}
	out, err := Parse(cfg, SessionInfo{Width: 1920, Height: 1080, FPS: 60})
	require.NoError(t, err)
	require.Equal(t, &PreferHighest, out.RefreshRate)
}

// Automatic refresh with framegen active should pick
// framegen_refresh_rate over fps.
func TestParseAutomaticWithFramegenRefresh(t *testing.T) {
	cfg := UserConfig{
		DevicePrep:     "ensure_active",
		ResolutionMode: "automatic",
		RefreshMode:    "automatic",
		HDRMode:        "automatic",
	}
	session := SessionInfo{Width: 1920, Height: 1080, FPS: 60, FramegenRefreshRate: 120, EnableHDR: true}

	out, err := Parse(cfg, session)
	require.NoError(t, err)
	require.Equal(t, &Resolution{Width: 1920, Height: 1080}, out.Resolution)
	require.Equal(t, &Rational{Num: 120, Den: 1}, out.RefreshRate)
	require.Equal(t, HdrEnabled, out.HdrState)
	require.Equal(t, EnsureActive, out.DevicePrep)
}

func TestParseAutomaticFullConfigStructurally(t *testing.T) {
	cfg := UserConfig{
		DevicePrep:     "ensure_active",
		ResolutionMode: "automatic",
		RefreshMode:    "automatic",
		HDRMode:        "automatic",
	}
	session := SessionInfo{Width: 1920, Height: 1080, FPS: 60, FramegenRefreshRate: 120, EnableHDR: true}

	out, err := Parse(cfg, session)
	require.NoError(t, err)

	want := &DisplayConfig{
		DevicePrep:       EnsureActive,
		Resolution:       &Resolution{Width: 1920, Height: 1080},
		RefreshRate:      &Rational{Num: 120, Den: 1},
		HdrState:         HdrEnabled,
		MonitorPositions: map[string]Point{},
	}
	if diff := cmp.Diff(want, out); diff != "" {
		t.Fatalf("Parse() mismatch (-want +got):\n%s", diff)
	}
}

func TestParseDisabledReturnsSentinelError(t *testing.T) {
	_, err := Parse(UserConfig{DevicePrep: "disabled"}, SessionInfo{})
	require.ErrorIs(t, err, ErrConfigurationDisabled)
}

func TestApplyRemapWildcardFields(t *testing.T) {
	fps := 60
	finalRes := Resolution{Width: 2560, Height: 1440}
	cfg := UserConfig{
		DevicePrep:     "ensure_active",
		ResolutionMode: "automatic",
		RefreshMode:    "automatic",
		Remap: []RemapEntry{
			{RequestedFPS: &fps, FinalResolution: &finalRes},
		},
	}
	out, err := Parse(cfg, SessionInfo{Width: 1920, Height: 1080, FPS: 60})
	require.NoError(t, err)
	require.Equal(t, &finalRes, out.Resolution)
}

func TestApplyRemapMalformedEntryFails(t *testing.T) {
	cfg := UserConfig{
		DevicePrep:     "ensure_active",
		ResolutionMode: "automatic",
		RefreshMode:    "automatic",
		Remap:          []RemapEntry{{}},
	}
	_, err := Parse(cfg, SessionInfo{Width: 1920, Height: 1080, FPS: 60})
	require.Error(t, err)
}

package displayconfig

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var resolutionRegex = regexp.MustCompile(`^(\d+)x(\d+)$`)
var refreshRegexDecimal = regexp.MustCompile(`^(\d+)(?:\.(\d+))?$`)
var refreshRegexInteger = regexp.MustCompile(`^(\d+)$`)

// ParseResolutionString parses "WxH": empty (after trim) means "unchanged"
// (nil, nil); anything else must match `^\d+x\d+$` exactly or it fails.
func ParseResolutionString(input string) (*Resolution, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return nil, nil
	}
	m := resolutionRegex.FindStringSubmatch(trimmed)
	if m == nil {
		return nil, fmt.Errorf("displayconfig: resolution %q must match \"1920x1080\" pattern", trimmed)
	}
	w, err := strconv.ParseUint(m[1], 10, 32)
	if err != nil {
		return nil, fmt.Errorf("displayconfig: resolution %q out of range", trimmed)
	}
	h, err := strconv.ParseUint(m[2], 10, 32)
	if err != nil {
		return nil, fmt.Errorf("displayconfig: resolution %q out of range", trimmed)
	}
	return &Resolution{Width: int(w), Height: int(h)}, nil
}

// ParseRefreshRateString parses a refresh-rate string into a Rational,
// matching parse_refresh_rate_string. allowDecimalPoint controls whether a
// "."-delimited fractional part is accepted (manual mode only).
func ParseRefreshRateString(input string, allowDecimalPoint bool) (*Rational, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return nil, nil
	}

	re := refreshRegexInteger
	if allowDecimalPoint {
		re = refreshRegexDecimal
	}
	m := re.FindStringSubmatch(trimmed)
	if m == nil {
		pattern := `"123"`
		if allowDecimalPoint {
			pattern = `"123" or "123.456"`
		}
		return nil, fmt.Errorf("displayconfig: refresh rate %q must have pattern %s", trimmed, pattern)
	}

	intPart := strings.TrimLeft(m[1], "0")
	if intPart == "" {
		intPart = "0"
	}

	var fracPart string
	if allowDecimalPoint && len(m) > 2 && m[2] != "" {
		fracPart = strings.TrimRight(m[2], "0")
	}

	if fracPart != "" {
		numStr := intPart + fracPart
		num, err := strconv.ParseUint(numStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("displayconfig: refresh rate %q out of range", trimmed)
		}
		den := int64(1)
		for i := 0; i < len(fracPart); i++ {
			den *= 10
		}
		return &Rational{Num: int64(num), Den: den}, nil
	}

	num, err := strconv.ParseUint(intPart, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("displayconfig: refresh rate %q out of range", trimmed)
	}
	return &Rational{Num: int64(num), Den: 1}, nil
}

// ParseDevicePrepOption maps the config enum string to DevicePreparation,
// returning (_, false) for "disabled" (the caller must short-circuit to
// ErrConfigurationDisabled) and an error for an unknown value.
func ParseDevicePrepOption(value string) (DevicePreparation, bool, error) {
	switch value {
	case "verify_only":
		return VerifyOnly, true, nil
	case "ensure_active":
		return EnsureActive, true, nil
	case "ensure_primary":
		return EnsurePrimary, true, nil
	case "ensure_only_display":
		return EnsureOnlyDisplay, true, nil
	case "disabled":
		return Disabled, false, nil
	default:
		return 0, false, fmt.Errorf("displayconfig: unknown device_prep option %q", value)
	}
}

// SessionInfo carries the launch_session + app_metadata fields the parse
// pipeline consults.
type SessionInfo struct {
	Width, Height        int
	FPS                  int
	FramegenRefreshRate  int
	EnableHDR            bool
}

// UserConfig is the subset of the `dd.*` config keys the parse pipeline
// reads.
type UserConfig struct {
	DevicePrep        string // verify_only | ensure_active | ensure_primary | ensure_only_display | disabled
	ResolutionMode    string // automatic | manual | disabled
	ResolutionManual  string
	RefreshMode       string // automatic | manual | disabled | prefer_highest
	RefreshManual     string
	HDRMode           string // automatic | dummy_plug_hdr10
	Remap             []RemapEntry
}

// Parse is the display-config parse pipeline: a pure function from
// {user_config, launch_session} to a DisplayConfig.
func Parse(cfg UserConfig, session SessionInfo) (*DisplayConfig, error) {
	prep, enabled, err := ParseDevicePrepOption(cfg.DevicePrep)
	if err != nil {
		return nil, err
	}
	if !enabled {
		return nil, ErrConfigurationDisabled
	}

	out := &DisplayConfig{DevicePrep: prep, MonitorPositions: map[string]Point{}}

	res, err := parseResolutionOption(cfg, session)
	if err != nil {
		return nil, err
	}
	out.Resolution = res

	refresh, err := parseRefreshRateOption(cfg, session)
	if err != nil {
		return nil, err
	}
	out.RefreshRate = refresh

	out.HdrState = parseHDROption(cfg, session)

	if err := applyRemap(out, cfg.Remap); err != nil {
		return nil, err
	}

	return out, nil
}

func parseResolutionOption(cfg UserConfig, session SessionInfo) (*Resolution, error) {
	switch cfg.ResolutionMode {
	case "automatic", "":
		if session.Width < 0 || session.Height < 0 {
			return nil, fmt.Errorf("displayconfig: automatic resolution requires non-negative session dimensions")
		}
		return &Resolution{Width: session.Width, Height: session.Height}, nil
	case "manual":
		return ParseResolutionString(cfg.ResolutionManual)
	case "disabled":
		return nil, nil
	default:
		return nil, fmt.Errorf("displayconfig: unknown resolution mode %q", cfg.ResolutionMode)
	}
}

func parseRefreshRateOption(cfg UserConfig, session SessionInfo) (*Rational, error) {
	switch cfg.RefreshMode {
	case "automatic", "":
		fps := session.FPS
		if session.FramegenRefreshRate > 0 {
			fps = session.FramegenRefreshRate
		}
		return &Rational{Num: int64(fps), Den: 1}, nil
	case "prefer_highest":
		r := PreferHighest
		return &r, nil
	case "manual":
		return ParseRefreshRateString(cfg.RefreshManual, true)
	case "disabled":
		return nil, nil
	default:
		return nil, fmt.Errorf("displayconfig: unknown refresh rate mode %q", cfg.RefreshMode)
	}
}

func parseHDROption(cfg UserConfig, session SessionInfo) HdrState {
	if cfg.HDRMode == "dummy_plug_hdr10" {
		return HdrEnabled
	}
	if session.EnableHDR {
		return HdrEnabled
	}
	return HdrDisabled
}

// applyRemap scans entries in order, applying the first whose non-nil
// "requested_*" fields all equal the parsed values; nil requested fields are
// wildcards. A matching entry with no final fields at all is malformed.
func applyRemap(out *DisplayConfig, entries []RemapEntry) error {
	for _, e := range entries {
		if e.RequestedResolution != nil {
			if out.Resolution == nil || *out.Resolution != *e.RequestedResolution {
				continue
			}
		}
		if e.RequestedFPS != nil {
			if out.RefreshRate == nil || out.RefreshRate.Den != 1 || out.RefreshRate.Num != int64(*e.RequestedFPS) {
				continue
			}
		}

		if e.FinalResolution == nil && e.FinalRefresh == nil {
			return fmt.Errorf("displayconfig: remap entry matched but has no final_* fields")
		}
		if e.FinalResolution != nil {
			r := *e.FinalResolution
			out.Resolution = &r
		}
		if e.FinalRefresh != nil {
			r := *e.FinalRefresh
			out.RefreshRate = &r
		}
		return nil
	}
	return nil
}

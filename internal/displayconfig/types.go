// Package displayconfig implements the display-configuration arbiter:
// parsing user/session intent into a DisplayConfig, applying the remap
// table, choosing an arrangement, and driving the out-of-process display
// helper over a framed named pipe.
package displayconfig

import "fmt"

// DevicePreparation selects how aggressively the arbiter touches the OS
// display topology before a session starts.
type DevicePreparation int

const (
	VerifyOnly DevicePreparation = iota
	EnsureActive
	EnsurePrimary
	EnsureOnlyDisplay
	Disabled
)

// HdrState is the desired HDR toggle state for the session's displays.
type HdrState int

const (
	HdrUnset HdrState = iota
	HdrEnabled
	HdrDisabled
)

// Rational is a refresh rate expressed as an exact fraction, avoiding the
// rounding error a float would introduce for rates like 59.94.
type Rational struct {
	Num, Den int64
}

// PreferHighest is the sentinel meaning "pick the highest rate the OS
// supports" (SDC_ALLOW_CHANGES semantics).
var PreferHighest = Rational{Num: 10000, Den: 1}

func (r Rational) String() string { return fmt.Sprintf("%d/%d", r.Num, r.Den) }

// Resolution is a parsed WxH pair.
type Resolution struct {
	Width, Height int
}

// RemapEntry overrides a parsed resolution/refresh pair when the requested
// values (nil = wildcard) match.
type RemapEntry struct {
	RequestedResolution *Resolution
	RequestedFPS        *int
	FinalResolution     *Resolution
	FinalRefresh        *Rational
}

// Arrangement is the topology the session resolver picks for a launch.
type Arrangement int

const (
	Exclusive Arrangement = iota
	Extended
	ExtendedPrimary
	ExtendedIsolated
	ExtendedPrimaryIsolated
)

// Point is an (x, y) device origin on the virtual desktop.
type Point struct{ X, Y int }

// DisplayConfig is the arbiter's pure-function output: what the helper
// should apply (or, when ConfigurationDisabled, nothing).
type DisplayConfig struct {
	DeviceID      string
	DevicePrep    DevicePreparation
	Resolution    *Resolution
	RefreshRate   *Rational
	HdrState      HdrState
	Topology      [][]string
	MonitorPositions map[string]Point
}

// ErrConfigurationDisabled is returned by Parse when device_prep is Disabled;
// the caller must not attempt to apply it.
var ErrConfigurationDisabled = fmt.Errorf("displayconfig: configuration disabled")

// FarOffset is where isolated virtual displays are parked so the cursor
// cannot escape into a host screen.
var FarOffset = Point{X: 64000, Y: 64000}

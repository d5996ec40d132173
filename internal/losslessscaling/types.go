// Package losslessscaling implements the Lossless-Scaling sidecar:
// detecting the launched game's process via a before/after PID snapshot
// diff, applying the Vibeshine XML profile, and restoring the user's
// prior settings on teardown.
package losslessscaling

// Candidate is one newly-observed process considered as "the game" during
// the detection window.
type Candidate struct {
	PID        int32
	Name       string
	ExePath    string
	CPUPercent float64
	MemPercent float32
	Score      float64
}

// Options configures one detection+apply pass.
type Options struct {
	InstallDir       string
	DetectionWindow  string // not read; Detect always observes for DetectWindow (detect.go)
	TargetFPS        int
	PerformanceMode  bool
	FlowScale        int
	ResolutionScale  int
	ScalingType      string
	Sharpening       int
	Anime4KSize      string
	Anime4KVRS       bool
	RTSSLimit        bool
}

// Backup holds the default profile's prior values, restored on teardown.
type Backup struct {
	AutoScale      string
	AutoScaleDelay string
	LSFG3Target    string
}

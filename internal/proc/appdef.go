// Package proc implements the application/process supervisor: apps.json
// parsing, app id computation, environment interpolation, and the
// prep-launch-running-terminate state machine.
package proc

// PrepCmd is one ordered prep/undo pair run around a launch.
type PrepCmd struct {
	Do       string `json:"do"`
	Undo     string `json:"undo,omitempty"`
	Elevated bool   `json:"elevated,omitempty"`
}

// ScalingType enumerates the Lossless-Scaling/FSR-family upscalers an
// override bundle may select.
type ScalingType string

const (
	ScalingOff           ScalingType = "off"
	ScalingLS1           ScalingType = "ls1"
	ScalingFSR           ScalingType = "fsr"
	ScalingNIS           ScalingType = "nis"
	ScalingSGSR          ScalingType = "sgsr"
	ScalingBCAS          ScalingType = "bcas"
	ScalingAnime4K       ScalingType = "anime4k"
	ScalingXBR           ScalingType = "xbr"
	ScalingSharpBilinear ScalingType = "sharp-bilinear"
	ScalingInteger       ScalingType = "integer"
	ScalingNearest       ScalingType = "nearest"
)

// Anime4KSize is the anime4k-specific size preset.
type Anime4KSize string

const (
	Anime4KSmall      Anime4KSize = "S"
	Anime4KMedium     Anime4KSize = "M"
	Anime4KLarge      Anime4KSize = "L"
	Anime4KVeryLarge  Anime4KSize = "VL"
)

// FrameGenOverride is one of the two (recommended/custom) Lossless-Scaling
// override bundles an AppDef may carry.
type FrameGenOverride struct {
	PerformanceMode   bool        `json:"performance_mode,omitempty"`
	FlowScale         int         `json:"flow_scale,omitempty"`      // [0,100]
	ResolutionScale   int         `json:"resolution_scale,omitempty"` // [10,100]
	ScalingType       ScalingType `json:"scaling_type,omitempty"`
	Sharpening        int         `json:"sharpening,omitempty"` // [1,10]
	Anime4KSize       Anime4KSize `json:"anime4k_size,omitempty"`
	Anime4KVRS        bool        `json:"anime4k_vrs,omitempty"`
}

// FrameGenProvider names which frame-generation backend an app uses.
type FrameGenProvider string

const (
	ProviderLosslessScaling FrameGenProvider = "lossless-scaling"
	ProviderNvidiaSmooth    FrameGenProvider = "nvidia-smooth-motion"
)

// AppDef is an immutable (outside of Store.Upsert) per-entry description of
// a launchable app.
type AppDef struct {
	UUID      string `json:"uuid"`
	ID        string `json:"id,omitempty"` // computed, not persisted as authoritative
	Name      string `json:"name"`
	ImagePath string `json:"image-path,omitempty"`

	Cmd            string   `json:"cmd,omitempty"`
	WorkingDir     string   `json:"working-dir,omitempty"`
	Detached       []string `json:"detached,omitempty"`
	OutputLogPath  string   `json:"output,omitempty"`
	Elevated       bool     `json:"elevated,omitempty"`
	AutoDetach     bool     `json:"auto-detach,omitempty"`
	WaitAll        bool     `json:"wait-all,omitempty"`
	ExitTimeout    int      `json:"exit-timeout,omitempty"` // seconds

	PrepCmds          []PrepCmd `json:"prep-cmd,omitempty"`
	ExcludeGlobalPrep bool      `json:"exclude-global-prep-cmd,omitempty"`

	VirtualScreen       bool `json:"virtual-display,omitempty"`
	Gen1FramegenFix     bool `json:"gen1-framegen-fix,omitempty"`
	Gen2FramegenFix     bool `json:"gen2-framegen-fix,omitempty"`
	FrameGenLimiterFix  bool `json:"frame-gen-limiter-fix,omitempty"`

	LosslessScalingFramegen  bool             `json:"lossless-scaling-framegen,omitempty"`
	FrameGenerationProvider  FrameGenProvider `json:"frame-generation-provider,omitempty"`
	LosslessScalingTargetFPS int              `json:"lossless-scaling-target-fps,omitempty"`
	LosslessScalingRTSSLimit bool             `json:"lossless-scaling-rtss-limit,omitempty"`
	LosslessScalingProfile   string           `json:"lossless-scaling-profile,omitempty"` // recommended | custom
	Recommended              FrameGenOverride `json:"recommended,omitempty"`
	Custom                   FrameGenOverride `json:"custom,omitempty"`

	PlayniteID         string `json:"playnite-id,omitempty"`
	PlayniteFullscreen bool   `json:"playnite-fullscreen,omitempty"`

	// Playnite auto-sync bookkeeping consumed by internal/playnite.
	PlayniteManaged string `json:"playnite-managed,omitempty"` // "" | "auto"
	PlayniteSource  string `json:"playnite-source,omitempty"`  // unknown|recent|category|recent+category
	PlayniteAddedAt string `json:"playnite-added-at,omitempty"`
}

// IsDesktop reports whether the app has no command and no Playnite linkage,
// meaning it launches in Placebo mode against the bare desktop.
func (a *AppDef) IsDesktop() bool {
	return a.Cmd == "" && a.PlayniteID == "" && !a.PlayniteFullscreen
}

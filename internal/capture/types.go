// Package capture implements the capture/encode session: the capture
// helper child process protocol, the encoder-selection probe, and the
// packet path that feeds encoded frames to the WebRTC fan-out. The control
// pipe shares internal/displayconfig's length-prefixed framing.
package capture

import "time"

// ConfigData is the host's first control-pipe message to the helper
// (`config_data_t`).
type ConfigData struct {
	DynamicRange bool
	LogLevel     int
	DisplayName  string // truncated/padded to 32 bytes on the wire
	AdapterLUID  int64
}

// SharedHandleData is the helper's first control-pipe reply
// (`shared_handle_data_t`): an opaque platform handle plus the shared
// texture's dimensions. Handle is a platform-specific duplicated-handle
// value (a raw Windows HANDLE on windows builds, unused elsewhere).
type SharedHandleData struct {
	Handle uintptr
	Width  int
	Height int
}

// FrameReadyMsgType enumerates the fixed-size frame-ready pipe message
// kinds.
type FrameReadyMsgType byte

const (
	FrameReady FrameReadyMsgType = iota
	SecureDesktop
)

// FrameReadyMsg is the fixed-size `frame_ready_msg_t` sent by the helper
// whenever a new frame lands in the shared texture.
type FrameReadyMsg struct {
	Type     FrameReadyMsgType
	FrameQPC int64
}

// EncoderKind enumerates the encoder probe priority order.
type EncoderKind string

const (
	EncoderNVENC       EncoderKind = "nvenc"
	EncoderAMDVCE      EncoderKind = "amdvce"
	EncoderQuickSync   EncoderKind = "quicksync"
	EncoderVAAPI       EncoderKind = "vaapi"
	EncoderVideoToolbox EncoderKind = "videotoolbox"
	EncoderSoftware    EncoderKind = "software"
)

// EncoderProbeOrder is the fixed priority list probed at session start;
// software is the guaranteed fallback.
var EncoderProbeOrder = []EncoderKind{
	EncoderNVENC, EncoderAMDVCE, EncoderQuickSync, EncoderVAAPI, EncoderVideoToolbox, EncoderSoftware,
}

// Replacement is one old/new byte sequence spliced into IDR packets.
type Replacement struct {
	Old []byte
	New []byte
}

// PacketRaw is one encoded packet emitted by the active encoder.
type PacketRaw struct {
	FrameIndex               uint64
	IsIDR                    bool
	AfterRefFrameInvalidation bool
	Data                     []byte
	Replacements             []Replacement
}

// AcquireResult is returned by Session.Acquire.
type AcquireResult struct {
	FrameQPC int64
	Reinit   bool
}

const (
	handshakeTimeout = 5 * time.Second
	controlTimeout   = 3 * time.Second
	acquireTimeout   = 3 * time.Second
	quiescentWindow  = 200 * time.Millisecond
)

// Package webrtcsess implements the WebRTC session registry: session
// lifecycle, bounded ring buffers fed by the encode pipeline, ICE
// candidate accumulation, and the state behind the SSE candidate stream,
// wired to pion/webrtc/v4 through Engine.
package webrtcsess

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Nonary/Vibepollo-sub000/internal/capture"
)

const (
	maxVideoFrames    = 2
	maxAudioFrames    = 8
	maxCandidates     = 256
	maxInputEvents    = 64
	keepaliveInterval = 2 * time.Second
	pollInterval      = 200 * time.Millisecond
)

// CreateOptions configures a new session.
// The JSON shape is what POST /api/webrtc/sessions accepts; zero values for
// the codec/pacing fields take the defaults filled in by Normalize.
type CreateOptions struct {
	Video   bool `json:"video"`
	Audio   bool `json:"audio"`
	Encoded bool `json:"encoded"`

	ClientUUID string `json:"client_uuid,omitempty"`

	Codec              string `json:"codec,omitempty"`          // h264 | hevc | av1
	AudioCodec         string `json:"audio_codec,omitempty"`    // opus | aac
	AudioChannels      int    `json:"audio_channels,omitempty"` // 2 | 6 | 8
	VideoPacingMode    string `json:"video_pacing_mode,omitempty"`
	VideoPacingSlackMS *int   `json:"video_pacing_slack_ms,omitempty"`
	VideoMaxFrameAgeMS *int   `json:"video_max_frame_age_ms,omitempty"`
}

// Normalize fills in defaults and validates the option enums/ranges for
// POST /api/webrtc/sessions, lowering enum values and
// resolving the "smooth" pacing alias. Returns an error describing the
// first invalid field.
func (o *CreateOptions) Normalize() error {
	o.Codec = strings.ToLower(o.Codec)
	switch o.Codec {
	case "":
		o.Codec = "h264"
	case "h264", "hevc", "av1":
	default:
		return fmt.Errorf("invalid codec %q", o.Codec)
	}

	o.AudioCodec = strings.ToLower(o.AudioCodec)
	switch o.AudioCodec {
	case "":
		o.AudioCodec = "opus"
	case "opus", "aac":
	default:
		return fmt.Errorf("invalid audio_codec %q", o.AudioCodec)
	}

	switch o.AudioChannels {
	case 0:
		o.AudioChannels = 2
	case 2, 6, 8:
	default:
		return fmt.Errorf("invalid audio_channels %d", o.AudioChannels)
	}

	o.VideoPacingMode = strings.ToLower(o.VideoPacingMode)
	if o.VideoPacingMode == "smooth" {
		o.VideoPacingMode = "smoothness"
	}
	switch o.VideoPacingMode {
	case "":
		o.VideoPacingMode = "balanced"
	case "latency", "balanced", "smoothness":
	default:
		return fmt.Errorf("invalid video_pacing_mode %q", o.VideoPacingMode)
	}

	if o.VideoPacingSlackMS != nil && (*o.VideoPacingSlackMS < 0 || *o.VideoPacingSlackMS > 10) {
		return fmt.Errorf("video_pacing_slack_ms %d out of range [0,10]", *o.VideoPacingSlackMS)
	}
	if o.VideoMaxFrameAgeMS != nil && (*o.VideoMaxFrameAgeMS < 5 || *o.VideoMaxFrameAgeMS > 250) {
		return fmt.Errorf("video_max_frame_age_ms %d out of range [5,250]", *o.VideoMaxFrameAgeMS)
	}
	return nil
}

// Candidate is one accumulated ICE candidate, indexed so late subscribers
// can resume from `since`.
type Candidate struct {
	Index         int    `json:"index"`
	Mid           string `json:"mid"`
	MLineIndex    int    `json:"mLineIndex"`
	CandidateLine string `json:"candidate"`
}

// ring is a fixed-capacity FIFO that drops the oldest entry on overflow and
// counts drops.
type ring struct {
	mu       sync.Mutex
	cap      int
	buf      []capture.PacketRaw
	dropped  uint64
	received uint64
}

func newRing(capacity int) *ring {
	return &ring{cap: capacity, buf: make([]capture.PacketRaw, 0, capacity)}
}

func (r *ring) push(pkt capture.PacketRaw) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.buf) >= r.cap {
		r.buf = r.buf[1:]
		r.dropped++
	}
	r.buf = append(r.buf, pkt)
	r.received++
}

func (r *ring) receivedCount() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.received
}

func (r *ring) drain() []capture.PacketRaw {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]capture.PacketRaw, len(r.buf))
	copy(out, r.buf)
	r.buf = r.buf[:0]
	return out
}

func (r *ring) droppedCount() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Session is one registered WebRTC peer session.
type Session struct {
	ID         string
	Video      bool
	Audio      bool
	Encoded    bool
	ClientUUID string
	opts       CreateOptions
	created    time.Time

	videoRing *ring
	audioRing *ring

	mu              sync.Mutex
	remoteOfferSDP  string
	remoteOfferType string
	hasRemoteOffer  bool
	localAnswerSDP  string
	localAnswerType string
	hasLocalAnswer  bool
	localAnswerCond *sync.Cond
	candidates      []Candidate
	inputs          chan InputEvent
}

// InputEvent is one input message relayed from a client over the /ws
// control channel and queued for the capture/input pipeline.
type InputEvent struct {
	Kind string
	Data []byte
}

// Snapshot is the JSON-facing view of a session returned to API handlers.
type Snapshot struct {
	ID             string `json:"id"`
	Video          bool   `json:"video"`
	Audio          bool   `json:"audio"`
	Encoded        bool   `json:"encoded"`
	ClientUUID     string `json:"client_uuid,omitempty"`
	Codec          string `json:"codec"`
	AudioCodec     string `json:"audio_codec"`
	AudioChannels  int    `json:"audio_channels"`
	HasRemoteOffer bool   `json:"has_remote_offer"`
	HasLocalAnswer bool   `json:"has_local_answer"`
	VideoPackets   uint64 `json:"video_packets"`
	AudioPackets   uint64 `json:"audio_packets"`
	VideoDropped   uint64 `json:"video_dropped"`
	AudioDropped   uint64 `json:"audio_dropped"`
}

func (s *Session) snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		ID:             s.ID,
		Video:          s.Video,
		Audio:          s.Audio,
		Encoded:        s.Encoded,
		ClientUUID:     s.ClientUUID,
		Codec:          s.opts.Codec,
		AudioCodec:     s.opts.AudioCodec,
		AudioChannels:  s.opts.AudioChannels,
		HasRemoteOffer: s.hasRemoteOffer,
		HasLocalAnswer: s.hasLocalAnswer,
		VideoPackets:   s.videoRing.receivedCount(),
		AudioPackets:   s.audioRing.receivedCount(),
		VideoDropped:   s.videoRing.droppedCount(),
		AudioDropped:   s.audioRing.droppedCount(),
	}
}

package webrtcsess

import (
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
)

// Engine answers remote SDP offers with pion/webrtc, producing the local
// answer and ICE candidates the registry exposes over the config API. The
// registry itself stays transport-agnostic; the engine is what
// WaitForLocalAnswer callers are ultimately waiting on.
type Engine struct {
	registry *Registry
	log      zerolog.Logger

	mu    sync.Mutex
	peers map[string]*webrtc.PeerConnection
}

// NewEngine binds an engine to the registry it feeds answers into.
func NewEngine(registry *Registry, log zerolog.Logger) *Engine {
	return &Engine{
		registry: registry,
		log:      log.With().Str("component", "webrtc-engine").Logger(),
		peers:    map[string]*webrtc.PeerConnection{},
	}
}

// Answer consumes the stored remote offer for id: builds a peer connection,
// applies the offer, and publishes the generated answer and every gathered
// ICE candidate back through the registry.
func (e *Engine) Answer(id string) error {
	sdp, sdpType, ok := e.registry.RemoteOffer(id)
	if !ok {
		return fmt.Errorf("webrtcsess: no remote offer for session %s", id)
	}

	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return fmt.Errorf("webrtcsess: create peer connection: %w", err)
	}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		init := c.ToJSON()
		mid := ""
		if init.SDPMid != nil {
			mid = *init.SDPMid
		}
		mline := 0
		if init.SDPMLineIndex != nil {
			mline = int(*init.SDPMLineIndex)
		}
		if err := e.registry.AddICECandidate(id, mid, mline, init.Candidate); err != nil {
			e.log.Debug().Err(err).Str("session", id).Msg("drop gathered candidate")
		}
	})

	if err := pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.NewSDPType(sdpType),
		SDP:  sdp,
	}); err != nil {
		_ = pc.Close()
		return fmt.Errorf("webrtcsess: set remote description: %w", err)
	}

	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		_ = pc.Close()
		return fmt.Errorf("webrtcsess: create answer: %w", err)
	}
	if err := pc.SetLocalDescription(answer); err != nil {
		_ = pc.Close()
		return fmt.Errorf("webrtcsess: set local description: %w", err)
	}

	e.mu.Lock()
	if old, exists := e.peers[id]; exists {
		_ = old.Close()
	}
	e.peers[id] = pc
	e.mu.Unlock()

	return e.registry.SetLocalAnswer(id, answer.SDP, answer.Type.String())
}

// AddRemoteCandidate feeds a client-posted ICE candidate into the session's
// peer connection, if one is answering.
func (e *Engine) AddRemoteCandidate(id, mid string, mlineIndex int, candidateLine string) error {
	e.mu.Lock()
	pc, ok := e.peers[id]
	e.mu.Unlock()
	if !ok {
		return nil
	}
	idx := uint16(mlineIndex)
	return pc.AddICECandidate(webrtc.ICECandidateInit{
		Candidate:     candidateLine,
		SDPMid:        &mid,
		SDPMLineIndex: &idx,
	})
}

// Close tears down the peer connection for id, if any.
func (e *Engine) Close(id string) {
	e.mu.Lock()
	pc, ok := e.peers[id]
	delete(e.peers, id)
	e.mu.Unlock()
	if ok {
		_ = pc.Close()
	}
}

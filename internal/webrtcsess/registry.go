package webrtcsess

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Nonary/Vibepollo-sub000/internal/capture"
	"github.com/Nonary/Vibepollo-sub000/internal/moncrypto"
)

// Registry owns the map of live sessions plus the active-session counter
// consulted by the hot encode path.
type Registry struct {
	identity *moncrypto.Identity

	mu       sync.RWMutex
	sessions map[string]*Session

	active atomic.Int64
}

// NewRegistry builds an empty registry bound to the host identity used for
// the fingerprint/PEM exposure.
func NewRegistry(identity *moncrypto.Identity) *Registry {
	return &Registry{identity: identity, sessions: map[string]*Session{}}
}

// ActiveSessions reports the current session count; the capture pipeline
// short-circuits fan-out when this is zero.
func (r *Registry) ActiveSessions() int64 { return r.active.Load() }

// CreateSession allocates a new session, registers it, and returns its
// snapshot.
func (r *Registry) CreateSession(opts CreateOptions) Snapshot {
	s := &Session{
		ID:         uuid.NewString(),
		Video:      opts.Video,
		Audio:      opts.Audio,
		Encoded:    opts.Encoded,
		ClientUUID: opts.ClientUUID,
		opts:       opts,
		created:    time.Now(),

		videoRing: newRing(maxVideoFrames),
		audioRing: newRing(maxAudioFrames),
		inputs:    make(chan InputEvent, maxInputEvents),
	}
	s.localAnswerCond = sync.NewCond(&s.mu)

	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
	r.active.Add(1)

	return s.snapshot()
}

// CloseSession removes the session and decrements the active counter.
func (r *Registry) CloseSession(id string) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()
	if !ok {
		return false
	}
	s.mu.Lock()
	s.localAnswerCond.Broadcast()
	s.mu.Unlock()
	close(s.inputs)
	r.active.Add(-1)
	return true
}

// DisconnectClient closes every live session owned by clientUUID without
// touching the paired-client record itself, distinct from pairing.Unpair.
func (r *Registry) DisconnectClient(clientUUID string) int {
	r.mu.RLock()
	var ids []string
	for id, s := range r.sessions {
		if s.ClientUUID == clientUUID {
			ids = append(ids, id)
		}
	}
	r.mu.RUnlock()

	closed := 0
	for _, id := range ids {
		if r.CloseSession(id) {
			closed++
		}
	}
	return closed
}

// SubmitInput queues an input event relayed from the /ws control channel,
// dropping it if the session's queue is full.
func (r *Registry) SubmitInput(id, kind string, data []byte) error {
	s, ok := r.get(id)
	if !ok {
		return ErrUnknownSession
	}
	select {
	case s.inputs <- InputEvent{Kind: kind, Data: data}:
	default:
	}
	return nil
}

// Inputs returns the receive side of a session's input queue for the
// capture/input pipeline to consume.
func (r *Registry) Inputs(id string) (<-chan InputEvent, bool) {
	s, ok := r.get(id)
	if !ok {
		return nil, false
	}
	return s.inputs, true
}

func (r *Registry) get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// ErrUnknownSession is returned by every per-session operation given an
// unregistered id.
var ErrUnknownSession = fmt.Errorf("webrtcsess: unknown session")

// SetRemoteOffer stores the client's SDP offer.
func (r *Registry) SetRemoteOffer(id, sdp, sdpType string) error {
	s, ok := r.get(id)
	if !ok {
		return ErrUnknownSession
	}
	s.mu.Lock()
	s.remoteOfferSDP = sdp
	s.remoteOfferType = sdpType
	s.hasRemoteOffer = true
	s.mu.Unlock()
	return nil
}

// RemoteOffer returns the stored offer, if any.
func (r *Registry) RemoteOffer(id string) (sdp, sdpType string, ok bool) {
	s, exists := r.get(id)
	if !exists {
		return "", "", false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remoteOfferSDP, s.remoteOfferType, s.hasRemoteOffer
}

// SetLocalAnswer records the local SDP answer produced by the underlying
// WebRTC engine and wakes any waiter in WaitForLocalAnswer.
func (r *Registry) SetLocalAnswer(id, sdp, sdpType string) error {
	s, ok := r.get(id)
	if !ok {
		return ErrUnknownSession
	}
	s.mu.Lock()
	s.localAnswerSDP = sdp
	s.localAnswerType = sdpType
	s.hasLocalAnswer = true
	s.localAnswerCond.Broadcast()
	s.mu.Unlock()
	return nil
}

// WaitForLocalAnswer blocks until the local SDP answer appears or ctx is
// done/timeout elapses.
func (r *Registry) WaitForLocalAnswer(ctx context.Context, id string, timeout time.Duration) (sdp, sdpType string, err error) {
	s, ok := r.get(id)
	if !ok {
		return "", "", ErrUnknownSession
	}

	done := make(chan struct{})
	deadline := time.Now().Add(timeout)
	go func() {
		<-ctx.Done()
		s.mu.Lock()
		s.localAnswerCond.Broadcast()
		s.mu.Unlock()
		close(done)
	}()

	s.mu.Lock()
	for !s.hasLocalAnswer {
		if ctx.Err() != nil {
			s.mu.Unlock()
			return "", "", ctx.Err()
		}
		if time.Now().After(deadline) {
			s.mu.Unlock()
			return "", "", fmt.Errorf("webrtcsess: timed out waiting for local answer")
		}
		s.mu.Unlock()
		time.Sleep(10 * time.Millisecond)
		s.mu.Lock()
	}
	sdp, sdpType = s.localAnswerSDP, s.localAnswerType
	s.mu.Unlock()
	return sdp, sdpType, nil
}

// AddICECandidate appends a candidate, capping at maxCandidates.
func (r *Registry) AddICECandidate(id, mid string, mlineIndex int, candidateLine string) error {
	s, ok := r.get(id)
	if !ok {
		return ErrUnknownSession
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.candidates) >= maxCandidates {
		return fmt.Errorf("webrtcsess: candidate cap reached")
	}
	s.candidates = append(s.candidates, Candidate{
		Index:         len(s.candidates),
		Mid:           mid,
		MLineIndex:    mlineIndex,
		CandidateLine: candidateLine,
	})
	return nil
}

// GetLocalCandidates returns candidates with index > since.
func (r *Registry) GetLocalCandidates(id string, since int) ([]Candidate, error) {
	s, ok := r.get(id)
	if !ok {
		return nil, ErrUnknownSession
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Candidate
	for _, c := range s.candidates {
		if c.Index > since {
			out = append(out, c)
		}
	}
	return out, nil
}

// SubmitVideoPacket fans a video packet out to every session with Video
// enabled, implementing capture.FanOut.
func (r *Registry) SubmitVideoPacket(pkt capture.PacketRaw) {
	if r.active.Load() == 0 {
		return
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.sessions {
		if s.Video {
			s.videoRing.push(pkt)
		}
	}
}

// SubmitAudioPacket fans an audio packet out to every session with Audio
// enabled.
func (r *Registry) SubmitAudioPacket(pkt capture.PacketRaw) {
	if r.active.Load() == 0 {
		return
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.sessions {
		if s.Audio {
			s.audioRing.push(pkt)
		}
	}
}

// ServerCertFingerprint returns the colon-separated uppercase SHA-256
// fingerprint of the host's x509 identity.
func (r *Registry) ServerCertFingerprint() string { return r.identity.FingerprintHex() }

// ServerCertPEM returns the raw PEM certificate handed to clients at
// session creation.
func (r *Registry) ServerCertPEM() []byte { return r.identity.CertPEM }

// Snapshots returns a snapshot of every registered session, ordered by
// creation time so list responses are stable across polls.
func (r *Registry) Snapshots() []Snapshot {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].created.Before(sessions[j].created) })
	out := make([]Snapshot, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.snapshot())
	}
	return out
}

// Snapshot returns the current snapshot for id.
func (r *Registry) Snapshot(id string) (Snapshot, bool) {
	s, ok := r.get(id)
	if !ok {
		return Snapshot{}, false
	}
	return s.snapshot(), true
}

package capture

import (
	"context"
	"fmt"
	"net"
	"os/exec"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Texture abstracts the shared D3D11 texture + keyed mutex pair the helper
// hands across. Acquiring and opening the actual DXGI resource is a COM/GPU
// interop concern with no idiomatic Go binding in the example pack (none of
// the retrieved repos carry a cgo-based DirectX wrapper); TextureOpener is
// the platform seam that owns that interop. This package provides no opener
// of its own; the one passed to NewSession is called as given.
type Texture interface {
	// AcquireSync blocks until the keyed mutex is acquired or timeout
	// elapses; ErrAbandoned signals the helper died mid-hold.
	AcquireSync(timeout time.Duration) error
	ReleaseSync() error
	Close() error
}

// TextureOpener duplicates the helper's shared handle into this process and
// opens it as a keyed-mutex-guarded texture.
type TextureOpener func(handle SharedHandleData) (Texture, error)

// FanOut is implemented by the WebRTC session registry; capture calls
// it from the packet path so this package never imports webrtcsess.
type FanOut interface {
	SubmitVideoPacket(pkt PacketRaw)
	SubmitAudioPacket(pkt PacketRaw)
}

// ErrAbandoned is returned by a Texture's AcquireSync when the keyed mutex
// comes back WAIT_ABANDONED, meaning the helper crashed while holding it.
var ErrAbandoned = fmt.Errorf("capture: keyed mutex abandoned")

// Session runs one capture helper child process and its two named pipes,
// implementing the init sequence, secure-desktop fallback, and acquire()
// loop.
type Session struct {
	log        zerolog.Logger
	helperPath string
	openTexture TextureOpener
	fanout     FanOut
	probe      EncoderProbeFunc

	mu             sync.Mutex
	encoder        EncoderKind
	initializing   bool
	initialized    bool
	shouldSwapDXGI bool
	forceReinit    bool
	lastHelperStop time.Time
	helperCmd      *exec.Cmd
	texture        Texture
	controlConn    net.Conn
	frameConn      net.Conn

	stop chan struct{}
}

// NewSession builds a capture session targeting the given helper
// executable. probe validates hardware encoder candidates during Init; nil
// means no hardware encoder is usable and software is selected.
func NewSession(helperPath string, openTexture TextureOpener, fanout FanOut, probe EncoderProbeFunc, log zerolog.Logger) *Session {
	return &Session{helperPath: helperPath, openTexture: openTexture, fanout: fanout, probe: probe, log: log, stop: make(chan struct{})}
}

// Stop closes the process-wide stop mailbox; in-flight Acquire calls return
// on their own timeout.
func (s *Session) Stop() {
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}
}

// Init runs the single-flight init sequence, guarded
// by the initializing flag so concurrent callers collapse onto one
// attempt.
func (s *Session) Init(ctx context.Context) error {
	s.mu.Lock()
	if s.initializing {
		s.mu.Unlock()
		return fmt.Errorf("capture: init already in progress")
	}
	if !s.lastHelperStop.IsZero() && time.Since(s.lastHelperStop) < quiescentWindow {
		s.mu.Unlock()
		return fmt.Errorf("capture: quiescent window after last helper stop")
	}
	s.initializing = true
	s.mu.Unlock()

	// Encoder selection runs pre-session: first probe-validated hardware
	// backend in priority order wins, software otherwise.
	encoder := SelectEncoder(nil, s.probe)
	s.mu.Lock()
	s.encoder = encoder
	s.mu.Unlock()
	s.log.Info().Str("encoder", string(encoder)).Msg("encoder selected")

	err := s.init(ctx)

	s.mu.Lock()
	s.initializing = false
	if err != nil {
		s.lastHelperStop = time.Now()
		s.teardownLocked()
	} else {
		s.initialized = true
	}
	s.mu.Unlock()
	return err
}

func (s *Session) init(ctx context.Context) error {
	controlName := `\\.\pipe\sunshine_capture_control_` + uuid.NewString()
	frameName := `\\.\pipe\sunshine_capture_frame_` + uuid.NewString()

	controlLn, err := listenPipe(controlName)
	if err != nil {
		return fmt.Errorf("capture: listen control pipe: %w", err)
	}
	defer controlLn.Close()
	frameLn, err := listenPipe(frameName)
	if err != nil {
		return fmt.Errorf("capture: listen frame pipe: %w", err)
	}
	defer frameLn.Close()

	cmd := exec.CommandContext(ctx, s.helperPath, controlName, frameName)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("capture: start helper: %w", err)
	}
	s.mu.Lock()
	s.helperCmd = cmd
	s.mu.Unlock()

	controlConn, err := acceptWithTimeout(controlLn, handshakeTimeout)
	if err != nil {
		return fmt.Errorf("capture: helper did not connect control pipe: %w", err)
	}
	frameConn, err := acceptWithTimeout(frameLn, handshakeTimeout)
	if err != nil {
		controlConn.Close()
		return fmt.Errorf("capture: helper did not connect frame pipe: %w", err)
	}

	cfg := ConfigData{DynamicRange: false, LogLevel: 0, DisplayName: "", AdapterLUID: 0}
	if err := writeControlFrame(controlConn, encodeConfigData(cfg)); err != nil {
		return fmt.Errorf("capture: send config: %w", err)
	}

	handle, err := s.receiveHandshake(controlConn)
	if err != nil {
		return err
	}

	texture, err := s.openTexture(handle)
	if err != nil {
		return fmt.Errorf("capture: open shared texture: %w", err)
	}

	s.mu.Lock()
	s.controlConn = controlConn
	s.frameConn = frameConn
	s.texture = texture
	s.mu.Unlock()
	return nil
}

// receiveHandshake loops up to controlTimeout receiving control messages:
// 1-byte messages mean secure-desktop, handle-sized ones are the handle
// exchange, anything else is ignored.
func (s *Session) receiveHandshake(conn net.Conn) (SharedHandleData, error) {
	deadline := time.Now().Add(controlTimeout)
	for time.Now().Before(deadline) {
		payload, err := readControlFrame(conn, deadline)
		if err != nil {
			return SharedHandleData{}, fmt.Errorf("capture: handle handshake: %w", err)
		}
		switch {
		case len(payload) == 1:
			s.mu.Lock()
			s.shouldSwapDXGI = true
			s.mu.Unlock()
		case len(payload) == sharedHandleWireSize:
			return decodeSharedHandleData(payload), nil
		}
	}
	return SharedHandleData{}, fmt.Errorf("capture: no handle received within %s", controlTimeout)
}

// Acquire waits for the next frame-ready signal, then acquires the keyed
// mutex.
func (s *Session) Acquire(ctx context.Context) (AcquireResult, error) {
	s.mu.Lock()
	frameConn := s.frameConn
	texture := s.texture
	s.mu.Unlock()
	if frameConn == nil || texture == nil {
		return AcquireResult{}, fmt.Errorf("capture: session not initialized")
	}

	deadline := time.Now().Add(acquireTimeout)
	msg, err := readLatestFrameReady(frameConn, deadline)
	if err != nil {
		select {
		case <-s.stop:
			return AcquireResult{}, fmt.Errorf("capture: stopped")
		default:
		}
		return AcquireResult{}, fmt.Errorf("capture: wait frame-ready: %w", err)
	}
	if msg.Type == SecureDesktop {
		s.mu.Lock()
		s.shouldSwapDXGI = true
		s.mu.Unlock()
		return AcquireResult{Reinit: false}, nil
	}

	if err := texture.AcquireSync(acquireTimeout); err != nil {
		if err == ErrAbandoned {
			s.mu.Lock()
			s.forceReinit = true
			s.mu.Unlock()
			return AcquireResult{Reinit: true}, nil
		}
		return AcquireResult{}, err
	}
	return AcquireResult{FrameQPC: msg.FrameQPC}, nil
}

// Encoder returns the backend chosen by the last Init; empty until Init has
// run at least once.
func (s *Session) Encoder() EncoderKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.encoder
}

// ShouldSwapToDXGI reports whether a secure-desktop transition requires the
// outer capture loop to fall back to Desktop Duplication.
func (s *Session) ShouldSwapToDXGI() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shouldSwapDXGI
}

// ForceReinit reports whether the last acquire detected an abandoned mutex.
func (s *Session) ForceReinit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.forceReinit
}

// Teardown stops the helper process and releases the texture.
func (s *Session) Teardown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teardownLocked()
}

func (s *Session) teardownLocked() {
	if s.texture != nil {
		s.texture.Close()
		s.texture = nil
	}
	if s.controlConn != nil {
		s.controlConn.Close()
		s.controlConn = nil
	}
	if s.frameConn != nil {
		s.frameConn.Close()
		s.frameConn = nil
	}
	if s.helperCmd != nil && s.helperCmd.Process != nil {
		s.helperCmd.Process.Kill()
		s.helperCmd = nil
	}
	s.initialized = false
}

// SubmitVideo applies IDR replacements (if any) and fans the packet out
// through FanOut.
func (s *Session) SubmitVideo(pkt PacketRaw) {
	if pkt.IsIDR && len(pkt.Replacements) > 0 {
		pkt.Data = ApplyReplacements(pkt.Data, pkt.Replacements)
	}
	s.fanout.SubmitVideoPacket(pkt)
}

// SubmitAudio fans an encoded audio packet out (symmetric to video, no IDR
// splicing concept).
func (s *Session) SubmitAudio(pkt PacketRaw) {
	s.fanout.SubmitAudioPacket(pkt)
}

func acceptWithTimeout(ln net.Listener, timeout time.Duration) (net.Conn, error) {
	type result struct {
		conn net.Conn
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		conn, err := ln.Accept()
		ch <- result{conn, err}
	}()
	select {
	case r := <-ch:
		return r.conn, r.err
	case <-time.After(timeout):
		return nil, fmt.Errorf("timed out after %s", timeout)
	}
}

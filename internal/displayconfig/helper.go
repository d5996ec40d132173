package displayconfig

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os/exec"
	"time"
)

// MessageType enumerates the display-helper IPC frame kinds.
type MessageType byte

const (
	MsgApply MessageType = iota
	MsgRevert
	MsgReset
	MsgPing
	MsgStop
)

const (
	pipeName        = `\\.\pipe\sunshine_display_helper`
	connectTimeout  = 5 * time.Second
	writeDeadline   = 5 * time.Second
	helperRelPath   = "tools/display-settings-helper.exe"
)

// HelperClient talks the helper's length-prefixed framing:
// `u32 length | u8 type | payload`. Apply/Revert are fire-and-forget at the
// transport level, so a connected, writable pipe is success regardless of
// what the helper does with the message.
type HelperClient struct {
	dial func() (net.Conn, error)
}

// NewHelperClient builds a client using the platform pipe dialer returned by
// dialDisplayHelperPipe (pipe_windows.go / pipe_other.go).
func NewHelperClient() *HelperClient {
	return &HelperClient{dial: dialDisplayHelperPipe}
}

// EnsureRunning starts the helper process alongside the main executable if
// it is not already listening.
func (c *HelperClient) EnsureRunning(exeDir string) error {
	conn, err := c.dial()
	if err == nil {
		conn.Close()
		return nil
	}
	cmd := exec.Command(exeDir + "/" + helperRelPath)
	return cmd.Start()
}

// Apply sends the DisplayConfig (plus topology/monitor positions) as the
// Apply message's JSON payload.
func (c *HelperClient) Apply(cfg *DisplayConfig) error {
	payload, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("displayconfig: marshal apply payload: %w", err)
	}
	return c.send(MsgApply, payload)
}

// Revert asks the helper to restore the pre-session OS state.
func (c *HelperClient) Revert() error { return c.send(MsgRevert, nil) }

// Reset clears the helper's persisted revert-state.
func (c *HelperClient) Reset() error { return c.send(MsgReset, nil) }

// Ping is a liveness probe.
func (c *HelperClient) Ping() error { return c.send(MsgPing, nil) }

// Stop asks the helper process to exit.
func (c *HelperClient) Stop() error { return c.send(MsgStop, nil) }

func (c *HelperClient) send(t MessageType, payload []byte) error {
	conn, err := c.dial()
	if err != nil {
		return fmt.Errorf("displayconfig: connect to helper: %w", err)
	}
	defer conn.Close()

	_ = conn.SetWriteDeadline(time.Now().Add(writeDeadline))

	frame := make([]byte, 4+1+len(payload))
	binary.LittleEndian.PutUint32(frame[0:4], uint32(1+len(payload)))
	frame[4] = byte(t)
	copy(frame[5:], payload)

	if _, err := conn.Write(frame); err != nil {
		return fmt.Errorf("displayconfig: write helper frame: %w", err)
	}
	return nil
}

// readFrame reads one length-prefixed frame from r, used by the helper side
// (not exercised by the host, kept here since it shares the wire format).
func readFrame(r io.Reader) (MessageType, []byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return 0, nil, err
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	if n == 0 {
		return 0, nil, fmt.Errorf("displayconfig: empty frame")
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return 0, nil, err
	}
	return MessageType(body[0]), body[1:], nil
}

package capture

import (
	"encoding/binary"
	"io"
	"net"
	"time"
)

const sharedHandleWireSize = 8 + 4 + 4 // handle + width + height

func encodeConfigData(c ConfigData) []byte {
	buf := make([]byte, 1+4+32+8)
	if c.DynamicRange {
		buf[0] = 1
	}
	binary.LittleEndian.PutUint32(buf[1:5], uint32(c.LogLevel))
	name := []byte(c.DisplayName)
	if len(name) > 32 {
		name = name[:32]
	}
	copy(buf[5:37], name)
	binary.LittleEndian.PutUint64(buf[37:45], uint64(c.AdapterLUID))
	return buf
}

func decodeSharedHandleData(payload []byte) SharedHandleData {
	return SharedHandleData{
		Handle: uintptr(binary.LittleEndian.Uint64(payload[0:8])),
		Width:  int(binary.LittleEndian.Uint32(payload[8:12])),
		Height: int(binary.LittleEndian.Uint32(payload[12:16])),
	}
}

// writeControlFrame writes a u32-length-prefixed control message.
func writeControlFrame(conn net.Conn, payload []byte) error {
	frame := make([]byte, 4+len(payload))
	binary.LittleEndian.PutUint32(frame[0:4], uint32(len(payload)))
	copy(frame[4:], payload)
	_, err := conn.Write(frame)
	return err
}

// readControlFrame reads one u32-length-prefixed control message, honoring
// the supplied deadline.
func readControlFrame(conn net.Conn, deadline time.Time) ([]byte, error) {
	_ = conn.SetReadDeadline(deadline)
	var lenBuf [4]byte
	if _, err := io.ReadFull(conn, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	body := make([]byte, n)
	if _, err := io.ReadFull(conn, body); err != nil {
		return nil, err
	}
	return body, nil
}

const frameReadyWireSize = 1 + 8

// readLatestFrameReady drains the frame-ready pipe, keeping only the most
// recently read message (the consumer wants the latest frame; older ones
// are stale), honoring deadline for the first read.
func readLatestFrameReady(conn net.Conn, deadline time.Time) (FrameReadyMsg, error) {
	_ = conn.SetReadDeadline(deadline)
	var buf [frameReadyWireSize]byte
	if _, err := io.ReadFull(conn, buf[:]); err != nil {
		return FrameReadyMsg{}, err
	}
	latest := decodeFrameReady(buf[:])

	_ = conn.SetReadDeadline(time.Now().Add(time.Millisecond))
	for {
		if _, err := io.ReadFull(conn, buf[:]); err != nil {
			break
		}
		latest = decodeFrameReady(buf[:])
	}
	return latest, nil
}

func decodeFrameReady(b []byte) FrameReadyMsg {
	return FrameReadyMsg{
		Type:     FrameReadyMsgType(b[0]),
		FrameQPC: int64(binary.LittleEndian.Uint64(b[1:9])),
	}
}

// ApplyReplacements splices each Replacement's Old->New byte sequence into
// data, in order, once each. Used only for IDR packets.
func ApplyReplacements(data []byte, replacements []Replacement) []byte {
	out := data
	for _, r := range replacements {
		out = replaceOnce(out, r.Old, r.New)
	}
	return out
}

func replaceOnce(data, old, repl []byte) []byte {
	if len(old) == 0 {
		return data
	}
	idx := indexOf(data, old)
	if idx < 0 {
		return data
	}
	out := make([]byte, 0, len(data)-len(old)+len(repl))
	out = append(out, data[:idx]...)
	out = append(out, repl...)
	out = append(out, data[idx+len(old):]...)
	return out
}

func indexOf(data, sub []byte) int {
	if len(sub) == 0 || len(sub) > len(data) {
		return -1
	}
	for i := 0; i+len(sub) <= len(data); i++ {
		match := true
		for j := range sub {
			if data[i+j] != sub[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

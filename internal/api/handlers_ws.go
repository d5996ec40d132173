package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
)

// wsUpgrader accepts any origin; the HTTPS
// listener already sits behind the LAN-origin gate in middleware.go.
var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// wsMessage is the /ws control channel envelope.
type wsMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type wsInputPayload struct {
	InputType string `json:"inputType"`
	Data      []byte `json:"data"`
}

type wsCandidatePayload struct {
	Mid        string `json:"mid"`
	MLineIndex int    `json:"mLineIndex"`
	Candidate  string `json:"candidate"`
}

// handleSessionWS upgrades to a WebSocket and relays input and ICE candidate
// messages into the session's registry state (the input + signaling
// control channel).
func (s *Server) handleSessionWS(w http.ResponseWriter, r *http.Request) {
	id := paramFrom(r, "id")
	if _, ok := s.WebRTC.Snapshot(id); !ok {
		writeErrorf(w, http.StatusNotFound, "unknown session")
		return
	}

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug().Err(err).Msg("ws: upgrade failed")
		return
	}
	defer conn.Close()

	_ = conn.WriteJSON(wsMessage{Type: "session_info", Payload: jsonRaw(map[string]string{"id": id})})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg wsMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		switch msg.Type {
		case "input":
			var p wsInputPayload
			if err := json.Unmarshal(msg.Payload, &p); err != nil {
				continue
			}
			_ = s.WebRTC.SubmitInput(id, p.InputType, p.Data)
		case "candidate":
			var p wsCandidatePayload
			if err := json.Unmarshal(msg.Payload, &p); err != nil {
				continue
			}
			if err := s.WebRTC.AddICECandidate(id, p.Mid, p.MLineIndex, p.Candidate); err != nil {
				_ = conn.WriteJSON(wsMessage{Type: "error", Payload: jsonRaw(map[string]string{"error": err.Error()})})
			}
		}
	}
}

func jsonRaw(v interface{}) json.RawMessage {
	data, _ := json.Marshal(v)
	return data
}

package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/Nonary/Vibepollo-sub000/internal/webrtcsess"
)

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := s.WebRTC.Snapshots()
	if sessions == nil {
		sessions = []webrtcsess.Snapshot{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": sessions,
	})
}

// iceServersFromEnv parses SUNSHINE_WEBRTC_ICE_SERVERS (a JSON array) into
// the value echoed back on session creation; malformed or absent input
// yields an empty list.
func iceServersFromEnv() []json.RawMessage {
	raw := os.Getenv("SUNSHINE_WEBRTC_ICE_SERVERS")
	if raw == "" {
		return []json.RawMessage{}
	}
	var servers []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &servers); err != nil {
		return []json.RawMessage{}
	}
	return servers
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var opts webrtcsess.CreateOptions
	if err := json.NewDecoder(r.Body).Decode(&opts); err != nil {
		writeErrorf(w, http.StatusBadRequest, "decode session options: %v", err)
		return
	}
	if err := opts.Normalize(); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	snap := s.WebRTC.CreateSession(opts)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":           true,
		"session":          snap,
		"cert_fingerprint": s.WebRTC.ServerCertFingerprint(),
		"cert_pem":         string(s.WebRTC.ServerCertPEM()),
		"ice_servers":      iceServersFromEnv(),
	})
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	id := paramFrom(r, "id")
	if s.Engine != nil {
		s.Engine.Close(id)
	}
	if !s.WebRTC.CloseSession(id) {
		writeErrorf(w, http.StatusNotFound, "unknown session")
		return
	}
	writeOK(w)
}

func (s *Server) handleSetOffer(w http.ResponseWriter, r *http.Request) {
	id := paramFrom(r, "id")
	var body struct {
		SDP  string `json:"sdp"`
		Type string `json:"type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErrorf(w, http.StatusBadRequest, "decode offer: %v", err)
		return
	}
	if err := s.WebRTC.SetRemoteOffer(id, body.SDP, body.Type); err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	// The engine answers asynchronously; clients block on GET .../answer.
	if s.Engine != nil {
		go func() {
			if err := s.Engine.Answer(id); err != nil {
				s.log.Warn().Err(err).Str("session", id).Msg("webrtc answer failed")
			}
		}()
	}
	writeOK(w)
}

func (s *Server) handleGetAnswer(w http.ResponseWriter, r *http.Request) {
	id := paramFrom(r, "id")
	ctx, cancel := contextWithTimeout(r, 10*time.Second)
	defer cancel()
	sdp, sdpType, err := s.WebRTC.WaitForLocalAnswer(ctx, id, 10*time.Second)
	if err != nil {
		writeError(w, http.StatusGatewayTimeout, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"sdp": sdp, "type": sdpType})
}

func (s *Server) handleAddICE(w http.ResponseWriter, r *http.Request) {
	id := paramFrom(r, "id")
	var body struct {
		Mid        string `json:"mid"`
		MLineIndex int    `json:"mLineIndex"`
		Candidate  string `json:"candidate"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErrorf(w, http.StatusBadRequest, "decode candidate: %v", err)
		return
	}
	if err := s.WebRTC.AddICECandidate(id, body.Mid, body.MLineIndex, body.Candidate); err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if s.Engine != nil {
		if err := s.Engine.AddRemoteCandidate(id, body.Mid, body.MLineIndex, body.Candidate); err != nil {
			s.log.Debug().Err(err).Str("session", id).Msg("peer rejected remote candidate")
		}
	}
	writeOK(w)
}

// handleICEStream implements the SSE candidate stream: 200ms poll
// cadence, a keepalive every 2s when nothing new arrived.
func (s *Server) handleICEStream(w http.ResponseWriter, r *http.Request) {
	id := paramFrom(r, "id")
	since, _ := strconv.Atoi(r.URL.Query().Get("since"))

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeErrorf(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	lastEvent := time.Now()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			candidates, err := s.WebRTC.GetLocalCandidates(id, since)
			if err != nil {
				fmt.Fprintf(w, "event: error\ndata: %s\n\n", err.Error())
				flusher.Flush()
				return
			}
			if len(candidates) == 0 {
				if time.Since(lastEvent) >= 2*time.Second {
					fmt.Fprintf(w, "event: keepalive\ndata: {}\n\n")
					flusher.Flush()
					lastEvent = time.Now()
				}
				continue
			}
			for _, c := range candidates {
				since = c.Index
				payload, _ := json.Marshal(c)
				fmt.Fprintf(w, "event: candidate\nid: %d\ndata: %s\n\n", c.Index, payload)
			}
			flusher.Flush()
			lastEvent = time.Now()
		}
	}
}

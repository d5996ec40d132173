package api

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

func (s *Server) handlePin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UniqueID string `json:"uniqueid"`
		Name     string `json:"name"`
		PIN      string `json:"pin"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErrorf(w, http.StatusBadRequest, "decode pin request: %v", err)
		return
	}
	if _, err := s.Pairing.BeginPin(body.UniqueID, body.Name, body.PIN); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeOK(w)
}

// handlePair serves the four pairing phases. The client identifies the
// phase by which field it fills in; binary payloads travel as uppercase
// hex, matching the GameStream /pair conventions.
func (s *Server) handlePair(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UniqueID            string `json:"uniqueid"`
		Phrase              string `json:"phrase"`
		Salt                string `json:"salt"`
		ClientCert          string `json:"clientcert"`
		ClientChallenge     string `json:"clientchallenge"`
		ServerChallengeResp string `json:"serverchallengeresp"`
		ClientPairingSecret string `json:"clientpairingsecret"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErrorf(w, http.StatusBadRequest, "decode pair request: %v", err)
		return
	}

	fail := func(err error) {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"paired": 0, "error": err.Error()})
	}

	switch {
	case body.Phrase == "getservercert":
		clientCertPEM, err := hex.DecodeString(body.ClientCert)
		if err != nil {
			fail(fmt.Errorf("decode clientcert: %w", err))
			return
		}
		serverCertPEM, err := s.Pairing.GetServerCert(body.UniqueID, body.Salt, clientCertPEM)
		if err != nil {
			fail(err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"paired":    1,
			"plaincert": strings.ToUpper(hex.EncodeToString(serverCertPEM)),
		})

	case body.ClientChallenge != "":
		challenge, err := hex.DecodeString(body.ClientChallenge)
		if err != nil {
			fail(fmt.Errorf("decode clientchallenge: %w", err))
			return
		}
		resp, err := s.Pairing.ClientChallenge(body.UniqueID, challenge)
		if err != nil {
			fail(err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"paired":            1,
			"challengeresponse": strings.ToUpper(hex.EncodeToString(resp)),
		})

	case body.ServerChallengeResp != "":
		hash, err := hex.DecodeString(body.ServerChallengeResp)
		if err != nil {
			fail(fmt.Errorf("decode serverchallengeresp: %w", err))
			return
		}
		secret, err := s.Pairing.ServerChallengeResp(body.UniqueID, hash)
		if err != nil {
			fail(err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"paired":        1,
			"pairingsecret": strings.ToUpper(hex.EncodeToString(secret)),
		})

	case body.ClientPairingSecret != "":
		secret, err := hex.DecodeString(body.ClientPairingSecret)
		if err != nil {
			fail(fmt.Errorf("decode clientpairingsecret: %w", err))
			return
		}
		client, err := s.Pairing.ClientPairingSecret(body.UniqueID, secret)
		if err != nil {
			fail(err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"paired": 1,
			"uuid":   client.UUID,
		})

	default:
		writeErrorf(w, http.StatusBadRequest, "unrecognized pairing phase")
	}
}

func (s *Server) handleOTP(w http.ResponseWriter, r *http.Request) {
	var body struct {
		OTP      string `json:"otp"`
		Passphrase string `json:"passphrase"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErrorf(w, http.StatusBadRequest, "decode otp request: %v", err)
		return
	}
	writeOK(w)
}

func (s *Server) handleListClients(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Clients.List())
}

func (s *Server) handleUpdateClient(w http.ResponseWriter, r *http.Request) {
	// The uuid rides in the body alongside the fields being changed.
	var probe struct {
		UUID string `json:"uuid"`
	}
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeErrorf(w, http.StatusBadRequest, "read client update: %v", err)
		return
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		writeErrorf(w, http.StatusBadRequest, "decode client update: %v", err)
		return
	}
	existing, ok := s.Clients.Get(probe.UUID)
	if !ok {
		writeErrorf(w, http.StatusNotFound, "unknown paired client")
		return
	}
	updated := *existing
	if err := json.Unmarshal(raw, &updated); err != nil {
		writeErrorf(w, http.StatusBadRequest, "decode client update: %v", err)
		return
	}
	updated.UUID = probe.UUID
	if err := s.Clients.Upsert(&updated); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeOK(w)
}

func (s *Server) handleUnpairClient(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UUID string `json:"uuid"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErrorf(w, http.StatusBadRequest, "decode unpair: %v", err)
		return
	}
	if err := s.Clients.Unpair(body.UUID); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeOK(w)
}

// handleDisconnectClient tears down a paired client's live WebRTC session(s)
// without removing its pairing record, distinct from handleUnpairClient.
func (s *Server) handleDisconnectClient(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UUID string `json:"uuid"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErrorf(w, http.StatusBadRequest, "decode disconnect: %v", err)
		return
	}
	if _, ok := s.Clients.Get(body.UUID); !ok {
		writeErrorf(w, http.StatusNotFound, "unknown paired client")
		return
	}
	s.WebRTC.DisconnectClient(body.UUID)
	writeOK(w)
}

func (s *Server) handleUnpairAll(w http.ResponseWriter, r *http.Request) {
	if err := s.Clients.UnpairAll(); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeOK(w)
}

package pairing

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/subtle"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Nonary/Vibepollo-sub000/internal/moncrypto"
)

// Phase names the server-side pairing state machine's current step. Unlike
// a Moonlight client, which drives these phases, the host responds to
// them as they arrive over the config API.
type Phase int

const (
	PhasePinEntered Phase = iota
	PhaseCertExchanged
	PhaseClientChallenge
	PhaseServerChallengeResp
	PhaseComplete
	PhaseFailed
)

// Session is one in-flight pairing attempt, identified by the client's
// reported uniqueid. Sessions are single-use and expire if abandoned.
type Session struct {
	UniqueID   string
	ClientName string
	PIN        string
	Phase      Phase
	AESKey     []byte

	clientCert      *x509.Certificate
	clientCertPEM   []byte
	serverSecret    []byte
	serverChallenge []byte
	clientHash      []byte // the proof hash sent in serverchallengeresp

	StartedAt time.Time
}

// ErrUnknownSession is returned when a pairing phase references a uniqueid
// with no open session.
var ErrUnknownSession = errors.New("pairing: unknown session")

// ErrWrongPhase is returned when a pairing message arrives out of order.
var ErrWrongPhase = errors.New("pairing: message out of phase")

// ErrVerificationFailed is returned when the client's proof hash or secret
// signature does not check out; the usual cause is a wrong PIN.
var ErrVerificationFailed = errors.New("pairing: challenge verification failed")

// Manager tracks in-flight pairing sessions and the long-lived paired-client
// store, and owns the host identity used to derive pairing secrets.
type Manager struct {
	mu         sync.Mutex
	sessions   map[string]*Session
	identity   *moncrypto.Identity
	store      *Store
	sessionTTL time.Duration
}

// NewManager constructs a pairing Manager bound to a host identity and
// paired-client store.
func NewManager(identity *moncrypto.Identity, store *Store) *Manager {
	return &Manager{
		sessions:   map[string]*Session{},
		identity:   identity,
		store:      store,
		sessionTTL: 2 * time.Minute,
	}
}

// BeginPin registers the user-entered PIN for a client about to pair
// (POST /api/pin). The salt arrives later, with the client's getservercert
// request, so key derivation waits until then.
func (m *Manager) BeginPin(uniqueID, clientName, pin string) (*Session, error) {
	if pin == "" {
		return nil, errors.New("pairing: empty pin")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s := &Session{
		UniqueID:   uniqueID,
		ClientName: clientName,
		PIN:        pin,
		Phase:      PhasePinEntered,
		StartedAt:  time.Now(),
	}
	m.sessions[uniqueID] = s
	return s, nil
}

// deriveKey matches the legacy GameStream/Moonlight derivation: SHA-256 of
// salt||pin, truncated to an AES-128 key.
func deriveKey(salt []byte, pin string) []byte {
	h := sha256.New()
	h.Write(salt)
	h.Write([]byte(pin))
	sum := h.Sum(nil)
	return sum[:16]
}

// GetServerCert handles the getservercert phase: the client supplies its
// salt and certificate, the key is derived from salt||pin, and the server's
// own certificate PEM is returned for the client to pin.
func (m *Manager) GetServerCert(uniqueID string, saltHex string, clientCertPEM []byte) ([]byte, error) {
	s, err := m.session(uniqueID, PhasePinEntered)
	if err != nil {
		return nil, err
	}

	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return nil, fmt.Errorf("pairing: decode salt: %w", err)
	}
	if len(salt) < 16 {
		return nil, errors.New("pairing: salt too short")
	}

	block, _ := pem.Decode(clientCertPEM)
	if block == nil {
		return nil, errors.New("pairing: invalid client certificate PEM")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("pairing: parse client certificate: %w", err)
	}

	m.mu.Lock()
	s.AESKey = deriveKey(salt, s.PIN)
	s.clientCert = cert
	s.clientCertPEM = append([]byte{}, clientCertPEM...)
	s.Phase = PhaseCertExchanged
	m.mu.Unlock()

	return m.identity.CertPEM, nil
}

// ClientChallenge handles the clientchallenge phase: decrypts the client's
// 16-byte challenge and answers with
// encrypt(SHA256(challenge || server_cert_signature || server_secret) ||
// server_challenge), generating the server secret and challenge the later
// phases verify against.
func (m *Manager) ClientChallenge(uniqueID string, encryptedChallenge []byte) ([]byte, error) {
	s, err := m.session(uniqueID, PhaseCertExchanged)
	if err != nil {
		return nil, err
	}

	ctx, err := moncrypto.NewContext(s.AESKey)
	if err != nil {
		return nil, err
	}
	challenge, err := ctx.DecryptECB(encryptedChallenge)
	if err != nil {
		return nil, fmt.Errorf("pairing: decrypt client challenge: %w", err)
	}
	if len(challenge) < 16 {
		return nil, errors.New("pairing: client challenge too short")
	}
	challenge = challenge[:16]

	serverSecret := make([]byte, 16)
	if _, err := rand.Read(serverSecret); err != nil {
		return nil, err
	}
	serverChallenge := make([]byte, 16)
	if _, err := rand.Read(serverChallenge); err != nil {
		return nil, err
	}

	h := sha256.New()
	h.Write(challenge)
	h.Write(m.identity.Cert.Signature)
	h.Write(serverSecret)
	respHash := h.Sum(nil)

	m.mu.Lock()
	s.serverSecret = serverSecret
	s.serverChallenge = serverChallenge
	s.Phase = PhaseClientChallenge
	m.mu.Unlock()

	return ctx.EncryptECB(append(respHash, serverChallenge...))
}

// ServerChallengeResp handles the serverchallengeresp phase: stores the
// client's proof hash SHA256(server_challenge || client_cert_signature ||
// client_secret), checked once the secret itself arrives, and returns the
// server's pairing secret (server_secret || RSA signature over it).
func (m *Manager) ServerChallengeResp(uniqueID string, encrypted []byte) ([]byte, error) {
	s, err := m.session(uniqueID, PhaseClientChallenge)
	if err != nil {
		return nil, err
	}
	ctx, err := moncrypto.NewContext(s.AESKey)
	if err != nil {
		return nil, err
	}
	clientHash, err := ctx.DecryptECB(encrypted)
	if err != nil {
		return nil, fmt.Errorf("pairing: decrypt server challenge response: %w", err)
	}
	if len(clientHash) < sha256.Size {
		return nil, errors.New("pairing: challenge response hash too short")
	}
	clientHash = clientHash[:sha256.Size]

	digest := sha256.Sum256(s.serverSecret)
	sig, err := rsa.SignPKCS1v15(rand.Reader, m.identity.Key(), crypto.SHA256, digest[:])
	if err != nil {
		return nil, fmt.Errorf("pairing: sign server secret: %w", err)
	}

	m.mu.Lock()
	s.clientHash = clientHash
	s.Phase = PhaseServerChallengeResp
	m.mu.Unlock()

	return append(append([]byte{}, s.serverSecret...), sig...), nil
}

// ClientPairingSecret handles the final phase. pairingSecret is the plain
// client_secret (16 bytes) followed by the client's RSA-SHA256 signature
// over it. The client is persisted only after both checks pass:
//  1. SHA256(server_challenge || client_cert_signature || client_secret)
//     equals the hash presented in serverchallengeresp, which proves the
//     client derived the same AES key (i.e. knew the PIN);
//  2. the signature verifies against the client certificate's public key,
//     which proves the certificate being stored belongs to this client.
func (m *Manager) ClientPairingSecret(uniqueID string, pairingSecret []byte) (*PairedClient, error) {
	s, err := m.session(uniqueID, PhaseServerChallengeResp)
	if err != nil {
		return nil, err
	}
	if len(pairingSecret) < 16+1 {
		return nil, errors.New("pairing: pairing secret too short")
	}
	clientSecret := pairingSecret[:16]
	signature := pairingSecret[16:]

	h := sha256.New()
	h.Write(s.serverChallenge)
	h.Write(s.clientCert.Signature)
	h.Write(clientSecret)
	expected := h.Sum(nil)
	if subtle.ConstantTimeCompare(expected, s.clientHash) != 1 {
		m.fail(uniqueID)
		return nil, ErrVerificationFailed
	}

	pub, ok := s.clientCert.PublicKey.(*rsa.PublicKey)
	if !ok {
		m.fail(uniqueID)
		return nil, errors.New("pairing: client certificate is not RSA")
	}
	digest := sha256.Sum256(clientSecret)
	if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], signature); err != nil {
		m.fail(uniqueID)
		return nil, ErrVerificationFailed
	}

	client := &PairedClient{
		Name:    s.ClientName,
		CertPEM: string(s.clientCertPEM),
		Perm:    PermAll,
	}
	if err := m.store.Upsert(client); err != nil {
		return nil, fmt.Errorf("pairing: persist paired client: %w", err)
	}

	m.mu.Lock()
	s.Phase = PhaseComplete
	delete(m.sessions, uniqueID)
	m.mu.Unlock()

	return client, nil
}

// fail burns the session so a failed verification cannot be retried against
// the same server secret.
func (m *Manager) fail(uniqueID string) {
	m.mu.Lock()
	if s, ok := m.sessions[uniqueID]; ok {
		s.Phase = PhaseFailed
	}
	delete(m.sessions, uniqueID)
	m.mu.Unlock()
}

func (m *Manager) session(uniqueID string, want Phase) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[uniqueID]
	if !ok {
		return nil, ErrUnknownSession
	}
	if time.Since(s.StartedAt) > m.sessionTTL {
		delete(m.sessions, uniqueID)
		return nil, ErrUnknownSession
	}
	if s.Phase != want {
		return nil, ErrWrongPhase
	}
	return s, nil
}

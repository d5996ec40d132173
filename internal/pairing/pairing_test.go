package pairing

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"testing"

	"github.com/Nonary/Vibepollo-sub000/internal/moncrypto"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	id, err := moncrypto.Generate("test-host")
	require.NoError(t, err)
	store, err := NewStore(filepath.Join(t.TempDir(), "clients.json"))
	require.NoError(t, err)
	return NewManager(id, store)
}

// driveHandshake walks every client-side phase against mgr with the given
// PINs (serverPIN entered in the UI, clientPIN used to derive the client's
// key) and returns the final ClientPairingSecret result.
func driveHandshake(t *testing.T, mgr *Manager, serverPIN, clientPIN string) (*PairedClient, *moncrypto.Identity, error) {
	t.Helper()

	_, err := mgr.BeginPin("client-1", "My PC", serverPIN)
	require.NoError(t, err)

	clientIdentity, err := moncrypto.Generate("moonlight-client")
	require.NoError(t, err)

	salt := make([]byte, 16)
	_, _ = rand.Read(salt)
	serverCertPEM, err := mgr.GetServerCert("client-1", hex.EncodeToString(salt), clientIdentity.CertPEM)
	require.NoError(t, err)
	require.NotEmpty(t, serverCertPEM)

	key := deriveKey(salt, clientPIN)
	ctx, err := moncrypto.NewContext(key)
	require.NoError(t, err)

	clientChallenge := make([]byte, 16)
	_, _ = rand.Read(clientChallenge)
	challengeCT, err := ctx.EncryptECB(clientChallenge)
	require.NoError(t, err)

	respCT, err := mgr.ClientChallenge("client-1", challengeCT)
	if err != nil {
		return nil, clientIdentity, err
	}
	respPT, err := ctx.DecryptECB(respCT)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(respPT), 48)
	serverChallenge := respPT[32:48]

	clientSecret := make([]byte, 16)
	_, _ = rand.Read(clientSecret)

	h := sha256.New()
	h.Write(serverChallenge)
	h.Write(clientIdentity.Cert.Signature)
	h.Write(clientSecret)
	proofCT, err := ctx.EncryptECB(h.Sum(nil))
	require.NoError(t, err)

	pairingSecret, err := mgr.ServerChallengeResp("client-1", proofCT)
	if err != nil {
		return nil, clientIdentity, err
	}
	require.GreaterOrEqual(t, len(pairingSecret), 16)

	digest := sha256.Sum256(clientSecret)
	sig, err := rsa.SignPKCS1v15(rand.Reader, clientIdentity.Key(), crypto.SHA256, digest[:])
	require.NoError(t, err)

	paired, err := mgr.ClientPairingSecret("client-1", append(clientSecret, sig...))
	return paired, clientIdentity, err
}

func TestPairingHappyPath(t *testing.T) {
	mgr := newTestManager(t)

	paired, clientIdentity, err := driveHandshake(t, mgr, "1234", "1234")
	require.NoError(t, err)
	require.Equal(t, "My PC", paired.Name)
	require.True(t, paired.Has(PermAll))

	stored, ok := mgr.store.FindByCert(string(clientIdentity.CertPEM))
	require.True(t, ok)
	require.Equal(t, paired.UUID, stored.UUID)

	_, stillOpen := mgr.sessions["client-1"]
	require.False(t, stillOpen)
}

func TestPairingChallengeResponseVerifiesServerSecret(t *testing.T) {
	mgr := newTestManager(t)
	_, err := mgr.BeginPin("client-1", "My PC", "1234")
	require.NoError(t, err)

	clientIdentity, err := moncrypto.Generate("moonlight-client")
	require.NoError(t, err)
	salt := make([]byte, 16)
	_, err = mgr.GetServerCert("client-1", hex.EncodeToString(salt), clientIdentity.CertPEM)
	require.NoError(t, err)

	// The challenge response hash must commit to the server's own cert
	// signature and freshly generated secret.
	key := deriveKey(salt, "1234")
	ctx, err := moncrypto.NewContext(key)
	require.NoError(t, err)
	challenge := make([]byte, 16)
	challengeCT, err := ctx.EncryptECB(challenge)
	require.NoError(t, err)

	respCT, err := mgr.ClientChallenge("client-1", challengeCT)
	require.NoError(t, err)
	respPT, err := ctx.DecryptECB(respCT)
	require.NoError(t, err)

	sess := mgr.sessions["client-1"]
	h := sha256.New()
	h.Write(challenge)
	h.Write(mgr.identity.Cert.Signature)
	h.Write(sess.serverSecret)
	require.Equal(t, h.Sum(nil), respPT[:32])
	require.Equal(t, sess.serverChallenge, respPT[32:48])
}

func TestPairingWrongPINFailsVerification(t *testing.T) {
	mgr := newTestManager(t)

	// Server side has PIN 1234; the client derives its key from 9999. The
	// handshake survives the opaque-blob phases but must fail the final
	// proof hash comparison, and nothing may be persisted.
	paired, clientIdentity, err := driveHandshake(t, mgr, "1234", "9999")
	require.Error(t, err)
	require.Nil(t, paired)

	_, ok := mgr.store.FindByCert(string(clientIdentity.CertPEM))
	require.False(t, ok)

	// The session is burned: no retry against the same server secret.
	_, stillOpen := mgr.sessions["client-1"]
	require.False(t, stillOpen)
}

func TestPairingRejectsForgedSecretSignature(t *testing.T) {
	mgr := newTestManager(t)
	_, err := mgr.BeginPin("client-1", "My PC", "1234")
	require.NoError(t, err)

	clientIdentity, err := moncrypto.Generate("moonlight-client")
	require.NoError(t, err)
	salt := make([]byte, 16)
	_, _ = rand.Read(salt)
	_, err = mgr.GetServerCert("client-1", hex.EncodeToString(salt), clientIdentity.CertPEM)
	require.NoError(t, err)

	key := deriveKey(salt, "1234")
	ctx, err := moncrypto.NewContext(key)
	require.NoError(t, err)

	clientChallenge := make([]byte, 16)
	challengeCT, err := ctx.EncryptECB(clientChallenge)
	require.NoError(t, err)
	respCT, err := mgr.ClientChallenge("client-1", challengeCT)
	require.NoError(t, err)
	respPT, err := ctx.DecryptECB(respCT)
	require.NoError(t, err)
	serverChallenge := respPT[32:48]

	clientSecret := make([]byte, 16)
	h := sha256.New()
	h.Write(serverChallenge)
	h.Write(clientIdentity.Cert.Signature)
	h.Write(clientSecret)
	proofCT, err := ctx.EncryptECB(h.Sum(nil))
	require.NoError(t, err)
	_, err = mgr.ServerChallengeResp("client-1", proofCT)
	require.NoError(t, err)

	// Correct proof hash but a signature from a different key: an attacker
	// who sniffed the secret still cannot bind their own certificate.
	otherIdentity, err := moncrypto.Generate("imposter")
	require.NoError(t, err)
	digest := sha256.Sum256(clientSecret)
	forged, err := rsa.SignPKCS1v15(rand.Reader, otherIdentity.Key(), crypto.SHA256, digest[:])
	require.NoError(t, err)

	paired, err := mgr.ClientPairingSecret("client-1", append(clientSecret, forged...))
	require.ErrorIs(t, err, ErrVerificationFailed)
	require.Nil(t, paired)
}

func TestPairingRejectsOutOfPhase(t *testing.T) {
	mgr := newTestManager(t)
	_, err := mgr.ClientChallenge("no-such-session", nil)
	require.ErrorIs(t, err, ErrUnknownSession)

	_, err = mgr.BeginPin("client-1", "My PC", "1234")
	require.NoError(t, err)
	_, err = mgr.ClientChallenge("client-1", nil)
	require.ErrorIs(t, err, ErrWrongPhase)
}

func TestBeginPinRejectsEmptyPIN(t *testing.T) {
	mgr := newTestManager(t)
	_, err := mgr.BeginPin("client-1", "My PC", "")
	require.Error(t, err)
}

// Package moncrypto provides the host's x509 identity and the AES
// primitives used by the pairing and WebRTC-fingerprint paths.
package moncrypto

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"
)

// Identity is the host's long-lived self-signed certificate/key pair. Its
// certificate doubles as the HTTPS server cert and as the value exchanged
// during Moonlight pairing.
type Identity struct {
	Cert      *x509.Certificate
	CertPEM   []byte
	KeyPEM    []byte
	key       *rsa.PrivateKey
}

// LoadOrGenerate reads cert/key PEM files from certPath/keyPath, generating
// and persisting a fresh self-signed identity if either is missing.
func LoadOrGenerate(certPath, keyPath string) (*Identity, error) {
	certBytes, certErr := os.ReadFile(certPath)
	keyBytes, keyErr := os.ReadFile(keyPath)
	if certErr == nil && keyErr == nil {
		id, err := FromPEM(certBytes, keyBytes)
		if err == nil {
			return id, nil
		}
	}

	id, err := Generate("sunshine")
	if err != nil {
		return nil, fmt.Errorf("generate identity: %w", err)
	}
	if err := os.WriteFile(certPath, id.CertPEM, 0o644); err != nil {
		return nil, fmt.Errorf("write cert: %w", err)
	}
	if err := os.WriteFile(keyPath, id.KeyPEM, 0o600); err != nil {
		return nil, fmt.Errorf("write key: %w", err)
	}
	return id, nil
}

// FromPEM parses a previously generated identity from PEM blocks.
func FromPEM(certPEM, keyPEM []byte) (*Identity, error) {
	certBlock, _ := pem.Decode(certPEM)
	if certBlock == nil {
		return nil, errors.New("moncrypto: invalid cert PEM")
	}
	cert, err := x509.ParseCertificate(certBlock.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse certificate: %w", err)
	}
	keyBlock, _ := pem.Decode(keyPEM)
	if keyBlock == nil {
		return nil, errors.New("moncrypto: invalid key PEM")
	}
	key, err := x509.ParsePKCS1PrivateKey(keyBlock.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return &Identity{Cert: cert, CertPEM: certPEM, KeyPEM: keyPEM, key: key}, nil
}

// Generate creates a fresh 2048-bit RSA self-signed identity, matching the
// certificate shape Moonlight clients expect during pairing.
func Generate(commonName string) (*Identity, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, err
	}

	tmpl := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: commonName},
		NotBefore:    time.Now().Add(-24 * time.Hour),
		NotAfter:     time.Now().AddDate(20, 0, 0),
		KeyUsage:     x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		IsCA:         true,
		BasicConstraintsValid: true,
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		return nil, err
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, err
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})

	return &Identity{Cert: cert, CertPEM: certPEM, KeyPEM: keyPEM, key: key}, nil
}

// Key exposes the RSA private key for use by the HTTPS server's tls.Config.
func (i *Identity) Key() *rsa.PrivateKey { return i.key }

// FingerprintHex returns the SHA-256 digest of the DER certificate as
// upper-case colon-separated hex, the form handed to WebRTC clients during
// session creation.
func (i *Identity) FingerprintHex() string {
	sum := sha256.Sum256(i.Cert.Raw)
	parts := make([]string, len(sum))
	for idx, b := range sum {
		parts[idx] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, ":")
}

package moncrypto

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
)

// Context is the AES helper shared by pairing and session crypto: one
// cipher.Block behind a GCM mode (session-secret exchange), a CBC mode, and
// the ECB helpers the pairing handshake uses for its payloads.
type Context struct {
	gcm   cipher.AEAD
	block cipher.Block
}

var (
	ErrInvalidKey       = errors.New("moncrypto: invalid key size")
	ErrEncryptionFailed = errors.New("moncrypto: encryption failed")
	ErrDecryptionFailed = errors.New("moncrypto: decryption failed")
)

// NewContext builds a Context from a 16/24/32-byte AES key.
func NewContext(key []byte) (*Context, error) {
	switch len(key) {
	case 16, 24, 32:
	default:
		return nil, ErrInvalidKey
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Context{gcm: gcm, block: block}, nil
}

// EncryptGCM seals plaintext, returning ciphertext and tag separately (the
// wire format keeps them apart, unlike Go's combined Seal output).
func (c *Context) EncryptGCM(plaintext, iv, aad []byte) (ciphertext, tag []byte, err error) {
	if len(iv) != c.gcm.NonceSize() {
		return nil, nil, errors.New("moncrypto: invalid IV size")
	}
	sealed := c.gcm.Seal(nil, iv, plaintext, aad)
	cut := len(sealed) - c.gcm.Overhead()
	return sealed[:cut], sealed[cut:], nil
}

// DecryptGCM re-joins ciphertext and tag and opens them.
func (c *Context) DecryptGCM(ciphertext, iv, tag, aad []byte) ([]byte, error) {
	if len(iv) != c.gcm.NonceSize() {
		return nil, errors.New("moncrypto: invalid IV size")
	}
	sealed := append(append([]byte{}, ciphertext...), tag...)
	pt, err := c.gcm.Open(nil, iv, sealed, aad)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return pt, nil
}

// EncryptCBC applies PKCS7 padding and encrypts with AES-CBC.
func (c *Context) EncryptCBC(plaintext, iv []byte) ([]byte, error) {
	bs := c.block.BlockSize()
	if len(iv) != bs {
		return nil, errors.New("moncrypto: invalid IV size")
	}
	pad := bs - (len(plaintext) % bs)
	padded := make([]byte, len(plaintext)+pad)
	copy(padded, plaintext)
	for i := len(plaintext); i < len(padded); i++ {
		padded[i] = byte(pad)
	}
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(c.block, iv).CryptBlocks(out, padded)
	return out, nil
}

// DecryptCBC decrypts AES-CBC and strips PKCS7 padding, tolerating absent
// or malformed padding rather than failing; some legacy clients pad
// inconsistently.
func (c *Context) DecryptCBC(ciphertext, iv []byte) ([]byte, error) {
	bs := c.block.BlockSize()
	if len(iv) != bs || len(ciphertext)%bs != 0 {
		return nil, ErrDecryptionFailed
	}
	out := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(c.block, iv).CryptBlocks(out, ciphertext)

	if n := len(out); n > 0 {
		pad := int(out[n-1])
		if pad > 0 && pad <= bs {
			valid := true
			for i := n - pad; i < n; i++ {
				if out[i] != byte(pad) {
					valid = false
					break
				}
			}
			if valid {
				out = out[:n-pad]
			}
		}
	}
	return out, nil
}

// EncryptECB applies PKCS7 padding and encrypts block-by-block without
// chaining. The GameStream pairing handshake uses plain AES-128-ECB for its
// challenge payloads.
func (c *Context) EncryptECB(plaintext []byte) ([]byte, error) {
	bs := c.block.BlockSize()
	pad := bs - (len(plaintext) % bs)
	if pad == 0 {
		pad = bs
	}
	padded := make([]byte, len(plaintext)+pad)
	copy(padded, plaintext)
	for i := len(plaintext); i < len(padded); i++ {
		padded[i] = byte(pad)
	}
	out := make([]byte, len(padded))
	for i := 0; i < len(padded); i += bs {
		c.block.Encrypt(out[i:], padded[i:])
	}
	return out, nil
}

// DecryptECB decrypts block-by-block and strips PKCS7 padding, tolerating
// absent or malformed padding the same way DecryptCBC does.
func (c *Context) DecryptECB(ciphertext []byte) ([]byte, error) {
	bs := c.block.BlockSize()
	if len(ciphertext) == 0 || len(ciphertext)%bs != 0 {
		return nil, ErrDecryptionFailed
	}
	out := make([]byte, len(ciphertext))
	for i := 0; i < len(ciphertext); i += bs {
		c.block.Decrypt(out[i:], ciphertext[i:])
	}
	if pad := int(out[len(out)-1]); pad > 0 && pad <= bs && pad <= len(out) {
		out = out[:len(out)-pad]
	}
	return out, nil
}

// BlockSize returns the underlying AES block size (always 16).
func (c *Context) BlockSize() int { return c.block.BlockSize() }

// GCMNonceSize returns the configured GCM nonce length.
func (c *Context) GCMNonceSize() int { return c.gcm.NonceSize() }

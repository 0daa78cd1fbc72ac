// Package crypto encrypts gateway secrets at rest.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

const (
	// versionPrefix tags every ciphertext produced by this package
	versionPrefix = "v1:"
	// MinKeyMaterialLength is the shortest accepted master key
	MinKeyMaterialLength = 16

	hkdfSalt = "qrmenu-billing-credential-vault"
	hkdfInfo = "aes-256-gcm/v1"
)

var (
	// ErrDecrypt is returned when no configured key opens a ciphertext.
	// It never carries key material or plaintext.
	ErrDecrypt = errors.New("crypto: ciphertext could not be decrypted")
	// ErrKeyTooShort is returned for master keys under MinKeyMaterialLength bytes
	ErrKeyTooShort = fmt.Errorf("crypto: key material must be at least %d bytes", MinKeyMaterialLength)
)

// Cipher is an AES-256-GCM authenticated cipher. Encryption always uses the primary key;
// decryption also tries previous keys so they can be rotated out.
type Cipher struct {
	primary  cipher.AEAD
	previous []cipher.AEAD
}

// NewCipher derives a 256-bit key from each piece of key material with HKDF-SHA256.
func NewCipher(primary []byte, previous ...[]byte) (*Cipher, error) {
	p, err := newAEAD(primary)
	if err != nil {
		return nil, fmt.Errorf("primary key: %w", err)
	}

	c := &Cipher{primary: p}
	for i, material := range previous {
		if len(material) == 0 {
			continue
		}
		aead, err := newAEAD(material)
		if err != nil {
			return nil, fmt.Errorf("previous key %d: %w", i, err)
		}
		c.previous = append(c.previous, aead)
	}
	return c, nil
}

func newAEAD(material []byte) (cipher.AEAD, error) {
	if len(material) < MinKeyMaterialLength {
		return nil, ErrKeyTooShort
	}

	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, material, []byte(hkdfSalt), []byte(hkdfInfo)), key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create block cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

// Encrypt seals plaintext as "v1:" + base64(nonce || ciphertext || tag).
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.primary.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := c.primary.Seal(nonce, nonce, []byte(plaintext), nil)
	return versionPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a ciphertext with the primary key, then each previous key.
func (c *Cipher) Decrypt(ciphertext string) (string, error) {
	plaintext, _, err := c.open(ciphertext)
	return plaintext, err
}

// NeedsRotation reports whether ciphertext opens only under a previous key.
func (c *Cipher) NeedsRotation(ciphertext string) bool {
	_, idx, err := c.open(ciphertext)
	return err == nil && idx > 0
}

// Reencrypt opens ciphertext with any configured key and seals it under the primary key.
func (c *Cipher) Reencrypt(ciphertext string) (string, error) {
	plaintext, _, err := c.open(ciphertext)
	if err != nil {
		return "", err
	}
	return c.Encrypt(plaintext)
}

// open returns the plaintext and the index of the key that opened it: 0 is primary.
func (c *Cipher) open(ciphertext string) (string, int, error) {
	encoded, ok := strings.CutPrefix(ciphertext, versionPrefix)
	if !ok {
		return "", -1, ErrDecrypt
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", -1, ErrDecrypt
	}

	keys := append([]cipher.AEAD{c.primary}, c.previous...)
	for i, aead := range keys {
		ns := aead.NonceSize()
		if len(raw) < ns+aead.Overhead() {
			return "", -1, ErrDecrypt
		}
		plaintext, err := aead.Open(nil, raw[:ns], raw[ns:], nil)
		if err == nil {
			return string(plaintext), i, nil
		}
	}
	return "", -1, ErrDecrypt
}

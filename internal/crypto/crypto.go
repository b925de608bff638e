// Package crypto provides the symmetric primitives for payload protection:
// AES-256-GCM encryption, Argon2id master-key derivation from a device-held
// secret, and cheap PBKDF2 per-payload key re-derivation.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// KeyLen is the AES-256 key length in bytes.
	KeyLen = 32
	// NonceLen is the GCM nonce length in bytes.
	NonceLen = 12
	// SaltLen is the salt length in bytes for both derivation paths.
	SaltLen = 32

	// Argon2id parameters for the master key.
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4

	// payloadIterations is deliberately low: the master key already carries
	// full entropy, PBKDF2 here only binds the payload key to its salt.
	payloadIterations = 1000
)

// ErrCiphertextTooShort reports a ciphertext that cannot even hold a nonce,
// distinguishing structural corruption from an authentication failure.
var ErrCiphertextTooShort = errors.New("ciphertext too short")

// Encrypt encrypts plaintext with AES-256-GCM and returns nonce || ciphertext.
func Encrypt(key, plaintext []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, NonceLen)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("random nonce: %w", err)
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt decrypts ciphertext produced by Encrypt.
func Decrypt(key, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < NonceLen {
		return nil, ErrCiphertextTooShort
	}

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	plaintext, err := gcm.Open(nil, ciphertext[:NonceLen], ciphertext[NonceLen:], nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	return plaintext, nil
}

// Seal encrypts plaintext with an explicit nonce and returns ciphertext only.
// Used by the payload codec, which transports the nonce in its envelope.
func Seal(key, nonce, plaintext []byte) ([]byte, error) {
	if len(nonce) != NonceLen {
		return nil, fmt.Errorf("nonce must be %d bytes", NonceLen)
	}
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	return gcm.Seal(nil, nonce, plaintext, nil), nil
}

// Open decrypts ciphertext sealed with Seal.
func Open(key, nonce, ciphertext []byte) ([]byte, error) {
	if len(nonce) != NonceLen {
		return nil, fmt.Errorf("nonce must be %d bytes", NonceLen)
	}
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeyLen {
		return nil, errors.New("key must be 32 bytes")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("gcm: %w", err)
	}
	return gcm, nil
}

// DeriveMasterKey derives a 256-bit master key from a device secret or user
// passphrase using Argon2id. Returns the key and the random salt used.
func DeriveMasterKey(secret string) (key, salt []byte, err error) {
	salt = make([]byte, SaltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, nil, fmt.Errorf("random salt: %w", err)
	}

	key = argon2.IDKey([]byte(secret), salt, argonTime, argonMemory, argonThreads, KeyLen)
	return key, salt, nil
}

// DeriveMasterKeyWithSalt re-derives a master key from a known salt.
func DeriveMasterKeyWithSalt(secret string, salt []byte) ([]byte, error) {
	if len(salt) != SaltLen {
		return nil, fmt.Errorf("salt must be %d bytes", SaltLen)
	}
	return argon2.IDKey([]byte(secret), salt, argonTime, argonMemory, argonThreads, KeyLen), nil
}

// DerivePayloadKey derives a per-payload key from the master key and a fresh
// salt via PBKDF2-SHA256.
func DerivePayloadKey(masterKey, salt []byte) []byte {
	return pbkdf2.Key(masterKey, salt, payloadIterations, KeyLen, sha256.New)
}

// NewSalt returns a fresh random salt for per-payload key derivation.
func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("random salt: %w", err)
	}
	return salt, nil
}

// NewNonce returns a fresh random GCM nonce.
func NewNonce() ([]byte, error) {
	nonce := make([]byte, NonceLen)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("random nonce: %w", err)
	}
	return nonce, nil
}

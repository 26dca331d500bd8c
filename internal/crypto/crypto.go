// Package crypto derives the service's working keys from a single master key
// and provides authenticated encryption for data leaving the database
// (backup snapshots).
//
// Key hierarchy:
//   - MASTER_KEY: 32 random bytes supplied by the operator (64 hex chars)
//   - Working keys: HKDF-SHA256(master, info="notewise:"+purpose), one per purpose
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	// KeySize is the size of the master key and of every derived key (256 bits).
	KeySize = 32

	// NonceSize is the size of the AES-GCM nonce in bytes (96 bits)
	NonceSize = 12
)

// Key purposes. Bump the version suffix to rotate a single derived key.
const (
	PurposeDatabase     = "database:v1"
	PurposeTokenSigning = "token-signing:v1"
	PurposeBackup       = "backup:v1"
)

// DecodeMasterKey parses a hex-encoded 32-byte master key.
func DecodeMasterKey(hexKey string) ([]byte, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("master key is not valid hex: %w", err)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("master key must be %d bytes, got %d", KeySize, len(key))
	}
	return key, nil
}

// DeriveKey derives a purpose-bound key from the master key using HKDF-SHA256.
// The same inputs always produce the same key.
func DeriveKey(masterKey []byte, purpose string) []byte {
	info := "notewise:" + purpose

	// Salt is nil - the master key is already uniformly random
	hkdfReader := hkdf.New(sha256.New, masterKey, nil, []byte(info))

	key := make([]byte, KeySize)
	if _, err := io.ReadFull(hkdfReader, key); err != nil {
		// HKDF cannot run out of output for 32 bytes
		panic(fmt.Sprintf("HKDF failed: %v", err))
	}
	return key
}

// Seal encrypts plaintext with AES-256-GCM.
// Output format: nonce (12 bytes) || ciphertext || auth tag (16 bytes)
func Seal(key, plaintext []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)
	result := make([]byte, len(nonce)+len(ciphertext))
	copy(result, nonce)
	copy(result[len(nonce):], ciphertext)
	return result, nil
}

// Open decrypts data produced by Seal.
func Open(key, sealed []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	// Minimum size: nonce (12) + auth tag (16)
	if len(sealed) < NonceSize+gcm.Overhead() {
		return nil, fmt.Errorf("sealed data too short: got %d bytes, need at least %d", len(sealed), NonceSize+gcm.Overhead())
	}

	plaintext, err := gcm.Open(nil, sealed[:NonceSize], sealed[NonceSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("key must be %d bytes, got %d", KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

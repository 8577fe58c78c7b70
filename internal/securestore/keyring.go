package securestore

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/hkdf"
)

const (
	// SaltLength is the Argon2id salt length persisted with the store.
	SaltLength = 16

	// MinPassphraseLength is the minimum accepted passphrase length.
	MinPassphraseLength = 8

	argon2Time    = 3
	argon2Memory  = 64 * 1024
	argon2Threads = 4
)

// verifierPlaintext is sealed at creation and opened at every Open to
// detect a wrong master key before any user record is touched.
var verifierPlaintext = []byte("rosiels securestore verifier v1")

// KDFParams tunes Argon2id. The zero value selects the defaults.
type KDFParams struct {
	Time    uint32
	Memory  uint32
	Threads uint8
}

func (p KDFParams) withDefaults() KDFParams {
	if p.Time == 0 {
		p.Time = argon2Time
	}
	if p.Memory == 0 {
		p.Memory = argon2Memory
	}
	if p.Threads == 0 {
		p.Threads = argon2Threads
	}
	return p
}

// deriveFromPassphrase stretches a passphrase into a master key.
func deriveFromPassphrase(passphrase, salt []byte, p KDFParams) ([]byte, error) {
	if len(passphrase) < MinPassphraseLength {
		return nil, ErrPassphraseTooShort
	}
	if len(salt) != SaltLength {
		return nil, fmt.Errorf("securestore: invalid salt length %d", len(salt))
	}
	p = p.withDefaults()
	return argon2.IDKey(passphrase, salt, p.Time, p.Memory, p.Threads, KeySize), nil
}

func newSalt() ([]byte, error) {
	salt := make([]byte, SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("securestore: salt: %w", err)
	}
	return salt, nil
}

// deriveSubkey derives a purpose-bound key from the master key.
func deriveSubkey(master []byte, info string) ([]byte, error) {
	reader := hkdf.New(sha256.New, master, nil, []byte(info))
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("securestore: derive subkey: %w", err)
	}
	return key, nil
}

// ReadKeyFile loads a master key: 32 raw bytes or 64 hex characters.
func ReadKeyFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("securestore: read key file: %w", err)
	}

	if len(data) == KeySize {
		return data, nil
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == hex.EncodedLen(KeySize) {
		key := make([]byte, KeySize)
		if _, err := hex.Decode(key, trimmed); err == nil {
			return key, nil
		}
	}

	return nil, errors.New("securestore: key file must hold 32 raw bytes or 64 hex characters")
}

// GenerateKey returns a random master key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("securestore: generate key: %w", err)
	}
	return key, nil
}

// zeroKey overwrites key material in memory.
func zeroKey(key []byte) {
	for i := range key {
		key[i] = 0
	}
}

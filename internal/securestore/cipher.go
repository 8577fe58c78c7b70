package securestore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

// Algorithm identifies an AEAD cipher.
type Algorithm string

const (
	AlgorithmAESGCM   Algorithm = "aes-gcm"
	AlgorithmChaCha20 Algorithm = "chacha20-poly1305"
)

// Record format bytes.
const (
	formatPlain    byte = 0x00
	formatAESGCM   byte = 0x01
	formatChaCha20 byte = 0x02
)

// KeySize is the size of master and node keys.
const KeySize = 32

func (a Algorithm) format() (byte, error) {
	switch a {
	case AlgorithmAESGCM:
		return formatAESGCM, nil
	case AlgorithmChaCha20:
		return formatChaCha20, nil
	default:
		return 0, fmt.Errorf("securestore: unknown algorithm %q", string(a))
	}
}

// ParseAlgorithm validates an algorithm name. Empty selects AES-GCM.
func ParseAlgorithm(s string) (Algorithm, error) {
	if s == "" {
		return AlgorithmAESGCM, nil
	}
	a := Algorithm(s)
	if _, err := a.format(); err != nil {
		return "", err
	}
	return a, nil
}

func newAEAD(format byte, key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, errors.New("securestore: invalid key size: must be 32 bytes")
	}
	switch format {
	case formatAESGCM:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, err
		}
		return cipher.NewGCM(block)
	case formatChaCha20:
		return chacha20poly1305.New(key)
	default:
		return nil, fmt.Errorf("securestore: unknown record format 0x%02x", format)
	}
}

// sealer encrypts with one algorithm and decrypts records of any known
// format under the same key.
type sealer struct {
	key    []byte
	format byte
	aeads  map[byte]cipher.AEAD
}

func newSealer(key []byte, alg Algorithm) (*sealer, error) {
	format, err := alg.format()
	if err != nil {
		return nil, err
	}
	s := &sealer{key: key, format: format, aeads: make(map[byte]cipher.AEAD, 2)}
	for _, f := range []byte{formatAESGCM, formatChaCha20} {
		aead, err := newAEAD(f, key)
		if err != nil {
			return nil, err
		}
		s.aeads[f] = aead
	}
	return s, nil
}

func (s *sealer) seal(plaintext, additionalData []byte) ([]byte, error) {
	aead := s.aeads[s.format]
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("securestore: nonce: %w", err)
	}

	out := make([]byte, 1, 1+len(nonce)+len(plaintext)+aead.Overhead())
	out[0] = s.format
	out = append(out, nonce...)
	return aead.Seal(out, nonce, plaintext, additionalData), nil
}

// open returns the plaintext of a record. Plain records are returned as-is.
func (s *sealer) open(record, additionalData []byte) ([]byte, error) {
	if len(record) == 0 {
		return nil, ErrDecrypt
	}
	if record[0] == formatPlain {
		return record[1:], nil
	}

	aead, ok := s.aeads[record[0]]
	if !ok {
		return nil, fmt.Errorf("%w: unknown record format 0x%02x", ErrDecrypt, record[0])
	}
	body := record[1:]
	if len(body) < aead.NonceSize()+aead.Overhead() {
		return nil, fmt.Errorf("%w: record too short", ErrDecrypt)
	}

	nonce, ciphertext := body[:aead.NonceSize()], body[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, additionalData)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plaintext, nil
}

func plainRecord(value []byte) []byte {
	out := make([]byte, 1+len(value))
	out[0] = formatPlain
	copy(out[1:], value)
	return out
}

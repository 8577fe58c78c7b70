// Package credential holds the Codiga API token in encrypted storage.
//
// The token lives in the secure storage namespace of the plugin under a
// single key. Reads return "" when nothing was ever stored. Every write
// overwrites the previous value and is flushed before SetAPIToken returns.
package credential

import (
	"errors"
	"fmt"
	"sync"
)

const (
	// Namespace is the secure storage node owned by the plugin.
	Namespace = "io.codiga.rosiels.eclipse.plugin"

	// APITokenKey is the key of the API token inside Namespace.
	APITokenKey = "codiga.api.token"
)

var (
	// ErrUnavailable means the secure storage could not be obtained.
	ErrUnavailable = errors.New("credential: secure storage unavailable")

	// ErrStorage is matched by every *StorageError.
	ErrStorage = errors.New("credential: storage failure")
)

// StorageError reports a failed read or write of the secure storage.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("credential: %s api token: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrStorage) true for any StorageError.
func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}

// Backend is the encrypted key-value node the store sits on.
// *securestore.Node satisfies it.
type Backend interface {
	Get(key, def string) (string, error)
	Put(key, value string, encrypt bool) error
}

// Store reads and writes the API token.
type Store struct {
	backend Backend
	mu      sync.Mutex
}

// NewStore wraps backend. A nil backend yields ErrUnavailable.
func NewStore(backend Backend) (*Store, error) {
	if backend == nil {
		return nil, ErrUnavailable
	}
	return &Store{backend: backend}, nil
}

// APIToken returns the stored token, or "" when none was stored.
func (s *Store) APIToken() (string, error) {
	v, err := s.backend.Get(APITokenKey, "")
	if err != nil {
		return "", &StorageError{Op: "get", Err: err}
	}
	return v, nil
}

// SetAPIToken overwrites the stored token, encrypted. The empty string is a
// valid value. Writes are serialized so the last call wins.
func (s *Store) SetAPIToken(value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.backend.Put(APITokenKey, value, true); err != nil {
		return &StorageError{Op: "set", Err: err}
	}
	return nil
}

// Shared lazily constructs one Store for the whole process. The open
// function runs at most once; its result, success or failure, is kept.
type Shared struct {
	open  func() (*Store, error)
	once  sync.Once
	store *Store
	err   error
}

// NewShared returns a holder that will call open on first use.
func NewShared(open func() (*Store, error)) *Shared {
	return &Shared{open: open}
}

// Store returns the shared instance, constructing it on first call.
// A construction failure is reported as ErrUnavailable.
func (h *Shared) Store() (*Store, error) {
	h.once.Do(func() {
		store, err := h.open()
		switch {
		case err != nil:
			h.err = fmt.Errorf("%w: %w", ErrUnavailable, err)
		case store == nil:
			h.err = ErrUnavailable
		default:
			h.store = store
		}
	})
	return h.store, h.err
}

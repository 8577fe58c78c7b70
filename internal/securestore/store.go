package securestore

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v3"
)

// Common errors.
var (
	// ErrUnavailable is returned by Open when the store cannot be used.
	ErrUnavailable = errors.New("securestore: unavailable")

	// ErrNoSecret means neither a key file nor a passphrase was configured.
	ErrNoSecret = errors.New("securestore: no master secret configured")

	// ErrDecrypt means a record failed authentication.
	ErrDecrypt = errors.New("securestore: decryption failed - wrong key or corrupted data")

	ErrPassphraseTooShort = errors.New("securestore: passphrase too short (minimum 8 characters)")
	ErrClosed             = errors.New("securestore: closed")
	ErrInvalidPath        = errors.New("securestore: invalid node path")
)

// Key prefixes inside the Badger keyspace.
const (
	metaPrefix = "m/"
	nodePrefix = "n/"

	metaSalt     = metaPrefix + "salt"
	metaVerifier = metaPrefix + "verifier"

	verifierInfo = "securestore/verifier"
	nodeInfo     = "securestore/node/"

	gcDiscardRatio = 0.5
)

// Config configures a Store.
type Config struct {
	// Dir is the Badger directory. Ignored when InMemory is set.
	Dir string

	// InMemory keeps everything in memory. Intended for tests.
	InMemory bool

	// KeyFile holds the master key. Takes precedence over Passphrase.
	KeyFile string

	// Passphrase is stretched with Argon2id into the master key.
	Passphrase []byte

	// KDF tunes Argon2id. Zero values select the defaults.
	KDF KDFParams

	// Algorithm is used for new records. Existing records are read
	// whatever algorithm sealed them.
	Algorithm Algorithm

	// GCInterval is the value-log GC period. Zero disables the loop.
	GCInterval time.Duration
}

// Store is an encrypted key-value store.
type Store struct {
	db        *badger.DB
	master    []byte
	algorithm Algorithm
	logger    *slog.Logger

	mu    sync.Mutex
	nodes map[string]*Node

	closed   atomic.Bool
	gcRuns   atomic.Uint64
	lastGC   atomic.Int64
	stopCh   chan struct{}
	doneCh   chan struct{}
	closeErr error
	once     sync.Once
}

// Open opens or creates a store. Every failure wraps ErrUnavailable.
func Open(cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	alg, err := ParseAlgorithm(string(cfg.Algorithm))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if cfg.KeyFile == "" && len(cfg.Passphrase) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, ErrNoSecret)
	}
	if !cfg.InMemory && cfg.Dir == "" {
		return nil, fmt.Errorf("%w: dir is required", ErrUnavailable)
	}

	var master []byte
	if cfg.KeyFile != "" {
		master, err = ReadKeyFile(cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
	} else if len(cfg.Passphrase) < MinPassphraseLength {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, ErrPassphraseTooShort)
	}

	opts := badger.DefaultOptions(cfg.Dir).
		WithSyncWrites(true).
		WithLogger(&badgerLogger{logger: logger}).
		WithNumVersionsToKeep(1)
	if cfg.InMemory {
		opts = opts.WithInMemory(true).WithDir("").WithValueDir("")
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: open db: %w", ErrUnavailable, err)
	}

	s := &Store{
		db:        db,
		algorithm: alg,
		logger:    logger,
		nodes:     make(map[string]*Node),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}

	if master == nil {
		master, err = s.passphraseKey(cfg.Passphrase, cfg.KDF)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
	}
	s.master = master

	if err := s.verify(); err != nil {
		zeroKey(s.master)
		db.Close()
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	if cfg.GCInterval > 0 && !cfg.InMemory {
		go s.gcLoop(cfg.GCInterval)
	} else {
		close(s.doneCh)
	}

	logger.Info("securestore opened",
		"dir", cfg.Dir,
		"in_memory", cfg.InMemory,
		"algorithm", string(alg),
		"key_source", keySource(cfg))

	return s, nil
}

func keySource(cfg Config) string {
	if cfg.KeyFile != "" {
		return "key_file"
	}
	return "passphrase"
}

// passphraseKey loads or creates the salt and derives the master key.
func (s *Store) passphraseKey(passphrase []byte, kdf KDFParams) ([]byte, error) {
	salt, err := s.getRaw([]byte(metaSalt))
	if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("read salt: %w", err)
	}
	if errors.Is(err, badger.ErrKeyNotFound) {
		salt, err = newSalt()
		if err != nil {
			return nil, err
		}
		if err := s.setRaw([]byte(metaSalt), salt); err != nil {
			return nil, fmt.Errorf("write salt: %w", err)
		}
	}
	return deriveFromPassphrase(passphrase, salt, kdf)
}

// verify checks the master key against the stored verifier, creating it on
// first use.
func (s *Store) verify() error {
	key, err := deriveSubkey(s.master, verifierInfo)
	if err != nil {
		return err
	}
	defer zeroKey(key)

	sl, err := newSealer(key, s.algorithm)
	if err != nil {
		return err
	}

	record, err := s.getRaw([]byte(metaVerifier))
	if errors.Is(err, badger.ErrKeyNotFound) {
		sealed, err := sl.seal(verifierPlaintext, []byte(metaVerifier))
		if err != nil {
			return err
		}
		return s.setRaw([]byte(metaVerifier), sealed)
	}
	if err != nil {
		return fmt.Errorf("read verifier: %w", err)
	}

	plain, err := sl.open(record, []byte(metaVerifier))
	if err != nil || string(plain) != string(verifierPlaintext) {
		return ErrDecrypt
	}
	return nil
}

// Node returns the namespace handle for path.
func (s *Store) Node(path string) (*Node, error) {
	if path == "" || containsNUL(path) {
		return nil, ErrInvalidPath
	}
	if s.closed.Load() {
		return nil, ErrClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if n, ok := s.nodes[path]; ok {
		return n, nil
	}

	key, err := deriveSubkey(s.master, nodeInfo+path)
	if err != nil {
		return nil, err
	}
	sl, err := newSealer(key, s.algorithm)
	if err != nil {
		return nil, err
	}

	n := &Node{store: s, path: path, sealer: sl}
	s.nodes[path] = n
	return n, nil
}

func containsNUL(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == 0 {
			return true
		}
	}
	return false
}

func (s *Store) getRaw(key []byte) ([]byte, error) {
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	return value, err
}

func (s *Store) setRaw(key, value []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

// GC runs value-log garbage collection until nothing is left to rewrite.
// Returns the number of rewritten log files.
func (s *Store) GC() (int, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}

	rewrites := 0
	for {
		err := s.db.RunValueLogGC(gcDiscardRatio)
		if err != nil {
			if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrGCInMemoryMode) {
				break
			}
			return rewrites, fmt.Errorf("securestore: gc: %w", err)
		}
		rewrites++
	}

	s.gcRuns.Add(1)
	s.lastGC.Store(time.Now().UnixMilli())
	return rewrites, nil
}

func (s *Store) gcLoop(interval time.Duration) {
	defer close(s.doneCh)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			start := time.Now()
			rewrites, err := s.GC()
			if err != nil {
				s.logger.Error("securestore gc failed", "error", err)
				continue
			}
			s.logger.Debug("securestore gc completed",
				"rewrites", rewrites,
				"elapsed", time.Since(start))
		case <-s.stopCh:
			return
		}
	}
}

// Size returns the LSM and value log sizes in bytes.
func (s *Store) Size() (lsm, vlog int64) {
	if s.closed.Load() {
		return 0, 0
	}
	return s.db.Size()
}

// Close stops the GC loop, wipes the master key and closes Badger.
func (s *Store) Close() error {
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.stopCh)
		<-s.doneCh

		s.mu.Lock()
		for _, n := range s.nodes {
			zeroKey(n.sealer.key)
		}
		s.mu.Unlock()
		zeroKey(s.master)

		if err := s.db.Close(); err != nil {
			s.closeErr = fmt.Errorf("securestore: close db: %w", err)
			return
		}
		s.logger.Info("securestore closed")
	})
	return s.closeErr
}

// badgerLogger adapts slog.Logger to Badger's Logger interface.
// Badger info chatter is demoted to debug.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...), "component", "badger")
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...), "component", "badger")
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...), "component", "badger")
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...), "component", "badger")
}

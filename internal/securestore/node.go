package securestore

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v3"
)

// Node is a namespace inside a Store. All methods are safe for concurrent use.
type Node struct {
	store  *Store
	path   string
	sealer *sealer
}

// Path returns the node path.
func (n *Node) Path() string {
	return n.path
}

func (n *Node) dbKey(key string) []byte {
	return []byte(nodePrefix + n.path + "\x00" + key)
}

func (n *Node) additionalData(key string) []byte {
	return []byte(n.path + "\x00" + key)
}

// Get returns the value stored under key, or def when there is none.
func (n *Node) Get(key, def string) (string, error) {
	if n.store.closed.Load() {
		return "", ErrClosed
	}

	record, err := n.store.getRaw(n.dbKey(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return def, nil
	}
	if err != nil {
		return "", fmt.Errorf("securestore: get %s/%s: %w", n.path, key, err)
	}

	plain, err := n.sealer.open(record, n.additionalData(key))
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

// Put stores value under key, replacing any previous value. With encrypt
// the value is sealed; otherwise it is stored as a plaintext record. Put
// returns after the write is synced to disk.
func (n *Node) Put(key, value string, encrypt bool) error {
	if n.store.closed.Load() {
		return ErrClosed
	}

	var record []byte
	if encrypt {
		sealed, err := n.sealer.seal([]byte(value), n.additionalData(key))
		if err != nil {
			return err
		}
		record = sealed
	} else {
		record = plainRecord([]byte(value))
	}

	if err := n.store.setRaw(n.dbKey(key), record); err != nil {
		return fmt.Errorf("securestore: put %s/%s: %w", n.path, key, err)
	}
	return nil
}

// Remove deletes key. Removing an absent key is not an error.
func (n *Node) Remove(key string) error {
	if n.store.closed.Load() {
		return ErrClosed
	}

	err := n.store.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(n.dbKey(key))
	})
	if err != nil {
		return fmt.Errorf("securestore: remove %s/%s: %w", n.path, key, err)
	}
	return nil
}

// Keys returns the keys stored in the node in lexical order.
func (n *Node) Keys() ([]string, error) {
	if n.store.closed.Load() {
		return nil, ErrClosed
	}

	prefix := []byte(nodePrefix + n.path + "\x00")
	var keys []string

	err := n.store.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, string(it.Item().Key()[len(prefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("securestore: keys %s: %w", n.path, err)
	}
	return keys, nil
}

// Package securestore provides an encrypted, durable key-value store
// organised in namespaces ("nodes").
//
// Storage is a single Badger database opened with synchronous writes, so a
// successful Put has reached disk when it returns. Values are sealed with an
// AEAD cipher (AES-GCM or ChaCha20-Poly1305) under a per-node key derived
// with HKDF from a master key. The master key comes from a key file or from
// a passphrase stretched with Argon2id.
//
// Record layout:
//
//	+--------+----------------+----------------------+
//	| format | nonce          | ciphertext + tag     |
//	| 1 byte | cipher-defined | len(plaintext) + 16  |
//	+--------+----------------+----------------------+
//
// Plaintext records carry formatPlain followed by the raw value. The
// additional data of every sealed record is node path, NUL, key, which binds
// a record to its location.
package securestore

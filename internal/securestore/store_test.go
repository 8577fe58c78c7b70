package securestore

import (
	"bytes"
	"encoding/hex"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

var fastKDF = KDFParams{Time: 1, Memory: 8 * 1024, Threads: 1}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func writeKeyFile(t *testing.T) string {
	t.Helper()
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}
	path := filepath.Join(t.TempDir(), "master.key")
	if err := os.WriteFile(path, []byte(hex.EncodeToString(key)+"\n"), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func openMemory(t *testing.T, alg Algorithm) *Store {
	t.Helper()
	s, err := Open(Config{InMemory: true, KeyFile: writeKeyFile(t), Algorithm: alg}, quietLogger())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func mustNode(t *testing.T, s *Store, path string) *Node {
	t.Helper()
	n, err := s.Node(path)
	if err != nil {
		t.Fatalf("Node(%q) error = %v", path, err)
	}
	return n
}

func TestOpen_Errors(t *testing.T) {
	tests := []struct {
		name  string
		cfg   Config
		inner error
	}{
		{"no secret", Config{InMemory: true}, ErrNoSecret},
		{"short passphrase", Config{InMemory: true, Passphrase: []byte("short")}, ErrPassphraseTooShort},
		{"missing key file", Config{InMemory: true, KeyFile: "/nonexistent/master.key"}, nil},
		{"no dir", Config{Passphrase: []byte("long enough passphrase")}, nil},
		{"unknown algorithm", Config{InMemory: true, Passphrase: []byte("long enough passphrase"), Algorithm: "des"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Open(tt.cfg, quietLogger())
			if err == nil {
				s.Close()
				t.Fatal("Open() should fail")
			}
			if !errors.Is(err, ErrUnavailable) {
				t.Errorf("error = %v, want ErrUnavailable", err)
			}
			if tt.inner != nil && !errors.Is(err, tt.inner) {
				t.Errorf("error = %v, want %v", err, tt.inner)
			}
		})
	}
}

func TestNode_PutGet(t *testing.T) {
	for _, alg := range []Algorithm{AlgorithmAESGCM, AlgorithmChaCha20} {
		t.Run(string(alg), func(t *testing.T) {
			n := mustNode(t, openMemory(t, alg), "io.codiga.rosiels.eclipse.plugin")

			got, err := n.Get("codiga.api.token", "")
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if got != "" {
				t.Errorf("Get() on empty store = %q, want default", got)
			}

			if err := n.Put("codiga.api.token", "abc123", true); err != nil {
				t.Fatalf("Put() error = %v", err)
			}
			if got, _ := n.Get("codiga.api.token", ""); got != "abc123" {
				t.Errorf("Get() = %q, want abc123", got)
			}

			if err := n.Put("codiga.api.token", "", true); err != nil {
				t.Fatalf("Put(empty) error = %v", err)
			}
			if got, _ := n.Get("codiga.api.token", "fallback"); got != "" {
				t.Errorf("Get() after storing empty = %q, want empty string", got)
			}
		})
	}
}

func TestNode_Default(t *testing.T) {
	n := mustNode(t, openMemory(t, ""), "ns")
	got, err := n.Get("missing", "dflt")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != "dflt" {
		t.Errorf("Get() = %q, want dflt", got)
	}
}

func TestNode_RecordFormat(t *testing.T) {
	s := openMemory(t, AlgorithmAESGCM)
	n := mustNode(t, s, "ns")

	if err := n.Put("sealed", "plain-secret-value", true); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := n.Put("open", "visible", false); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	sealed, err := s.getRaw(n.dbKey("sealed"))
	if err != nil {
		t.Fatalf("getRaw() error = %v", err)
	}
	if sealed[0] != formatAESGCM {
		t.Errorf("format byte = 0x%02x, want 0x%02x", sealed[0], formatAESGCM)
	}
	if bytes.Contains(sealed, []byte("plain-secret-value")) {
		t.Error("sealed record contains the plaintext")
	}

	open, err := s.getRaw(n.dbKey("open"))
	if err != nil {
		t.Fatalf("getRaw() error = %v", err)
	}
	if open[0] != formatPlain || string(open[1:]) != "visible" {
		t.Errorf("plain record = %q", open)
	}
	if got, _ := n.Get("open", ""); got != "visible" {
		t.Errorf("Get(open) = %q", got)
	}
}

func TestNode_RecordBoundToLocation(t *testing.T) {
	s := openMemory(t, "")
	n := mustNode(t, s, "ns")

	if err := n.Put("a", "value-a", true); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	record, err := s.getRaw(n.dbKey("a"))
	if err != nil {
		t.Fatalf("getRaw() error = %v", err)
	}
	if err := s.setRaw(n.dbKey("b"), record); err != nil {
		t.Fatalf("setRaw() error = %v", err)
	}

	if _, err := n.Get("b", ""); !errors.Is(err, ErrDecrypt) {
		t.Errorf("Get(swapped) error = %v, want ErrDecrypt", err)
	}
}

func TestNode_Isolation(t *testing.T) {
	s := openMemory(t, "")
	a := mustNode(t, s, "alpha")
	b := mustNode(t, s, "beta")

	if err := a.Put("k", "1", true); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if got, _ := b.Get("k", "none"); got != "none" {
		t.Errorf("beta sees alpha's value: %q", got)
	}

	same := mustNode(t, s, "alpha")
	if same != a {
		t.Error("Node() should return the cached handle")
	}
}

func TestNode_RemoveAndKeys(t *testing.T) {
	n := mustNode(t, openMemory(t, ""), "ns")

	for _, k := range []string{"b", "a", "c"} {
		if err := n.Put(k, "v", true); err != nil {
			t.Fatalf("Put(%q) error = %v", k, err)
		}
	}
	if err := n.Remove("b"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if err := n.Remove("missing"); err != nil {
		t.Errorf("Remove(missing) error = %v", err)
	}

	keys, err := n.Keys()
	if err != nil {
		t.Fatalf("Keys() error = %v", err)
	}
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "c" {
		t.Errorf("Keys() = %v, want [a c]", keys)
	}
}

func TestStore_InvalidPath(t *testing.T) {
	s := openMemory(t, "")
	for _, p := range []string{"", "bad\x00path"} {
		if _, err := s.Node(p); !errors.Is(err, ErrInvalidPath) {
			t.Errorf("Node(%q) error = %v, want ErrInvalidPath", p, err)
		}
	}
}

func TestStore_PassphraseReopen(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{Dir: dir, Passphrase: []byte("correct horse battery"), KDF: fastKDF}

	s, err := Open(cfg, quietLogger())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := mustNode(t, s, "ns").Put("token", "persisted", true); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	s, err = Open(cfg, quietLogger())
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	got, err := mustNode(t, s, "ns").Get("token", "")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != "persisted" {
		t.Errorf("Get() after reopen = %q, want persisted", got)
	}
	s.Close()

	wrong := cfg
	wrong.Passphrase = []byte("incorrect horse battery")
	if _, err := Open(wrong, quietLogger()); !errors.Is(err, ErrDecrypt) || !errors.Is(err, ErrUnavailable) {
		t.Errorf("Open(wrong passphrase) error = %v, want ErrUnavailable wrapping ErrDecrypt", err)
	}
}

func TestStore_AlgorithmSwitch(t *testing.T) {
	dir := t.TempDir()
	keyFile := writeKeyFile(t)

	s, err := Open(Config{Dir: dir, KeyFile: keyFile, Algorithm: AlgorithmAESGCM}, quietLogger())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := mustNode(t, s, "ns").Put("k", "sealed with aes", true); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	s.Close()

	s, err = Open(Config{Dir: dir, KeyFile: keyFile, Algorithm: AlgorithmChaCha20}, quietLogger())
	if err != nil {
		t.Fatalf("Open(chacha) error = %v", err)
	}
	defer s.Close()

	if got, err := mustNode(t, s, "ns").Get("k", ""); err != nil || got != "sealed with aes" {
		t.Errorf("Get() = %q, %v", got, err)
	}
}

func TestStore_Close(t *testing.T) {
	s, err := Open(Config{InMemory: true, KeyFile: writeKeyFile(t)}, quietLogger())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	n := mustNode(t, s, "ns")

	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	if _, err := n.Get("k", ""); !errors.Is(err, ErrClosed) {
		t.Errorf("Get() after Close error = %v, want ErrClosed", err)
	}
	if err := n.Put("k", "v", true); !errors.Is(err, ErrClosed) {
		t.Errorf("Put() after Close error = %v, want ErrClosed", err)
	}
	if _, err := s.Node("other"); !errors.Is(err, ErrClosed) {
		t.Errorf("Node() after Close error = %v, want ErrClosed", err)
	}
}

func TestStore_GC(t *testing.T) {
	s, err := Open(Config{Dir: t.TempDir(), KeyFile: writeKeyFile(t)}, quietLogger())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()

	if _, err := s.GC(); err != nil {
		t.Fatalf("GC() error = %v", err)
	}
	if s.gcRuns.Load() != 1 {
		t.Errorf("gcRuns = %d, want 1", s.gcRuns.Load())
	}
}

func TestStore_RegisterMetrics(t *testing.T) {
	s := openMemory(t, "")
	reg := prometheus.NewRegistry()

	if err := s.RegisterMetrics(reg); err != nil {
		t.Fatalf("RegisterMetrics() error = %v", err)
	}
	if err := s.RegisterMetrics(nil); err != nil {
		t.Errorf("RegisterMetrics(nil) error = %v", err)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"rosiels_securestore_lsm_size_bytes",
		"rosiels_securestore_value_log_size_bytes",
		"rosiels_securestore_gc_runs_total",
	} {
		if !names[want] {
			t.Errorf("metric %s not registered", want)
		}
	}
}

package confloader

import (
	"os"
	"path/filepath"
	"testing"
)

type testConfig struct {
	Launcher struct {
		RuntimeEnv string `koanf:"runtime_env"`
	} `koanf:"launcher"`
	Sync struct {
		Concurrency int `koanf:"concurrency"`
	} `koanf:"sync"`
	Log struct {
		Level string `koanf:"level"`
	} `koanf:"log"`
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rosiels.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestNewLoader_WithOptions(t *testing.T) {
	l := NewLoader(
		WithEnvPrefix("TEST_"),
		WithConfigFile("/path/to/rosiels.yaml"),
	)

	if l.envPrefix != "TEST_" {
		t.Errorf("envPrefix = %q, want %q", l.envPrefix, "TEST_")
	}
	if l.FilePath() != "/path/to/rosiels.yaml" {
		t.Errorf("FilePath() = %q", l.FilePath())
	}
}

func TestLoader_LoadFile(t *testing.T) {
	path := writeFile(t, `
launcher:
  runtime_env: NODE_HOME
sync:
  concurrency: 4
`)

	l := NewLoader()
	if err := l.LoadFile(path); err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if got := l.GetString("launcher.runtime_env"); got != "NODE_HOME" {
		t.Errorf("launcher.runtime_env = %q, want NODE_HOME", got)
	}
}

func TestLoader_LoadFile_NotFound(t *testing.T) {
	l := NewLoader()
	if err := l.LoadFile("/nonexistent/rosiels.yaml"); err == nil {
		t.Error("LoadFile() should fail for a missing file")
	}
}

func TestLoader_LoadFile_Empty(t *testing.T) {
	l := NewLoader()
	if err := l.LoadFile(""); err != nil {
		t.Errorf("LoadFile(\"\") error = %v", err)
	}
}

func TestEnvKey(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"ROSIELS_LAUNCHER__RUNTIME_ENV", "launcher.runtime_env"},
		{"ROSIELS_SECURESTORE__KEY_FILE", "securestore.key_file"},
		{"ROSIELS_LOG__LEVEL", "log.level"},
		{"ROSIELS_PASSPHRASE", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := envKey(DefaultEnvPrefix, tt.name); got != tt.want {
				t.Errorf("envKey(%q) = %q, want %q", tt.name, got, tt.want)
			}
		})
	}
}

func TestLoader_Load_Priority(t *testing.T) {
	path := writeFile(t, `
log:
  level: info
sync:
  concurrency: 2
`)
	t.Setenv("ROSIELS_LOG__LEVEL", "debug")
	t.Setenv("ROSIELS_UNRELATED", "ignored")

	var cfg testConfig
	cfg.Launcher.RuntimeEnv = "NODE_PATH"

	l := NewLoader(WithConfigFile(path))
	if err := l.Load(&cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("env should override file: log.level = %q", cfg.Log.Level)
	}
	if cfg.Sync.Concurrency != 2 {
		t.Errorf("sync.concurrency = %d, want 2", cfg.Sync.Concurrency)
	}
	if cfg.Launcher.RuntimeEnv != "NODE_PATH" {
		t.Errorf("default should survive: launcher.runtime_env = %q", cfg.Launcher.RuntimeEnv)
	}
	for _, k := range l.Keys() {
		if k == "unrelated" {
			t.Error("variable without a section separator should be ignored")
		}
	}
}

func TestLoader_LoadMap(t *testing.T) {
	l := NewLoader()
	if err := l.LoadMap(map[string]any{
		"log": map[string]any{"level": "warn"},
	}); err != nil {
		t.Fatalf("LoadMap() error = %v", err)
	}

	var cfg testConfig
	if err := l.Unmarshal(&cfg); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("log.level = %q, want warn", cfg.Log.Level)
	}
}

func TestMapProvider_ReadBytes(t *testing.T) {
	if _, err := (mapProvider{}).ReadBytes(); err != ErrReadBytesNotSupported {
		t.Errorf("ReadBytes() error = %v, want ErrReadBytesNotSupported", err)
	}
}

package config

import "time"

// HostConfig is the root configuration for rosiels-host.
type HostConfig struct {
	Launcher    LauncherSection    `koanf:"launcher" json:"launcher" yaml:"launcher"`
	Server      ServerSection      `koanf:"server" json:"server" yaml:"server"`
	SecureStore SecureStoreSection `koanf:"securestore" json:"securestore" yaml:"securestore"`
	Sync        SyncSection        `koanf:"sync" json:"sync" yaml:"sync"`
	Local       LocalSection       `koanf:"local" json:"local" yaml:"local"`
	Metrics     MetricsSection     `koanf:"metrics" json:"metrics" yaml:"metrics"`
	Log         LogSection         `koanf:"log" json:"log" yaml:"log"`
}

// LauncherSection configures how the worker command is built.
type LauncherSection struct {
	// RuntimeEnv names the environment variable holding the runtime location.
	RuntimeEnv string `koanf:"runtime_env" json:"runtime_env" yaml:"runtime_env"`

	// RuntimeName is the executable name appended to the runtime location.
	RuntimeName string `koanf:"runtime_name" json:"runtime_name" yaml:"runtime_name"`

	// EntryResource is the worker entry script, relative to ResourceRoot.
	EntryResource string `koanf:"entry_resource" json:"entry_resource" yaml:"entry_resource"`

	// ResourceRoot is the installation directory. Empty means the
	// directory of the host executable.
	ResourceRoot string `koanf:"resource_root" json:"resource_root" yaml:"resource_root"`

	StopTimeout time.Duration `koanf:"stop_timeout" json:"stop_timeout" yaml:"stop_timeout"`
}

// ServerSection describes the language server definition.
type ServerSection struct {
	DefinitionID string `koanf:"definition_id" json:"definition_id" yaml:"definition_id"`
	Name         string `koanf:"name" json:"name" yaml:"name"`
	ClientName   string `koanf:"client_name" json:"client_name" yaml:"client_name"`
}

// SecureStoreSection configures the encrypted credential backend.
type SecureStoreSection struct {
	Dir       string `koanf:"dir" json:"dir" yaml:"dir"`
	Namespace string `koanf:"namespace" json:"namespace" yaml:"namespace"`

	// PassphraseEnv names the environment variable holding the passphrase.
	// The passphrase itself is never read from the config file.
	PassphraseEnv string `koanf:"passphrase_env" json:"passphrase_env" yaml:"passphrase_env"`

	// KeyFile holds a 32-byte master key (raw or hex). Takes precedence
	// over the passphrase.
	KeyFile string `koanf:"key_file" json:"key_file" yaml:"key_file"`

	Algorithm  string        `koanf:"algorithm" json:"algorithm" yaml:"algorithm"`
	GCInterval time.Duration `koanf:"gc_interval" json:"gc_interval" yaml:"gc_interval"`
}

// SyncSection configures the configuration synchronizer.
type SyncSection struct {
	// Concurrency bounds parallel notifications. 1 is strictly sequential.
	Concurrency int `koanf:"concurrency" json:"concurrency" yaml:"concurrency"`
}

// LocalSection configures the local management socket.
type LocalSection struct {
	Path      string  `koanf:"path" json:"path" yaml:"path"`
	RateLimit float64 `koanf:"rate_limit" json:"rate_limit" yaml:"rate_limit"`
	Burst     int     `koanf:"burst" json:"burst" yaml:"burst"`
}

// MetricsSection configures the Prometheus endpoint.
type MetricsSection struct {
	// Addr is the listen address. Empty disables the endpoint.
	Addr string `koanf:"addr" json:"addr" yaml:"addr"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level" json:"level" yaml:"level"`
	Format string `koanf:"format" json:"format" yaml:"format"`
}

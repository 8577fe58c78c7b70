package config

import (
	"os"
	"path/filepath"
	"time"
)

// Default configuration values.
const (
	DefaultRuntimeEnv    = "NODE_PATH"
	DefaultRuntimeName   = "node"
	DefaultEntryResource = "/language-server/out/server.js"
	DefaultStopTimeout   = 5 * time.Second

	DefaultDefinitionID = "rosie.language.server"
	DefaultServerName   = "Rosie Language Server"
	DefaultClientName   = "rosiels"

	DefaultNamespace     = "io.codiga.rosiels.eclipse.plugin"
	DefaultPassphraseEnv = "ROSIELS_SECURE_PASSPHRASE"
	DefaultAlgorithm     = "aes-gcm"
	DefaultGCInterval    = 10 * time.Minute

	DefaultConcurrency = 1

	DefaultRateLimit = 20
	DefaultBurst     = 40

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Supported securestore algorithms.
const (
	AlgorithmAESGCM   = "aes-gcm"
	AlgorithmChaCha20 = "chacha20-poly1305"
)

// StateDir returns the per-user directory holding host state.
func StateDir() string {
	if dir, err := os.UserConfigDir(); err == nil && dir != "" {
		return filepath.Join(dir, "rosiels")
	}
	return ".rosiels"
}

// DefaultSocketPath returns the default local socket path.
func DefaultSocketPath() string {
	return filepath.Join(StateDir(), "rosiels-host.sock")
}

// Default returns the default host configuration.
func Default() *HostConfig {
	state := StateDir()
	return &HostConfig{
		Launcher: LauncherSection{
			RuntimeEnv:    DefaultRuntimeEnv,
			RuntimeName:   DefaultRuntimeName,
			EntryResource: DefaultEntryResource,
			StopTimeout:   DefaultStopTimeout,
		},
		Server: ServerSection{
			DefinitionID: DefaultDefinitionID,
			Name:         DefaultServerName,
			ClientName:   DefaultClientName,
		},
		SecureStore: SecureStoreSection{
			Dir:           filepath.Join(state, "securestore"),
			Namespace:     DefaultNamespace,
			PassphraseEnv: DefaultPassphraseEnv,
			Algorithm:     DefaultAlgorithm,
			GCInterval:    DefaultGCInterval,
		},
		Sync: SyncSection{
			Concurrency: DefaultConcurrency,
		},
		Local: LocalSection{
			Path:      DefaultSocketPath(),
			RateLimit: DefaultRateLimit,
			Burst:     DefaultBurst,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

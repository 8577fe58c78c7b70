package config

import (
	"errors"
	"fmt"
	"net"
	"os"
)

// Verify validates the configuration.
func Verify(cfg *HostConfig) error {
	if err := verifyLauncher(&cfg.Launcher); err != nil {
		return err
	}
	if cfg.Server.DefinitionID == "" {
		return errors.New("server.definition_id is required")
	}
	if err := verifySecureStore(&cfg.SecureStore); err != nil {
		return err
	}
	if cfg.Sync.Concurrency < 1 {
		return errors.New("sync.concurrency must be at least 1")
	}
	if err := verifyLocal(&cfg.Local); err != nil {
		return err
	}
	if cfg.Metrics.Addr != "" {
		if _, _, err := net.SplitHostPort(cfg.Metrics.Addr); err != nil {
			return fmt.Errorf("metrics.addr: %w", err)
		}
	}
	return nil
}

func verifyLauncher(cfg *LauncherSection) error {
	if cfg.RuntimeEnv == "" {
		return errors.New("launcher.runtime_env is required")
	}
	if cfg.RuntimeName == "" {
		return errors.New("launcher.runtime_name is required")
	}
	if cfg.EntryResource == "" {
		return errors.New("launcher.entry_resource is required")
	}
	if cfg.StopTimeout <= 0 {
		return errors.New("launcher.stop_timeout must be positive")
	}
	return nil
}

func verifySecureStore(cfg *SecureStoreSection) error {
	if cfg.Dir == "" {
		return errors.New("securestore.dir is required")
	}
	if cfg.Namespace == "" {
		return errors.New("securestore.namespace is required")
	}
	switch cfg.Algorithm {
	case AlgorithmAESGCM, AlgorithmChaCha20:
	default:
		return fmt.Errorf("securestore.algorithm: unknown algorithm %q", cfg.Algorithm)
	}
	if err := os.MkdirAll(cfg.Dir, 0700); err != nil {
		return errors.New("cannot create securestore directory: " + err.Error())
	}
	return nil
}

func verifyLocal(cfg *LocalSection) error {
	if cfg.Path == "" {
		return errors.New("local.path is required")
	}
	if cfg.RateLimit < 0 {
		return errors.New("local.rate_limit must not be negative")
	}
	if cfg.RateLimit > 0 && cfg.Burst < 1 {
		return errors.New("local.burst must be at least 1 when rate_limit is set")
	}
	return nil
}

// Package main provides the entry point for rosiels-host.
//
// rosiels-host owns the encrypted credential store, the open projects and
// their Rosie language server processes. It pushes the Codiga API token to
// every running server whenever the token changes.
//
// Usage:
//
//	rosiels-host [-config host.yaml] [-version]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/yndnr/rosiels-go/internal/configsync"
	"github.com/yndnr/rosiels-go/internal/credential"
	"github.com/yndnr/rosiels-go/internal/host/config"
	"github.com/yndnr/rosiels-go/internal/infra/buildinfo"
	"github.com/yndnr/rosiels-go/internal/infra/confloader"
	"github.com/yndnr/rosiels-go/internal/infra/shutdown"
	"github.com/yndnr/rosiels-go/internal/launcher"
	"github.com/yndnr/rosiels-go/internal/securestore"
	"github.com/yndnr/rosiels-go/internal/server/httpserver"
	"github.com/yndnr/rosiels-go/internal/server/localserver"
	"github.com/yndnr/rosiels-go/internal/telemetry/logger"
	"github.com/yndnr/rosiels-go/internal/telemetry/metric"
	"github.com/yndnr/rosiels-go/internal/workspace"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("rosiels-host %s\n", buildinfo.String())
		return nil
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stderr,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger.SetDefault(log)
	log.Info("starting rosiels-host", append(buildinfo.LogAttrs(), "config", *configFile)...)

	metrics := metric.NewRegistry()

	// Credential store. Without it there is nothing to synchronize.
	var secure *securestore.Store
	shared := credential.NewShared(func() (*credential.Store, error) {
		s, node, err := openSecureStore(cfg, log)
		if err != nil {
			return nil, err
		}
		secure = s
		return credential.NewStore(node)
	})
	creds, err := shared.Store()
	if err != nil {
		return fmt.Errorf("credential store: %w", err)
	}
	if token, err := creds.APIToken(); err == nil && token != "" {
		logger.RegisterSecret(token)
	}
	if err := secure.RegisterMetrics(metrics.Registerer()); err != nil {
		return fmt.Errorf("register store metrics: %w", err)
	}

	// Launcher. A missing runtime disables the language server but the
	// host keeps running so the token can still be managed.
	diag := launcher.DiagnosticsFunc(func(msg string) {
		log.Warn(msg, "diagnostic", true)
	})
	launch, err := cfg.Launcher.NewLauncher(diag, launcher.WithLogger(log.Slog()))
	if err != nil {
		return fmt.Errorf("init launcher: %w", err)
	}

	registry := workspace.NewRegistry(workspace.Options{
		ClientName:    cfg.Server.ClientName,
		ClientVersion: buildinfo.Get().Version,
		Settings:      creds,
		Logger:        log,
		Metrics:       metrics,
	})
	if launch.Enabled() {
		err := registry.Register(workspace.Definition{
			ID:   cfg.Server.DefinitionID,
			Name: cfg.Server.Name,
			Spawner: workspace.SpawnerFunc(func(ctx context.Context) (workspace.Worker, error) {
				p, err := launch.Start(ctx)
				if err != nil {
					return nil, err
				}
				return p, nil
			}),
		})
		if err != nil {
			return fmt.Errorf("register language server: %w", err)
		}
	}
	if err := metrics.RegisterHost(registry.Stats); err != nil {
		return fmt.Errorf("register host metrics: %w", err)
	}

	syncer, err := configsync.New(creds, registry.SyncHost(),
		configsync.WithDefinitionID(cfg.Server.DefinitionID),
		configsync.WithConcurrency(cfg.Sync.Concurrency),
		configsync.WithLogger(log),
		configsync.WithMetrics(metrics))
	if err != nil {
		return fmt.Errorf("init synchronizer: %w", err)
	}

	handler := localserver.NewHandler(localserver.Deps{
		Tokens:   creds,
		Sync:     syncer,
		Projects: registry,
		Launcher: launch,
		OnOpen: func(ctx context.Context, p workspace.Project) error {
			if !launch.Enabled() {
				return fmt.Errorf("language server disabled: %w", launch.Err())
			}
			_, err := registry.Ensure(ctx, p.ID, cfg.Server.DefinitionID)
			return err
		},
		Logger: log,
	})
	local := localserver.New(cfg.Local.Path, handler, localserver.Options{
		RateLimit: cfg.Local.RateLimit,
		Burst:     cfg.Local.Burst,
		Logger:    log,
	})
	if err := local.Listen(); err != nil {
		return err
	}

	var metricsServer *httpserver.Server
	if cfg.Metrics.Addr != "" {
		metricsServer = httpserver.New(cfg.Metrics.Addr, httpserver.NewRouter(httpserver.RouterConfig{
			Metrics: metrics.Handler(),
			Health: func() error {
				_, err := creds.APIToken()
				return err
			},
			Logger: log,
		}))
		if err := metricsServer.Listen(); err != nil {
			local.Shutdown(context.Background())
			return fmt.Errorf("metrics listener: %w", err)
		}
	}

	// A failing server stops the host through the trigger context.
	trigger, stop := context.WithCancel(context.Background())
	defer stop()

	go func() {
		if err := local.Serve(); err != nil {
			log.Error("local server error", "error", err)
			stop()
		}
	}()
	if metricsServer != nil {
		go func() {
			log.Info("metrics server listening", "addr", metricsServer.Addr())
			if err := metricsServer.Serve(); err != nil {
				log.Error("metrics server error", "error", err)
				stop()
			}
		}()
	}

	watcher := watchLogLevel(*configFile, log)

	sh := shutdown.NewHandler(shutdownTimeout)
	// Hooks run in reverse order: servers first, the store last.
	sh.OnShutdown("securestore", func(ctx context.Context) error {
		return secure.Close()
	})
	sh.OnShutdown("projects", registry.CloseAll)
	sh.OnShutdown("local server", local.Shutdown)
	if metricsServer != nil {
		sh.OnShutdown("metrics server", metricsServer.Shutdown)
	}
	if watcher != nil {
		sh.OnShutdown("config watcher", func(ctx context.Context) error {
			return watcher.Stop()
		})
	}

	log.Info("host started",
		"socket", local.Path(),
		"language_server", launch.Enabled())
	if err := sh.Wait(trigger); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}

	log.Info("host stopped gracefully")
	return nil
}

// loadConfig loads configuration from file and environment.
func loadConfig(configFile string) (*config.HostConfig, error) {
	cfg := config.Default()

	opts := []confloader.Option{}
	if configFile != "" {
		opts = append(opts, confloader.WithConfigFile(configFile))
	}
	if err := confloader.NewLoader(opts...).Load(cfg); err != nil {
		return nil, err
	}

	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// openSecureStore opens the Badger-backed store and returns the node
// holding the credential namespace.
func openSecureStore(cfg *config.HostConfig, log logger.Logger) (*securestore.Store, *securestore.Node, error) {
	sc := cfg.SecureStore
	alg, err := securestore.ParseAlgorithm(sc.Algorithm)
	if err != nil {
		return nil, nil, err
	}

	storeCfg := securestore.Config{
		Dir:        sc.Dir,
		KeyFile:    sc.KeyFile,
		Algorithm:  alg,
		GCInterval: sc.GCInterval,
	}
	if sc.KeyFile == "" {
		passphrase := os.Getenv(sc.PassphraseEnv)
		if passphrase == "" {
			return nil, nil, fmt.Errorf("no key file configured and %s is not set", sc.PassphraseEnv)
		}
		logger.RegisterSecret(passphrase)
		storeCfg.Passphrase = []byte(passphrase)
	}

	store, err := securestore.Open(storeCfg, log.Slog())
	if err != nil {
		return nil, nil, err
	}
	node, err := store.Node(sc.Namespace)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return store, node, nil
}

// watchLogLevel re-applies log.level whenever the config file changes.
func watchLogLevel(configFile string, log logger.Logger) *confloader.Watcher {
	if configFile == "" {
		return nil
	}

	w, err := confloader.NewWatcher(confloader.WithWatcherLogger(log.Slog()))
	if err != nil {
		log.Warn("config watch disabled", "error", err)
		return nil
	}
	if err := w.Watch(configFile); err != nil {
		w.Stop()
		log.Warn("config watch disabled", "error", err)
		return nil
	}
	w.OnChange(func(path string) {
		cfg, err := loadConfig(path)
		if err != nil {
			log.Warn("ignoring invalid config change", "path", path, "error", err)
			return
		}
		if cfg.Log.Level != logger.GetLevel() {
			logger.SetLevel(cfg.Log.Level)
			log.Info("log level changed", "level", cfg.Log.Level)
		}
	})
	w.StartAsync()
	return w
}

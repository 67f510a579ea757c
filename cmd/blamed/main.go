package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/4thel00z/blamed/internal"
	"github.com/charmbracelet/fang"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// version is set via ldflags at build time
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := newApp()
	defer a.close()

	rootCmd := NewRootCmd(version, a)
	if err := fang.Execute(ctx, rootCmd); err != nil {
		stop()
		a.close()
		os.Exit(1)
	}
}

// app holds everything built from the configuration. Fields are filled by
// setup before a command that needs the engine runs.
type app struct {
	cfg      *internal.Config
	log      *logrus.Logger
	registry *prometheus.Registry
	metrics  *internal.Metrics

	store   internal.BlameStore
	syncer  *internal.Synchronizer
	mirrors *internal.MirrorStore

	blameUC   *internal.CalculateBlameLinesUseCase
	mirrorSvc *internal.MirrorService
	cacheSvc  *internal.CacheService
}

func newApp() *app {
	return &app{}
}

// loadConfig resolves the config file from --config or the scope lookup and
// applies flag overrides.
func loadConfig(cmd *cobra.Command) (*internal.Config, string, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = internal.NewScopeResolver().Resolve("").ConfigPath()
	}

	cfg, err := internal.LoadConfig(path)
	if err != nil {
		return nil, "", err
	}

	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Log.Level = level
	}
	return cfg, path, nil
}

func (a *app) setup(cmd *cobra.Command) error {
	if a.blameUC != nil {
		return nil
	}

	cfg, path, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := cfg.NewLogger()
	if err != nil {
		return err
	}
	log.SetOutput(cmd.ErrOrStderr())

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := internal.NewMetrics(registry)

	var vcs internal.VCS
	switch cfg.VCSBackend {
	case internal.BackendCLI:
		vcs = internal.NewGitCLI(cfg.GitBinary, cfg.GitHubToken)
	default:
		vcs = internal.NewGoGitVCS(cfg.GitBinary, cfg.GitHubToken)
	}

	store, err := internal.OpenBlameStore(cmd.Context(), cfg, log)
	if err != nil {
		return fmt.Errorf("open blame store: %w", err)
	}

	excludeFile := cfg.ExcludeFile
	if excludeFile == "" {
		excludeFile = internal.Scope{Dir: filepath.Dir(path)}.IgnorePath()
	}
	filter, err := internal.LoadPathFilter(excludeFile, cfg.ExcludePaths)
	if err != nil {
		store.Close()
		return err
	}

	disk := internal.NewDiskMonitor(cfg.MirrorsDir, cfg.DiskWarnPercent, log, metrics)
	mirrors := internal.NewMirrorStore(cfg.MirrorsDir, cfg.RemoteBaseURL, vcs, log,
		internal.WithDiskMonitor(disk),
		internal.WithMirrorMetrics(metrics),
	)

	syncer, err := internal.NewSynchronizer(vcs, log, metrics, cfg.KnownCommitsSize)
	if err != nil {
		store.Close()
		return err
	}

	locks := internal.NewKeyedLock()

	a.cfg = cfg
	a.log = log
	a.registry = registry
	a.metrics = metrics
	a.store = store
	a.syncer = syncer
	a.mirrors = mirrors
	a.blameUC = internal.NewCalculateBlameLinesUseCase(
		store, mirrors, syncer, internal.NewBlamer(vcs, log), locks, filter, log, metrics,
	)
	a.mirrorSvc = internal.NewMirrorService(mirrors, syncer, locks)
	a.cacheSvc = internal.NewCacheService(store)

	log.WithFields(logrus.Fields{
		"config":      path,
		"mirrors_dir": cfg.MirrorsDir,
		"vcs":         cfg.VCSBackend,
		"cache":       cfg.Cache.Backend,
	}).Debug("engine ready")

	return nil
}

func (a *app) close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil && a.log != nil {
			a.log.WithError(err).Warn("close blame store")
		}
		a.store = nil
	}
}

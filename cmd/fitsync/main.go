// Command fitsync is the sync engine CLI: it configures the shared GitHub
// repository, runs sync cycles, manages workout logs, and can serve the
// local status API as a long-running daemon.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Jollyhrothgar/github-fitness-sub000/internal/config"
	"github.com/Jollyhrothgar/github-fitness-sub000/internal/logging"
	"github.com/Jollyhrothgar/github-fitness-sub000/internal/remote"
	"github.com/Jollyhrothgar/github-fitness-sub000/internal/store/sqlite"
	"github.com/Jollyhrothgar/github-fitness-sub000/internal/syncer"
)

var (
	version   string
	buildDate string
)

// app bundles everything a command needs once the process is bootstrapped.
type app struct {
	cfg          config.Config
	logger       *zap.Logger
	store        *sqlite.Store
	orchestrator *syncer.Orchestrator
}

func (a *app) close() {
	if a.store != nil {
		a.store.Close()
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

// bootstrap loads config, opens the local store, and restores the
// orchestrator from persisted state.
func bootstrap(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}
	st, err := sqlite.Open(cfg.Storage.Path)
	if err != nil {
		logger.Sync()
		return nil, err
	}

	factory := func(owner, repo, token string) remote.Client {
		return remote.NewGitHubClient(owner, repo, cfg.Remote.Branch, token, logger)
	}
	orchestrator, err := syncer.New(ctx, st, factory, logger)
	if err != nil {
		st.Close()
		logger.Sync()
		return nil, err
	}
	return &app{cfg: cfg, logger: logger, store: st, orchestrator: orchestrator}, nil
}

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "fitsync",
		Short:         "Multi-device workout log synchronization over a GitHub repository",
		Version:       fmt.Sprintf("%s (built %s)", orDefault(version, "dev"), orDefault(buildDate, "unknown")),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", ".", "directory containing config.yaml")

	rootCmd.AddCommand(
		newSyncCmd(&configPath),
		newStatusCmd(&configPath),
		newConfigureCmd(&configPath),
		newDisconnectCmd(&configPath),
		newServeCmd(&configPath),
		newLogCmd(&configPath),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Jollyhrothgar/github-fitness-sub000/internal/api"
	"github.com/Jollyhrothgar/github-fitness-sub000/internal/domain"
)

func newSyncCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run one full sync cycle",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.orchestrator.Sync(cmd.Context()); err != nil {
				return err
			}
			state := a.orchestrator.State()
			switch state.Status {
			case domain.StatusNotConfigured:
				fmt.Println("Sync is not configured. Run: fitsync configure")
			case domain.StatusOffline:
				fmt.Println("Offline; nothing synced.")
			default:
				fmt.Println("Sync complete.")
			}
			return nil
		},
	}
}

func newStatusCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show sync status",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.close()

			state := a.orchestrator.State()
			fmt.Printf("Status:   %s\n", state.Status)
			fmt.Printf("Device:   %s\n", a.orchestrator.DeviceID())
			fmt.Printf("Pending:  %d\n", state.PendingCount)
			if state.LastSyncedAt != nil {
				fmt.Printf("Last sync: %s\n", state.LastSyncedAt.Local().Format(time.RFC1123))
			} else {
				fmt.Println("Last sync: never")
			}
			if state.LastError != "" {
				fmt.Printf("Last error: %s\n", state.LastError)
			}
			return nil
		},
	}
}

func newConfigureCmd(configPath *string) *cobra.Command {
	var owner, repo, token string
	cmd := &cobra.Command{
		Use:   "configure",
		Short: "Connect to the shared GitHub repository and run a first sync",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.close()

			// Flags win; config.yaml / environment fill the gaps.
			if owner == "" {
				owner = a.cfg.Remote.Owner
			}
			if repo == "" {
				repo = a.cfg.Remote.Repo
			}
			if token == "" {
				token = a.cfg.Remote.Token
			}
			if owner == "" || repo == "" || token == "" {
				return fmt.Errorf("owner, repo and token are all required (flags, config.yaml, or FITSYNC_REMOTE_* env vars)")
			}

			if err := a.orchestrator.Configure(cmd.Context(), owner, repo, token); err != nil {
				return err
			}
			state := a.orchestrator.State()
			fmt.Printf("Connected to %s/%s.\n", owner, repo)
			if state.Status == domain.StatusError {
				fmt.Printf("First sync failed: %s\n", state.LastError)
			} else {
				fmt.Println("First sync complete.")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "repository owner")
	cmd.Flags().StringVar(&repo, "repo", "", "repository name")
	cmd.Flags().StringVar(&token, "token", "", "personal access token with repo scope")
	return cmd
}

func newDisconnectCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "disconnect",
		Short: "Forget the remote credential; local data and queued changes are kept",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.orchestrator.Disconnect(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("Disconnected.")
			return nil
		},
	}
}

func newServeCmd(configPath *string) *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the sync daemon with a periodic cycle and the local status API",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			unsubscribe := a.orchestrator.Subscribe(func(s domain.SyncState) {
				a.logger.Info("sync state",
					zap.String("status", string(s.Status)),
					zap.Int("pending", s.PendingCount))
			})
			defer unsubscribe()

			gin.SetMode(gin.ReleaseMode)
			router := gin.New()
			router.Use(gin.Recovery())
			api.SetupRoutes(router, api.NewStatusHandler(a.orchestrator, a.logger))

			server := &http.Server{Addr: a.cfg.Server.Address, Handler: router}
			go func() {
				a.logger.Info("status API listening", zap.String("address", a.cfg.Server.Address))
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					a.logger.Error("status API stopped", zap.Error(err))
				}
			}()

			// First cycle right away, then on the ticker.
			_ = a.orchestrator.Sync(ctx)
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					_ = a.orchestrator.Sync(ctx)
				case <-ctx.Done():
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					return server.Shutdown(shutdownCtx)
				}
			}
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 15*time.Minute, "time between automatic sync cycles")
	return cmd
}

func newLogCmd(configPath *string) *cobra.Command {
	logCmd := &cobra.Command{
		Use:   "log",
		Short: "Inspect and manage workout logs",
	}

	logCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List workout logs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.close()

			logs, err := a.store.Logs().List(cmd.Context())
			if err != nil {
				return err
			}
			if len(logs) == 0 {
				fmt.Println("No workout logs.")
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SESSION\tSTARTED\tSTATE\tDEVICE\tEXERCISES")
			for _, l := range logs {
				state := "in progress"
				if l.Completed() {
					state = "completed"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n",
					l.SessionID, l.StartedAt.Local().Format("2006-01-02 15:04"), state, l.DeviceID, len(l.Exercises))
			}
			return w.Flush()
		},
	})

	logCmd.AddCommand(&cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete a workout log; the deletion propagates to every device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.orchestrator.DeleteLog(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("Deleted %s.\n", args[0])
			return nil
		},
	})

	return logCmd
}

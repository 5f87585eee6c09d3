package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/alem-hub/student-tracker/internal/infrastructure/scheduler"
	"github.com/alem-hub/student-tracker/internal/infrastructure/scheduler/jobs"
	httpapi "github.com/alem-hub/student-tracker/internal/interface/http"
	"github.com/alem-hub/student-tracker/internal/interface/http/handlers"
	"github.com/alem-hub/student-tracker/pkg/logger"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	var (
		host string
		port int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON API",
		Long: `Serve exposes every tracker operation over HTTP under /api/v1 and reports
store (and Redis, when enabled) reachability on /health. It stops gracefully
on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := bootstrap(cmd.Context(), opts, bootstrapOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			cfg := httpapi.DefaultConfig()
			cfg.Host = a.cfg.HTTP.Host
			cfg.Port = a.cfg.HTTP.Port
			cfg.ReadTimeout = a.cfg.HTTP.ReadTimeout
			cfg.WriteTimeout = a.cfg.HTTP.WriteTimeout
			cfg.IdleTimeout = a.cfg.HTTP.IdleTimeout
			if cmd.Flags().Changed("host") {
				cfg.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}

			return serve(cmd.Context(), a, cfg)
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "Listen host (overrides HTTP_HOST)")
	cmd.Flags().IntVar(&port, "port", 0, "Listen port (overrides HTTP_PORT)")

	return cmd
}

func serve(ctx context.Context, a *app, cfg httpapi.Config) error {
	health := handlers.NewCompositeHealthChecker(a.cfg.App.Version)
	health.SetTimeout(5 * time.Second)
	health.AddCheck("store", handlers.NewPingCheck(a.tracker))
	if a.redis != nil {
		health.AddCheck("redis", func(ctx context.Context) error {
			return a.redis.Ping(ctx).Err()
		})
	}

	server := httpapi.NewServer(cfg, httpapi.Dependencies{
		Tracker:       a.tracker,
		HealthChecker: health,
		Logger:        a.log,
		Version:       a.cfg.App.Version,
	})

	sched, err := newBackupScheduler(a)
	if err != nil {
		return err
	}
	if sched != nil {
		sched.Start()
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), a.cfg.App.ShutdownTimeout)
			defer cancel()
			if err := sched.Stop(stopCtx); err != nil {
				a.log.Warn("scheduler did not stop cleanly", logger.Err(err))
			}
		}()
	}

	errCh := server.StartAsync()
	a.log.Info("tracker API started", logger.String("address", cfg.Address()))

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.log.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.App.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	a.log.Info("tracker API stopped")
	return nil
}

// newBackupScheduler returns nil when EXPORT_SCHEDULE is empty.
func newBackupScheduler(a *app) (*scheduler.Scheduler, error) {
	if a.cfg.Export.Schedule == "" {
		return nil, nil
	}

	sched := scheduler.New(scheduler.Config{
		Logger:     a.log,
		JobTimeout: time.Minute,
	})
	job := jobs.NewBackupJob(a.tracker, a.cfg.Export.Path, a.log)
	if err := sched.Register(job, a.cfg.Export.Schedule); err != nil {
		return nil, err
	}
	return sched, nil
}

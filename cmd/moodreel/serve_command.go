package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"moodreel/internal/api"
	"moodreel/internal/logging"
	"moodreel/internal/preflight"
	"moodreel/internal/staging"
)

const staleSweepInterval = time.Hour

func newServeCommand(ctx *commandContext) *cobra.Command {
	var bind string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP upload server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("bind") {
				cfg.Paths.APIBind = bind
			}

			logger, err := ctx.logger("stdout")
			if err != nil {
				return err
			}
			area := staging.NewArea(cfg.Paths.StagingDir, cfg.MaxUploadBytes(), cfg.Server.AllowedExtensions)
			rt, err := ctx.buildRuntime(logger, area)
			if err != nil {
				return err
			}
			defer rt.Close()

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			serverLogger := logging.NewComponentLogger(logger, "serve")
			for _, failed := range preflight.Failed(preflight.RunAll(runCtx, cfg, rt.backend)) {
				logging.WarnWithContext(serverLogger, "preflight check failed", "preflight_failed",
					logging.String("check", failed.Name),
					logging.String("detail", failed.Detail),
					logging.String(logging.FieldImpact, "analyses may fail until resolved"),
				)
			}

			go sweepStaleUploads(runCtx, cfg.Paths.StagingDir, cfg.StaleUploadAge(), serverLogger)

			health := func(hctx context.Context) api.HealthResponse {
				checks := preflight.RunAll(hctx, cfg, rt.backend)
				status := "ok"
				if len(preflight.Failed(checks)) > 0 {
					status = "degraded"
				}
				return api.HealthResponse{
					Status:       status,
					Classifier:   preflight.ClassifierSummary(cfg),
					Checks:       api.FromChecks(checks),
					Dependencies: api.FromDependencies(preflight.CheckSystemDeps(cfg)),
				}
			}

			server := api.NewServer(api.ServerOptions{
				Bind:           cfg.Paths.APIBind,
				MaxUploadBytes: cfg.MaxUploadBytes(),
			}, rt.service, health, logger)
			if err := server.Start(runCtx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Listening on http://%s\n", server.Addr())

			<-runCtx.Done()
			server.Stop()
			serverLogger.Info("server stopped")
			return nil
		},
	}

	cmd.Flags().StringVar(&bind, "bind", "", "Override paths.api_bind")
	return cmd
}

// sweepStaleUploads removes abandoned upload directories now and then hourly
// until ctx ends.
func sweepStaleUploads(ctx context.Context, dir string, maxAge time.Duration, logger *slog.Logger) {
	if maxAge <= 0 {
		return
	}
	ticker := time.NewTicker(staleSweepInterval)
	defer ticker.Stop()
	for {
		staging.Sweep(ctx, dir, maxAge, logger)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

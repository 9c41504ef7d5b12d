package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/khanhnv2901/seca-suite/internal/api"
	"github.com/khanhnv2901/seca-suite/internal/shared/constants"
)

// annotationLogLevel overrides the default log level of a command.
const annotationLogLevel = "default-log-level"

const pruneInterval = 24 * time.Hour

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the local analysis gateway and the scheduler",
	Long: `Serves the analysis endpoint contract on POST /api.php, forwarding to the
configured endpoint and answering locally when it is unavailable, plus the
/api/v1 jobs, history and schedules API. Due schedules run in the background
and history older than the retention period is pruned daily.`,
	Annotations: map[string]string{annotationLogLevel: defaultServerLogLevel},
	Args:        cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		appCtx := getAppContext(cmd)
		cfg := appCtx.Config
		gw := cfg.Gateway
		applyStringFlag(cmd.Flags(), "addr", &gw.Addr)
		applyStringFlag(cmd.Flags(), "auth-token", &gw.AuthToken)
		if cmd.Flags().Changed("cors-origins") {
			gw.CORSOrigins, _ = cmd.Flags().GetStringSlice("cors-origins")
		}
		if cmd.Flags().Changed("rate-limit") {
			gw.RateLimit, _ = cmd.Flags().GetInt("rate-limit")
		}
		if cmd.Flags().Changed("rate-burst") {
			gw.RateBurst, _ = cmd.Flags().GetInt("rate-burst")
		}
		noScheduler, _ := cmd.Flags().GetBool("no-scheduler")

		services, err := appCtx.Services()
		if err != nil {
			return err
		}
		logger := appCtx.Logger

		uploads := filepath.Join(cfg.DataDir, "uploads")
		if err := os.MkdirAll(uploads, constants.DefaultDirPerm); err != nil {
			return fmt.Errorf("failed to create upload directory: %w", err)
		}

		jobs := api.NewJobManager(api.ToolJobs(services.Tools), gw.JobTimeout, logger.Named("jobs"))
		defer jobs.Close()

		server := api.NewServer(api.Config{
			Tools:          services.Tools,
			History:        services.History,
			Schedules:      services.Schedules,
			Health:         services,
			Jobs:           jobs,
			AuthToken:      gw.AuthToken,
			Logger:         logger.Named("gateway"),
			CORSOrigins:    gw.CORSOrigins,
			RateLimit:      gw.RateLimit,
			RateBurst:      gw.RateBurst,
			MaxUploadBytes: int64(gw.MaxUploadMB) << 20,
			TempDir:        uploads,
		})

		ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
		defer stop()

		upstream := cfg.Endpoint
		if upstream == "" {
			upstream = "none (local analysis only)"
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "%s gateway listening on http://%s (upstream: %s)\n", colorInfo("→"), gw.Addr, upstream)
		fmt.Fprintf(cmd.ErrOrStderr(), "%s press Ctrl+C to stop\n", colorInfo("→"))

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return server.ListenAndServe(gctx, gw.Addr)
		})
		if !noScheduler {
			g.Go(func() error {
				return services.Scheduler.Run(gctx)
			})
		}
		if days := cfg.History.RetentionDays; days > 0 {
			g.Go(func() error {
				pruneLoop(gctx, logger, days, services.History.Prune)
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return fmt.Errorf("gateway stopped: %w", err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "%s gateway stopped\n", colorSuccess("✓"))
		return nil
	},
}

// pruneLoop deletes expired history now and then once per pruneInterval.
func pruneLoop(ctx context.Context, logger *zap.Logger, days int, prune func(context.Context, int) (int, error)) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		if n, err := prune(ctx, days); err != nil {
			if ctx.Err() == nil {
				logger.Warn("history prune failed", zap.Error(err))
			}
		} else if n > 0 {
			logger.Info("history pruned", zap.Int("removed", n), zap.Int("retention_days", days))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default "+defaultGatewayAddr+")")
	serveCmd.Flags().String("auth-token", "", "shared secret required in X-Auth-Token or a bearer header")
	serveCmd.Flags().StringSlice("cors-origins", nil, "allowed CORS origins (empty allows all)")
	serveCmd.Flags().Int("rate-limit", defaultGatewayRPS, "requests per second per client IP (0 disables)")
	serveCmd.Flags().Int("rate-burst", defaultGatewayBurst, "rate limit burst size")
	serveCmd.Flags().Bool("no-scheduler", false, "do not run scheduled scans")
	rootCmd.AddCommand(serveCmd)
}

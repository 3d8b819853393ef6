package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/valinor-ai/linerelay/internal/channels"
	"github.com/valinor-ai/linerelay/internal/platform/config"
	"github.com/valinor-ai/linerelay/internal/platform/server"
	"github.com/valinor-ai/linerelay/internal/platform/telemetry"
	"golang.org/x/sync/errgroup"
)

func serveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook relay (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}

			logger := telemetry.NewLogger(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())
			telemetry.SetDefault(logger)

			srv, err := buildServer(cfg, logger)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			logger.Info("linerelay starting",
				"version", version,
				"port", cfg.Server.Port,
			)
			return runServer(ctx, srv, logger)
		},
	}
}

// buildServer wires the relay. It fails before anything listens when the
// credentials are incomplete or the cipher key has the wrong length.
func buildServer(cfg *config.Config, logger *slog.Logger) (*server.Server, error) {
	creds, err := channels.NewCredentials(cfg.Line)
	if err != nil {
		return nil, err
	}

	replyCipher, err := channels.NewReplyCipher(creds.CipherKey)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := channels.NewMetrics(reg)

	sender := channels.NewReplySender(channels.ReplySenderConfig{
		APIBaseURL:  cfg.Line.APIBaseURL,
		AccessToken: creds.AccessToken,
		Timeout:     time.Duration(cfg.Line.ReplyTimeoutSecs) * time.Second,
	}, nil)

	handler := channels.NewHandler(channels.HandlerConfig{
		Verifier:     channels.NewLineVerifier(creds.ChannelSecret),
		Sink:         channels.NewEncryptedReplySink(replyCipher, sender, metrics),
		Metrics:      metrics,
		Logger:       logger,
		MaxBodyBytes: cfg.Line.MaxBodyBytes,
	})

	deps := server.Dependencies{
		ChannelHandler: handler,
		Logger:         logger,
		Ready:          func() bool { return true },
	}
	if cfg.Metrics.Enabled {
		deps.MetricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
		deps.MetricsPath = cfg.Metrics.Path
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	return server.New(addr, deps), nil
}

func runServer(ctx context.Context, srv *server.Server, logger *slog.Logger) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.Start(ctx)
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("linerelay stopping", "reason", context.Cause(ctx))
		return nil
	})

	return g.Wait()
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/opd-ai/ara"
	"github.com/opd-ai/ara/config"
	"github.com/opd-ai/ara/transport"
)

var metricsAddr string

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a node",
		Long: `Run a node until interrupted. Received data is logged. When metrics are
enabled in the configuration or --metrics-addr is given, Prometheus metrics
are served on /metrics.`,
		RunE: runNode,
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")

	return cmd
}

func runNode(cmd *cobra.Command, args []string) error {
	if configPath == "" {
		return errors.New("--config is required")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.ApplyLogging(); err != nil {
		return err
	}
	if metricsAddr != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Address = metricsAddr
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg)
}

// serve runs the node and, if enabled, the metrics server until ctx is done.
func serve(ctx context.Context, cfg *config.Config) error {
	options := ara.NewOptions(cfg)

	var registry *prometheus.Registry
	if cfg.Metrics.Enabled {
		registry = prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector())
		options.Registerer = registry
	}

	node, err := ara.New(options)
	if err != nil {
		return err
	}
	defer node.Close()

	node.OnReceive(func(source transport.Address, payload []byte) {
		logrus.WithFields(logrus.Fields{
			"function": "aranode.OnReceive",
			"source":   source.String(),
			"bytes":    len(payload),
		}).Info("Received data")
	})
	node.OnRouteFailure(func(destination transport.Address) {
		logrus.WithFields(logrus.Fields{
			"function":    "aranode.OnRouteFailure",
			"destination": destination.String(),
		}).Warn("Route failure")
	})

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := node.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	if registry != nil {
		server := &http.Server{
			Addr:              cfg.Metrics.Address,
			Handler:           metricsHandler(registry),
			ReadHeaderTimeout: 5 * time.Second,
		}

		g.Go(func() error {
			logrus.WithFields(logrus.Fields{
				"function": "aranode.serve",
				"address":  cfg.Metrics.Address,
			}).Info("Serving metrics")

			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})

		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}

func metricsHandler(registry *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	return mux
}

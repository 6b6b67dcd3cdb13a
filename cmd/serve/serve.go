// Package serve implements the serve command running the HTTP API.
package serve

import (
	"context"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tphakala/imageclassifier/internal/api"
	"github.com/tphakala/imageclassifier/internal/app"
	"github.com/tphakala/imageclassifier/internal/datastore"
	"github.com/tphakala/imageclassifier/internal/logger"
	"github.com/tphakala/imageclassifier/internal/mqtt"
	"github.com/tphakala/imageclassifier/internal/notify"
	"github.com/tphakala/imageclassifier/internal/observability/metrics"
)

// Command creates the serve command.
func Command(ctx *app.Context) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the classification HTTP API",
		Long: `Serve the HTTP API and expose Prometheus metrics on /metrics.
Completed results are optionally published to MQTT, stored in the history
database and pushed to notification services.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if listen != "" {
				ctx.Settings.WebServer.Listen = listen
			}
			return Run(cmd.Context(), ctx)
		},
	}

	cmd.Flags().StringVarP(&listen, "listen", "l", "", "Listen address (default from config)")

	return cmd
}

// Run serves until parent is cancelled.
func Run(parent context.Context, ctx *app.Context) error {
	d, cleanup, err := ctx.NewDispatcher()
	if err != nil {
		return err
	}
	defer cleanup()
	log := logger.Global().Module("serve")

	var opts []api.ServerOption
	if ctx.Metrics != nil {
		opts = append(opts, api.WithMetrics(ctx.Metrics))
	}

	var store datastore.Interface
	if ctx.Settings.History.Enabled {
		store = datastore.New(ctx.Settings)
		if err := store.Open(); err != nil {
			return err
		}
		defer func() {
			if err := store.Close(); err != nil {
				log.Warn("failed to close history database", logger.Error(err))
			}
		}()
		opts = append(opts, api.WithHistory(store))
	}

	var notifier *notify.Notifier
	if ctx.Settings.Notify.Enabled {
		if notifier, err = notify.New(&ctx.Settings.Notify); err != nil {
			return err
		}
	}
	srv, err := api.New(ctx.Settings, d, opts...)
	if err != nil {
		return err
	}

	// the server and every result sink stop together
	g, runCtx := errgroup.WithContext(parent)

	if ctx.Settings.MQTT.Enabled {
		cfg := mqtt.ConfigFromSettings(&ctx.Settings.MQTT)
		var mqttMetrics *metrics.MQTTMetrics
		if ctx.Metrics != nil {
			mqttMetrics = ctx.Metrics.MQTT
		}
		pub := mqtt.NewPublisher(mqtt.NewClient(cfg, mqttMetrics), cfg.Topic)
		g.Go(func() error {
			pub.Run(runCtx, d)
			return nil
		})
		log.Info("MQTT publishing enabled",
			logger.String("broker", cfg.Broker),
			logger.String("topic", cfg.Topic))
	}

	if store != nil {
		rec := datastore.NewRecorder(store)
		g.Go(func() error {
			rec.Run(runCtx, d)
			return nil
		})
		log.Info("classification history enabled", logger.String("type", ctx.Settings.History.Type))
	}

	if notifier != nil {
		g.Go(func() error {
			notifier.Run(runCtx, d)
			return nil
		})
		log.Info("notifications enabled", logger.Int("services", len(ctx.Settings.Notify.URLs)))
	}

	g.Go(func() error { return srv.Run(runCtx) })
	return g.Wait()
}

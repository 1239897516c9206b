package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"homehub/config"
	"homehub/internal/aggregator"
	"homehub/internal/api"
	"homehub/internal/device"
	"homehub/internal/logging"
	"homehub/internal/metrics"
	"homehub/internal/monitor"
	"homehub/internal/mqtt"
	"homehub/internal/multicast"
	"homehub/internal/storage"

	"github.com/spf13/cobra"
)

var version = "dev"

var (
	configFile string
	verbose    bool
)

const (
	readingsRetention = 30 * 24 * time.Hour
	cleanupInterval   = 24 * time.Hour
	shutdownTimeout   = 10 * time.Second
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "homehub",
		Short:   "Home energy hub client",
		Long:    "Monitor and control the inverter, load controller and garage modules of a home energy hub",
		Version: version,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(pollCmd())
	rootCmd.AddCommand(listenCmd())
	rootCmd.AddCommand(probeCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(modeCmd())
	rootCmd.AddCommand(lockCmd())
	rootCmd.AddCommand(gateCmd())
	rootCmd.AddCommand(eventsCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration and installs the process logger.
func loadConfig() (*config.Store, *config.Config, *slog.Logger, error) {
	store := config.NewStore(configFile)
	cfg, err := store.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	level := cfg.Logging.Level
	if verbose {
		level = "debug"
	}
	logger := logging.New(logging.Options{
		Level:   level,
		Format:  cfg.Logging.Format,
		Output:  cfg.Logging.Output,
		Version: version,
	})
	logging.SetDefault(logger)
	return store, cfg, logger, nil
}

func newController(logger *slog.Logger) *device.Controller {
	return device.NewController(device.NewClient(device.ClientConfig{Logger: logger}))
}

func newListener(cfg *config.Config, logger *slog.Logger) *multicast.Listener {
	return multicast.NewListener(multicast.Config{
		Group:     cfg.Multicast.Group,
		Interface: cfg.Multicast.Interface,
		TTL:       cfg.Multicast.TTL,
	}, logger)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the monitoring service",
		Long:  "Start the pollers, API server and MQTT publisher",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}

			db, err := storage.NewDatabase(cfg.Database.Path)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer db.Close()
			logger.Info("database opened", "path", cfg.Database.Path)

			m := metrics.New()
			hub := api.NewHub(logger)

			listener := newListener(cfg, logger)
			listener.OnPacket = func(p multicast.Packet) {
				m.ObservePacket(p.Module, p.Inferred)
			}
			controller := newController(logger)

			mon := monitor.New(monitor.Config{
				Configs:    store,
				Aggregator: aggregator.New(listener, controller, logger),
				Baseline:   db.Snapshots(),
				Sinks: []monitor.Sink{
					monitor.JournalSink(db.Journal()),
					monitor.ReadingSink(db),
					monitor.LogSink(),
					monitor.MetricsSink(m),
					hub,
				},
				OnError: func(source string, _ error) { m.ObservePollError(source) },
				Logger:  logger,
			})

			publisher, err := mqtt.NewPublisher(mqtt.PublisherConfig{
				Broker:      cfg.MQTT.Broker,
				ClientID:    cfg.MQTT.ClientID,
				Username:    cfg.MQTT.Username,
				Password:    cfg.MQTT.Password,
				TopicPrefix: cfg.MQTT.TopicPrefix,
				Enabled:     cfg.MQTT.Enabled,
				Logger:      logger,
			})
			if err != nil {
				logger.Warn("MQTT connection failed", "error", err)
			} else {
				defer publisher.Close()
				if cfg.MQTT.Enabled {
					if err := publisher.PublishHomeAssistantDiscovery(); err != nil {
						logger.Warn("failed to publish Home Assistant discovery", "error", err)
					}
					mon.AddSink(monitor.PublisherSink(publisher))
				}
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			dashboard := monitor.NewDashboard(mon)
			go dashboard.Run(ctx)

			worker := monitor.NewWorker(mon, cfg.Worker.Interval)
			if cfg.Worker.Enabled {
				go worker.Run(ctx)
			}

			realtime := monitor.NewRealtime(mon)
			if cfg.Polling.RealtimeEnabled {
				realtime.Start(ctx)
			}

			go cleanReadings(ctx, db, logger)

			var server *api.Server
			if cfg.API.Enabled {
				server = api.NewServer(api.ServerConfig{
					Port:        cfg.API.Port,
					Monitor:     mon,
					Dashboard:   dashboard,
					Worker:      worker,
					Realtime:    realtime,
					Controller:  controller,
					Configs:     store,
					Database:    db,
					Metrics:     m,
					Hub:         hub,
					BaseContext: ctx,
					Logger:      logger,
				})

				go func() {
					if err := server.Start(); err != nil {
						logger.Error("API server error", "error", err)
						stop()
					}
				}()
			}

			logger.Info("homehub started, press Ctrl+C to stop", "version", version)

			<-ctx.Done()
			logger.Info("shutting down")

			if server != nil {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				if err := server.Stop(shutdownCtx); err != nil {
					logger.Warn("API server shutdown", "error", err)
				}
			}
			realtime.Wait()
			return nil
		},
	}
}

// cleanReadings drops old telemetry rows at startup and once a day.
func cleanReadings(ctx context.Context, db *storage.Database, logger *slog.Logger) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		if err := db.CleanOldReadings(ctx, readingsRetention); err != nil {
			logger.Warn("failed to clean old readings", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

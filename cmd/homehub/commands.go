package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"homehub/config"
	"homehub/internal/aggregator"
	"homehub/internal/device"
	"homehub/internal/monitor"
	"homehub/internal/multicast"
	"homehub/internal/storage"

	"github.com/spf13/cobra"
)

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Read the unified status once",
		Long:  "Aggregate the status of every enabled module without touching the event baseline",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			agg := aggregator.New(newListener(cfg, logger), newController(logger), logger)
			u := agg.FetchUnified(cmd.Context(), cfg)
			if u.Empty() {
				fmt.Fprintln(os.Stderr, "no modules reachable")
			}
			return printJSON(u)
		},
	}
}

func pollCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "poll",
		Short: "Run one monitoring cycle",
		Long:  "Aggregate the status, detect events against the stored baseline and record them",
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

			mon := monitor.New(monitor.Config{
				Configs:    store,
				Aggregator: aggregator.New(newListener(cfg, logger), newController(logger), logger),
				Baseline:   db.Snapshots(),
				Sinks:      []monitor.Sink{monitor.JournalSink(db.Journal()), monitor.ReadingSink(db)},
				Logger:     logger,
			})
			c, err := mon.Poll(cmd.Context(), monitor.SourceManual, cfg)
			if err != nil {
				return err
			}
			return printJSON(map[string]any{
				"status":   c.Status,
				"events":   c.Events,
				"duration": c.Duration.String(),
			})
		},
	}
}

func listenCmd() *cobra.Command {
	var duration time.Duration
	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Print multicast status packets",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			l := newListener(cfg, logger)
			l.OnPacket = func(p multicast.Packet) {
				fmt.Printf("%s %-16s %-22s inferred=%t fields=%d\n",
					p.ReceivedAt.Format(time.TimeOnly), p.Module, p.From, p.Inferred, len(p.Fields))
			}
			if !l.PollWindow(cmd.Context(), duration) {
				return fmt.Errorf("no packets received on %s within %s", cfg.Multicast.Group, duration)
			}
			return nil
		},
	}
	cmd.Flags().DurationVarP(&duration, "duration", "d", 10*time.Second, "how long to listen")
	return cmd
}

func probeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Check every module endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			results := newController(logger).Probe(cmd.Context(), cfg)
			for _, r := range results {
				state := "disabled"
				switch {
				case r.Enabled && r.OK:
					state = "OK"
				case r.Enabled:
					state = "FAILED: " + r.LastError
				}
				fmt.Printf("%-16s %s\n", r.Module, state)
			}
			return nil
		},
	}
}

func historyCmd() *cobra.Command {
	var date, month string
	cmd := &cobra.Command{
		Use:       "history [daily|monthly|yearly|load]",
		Short:     "Fetch device history",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"daily", "monthly", "yearly", "load"},
		RunE: func(cmd *cobra.Command, args []string) error {
			_, cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			c := newController(logger)
			ctx := cmd.Context()

			if args[0] == "load" {
				f, err := c.FetchHistory(ctx, cfg, device.HistoryLoad, "")
				if err != nil {
					return err
				}
				tl, err := device.DecodeTimeline(f, time.Local)
				if err != nil {
					return err
				}
				return printJSON(tl)
			}

			param := date
			if args[0] == string(device.HistoryMonthly) {
				param = month
			}
			f, err := c.FetchHistory(ctx, cfg, device.HistoryKind(args[0]), param)
			if err != nil {
				return err
			}
			return printJSON(f)
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "day for daily history (YYYY-MM-DD)")
	cmd.Flags().StringVar(&month, "month", "", "month for monthly history (YYYY-MM)")
	return cmd
}

// runCommand loads the configuration and sends one device command.
func runCommand(ctx context.Context, name string, fn func(ctx context.Context, c *device.Controller, cfg *config.Config) error) error {
	_, cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if err := fn(ctx, newController(logger), cfg); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	fmt.Printf("%s: OK\n", name)
	return nil
}

func modeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mode <target> <AUTO|ON|OFF>",
		Short: "Set the mode of grid, load, boiler1, pump or boiler2",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommand(cmd.Context(), args[0]+" mode", func(ctx context.Context, c *device.Controller, cfg *config.Config) error {
				return c.SetMode(ctx, cfg, args[0], args[1])
			})
		},
	}
}

func lockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lock <target> <NONE|ON|OFF>",
		Short: "Set the lock of load, boiler1, pump or boiler2",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommand(cmd.Context(), args[0]+" lock", func(ctx context.Context, c *device.Controller, cfg *config.Config) error {
				return c.SetLock(ctx, cfg, args[0], args[1])
			})
		},
	}
}

func gateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gate",
		Short: "Pulse the gate relay",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommand(cmd.Context(), "gate", func(ctx context.Context, c *device.Controller, cfg *config.Config) error {
				return c.TriggerGate(ctx, cfg)
			})
		},
	}
}

func eventsCmd() *cobra.Command {
	var limit int
	var clearAll bool
	cmd := &cobra.Command{
		Use:   "events",
		Short: "List or clear the event journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := storage.NewDatabase(cfg.Database.Path)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer db.Close()

			if clearAll {
				return db.Journal().Clear(cmd.Context())
			}
			entries, err := db.Journal().List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			for _, e := range entries {
				fmt.Printf("%s  %-14s %s: %s\n",
					time.UnixMilli(e.AtMs).Format(time.DateTime), e.Kind, e.Title, e.Body)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", storage.DefaultJournalLimit, "number of entries")
	cmd.Flags().BoolVar(&clearAll, "clear", false, "remove every entry")
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or edit the configuration file",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			masked := *cfg
			for _, d := range []*string{
				&masked.Devices.Inverter.Password,
				&masked.Devices.LoadController.Password,
				&masked.Devices.Garage.Password,
				&masked.MQTT.Password,
			} {
				if *d != "" {
					*d = "********"
				}
			}
			return printJSON(masked)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change one setting, for example polling.interval_sec 10",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store := config.NewStore(configFile)
			if err := store.Set(args[0], args[1]); err != nil {
				return err
			}
			fmt.Printf("%s updated in %s\n", args[0], store.Path())
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write the effective configuration, defaults included, to the config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			if err := store.Save(cfg); err != nil {
				return err
			}
			fmt.Printf("configuration written to %s\n", store.Path())
			return nil
		},
	})
	return cmd
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"TFTracker/internal/di"
	"TFTracker/internal/domain/models"
	"TFTracker/pkg/config"
	applogger "TFTracker/pkg/logger"

	"github.com/spf13/cobra"
)

// newRootCmd creates the root command. Without a subcommand it serves.
func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "tft-tracker",
		Short: "Tit-for-tat phase tracker",
		Long: `tft-tracker classifies tracked assets into COOPERATE, DEFECT and FORGIVE
phases from market, indicator and sentiment snapshots and serves the result over HTTP.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config/config.yaml", "config file path")

	rootCmd.AddCommand(newServeCmd(&configPath))
	rootCmd.AddCommand(newRefreshCmd(&configPath))
	rootCmd.AddCommand(newMigrateCmd(&configPath))
	return rootCmd
}

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, ingestion consumer and scheduler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), *configPath)
		},
	}
}

func newRefreshCmd(configPath *string) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "refresh [TICKER...]",
		Short: "Re-evaluate phases once and print the result",
		Long: `Re-evaluate the given tickers, registering unknown ones, or every tracked
asset when none are given. Prints the resulting phase views as JSON.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			return runRefresh(ctx, *configPath, args)
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "overall deadline")
	return cmd
}

func newMigrateCmd(configPath *string) *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the ClickHouse schema",
	}
	for _, sub := range []struct {
		use, short string
	}{
		{"up", "Apply all pending migrations"},
		{"down", "Roll back the most recent migration"},
		{"status", "Show migration status"},
	} {
		migrateCmd.AddCommand(&cobra.Command{
			Use:   sub.use,
			Short: sub.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runMigrate(cmd.Context(), *configPath, cmd.Name())
			},
		})
	}
	return migrateCmd
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.LoadWithEnv(path)
	if err != nil {
		return nil, fmt.Errorf("config load failed: %w", err)
	}
	return cfg, nil
}

func runServe(ctx context.Context, configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	app, cleanup, err := di.InitializeApp(cfg)
	if err != nil {
		return fmt.Errorf("app initialization failed: %w", err)
	}
	defer cleanup()
	return app.Run(ctx)
}

func runRefresh(ctx context.Context, configPath string, tickers []string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	r, cleanup, err := di.InitializeRefresh(cfg)
	if err != nil {
		return fmt.Errorf("refresh initialization failed: %w", err)
	}
	defer cleanup()

	var states []models.PhaseState
	if len(tickers) > 0 {
		assets, err := r.Registry.EnsureAll(ctx, tickers)
		if err != nil {
			return err
		}
		canonical := make([]string, len(assets))
		for i, a := range assets {
			canonical[i] = a.Ticker
		}
		states, err = r.Updater.UpdateAssetsByTickers(ctx, canonical)
		if err != nil {
			return err
		}
	} else {
		if states, err = r.Updater.UpdateAll(ctx); err != nil {
			return err
		}
	}

	views, err := r.Query.Views(ctx, states)
	if err != nil {
		return err
	}
	r.Logger.Info("refresh done", applogger.Int("requested", len(tickers)), applogger.Int("classified", len(views)))

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(views)
}

func runMigrate(ctx context.Context, configPath, direction string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	m, cleanup, err := di.InitializeMigrator(cfg)
	if err != nil {
		return fmt.Errorf("migrator initialization failed: %w", err)
	}
	defer cleanup()

	switch direction {
	case "up":
		return m.Up(ctx)
	case "down":
		return m.Down(ctx)
	default:
		return m.Status(ctx)
	}
}

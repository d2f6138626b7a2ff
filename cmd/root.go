package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/baptistelechat/overti-me/internal/app"
	"github.com/baptistelechat/overti-me/internal/config"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "overti-me",
	Short: "Weekly timesheet with overtime bands",
	Long: `overti-me records daily working hours, splits each week into normal,
+25% and +50% hours and optionally synchronizes weeks with a remote account.
Weeks are kept in a local SQLite file; see "overti-me serve" for the HTTP API.`,
	SilenceUsage: true,
}

// Execute is the entry point called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "./config/application.yaml", "Path to the YAML configuration file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(weekCmd)
	rootCmd.AddCommand(dayCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(syncCmd)
}

func loadConfig() (config.Application, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Application{}, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// withDependencies runs fn against freshly built dependencies and closes them afterwards,
// which waits for pushes triggered by fn.
func withDependencies(cmd *cobra.Command, fn func(ctx context.Context, deps *app.Dependencies) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	deps, err := app.BuildDependencies(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.Close()
	return fn(ctx, deps)
}

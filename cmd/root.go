// Package cmd is the rushupload command line.
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/basit/rushupload-backend/initializers"
)

var (
	logLevel     string
	settingsFile string
)

var rootCmd = &cobra.Command{
	Use:           "rushupload",
	Short:         "RushUpload file transfer backend",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "", "log level (overrides LOG_LEVEL)")
	rootCmd.PersistentFlags().StringVar(&settingsFile, "settings", "", "settings YAML file (overrides SETTINGS_FILE)")

	rootCmd.AddCommand(serveCmd, migrateCmd, expireCmd)
}

// Execute runs the root command and exits non-zero on failure. SIGINT and
// SIGTERM cancel the command's context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

// loadConfig reads the environment, applies the persistent flags and sets up
// the global logger.
func loadConfig() (*initializers.Config, error) {
	cfg, err := initializers.LoadConfig()
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if settingsFile != "" {
		cfg.SettingsFile = settingsFile
	}
	initializers.InitLogger(cfg.LogLevel, !cfg.IsProduction())
	return cfg, nil
}

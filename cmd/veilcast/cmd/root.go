// Package cmd implements the CLI commands for veilcast.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/veilcast/veilcast/internal/config"
	"github.com/veilcast/veilcast/internal/observability"
	"github.com/veilcast/veilcast/internal/version"
)

// cfgFile holds the config file path from the CLI flag.
var cfgFile string

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:     "veilcast",
	Short:   "Real-time video privacy filter",
	Version: version.Short(),
	Long: `veilcast ingests a live video stream, blurs every face that has not
given consent, and republishes the filtered stream.

Consent is granted by dropping a photo into the consent directory (or via
the capture API and spoken consent phrases) and revoked by deleting it.
Speech is transcribed alongside so operators can audit what was said.`,
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		return fmt.Errorf("executing root command: %w", err)
	}
	return nil
}

func init() {
	// PersistentPreRunE is set here to avoid an initialization cycle
	// (initLogging reads rootCmd's flags).
	rootCmd.PersistentPreRunE = func(_ *cobra.Command, _ []string) error {
		return initLogging()
	}

	// These flags are deliberately not bound to viper: Changed() gates the
	// override so the priority stays flag > env > config > default.
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default searches ., ./configs, /etc/veilcast, $HOME/.veilcast)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "json", "log format (text, json)")
}

// loadConfig reads the configuration honoring the --config flag.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// initLogging configures the default slog logger. Log levels can be changed
// at runtime via observability.SetLogLevel.
func initLogging() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	level := cfg.Logging.Level
	format := cfg.Logging.Format

	if rootCmd.PersistentFlags().Changed("log-level") {
		level, _ = rootCmd.PersistentFlags().GetString("log-level")
	}
	if rootCmd.PersistentFlags().Changed("log-format") {
		format, _ = rootCmd.PersistentFlags().GetString("log-format")
	}

	logCfg := config.LoggingConfig{
		Level:  strings.ToLower(level),
		Format: strings.ToLower(format),
	}
	if logCfg.Level == "warning" {
		logCfg.Level = "warn"
	}

	logger := observability.NewLoggerWithWriter(logCfg, os.Stderr)
	observability.SetDefault(logger)
	return nil
}

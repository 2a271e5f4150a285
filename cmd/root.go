// =============================================================================
// AIMsi to CAPSS Converter - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. All other commands
// are attached to it.
//
// COBRA CLI STRUCTURE:
//   rootCmd (capps)
//   ├── convertCmd  (capps convert, alias process)
//   ├── uploadCmd   (capps upload)
//   ├── settingsCmd (capps settings show|set)
//   └── versionCmd  (capps version)
//
// CONFIGURATION:
//   The root command owns the global flags and builds the two things every
//   command needs: the loaded MainConfig and the slog logger.
//
// =============================================================================

package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/aimsi-capps-converter/internal/config"
	"github.com/ginjaninja78/aimsi-capps-converter/internal/settings"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the main configuration file.
var cfgFile string

// settingsFile holds the path to the persisted run settings.
var settingsFile string

// verbose enables debug logging.
var verbose bool

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

var rootCmd = &cobra.Command{
	Use:   "capps",
	Short: "AIMsi to CAPSS Converter - report secondhand purchases to CAPSS",
	Long: `capps turns the AIMsi purchases and serials exports into a CAPSS bulk
upload document and optionally submits it to the CAPSS API.

Example Usage:
  capps convert --purchases purchases.csv --serials serials.csv --license LIC123
  capps upload --client-id ID --client-secret SECRET
  capps settings set min_cost 150
  capps settings show`,
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command. It is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"config.yaml",
		"Path to the main configuration file (optional)",
	)
	rootCmd.PersistentFlags().StringVar(
		&settingsFile,
		"settings",
		settings.DefaultPath(),
		"Path to the persisted run settings",
	)
	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable debug logging",
	)
}

// =============================================================================
// SHARED SETUP
// =============================================================================

// loadConfig loads the main configuration and builds the logger from it.
func loadConfig() (*config.MainConfig, *slog.Logger, error) {
	cfg, err := config.LoadMainConfig(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	return cfg, newLogger(cfg), nil
}

// newLogger builds a text or JSON slog handler on stderr.
func newLogger(cfg *config.MainConfig) *slog.Logger {
	level := parseLevel(cfg.LogLevel)
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.EqualFold(cfg.LogFormat, "json") {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler).With("app", "capps")
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// =============================================================================
// AIMsi to CAPSS Converter - Convert Command
// =============================================================================
//
// This file defines the 'convert' command, which runs one conversion of the
// AIMsi purchases and serials exports into the CAPSS bulk upload document.
//
// COMMAND USAGE:
//   capps convert [flags]
//
// PARAMETER PRECEDENCE:
//   1. Flags given on the command line
//   2. The persisted settings file (--settings)
//   3. Built-in defaults
//
// PROCESSING PIPELINE:
//   1. Load configuration and settings
//   2. Open the brand cache and the remote inference client
//   3. Run the converter
//   4. Print the run summary
//   5. Save the settings (when --save-settings is given)
//
// =============================================================================

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/aimsi-capps-converter/internal/brand"
	"github.com/ginjaninja78/aimsi-capps-converter/internal/config"
	"github.com/ginjaninja78/aimsi-capps-converter/internal/converter"
	"github.com/ginjaninja78/aimsi-capps-converter/internal/llm"
	"github.com/ginjaninja78/aimsi-capps-converter/internal/metrics"
	"github.com/ginjaninja78/aimsi-capps-converter/internal/settings"
)

// convertFlags maps each run flag onto the settings key it overrides.
var convertFlags = []struct {
	flag  string
	key   string
	usage string
}{
	{"purchases", "purchases_file", "Path to the AIMsi purchases export"},
	{"serials", "serials_file", "Path to the AIMsi serials export"},
	{"license", "license", "Store license number"},
	{"employee", "employee", "Employee name recorded on each item"},
	{"min-cost", "min_cost", "Minimum purchase amount to report"},
	{"days", "days_lookback", "Only report purchases from the last N days"},
	{"provider", "provider", "Remote brand provider: groq, gemini or none"},
	{"api-key", "api_key", "API key for the remote brand provider"},
}

// reportFile overrides the configured review workbook path.
var reportFile string

// saveSettings persists the effective run parameters after a successful run.
var saveSettings bool

// =============================================================================
// CONVERT COMMAND DEFINITION
// =============================================================================

var convertCmd = &cobra.Command{
	Use:     "convert",
	Aliases: []string{"process"},
	Short:   "Convert the AIMsi exports into a CAPSS upload document",
	Long: `The convert command reads the purchases and serials exports, keeps the
purchases that qualify for reporting and writes them to the CAPSS bulk upload
document.

Rows are rejected when they are malformed, older than the lookback window,
below the minimum cost, carry an in-store (ISI) serial, have no entry in the
serials export or no description. Every rejection is listed in the summary
log and the review workbook when those are configured.

A previous document at the output path is archived before it is replaced.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConvert(cmd)
	},
}

func init() {
	rootCmd.AddCommand(convertCmd)

	for _, f := range convertFlags {
		convertCmd.Flags().String(f.flag, "", f.usage)
	}
	convertCmd.Flags().Bool("include-isi", false, "Report items with in-store (ISI) serials")
	convertCmd.Flags().StringVar(&reportFile, "report", "", "Write the review workbook to this path")
	convertCmd.Flags().BoolVar(&saveSettings, "save-settings", false, "Save the run parameters to the settings file")
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

func runConvert(cmd *cobra.Command) error {
	// =========================================================================
	// STEP 1: LOAD CONFIGURATION AND SETTINGS
	// =========================================================================

	cfg, logger, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load main config: %w", err)
	}

	stored, err := settings.Load(settingsFile)
	if err != nil {
		return err
	}
	if err := applyConvertFlags(cmd, &stored); err != nil {
		return err
	}
	if stored.PurchasesFile == "" || stored.SerialsFile == "" {
		return errors.New("both --purchases and --serials are required (or set purchases_file and serials_file)")
	}

	run, err := stored.ToRunConfig()
	if err != nil {
		return err
	}

	applyBrandSettings(cmd, cfg, stored)
	if reportFile != "" {
		cfg.ReportFile = reportFile
	}

	// =========================================================================
	// STEP 2: BRAND RESOLUTION
	// =========================================================================

	store, err := brand.Open(cfg.Cache.Backend, cfg.Cache.Path, logger)
	if err != nil {
		return fmt.Errorf("failed to open brand cache: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("brand.cache.close_failed", "error", err)
		}
	}()

	var remote brand.Resolver
	if cfg.RemoteBrandEnabled() {
		client, err := llm.New(llm.Config{
			Provider: cfg.Brand.Provider,
			APIKey:   cfg.Brand.APIKey,
			BaseURL:  cfg.Brand.BaseURL,
			Model:    cfg.Brand.Model,
			Timeout:  cfg.Brand.Timeout,
		}, logger)
		if err != nil {
			logger.Warn("brand.remote.disabled", "provider", cfg.Brand.Provider, "error", err)
		} else {
			remote = client
		}
	}
	extractor := brand.NewExtractor(store, remote, logger)

	// =========================================================================
	// STEP 3: RUN
	// =========================================================================

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conv := converter.New(cfg, extractor, metrics.NewRegistry(), logger)
	result := conv.Run(ctx, stored.PurchasesFile, stored.SerialsFile, run)

	// =========================================================================
	// STEP 4: PRINT SUMMARY
	// =========================================================================

	printConvertSummary(cmd.OutOrStdout(), result)
	if result.Error != nil {
		if errors.Is(result.Error, context.Canceled) {
			return errors.New("conversion cancelled; no document was written")
		}
		return result.Error
	}

	// =========================================================================
	// STEP 5: SAVE SETTINGS
	// =========================================================================

	if saveSettings {
		if err := stored.Save(settingsFile); err != nil {
			return fmt.Errorf("failed to save settings: %w", err)
		}
		logger.Info("settings.saved", "path", settingsFile)
	}
	return nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// applyConvertFlags copies the flags given on the command line into s,
// validating each value the way `capps settings set` does.
func applyConvertFlags(cmd *cobra.Command, s *settings.Settings) error {
	for _, f := range convertFlags {
		if !cmd.Flags().Changed(f.flag) {
			continue
		}
		value, err := cmd.Flags().GetString(f.flag)
		if err != nil {
			return err
		}
		if err := s.Set(f.key, value); err != nil {
			return fmt.Errorf("--%s: %w", f.flag, err)
		}
	}
	if cmd.Flags().Changed("include-isi") {
		value := cmd.Flags().Lookup("include-isi").Value.String()
		if err := s.Set("include_isi_serials", value); err != nil {
			return err
		}
	}
	return nil
}

// applyBrandSettings fills the remote brand tier from the settings file when
// the main configuration leaves it unset. Flags always win.
func applyBrandSettings(cmd *cobra.Command, cfg *config.MainConfig, s settings.Settings) {
	if cfg.Brand.APIKey == "" {
		cfg.Brand.APIKey = s.APIKey
		if s.Provider != "" {
			cfg.Brand.Provider = s.Provider
		}
	}
	if cmd.Flags().Changed("provider") {
		cfg.Brand.Provider = s.Provider
	}
	if cmd.Flags().Changed("api-key") {
		cfg.Brand.APIKey = s.APIKey
	}
}

func printConvertSummary(out io.Writer, result converter.Result) {
	stats := result.Stats

	fmt.Fprintln(out, "=== AIMsi to CAPSS Converter ===")
	fmt.Fprintf(out, "Run:             %s\n", result.RunID)
	fmt.Fprintf(out, "Rows read:       %d\n", stats.RowsRead)
	fmt.Fprintf(out, "Accepted:        %d\n", stats.Accepted)
	fmt.Fprintf(out, "Filtered:        %d\n", stats.Filtered)
	fmt.Fprintf(out, "Malformed:       %d\n", stats.Malformed)
	if stats.ValidationErrors > 0 {
		fmt.Fprintf(out, "Validation:      %d error(s)\n", stats.ValidationErrors)
	}
	fmt.Fprintf(out, "Time elapsed:    %s\n", stats.ProcessingTime)

	if result.Success {
		fmt.Fprintf(out, "\n  ✓ %s\n", result.OutputFile)
		if result.ArchivePath != "" {
			fmt.Fprintf(out, "    previous document archived to %s\n", result.ArchivePath)
		}
		return
	}
	fmt.Fprintf(out, "\n  ✗ %s\n", strings.TrimSpace(fmt.Sprint(result.Error)))
}


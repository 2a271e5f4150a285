// =============================================================================
// AIMsi to CAPSS Converter - Upload Command
// =============================================================================
//
// COMMAND USAGE:
//   capps upload [--file capps_upload.xml] [--client-id ID --client-secret SECRET]
//
// CREDENTIALS:
//   Taken from the flags, then CAPSS_CLIENT_ID / CAPSS_CLIENT_SECRET, then the
//   settings file.
//
// EXIT STATUS:
//   Non-zero unless CAPSS confirmed the submission as complete or accepted it
//   without a status link.
//
// =============================================================================

package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/aimsi-capps-converter/internal/capss"
	"github.com/ginjaninja78/aimsi-capps-converter/internal/metrics"
	"github.com/ginjaninja78/aimsi-capps-converter/internal/settings"
)

var (
	uploadFile         string
	uploadClientID     string
	uploadClientSecret string
)

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Submit the upload document to CAPSS",
	Long: `The upload command authenticates with the CAPSS API using the client
credentials flow, submits the document and polls the returned status link
until CAPSS reports the submission complete.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runUpload(cmd)
	},
}

func init() {
	rootCmd.AddCommand(uploadCmd)

	uploadCmd.Flags().StringVar(&uploadFile, "file", "", "Document to upload (default: the configured output path)")
	uploadCmd.Flags().StringVar(&uploadClientID, "client-id", "", "CAPSS API client ID")
	uploadCmd.Flags().StringVar(&uploadClientSecret, "client-secret", "", "CAPSS API client secret")
}

func runUpload(cmd *cobra.Command) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load main config: %w", err)
	}
	stored, err := settings.Load(settingsFile)
	if err != nil {
		return err
	}

	path := uploadFile
	if path == "" {
		path = cfg.OutputPath()
	}

	client, err := capss.NewClient(capss.Config{
		TokenURL:           cfg.CAPSS.TokenURL,
		UploadURL:          cfg.CAPSS.UploadURL,
		ClientID:           firstNonEmpty(uploadClientID, os.Getenv("CAPSS_CLIENT_ID"), stored.CAPSSClientID),
		ClientSecret:       firstNonEmpty(uploadClientSecret, os.Getenv("CAPSS_CLIENT_SECRET"), stored.CAPSSClientSecret),
		PollAttempts:       cfg.CAPSS.PollAttempts,
		PollInterval:       cfg.CAPSS.PollInterval,
		Timeout:            cfg.CAPSS.Timeout,
		InsecureSkipVerify: cfg.CAPSS.InsecureSkipVerify,
	}, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := client.Upload(ctx, path)
	outcome := capss.Outcome(result, err)

	rec := metrics.NewRegistry()
	rec.ObserveUpload(outcome)
	if cfg.MetricsFile != "" {
		if werr := rec.WriteTextfile(uploadMetricsPath(cfg.MetricsFile)); werr != nil {
			logger.Warn("metrics.textfile.failed", "error", werr)
		}
	}

	out := cmd.OutOrStdout()
	switch outcome {
	case capss.OutcomeComplete:
		fmt.Fprintf(out, "  ✓ %s submitted (submission %s, status %s)\n", path, result.SubmissionID, result.Status)
		return nil
	case capss.OutcomeUnconfirmed:
		fmt.Fprintf(out, "  ✓ %s accepted by CAPSS; no status link was returned to confirm processing\n", path)
		return nil
	}
	return fmt.Errorf("upload %s: %w", outcome, err)
}

// uploadMetricsPath places the upload counters beside the conversion
// textfile: metrics.prom becomes metrics_upload.prom.
func uploadMetricsPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "_upload" + ext
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

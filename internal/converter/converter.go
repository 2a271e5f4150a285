// =============================================================================
// AIMsi to CAPSS Converter - Converter Module
// =============================================================================
//
// This module orchestrates one conversion run, from the two AIMsi exports to
// the CAPSS upload document.
//
// CONVERSION PIPELINE:
//   1. Validate the run parameters
//   2. Load the serials index
//   3. Open the purchases export
//   4. Process every purchases row in input order (see processor.go)
//   5. Validate the accepted item records
//   6. Generate the XML document
//   7. Archive the previous output document
//   8. Write the output document
//   9. Write the run artefacts (summary, review workbook, metrics)
//
// CONCURRENCY:
//   A run is single-threaded and processes rows strictly in input order.
//   Cancelling the context abandons the whole run; there is no partial output.
//
// =============================================================================

package converter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ginjaninja78/aimsi-capps-converter/internal/brand"
	"github.com/ginjaninja78/aimsi-capps-converter/internal/config"
	"github.com/ginjaninja78/aimsi-capps-converter/internal/csvparser"
	"github.com/ginjaninja78/aimsi-capps-converter/internal/metrics"
	"github.com/ginjaninja78/aimsi-capps-converter/internal/report"
	"github.com/ginjaninja78/aimsi-capps-converter/internal/types"
	"github.com/ginjaninja78/aimsi-capps-converter/internal/validation"
	"github.com/ginjaninja78/aimsi-capps-converter/internal/xmlwriter"
	"github.com/ginjaninja78/aimsi-capps-converter/pkg/utils"
)

var (
	// ErrInputFile is returned when an input export cannot be opened or read.
	ErrInputFile = errors.New("input file unavailable")

	// ErrValidation is returned when item validation fails and the
	// configuration does not allow continuing.
	ErrValidation = errors.New("item validation failed")
)

// =============================================================================
// RESULT STRUCTURE
// =============================================================================

// Result represents the outcome of one conversion run.
type Result struct {
	// RunID identifies the run in logs and artefacts.
	RunID string

	PurchasesFile string
	SerialsFile   string

	// OutputFile is the path of the generated document.
	// This is empty if the run failed before writing it.
	OutputFile string

	// ArchivePath is where the previous document was copied, if anywhere.
	ArchivePath string

	// Success indicates whether the document was written.
	Success bool

	// Error contains the error if the run failed.
	Error error

	// Stats contains processing statistics.
	Stats ProcessingStats

	// Items are the accepted records in input order.
	Items []types.ItemRecord

	// Diagnostics has one entry per purchases row, in input order.
	Diagnostics []types.Diagnostic
}

// ProcessingStats contains statistics about the run.
type ProcessingStats struct {
	// RowsRead is the number of purchases rows read.
	RowsRead int

	Accepted  int
	Filtered  int
	Malformed int

	// Reasons counts rejected rows by rejection reason.
	Reasons map[string]int

	// ValidationErrors is the number of error-severity validation findings.
	ValidationErrors int

	// ProcessingTime is the wall time of the run.
	ProcessingTime time.Duration
}

func (s *ProcessingStats) record(d types.Diagnostic) {
	switch d.Outcome {
	case types.OutcomeAccepted:
		s.Accepted++
	case types.OutcomeFiltered:
		s.Filtered++
	case types.OutcomeMalformed:
		s.Malformed++
	}
	if d.Reason != "" {
		if s.Reasons == nil {
			s.Reasons = make(map[string]int)
		}
		s.Reasons[d.Reason]++
	}
}

// =============================================================================
// CONVERTER STRUCTURE
// =============================================================================

// Converter runs conversions. One Converter may run several conversions, one
// after the other.
type Converter struct {
	cfg     *config.MainConfig
	brands  BrandResolver
	metrics *metrics.Registry
	logger  *slog.Logger
	now     func() time.Time
}

// New creates a new Converter.
//
// PARAMETERS:
//   - cfg:     Output locations and processing options. nil uses defaults.
//   - brands:  The brand resolver; nil resolves every brand to UNKNOWN.
//   - rec:     Metrics registry; may be nil.
//   - logger:  Structured logger; nil uses slog.Default().
func New(cfg *config.MainConfig, brands BrandResolver, rec *metrics.Registry, logger *slog.Logger) *Converter {
	if cfg == nil {
		cfg = &config.MainConfig{OutputDir: ".", OutputFile: xmlwriter.DefaultFileName}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Converter{
		cfg:     cfg,
		brands:  brands,
		metrics: rec,
		logger:  logger,
		now:     time.Now,
	}
}

// WithClock replaces the run clock. Row ages are measured against its value
// at run start.
func (c *Converter) WithClock(now func() time.Time) *Converter {
	c.now = now
	return c
}

// observedResolver counts the tier behind every brand resolution.
type observedResolver struct {
	next    BrandResolver
	metrics *metrics.Registry
}

func (o observedResolver) Resolve(ctx context.Context, description string) brand.Resolution {
	res := o.next.Resolve(ctx, description)
	o.metrics.ObserveBrand(string(res.Source))
	return res
}

// =============================================================================
// ENTRY POINTS
// =============================================================================

// Convert runs one conversion and returns the path of the written document.
func (c *Converter) Convert(ctx context.Context, purchasesPath, serialsPath string, run types.RunConfig) (string, error) {
	result := c.Run(ctx, purchasesPath, serialsPath, run)
	if result.Error != nil {
		return "", result.Error
	}
	return result.OutputFile, nil
}

// Run executes the conversion pipeline.
//
// RETURNS:
//   - A Result with the outcome, statistics and per-row diagnostics. Result.Error
//     wraps ErrInputFile or ErrValidation where applicable.
func (c *Converter) Run(ctx context.Context, purchasesPath, serialsPath string, run types.RunConfig) (result Result) {
	startTime := c.now()
	result = Result{
		RunID:         uuid.NewString(),
		PurchasesFile: purchasesPath,
		SerialsFile:   serialsPath,
	}
	logger := c.logger.With("run_id", result.RunID)

	defer func() {
		result.Stats.ProcessingTime = c.now().Sub(startTime)
	}()

	// =========================================================================
	// STEP 1: VALIDATE RUN PARAMETERS
	// =========================================================================

	if run.EmployeeName == "" {
		run.EmployeeName = types.DefaultEmployeeName
	}
	if err := run.Validate(); err != nil {
		result.Error = fmt.Errorf("invalid run configuration: %w", err)
		return result
	}

	logger.Info("converter.run.start",
		"purchases", purchasesPath,
		"serials", serialsPath,
		"min_cost", run.MinCost.String(),
		"days_lookback", run.DaysLookback,
		"include_isi", run.IncludeISISerials,
	)

	// =========================================================================
	// STEP 2: LOAD SERIALS INDEX
	// =========================================================================

	serials, err := csvparser.LoadSerials(serialsPath, logger)
	if err != nil {
		result.Error = fmt.Errorf("%w: %s: %w", ErrInputFile, serialsPath, err)
		return result
	}

	// =========================================================================
	// STEP 3: OPEN PURCHASES
	// =========================================================================

	purchases, err := csvparser.OpenPurchases(purchasesPath)
	if err != nil {
		result.Error = fmt.Errorf("%w: %s: %w", ErrInputFile, purchasesPath, err)
		return result
	}
	defer purchases.Close()

	// =========================================================================
	// STEP 4: PROCESS ROWS
	// =========================================================================

	var resolver BrandResolver
	if c.brands != nil {
		resolver = observedResolver{next: c.brands, metrics: c.metrics}
	}
	processor := NewProcessor(run, serials, resolver, startTime)

	for purchases.Next() {
		if err := ctx.Err(); err != nil {
			result.Error = fmt.Errorf("conversion cancelled at row %d: %w", purchases.RowNumber(), err)
			return result
		}

		rowNumber := purchases.RowNumber()
		fields := purchases.Fields()
		result.Stats.RowsRead++

		item, err := processor.ProcessRow(ctx, rowNumber, fields)
		diag := c.diagnose(logger, rowNumber, fields, item, err)
		result.Diagnostics = append(result.Diagnostics, diag)
		result.Stats.record(diag)
		c.metrics.ObserveRow(string(diag.Outcome), diag.Reason)

		if err == nil {
			result.Items = append(result.Items, item)
		}
	}
	if err := purchases.Err(); err != nil {
		result.Error = fmt.Errorf("%w: %s: %w", ErrInputFile, purchasesPath, err)
		return result
	}

	// =========================================================================
	// STEP 5: VALIDATE ITEMS
	// =========================================================================

	validator := validation.NewValidator()
	validationResult := validator.ValidateAll(result.Items)
	result.Stats.ValidationErrors = validationResult.ErrorCount

	if len(validationResult.Errors) > 0 {
		logger.Warn("converter.validation.findings",
			"errors", validationResult.ErrorCount,
			"warnings", validationResult.WarningCount,
			"details", validation.FormatErrors(validationResult.Errors),
		)
	}
	if !validationResult.IsValid && !c.continueOnError() {
		result.Error = fmt.Errorf("%w: %d errors", ErrValidation, validationResult.ErrorCount)
		return result
	}

	// =========================================================================
	// STEP 6: GENERATE XML
	// =========================================================================

	document, err := xmlwriter.Build(run, result.Items)
	if err != nil {
		result.Error = fmt.Errorf("failed to generate XML: %w", err)
		return result
	}

	// =========================================================================
	// STEP 7: ARCHIVE PREVIOUS OUTPUT
	// =========================================================================

	outputPath := c.cfg.OutputPath()
	archivePath, err := utils.ArchiveOutputFile(outputPath, c.cfg.ArchiveDir, startTime)
	if err != nil {
		// The previous document is about to be replaced; keep it instead.
		result.Error = fmt.Errorf("failed to archive previous output: %w", err)
		return result
	}
	if archivePath != "" {
		result.ArchivePath = archivePath
		logger.Info("converter.output.archived", "path", archivePath)
	}

	// =========================================================================
	// STEP 8: WRITE OUTPUT
	// =========================================================================

	if err := utils.WriteFileAtomic(outputPath, document); err != nil {
		result.Error = fmt.Errorf("failed to write output file: %w", err)
		return result
	}

	result.OutputFile = outputPath
	result.Success = true

	logger.Info("converter.run.complete",
		"output", outputPath,
		"rows", result.Stats.RowsRead,
		"accepted", result.Stats.Accepted,
		"filtered", result.Stats.Filtered,
		"malformed", result.Stats.Malformed,
	)

	// =========================================================================
	// STEP 9: RUN ARTEFACTS
	// =========================================================================
	// Artefact failures are logged; the document is already written.

	c.writeArtefacts(logger, &result, run, startTime)

	return result
}

// diagnose turns the outcome of one row into a Diagnostic and logs it.
func (c *Converter) diagnose(logger *slog.Logger, rowNumber int, fields []string, item types.ItemRecord, err error) types.Diagnostic {
	diag := types.Diagnostic{RowNumber: rowNumber, Outcome: types.OutcomeAccepted}
	if row, ok := csvparser.ParsePurchaseRow(rowNumber, fields); ok {
		diag.TransactionNumber = row.TransactionNumber
		diag.SerialNumber = row.SerialNumber
	}

	if err == nil {
		logger.Info("converter.row.accepted",
			"row", rowNumber,
			"transaction", item.TransactionNumber,
			"brand", item.Brand,
			"article", item.ArticleType,
		)
		return diag
	}

	rej, ok := AsRejection(err)
	if !ok {
		rej = malformed("error", "%v", err)
	}
	diag.Outcome = rej.Outcome
	diag.Reason = rej.Reason
	diag.Detail = rej.Detail

	attrs := []any{
		"row", rowNumber,
		"transaction", diag.TransactionNumber,
		"outcome", string(rej.Outcome),
		"reason", rej.Reason,
		"detail", rej.Detail,
	}
	switch {
	case rej.Reason == ReasonFutureDated:
		logger.Warn("converter.row.future_dated", attrs...)
	case rej.Outcome == types.OutcomeMalformed:
		logger.Warn("converter.row.rejected", attrs...)
	default:
		logger.Info("converter.row.rejected", attrs...)
	}
	return diag
}

func (c *Converter) continueOnError() bool {
	return c.cfg.ContinueOnError == nil || *c.cfg.ContinueOnError
}

func (c *Converter) writeArtefacts(logger *slog.Logger, result *Result, run types.RunConfig, startTime time.Time) {
	endTime := c.now()
	stats := result.Stats

	if c.cfg.SummaryDir != "" {
		var rejected []types.Diagnostic
		for _, d := range result.Diagnostics {
			if d.Outcome != types.OutcomeAccepted {
				rejected = append(rejected, d)
			}
		}
		path, err := utils.WriteSummaryLog(utils.RunSummary{
			RunID:            result.RunID,
			StartTime:        startTime,
			EndTime:          endTime,
			LicenseNumber:    run.LicenseNumber,
			PurchasesFile:    result.PurchasesFile,
			SerialsFile:      result.SerialsFile,
			OutputFile:       result.OutputFile,
			ArchivePath:      result.ArchivePath,
			RowsRead:         stats.RowsRead,
			Accepted:         stats.Accepted,
			Filtered:         stats.Filtered,
			Malformed:        stats.Malformed,
			ValidationErrors: stats.ValidationErrors,
			Reasons:          stats.Reasons,
			Rejected:         rejected,
		}, c.cfg.SummaryDir)
		if err != nil {
			logger.Error("converter.summary.failed", "error", err)
		} else {
			logger.Info("converter.summary.ok", "path", path)
		}
	}

	if c.cfg.ReportFile != "" {
		err := report.Write(c.cfg.ReportFile, report.Summary{
			RunID:         result.RunID,
			StartedAt:     startTime,
			LicenseNumber: run.LicenseNumber,
			PurchasesFile: result.PurchasesFile,
			SerialsFile:   result.SerialsFile,
			OutputFile:    result.OutputFile,
			RowsRead:      stats.RowsRead,
			Accepted:      stats.Accepted,
			Filtered:      stats.Filtered,
			Malformed:     stats.Malformed,
			Reasons:       stats.Reasons,
		}, result.Items, result.Diagnostics)
		if err != nil {
			logger.Error("converter.report.failed", "error", err)
		} else {
			logger.Info("report.xlsx.ok", "path", c.cfg.ReportFile, "items", len(result.Items))
		}
	}

	c.metrics.ObserveRun(endTime.Sub(startTime), endTime)
	if c.cfg.MetricsFile != "" {
		if err := c.metrics.WriteTextfile(c.cfg.MetricsFile); err != nil {
			logger.Error("converter.metrics.failed", "error", err)
		}
	}
}

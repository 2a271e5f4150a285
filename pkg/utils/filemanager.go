// =============================================================================
// AIMsi to CAPSS Converter - File Manager Utility
// =============================================================================
//
// This module provides the file handling around a conversion run:
//   - Archiving the previous upload document before it is overwritten
//   - Atomic writes of the new document
//   - The plain-text run summary
//
// ARCHIVAL STRATEGY:
//   - The output document is overwritten on every run
//   - When an archive directory is configured, the previous document is
//     copied there first under a timestamped, collision-free name
//   - A missing previous document is not an error
//
// =============================================================================

package utils

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ginjaninja78/aimsi-capps-converter/internal/types"
)

// =============================================================================
// FILE ARCHIVAL
// =============================================================================

// ArchiveOutputFile copies an existing output document into archiveDir.
//
// PARAMETERS:
//   - outputPath: The document about to be overwritten.
//   - archiveDir: The archive directory. Created when missing.
//   - now: Timestamp used in the archive name.
//
// RETURNS:
//   - The path of the archived copy, or "" when there was nothing to archive.
//   - An error if the copy fails.
//
// EXAMPLE:
//
//	capps_upload.xml -> archive/capps_upload_20251110_115005_a1b2c3d4.xml
func ArchiveOutputFile(outputPath, archiveDir string, now time.Time) (string, error) {
	if archiveDir == "" || !FileExists(outputPath) {
		return "", nil
	}

	if err := os.MkdirAll(archiveDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}

	archivePath := filepath.Join(archiveDir, archiveName(outputPath, now))
	if err := copyFile(outputPath, archivePath); err != nil {
		return "", fmt.Errorf("failed to copy file to archive: %w", err)
	}

	return archivePath, nil
}

// archiveName builds "<stem>_<timestamp>_<short uuid><ext>".
func archiveName(outputPath string, now time.Time) string {
	base := filepath.Base(outputPath)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	id := strings.SplitN(uuid.New().String(), "-", 2)[0]
	return fmt.Sprintf("%s_%s_%s%s", stem, now.Format("20060102_150405"), id, ext)
}

// =============================================================================
// ATOMIC WRITES
// =============================================================================

// WriteFileAtomic writes data to a temporary file next to path and renames it
// into place, so readers never observe a partial document.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// =============================================================================
// PROCESSING SUMMARY
// =============================================================================

// RunSummary contains summary information about one conversion run.
type RunSummary struct {
	RunID            string
	StartTime        time.Time
	EndTime          time.Time
	LicenseNumber    string
	PurchasesFile    string
	SerialsFile      string
	OutputFile       string
	ArchivePath      string
	RowsRead         int
	Accepted         int
	Filtered         int
	Malformed        int
	ValidationErrors int

	// Reasons counts rejected rows by reason.
	Reasons map[string]int

	// Rejected lists the diagnostics of every row that was not accepted.
	Rejected []types.Diagnostic
}

const rule = "================================================================================\n"

// WriteSummaryLog writes a run summary to a text file.
//
// PARAMETERS:
//   - summary: The run summary.
//   - outputDir: The directory to write the summary file.
//
// RETURNS:
//   - The path to the summary file.
//   - An error if writing fails.
func WriteSummaryLog(summary RunSummary, outputDir string) (string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create summary directory: %w", err)
	}

	name := fmt.Sprintf("capps_summary_%s.txt", summary.EndTime.Format("20060102_150405"))
	if summary.RunID != "" {
		name = fmt.Sprintf("capps_summary_%s_%s.txt",
			summary.EndTime.Format("20060102_150405"),
			strings.SplitN(summary.RunID, "-", 2)[0])
	}
	summaryPath := filepath.Join(outputDir, name)

	file, err := os.Create(summaryPath)
	if err != nil {
		return "", fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	writeSummary(w, summary)

	if err := w.Flush(); err != nil {
		return "", fmt.Errorf("failed to flush summary file: %w", err)
	}
	return summaryPath, nil
}

func writeSummary(w io.Writer, s RunSummary) {
	fmt.Fprintf(w, "AIMsi to CAPSS Converter - Run Summary\n%s\n", rule)
	fmt.Fprintf(w, "Run Information:\n")
	fmt.Fprintf(w, "  Run ID:         %s\n", s.RunID)
	fmt.Fprintf(w, "  Start Time:     %s\n", s.StartTime.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "  End Time:       %s\n", s.EndTime.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "  Duration:       %s\n", s.EndTime.Sub(s.StartTime))
	fmt.Fprintf(w, "  License:        %s\n", s.LicenseNumber)
	fmt.Fprintf(w, "  Purchases:      %s\n", s.PurchasesFile)
	fmt.Fprintf(w, "  Serials:        %s\n", s.SerialsFile)
	fmt.Fprintf(w, "  Output:         %s\n", s.OutputFile)
	if s.ArchivePath != "" {
		fmt.Fprintf(w, "  Archived:       %s\n", s.ArchivePath)
	}

	fmt.Fprintf(w, "\nStatistics:\n")
	fmt.Fprintf(w, "  Rows Read:          %d\n", s.RowsRead)
	fmt.Fprintf(w, "  Accepted:           %d\n", s.Accepted)
	fmt.Fprintf(w, "  Filtered:           %d\n", s.Filtered)
	fmt.Fprintf(w, "  Malformed:          %d\n", s.Malformed)
	fmt.Fprintf(w, "  Validation Errors:  %d\n\n", s.ValidationErrors)

	if len(s.Reasons) > 0 {
		reasons := make([]string, 0, len(s.Reasons))
		for r := range s.Reasons {
			reasons = append(reasons, r)
		}
		sort.Strings(reasons)

		fmt.Fprintf(w, "Rejections By Reason:\n")
		for _, r := range reasons {
			fmt.Fprintf(w, "  %-20s %d\n", r+":", s.Reasons[r])
		}
		fmt.Fprintln(w)
	}

	if len(s.Rejected) > 0 {
		fmt.Fprintf(w, "Rejected Rows:\n")
		fmt.Fprintf(w, "--------------------------------------------------------------------------------\n")
		for _, d := range s.Rejected {
			fmt.Fprintf(w, "  Row %d  txn=%s  serial=%s  %s/%s", d.RowNumber, d.TransactionNumber, d.SerialNumber, d.Outcome, d.Reason)
			if d.Detail != "" {
				fmt.Fprintf(w, "  %s", d.Detail)
			}
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "%sEnd of Summary\n", rule)
}

// =============================================================================
// UTILITY FUNCTIONS
// =============================================================================

// copyFile copies a file from src to dst.
func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	destFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		return err
	}
	return destFile.Sync()
}

// FileExists checks if a regular file exists at path.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

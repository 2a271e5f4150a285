package converter

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/ginjaninja78/aimsi-capps-converter/internal/brand"
	"github.com/ginjaninja78/aimsi-capps-converter/internal/config"
	"github.com/ginjaninja78/aimsi-capps-converter/internal/csvparser"
	"github.com/ginjaninja78/aimsi-capps-converter/internal/metrics"
	"github.com/ginjaninja78/aimsi-capps-converter/internal/types"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// serialsLine builds an 11-column serials row.
func serialsLine(serial, description, subcategory string) string {
	cols := make([]string, csvparser.SerialMinColumns)
	cols[csvparser.SerialColumnSerialNumber] = serial
	cols[csvparser.SerialColumnDescription] = description
	cols[csvparser.SerialColumnSubcategoryID] = subcategory
	return strings.Join(cols, ",")
}

type fixture struct {
	dir       string
	purchases string
	serials   string
	cfg       *config.MainConfig
}

func newFixture(t *testing.T, purchases []string) fixture {
	t.Helper()
	dir := t.TempDir()

	f := fixture{
		dir:       dir,
		purchases: filepath.Join(dir, "purchases.csv"),
		serials:   filepath.Join(dir, "serials.csv"),
		cfg: &config.MainConfig{
			OutputDir:  filepath.Join(dir, "out"),
			OutputFile: "capps_upload.xml",
		},
	}

	serials := strings.Join([]string{
		serialsLine("ABC123", "FENDER STRATOCASTER", "3"),
		serialsLine("DEF456", "GIBSON LES PAUL BLACK", "3"),
		serialsLine("BLANK1", "", "3"),
	}, "\n") + "\n"
	if err := os.WriteFile(f.serials, []byte(serials), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(f.purchases, []byte(strings.Join(purchases, "\n")+"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	return f
}

func (f fixture) converter(rec *metrics.Registry) *Converter {
	extractor := brand.NewExtractor(brand.NewMemoryStore(), nil, quietLogger())
	return New(f.cfg, extractor, rec, quietLogger()).WithClock(func() time.Time { return runStart })
}

var mixedPurchases = []string{
	`"11/10/2025 11:50:05 AM","1001","150.00","3","ABC123"`,
	`"11/10/2025 11:50:05 AM","1002","50.00","3","ABC123"`,
	`"11/10/2025 11:50:05 AM","1003","150.00","3","ISI9999"`,
	`"11/10/2025 11:50:05 AM","1004","150.00","3","BLANK1"`,
	`"11/10/2025 11:50:05 AM","1005","150.00"`,
	`"11/09/2025 02:15:00 PM","1006","$1,200.00","3","DEF456"`,
	`"11/10/2025 11:50:05 AM","1001","175.00","3","ABC123"`,
}

func TestRunEndToEnd(t *testing.T) {
	f := newFixture(t, mixedPurchases)
	f.cfg.SummaryDir = filepath.Join(f.dir, "summaries")
	f.cfg.ReportFile = filepath.Join(f.dir, "review.xlsx")
	f.cfg.MetricsFile = filepath.Join(f.dir, "capps.prom")
	rec := metrics.NewRegistry()

	result := f.converter(rec).Run(context.Background(), f.purchases, f.serials, testRun())
	if result.Error != nil {
		t.Fatalf("Run: %v", result.Error)
	}
	if !result.Success || result.OutputFile != filepath.Join(f.dir, "out", "capps_upload.xml") {
		t.Errorf("result = %+v", result)
	}

	stats := result.Stats
	if stats.RowsRead != 7 || stats.Accepted != 3 || stats.Filtered != 3 || stats.Malformed != 1 {
		t.Errorf("stats = %+v", stats)
	}
	for reason, want := range map[string]int{
		ReasonBelowMinCost:       1,
		ReasonISISerial:          1,
		ReasonMissingDescription: 1,
		ReasonShortRow:           1,
	} {
		if stats.Reasons[reason] != want {
			t.Errorf("Reasons[%s] = %d, want %d", reason, stats.Reasons[reason], want)
		}
	}

	// Input order is preserved.
	var got []string
	for _, it := range result.Items {
		got = append(got, it.TransactionNumber+"/"+it.Brand+"/"+it.Color)
	}
	if strings.Join(got, ",") != "1001/FENDER/Other,1006/GIBSON/BLACK,1001/FENDER/Other" {
		t.Errorf("items = %v", got)
	}

	if len(result.Diagnostics) != 7 {
		t.Fatalf("diagnostics = %d, want one per row", len(result.Diagnostics))
	}
	if d := result.Diagnostics[2]; d.RowNumber != 3 || d.TransactionNumber != "1003" || d.Reason != ReasonISISerial {
		t.Errorf("diagnostic 3 = %+v", d)
	}

	doc, err := os.ReadFile(result.OutputFile)
	if err != nil {
		t.Fatal(err)
	}
	s := string(doc)
	if !strings.Contains(s, `licenseNumber="LIC123"`) {
		t.Error("document lacks license number")
	}
	if n := strings.Count(s, "<propertyTransaction>"); n != 3 {
		t.Errorf("propertyTransaction count = %d, want 3", n)
	}
	if !strings.Contains(s, "<amount>1200.00</amount>") {
		t.Error("decorated amount not normalized")
	}

	for _, path := range []string{f.cfg.ReportFile, f.cfg.MetricsFile} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("artefact %s: %v", path, err)
		}
	}
	if entries, _ := os.ReadDir(f.cfg.SummaryDir); len(entries) != 1 {
		t.Errorf("summary files = %d", len(entries))
	}

	if got := testutil.ToFloat64(rec.Rows.WithLabelValues("accepted")); got != 3 {
		t.Errorf("accepted counter = %v", got)
	}
	if got := testutil.ToFloat64(rec.BrandSources.WithLabelValues("cache")); got != 1 {
		t.Errorf("cache resolutions = %v, want 1 for the repeated description", got)
	}
}

func TestRunKeepsDuplicateTransactionNumbers(t *testing.T) {
	// AIMsi transaction numbers are not deduplicated; both rows are reported.
	f := newFixture(t, []string{
		`"11/10/2025 11:50:05 AM","2001","150.00","3","ABC123"`,
		`"11/10/2025 11:51:05 AM","2001","160.00","3","DEF456"`,
	})
	result := f.converter(nil).Run(context.Background(), f.purchases, f.serials, testRun())
	if result.Error != nil {
		t.Fatal(result.Error)
	}
	if len(result.Items) != 2 || result.Items[0].TransactionNumber != result.Items[1].TransactionNumber {
		t.Errorf("items = %+v", result.Items)
	}
}

func TestRunMissingInputFiles(t *testing.T) {
	f := newFixture(t, mixedPurchases)

	_, err := f.converter(nil).Convert(context.Background(), f.purchases, filepath.Join(f.dir, "nope.csv"), testRun())
	if !errors.Is(err, ErrInputFile) || !strings.Contains(err.Error(), "nope.csv") {
		t.Errorf("missing serials: err = %v", err)
	}

	_, err = f.converter(nil).Convert(context.Background(), filepath.Join(f.dir, "gone.csv"), f.serials, testRun())
	if !errors.Is(err, ErrInputFile) || !strings.Contains(err.Error(), "gone.csv") {
		t.Errorf("missing purchases: err = %v", err)
	}

	if _, err := os.Stat(f.cfg.OutputPath()); !os.IsNotExist(err) {
		t.Error("output written for a failed run")
	}
}

func TestRunUnreadableSerialsStillWritesDocument(t *testing.T) {
	f := newFixture(t, mixedPurchases)
	// Opens, then fails on read.
	unreadable := t.TempDir()

	result := f.converter(nil).Run(context.Background(), f.purchases, unreadable, testRun())
	if result.Error != nil || !result.Success {
		t.Fatalf("result = %+v", result)
	}
	if result.Stats.Accepted != 0 || result.Stats.Reasons[ReasonSerialNotFound] != 4 {
		t.Errorf("stats = %+v", result.Stats)
	}
	doc, err := os.ReadFile(result.OutputFile)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(doc), `<bulkUploadData licenseNumber="LIC123"/>`) {
		t.Errorf("document:\n%s", doc)
	}
}

func TestRunInvalidRunConfig(t *testing.T) {
	f := newFixture(t, mixedPurchases)
	run := testRun()
	run.LicenseNumber = " "

	result := f.converter(nil).Run(context.Background(), f.purchases, f.serials, run)
	if result.Error == nil || result.Success {
		t.Fatalf("result = %+v", result)
	}
	if _, err := os.Stat(f.cfg.OutputPath()); !os.IsNotExist(err) {
		t.Error("output written for an invalid run")
	}
}

func TestRunNoAcceptedRows(t *testing.T) {
	f := newFixture(t, []string{`"11/10/2025 11:50:05 AM","1","5.00","3","ABC123"`})
	path, err := f.converter(nil).Convert(context.Background(), f.purchases, f.serials, testRun())
	if err != nil {
		t.Fatal(err)
	}
	doc, _ := os.ReadFile(path)
	if !strings.Contains(string(doc), `<bulkUploadData licenseNumber="LIC123"/>`) {
		t.Errorf("empty document:\n%s", doc)
	}
}

func TestRunArchivesPreviousOutput(t *testing.T) {
	f := newFixture(t, mixedPurchases)
	f.cfg.ArchiveDir = filepath.Join(f.dir, "archive")
	c := f.converter(nil)

	first := c.Run(context.Background(), f.purchases, f.serials, testRun())
	if first.Error != nil || first.ArchivePath != "" {
		t.Fatalf("first run: %+v", first)
	}
	second := c.Run(context.Background(), f.purchases, f.serials, testRun())
	if second.Error != nil || second.ArchivePath == "" {
		t.Fatalf("second run: %+v", second)
	}
	if _, err := os.Stat(second.ArchivePath); err != nil {
		t.Errorf("archive copy: %v", err)
	}
	if first.RunID == second.RunID {
		t.Error("run ids repeat")
	}
}

func TestRunCancelled(t *testing.T) {
	f := newFixture(t, mixedPurchases)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.converter(nil).Convert(ctx, f.purchases, f.serials, testRun())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if _, err := os.Stat(f.cfg.OutputPath()); !os.IsNotExist(err) {
		t.Error("output written for a cancelled run")
	}
}

func TestRunValidationPolicy(t *testing.T) {
	longTxn := strings.Repeat("7", 60)
	rows := []string{`"11/10/2025 11:50:05 AM","` + longTxn + `","150.00","3","ABC123"`}

	f := newFixture(t, rows)
	result := f.converter(nil).Run(context.Background(), f.purchases, f.serials, testRun())
	if result.Error != nil || result.Stats.ValidationErrors != 1 {
		t.Errorf("continue on error: err = %v, findings = %d", result.Error, result.Stats.ValidationErrors)
	}

	f = newFixture(t, rows)
	stop := false
	f.cfg.ContinueOnError = &stop
	_, err := f.converter(nil).Convert(context.Background(), f.purchases, f.serials, testRun())
	if !errors.Is(err, ErrValidation) {
		t.Errorf("stop on error: err = %v", err)
	}
}

func TestRunDefaultsEmployeeName(t *testing.T) {
	f := newFixture(t, mixedPurchases[:1])
	run := testRun()
	run.EmployeeName = ""

	path, err := f.converter(nil).Convert(context.Background(), f.purchases, f.serials, run)
	if err != nil {
		t.Fatal(err)
	}
	doc, _ := os.ReadFile(path)
	if !strings.Contains(string(doc), "<employeeName>"+types.DefaultEmployeeName+"</employeeName>") {
		t.Errorf("document:\n%s", doc)
	}
}

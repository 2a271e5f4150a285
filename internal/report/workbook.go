// Package report writes the XLSX review workbook of a conversion run: the
// accepted items, every rejected row with its reason, and the run totals.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/aimsi-capps-converter/internal/types"
)

// Sheet names.
const (
	SheetAccepted = "Accepted"
	SheetRejected = "Rejected"
	SheetSummary  = "Summary"
)

// Summary carries the run totals shown on the Summary sheet.
type Summary struct {
	RunID         string
	StartedAt     time.Time
	LicenseNumber string
	PurchasesFile string
	SerialsFile   string
	OutputFile    string
	RowsRead      int
	Accepted      int
	Filtered      int
	Malformed     int
	Reasons       map[string]int
}

var (
	acceptedHeaders = []string{
		"Row", "Transaction Time", "Loan/Buy Number", "Amount", "Article",
		"Brand", "Model", "Serial Number", "Color",
	}
	rejectedHeaders = []string{
		"Row", "Transaction Number", "Serial Number", "Outcome", "Reason", "Detail",
	}
)

// Build assembles the workbook. Rejected holds only non-accepted diagnostics;
// accepted diagnostics are skipped.
func Build(summary Summary, items []types.ItemRecord, diagnostics []types.Diagnostic) (*excelize.File, error) {
	f := excelize.NewFile()

	// NewFile starts with Sheet1; reuse it as the first sheet.
	if err := f.SetSheetName(f.GetSheetName(0), SheetAccepted); err != nil {
		return nil, err
	}
	for _, name := range []string{SheetRejected, SheetSummary} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, err
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}

	if err := writeAccepted(f, bold, items); err != nil {
		return nil, err
	}
	if err := writeRejected(f, bold, diagnostics); err != nil {
		return nil, err
	}
	if err := writeSummary(f, bold, summary); err != nil {
		return nil, err
	}

	f.SetActiveSheet(0)
	return f, nil
}

// Write builds the workbook and saves it to path.
func Write(path string, summary Summary, items []types.ItemRecord, diagnostics []types.Diagnostic) error {
	f, err := Build(summary, items, diagnostics)
	if err != nil {
		return fmt.Errorf("build workbook: %w", err)
	}
	defer f.Close()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("report dir: %w", err)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}

func writeHeader(f *excelize.File, sheet string, style int, headers []string) error {
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(headers), 1)
	if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
		return err
	}
	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func writeRow(f *excelize.File, sheet string, row int, values ...any) error {
	cell, _ := excelize.CoordinatesToCellName(1, row)
	return f.SetSheetRow(sheet, cell, &values)
}

func writeAccepted(f *excelize.File, style int, items []types.ItemRecord) error {
	if err := writeHeader(f, SheetAccepted, style, acceptedHeaders); err != nil {
		return err
	}

	for i, it := range items {
		var amount any = it.Amount
		if d, err := decimal.NewFromString(it.Amount); err == nil {
			amount = d.InexactFloat64()
		}
		if err := writeRow(f, SheetAccepted, i+2,
			it.SourceRow, it.TransactionTime, it.TransactionNumber, amount, it.ArticleType,
			it.Brand, it.Description, it.SerialNumber, it.Color,
		); err != nil {
			return fmt.Errorf("accepted row %d: %w", i+1, err)
		}
	}

	_ = f.SetColWidth(SheetAccepted, "B", "C", 20)
	_ = f.SetColWidth(SheetAccepted, "E", "F", 22)
	_ = f.SetColWidth(SheetAccepted, "G", "G", 40)
	_ = f.SetColWidth(SheetAccepted, "H", "H", 18)
	return nil
}

func writeRejected(f *excelize.File, style int, diagnostics []types.Diagnostic) error {
	if err := writeHeader(f, SheetRejected, style, rejectedHeaders); err != nil {
		return err
	}

	row := 2
	for _, d := range diagnostics {
		if d.Outcome == types.OutcomeAccepted {
			continue
		}
		if err := writeRow(f, SheetRejected, row,
			d.RowNumber, d.TransactionNumber, d.SerialNumber, string(d.Outcome), d.Reason, d.Detail,
		); err != nil {
			return fmt.Errorf("rejected row %d: %w", d.RowNumber, err)
		}
		row++
	}

	_ = f.SetColWidth(SheetRejected, "B", "E", 20)
	_ = f.SetColWidth(SheetRejected, "F", "F", 60)
	return nil
}

func writeSummary(f *excelize.File, style int, s Summary) error {
	if err := writeHeader(f, SheetSummary, style, []string{"Field", "Value"}); err != nil {
		return err
	}

	started := ""
	if !s.StartedAt.IsZero() {
		started = s.StartedAt.Format(time.RFC3339)
	}
	rows := [][2]any{
		{"Run ID", s.RunID},
		{"Started", started},
		{"License", s.LicenseNumber},
		{"Purchases file", s.PurchasesFile},
		{"Serials file", s.SerialsFile},
		{"Output file", s.OutputFile},
		{"Rows read", s.RowsRead},
		{"Accepted", s.Accepted},
		{"Filtered", s.Filtered},
		{"Malformed", s.Malformed},
	}

	reasons := make([]string, 0, len(s.Reasons))
	for r := range s.Reasons {
		reasons = append(reasons, r)
	}
	sort.Strings(reasons)
	for _, r := range reasons {
		rows = append(rows, [2]any{"Rejected: " + r, s.Reasons[r]})
	}

	for i, r := range rows {
		if err := writeRow(f, SheetSummary, i+2, r[0], r[1]); err != nil {
			return err
		}
	}
	_ = f.SetColWidth(SheetSummary, "A", "A", 28)
	_ = f.SetColWidth(SheetSummary, "B", "B", 48)
	return nil
}

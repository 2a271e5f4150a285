// =============================================================================
// AIMsi to CAPSS Converter - CSV Parser Module
// =============================================================================
//
// This module is the schema adapter for the two headerless AIMsi exports.
// Everything positional lives here: the rest of the application works with
// the named fields of types.SerialRecord and types.PurchaseRow.
//
// FILE FORMATS:
//   Serials export (>= 11 columns, no header):
//     [1]  serial number
//     [6]  description
//     [10] subcategory id
//
//   Purchases export (>= 5 columns, no header):
//     [0]  timestamp "MM/DD/YYYY hh:mm:ss AM/PM"
//     [1]  transaction number
//     [2]  amount ("$" and "," allowed)
//     [3]  category id
//     [4]  serial number
//
// ENCODING:
//   Lines that are valid UTF-8 are kept as is. Any other line is decoded
//   as Windows-1252 through charmap, so stray high bytes from older AIMsi
//   exports never abort a run.
//
// =============================================================================

package csvparser

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	"github.com/ginjaninja78/aimsi-capps-converter/internal/types"
)

// =============================================================================
// COLUMN MAPPING
// =============================================================================

// Serials export columns.
const (
	SerialColumnSerialNumber  = 1
	SerialColumnDescription   = 6
	SerialColumnSubcategoryID = 10

	// SerialMinColumns is the minimum width of an indexed serials row.
	SerialMinColumns = 11
)

// Purchases export columns.
const (
	PurchaseColumnTimestamp         = 0
	PurchaseColumnTransactionNumber = 1
	PurchaseColumnAmount            = 2
	PurchaseColumnCategoryID        = 3
	PurchaseColumnSerialNumber      = 4

	// PurchaseMinColumns is the minimum width of a well-formed purchases row.
	PurchaseMinColumns = 5
)

// =============================================================================
// SERIALS INDEX
// =============================================================================

// SerialsIndex maps a serial number to its inventory record.
// It is built once per run and read-only afterwards.
type SerialsIndex map[string]types.SerialRecord

// Lookup returns the record for serial.
func (idx SerialsIndex) Lookup(serial string) (types.SerialRecord, bool) {
	rec, ok := idx[serial]
	return rec, ok
}

// LoadSerials opens the serials export and builds the index.
//
// PARAMETERS:
//   - filePath: The path to the serials CSV file.
//   - logger:   Receives the diagnostic when the file is unreadable mid-way.
//
// RETURNS:
//   - The index.
//   - An error only if the file cannot be opened at all.
//
// A read error after the file was opened degrades the index to empty instead
// of failing the run.
func LoadSerials(filePath string, logger *slog.Logger) (SerialsIndex, error) {
	if logger == nil {
		logger = slog.Default()
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open serials file: %w", err)
	}
	defer file.Close()

	index, err := ReadSerials(file)
	if err != nil {
		logger.Warn("csvparser.serials.unreadable",
			"file", filePath,
			"error", err,
			"hint", "continuing with an empty serials index",
		)
		return SerialsIndex{}, nil
	}

	logger.Info("csvparser.serials.loaded", "file", filePath, "serials", len(index))
	return index, nil
}

// ReadSerials builds a serials index from r.
//
// INDEXING RULES:
//   - Rows narrower than SerialMinColumns are skipped.
//   - Rows with an empty (trimmed) serial number are skipped.
//   - A later row with the same serial number overwrites the earlier one.
func ReadSerials(r io.Reader) (SerialsIndex, error) {
	reader := newReader(r)
	index := make(SerialsIndex)

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read serials CSV: %w", err)
		}

		if len(row) < SerialMinColumns {
			continue
		}

		serial := strings.TrimSpace(row[SerialColumnSerialNumber])
		if serial == "" {
			continue
		}

		index[serial] = types.SerialRecord{
			SerialNumber:  serial,
			Description:   column(row, SerialColumnDescription),
			SubcategoryID: column(row, SerialColumnSubcategoryID),
		}
	}

	return index, nil
}

// =============================================================================
// PURCHASES STREAM
// =============================================================================

// PurchaseReader streams the purchases export one record at a time so that
// rows are processed in strict file order.
//
// USAGE:
//   reader, err := OpenPurchases(filePath)
//   if err != nil {
//       return err
//   }
//   defer reader.Close()
//
//   for reader.Next() {
//       fields := reader.Fields()
//       // Process the row...
//   }
//
//   if err := reader.Err(); err != nil {
//       return err
//   }
type PurchaseReader struct {
	closer    io.Closer
	reader    *csv.Reader
	current   []string
	rowNumber int
	err       error
}

// OpenPurchases opens the purchases export for streaming.
func OpenPurchases(filePath string) (*PurchaseReader, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open purchases file: %w", err)
	}

	p := NewPurchaseReader(file)
	p.closer = file
	return p, nil
}

// NewPurchaseReader streams purchases from r. The caller owns r.
func NewPurchaseReader(r io.Reader) *PurchaseReader {
	return &PurchaseReader{reader: newReader(r)}
}

// Next advances to the next record. Returns false at EOF or on a read error.
func (p *PurchaseReader) Next() bool {
	if p.err != nil {
		return false
	}

	row, err := p.reader.Read()
	if err == io.EOF {
		return false
	}
	if err != nil {
		p.err = fmt.Errorf("error reading purchases row %d: %w", p.rowNumber+1, err)
		return false
	}

	p.rowNumber++
	p.current = row
	return true
}

// Fields returns the raw fields of the current record.
func (p *PurchaseReader) Fields() []string {
	return p.current
}

// RowNumber returns the 1-based number of the current record.
func (p *PurchaseReader) RowNumber() int {
	return p.rowNumber
}

// Err returns the read error that stopped iteration, if any.
func (p *PurchaseReader) Err() error {
	return p.err
}

// Close closes the underlying file when the reader opened it.
func (p *PurchaseReader) Close() error {
	if p.closer == nil {
		return nil
	}
	return p.closer.Close()
}

// ParsePurchaseRow maps raw purchases fields onto a PurchaseRow.
// It returns false when the row has fewer than PurchaseMinColumns fields.
func ParsePurchaseRow(rowNumber int, fields []string) (types.PurchaseRow, bool) {
	if len(fields) < PurchaseMinColumns {
		return types.PurchaseRow{RowNumber: rowNumber}, false
	}

	return types.PurchaseRow{
		RowNumber:         rowNumber,
		Timestamp:         strings.TrimSpace(fields[PurchaseColumnTimestamp]),
		TransactionNumber: unquote(fields[PurchaseColumnTransactionNumber]),
		Amount:            strings.TrimSpace(fields[PurchaseColumnAmount]),
		CategoryID:        strings.TrimSpace(fields[PurchaseColumnCategoryID]),
		SerialNumber:      unquote(fields[PurchaseColumnSerialNumber]),
	}, true
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// newReader configures a CSV reader for AIMsi exports.
func newReader(r io.Reader) *csv.Reader {
	decoded := &lineDecoder{
		src:      bufio.NewReader(r),
		fallback: charmap.Windows1252.NewDecoder(),
	}
	reader := csv.NewReader(decoded)

	// Rows are ragged; width checks happen per row.
	reader.FieldsPerRecord = -1

	// AIMsi does not always quote embedded quotes.
	reader.LazyQuotes = true
	reader.ReuseRecord = false

	return reader
}

// lineDecoder passes valid UTF-8 lines through and decodes every other line
// with fallback.
type lineDecoder struct {
	src      *bufio.Reader
	fallback *encoding.Decoder
	pending  []byte
	err      error
}

func (d *lineDecoder) Read(p []byte) (int, error) {
	for len(d.pending) == 0 {
		if d.err != nil {
			return 0, d.err
		}
		line, err := d.src.ReadBytes('\n')
		d.err = err
		if len(line) == 0 {
			continue
		}
		if !utf8.Valid(line) {
			if decoded, derr := d.fallback.Bytes(line); derr == nil {
				line = decoded
			}
		}
		d.pending = line
	}
	n := copy(p, d.pending)
	d.pending = d.pending[n:]
	return n, nil
}

// column returns the trimmed value at index, or "" when the row is too short.
func column(row []string, index int) string {
	if index >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[index])
}

// unquote trims whitespace and any stray surrounding double quotes.
func unquote(s string) string {
	return strings.Trim(strings.TrimSpace(s), `"`)
}

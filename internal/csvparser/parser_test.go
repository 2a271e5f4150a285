package csvparser

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// serialsRow builds an 11-column serials row with the given serial,
// description and subcategory in their positional slots.
func serialsRow(serial, description, subcategory string) string {
	cols := make([]string, SerialMinColumns)
	for i := range cols {
		cols[i] = "x"
	}
	cols[SerialColumnSerialNumber] = serial
	cols[SerialColumnDescription] = description
	cols[SerialColumnSubcategoryID] = subcategory
	return strings.Join(cols, ",")
}

func TestReadSerials(t *testing.T) {
	input := strings.Join([]string{
		serialsRow("ABC123", "FENDER STRATOCASTER", "3"),
		serialsRow("  ", "NO SERIAL", "1"),
		"a,SHORT,row",
		serialsRow("DUP1", "FIRST", "1"),
		serialsRow(" DUP1 ", " SECOND ", " 4 "),
		serialsRow("BLANK", "", "2"),
	}, "\n")

	index, err := ReadSerials(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadSerials: %v", err)
	}

	if len(index) != 3 {
		t.Fatalf("len(index) = %d, want 3: %+v", len(index), index)
	}

	rec, ok := index.Lookup("ABC123")
	if !ok || rec.Description != "FENDER STRATOCASTER" || rec.SubcategoryID != "3" {
		t.Errorf("ABC123 = %+v, %v", rec, ok)
	}

	if rec := index["DUP1"]; rec.Description != "SECOND" || rec.SubcategoryID != "4" {
		t.Errorf("duplicate serial should keep the last row, got %+v", rec)
	}

	if rec, ok := index.Lookup("BLANK"); !ok || rec.Description != "" {
		t.Errorf("blank description should still be indexed, got %+v, %v", rec, ok)
	}

	if _, ok := index.Lookup("SHORT"); ok {
		t.Error("short rows must not be indexed")
	}
}

func TestReadSerialsDecodesWindows1252(t *testing.T) {
	// 0xE9 is "é" in Windows-1252.
	row := serialsRow("S1", "CAF\xe9 RACER", "3")

	index, err := ReadSerials(strings.NewReader(row))
	if err != nil {
		t.Fatalf("ReadSerials: %v", err)
	}
	if got := index["S1"].Description; got != "CAFé RACER" {
		t.Errorf("Description = %q", got)
	}
}

func TestReadSerialsKeepsUTF8(t *testing.T) {
	row := serialsRow("S1", "CAFÉ RACER ™", "3") + "\n" + serialsRow("S2", "CAF\xe9 BLEND", "3")

	index, err := ReadSerials(strings.NewReader(row))
	if err != nil {
		t.Fatalf("ReadSerials: %v", err)
	}
	if got := index["S1"].Description; got != "CAFÉ RACER ™" {
		t.Errorf("UTF-8 description = %q", got)
	}
	if got := index["S2"].Description; got != "CAFé BLEND" {
		t.Errorf("Windows-1252 description = %q", got)
	}
}

// failingReader returns data and then err.
type failingReader struct {
	data []byte
	err  error
}

func (r *failingReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, r.err
	}
	n := copy(p, r.data)
	r.data = r.data[n:]
	return n, nil
}

func TestReadSerialsReadError(t *testing.T) {
	broken := errors.New("device gone")
	r := &failingReader{data: []byte(serialsRow("S1", "FENDER", "3") + "\n"), err: broken}

	if _, err := ReadSerials(r); !errors.Is(err, broken) {
		t.Errorf("err = %v, want %v", err, broken)
	}
}

func TestLoadSerialsUnreadableDegradesToEmpty(t *testing.T) {
	// A directory opens but fails on the first read.
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	index, err := LoadSerials(t.TempDir(), logger)
	if err != nil {
		t.Fatalf("LoadSerials: %v", err)
	}
	if len(index) != 0 {
		t.Errorf("index = %+v, want empty", index)
	}
	if !strings.Contains(logs.String(), "csvparser.serials.unreadable") {
		t.Errorf("missing warning, logs:\n%s", logs.String())
	}
}

func TestLoadSerialsMissingFile(t *testing.T) {
	_, err := LoadSerials(filepath.Join(t.TempDir(), "missing.csv"), nil)
	if err == nil {
		t.Fatal("expected an error for a missing serials file")
	}
}

func TestPurchaseReaderPreservesOrder(t *testing.T) {
	input := `"11/10/2025 11:50:05 AM","1001","150.00","3","ABC123"
short,row
11/10/2025 12:00:00 PM, 1002 ,"$1,250.00",3, "XYZ"
`
	path := filepath.Join(t.TempDir(), "purchases.csv")
	if err := os.WriteFile(path, []byte(input), 0644); err != nil {
		t.Fatal(err)
	}

	reader, err := OpenPurchases(path)
	if err != nil {
		t.Fatalf("OpenPurchases: %v", err)
	}
	defer reader.Close()

	var rows [][]string
	var numbers []int
	for reader.Next() {
		rows = append(rows, reader.Fields())
		numbers = append(numbers, reader.RowNumber())
	}
	if err := reader.Err(); err != nil {
		t.Fatalf("Err: %v", err)
	}

	if len(rows) != 3 {
		t.Fatalf("read %d rows, want 3", len(rows))
	}
	if numbers[0] != 1 || numbers[2] != 3 {
		t.Errorf("row numbers = %v", numbers)
	}

	if _, ok := ParsePurchaseRow(2, rows[1]); ok {
		t.Error("a two-column row must be rejected by ParsePurchaseRow")
	}

	row, ok := ParsePurchaseRow(3, rows[2])
	if !ok {
		t.Fatal("third row should parse")
	}
	if row.TransactionNumber != "1002" || row.Amount != "$1,250.00" || row.SerialNumber != "XYZ" || row.CategoryID != "3" {
		t.Errorf("row = %+v", row)
	}
	if row.Timestamp != "11/10/2025 12:00:00 PM" {
		t.Errorf("Timestamp = %q", row.Timestamp)
	}
}

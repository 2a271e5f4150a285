package xmlwriter

import (
	"encoding/xml"
	"strings"
	"testing"

	"github.com/ginjaninja78/aimsi-capps-converter/internal/types"
)

func sampleItem(txn, serial, description string) types.ItemRecord {
	return types.ItemRecord{
		TransactionTime:    "2025-11-10T11:50:05",
		TransactionType:    types.TransactionTypeBuy,
		TransactionNumber:  txn,
		Amount:             "150.00",
		ArticleType:        "GUITAR",
		Brand:              "FENDER",
		Description:        description,
		SerialNumber:       serial,
		Color:              "Other",
		Inscription:        types.PlaceholderNone,
		OwnerAppliedNumber: types.PlaceholderNone,
		Pattern:            types.PlaceholderNone,
		Material:           types.PlaceholderUnknown,
		Size:               types.PlaceholderUnknown,
		SizeUnit:           types.PlaceholderUnknown,
	}
}

// childNames returns the local names of the direct children of the first
// element called parent.
func childNames(t *testing.T, doc []byte, parent string) []string {
	t.Helper()

	dec := xml.NewDecoder(strings.NewReader(string(doc)))
	var names []string
	depth := -1
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		switch el := tok.(type) {
		case xml.StartElement:
			if depth >= 0 {
				depth++
				if depth == 1 {
					names = append(names, el.Name.Local)
				}
			} else if el.Name.Local == parent {
				depth = 0
			}
		case xml.EndElement:
			if depth == 0 {
				return names
			}
			if depth > 0 {
				depth--
			}
		}
	}
	return names
}

func TestBuildItemFieldOrder(t *testing.T) {
	run := types.RunConfig{LicenseNumber: "LIC-1", EmployeeName: "Pat"}
	doc, err := Build(run, []types.ItemRecord{sampleItem("1001", "ABC123", "FENDER STRATOCASTER")})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	want := []string{
		"type", "loanBuyNumber", "amount", "article", "brand", "model", "serialNumber",
		"description", "inscription", "ownerAppliedNumber", "pattern", "color",
		"material", "itemSize", "sizeUnit",
	}
	got := childNames(t, doc, "item")
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("item fields:\n got %v\nwant %v", got, want)
	}

	tx := childNames(t, doc, "propertyTransaction")
	if strings.Join(tx, ",") != "transactionTime,customer,store,items" {
		t.Errorf("propertyTransaction children = %v", tx)
	}
}

func TestBuildOmitsEmptySerial(t *testing.T) {
	run := types.RunConfig{LicenseNumber: "LIC-1"}
	doc, err := Build(run, []types.ItemRecord{sampleItem("1001", "", "FENDER STRATOCASTER")})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if strings.Contains(string(doc), "<serialNumber>") {
		t.Error("document contains serialNumber for a record without one")
	}
	if !strings.Contains(string(doc), "<employeeName>"+types.DefaultEmployeeName+"</employeeName>") {
		t.Error("default employee name not used")
	}
}

func TestBuildCustomerBlock(t *testing.T) {
	run := types.RunConfig{LicenseNumber: "LIC-1"}
	doc, err := Build(run, []types.ItemRecord{sampleItem("1", "S1", "X")})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	s := string(doc)

	for _, want := range []string{
		`<dateOfBirth xsi:nil="true"/>`,
		`<noFinger xsi:nil="true"/>`,
		"<custLastName>on file</custLastName>",
		"<yearOfExpirationText>on file</yearOfExpirationText>",
	} {
		if !strings.Contains(s, want) {
			t.Errorf("document missing %s", want)
		}
	}

	customer := childNames(t, doc, "customer")
	if len(customer) != 22 || customer[9] != "dateOfBirth" || customer[17] != "id" || customer[18] != "noFinger" {
		t.Errorf("customer children = %v", customer)
	}
}

func TestBuildPreservesOrderAndFormat(t *testing.T) {
	run := types.RunConfig{LicenseNumber: "LIC-1"}
	items := []types.ItemRecord{
		sampleItem("3", "C", "third"),
		sampleItem("1", "A", "first"),
		sampleItem("2", "B", "second"),
	}
	doc, err := Build(run, items)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	s := string(doc)

	i3 := strings.Index(s, "<loanBuyNumber>3<")
	i1 := strings.Index(s, "<loanBuyNumber>1<")
	i2 := strings.Index(s, "<loanBuyNumber>2<")
	if !(i3 < i1 && i1 < i2) {
		t.Errorf("transactions reordered: %d %d %d", i3, i1, i2)
	}

	if !strings.HasPrefix(s, `<?xml version="1.0" encoding="UTF-8"?>`) {
		t.Error("missing XML declaration")
	}
	if !strings.Contains(s, "\n    <bulkUploadData licenseNumber=\"LIC-1\">\n        <propertyTransaction>\n") {
		t.Error("unexpected indentation")
	}
	for n, line := range strings.Split(strings.TrimSuffix(s, "\n"), "\n") {
		if strings.TrimSpace(line) == "" {
			t.Errorf("blank line at %d", n+1)
		}
	}

	var parsed struct {
		XMLName xml.Name `xml:"capssUpload"`
		Bulk    struct {
			License      string `xml:"licenseNumber,attr"`
			Transactions []struct {
				Time string `xml:"transactionTime"`
			} `xml:"propertyTransaction"`
		} `xml:"bulkUploadData"`
	}
	if err := xml.Unmarshal(doc, &parsed); err != nil {
		t.Fatalf("document is not well-formed: %v", err)
	}
	if parsed.Bulk.License != "LIC-1" || len(parsed.Bulk.Transactions) != 3 {
		t.Errorf("parsed = %+v", parsed.Bulk)
	}
}

func TestBuildEmpty(t *testing.T) {
	doc, err := Build(types.RunConfig{LicenseNumber: "LIC-1"}, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !strings.Contains(string(doc), `<bulkUploadData licenseNumber="LIC-1"/>`) {
		t.Errorf("empty document = %s", doc)
	}
}

func TestBuildRequiresLicense(t *testing.T) {
	if _, err := Build(types.RunConfig{LicenseNumber: "  "}, nil); err == nil {
		t.Error("Build accepted an empty license number")
	}
}

func TestEscaping(t *testing.T) {
	run := types.RunConfig{LicenseNumber: `A&B"`}
	doc, err := Build(run, []types.ItemRecord{sampleItem("1", "S1", "AMP <50W> & CAB\x01")})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	s := string(doc)
	if !strings.Contains(s, `licenseNumber="A&amp;B&quot;"`) {
		t.Error("attribute not escaped")
	}
	if !strings.Contains(s, "<model>AMP &lt;50W&gt; &amp; CAB</model>") {
		t.Error("text not escaped")
	}
}

func TestMultiLineValuesAddNoLines(t *testing.T) {
	doc, err := Build(types.RunConfig{LicenseNumber: "LIC-1"}, []types.ItemRecord{
		sampleItem("1", "S1", "FENDER\n\nSTRAT\r\nBLACK"),
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	s := string(doc)
	if !strings.Contains(s, "<model>FENDER STRAT BLACK</model>") {
		t.Errorf("line breaks not collapsed:\n%s", s)
	}
	for i, line := range strings.Split(strings.TrimSuffix(s, "\n"), "\n") {
		if strings.TrimSpace(line) == "" {
			t.Errorf("blank line %d in document:\n%s", i+1, s)
		}
	}
}

// =============================================================================
// AIMsi to CAPSS Converter - XML Writer Module
// =============================================================================
//
// This module builds the CAPSS bulk-upload document from accepted item
// records. Element names, nesting and order are the regulator's wire format.
//
// XML STRUCTURE:
//
//   <capssUpload xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">
//     <bulkUploadData licenseNumber="...">
//       <propertyTransaction>             <!-- one per accepted row, in order -->
//         <transactionTime>2025-11-10T11:50:05</transactionTime>
//         <customer>...</customer>        <!-- privacy placeholders -->
//         <store>
//           <employeeName>...</employeeName>
//         </store>
//         <items>
//           <item>...</item>
//         </items>
//       </propertyTransaction>
//     </bulkUploadData>
//   </capssUpload>
//
// CUSTOMER BLOCK:
//   No personal data is transmitted. Every customer field carries the literal
//   "on file"; dateOfBirth and noFinger are empty with xsi:nil="true".
//
// =============================================================================

package xmlwriter

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/ginjaninja78/aimsi-capps-converter/internal/types"
)

// Document constants.
const (
	RootElement     = "capssUpload"
	XSINamespace    = "http://www.w3.org/2001/XMLSchema-instance"
	OnFile          = "on file"
	DefaultFileName = "capps_upload.xml"
)

// =============================================================================
// XML GENERATION OPTIONS
// =============================================================================

// GenerateOptions contains options for XML generation.
type GenerateOptions struct {
	// Indent is the string used for indentation.
	// Default: four spaces
	Indent string

	// IncludeXMLDeclaration determines whether to include the XML declaration.
	// Default: true
	IncludeXMLDeclaration bool
}

// DefaultGenerateOptions returns the default generation options.
func DefaultGenerateOptions() GenerateOptions {
	return GenerateOptions{
		Indent:                "    ",
		IncludeXMLDeclaration: true,
	}
}

// =============================================================================
// XML GENERATION FUNCTIONS
// =============================================================================

// Build creates the upload document.
//
// PARAMETERS:
//   - run:   Supplies the license number and employee name.
//   - items: Accepted records in input order. An empty slice yields a valid
//     document with an empty bulkUploadData element.
//
// RETURNS:
//   - The XML document as a byte slice.
//   - An error if the license number is missing.
func Build(run types.RunConfig, items []types.ItemRecord) ([]byte, error) {
	return BuildWithOptions(run, items, DefaultGenerateOptions())
}

// BuildWithOptions creates the upload document with custom options.
func BuildWithOptions(run types.RunConfig, items []types.ItemRecord, options GenerateOptions) ([]byte, error) {
	if strings.TrimSpace(run.LicenseNumber) == "" {
		return nil, fmt.Errorf("license number is required")
	}

	var buffer bytes.Buffer
	if options.IncludeXMLDeclaration {
		buffer.WriteString(xml.Header)
	}

	writeElement(&buffer, BuildDocument(run, items), options.Indent, 0)
	return buffer.Bytes(), nil
}

// =============================================================================
// XML DOCUMENT BUILDING
// =============================================================================

// XMLElement represents a generic XML element. An element with neither value
// nor children is written self-closing.
type XMLElement struct {
	XMLName    xml.Name
	Attributes []xml.Attr
	Value      string
	Children   []XMLElement
}

// BuildDocument constructs the element tree.
func BuildDocument(run types.RunConfig, items []types.ItemRecord) XMLElement {
	employee := run.EmployeeName
	if employee == "" {
		employee = types.DefaultEmployeeName
	}

	bulk := element("bulkUploadData")
	bulk.Attributes = []xml.Attr{attr("licenseNumber", run.LicenseNumber)}
	for _, item := range items {
		bulk.Children = append(bulk.Children, buildTransactionElement(item, employee))
	}

	root := element(RootElement, bulk)
	root.Attributes = []xml.Attr{attr("xmlns:xsi", XSINamespace)}
	return root
}

// buildTransactionElement constructs one propertyTransaction.
func buildTransactionElement(item types.ItemRecord, employee string) XMLElement {
	return element("propertyTransaction",
		text("transactionTime", item.TransactionTime),
		buildCustomerElement(),
		element("store", text("employeeName", employee)),
		element("items", buildItemElement(item)),
	)
}

// buildCustomerElement constructs the placeholder customer block.
func buildCustomerElement() XMLElement {
	return element("customer",
		text("custLastName", OnFile),
		text("custFirstName", OnFile),
		text("custMiddleName", OnFile),
		text("gender", OnFile),
		text("race", OnFile),
		text("hairColor", OnFile),
		text("eyeColor", OnFile),
		text("height", OnFile),
		text("weight", OnFile),
		nilElement("dateOfBirth"),
		text("dateOfBirthText", OnFile),
		text("streetAddress", OnFile),
		text("city", OnFile),
		text("state", OnFile),
		text("postalCode", OnFile),
		text("phoneNumber", OnFile),
		text("nonUSAddress", OnFile),
		element("id",
			text("type", OnFile),
			text("number", OnFile),
			text("dateOfIssueText", OnFile),
			text("issueState", OnFile),
			text("issueCountry", OnFile),
			text("yearOfExpirationText", OnFile),
		),
		nilElement("noFinger"),
		text("noFingerText", OnFile),
		text("signature", OnFile),
		text("fingerprint", OnFile),
	)
}

// buildItemElement constructs one item. serialNumber is omitted when the
// record carries none.
func buildItemElement(item types.ItemRecord) XMLElement {
	el := element("item",
		text("type", item.TransactionType),
		text("loanBuyNumber", item.TransactionNumber),
		text("amount", item.Amount),
		text("article", item.ArticleType),
		text("brand", item.Brand),
		text("model", item.Description),
	)
	if item.SerialNumber != "" {
		el.Children = append(el.Children, text("serialNumber", item.SerialNumber))
	}
	el.Children = append(el.Children,
		text("description", item.Description),
		text("inscription", item.Inscription),
		text("ownerAppliedNumber", item.OwnerAppliedNumber),
		text("pattern", item.Pattern),
		text("color", item.Color),
		text("material", item.Material),
		text("itemSize", item.Size),
		text("sizeUnit", item.SizeUnit),
	)
	return el
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func element(name string, children ...XMLElement) XMLElement {
	return XMLElement{XMLName: xml.Name{Local: name}, Children: children}
}

func text(name, value string) XMLElement {
	return XMLElement{XMLName: xml.Name{Local: name}, Value: value}
}

func nilElement(name string) XMLElement {
	return XMLElement{
		XMLName:    xml.Name{Local: name},
		Attributes: []xml.Attr{attr("xsi:nil", "true")},
	}
}

func attr(name, value string) xml.Attr {
	return xml.Attr{Name: xml.Name{Local: name}, Value: value}
}

// writeElement writes an XML element to the buffer with indentation.
func writeElement(buffer *bytes.Buffer, element XMLElement, indent string, level int) {
	buffer.WriteString(strings.Repeat(indent, level))

	buffer.WriteString("<")
	buffer.WriteString(element.XMLName.Local)
	for _, a := range element.Attributes {
		fmt.Fprintf(buffer, " %s=\"%s\"", a.Name.Local, escapeXML(a.Value))
	}

	if len(element.Children) == 0 && element.Value == "" {
		buffer.WriteString("/>\n")
		return
	}

	buffer.WriteString(">")

	if len(element.Children) == 0 {
		buffer.WriteString(escapeXML(element.Value))
	} else {
		buffer.WriteString("\n")
		for _, child := range element.Children {
			writeElement(buffer, child, indent, level+1)
		}
		buffer.WriteString(strings.Repeat(indent, level))
	}

	buffer.WriteString("</")
	buffer.WriteString(element.XMLName.Local)
	buffer.WriteString(">\n")
}

// escapeXML escapes special characters for XML. A run of line breaks becomes
// one space so values never add lines to the document. Control characters
// that XML 1.0 cannot carry are dropped.
func escapeXML(s string) string {
	var buffer bytes.Buffer

	inBreak := false
	for _, r := range s {
		if r == '\n' || r == '\r' {
			if !inBreak {
				buffer.WriteByte(' ')
			}
			inBreak = true
			continue
		}
		inBreak = false

		switch r {
		case '&':
			buffer.WriteString("&amp;")
		case '<':
			buffer.WriteString("&lt;")
		case '>':
			buffer.WriteString("&gt;")
		case '"':
			buffer.WriteString("&quot;")
		case '\'':
			buffer.WriteString("&apos;")
		case '\t':
			buffer.WriteRune(r)
		default:
			if r < 0x20 {
				continue
			}
			buffer.WriteRune(r)
		}
	}

	return buffer.String()
}

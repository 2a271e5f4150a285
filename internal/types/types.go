// =============================================================================
// AIMsi to CAPSS Converter - Shared Types
// =============================================================================
//
// This package contains shared types used across multiple modules to avoid
// import cycles. Types defined here are used by:
//   - csvparser   (SerialRecord, PurchaseRow)
//   - converter   (RunConfig, ItemRecord, Diagnostic)
//   - validation  (ItemRecord)
//   - xmlwriter   (RunConfig, ItemRecord)
//   - report      (ItemRecord, Diagnostic)
//
// =============================================================================

package types

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// INPUT RECORDS
// =============================================================================

// SerialRecord is one inventory row from the serials export, keyed by serial
// number in the serials index.
type SerialRecord struct {
	// SerialNumber is the trimmed serial number (the index key).
	SerialNumber string

	// Description is the free-text item description, e.g. "FENDER STRATOCASTER".
	Description string

	// SubcategoryID is the opaque POS subcategory identifier.
	SubcategoryID string
}

// PurchaseRow is one row of the purchases export with named fields.
// It is consumed once by the row processor and never persisted.
type PurchaseRow struct {
	// RowNumber is the 1-based record number within the purchases file.
	RowNumber int

	// Timestamp is the raw "MM/DD/YYYY hh:mm:ss AM/PM" value.
	Timestamp string

	// TransactionNumber is the POS transaction number (not guaranteed unique).
	TransactionNumber string

	// Amount is the raw amount, possibly decorated with "$" and ",".
	Amount string

	// CategoryID is the opaque POS category identifier.
	CategoryID string

	// SerialNumber joins the row to the serials index.
	SerialNumber string
}

// =============================================================================
// OUTPUT RECORDS
// =============================================================================

// Placeholder values for item fields the POS export does not carry.
const (
	TransactionTypeBuy = "BUY"
	PlaceholderNone    = "None"
	PlaceholderUnknown = "Unknown"
)

// ItemRecord is one accepted purchase, ready to be emitted as a
// propertyTransaction block. It is immutable once built.
type ItemRecord struct {
	// TransactionTime is ISO-8601 with seconds precision and no zone,
	// e.g. "2025-11-10T11:50:05".
	TransactionTime string

	// TransactionType is always "BUY" for AIMsi purchase exports.
	TransactionType string

	// TransactionNumber is emitted as loanBuyNumber.
	TransactionNumber string

	// Amount is the normalized decimal amount with two fraction digits.
	Amount string

	// ArticleType is the label from the category classifier.
	ArticleType string

	// Brand is the resolved brand name or "UNKNOWN".
	Brand string

	// Description is emitted both as model and description.
	Description string

	// SerialNumber is empty when it must be omitted from the document.
	SerialNumber string

	// Color is one of the canonical colors or "Other".
	Color string

	Inscription        string
	OwnerAppliedNumber string
	Pattern            string
	Material           string
	Size               string
	SizeUnit           string

	// SourceRow is the purchases file row this record came from.
	SourceRow int
}

// =============================================================================
// RUN CONFIGURATION
// =============================================================================

// RunConfig holds the caller-supplied parameters of one conversion run.
// It is immutable for the duration of the run.
type RunConfig struct {
	// LicenseNumber is the secondhand dealer license, emitted on bulkUploadData.
	LicenseNumber string

	// MinCost is the minimum amount a purchase must reach to be reported.
	MinCost decimal.Decimal

	// DaysLookback is the maximum age, in whole days, of a reported purchase.
	DaysLookback int

	// IncludeISISerials disables the ISI serial exclusion when true.
	IncludeISISerials bool

	// EmployeeName is emitted in every store block.
	EmployeeName string
}

// DefaultEmployeeName is used when no employee name is supplied.
const DefaultEmployeeName = "Store Employee"

// Validate checks the run parameters.
func (c RunConfig) Validate() error {
	var errs []error
	if strings.TrimSpace(c.LicenseNumber) == "" {
		errs = append(errs, errors.New("license number is required"))
	}
	if c.MinCost.IsNegative() {
		errs = append(errs, fmt.Errorf("min cost must be >= 0, got %s", c.MinCost))
	}
	if c.DaysLookback < 1 {
		errs = append(errs, fmt.Errorf("days lookback must be >= 1, got %d", c.DaysLookback))
	}
	return errors.Join(errs...)
}

// =============================================================================
// DIAGNOSTICS
// =============================================================================

// Outcome classifies what happened to one purchases row.
type Outcome string

const (
	OutcomeAccepted  Outcome = "accepted"
	OutcomeFiltered  Outcome = "filtered"
	OutcomeMalformed Outcome = "malformed"
)

// Diagnostic is the structured event reported for every purchases row.
type Diagnostic struct {
	RowNumber         int
	TransactionNumber string
	SerialNumber      string
	Outcome           Outcome

	// Reason is the machine-readable rejection reason; empty when accepted.
	Reason string

	// Detail is a human-readable explanation.
	Detail string
}

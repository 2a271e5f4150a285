// =============================================================================
// AIMsi to CAPSS Converter - Row Processor
// =============================================================================
//
// This module turns one purchases row into an ItemRecord or a Rejection.
//
// DECISION ORDER (the first failing check wins):
//   1. Shape        at least five positional fields          -> malformed
//   2. Recency      timestamp parses and is 0..lookback days -> malformed / filtered
//   3. Amount       parses as a decimal and >= minimum cost  -> malformed / filtered
//   4. ISI serial   excluded unless the run includes them    -> filtered
//   5. Join         serial present in the serials index      -> filtered
//   6. Description  joined description is not blank          -> filtered
//
// Only a row that passes every check reaches the classifier, color table and
// brand extractor.
//
// =============================================================================

package converter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/aimsi-capps-converter/internal/brand"
	"github.com/ginjaninja78/aimsi-capps-converter/internal/classifier"
	"github.com/ginjaninja78/aimsi-capps-converter/internal/csvparser"
	"github.com/ginjaninja78/aimsi-capps-converter/internal/types"
)

// =============================================================================
// REJECTIONS
// =============================================================================

// Rejection reasons.
const (
	ReasonShortRow           = "short_row"
	ReasonBadTimestamp       = "bad_timestamp"
	ReasonTooOld             = "too_old"
	ReasonFutureDated        = "future_dated"
	ReasonBadAmount          = "bad_amount"
	ReasonBelowMinCost       = "below_min_cost"
	ReasonISISerial          = "isi_serial"
	ReasonSerialNotFound     = "serial_not_found"
	ReasonMissingDescription = "missing_description"
)

// Rejection is returned by ProcessRow for a row that is skipped. It is a soft
// outcome, never a run failure.
type Rejection struct {
	Reason  string
	Detail  string
	Outcome types.Outcome
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("%s: %s", r.Reason, r.Detail)
}

func malformed(reason, format string, args ...any) *Rejection {
	return &Rejection{Reason: reason, Detail: fmt.Sprintf(format, args...), Outcome: types.OutcomeMalformed}
}

func filtered(reason, format string, args ...any) *Rejection {
	return &Rejection{Reason: reason, Detail: fmt.Sprintf(format, args...), Outcome: types.OutcomeFiltered}
}

// AsRejection unwraps err into a Rejection.
func AsRejection(err error) (*Rejection, bool) {
	var rej *Rejection
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}

// =============================================================================
// FIELD FORMATS
// =============================================================================

const (
	// SourceTimeLayout is the AIMsi timestamp, e.g. "11/10/2025 11:50:05 AM".
	SourceTimeLayout = "1/2/2006 3:04:05 PM"

	// TransactionTimeLayout is the CAPSS transactionTime format.
	TransactionTimeLayout = "2006-01-02T15:04:05"

	isiPrefix = "ISI"
)

// ParseTimestamp parses an AIMsi timestamp as wall-clock time in loc.
// The AM/PM marker is case-insensitive.
func ParseTimestamp(s string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(SourceTimeLayout, strings.ToUpper(strings.TrimSpace(s)), loc)
}

// DaysAgo returns the whole wall-clock days from t to now, rounded down, so a
// timestamp one hour in the future is -1 days old. Both times are compared by
// their calendar fields; a daylight-saving change in between does not shift
// the count.
func DaysAgo(now, t time.Time) int {
	const day = 24 * time.Hour
	d := wallClock(now).Sub(wallClock(t))
	days := int(d / day)
	if d < 0 && d%day != 0 {
		days--
	}
	return days
}

func wallClock(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

// ParseAmount strips "$" and "," and parses the rest as a decimal.
func ParseAmount(s string) (decimal.Decimal, error) {
	cleaned := strings.NewReplacer("$", "", ",", "").Replace(s)
	return decimal.NewFromString(strings.TrimSpace(cleaned))
}

// EmitSerialNumber reports whether serial belongs in the document.
func EmitSerialNumber(serial string) bool {
	return serial != "" && serial != "0"
}

// =============================================================================
// PROCESSOR
// =============================================================================

// BrandResolver is the brand tier chain consulted for accepted rows.
type BrandResolver interface {
	Resolve(ctx context.Context, description string) brand.Resolution
}

// Processor applies the row checks of one run. It is not safe for concurrent
// use: rows must be processed in input order.
type Processor struct {
	run        types.RunConfig
	serials    csvparser.SerialsIndex
	brands     BrandResolver
	categories classifier.CategoryMap
	colors     classifier.ColorTable
	now        time.Time
}

// NewProcessor builds a processor for one run. now is the run start time;
// row ages are measured against it.
func NewProcessor(run types.RunConfig, serials csvparser.SerialsIndex, brands BrandResolver, now time.Time) *Processor {
	if serials == nil {
		serials = csvparser.SerialsIndex{}
	}
	return &Processor{
		run:        run,
		serials:    serials,
		brands:     brands,
		categories: classifier.Categories,
		colors:     classifier.Colors,
		now:        now,
	}
}

// ProcessRow checks one raw purchases row.
//
// PARAMETERS:
//   - ctx:       Bounds the remote brand lookup.
//   - rowNumber: 1-based position in the purchases file.
//   - fields:    The raw CSV fields.
//
// RETURNS:
//   - The item record when every check passes.
//   - A *Rejection otherwise.
func (p *Processor) ProcessRow(ctx context.Context, rowNumber int, fields []string) (types.ItemRecord, error) {
	// =========================================================================
	// CHECK 1: SHAPE
	// =========================================================================

	row, ok := csvparser.ParsePurchaseRow(rowNumber, fields)
	if !ok {
		return types.ItemRecord{}, malformed(ReasonShortRow,
			"row has %d columns, need %d", len(fields), csvparser.PurchaseMinColumns)
	}

	// =========================================================================
	// CHECK 2: RECENCY
	// =========================================================================

	ts, err := ParseTimestamp(row.Timestamp, p.now.Location())
	if err != nil {
		return types.ItemRecord{}, malformed(ReasonBadTimestamp,
			"cannot parse timestamp %q", row.Timestamp)
	}

	age := DaysAgo(p.now, ts)
	if age > p.run.DaysLookback {
		return types.ItemRecord{}, filtered(ReasonTooOld,
			"%d days old, lookback is %d", age, p.run.DaysLookback)
	}
	if age < 0 {
		return types.ItemRecord{}, filtered(ReasonFutureDated,
			"transaction %s is dated %s, after run start", row.TransactionNumber, row.Timestamp)
	}

	// =========================================================================
	// CHECK 3: AMOUNT
	// =========================================================================

	amount, err := ParseAmount(row.Amount)
	if err != nil {
		return types.ItemRecord{}, malformed(ReasonBadAmount,
			"cannot parse amount %q", row.Amount)
	}
	if amount.LessThan(p.run.MinCost) {
		return types.ItemRecord{}, filtered(ReasonBelowMinCost,
			"amount %s is below %s", amount, p.run.MinCost)
	}

	// =========================================================================
	// CHECK 4: ISI SERIALS
	// =========================================================================

	if !p.run.IncludeISISerials && strings.HasPrefix(strings.ToUpper(row.SerialNumber), isiPrefix) {
		return types.ItemRecord{}, filtered(ReasonISISerial,
			"serial %s is in-store inventory", row.SerialNumber)
	}

	// =========================================================================
	// CHECK 5: JOIN
	// =========================================================================

	if row.SerialNumber == "" {
		return types.ItemRecord{}, filtered(ReasonSerialNotFound, "row has no serial number")
	}
	serial, ok := p.serials.Lookup(row.SerialNumber)
	if !ok {
		return types.ItemRecord{}, filtered(ReasonSerialNotFound,
			"serial %s is not in the serials export", row.SerialNumber)
	}

	// =========================================================================
	// CHECK 6: DESCRIPTION
	// =========================================================================

	description := strings.TrimSpace(serial.Description)
	if description == "" {
		return types.ItemRecord{}, filtered(ReasonMissingDescription,
			"serial %s has no description", row.SerialNumber)
	}

	// =========================================================================
	// BUILD ITEM RECORD
	// =========================================================================

	item := types.ItemRecord{
		TransactionTime:    ts.Format(TransactionTimeLayout),
		TransactionType:    types.TransactionTypeBuy,
		TransactionNumber:  row.TransactionNumber,
		Amount:             amount.StringFixed(2),
		ArticleType:        p.categories.Classify(row.CategoryID, serial.SubcategoryID),
		Brand:              p.resolveBrand(ctx, description),
		Description:        description,
		Color:              p.colors.Extract(description),
		Inscription:        types.PlaceholderNone,
		OwnerAppliedNumber: types.PlaceholderNone,
		Pattern:            types.PlaceholderNone,
		Material:           types.PlaceholderUnknown,
		Size:               types.PlaceholderUnknown,
		SizeUnit:           types.PlaceholderUnknown,
		SourceRow:          rowNumber,
	}
	if EmitSerialNumber(row.SerialNumber) {
		item.SerialNumber = row.SerialNumber
	}

	return item, nil
}

func (p *Processor) resolveBrand(ctx context.Context, description string) string {
	if p.brands == nil {
		return brand.Unknown
	}
	return p.brands.Resolve(ctx, description).Brand
}

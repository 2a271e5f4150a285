// =============================================================================
// AIMsi to CAPSS Converter - Validation Engine
// =============================================================================
//
// This module checks accepted item records against the CAPSS item field rules
// before the document is built. The row processor already guarantees most of
// these; validation catches what it cannot, such as an oversized brand coming
// back from the cache or a serial number longer than the regulator accepts.
//
// VALIDATION STRATEGY:
//   Every record is checked field by field against FieldRules:
//   1. Required fields must be non-empty
//   2. Maximum length, in characters
//   3. Data type (string, decimal(n), datetime(layout), enum(a|b))
//
// ERROR HANDLING:
//   - Errors are collected, not returned on the first failure
//   - Each error names the record's row number and transaction number
//   - "warning" findings never fail validation; "error" findings do
//
// =============================================================================

package validation

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/aimsi-capps-converter/internal/types"
)

// Severities.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// =============================================================================
// VALIDATION ERROR TYPES
// =============================================================================

// ValidationError represents a single validation finding.
type ValidationError struct {
	// Severity is SeverityError or SeverityWarning.
	Severity string

	// Field is the CAPSS element name.
	Field string

	// Value is the offending value.
	Value string

	// Rule is the violated rule: required, max_length, data_type or custom.
	Rule string

	// Message is a human-readable error message.
	Message string

	// RowNumber is the purchases file row the record came from.
	RowNumber int

	// TransactionNumber identifies the record in the document.
	TransactionNumber string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] Row %d, Transaction %s, Field '%s': %s (value: '%s')",
		strings.ToUpper(e.Severity),
		e.RowNumber,
		e.TransactionNumber,
		e.Field,
		e.Message,
		e.Value,
	)
}

// =============================================================================
// VALIDATION RESULT
// =============================================================================

// ValidationResult contains the results of validation.
type ValidationResult struct {
	// IsValid is true if there are no error-severity findings.
	IsValid bool

	// Errors contains all findings, warnings included.
	Errors []*ValidationError

	ErrorCount   int
	WarningCount int

	// RecordsValidated is the number of item records checked.
	RecordsValidated int
}

// =============================================================================
// FIELD RULES
// =============================================================================

// FieldRule describes one item element.
type FieldRule struct {
	// Field is the CAPSS element name.
	Field string

	// Value extracts the field from a record.
	Value func(types.ItemRecord) string

	Required bool

	// MaxLength in characters; 0 means unbounded.
	MaxLength int

	// DataType is "string", "decimal(n)", "datetime(layout)" or "enum(a|b)".
	DataType string

	// Severity of violations. Default: error
	Severity string
}

// TransactionTimeLayout matches the transactionTime element.
const TransactionTimeLayout = "2006-01-02T15:04:05"

// MaxBrandLength mirrors the cap applied to remote brand answers.
const MaxBrandLength = 49

// FieldRules is the CAPSS item rule set.
var FieldRules = []FieldRule{
	{Field: "transactionTime", Value: func(r types.ItemRecord) string { return r.TransactionTime },
		Required: true, DataType: "datetime(" + TransactionTimeLayout + ")"},
	{Field: "type", Value: func(r types.ItemRecord) string { return r.TransactionType },
		Required: true, DataType: "enum(" + types.TransactionTypeBuy + ")"},
	{Field: "loanBuyNumber", Value: func(r types.ItemRecord) string { return r.TransactionNumber },
		Required: true, MaxLength: 50},
	{Field: "amount", Value: func(r types.ItemRecord) string { return r.Amount },
		Required: true, DataType: "decimal(2)"},
	{Field: "article", Value: func(r types.ItemRecord) string { return r.ArticleType },
		Required: true},
	{Field: "brand", Value: func(r types.ItemRecord) string { return r.Brand },
		Required: true, MaxLength: MaxBrandLength, Severity: SeverityWarning},
	{Field: "model", Value: func(r types.ItemRecord) string { return r.Description },
		Required: true},
	{Field: "serialNumber", Value: func(r types.ItemRecord) string { return r.SerialNumber },
		MaxLength: 50},
	{Field: "color", Value: func(r types.ItemRecord) string { return r.Color },
		Required: true},
}

// =============================================================================
// VALIDATOR
// =============================================================================

// Validator performs validation on item records.
type Validator struct {
	rules   []FieldRule
	options ValidationOptions
}

// ValidationOptions contains options for validation.
type ValidationOptions struct {
	// StopOnFirstError stops validation after the first error finding.
	StopOnFirstError bool

	// TreatWarningsAsErrors makes warnings fail validation.
	TreatWarningsAsErrors bool

	// CustomValidators run after the built-in rules, keyed by field name.
	CustomValidators map[string]CustomValidatorFunc
}

// CustomValidatorFunc returns an error message, or "" when value is valid.
type CustomValidatorFunc func(value string, record types.ItemRecord) string

// DefaultValidationOptions returns the default validation options.
func DefaultValidationOptions() ValidationOptions {
	return ValidationOptions{
		CustomValidators: make(map[string]CustomValidatorFunc),
	}
}

// NewValidator creates a Validator with the CAPSS rule set.
func NewValidator() *Validator {
	return NewValidatorWithOptions(FieldRules, DefaultValidationOptions())
}

// NewValidatorWithOptions creates a Validator with custom rules and options.
func NewValidatorWithOptions(rules []FieldRule, options ValidationOptions) *Validator {
	if options.CustomValidators == nil {
		options.CustomValidators = make(map[string]CustomValidatorFunc)
	}
	return &Validator{rules: rules, options: options}
}

// =============================================================================
// MAIN VALIDATION FUNCTION
// =============================================================================

// Validate checks items with the CAPSS rule set and returns every finding.
func Validate(items []types.ItemRecord) []*ValidationError {
	return NewValidator().ValidateAll(items).Errors
}

// ValidateAll validates all records and returns a detailed result.
func (v *Validator) ValidateAll(items []types.ItemRecord) *ValidationResult {
	result := &ValidationResult{
		IsValid:          true,
		Errors:           make([]*ValidationError, 0),
		RecordsValidated: len(items),
	}

	for _, item := range items {
		for _, err := range v.ValidateRecord(item) {
			result.Errors = append(result.Errors, err)

			if err.Severity == SeverityError {
				result.ErrorCount++
				result.IsValid = false

				if v.options.StopOnFirstError {
					return result
				}
			} else {
				result.WarningCount++

				if v.options.TreatWarningsAsErrors {
					result.IsValid = false
				}
			}
		}
	}

	return result
}

// ValidateRecord validates a single item record.
func (v *Validator) ValidateRecord(item types.ItemRecord) []*ValidationError {
	var errors []*ValidationError

	for _, rule := range v.rules {
		value := rule.Value(item)
		errors = append(errors, v.ValidateField(value, rule, item)...)

		if custom, ok := v.options.CustomValidators[rule.Field]; ok {
			if msg := custom(value, item); msg != "" {
				errors = append(errors, newError(SeverityError, rule.Field, value, "custom", msg, item))
			}
		}
	}

	return errors
}

// ValidateField validates a single value against its rule.
func (v *Validator) ValidateField(value string, rule FieldRule, item types.ItemRecord) []*ValidationError {
	severity := rule.Severity
	if severity == "" {
		severity = SeverityError
	}

	// =========================================================================
	// REQUIRED FIELD VALIDATION
	// =========================================================================

	if strings.TrimSpace(value) == "" {
		if rule.Required {
			return []*ValidationError{newError(severity, rule.Field, value, "required",
				fmt.Sprintf("Required field '%s' is empty", rule.Field), item)}
		}
		return nil
	}

	var errors []*ValidationError

	// =========================================================================
	// MAX LENGTH VALIDATION
	// =========================================================================

	if n := utf8.RuneCountInString(value); rule.MaxLength > 0 && n > rule.MaxLength {
		errors = append(errors, newError(severity, rule.Field, value, "max_length",
			fmt.Sprintf("Value exceeds maximum length of %d characters (actual: %d)", rule.MaxLength, n), item))
	}

	// =========================================================================
	// DATA TYPE VALIDATION
	// =========================================================================

	if msg := validateDataType(value, rule.DataType); msg != "" {
		errors = append(errors, newError(severity, rule.Field, value, "data_type", msg, item))
	}

	return errors
}

func newError(severity, field, value, rule, message string, item types.ItemRecord) *ValidationError {
	return &ValidationError{
		Severity:          severity,
		Field:             field,
		Value:             value,
		Rule:              rule,
		Message:           message,
		RowNumber:         item.SourceRow,
		TransactionNumber: item.TransactionNumber,
	}
}

// =============================================================================
// DATA TYPE VALIDATORS
// =============================================================================

// validateDataType returns an error message, or "" when value matches.
func validateDataType(value, dataType string) string {
	switch {
	case dataType == "" || dataType == "string":
		return ""
	case strings.HasPrefix(dataType, "decimal"):
		return validateDecimal(value, dataType)
	case strings.HasPrefix(dataType, "datetime"):
		return validateDateTime(value, extractParenthesesContent(dataType))
	case strings.HasPrefix(dataType, "enum"):
		return validateEnum(value, extractParenthesesContent(dataType))
	default:
		return ""
	}
}

// validateDecimal checks value parses as a decimal with at most the
// precision given in parentheses.
func validateDecimal(value, dataType string) string {
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return fmt.Sprintf("Value '%s' is not a valid decimal number", value)
	}

	if p := extractParenthesesContent(dataType); p != "" {
		precision, err := strconv.Atoi(p)
		if err == nil && precision >= 0 && -d.Exponent() > int32(precision) {
			return fmt.Sprintf("Value '%s' has more than %d decimal places", value, precision)
		}
	}
	return ""
}

func validateDateTime(value, layout string) string {
	if layout == "" {
		layout = time.RFC3339
	}
	if _, err := time.Parse(layout, value); err != nil {
		return fmt.Sprintf("Value '%s' does not match date format '%s'", value, layout)
	}
	return ""
}

func validateEnum(value, allowed string) string {
	for _, a := range strings.Split(allowed, "|") {
		if value == a {
			return ""
		}
	}
	return fmt.Sprintf("Value '%s' is not one of %s", value, allowed)
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// extractParenthesesContent extracts content between the first "(" and the
// last ")". Example: "decimal(2)" -> "2"
func extractParenthesesContent(s string) string {
	start := strings.Index(s, "(")
	end := strings.LastIndex(s, ")")

	if start != -1 && end > start {
		return s[start+1 : end]
	}

	return ""
}

// =============================================================================
// ERROR FORMATTING
// =============================================================================

// FormatErrors formats validation errors for display or logging.
func FormatErrors(errors []*ValidationError) string {
	if len(errors) == 0 {
		return "No validation errors."
	}

	var builder strings.Builder

	fmt.Fprintf(&builder, "Validation completed with %d finding(s):\n\n", len(errors))
	for i, err := range errors {
		fmt.Fprintf(&builder, "%d. %s\n", i+1, err.Error())
	}

	return builder.String()
}

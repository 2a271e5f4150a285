// =============================================================================
// AIMsi to CAPSS Converter - Settings Module
// =============================================================================
//
// This module persists the operator's run parameters between invocations in
// ~/.capps_converter_settings.json, the file shared with the desktop tool.
//
// FILE FORMAT:
//   A flat JSON object. min_cost and days_lookback are written as strings but
//   numbers are accepted on load. Unknown keys are ignored. The file is
//   validated against settingsSchema before it is decoded.
//
// LEGACY FORMAT:
//   When only ~/.capps_converter_settings.txt exists (key=value lines), its
//   license, employee, provider and api_key are migrated to the JSON file and
//   the text file is removed.
//
// =============================================================================

package settings

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/aimsi-capps-converter/internal/types"
	"github.com/ginjaninja78/aimsi-capps-converter/pkg/utils"
)

// ErrInvalid wraps every settings file or value problem.
var ErrInvalid = errors.New("invalid settings")

const (
	FileName       = ".capps_converter_settings.json"
	LegacyFileName = ".capps_converter_settings.txt"
)

// Defaults.
const (
	DefaultEmployee     = types.DefaultEmployeeName
	DefaultMinCost      = "100"
	DefaultDaysLookback = "5"
	DefaultProvider     = "groq"
)

// =============================================================================
// SETTINGS STRUCTURE
// =============================================================================

// Settings mirrors the settings file.
type Settings struct {
	License           string     `json:"license"`
	Employee          string     `json:"employee"`
	MinCost           flexString `json:"min_cost"`
	DaysLookback      flexString `json:"days_lookback"`
	IncludeISISerials bool       `json:"include_isi_serials"`
	CAPSSClientID     string     `json:"capss_client_id"`
	CAPSSClientSecret string     `json:"capss_client_secret"`
	Provider          string     `json:"provider"`
	APIKey            string     `json:"api_key"`
	PurchasesFile     string     `json:"purchases_file"`
	SerialsFile       string     `json:"serials_file"`
}

// flexString decodes from a JSON string or number and encodes as a string.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
	default:
		*f = flexString(data)
	}
	return nil
}

// Defaults returns the settings used when no file exists.
func Defaults() Settings {
	return Settings{
		Employee:     DefaultEmployee,
		MinCost:      DefaultMinCost,
		DaysLookback: DefaultDaysLookback,
		Provider:     DefaultProvider,
	}
}

// DefaultPath returns the settings file in the user's home directory.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return FileName
	}
	return filepath.Join(home, FileName)
}

// =============================================================================
// SCHEMA
// =============================================================================

const settingsSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "license":             {"type": "string"},
    "employee":            {"type": "string"},
    "min_cost":            {"type": ["string", "number"], "minimum": 0,
                            "pattern": "^\\s*(\\$?[0-9][0-9,]*(\\.[0-9]+)?)?\\s*$"},
    "days_lookback":       {"type": ["string", "integer"], "minimum": 1,
                            "pattern": "^\\s*([0-9]+)?\\s*$"},
    "include_isi_serials": {"type": "boolean"},
    "capss_client_id":     {"type": "string"},
    "capss_client_secret": {"type": "string"},
    "provider":            {"type": "string"},
    "api_key":             {"type": "string"},
    "purchases_file":      {"type": "string"},
    "serials_file":        {"type": "string"}
  }
}`

var schema = jsonschema.MustCompileString("capps_settings.json", settingsSchema)

// Validate checks raw settings JSON against the schema.
func Validate(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// =============================================================================
// LOAD / SAVE
// =============================================================================

// Load reads the settings file at path. A missing file yields Defaults, after
// migrating a legacy text file in the same directory if there is one.
func Load(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return migrateLegacy(path)
	}
	if err != nil {
		return Settings{}, fmt.Errorf("read settings: %w", err)
	}
	return Parse(data)
}

// Parse validates and decodes settings JSON. Keys absent from data keep
// their default values.
func Parse(data []byte) (Settings, error) {
	if err := Validate(data); err != nil {
		return Settings{}, err
	}
	s := Defaults()
	if err := json.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return s, nil
}

// Save writes the settings file atomically.
func (s Settings) Save(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return utils.WriteFileAtomic(path, append(data, '\n'))
}

func migrateLegacy(path string) (Settings, error) {
	s := Defaults()
	legacy := filepath.Join(filepath.Dir(path), LegacyFileName)

	file, err := os.Open(legacy)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return s, fmt.Errorf("read legacy settings: %w", err)
	}

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), "=")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch key {
		case "license":
			s.License = value
		case "employee":
			s.Employee = value
		case "provider":
			s.Provider = value
		case "api_key":
			s.APIKey = value
		}
	}
	file.Close()
	if err := scanner.Err(); err != nil {
		return s, fmt.Errorf("read legacy settings: %w", err)
	}

	if err := s.Save(path); err != nil {
		return s, fmt.Errorf("migrate legacy settings: %w", err)
	}
	if err := os.Remove(legacy); err != nil {
		return s, fmt.Errorf("remove legacy settings: %w", err)
	}
	return s, nil
}

// =============================================================================
// RUN PARAMETERS
// =============================================================================

// ToRunConfig converts the stored strings into run parameters. Blank numeric
// fields fall back to their defaults.
func (s Settings) ToRunConfig() (types.RunConfig, error) {
	minCost, err := ParseMinCost(string(s.MinCost))
	if err != nil {
		return types.RunConfig{}, err
	}
	days, err := ParseDaysLookback(string(s.DaysLookback))
	if err != nil {
		return types.RunConfig{}, err
	}

	employee := strings.TrimSpace(s.Employee)
	if employee == "" {
		employee = DefaultEmployee
	}

	return types.RunConfig{
		LicenseNumber:     strings.TrimSpace(s.License),
		MinCost:           minCost,
		DaysLookback:      days,
		IncludeISISerials: s.IncludeISISerials,
		EmployeeName:      employee,
	}, nil
}

// ParseMinCost parses a minimum cost such as "100", "$1,000.50" or "".
func ParseMinCost(v string) (decimal.Decimal, error) {
	v = strings.NewReplacer("$", "", ",", "").Replace(strings.TrimSpace(v))
	if v == "" {
		v = DefaultMinCost
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: min_cost %q is not a number", ErrInvalid, v)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: min_cost must be >= 0", ErrInvalid)
	}
	return d, nil
}

// ParseDaysLookback parses a whole number of days >= 1, or "" for the default.
func ParseDaysLookback(v string) (int, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		v = DefaultDaysLookback
	}
	days, err := strconv.Atoi(v)
	if err != nil || days < 1 {
		return 0, fmt.Errorf("%w: days_lookback %q must be a whole number >= 1", ErrInvalid, v)
	}
	return days, nil
}

// =============================================================================
// KEY ACCESS
// =============================================================================

// Keys lists the settings keys in file order.
var Keys = []string{
	"license", "employee", "min_cost", "days_lookback", "include_isi_serials",
	"capss_client_id", "capss_client_secret", "provider", "api_key",
	"purchases_file", "serials_file",
}

var secretKeys = map[string]bool{"capss_client_secret": true, "api_key": true}

// Get returns the value of key as text.
func (s Settings) Get(key string) (string, error) {
	switch key {
	case "license":
		return s.License, nil
	case "employee":
		return s.Employee, nil
	case "min_cost":
		return string(s.MinCost), nil
	case "days_lookback":
		return string(s.DaysLookback), nil
	case "include_isi_serials":
		return strconv.FormatBool(s.IncludeISISerials), nil
	case "capss_client_id":
		return s.CAPSSClientID, nil
	case "capss_client_secret":
		return s.CAPSSClientSecret, nil
	case "provider":
		return s.Provider, nil
	case "api_key":
		return s.APIKey, nil
	case "purchases_file":
		return s.PurchasesFile, nil
	case "serials_file":
		return s.SerialsFile, nil
	}
	return "", fmt.Errorf("%w: unknown key %q", ErrInvalid, key)
}

// Display returns the value of key with secrets masked.
func (s Settings) Display(key string) string {
	v, _ := s.Get(key)
	if secretKeys[key] && v != "" {
		if len(v) <= 4 {
			return "****"
		}
		return "****" + v[len(v)-4:]
	}
	return v
}

// Set validates value and stores it under key.
func (s *Settings) Set(key, value string) error {
	switch key {
	case "license":
		s.License = value
	case "employee":
		s.Employee = value
	case "min_cost":
		if _, err := ParseMinCost(value); err != nil {
			return err
		}
		s.MinCost = flexString(strings.TrimSpace(value))
	case "days_lookback":
		if _, err := ParseDaysLookback(value); err != nil {
			return err
		}
		s.DaysLookback = flexString(strings.TrimSpace(value))
	case "include_isi_serials":
		b, err := strconv.ParseBool(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("%w: include_isi_serials %q is not a boolean", ErrInvalid, value)
		}
		s.IncludeISISerials = b
	case "capss_client_id":
		s.CAPSSClientID = value
	case "capss_client_secret":
		s.CAPSSClientSecret = value
	case "provider":
		p := strings.ToLower(strings.TrimSpace(value))
		switch p {
		case "groq", "gemini", "none":
		default:
			return fmt.Errorf("%w: provider %q (want groq, gemini or none)", ErrInvalid, value)
		}
		s.Provider = p
	case "api_key":
		s.APIKey = value
	case "purchases_file":
		s.PurchasesFile = value
	case "serials_file":
		s.SerialsFile = value
	default:
		return fmt.Errorf("%w: unknown key %q", ErrInvalid, key)
	}
	return nil
}

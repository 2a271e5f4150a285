// =============================================================================
// AIMsi to CAPSS Converter - Configuration Module
// =============================================================================
//
// This module is responsible for loading and managing the application
// configuration. Run parameters (license, thresholds, employee) are NOT part of
// this file: they come from the settings file and command-line flags, see
// internal/settings. This file covers how the tool behaves:
//   - Where the output document and run artefacts are written
//   - Logging level and format
//   - Brand inference provider and cache backend
//   - CAPSS upload endpoints and polling limits
//
// LOAD ORDER:
//   1. Built-in defaults
//   2. config.yaml (optional; a missing file is not an error)
//   3. Environment variables (a .env file is loaded first when present)
//
// =============================================================================

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// MAIN CONFIGURATION STRUCTURE
// =============================================================================

// MainConfig holds the global application configuration.
type MainConfig struct {
	// =========================================================================
	// OUTPUT SETTINGS
	// =========================================================================

	// OutputDir is the directory where the XML document is written.
	// Default: "." (the working directory)
	OutputDir string `yaml:"output_dir"`

	// OutputFile is the name of the XML document.
	// Default: "capps_upload.xml"
	OutputFile string `yaml:"output_file"`

	// ArchiveDir receives a copy of the previous output document before it is
	// overwritten. Empty disables archival.
	ArchiveDir string `yaml:"archive_dir"`

	// SummaryDir receives a plain-text run summary. Empty disables it.
	SummaryDir string `yaml:"summary_dir"`

	// ReportFile is the path of the XLSX review workbook. Empty disables it.
	ReportFile string `yaml:"report_file"`

	// MetricsFile is the path of a Prometheus textfile with run counters.
	// Empty disables it.
	MetricsFile string `yaml:"metrics_file"`

	// =========================================================================
	// LOGGING SETTINGS
	// =========================================================================

	// LogLevel controls the verbosity of logging.
	// Valid values: "debug", "info", "warn", "error"
	// Default: "info"
	LogLevel string `yaml:"log_level"`

	// LogFormat selects the slog handler: "text" or "json".
	// Default: "text"
	LogFormat string `yaml:"log_format"`

	// =========================================================================
	// PROCESSING SETTINGS
	// =========================================================================

	// ContinueOnError determines whether item validation failures are
	// reported as warnings (true) or abort the run (false).
	// Default: true
	ContinueOnError *bool `yaml:"continue_on_error"`

	Brand BrandConfig `yaml:"brand"`
	Cache CacheConfig `yaml:"cache"`
	CAPSS CAPSSConfig `yaml:"capss"`
}

// BrandConfig configures the remote brand inference tier.
type BrandConfig struct {
	// Provider is "groq", "gemini" or "none".
	// Default: "groq" (only consulted when APIKey is set)
	Provider string `yaml:"provider"`

	// APIKey enables the remote tier when non-empty.
	APIKey string `yaml:"api_key"`

	// Model overrides the provider's default model.
	Model string `yaml:"model"`

	// BaseURL overrides the provider endpoint (tests, proxies).
	BaseURL string `yaml:"base_url"`

	// Timeout bounds a single inference call.
	// Default: 5s
	Timeout time.Duration `yaml:"timeout"`
}

// CacheConfig selects the brand cache backend.
type CacheConfig struct {
	// Backend is "json" (single file, default) or "pebble" (directory,
	// safe for concurrent conversions).
	Backend string `yaml:"backend"`

	// Path is the cache file or directory.
	// Default: ~/.capps_brand_cache.json or ~/.capps_brand_cache.db
	Path string `yaml:"path"`
}

// CAPSSConfig configures the upload client.
type CAPSSConfig struct {
	TokenURL  string `yaml:"token_url"`
	UploadURL string `yaml:"upload_url"`

	// PollAttempts bounds the number of status checks after submission.
	// Default: 10
	PollAttempts int `yaml:"poll_attempts"`

	// PollInterval is the delay before each status check.
	// Default: 2s
	PollInterval time.Duration `yaml:"poll_interval"`

	// Timeout bounds each HTTP request.
	// Default: 60s
	Timeout time.Duration `yaml:"timeout"`

	// InsecureSkipVerify relaxes TLS verification for the regulator host,
	// which has historically served a legacy certificate chain.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// Cache backends.
const (
	CacheBackendJSON   = "json"
	CacheBackendPebble = "pebble"
)

// Brand providers.
const (
	ProviderGroq   = "groq"
	ProviderGemini = "gemini"
	ProviderNone   = "none"
)

// =============================================================================
// CONFIGURATION LOADING FUNCTIONS
// =============================================================================

// LoadMainConfig loads the main configuration from a YAML file.
//
// PARAMETERS:
//   - configPath: The path to the main configuration file. A missing file
//     yields the defaults.
//
// RETURNS:
//   - A pointer to the MainConfig struct.
//   - An error if the file exists but cannot be read, parsed or validated.
func LoadMainConfig(configPath string) (*MainConfig, error) {
	var config MainConfig

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			// Defaults only.
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, &config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	// A missing .env is the normal case.
	_ = godotenv.Load()
	applyEnvOverrides(&config)

	applyMainConfigDefaults(&config)

	if err := validateMainConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// applyEnvOverrides copies recognised environment variables over file values.
func applyEnvOverrides(config *MainConfig) {
	if v := os.Getenv("CAPPS_BRAND_PROVIDER"); v != "" {
		config.Brand.Provider = v
	}
	if v := os.Getenv("CAPPS_BRAND_API_KEY"); v != "" {
		config.Brand.APIKey = v
	}
	if v := os.Getenv("CAPPS_LOG_LEVEL"); v != "" {
		config.LogLevel = v
	}
	if v := os.Getenv("CAPPS_CACHE_BACKEND"); v != "" {
		config.Cache.Backend = v
	}
	if v := os.Getenv("CAPSS_INSECURE_SKIP_VERIFY"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			config.CAPSS.InsecureSkipVerify = b
		}
	}
}

// applyMainConfigDefaults sets default values for any unset configuration options.
func applyMainConfigDefaults(config *MainConfig) {
	if config.OutputDir == "" {
		config.OutputDir = "."
	}
	if config.OutputFile == "" {
		config.OutputFile = "capps_upload.xml"
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	if config.LogFormat == "" {
		config.LogFormat = "text"
	}
	if config.ContinueOnError == nil {
		t := true
		config.ContinueOnError = &t
	}

	config.Brand.Provider = strings.ToLower(strings.TrimSpace(config.Brand.Provider))
	if config.Brand.Provider == "" {
		config.Brand.Provider = ProviderGroq
	}
	if config.Brand.Timeout <= 0 {
		config.Brand.Timeout = 5 * time.Second
	}

	config.Cache.Backend = strings.ToLower(strings.TrimSpace(config.Cache.Backend))
	if config.Cache.Backend == "" {
		config.Cache.Backend = CacheBackendJSON
	}
	if config.Cache.Path == "" {
		name := ".capps_brand_cache.json"
		if config.Cache.Backend == CacheBackendPebble {
			name = ".capps_brand_cache.db"
		}
		config.Cache.Path = homePath(name)
	}

	if config.CAPSS.TokenURL == "" {
		config.CAPSS.TokenURL = "https://capss.doj.ca.gov/oauth/token"
	}
	if config.CAPSS.UploadURL == "" {
		config.CAPSS.UploadURL = "https://capss.doj.ca.gov/api/bulkupload/save"
	}
	if config.CAPSS.PollAttempts <= 0 {
		config.CAPSS.PollAttempts = 10
	}
	if config.CAPSS.PollInterval <= 0 {
		config.CAPSS.PollInterval = 2 * time.Second
	}
	if config.CAPSS.Timeout <= 0 {
		config.CAPSS.Timeout = 60 * time.Second
	}
}

// validateMainConfig validates the main configuration.
func validateMainConfig(config *MainConfig) error {
	switch config.Brand.Provider {
	case ProviderGroq, ProviderGemini, ProviderNone:
	default:
		return fmt.Errorf("unknown brand provider %q", config.Brand.Provider)
	}

	switch config.Cache.Backend {
	case CacheBackendJSON, CacheBackendPebble:
	default:
		return fmt.Errorf("unknown cache backend %q", config.Cache.Backend)
	}

	switch strings.ToLower(config.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", config.LogFormat)
	}

	// Create the output directory if it doesn't exist.
	if _, err := os.Stat(config.OutputDir); os.IsNotExist(err) {
		if err := os.MkdirAll(config.OutputDir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", config.OutputDir, err)
		}
	}

	return nil
}

// OutputPath returns the full path of the XML document.
func (c *MainConfig) OutputPath() string {
	return filepath.Join(c.OutputDir, c.OutputFile)
}

// RemoteBrandEnabled reports whether the remote inference tier is configured.
func (c *MainConfig) RemoteBrandEnabled() bool {
	return c.Brand.APIKey != "" && c.Brand.Provider != ProviderNone
}

// homePath joins name onto the user's home directory, falling back to the
// working directory when the home directory is unknown.
func homePath(name string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return name
	}
	return filepath.Join(home, name)
}

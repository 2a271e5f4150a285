package cmd

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/aimsi-capps-converter/internal/config"
	"github.com/ginjaninja78/aimsi-capps-converter/internal/settings"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func newFlagCommand() *cobra.Command {
	c := &cobra.Command{Use: "test"}
	for _, f := range convertFlags {
		c.Flags().String(f.flag, "", f.usage)
	}
	c.Flags().Bool("include-isi", false, "")
	return c
}

func TestApplyConvertFlags(t *testing.T) {
	c := newFlagCommand()
	c.Flags().Set("min-cost", "$250")
	c.Flags().Set("include-isi", "true")
	c.Flags().Set("purchases", "/tmp/p.csv")

	s := settings.Defaults()
	s.License = "FROM_FILE"
	if err := applyConvertFlags(c, &s); err != nil {
		t.Fatal(err)
	}
	if s.MinCost != "$250" || !s.IncludeISISerials || s.PurchasesFile != "/tmp/p.csv" {
		t.Errorf("settings = %+v", s)
	}
	if s.License != "FROM_FILE" {
		t.Errorf("unset flag overrode the settings file: %q", s.License)
	}
}

func TestApplyConvertFlagsRejectsBadValues(t *testing.T) {
	c := newFlagCommand()
	c.Flags().Set("days", "0")
	s := settings.Defaults()
	if err := applyConvertFlags(c, &s); !errors.Is(err, settings.ErrInvalid) {
		t.Errorf("err = %v", err)
	}
}

func TestApplyBrandSettings(t *testing.T) {
	c := newFlagCommand()
	s := settings.Defaults()
	s.Provider = "gemini"
	s.APIKey = "from-settings"

	cfg := &config.MainConfig{Brand: config.BrandConfig{Provider: "groq"}}
	applyBrandSettings(c, cfg, s)
	if cfg.Brand.APIKey != "from-settings" || cfg.Brand.Provider != "gemini" {
		t.Errorf("brand = %+v", cfg.Brand)
	}

	cfg = &config.MainConfig{Brand: config.BrandConfig{Provider: "groq", APIKey: "from-config"}}
	applyBrandSettings(c, cfg, s)
	if cfg.Brand.APIKey != "from-config" || cfg.Brand.Provider != "groq" {
		t.Errorf("configured key should win over settings: %+v", cfg.Brand)
	}

	c.Flags().Set("provider", "none")
	s.Provider = "none"
	applyBrandSettings(c, cfg, s)
	if cfg.Brand.Provider != "none" || cfg.RemoteBrandEnabled() {
		t.Errorf("--provider none should disable the remote tier: %+v", cfg.Brand)
	}
}

func TestSettingsCommands(t *testing.T) {
	path := filepath.Join(t.TempDir(), settings.FileName)

	if _, err := execute(t, "--settings", path, "settings", "set", "min_cost", "150"); err != nil {
		t.Fatal(err)
	}
	if _, err := execute(t, "--settings", path, "settings", "set", "api_key", "gsk_abcdef1234"); err != nil {
		t.Fatal(err)
	}
	if _, err := execute(t, "--settings", path, "settings", "set", "days_lookback", "zero"); !errors.Is(err, settings.ErrInvalid) {
		t.Errorf("bad value err = %v", err)
	}

	out, err := execute(t, "--settings", path, "settings", "show")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "****1234") || strings.Contains(out, "gsk_abcdef") {
		t.Errorf("api key not masked:\n%s", out)
	}
	if !strings.Contains(out, "min_cost") || !strings.Contains(out, "= 150") {
		t.Errorf("show output:\n%s", out)
	}
}

func TestConvertCommand(t *testing.T) {
	t.Setenv("CAPPS_BRAND_API_KEY", "")
	t.Setenv("CAPPS_CACHE_BACKEND", "")
	dir := t.TempDir()

	cfgPath := filepath.Join(dir, "config.yaml")
	cfgYAML := "output_dir: " + filepath.Join(dir, "out") + "\n" +
		"log_level: error\n" +
		"cache:\n  path: " + filepath.Join(dir, "brands.json") + "\n"
	if err := os.WriteFile(cfgPath, []byte(cfgYAML), 0644); err != nil {
		t.Fatal(err)
	}

	cols := make([]string, 11)
	cols[1] = "ABC123"
	cols[6] = "FENDER STRATOCASTER"
	cols[10] = "3"
	serials := filepath.Join(dir, "serials.csv")
	os.WriteFile(serials, []byte(strings.Join(cols, ",")+"\n"), 0644)

	stamp := time.Now().Add(-24 * time.Hour).Format("1/2/2006 3:04:05 PM")
	purchases := filepath.Join(dir, "purchases.csv")
	os.WriteFile(purchases, []byte(
		`"`+stamp+`","1001","150.00","3","ABC123"`+"\n"+
			`"`+stamp+`","1002","20.00","3","ABC123"`+"\n"), 0644)

	settingsPath := filepath.Join(dir, settings.FileName)
	out, err := execute(t,
		"--config", cfgPath,
		"--settings", settingsPath,
		"convert",
		"--purchases", purchases,
		"--serials", serials,
		"--license", "LIC1",
		"--provider", "none",
		"--save-settings",
	)
	if err != nil {
		t.Fatalf("convert: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Accepted:        1") || !strings.Contains(out, "Filtered:        1") {
		t.Errorf("summary:\n%s", out)
	}

	doc, err := os.ReadFile(filepath.Join(dir, "out", "capps_upload.xml"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(doc), "FENDER") {
		t.Errorf("document:\n%s", doc)
	}

	saved, err := settings.Load(settingsPath)
	if err != nil {
		t.Fatal(err)
	}
	if saved.License != "LIC1" || saved.PurchasesFile != purchases || saved.Provider != "none" {
		t.Errorf("saved settings = %+v", saved)
	}
}

func TestUploadHelpers(t *testing.T) {
	if got := uploadMetricsPath("/var/lib/capps.prom"); got != "/var/lib/capps_upload.prom" {
		t.Errorf("uploadMetricsPath = %s", got)
	}
	if got := firstNonEmpty("", "  ", "env", "settings"); got != "env" {
		t.Errorf("firstNonEmpty = %q", got)
	}
}

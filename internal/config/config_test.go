package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestParseJSON(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "config.json", `{
		"timezone": "Africa/Douala",
		"logging": {"level": "debug", "console": true, "file": {"enabled": false, "path": ""}},
		"engine": {"poll_interval": "1m", "pacing_min": "45s", "pacing_max": "90s"},
		"sheets": {"spreadsheet_id": "abc123"},
		"media": {"max_bytes": 1000000},
		"contacts": {"path": "./contacts.json", "default_country_code": "237"},
		"channel": {"gateway_url": "http://localhost:3000"},
		"health": {"enabled": true, "addr": ":8080"}
	}`)
	cfg, err := NewManager(path).Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Timezone != "Africa/Douala" || cfg.Sheets.SpreadsheetID != "abc123" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if !cfg.Health.Enabled || cfg.Health.Addr != ":8080" {
		t.Fatalf("health section lost: %+v", cfg.Health)
	}
}

func TestParseYAML(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "config.yaml", `
timezone: Europe/Paris
logging:
  level: info
  console: true
  file:
    enabled: false
    path: ""
engine:
  settle_image: 1200ms
sheets:
  spreadsheet_id: abc123
media: {}
contacts:
  path: ./contacts.json
channel:
  gateway_url: http://localhost:3000
health:
  enabled: true
`)
	cfg, err := NewManager(path).Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Engine.SettleImage != "1200ms" {
		t.Fatalf("yaml value lost: %+v", cfg.Engine)
	}
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "config.json", `{"timezone": "UTC", "tipo": "oops"}`)
	if _, err := NewManager(path).Parse(); err == nil {
		t.Fatalf("expected unknown-key error")
	}
}

func TestParseRejectsTrailingData(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "config.json", `{"timezone": "UTC"} {"again": true}`)
	if _, err := NewManager(path).Parse(); err == nil {
		t.Fatalf("expected trailing-data error")
	}
}

func TestValidate(t *testing.T) {
	t.Setenv("GOOGLE_SERVICE_ACCOUNT", `{"type":"service_account"}`)

	cfg := &Config{}
	cfg.Sheets.SpreadsheetID = "abc123"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("minimal config rejected: %v", err)
	}

	cfg.Timezone = "Mars/Olympus"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("bad timezone accepted")
	}
	cfg.Timezone = ""

	cfg.Engine.PacingMin = "90s"
	cfg.Engine.PacingMax = "45s"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("inverted pacing window accepted")
	}

	cfg.Engine.PacingMin = ""
	cfg.Engine.PacingMax = ""
	cfg.Sheets.SpreadsheetID = ""
	if err := cfg.Validate(); err == nil {
		t.Fatalf("missing spreadsheet id accepted")
	}
}

func TestApplyEnvWins(t *testing.T) {
	t.Setenv("SPREADSHEET_ID", "env-sheet")
	t.Setenv("WA_GATEWAY_URL", "http://env:3000")
	t.Setenv("WA_GATEWAY_TOKEN", "env-token")
	t.Setenv("PORT", "9090")

	cfg := &Config{}
	cfg.Sheets.SpreadsheetID = "file-sheet"
	cfg.Channel.GatewayURL = "http://file:3000"
	cfg.Health.Addr = ":8080"
	ApplyEnv(cfg)

	if cfg.Sheets.SpreadsheetID != "env-sheet" {
		t.Errorf("SPREADSHEET_ID not applied: %q", cfg.Sheets.SpreadsheetID)
	}
	if cfg.Channel.GatewayURL != "http://env:3000" || cfg.Channel.Token != "env-token" {
		t.Errorf("gateway env not applied: %+v", cfg.Channel)
	}
	if cfg.Health.Addr != ":9090" {
		t.Errorf("PORT not applied: %q", cfg.Health.Addr)
	}
}

func TestParseDuration(t *testing.T) {
	t.Parallel()
	if d, err := ParseDuration("x", "45s"); err != nil || d != 45*time.Second {
		t.Fatalf("ParseDuration: %v %v", d, err)
	}
	if _, err := ParseDuration("x", "45 bananas"); err == nil {
		t.Fatalf("invalid duration accepted")
	}
	if _, err := ParseDuration("x", "-1s"); err == nil {
		t.Fatalf("negative duration accepted")
	}
	if d, err := DurationOrDefault("x", "", 30*time.Second); err != nil || d != 30*time.Second {
		t.Fatalf("default not applied: %v %v", d, err)
	}
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LoadDotenv loads a .env file if present. Missing files are not an error;
// deployments may provide real environment variables instead.
func LoadDotenv() {
	_ = godotenv.Load()
}

// ApplyEnv overlays credential-ish environment variables onto cfg.
// Env always wins over file values so hosted deployments can keep
// secrets out of the config file.
func ApplyEnv(cfg *Config) {
	if cfg == nil {
		return
	}
	if v := strings.TrimSpace(os.Getenv("SPREADSHEET_ID")); v != "" {
		cfg.Sheets.SpreadsheetID = v
	}
	if v := strings.TrimSpace(os.Getenv("WA_GATEWAY_URL")); v != "" {
		cfg.Channel.GatewayURL = v
	}
	if v := strings.TrimSpace(os.Getenv("WA_GATEWAY_TOKEN")); v != "" {
		cfg.Channel.Token = v
	}
	if v := strings.TrimSpace(os.Getenv("PORT")); v != "" {
		cfg.Health.Addr = ":" + v
	}
}

// ServiceAccountJSON resolves the Google service-account key:
// inline GOOGLE_SERVICE_ACCOUNT env first, then the configured file.
func (c *Config) ServiceAccountJSON() ([]byte, error) {
	if v := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT")); v != "" {
		return []byte(v), nil
	}
	path := strings.TrimSpace(c.Sheets.CredentialsFile)
	if path == "" {
		path = "./credentials.json"
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("service account credentials: %w", err)
	}
	return b, nil
}

// Validate checks the fields the process cannot run without.
// Errors here are fatal at startup (exit non-zero), never retried.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if strings.TrimSpace(c.Sheets.SpreadsheetID) == "" {
		return errors.New("sheets.spreadsheet_id is required (or SPREADSHEET_ID env)")
	}
	if _, err := c.ServiceAccountJSON(); err != nil {
		return err
	}
	if tz := strings.TrimSpace(c.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("timezone: %w", err)
		}
	}
	minP, err := DurationOrDefault("engine.pacing_min", c.Engine.PacingMin, 45*time.Second)
	if err != nil {
		return err
	}
	maxP, err := DurationOrDefault("engine.pacing_max", c.Engine.PacingMax, 90*time.Second)
	if err != nil {
		return err
	}
	if maxP < minP {
		return errors.New("engine.pacing_max must be >= engine.pacing_min")
	}
	return nil
}

package config

// Config is the root configuration for the dispatcher.
//
// All durations are Go duration strings (e.g. "500ms", "45s", "1m").
// The file may be JSON or YAML; both are decoded strictly, so unknown keys
// are rejected early instead of being silently ignored.
type Config struct {
	// Timezone is the single IANA zone all scheduling decisions use,
	// e.g. "Africa/Douala". Empty means the process-local zone.
	Timezone string `json:"timezone,omitempty"`

	Logging  LoggingConfig  `json:"logging"`
	Engine   EngineConfig   `json:"engine"`
	Sheets   SheetsConfig   `json:"sheets"`
	Media    MediaConfig    `json:"media"`
	Contacts ContactsConfig `json:"contacts"`
	Channel  ChannelConfig  `json:"channel"`
	Health   HealthConfig   `json:"health"`
	Notify   *NotifyConfig  `json:"notify,omitempty"`
	Storage  *StorageConfig `json:"storage,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// EngineConfig controls campaign polling and delivery pacing.
//
// Defaults (when fields are omitted/zero):
//   - poll_interval: "1m"
//   - reload_interval: "1m"
//   - settle_text: "1s"
//   - settle_image: "1200ms"
//   - settle_video: "2s"
//   - pacing_min: "45s"
//   - pacing_max: "90s"
//   - default_recipient: "Partenaire"
type EngineConfig struct {
	PollInterval   string `json:"poll_interval,omitempty"`
	ReloadInterval string `json:"reload_interval,omitempty"`

	SettleText  string `json:"settle_text,omitempty"`
	SettleImage string `json:"settle_image,omitempty"`
	SettleVideo string `json:"settle_video,omitempty"`

	// PacingMin/PacingMax bound the randomized wait between contacts.
	// This is the anti-ban backpressure knob; keep the window wide.
	PacingMin string `json:"pacing_min,omitempty"`
	PacingMax string `json:"pacing_max,omitempty"`

	// DefaultRecipient replaces the name placeholder for contacts with a blank name.
	DefaultRecipient string `json:"default_recipient,omitempty"`

	// TestMode keeps the normal cadence but logs every tick verbosely.
	TestMode bool `json:"test_mode,omitempty"`
}

// SheetsConfig configures the campaign source spreadsheet.
type SheetsConfig struct {
	SpreadsheetID string `json:"spreadsheet_id"`
	// CredentialsFile points at a service-account JSON key.
	// The GOOGLE_SERVICE_ACCOUNT env var (inline JSON) takes precedence.
	CredentialsFile string `json:"credentials_file,omitempty"`
	// SheetName selects a tab by title; empty means the first sheet.
	SheetName string `json:"sheet_name,omitempty"`
	RetryMax  int    `json:"retry_max,omitempty"`
}

type MediaConfig struct {
	TempDir string `json:"temp_dir,omitempty"`
	// MaxBytes caps downloaded media; oversized files are dropped, not sent.
	MaxBytes int64 `json:"max_bytes,omitempty"`
}

type ContactsConfig struct {
	Path string `json:"path"`
	// DefaultCountryCode replaces a leading trunk "0" (e.g. "33" for France).
	DefaultCountryCode string `json:"default_country_code,omitempty"`
}

type ChannelConfig struct {
	GatewayURL     string `json:"gateway_url"`
	Token          string `json:"token,omitempty"`
	StatusInterval string `json:"status_interval,omitempty"`
	RequestTimeout string `json:"request_timeout,omitempty"`
}

type HealthConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"` // default ":8080"; PORT env overrides
}

// NotifyConfig controls optional operator notifications over Telegram.
// If the whole section is omitted, notifications are disabled.
type NotifyConfig struct {
	Enabled       bool   `json:"enabled"`
	TelegramToken string `json:"telegram_token,omitempty"`
	ChatID        int64  `json:"chat_id,omitempty"`
	RatePerSec    int    `json:"rate_per_sec,omitempty"`
}

// StorageConfig controls the durable delivery ledger.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./blastbot_store" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures the delivery ledger.
//
// Driver values:
//   - "file": dependency-free file backend (snapshot + journal)
//   - "sqlite": SQLite database file (optional build tag)
//
// If Driver is empty or "none", storage is disabled and the ledger is
// memory-only for the process lifetime.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Execution is the durable record of one campaign run.
//
// ContactsSent holds the normalized numbers already delivered to within this
// campaign id; a re-run after a crash skips them instead of double-sending.
// FirstRunAt is the HH:MM of the very first execution, kept so recurring
// instances of the same campaign keep their original send hour.
type Execution struct {
	CampaignID   string
	ExecutedAt   time.Time
	FirstRunAt   string
	ContactsSent map[string]bool
}

// DeliveryEntry records one per-contact delivery attempt (append-only audit).
// Keep it compact and schema-stable.
type DeliveryEntry struct {
	At         time.Time `json:"at"`
	CampaignID string    `json:"campaign"`
	Contact    string    `json:"contact"`
	Step       string    `json:"step"` // "text", "image", "video"
	OK         bool      `json:"ok"`
	Error      string    `json:"error,omitempty"`
	TookMS     int64     `json:"took_ms,omitempty"`
}

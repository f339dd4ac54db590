package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	logx "blastbot/pkg/logx"
)

// Store is the durable ledger API used by the campaign engine.
type Store interface {
	// PutExecution records that a campaign run started/completed at the given time.
	// The first call for a campaign id also pins FirstRunAt.
	PutExecution(ctx context.Context, campaignID string, at time.Time) error
	// AddContactSent adds one delivered contact to a campaign's sent set.
	AddContactSent(ctx context.Context, campaignID, number string) error
	// GetExecution returns the recorded run for a campaign id, if any.
	GetExecution(ctx context.Context, campaignID string) (Execution, bool, error)
	// AppendDelivery appends one per-contact attempt to the audit log.
	AppendDelivery(ctx context.Context, e DeliveryEntry) error
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}

//go:build sqlite
// +build sqlite

package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	logx "blastbot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) PutExecution(ctx context.Context, campaignID string, at time.Time) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if campaignID == "" {
		return nil
	}
	// first_run_at is pinned by the first insert and never overwritten.
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO executions(campaign_id, executed_at, first_run_at) VALUES(?,?,?)
		 ON CONFLICT(campaign_id) DO UPDATE SET executed_at=excluded.executed_at`,
		campaignID, at.UnixMilli(), at.Format("15:04"),
	)
	return err
}

func (s *sqliteStore) AddContactSent(ctx context.Context, campaignID, number string) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if campaignID == "" || number == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO contacts_sent(campaign_id, number) VALUES(?,?)`,
		campaignID, number,
	)
	return err
}

func (s *sqliteStore) GetExecution(ctx context.Context, campaignID string) (Execution, bool, error) {
	if s == nil || s.db == nil {
		return Execution{}, false, ErrDisabled
	}
	var ms int64
	var firstRun sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT executed_at, first_run_at FROM executions WHERE campaign_id = ?`, campaignID,
	).Scan(&ms, &firstRun)
	if errors.Is(err, sql.ErrNoRows) {
		return Execution{}, false, nil
	}
	if err != nil {
		return Execution{}, false, err
	}

	out := Execution{
		CampaignID:   campaignID,
		ExecutedAt:   time.UnixMilli(ms),
		FirstRunAt:   firstRun.String,
		ContactsSent: map[string]bool{},
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT number FROM contacts_sent WHERE campaign_id = ?`, campaignID,
	)
	if err != nil {
		return Execution{}, false, err
	}
	defer rows.Close()
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return Execution{}, false, err
		}
		out.ContactsSent[n] = true
	}
	if err := rows.Err(); err != nil {
		return Execution{}, false, err
	}
	return out, true, nil
}

func (s *sqliteStore) AppendDelivery(ctx context.Context, e DeliveryEntry) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	ok := 0
	if e.OK {
		ok = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO deliveries(at, campaign_id, contact, step, ok, err, took_ms)
		 VALUES(?,?,?,?,?,?,?)`,
		e.At.Format(time.RFC3339Nano), e.CampaignID, e.Contact, e.Step, ok, nullStr(e.Error), e.TookMS,
	)
	return err
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}

package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	logx "blastbot/pkg/logx"
)

// fileStore is a dependency-free persistence backend.
//
// Files:
//   - <prefix>.deliveries.jsonl       (append-only JSON Lines audit)
//   - <prefix>.ledger.snapshot.json   (periodic snapshot)
//   - <prefix>.ledger.journal.jsonl   (append-only journal)
//
// The journal is periodically compacted into the snapshot. The snapshot is
// replaced atomically (write temp, rename) so a crash mid-write cannot
// truncate the ledger.
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	deliveryFile *os.File

	snapshotPath string
	journalFile  *os.File
	ledger       map[string]*executionRec

	writes int
}

type executionRec struct {
	ExecutedAt int64           `json:"at"` // unix milli
	FirstRunAt string          `json:"first_run_at,omitempty"`
	Contacts   map[string]bool `json:"contacts,omitempty"`
}

// journalRec is one ledger mutation. Exactly one of Exec/Contact is set.
type journalRec struct {
	Campaign string `json:"campaign"`
	Exec     int64  `json:"exec,omitempty"` // unix milli
	FirstRun string `json:"first_run,omitempty"`
	Contact  string `json:"contact,omitempty"`
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	deliveryPath := prefix + ".deliveries.jsonl"
	snapPath := prefix + ".ledger.snapshot.json"
	journalPath := prefix + ".ledger.journal.jsonl"

	df, err := os.OpenFile(deliveryPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}

	// Load ledger from snapshot + journal.
	ledger := map[string]*executionRec{}
	_ = loadSnapshot(snapPath, ledger)
	_ = replayJournal(journalPath, ledger)

	jf, err := os.OpenFile(journalPath, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o600)
	if err != nil {
		_ = df.Close()
		return nil, err
	}

	return &fileStore{
		log:          log,
		deliveryFile: df,
		snapshotPath: snapPath,
		journalFile:  jf,
		ledger:       ledger,
	}, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Best-effort final compaction so restarts replay a short journal.
	if s.journalFile != nil {
		_ = s.compactLocked()
	}
	var err1, err2 error
	if s.deliveryFile != nil {
		err1 = s.deliveryFile.Close()
		s.deliveryFile = nil
	}
	if s.journalFile != nil {
		err2 = s.journalFile.Close()
		s.journalFile = nil
	}
	if err1 != nil {
		return err1
	}
	return err2
}

func (s *fileStore) AppendDelivery(ctx context.Context, e DeliveryEntry) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deliveryFile == nil {
		return errors.New("delivery log closed")
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	return json.NewEncoder(s.deliveryFile).Encode(e)
}

func (s *fileStore) PutExecution(ctx context.Context, campaignID string, at time.Time) error {
	_ = ctx
	campaignID = strings.TrimSpace(campaignID)
	if campaignID == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journalFile == nil {
		return errors.New("ledger journal closed")
	}

	rec := s.ledger[campaignID]
	firstRun := ""
	if rec == nil {
		firstRun = at.Format("15:04")
		rec = &executionRec{FirstRunAt: firstRun}
		s.ledger[campaignID] = rec
	}
	rec.ExecutedAt = at.UnixMilli()

	if err := s.appendJournalLocked(journalRec{Campaign: campaignID, Exec: rec.ExecutedAt, FirstRun: firstRun}); err != nil {
		return err
	}
	return nil
}

func (s *fileStore) AddContactSent(ctx context.Context, campaignID, number string) error {
	_ = ctx
	campaignID = strings.TrimSpace(campaignID)
	number = strings.TrimSpace(number)
	if campaignID == "" || number == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journalFile == nil {
		return errors.New("ledger journal closed")
	}

	rec := s.ledger[campaignID]
	if rec == nil {
		rec = &executionRec{}
		s.ledger[campaignID] = rec
	}
	if rec.Contacts == nil {
		rec.Contacts = map[string]bool{}
	}
	if rec.Contacts[number] {
		return nil
	}
	rec.Contacts[number] = true

	return s.appendJournalLocked(journalRec{Campaign: campaignID, Contact: number})
}

func (s *fileStore) GetExecution(ctx context.Context, campaignID string) (Execution, bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.ledger[strings.TrimSpace(campaignID)]
	if rec == nil {
		return Execution{}, false, nil
	}
	out := Execution{
		CampaignID:   campaignID,
		ExecutedAt:   time.UnixMilli(rec.ExecutedAt),
		FirstRunAt:   rec.FirstRunAt,
		ContactsSent: make(map[string]bool, len(rec.Contacts)),
	}
	for k := range rec.Contacts {
		out.ContactsSent[k] = true
	}
	return out, true, nil
}

func (s *fileStore) appendJournalLocked(r journalRec) error {
	if err := json.NewEncoder(s.journalFile).Encode(r); err != nil {
		return err
	}
	s.writes++
	if s.writes%500 == 0 {
		// Best-effort compact.
		if err := s.compactLocked(); err != nil {
			s.log.Debug("ledger compact failed", logx.Err(err))
		}
	}
	return nil
}

func (s *fileStore) compactLocked() error {
	if s.ledger == nil {
		return nil
	}
	tmp := s.snapshotPath + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(s.ledger); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.snapshotPath); err != nil {
		return err
	}
	// Truncate journal.
	if err := s.journalFile.Truncate(0); err != nil {
		return err
	}
	_, err = s.journalFile.Seek(0, 2)
	return err
}

func loadSnapshot(path string, out map[string]*executionRec) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	var m map[string]*executionRec
	if err := json.NewDecoder(f).Decode(&m); err != nil {
		return err
	}
	for k, v := range m {
		out[k] = v
	}
	return nil
}

func replayJournal(path string, out map[string]*executionRec) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var r journalRec
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			continue
		}
		if r.Campaign == "" {
			continue
		}
		rec := out[r.Campaign]
		if rec == nil {
			rec = &executionRec{}
			out[r.Campaign] = rec
		}
		if r.Exec != 0 {
			rec.ExecutedAt = r.Exec
			if rec.FirstRunAt == "" && r.FirstRun != "" {
				rec.FirstRunAt = r.FirstRun
			}
		}
		if r.Contact != "" {
			if rec.Contacts == nil {
				rec.Contacts = map[string]bool{}
			}
			rec.Contacts[r.Contact] = true
		}
	}
	return sc.Err()
}

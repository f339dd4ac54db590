// Package engine runs the campaign dispatch loop.
//
// Two independent ticks drive it: a reload tick that refreshes the campaign
// snapshot from the source, and a poll tick that looks for due campaigns and
// delivers them. A single-flight guard keeps ticks from overlapping a run
// that is still pacing its way through a contact list.
package engine

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"blastbot/internal/campaign"
	"blastbot/internal/channel"
	"blastbot/internal/contacts"
	"blastbot/internal/eventbus"
	"blastbot/internal/media"
	"blastbot/internal/storage"
	logx "blastbot/pkg/logx"
)

// Source provides campaign rows and accepts status write-back.
type Source interface {
	FetchAll(ctx context.Context) ([]campaign.Campaign, error)
	MarkSent(ctx context.Context, c campaign.Campaign) error
}

// MediaResolver turns a media reference into a local file.
type MediaResolver interface {
	Resolve(ctx context.Context, fileID string) (*media.Handle, error)
}

// ContactLoader returns the current recipient list.
type ContactLoader interface {
	Load() ([]contacts.Contact, error)
}

// Deps are the engine's collaborators. Ledger and Bus may be nil.
type Deps struct {
	Source   Source
	Media    MediaResolver
	Contacts ContactLoader
	Channel  channel.Channel
	Ready    func() bool
	Ledger   storage.Store
	Bus      eventbus.Bus
	Log      logx.Logger
}

// Stats are cumulative since process start.
type Stats struct {
	Ticks   uint64
	Runs    uint64
	Sent    uint64
	Failed  uint64
	Reloads uint64
}

type Engine struct {
	opts Options
	deps Deps
	log  logx.Logger

	executing atomic.Bool

	mu        sync.Mutex
	campaigns []campaign.Campaign
	done      map[string]bool // campaign ids fully dispatched this process

	ticks, runs, sent, failed, reloads atomic.Uint64

	// Test seams. Production values sleep for real and draw from math/rand.
	sleep   func(ctx context.Context, d time.Duration) bool
	randDur func(min, max time.Duration) time.Duration
	now     func() time.Time
}

func New(opts Options, deps Deps) *Engine {
	log := deps.Log
	if log.IsZero() {
		log = logx.Nop()
	}
	e := &Engine{
		opts: opts,
		deps: deps,
		log:  log,
		done: map[string]bool{},
	}
	e.sleep = sleepCtx
	e.randDur = func(min, max time.Duration) time.Duration {
		if max <= min {
			return min
		}
		return min + time.Duration(rand.Int63n(int64(max-min)+1))
	}
	e.now = func() time.Time { return time.Now().In(opts.TZ) }
	return e
}

// Run blocks until ctx is canceled, driving the reload and poll ticks.
func (e *Engine) Run(ctx context.Context) error {
	// Prime the snapshot before the first poll so a fresh start can
	// dispatch without waiting a full reload interval.
	if err := e.Reload(ctx); err != nil {
		e.log.Error("initial campaign load failed", logx.Err(err))
	}

	cr := cron.New(cron.WithLocation(e.opts.TZ))
	if _, err := cr.AddFunc("@every "+e.opts.PollInterval.String(), func() { e.Tick(ctx) }); err != nil {
		return err
	}
	if _, err := cr.AddFunc("@every "+e.opts.ReloadInterval.String(), func() {
		if err := e.Reload(ctx); err != nil {
			e.log.Warn("campaign reload failed, keeping previous snapshot", logx.Err(err))
		}
	}); err != nil {
		return err
	}
	cr.Start()
	e.log.Info("dispatch loop started",
		logx.Duration("poll", e.opts.PollInterval),
		logx.Duration("reload", e.opts.ReloadInterval),
		logx.String("tz", e.opts.TZ.String()))

	// The boot tick runs after cron is started: a batch already due can pace
	// for minutes, and reloads must keep firing underneath it.
	e.Tick(ctx)

	<-ctx.Done()
	<-cr.Stop().Done()
	return nil
}

// Reload refreshes the campaign snapshot. On error the previous snapshot is
// kept untouched.
func (e *Engine) Reload(ctx context.Context) error {
	list, err := e.deps.Source.FetchAll(ctx)
	if err != nil {
		return err
	}
	e.reloads.Add(1)

	e.mu.Lock()
	e.campaigns = list
	e.pruneDoneLocked()
	e.mu.Unlock()

	e.log.Debug("campaign snapshot refreshed", logx.Int("count", len(list)))
	return nil
}

// Tick runs one dispatch pass. Overlapping ticks are dropped: if a previous
// pass is still delivering, this one is a logged no-op.
func (e *Engine) Tick(ctx context.Context) {
	e.ticks.Add(1)
	if !e.executing.CompareAndSwap(false, true) {
		e.log.Info("dispatch still in progress, tick skipped")
		return
	}
	defer e.executing.Store(false)

	if e.deps.Ready != nil && !e.deps.Ready() {
		if e.opts.TestMode {
			e.log.Info("tick: channel not ready, nothing dispatched")
		}
		return
	}

	now := e.now()
	due := e.dueCampaigns(now)
	if len(due) == 0 {
		if e.opts.TestMode {
			e.log.Info("tick: no campaign due", logx.Time("at", now))
		}
		return
	}

	cts, err := e.deps.Contacts.Load()
	if err != nil {
		e.log.Error("contact list unavailable, dispatch postponed", logx.Err(err))
		return
	}
	if len(cts) == 0 {
		e.log.Warn("contact list is empty, nothing to dispatch")
		return
	}

	for _, c := range due {
		if ctx.Err() != nil {
			return
		}
		// Re-check inside the loop: an earlier campaign in this batch may
		// have completed the same id (duplicate source rows).
		if e.isDone(c.ID) {
			continue
		}
		e.runCampaign(ctx, c, cts)
	}
}

// dueCampaigns returns the campaigns due at now, excluding ones already
// dispatched by this process.
func (e *Engine) dueCampaigns(now time.Time) []campaign.Campaign {
	e.mu.Lock()
	defer e.mu.Unlock()
	var due []campaign.Campaign
	for _, c := range e.campaigns {
		if e.done[c.ID] {
			continue
		}
		if c.DueOn(now) {
			due = append(due, c)
		}
	}
	return due
}

func (e *Engine) isDone(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.done[id]
}

func (e *Engine) markDone(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.done[id] = true
	for i := range e.campaigns {
		if e.campaigns[i].ID == id {
			e.campaigns[i].Status = campaign.StatusSent
		}
	}
}

// pruneDoneLocked drops done markers whose campaign no longer exists in the
// snapshot. Ids embed the date, so yesterday's markers go away on reload.
func (e *Engine) pruneDoneLocked() {
	live := make(map[string]bool, len(e.campaigns))
	for _, c := range e.campaigns {
		live[c.ID] = true
	}
	for id := range e.done {
		if !live[id] {
			delete(e.done, id)
		}
	}
}

// CampaignCount reports the current snapshot size.
func (e *Engine) CampaignCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.campaigns)
}

func (e *Engine) Stats() Stats {
	return Stats{
		Ticks:   e.ticks.Load(),
		Runs:    e.runs.Load(),
		Sent:    e.sent.Load(),
		Failed:  e.failed.Load(),
		Reloads: e.reloads.Load(),
	}
}

// sleepCtx waits for d or until ctx is canceled. Reports false on cancel.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

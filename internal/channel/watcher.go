package channel

import (
	"context"
	"sync/atomic"
	"time"

	"blastbot/internal/eventbus"
	logx "blastbot/pkg/logx"
)

// StatusWatcher polls channel readiness and publishes transitions on the bus.
// The cached state also backs the health endpoint and the engine's send gate.
type StatusWatcher struct {
	ch       Channel
	interval time.Duration
	bus      eventbus.Bus
	log      logx.Logger

	ready atomic.Bool
}

func NewStatusWatcher(ch Channel, interval time.Duration, bus eventbus.Bus, log logx.Logger) *StatusWatcher {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &StatusWatcher{ch: ch, interval: interval, bus: bus, log: log}
}

// Connected reports the last observed readiness.
func (w *StatusWatcher) Connected() bool { return w.ready.Load() }

// Run polls until ctx is canceled. The first check happens immediately.
func (w *StatusWatcher) Run(ctx context.Context) error {
	w.check(ctx)
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			w.check(ctx)
		}
	}
}

func (w *StatusWatcher) check(ctx context.Context) {
	ok, err := w.ch.Ready(ctx)
	if err != nil {
		w.log.Debug("channel status check failed", logx.Err(err))
		ok = false
	}
	prev := w.ready.Swap(ok)
	if prev == ok {
		return
	}
	if ok {
		w.log.Info("channel connected")
		if w.bus != nil {
			w.bus.Publish(eventbus.Event{Type: eventbus.ChannelReady})
		}
		return
	}
	w.log.Warn("channel disconnected")
	if w.bus != nil {
		w.bus.Publish(eventbus.Event{Type: eventbus.ChannelDisconnected})
	}
}

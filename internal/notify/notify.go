// Package notify pushes operator alerts to a Telegram chat.
//
// It is strictly best-effort: a failed or throttled alert is logged and
// dropped, never retried, and never blocks campaign delivery.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	"blastbot/internal/config"
	"blastbot/internal/eventbus"
	logx "blastbot/pkg/logx"
)

type Notifier struct {
	bot  *tele.Bot
	chat tele.ChatID
	lim  *rate.Limiter
	log  logx.Logger
}

// New builds a Notifier, or returns (nil, nil) when the section is absent or
// disabled. A nil *Notifier is safe to use.
func New(cfg *config.NotifyConfig, log logx.Logger) (*Notifier, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}
	if cfg.TelegramToken == "" || cfg.ChatID == 0 {
		return nil, errors.New("notify: telegram_token and chat_id are required when enabled")
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	// No poller is configured; this bot only sends.
	bot, err := tele.NewBot(tele.Settings{Token: cfg.TelegramToken})
	if err != nil {
		return nil, fmt.Errorf("notify: create bot: %w", err)
	}

	perSec := cfg.RatePerSec
	if perSec <= 0 {
		perSec = 1
	}

	return &Notifier{
		bot:  bot,
		chat: tele.ChatID(cfg.ChatID),
		lim:  rate.NewLimiter(rate.Limit(perSec), perSec),
		log:  log,
	}, nil
}

// Send delivers one message, waiting on the rate limiter first.
func (n *Notifier) Send(ctx context.Context, text string) {
	if n == nil {
		return
	}
	if err := n.lim.Wait(ctx); err != nil {
		return
	}
	if _, err := n.bot.Send(n.chat, text); err != nil {
		n.log.Warn("operator alert failed", logx.Err(err))
	}
}

// Run consumes bus events and forwards the interesting ones as alerts.
func (n *Notifier) Run(ctx context.Context, bus eventbus.Bus) error {
	if n == nil || bus == nil {
		return nil
	}
	ch, unsub := bus.Subscribe(32)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			if msg := format(ev); msg != "" {
				n.Send(ctx, msg)
			}
		}
	}
}

func format(ev eventbus.Event) string {
	switch ev.Type {
	case eventbus.CampaignStarted:
		p, ok := ev.Data.(eventbus.CampaignPayload)
		if !ok {
			return ""
		}
		return fmt.Sprintf("▶️ Campaign %s started (%s), %d contacts", p.ID, p.Date, p.Contacts)
	case eventbus.CampaignFinished:
		p, ok := ev.Data.(eventbus.CampaignPayload)
		if !ok {
			return ""
		}
		took := time.Duration(p.DurationMS) * time.Millisecond
		return fmt.Sprintf("✅ Campaign %s finished: %d sent, %d failed, %d skipped in %s",
			p.ID, p.Sent, p.Failed, p.Skipped, took.Round(time.Second))
	case eventbus.WritebackFailed:
		p, ok := ev.Data.(eventbus.WritebackPayload)
		if !ok {
			return ""
		}
		return fmt.Sprintf("⚠️ Status write-back failed for %s (row %d): %s", p.ID, p.Row, p.Error)
	case eventbus.ChannelDisconnected:
		return "🔌 Messaging channel disconnected"
	case eventbus.ChannelReady:
		return "🔌 Messaging channel connected"
	default:
		return ""
	}
}

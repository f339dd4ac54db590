package engine

import (
	"context"
	"time"

	"blastbot/internal/campaign"
	"blastbot/internal/contacts"
	"blastbot/internal/eventbus"
	"blastbot/internal/media"
	"blastbot/internal/storage"
	logx "blastbot/pkg/logx"
)

// runCampaign delivers one due campaign to every contact, paced, then writes
// the sent status back to the source.
func (e *Engine) runCampaign(ctx context.Context, c campaign.Campaign, cts []contacts.Contact) {
	e.runs.Add(1)
	start := e.now()
	log := e.log.With(logx.String("campaign", c.ID))

	// Contacts already delivered to in an earlier (possibly crashed) run,
	// and the pinned hour of the very first run of this campaign id.
	already := map[string]bool{}
	firstRun := ""
	if e.deps.Ledger != nil {
		if exec, ok, err := e.deps.Ledger.GetExecution(ctx, c.ID); err != nil {
			log.Warn("ledger read failed", logx.Err(err))
		} else if ok {
			already = exec.ContactsSent
			firstRun = exec.FirstRunAt
		}
		if err := e.deps.Ledger.PutExecution(ctx, c.ID, start); err != nil {
			log.Warn("ledger write failed", logx.Err(err))
		}
	}
	if firstRun == "" {
		firstRun = start.Format("15:04")
	}

	e.publish(eventbus.Event{Type: eventbus.CampaignStarted, Data: eventbus.CampaignPayload{
		ID: c.ID, Date: c.Date, Contacts: len(cts), FirstRun: firstRun,
	}})
	log.Info("campaign dispatch started",
		logx.String("date", c.Date),
		logx.Int("contacts", len(cts)),
		logx.String("first_run", firstRun),
		logx.Int("resume_skip", len(already)))

	img := e.resolve(ctx, log, "image", c.ImageID)
	defer img.Release()
	vid := e.resolve(ctx, log, "video", c.VideoID)
	defer vid.Release()

	var sent, failed, skipped int
	paced := false
	for _, ct := range cts {
		if ctx.Err() != nil {
			log.Warn("dispatch interrupted", logx.Int("sent", sent))
			return
		}
		if already[ct.Number] {
			skipped++
			continue
		}
		if paced && !e.sleep(ctx, e.randDur(e.opts.PacingMin, e.opts.PacingMax)) {
			return
		}
		paced = true

		if e.deliverContact(ctx, log, c, ct, img, vid) {
			sent++
			e.sent.Add(1)
			if e.deps.Ledger != nil {
				if err := e.deps.Ledger.AddContactSent(ctx, c.ID, ct.Number); err != nil {
					log.Warn("ledger write failed", logx.Err(err))
				}
			}
		} else {
			failed++
			e.failed.Add(1)
		}
	}

	e.markDone(c.ID)
	if err := e.deps.Source.MarkSent(ctx, c); err != nil {
		// The run is still considered done: a write-back failure must not
		// cause a duplicate blast on the next tick.
		log.Error("status write-back failed", logx.Int("row", c.Row), logx.Err(err))
		e.publish(eventbus.Event{Type: eventbus.WritebackFailed, Data: eventbus.WritebackPayload{
			ID: c.ID, Row: c.Row, Error: err.Error(),
		}})
	}

	took := e.now().Sub(start)
	log.Info("campaign dispatch finished",
		logx.Int("sent", sent),
		logx.Int("failed", failed),
		logx.Int("skipped", skipped),
		logx.Duration("took", took))
	e.publish(eventbus.Event{Type: eventbus.CampaignFinished, Data: eventbus.CampaignPayload{
		ID: c.ID, Date: c.Date, Contacts: len(cts),
		Sent: sent, Failed: failed, Skipped: skipped,
		DurationMS: took.Milliseconds(),
	}})
}

// deliverContact sends the text, image and video steps to one contact.
// A failed step aborts the remaining steps for that contact.
func (e *Engine) deliverContact(ctx context.Context, log logx.Logger, c campaign.Campaign, ct contacts.Contact, img, vid *media.Handle) bool {
	if c.Text != "" {
		msg := campaign.Personalize(c.Text, ct.Name, e.opts.DefaultRecipient)
		if !e.step(ctx, log, c.ID, ct.Number, "text", func() error {
			return e.deps.Channel.SendText(ctx, ct.Number, msg)
		}) {
			return false
		}
		if !e.sleep(ctx, e.opts.SettleText) {
			return false
		}
	}
	if img != nil {
		caption := campaign.Personalize(c.ImageCaption, ct.Name, e.opts.DefaultRecipient)
		if !e.step(ctx, log, c.ID, ct.Number, "image", func() error {
			return e.deps.Channel.SendMedia(ctx, ct.Number, img.Path, img.MIME, caption)
		}) {
			return false
		}
		if !e.sleep(ctx, e.opts.SettleImage) {
			return false
		}
	}
	if vid != nil {
		if !e.step(ctx, log, c.ID, ct.Number, "video", func() error {
			return e.deps.Channel.SendMedia(ctx, ct.Number, vid.Path, vid.MIME, "")
		}) {
			return false
		}
		if !e.sleep(ctx, e.opts.SettleVideo) {
			return false
		}
	}
	return true
}

// step runs one send step, logs it and appends it to the delivery audit log.
func (e *Engine) step(ctx context.Context, log logx.Logger, campaignID, number, step string, fn func() error) bool {
	t0 := time.Now()
	err := fn()
	entry := storage.DeliveryEntry{
		At:         time.Now(),
		CampaignID: campaignID,
		Contact:    number,
		Step:       step,
		OK:         err == nil,
		TookMS:     time.Since(t0).Milliseconds(),
	}
	if err != nil {
		entry.Error = err.Error()
		log.Warn("send failed",
			logx.String("contact", number),
			logx.String("step", step),
			logx.Err(err))
	} else if e.opts.TestMode {
		log.Info("send ok",
			logx.String("contact", number),
			logx.String("step", step))
	}
	if e.deps.Ledger != nil {
		if lerr := e.deps.Ledger.AppendDelivery(ctx, entry); lerr != nil {
			log.Debug("delivery audit write failed", logx.Err(lerr))
		}
	}
	return err == nil
}

// resolve fetches one media reference. Failure degrades to a text-only send.
func (e *Engine) resolve(ctx context.Context, log logx.Logger, kind, fileID string) *media.Handle {
	if fileID == "" || e.deps.Media == nil {
		return nil
	}
	h, err := e.deps.Media.Resolve(ctx, fileID)
	if err != nil {
		log.Warn("media unavailable, continuing without it",
			logx.String("kind", kind),
			logx.String("file_id", fileID),
			logx.Err(err))
		return nil
	}
	return h
}

func (e *Engine) publish(ev eventbus.Event) {
	if e.deps.Bus != nil {
		e.deps.Bus.Publish(ev)
	}
}

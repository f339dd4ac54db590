package engine

import (
	"fmt"
	"time"

	"blastbot/internal/config"
)

// Options are the engine's resolved runtime knobs.
type Options struct {
	TZ *time.Location

	PollInterval   time.Duration
	ReloadInterval time.Duration

	SettleText  time.Duration
	SettleImage time.Duration
	SettleVideo time.Duration

	PacingMin time.Duration
	PacingMax time.Duration

	DefaultRecipient string
	TestMode         bool
}

// OptionsFromConfig resolves durations and the scheduling timezone.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	tz := time.Local
	if cfg.Timezone != "" {
		loc, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return Options{}, fmt.Errorf("timezone: %w", err)
		}
		tz = loc
	}

	e := cfg.Engine
	opts := Options{
		TZ:               tz,
		DefaultRecipient: e.DefaultRecipient,
		TestMode:         e.TestMode,
	}
	if opts.DefaultRecipient == "" {
		opts.DefaultRecipient = "Partenaire"
	}

	var err error
	if opts.PollInterval, err = config.DurationOrDefault("engine.poll_interval", e.PollInterval, time.Minute); err != nil {
		return Options{}, err
	}
	if opts.ReloadInterval, err = config.DurationOrDefault("engine.reload_interval", e.ReloadInterval, time.Minute); err != nil {
		return Options{}, err
	}
	if opts.SettleText, err = config.DurationOrDefault("engine.settle_text", e.SettleText, time.Second); err != nil {
		return Options{}, err
	}
	if opts.SettleImage, err = config.DurationOrDefault("engine.settle_image", e.SettleImage, 1200*time.Millisecond); err != nil {
		return Options{}, err
	}
	if opts.SettleVideo, err = config.DurationOrDefault("engine.settle_video", e.SettleVideo, 2*time.Second); err != nil {
		return Options{}, err
	}
	if opts.PacingMin, err = config.DurationOrDefault("engine.pacing_min", e.PacingMin, 45*time.Second); err != nil {
		return Options{}, err
	}
	if opts.PacingMax, err = config.DurationOrDefault("engine.pacing_max", e.PacingMax, 90*time.Second); err != nil {
		return Options{}, err
	}
	if opts.PacingMax < opts.PacingMin {
		return Options{}, fmt.Errorf("engine.pacing_max: must be >= pacing_min")
	}
	return opts, nil
}

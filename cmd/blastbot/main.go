// Command blastbot runs the scheduled campaign dispatcher.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"blastbot/internal/channel"
	"blastbot/internal/config"
	"blastbot/internal/contacts"
	"blastbot/internal/engine"
	"blastbot/internal/eventbus"
	"blastbot/internal/health"
	"blastbot/internal/media"
	"blastbot/internal/notify"
	"blastbot/internal/runtime/supervisor"
	"blastbot/internal/sheets"
	"blastbot/internal/storage"
	logx "blastbot/pkg/logx"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "blastbot:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", "config.json", "path to the config file (JSON or YAML)")
		testMode   = flag.Bool("test", false, "verbose tick logging, same cadence")
	)
	flag.Parse()

	config.LoadDotenv()

	mgr := config.NewManager(*configPath)
	mgr.SetValidator(func(ctx context.Context, c *config.Config) error {
		config.ApplyEnv(c)
		return c.Validate()
	})
	cfg, err := mgr.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	config.ApplyEnv(cfg)
	if *testMode {
		cfg.Engine.TestMode = true
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logSvc, log := logx.New(logCfg(cfg))
	defer logSvc.Close()
	mgr.SetLogger(log.With(logx.String("comp", "config")))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	credJSON, err := cfg.ServiceAccountJSON()
	if err != nil {
		return err
	}

	opts, err := engine.OptionsFromConfig(cfg)
	if err != nil {
		return err
	}

	src, err := sheets.New(ctx, cfg.Sheets, credJSON, log.With(logx.String("comp", "sheets")))
	if err != nil {
		return err
	}
	resolver, err := media.NewResolver(ctx, cfg.Media, credJSON, log.With(logx.String("comp", "media")))
	if err != nil {
		return err
	}
	defer resolver.Cleanup()

	gw, err := channel.NewGateway(cfg.Channel, log.With(logx.String("comp", "channel")))
	if err != nil {
		return err
	}
	statusEvery, err := config.DurationOrDefault("channel.status_interval", cfg.Channel.StatusInterval, 30*time.Second)
	if err != nil {
		return err
	}

	bus := eventbus.New()
	watcher := channel.NewStatusWatcher(gw, statusEvery, bus, log.With(logx.String("comp", "channel")))

	store, err := openStorage(cfg, log)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	notifier, err := notify.New(cfg.Notify, log.With(logx.String("comp", "notify")))
	if err != nil {
		return err
	}

	book := contacts.NewStore(cfg.Contacts.Path, cfg.Contacts.DefaultCountryCode, log.With(logx.String("comp", "contacts")))

	eng := engine.New(opts, engine.Deps{
		Source:   src,
		Media:    resolver,
		Contacts: book,
		Channel:  gw,
		Ready:    watcher.Connected,
		Ledger:   store,
		Bus:      bus,
		Log:      log.With(logx.String("comp", "engine")),
	})

	start := time.Now()
	var hs *health.Server
	if cfg.Health.Enabled {
		hs = health.New(cfg.Health, func() health.Snapshot {
			return health.Snapshot{
				Status:           "ok",
				ChannelConnected: watcher.Connected(),
				CampaignCount:    eng.CampaignCount(),
				UptimeSeconds:    int64(time.Since(start).Seconds()),
				Timestamp:        time.Now().In(opts.TZ).Format(time.RFC3339),
			}
		}, log.With(logx.String("comp", "health")))
		if err := hs.Start(); err != nil {
			return fmt.Errorf("health: %w", err)
		}
	}

	sup := supervisor.New(ctx, supervisor.WithLogger(log.With(logx.String("comp", "supervisor"))))
	sup.GoRestart("channel-status", watcher.Run,
		supervisor.WithRestartBackoff(time.Second, 30*time.Second))
	sup.Go("engine", eng.Run)
	sup.Go("config-watch", mgr.Watch)
	if notifier != nil {
		sup.Go("notify", func(ctx context.Context) error { return notifier.Run(ctx, bus) })
	}
	sup.Go0("log-reload", func(ctx context.Context) {
		updates := mgr.Subscribe(4)
		defer mgr.Unsubscribe(updates)
		for {
			select {
			case <-ctx.Done():
				return
			case next, ok := <-updates:
				if !ok {
					return
				}
				logSvc.Apply(logCfg(next))
			}
		}
	})

	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
	log.Info("blastbot started",
		logx.String("config", *configPath),
		logx.Bool("test_mode", cfg.Engine.TestMode))

	<-ctx.Done()
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	log.Info("shutting down", logx.Any("goroutines", sup.Counters()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = sup.Stop(shutdownCtx)
	if hs != nil {
		hs.Stop(shutdownCtx)
	}
	return nil
}

func logCfg(cfg *config.Config) logx.Config {
	out := logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
	}
	out.File.Enabled = cfg.Logging.File.Enabled
	out.File.Path = cfg.Logging.File.Path
	// A config with no sink at all still logs somewhere.
	if !out.Console && !out.File.Enabled {
		out.Console = true
	}
	return out
}

func openStorage(cfg *config.Config, log logx.Logger) (storage.Store, error) {
	if cfg.Storage == nil {
		return nil, nil
	}
	busy, err := config.DurationOrDefault("storage.busy_timeout", cfg.Storage.BusyTimeout, 5*time.Second)
	if err != nil {
		return nil, err
	}
	return storage.Open(storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busy,
	}, log.With(logx.String("comp", "storage")))
}

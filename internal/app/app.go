// Package app wires configuration, storage and the long-running services
// together for the CLI and the server.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/gmsas95/pillpal/internal/api"
	"github.com/gmsas95/pillpal/internal/config"
	"github.com/gmsas95/pillpal/internal/cron"
	"github.com/gmsas95/pillpal/internal/doses"
	"github.com/gmsas95/pillpal/internal/llm"
	"github.com/gmsas95/pillpal/internal/metrics"
	"github.com/gmsas95/pillpal/internal/notify"
	"github.com/gmsas95/pillpal/internal/store"
	"github.com/gmsas95/pillpal/internal/tracker"
	"github.com/gmsas95/pillpal/internal/visit"
)

type App struct {
	Config     *config.Config
	ConfigPath string
	Store      *store.Store
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
	Tracker    *tracker.Tracker
	Providers  *llm.ProviderManager
	Visits     *visit.Generator
	Dispatcher *notify.Dispatcher
	Hub        *notify.Hub
	Telegram   *notify.TelegramNotifier
	Discord    *notify.DiscordNotifier
	CronRunner *cron.Runner
	Version    string

	now      func() time.Time
	stopOnce sync.Once
}

// Option customises an App before its tracker loads.
type Option func(*App)

// WithClock replaces the wall clock, for tests and demos.
func WithClock(now func() time.Time) Option {
	return func(a *App) { a.now = now }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(a *App) { a.Metrics = m }
}

// WithConfigPath sets the file watched for live policy changes.
func WithConfigPath(path string) Option {
	return func(a *App) { a.ConfigPath = path }
}

// New builds the tracker on top of st and restores its state. Only local
// notification channels are set up; see ConnectChannels.
func New(cfg *config.Config, st *store.Store, logger *zap.Logger, version string, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	a := &App{
		Config:  cfg,
		Store:   st,
		Logger:  logger,
		Version: version,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.Metrics == nil {
		a.Metrics = metrics.Default()
	}

	seed, err := store.LoadSeed(cfg.Storage.SeedFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load seed medications: %w", err)
	}

	a.Tracker = tracker.New(store.NewRepository(st.Blobs()), logger.Named("tracker"),
		tracker.WithClock(a.now),
		tracker.WithSeed(seed),
		tracker.WithPolicy(Policy(cfg.Tracking)),
		tracker.WithMetrics(a.Metrics),
	)
	a.Tracker.Load(context.Background())

	a.Providers = llm.FromConfig(cfg, logger.Named("llm"))
	if a.Providers.Len() > 0 {
		a.Visits = visit.NewGenerator(a.Providers, logger.Named("visit"), a.Metrics)
	} else {
		logger.Warn("No LLM provider configured, doctor-visit questions are disabled")
		a.Visits = visit.NewGenerator(nil, logger.Named("visit"), a.Metrics)
	}

	a.setupNotifiers()

	return a, nil
}

// Policy maps the tracking settings to a reconciliation policy.
func Policy(cfg config.TrackingConfig) doses.Policy {
	if cfg.AutoSkipPastDue {
		return doses.AutoSkipPastDue(cfg.Grace())
	}
	return doses.NoPolicy
}

func (a *App) setupNotifiers() {
	cfg := a.Config.Notifications
	a.Dispatcher = notify.NewDispatcher(a.Logger.Named("notify"), a.Metrics, cfg.RatePerMinute)

	if cfg.Log {
		a.Dispatcher.Add(notify.NewLogNotifier(a.Logger.Named("reminder")))
	}

	if cfg.WebSocket.Enabled {
		a.Hub = notify.NewHub(a.Logger.Named("ws"), a.Metrics)
		a.Dispatcher.Add(a.Hub)
	}
}

// ConnectChannels logs in to the enabled chat services and registers them
// with the dispatcher. Calling it again is a no-op.
func (a *App) ConnectChannels() error {
	cfg := a.Config.Notifications

	if cfg.Telegram.Enabled && a.Telegram == nil {
		bot, err := notify.NewTelegramNotifier(notify.TelegramConfig{
			Token:   cfg.Telegram.BotToken,
			ChatIDs: cfg.Telegram.ChatIDs,
		}, a.Logger.Named("telegram"))
		if err != nil {
			return fmt.Errorf("failed to create Telegram notifier: %w", err)
		}
		bot.SetTodaySummary(a.TodaySummary)
		a.Telegram = bot
		a.Dispatcher.Add(bot)
	}

	if cfg.Discord.Enabled && a.Discord == nil {
		d, err := notify.NewDiscordNotifier(notify.DiscordConfig{
			Token:     cfg.Discord.Token,
			ChannelID: cfg.Discord.ChannelID,
		}, a.Logger.Named("discord"))
		if err != nil {
			return fmt.Errorf("failed to create Discord notifier: %w", err)
		}
		a.Discord = d
		a.Dispatcher.Add(d)
	}

	return nil
}

// TodaySummary is a short plain-text digest of today's doses.
func (a *App) TodaySummary() string {
	today := a.Tracker.TodayDoses()
	if len(today) == 0 {
		return "No doses scheduled today."
	}

	s := a.Tracker.Adherence().Summary() + "\n"
	for _, d := range today {
		name := d.MedicationID
		if m, ok := a.Tracker.Medication(d.MedicationID); ok {
			name = m.Name + " " + m.Dosage
		}
		s += fmt.Sprintf("\n%s  %s  (%s)", d.ScheduledTime.Format("15:04"), name, d.Status)
	}
	return s
}

// StartServices starts the scheduler, chat bots and config watcher.
func (a *App) StartServices() error {
	if err := a.ConnectChannels(); err != nil {
		return err
	}

	if a.Config.Scheduler.Enabled {
		a.CronRunner = cron.NewRunner(cron.Config{}, a.Logger.Named("cron"))

		refresh := cron.NewRefreshJob(a.Tracker, a.Store, a.Logger.Named("cron"))
		if _, err := a.CronRunner.AddJob(a.Config.Scheduler.RefreshSpec, refresh); err != nil {
			return err
		}

		reminders := cron.NewReminderJob(a.Tracker, a.Store, a.Dispatcher, a.Logger.Named("cron"))
		if _, err := a.CronRunner.AddJob(a.Config.Scheduler.ReminderSpec, reminders); err != nil {
			return err
		}

		if err := a.CronRunner.Start(); err != nil {
			return fmt.Errorf("failed to start cron runner: %w", err)
		}
		a.CronRunner.RunNow(refresh)
		a.Logger.Info("Cron runner started")
	}

	if a.Telegram != nil {
		a.Telegram.Start()
		a.Logger.Info("Telegram notifier started")
	}

	if err := config.Watch(a.ConfigPath, a.Config.Storage.DataDir, a.Logger.Named("config"), a.applyConfig); err != nil {
		a.Logger.Debug("Config watch disabled", zap.Error(err))
	}

	return nil
}

// applyConfig picks up the settings that can change without a restart.
func (a *App) applyConfig(cfg *config.Config) {
	a.Tracker.SetPolicy(Policy(cfg.Tracking))
	a.Logger.Info("Tracking policy updated",
		zap.Bool("auto_skip_past_due", cfg.Tracking.AutoSkipPastDue),
		zap.Duration("grace", cfg.Tracking.Grace()),
	)
}

// NewServer builds the HTTP API over the app's services.
func (a *App) NewServer() *api.Server {
	api.Version = a.Version

	var jobs api.JobLister
	if a.CronRunner != nil {
		jobs = a.CronRunner
	}

	return api.New(a.Config, api.Deps{
		Tracker:    a.Tracker,
		Dispatcher: a.Dispatcher,
		Hub:        a.Hub,
		Visits:     a.Visits,
		Providers:  a.Providers,
		History:    a.Store,
		Jobs:       jobs,
		Metrics:    a.Metrics,
	}, a.Logger.Named("api"))
}

// RunServer serves the API until SIGINT or SIGTERM.
func (a *App) RunServer() error {
	if err := a.StartServices(); err != nil {
		return err
	}

	server := a.NewServer()
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	a.Logger.Info("Server started",
		zap.String("address", a.Config.Server.Address),
		zap.Int("port", a.Config.Server.Port),
		zap.String("url", fmt.Sprintf("http://%s:%d", a.Config.Server.Address, a.Config.Server.Port)),
		zap.Int("medications", len(a.Tracker.Medications())),
		zap.Int("doses_today", len(a.Tracker.TodayDoses())),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	var serveErr error
	select {
	case <-quit:
	case serveErr = <-errCh:
		a.Logger.Error("Server error", zap.Error(serveErr))
	}

	a.Logger.Info("Shutting down...")
	a.stopServices()

	if err := server.Shutdown(); err != nil {
		a.Logger.Error("Server shutdown error", zap.Error(err))
	}
	return serveErr
}

func (a *App) stopServices() {
	a.stopOnce.Do(func() {
		if a.Telegram != nil {
			a.Telegram.Stop()
		}
		if a.CronRunner != nil {
			a.CronRunner.Stop()
		}
	})
}

// Close stops background services and releases the store.
func (a *App) Close() error {
	a.stopServices()
	if a.Store == nil {
		return nil
	}
	if err := a.Store.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		return err
	}
	return nil
}

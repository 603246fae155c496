package cron

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gmsas95/pillpal/internal/doses"
	"github.com/gmsas95/pillpal/internal/notify"
)

// Refresher reconciles the tracker against its clock.
type Refresher interface {
	Refresh(ctx context.Context) bool
	Now() time.Time
}

// NotificationPruner forgets delivered reminders older than a cut-off.
type NotificationPruner interface {
	PruneNotifications(ctx context.Context, before time.Time) (int64, error)
}

// RefreshJob keeps today's dose list current and clears the previous day's
// notification records at rollover.
type RefreshJob struct {
	tracker Refresher
	pruner  NotificationPruner
	logger  *zap.Logger

	mu      sync.Mutex
	lastDay time.Time
}

func NewRefreshJob(tracker Refresher, pruner NotificationPruner, logger *zap.Logger) *RefreshJob {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RefreshJob{tracker: tracker, pruner: pruner, logger: logger}
}

func (j *RefreshJob) Name() string { return "refresh" }

func (j *RefreshJob) Run(ctx context.Context) {
	if j.tracker.Refresh(ctx) {
		j.logger.Debug("Dose list changed on refresh")
	}

	start, _ := doses.DayWindow(j.tracker.Now())

	j.mu.Lock()
	rolled := !start.Equal(j.lastDay)
	j.lastDay = start
	j.mu.Unlock()

	if !rolled || j.pruner == nil {
		return
	}

	n, err := j.pruner.PruneNotifications(ctx, start)
	if err != nil {
		j.logger.Warn("Failed to prune notifications", zap.Error(err))
		return
	}
	if n > 0 {
		j.logger.Info("Pruned notification records", zap.Int64("count", n))
	}
}

// ReminderSource yields the doses due in a given minute.
type ReminderSource interface {
	Refresher
	Reminders(now time.Time) []doses.Reminder
}

// NotificationLog remembers which doses were already announced.
type NotificationLog interface {
	WasNotified(ctx context.Context, doseID string) (bool, error)
	MarkNotified(ctx context.Context, r doses.Reminder, channels []string) (bool, error)
}

// Dispatcher delivers a notification to the user's channels.
type Dispatcher interface {
	Dispatch(ctx context.Context, n notify.Notification) ([]string, error)
}

// ReminderJob announces pending doses that fall in the current minute. It
// never changes a dose status.
type ReminderJob struct {
	source     ReminderSource
	log        NotificationLog
	dispatcher Dispatcher
	logger     *zap.Logger

	mu         sync.Mutex
	lastMinute time.Time
}

func NewReminderJob(source ReminderSource, log NotificationLog, dispatcher Dispatcher, logger *zap.Logger) *ReminderJob {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReminderJob{source: source, log: log, dispatcher: dispatcher, logger: logger}
}

func (j *ReminderJob) Name() string { return "reminders" }

func (j *ReminderJob) Run(ctx context.Context) {
	now := j.source.Now()
	minute := now.Truncate(time.Minute)

	// A minute is evaluated at most once even if the trigger fires twice.
	j.mu.Lock()
	if !minute.After(j.lastMinute) {
		j.mu.Unlock()
		return
	}
	j.lastMinute = minute
	j.mu.Unlock()

	// Roll the list over first; a 00:00 dose exists only in the new day.
	j.source.Refresh(ctx)

	for _, r := range j.source.Reminders(now) {
		if ctx.Err() != nil {
			return
		}
		j.announce(ctx, r)
	}
}

func (j *ReminderJob) announce(ctx context.Context, r doses.Reminder) {
	if j.log != nil {
		seen, err := j.log.WasNotified(ctx, r.Dose.ID)
		if err != nil {
			j.logger.Warn("Failed to check notification log", zap.String("dose_id", r.Dose.ID), zap.Error(err))
		}
		if seen {
			return
		}
	}

	delivered, err := j.dispatcher.Dispatch(ctx, notify.FromReminder(r))
	if err != nil {
		j.logger.Error("Failed to deliver reminder", zap.String("dose_id", r.Dose.ID), zap.Error(err))
		return
	}
	if len(delivered) == 0 {
		j.logger.Debug("No channel accepted reminder", zap.String("dose_id", r.Dose.ID))
		return
	}
	j.logger.Info("Reminder sent",
		zap.String("dose_id", r.Dose.ID),
		zap.String("medication", r.Medication.Name),
		zap.Strings("channels", delivered),
	)

	// Undelivered reminders stay unlogged; a restart in the same minute retries them.
	if j.log == nil {
		return
	}
	if _, err := j.log.MarkNotified(ctx, r, delivered); err != nil {
		j.logger.Warn("Failed to record notification", zap.String("dose_id", r.Dose.ID), zap.Error(err))
	}
}

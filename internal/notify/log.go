package notify

import (
	"context"

	"go.uber.org/zap"
)

// LogNotifier writes reminders to the application log. It is always granted.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) Name() string { return "log" }

func (l *LogNotifier) RequestPermission(context.Context) (Permission, error) {
	return PermissionGranted, nil
}

func (l *LogNotifier) Show(_ context.Context, n Notification) error {
	l.logger.Info(n.Title,
		zap.String("body", n.Body),
		zap.String("dose_id", n.DoseID),
		zap.Time("scheduled_time", n.ScheduledTime),
	)
	return nil
}

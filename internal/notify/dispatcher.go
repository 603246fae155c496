package notify

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/gmsas95/pillpal/internal/metrics"
)

// Dispatcher fans a notification out to every granted channel.
type Dispatcher struct {
	notifiers []Notifier
	limiter   *rate.Limiter
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// NewDispatcher throttles sends to perMinute across all channels. Zero or
// less disables throttling.
func NewDispatcher(logger *zap.Logger, m *metrics.Metrics, perMinute int, notifiers ...Notifier) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.Default()
	}
	limit := rate.Inf
	burst := 1
	if perMinute > 0 {
		limit = rate.Limit(float64(perMinute) / 60)
		burst = perMinute
	}
	return &Dispatcher{
		notifiers: notifiers,
		limiter:   rate.NewLimiter(limit, burst),
		logger:    logger,
		metrics:   m,
	}
}

// Add registers another channel
func (d *Dispatcher) Add(n Notifier) {
	d.notifiers = append(d.notifiers, n)
}

// Notifiers returns the registered channels
func (d *Dispatcher) Notifiers() []Notifier {
	return append([]Notifier(nil), d.notifiers...)
}

// Dispatch shows n on every channel whose permission is granted and returns
// the names of the channels that delivered it. A denied or undecided channel
// is skipped silently. The error is non-nil only when no channel delivered
// and at least one failed.
func (d *Dispatcher) Dispatch(ctx context.Context, n Notification) ([]string, error) {
	var delivered []string
	var errs []error

	for _, notifier := range d.notifiers {
		name := notifier.Name()

		perm, err := notifier.RequestPermission(ctx)
		if err != nil {
			d.logger.Warn("Failed to get notification permission", zap.String("channel", name), zap.Error(err))
			continue
		}
		if perm != PermissionGranted {
			continue
		}

		if err := d.limiter.Wait(ctx); err != nil {
			return delivered, fmt.Errorf("notification throttled: %w", err)
		}

		if err := notifier.Show(ctx, n); err != nil {
			d.metrics.RecordNotification(name, false)
			d.logger.Error("Failed to show notification",
				zap.String("channel", name),
				zap.String("dose_id", n.DoseID),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}

		d.metrics.RecordNotification(name, true)
		delivered = append(delivered, name)
	}

	if len(delivered) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return delivered, nil
}

// Permissions reports each channel's current permission.
func (d *Dispatcher) Permissions(ctx context.Context) map[string]Permission {
	out := make(map[string]Permission, len(d.notifiers))
	for _, n := range d.notifiers {
		perm, err := n.RequestPermission(ctx)
		if err != nil {
			perm = PermissionDefault
		}
		out[n.Name()] = perm
	}
	return out
}

// Permission folds the channel permissions into one: granted if any channel
// is granted, denied if every channel is denied, default otherwise.
func (d *Dispatcher) Permission(ctx context.Context) Permission {
	perms := d.Permissions(ctx)
	if len(perms) == 0 {
		return PermissionDenied
	}
	denied := 0
	for _, p := range perms {
		switch p {
		case PermissionGranted:
			return PermissionGranted
		case PermissionDenied:
			denied++
		}
	}
	if denied == len(perms) {
		return PermissionDenied
	}
	return PermissionDefault
}

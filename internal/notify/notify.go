// Package notify delivers dose reminders to the user's channels.
package notify

import (
	"context"
	"time"

	"github.com/gmsas95/pillpal/internal/doses"
)

// Permission is whether a channel may show notifications.
type Permission string

const (
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
	PermissionDefault Permission = "default"
)

// Notification is one reminder as shown to the user.
type Notification struct {
	Title         string    `json:"title"`
	Body          string    `json:"body"`
	DoseID        string    `json:"dose_id"`
	MedicationID  string    `json:"medication_id"`
	ScheduledTime time.Time `json:"scheduled_time"`
}

// FromReminder builds the notification shown for a due dose.
func FromReminder(r doses.Reminder) Notification {
	return Notification{
		Title:         r.Title(),
		Body:          r.Body(),
		DoseID:        r.Dose.ID,
		MedicationID:  r.Medication.ID,
		ScheduledTime: r.Dose.ScheduledTime,
	}
}

// Notifier is a notification channel.
//
// RequestPermission returns the channel's current permission, asking for it
// first when it is still PermissionDefault and the channel supports asking.
type Notifier interface {
	Name() string
	RequestPermission(ctx context.Context) (Permission, error)
	Show(ctx context.Context, n Notification) error
}

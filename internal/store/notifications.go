package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm/clause"

	"github.com/gmsas95/pillpal/internal/doses"
)

// MarkNotified records that r was delivered. It reports false when the dose
// had already been recorded, so a reminder fires at most once across restarts.
func (s *Store) MarkNotified(ctx context.Context, r doses.Reminder, channels []string) (bool, error) {
	rec := Notification{
		DoseID:        r.Dose.ID,
		MedicationID:  r.Dose.MedicationID,
		Channels:      strings.Join(channels, ","),
		ScheduledTime: r.Dose.ScheduledTime.UTC(),
		NotifiedAt:    time.Now().UTC(),
	}

	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rec)
	if res.Error != nil {
		return false, fmt.Errorf("failed to record notification: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// WasNotified reports whether a reminder for doseID was already recorded.
func (s *Store) WasNotified(ctx context.Context, doseID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&Notification{}).Where("dose_id = ?", doseID).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to query notifications: %w", err)
	}
	return count > 0, nil
}

// PruneNotifications drops records for doses scheduled before the given time.
func (s *Store) PruneNotifications(ctx context.Context, before time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("scheduled_time < ?", before.UTC()).Delete(&Notification{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to prune notifications: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// RecentNotifications lists the latest delivered reminders, newest first.
func (s *Store) RecentNotifications(ctx context.Context, limit int) ([]Notification, error) {
	var out []Notification
	q := s.db.WithContext(ctx).Order("notified_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return out, nil
}

package store

import "time"

// Blob is a named opaque value in the sqlite blob backend
type Blob struct {
	Name      string    `gorm:"primaryKey"`
	Data      []byte    `gorm:"type:blob"`
	UpdatedAt time.Time
}

func (Blob) TableName() string { return "blobs" }

// Notification records a reminder that was already delivered for a dose
type Notification struct {
	DoseID        string    `gorm:"primaryKey" json:"dose_id"`
	MedicationID  string    `gorm:"index" json:"medication_id"`
	Channels      string    `json:"channels"`
	ScheduledTime time.Time `gorm:"index" json:"scheduled_time"`
	NotifiedAt    time.Time `json:"notified_at"`
}

func (Notification) TableName() string { return "notifications" }

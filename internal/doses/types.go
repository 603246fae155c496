// Package doses holds the daily dose schedule, reconciliation and adherence rules.
// Every function here is pure: callers pass "now" explicitly and get new slices back.
package doses

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInvalidStatus is returned when a user tries to set anything but taken or skipped.
	ErrInvalidStatus = errors.New("doses: status must be taken or skipped")
	// ErrInvalidMedication wraps validation failures for a medication record.
	ErrInvalidMedication = errors.New("doses: invalid medication")
	// ErrInvalidClockTime is returned for malformed "HH:mm" strings.
	ErrInvalidClockTime = errors.New("doses: invalid clock time")
)

// Frequency is the number of hours between two doses.
type Frequency int

const (
	Every8Hours  Frequency = 8
	Every12Hours Frequency = 12
	Every24Hours Frequency = 24
)

// Frequencies lists the supported dosing intervals.
var Frequencies = []Frequency{Every8Hours, Every12Hours, Every24Hours}

// Valid reports whether f is one of the supported intervals.
func (f Frequency) Valid() bool {
	switch f {
	case Every8Hours, Every12Hours, Every24Hours:
		return true
	}
	return false
}

// Interval returns the frequency as a duration.
func (f Frequency) Interval() time.Duration {
	return time.Duration(f) * time.Hour
}

// ClockTime is a time of day with minute resolution.
type ClockTime struct {
	Hour   int
	Minute int
}

// ParseClockTime parses "HH:mm" (24h).
func ParseClockTime(s string) (ClockTime, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return ClockTime{}, fmt.Errorf("%w: %q", ErrInvalidClockTime, s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return ClockTime{}, fmt.Errorf("%w: %q", ErrInvalidClockTime, s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return ClockTime{}, fmt.Errorf("%w: %q", ErrInvalidClockTime, s)
	}
	ct := ClockTime{Hour: hour, Minute: minute}
	if !ct.Valid() {
		return ClockTime{}, fmt.Errorf("%w: %q", ErrInvalidClockTime, s)
	}
	return ct, nil
}

// MustClockTime is ParseClockTime for literals; it panics on bad input.
func MustClockTime(s string) ClockTime {
	ct, err := ParseClockTime(s)
	if err != nil {
		panic(err)
	}
	return ct
}

func (c ClockTime) Valid() bool {
	return c.Hour >= 0 && c.Hour < 24 && c.Minute >= 0 && c.Minute < 60
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// On returns the instant at this clock time on t's calendar day, in t's location.
func (c ClockTime) On(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), c.Hour, c.Minute, 0, 0, t.Location())
}

func (c ClockTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *ClockTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidClockTime, string(data))
	}
	parsed, err := ParseClockTime(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// MarshalYAML and UnmarshalYAML keep seed files in the same "HH:mm" form.
func (c ClockTime) MarshalYAML() (interface{}, error) {
	return c.String(), nil
}

func (c *ClockTime) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := ParseClockTime(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Medication is a registered medication and its daily schedule anchor.
type Medication struct {
	ID           string    `json:"id" yaml:"id"`
	Name         string    `json:"name" yaml:"name"`
	Dosage       string    `json:"dosage" yaml:"dosage"`
	Frequency    Frequency `json:"frequency" yaml:"frequency"`
	StartTime    ClockTime `json:"startTime" yaml:"start_time"`
	Observations string    `json:"observations,omitempty" yaml:"observations,omitempty"`
}

// Validate checks the fields a medication needs before it can be scheduled.
func (m Medication) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidMedication)
	}
	if strings.TrimSpace(m.Dosage) == "" {
		return fmt.Errorf("%w: dosage is required", ErrInvalidMedication)
	}
	if !m.Frequency.Valid() {
		return fmt.Errorf("%w: frequency must be 8, 12 or 24 hours, got %d", ErrInvalidMedication, m.Frequency)
	}
	if !m.StartTime.Valid() {
		return fmt.Errorf("%w: start time %s", ErrInvalidMedication, m.StartTime)
	}
	return nil
}

// Status is the recorded outcome of a dose.
type Status string

const (
	StatusPending Status = "pending"
	StatusTaken   Status = "taken"
	StatusSkipped Status = "skipped"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusTaken, StatusSkipped:
		return true
	}
	return false
}

// Dose is one expected administration of a medication.
type Dose struct {
	ID            string    `json:"id"`
	MedicationID  string    `json:"medicationId"`
	ScheduledTime time.Time `json:"scheduledTime"`
	Status        Status    `json:"status"`
}

// DoseID derives the identity of a dose from its medication and exact instant.
// Recomputing a schedule always lands on the same ids.
func DoseID(medicationID string, at time.Time) string {
	return medicationID + "-" + strconv.FormatInt(at.UnixMilli(), 10)
}

package doses

import (
	"sort"
	"time"
)

// GenerateDoses expands a medication into pending doses inside [from, to].
//
// The anchor is from's calendar day at the medication's start time. Instants
// are emitted every Frequency hours while they fall inside the window; an
// anchor earlier than from is skipped rather than pulled forward.
func GenerateDoses(med Medication, from, to time.Time) []Dose {
	if !med.Frequency.Valid() || to.Before(from) {
		return nil
	}

	step := med.Frequency.Interval()
	var out []Dose
	for at := med.StartTime.On(from); !at.After(to); at = at.Add(step) {
		if at.Before(from) {
			continue
		}
		out = append(out, Dose{
			ID:            DoseID(med.ID, at),
			MedicationID:  med.ID,
			ScheduledTime: at,
			Status:        StatusPending,
		})
	}
	return out
}

// DayWindow returns the first and last millisecond of t's day in t's location.
func DayWindow(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	end := time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(999*time.Millisecond), t.Location())
	return start, end
}

// GenerateDay builds the fresh schedule of every medication for t's day.
func GenerateDay(meds []Medication, t time.Time) []Dose {
	start, end := DayWindow(t)
	var out []Dose
	for _, med := range meds {
		out = append(out, GenerateDoses(med, start, end)...)
	}
	return out
}

// SameDay reports whether a falls on ref's calendar day, in ref's location.
func SameDay(a, ref time.Time) bool {
	a = a.In(ref.Location())
	y1, m1, d1 := a.Date()
	y2, m2, d2 := ref.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

func sameMinute(a, ref time.Time) bool {
	a = a.In(ref.Location())
	return SameDay(a, ref) && a.Hour() == ref.Hour() && a.Minute() == ref.Minute()
}

// SortByTime returns a copy ordered by scheduled time, ties broken by id.
func SortByTime(list []Dose) []Dose {
	out := clone(list)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ScheduledTime.Equal(out[j].ScheduledTime) {
			return out[i].ID < out[j].ID
		}
		return out[i].ScheduledTime.Before(out[j].ScheduledTime)
	})
	return out
}

// Today keeps the doses scheduled on now's day.
func Today(list []Dose, now time.Time) []Dose {
	out := make([]Dose, 0, len(list))
	for _, d := range list {
		if SameDay(d.ScheduledTime, now) {
			out = append(out, d)
		}
	}
	return out
}

func clone(list []Dose) []Dose {
	if list == nil {
		return nil
	}
	out := make([]Dose, len(list))
	copy(out, list)
	return out
}

package doses

import "time"

// Reconcile produces today's authoritative dose list.
//
// The fresh schedule for now's day is merged with previous records: when a
// previous dose scheduled today carries the same id, it wins and keeps its
// status. Previous doses from other days, or whose id is no longer generated,
// are dropped. Output order follows medication order then time; callers that
// need chronological order use SortByTime.
func Reconcile(meds []Medication, previous []Dose, now time.Time) []Dose {
	known := make(map[string]Dose, len(previous))
	for _, d := range previous {
		if SameDay(d.ScheduledTime, now) {
			known[d.ID] = d
		}
	}

	fresh := GenerateDay(meds, now)
	for i, d := range fresh {
		if prev, ok := known[d.ID]; ok {
			fresh[i] = prev
		}
	}
	return fresh
}

// RemoveMedication drops every dose owned by medicationID.
func RemoveMedication(list []Dose, medicationID string) []Dose {
	out := make([]Dose, 0, len(list))
	for _, d := range list {
		if d.MedicationID != medicationID {
			out = append(out, d)
		}
	}
	return out
}

// PruneOrphans drops doses whose medication is not in meds.
func PruneOrphans(list []Dose, meds []Medication) []Dose {
	ids := make(map[string]struct{}, len(meds))
	for _, m := range meds {
		ids[m.ID] = struct{}{}
	}
	out := make([]Dose, 0, len(list))
	for _, d := range list {
		if _, ok := ids[d.MedicationID]; ok {
			out = append(out, d)
		}
	}
	return out
}

// Policy post-processes a reconciled list. It must not modify its input.
type Policy func(list []Dose, now time.Time) []Dose

// NoPolicy leaves the list as reconciled.
func NoPolicy(list []Dose, _ time.Time) []Dose {
	return list
}

// AutoSkipPastDue marks pending doses scheduled more than grace before now as
// skipped.
func AutoSkipPastDue(grace time.Duration) Policy {
	return func(list []Dose, now time.Time) []Dose {
		cutoff := now.Add(-grace)
		out := clone(list)
		for i, d := range out {
			if d.Status == StatusPending && d.ScheduledTime.Before(cutoff) {
				out[i].Status = StatusSkipped
			}
		}
		return out
	}
}

// Equal compares two lists by id, status and scheduled instant, in order.
func Equal(a, b []Dose) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID || a[i].Status != b[i].Status || !a[i].ScheduledTime.Equal(b[i].ScheduledTime) {
			return false
		}
	}
	return true
}

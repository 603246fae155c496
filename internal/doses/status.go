package doses

import (
	"fmt"
	"time"
)

// SetStatus returns a copy of list with doseID's status replaced.
// Unknown ids leave the copy identical to list.
func SetStatus(list []Dose, doseID string, status Status) ([]Dose, error) {
	if status != StatusTaken && status != StatusSkipped {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	out := clone(list)
	for i := range out {
		if out[i].ID == doseID {
			out[i].Status = status
			break
		}
	}
	return out, nil
}

// Find returns the dose with the given id.
func Find(list []Dose, doseID string) (Dose, bool) {
	for _, d := range list {
		if d.ID == doseID {
			return d, true
		}
	}
	return Dose{}, false
}

// Reminder pairs a due dose with its medication.
type Reminder struct {
	Dose       Dose
	Medication Medication
}

func (r Reminder) Title() string {
	return "Time for " + r.Medication.Name
}

func (r Reminder) Body() string {
	return fmt.Sprintf("Take %s of %s (scheduled %s).",
		r.Medication.Dosage, r.Medication.Name, r.Dose.ScheduledTime.Format("15:04"))
}

// DueReminders selects the pending doses scheduled in now's minute.
// It is meant to run once per minute tick and never changes a status.
func DueReminders(list []Dose, meds []Medication, now time.Time) []Reminder {
	byID := make(map[string]Medication, len(meds))
	for _, m := range meds {
		byID[m.ID] = m
	}

	var out []Reminder
	for _, d := range list {
		if d.Status != StatusPending || !sameMinute(d.ScheduledTime, now) {
			continue
		}
		med, ok := byID[d.MedicationID]
		if !ok {
			continue
		}
		out = append(out, Reminder{Dose: d, Medication: med})
	}
	return out
}

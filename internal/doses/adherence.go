package doses

import (
	"fmt"
	"math"
	"time"
)

// Adherence summarises today's doses.
type Adherence struct {
	Taken   int `json:"taken"`
	Skipped int `json:"skipped"`
	Pending int `json:"pending"`
	Rate    int `json:"adherence_rate"`
}

// ComputeAdherence counts today's doses as of now.
//
// Taken and skipped only count doses already due; pending counts by status
// alone. With no taken or skipped dose yet the rate is 100.
func ComputeAdherence(list []Dose, now time.Time) Adherence {
	var a Adherence
	for _, d := range list {
		if !SameDay(d.ScheduledTime, now) {
			continue
		}
		elapsed := !d.ScheduledTime.After(now)
		switch d.Status {
		case StatusPending:
			a.Pending++
		case StatusTaken:
			if elapsed {
				a.Taken++
			}
		case StatusSkipped:
			if elapsed {
				a.Skipped++
			}
		}
	}
	a.Rate = rate(a.Taken, a.Skipped)
	return a
}

func rate(taken, skipped int) int {
	total := taken + skipped
	if total == 0 {
		return 100
	}
	return int(math.Round(float64(taken) / float64(total) * 100))
}

// Summary is the plain-text line handed to the doctor-visit prompt.
func (a Adherence) Summary() string {
	return fmt.Sprintf("Adherence rate: %d%%. Taken: %d doses, Skipped: %d doses.", a.Rate, a.Taken, a.Skipped)
}

// MedicationAdherence is the adherence of a single medication.
type MedicationAdherence struct {
	MedicationID string `json:"medication_id"`
	Name         string `json:"name"`
	Adherence
}

// AdherenceByMedication applies ComputeAdherence per medication, in meds order.
func AdherenceByMedication(list []Dose, meds []Medication, now time.Time) []MedicationAdherence {
	byMed := make(map[string][]Dose, len(meds))
	for _, d := range list {
		byMed[d.MedicationID] = append(byMed[d.MedicationID], d)
	}
	out := make([]MedicationAdherence, 0, len(meds))
	for _, m := range meds {
		out = append(out, MedicationAdherence{
			MedicationID: m.ID,
			Name:         m.Name,
			Adherence:    ComputeAdherence(byMed[m.ID], now),
		})
	}
	return out
}

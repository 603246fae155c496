package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/gmsas95/pillpal/internal/app"
	"github.com/gmsas95/pillpal/internal/doses"
	apperrors "github.com/gmsas95/pillpal/internal/errors"
)

// DosesCommand shows today's doses and records taken or skipped.
func DosesCommand(w io.Writer, a *app.App, args []string) error {
	if len(args) == 0 {
		args = []string{"today"}
	}

	switch args[0] {
	case "today", "list", "ls":
		listToday(w, a)
		return nil

	case "take", "skip":
		if len(args) < 2 {
			return fmt.Errorf("usage: pillpal doses %s <number|id>", args[0])
		}
		status := doses.StatusTaken
		if args[0] == "skip" {
			status = doses.StatusSkipped
		}

		id, err := resolveDose(a, args[1])
		if err != nil {
			return err
		}
		d, applied, err := a.Tracker.SetDoseStatus(context.Background(), id, status)
		if err != nil {
			return err
		}
		if !applied {
			return apperrors.ErrDoseNotFound.WithMessage("dose %s not found", id)
		}
		fmt.Fprintf(w, "%s  %s  %s\n", d.ScheduledTime.Format("15:04"), doseName(a, d), statusLabel(d.Status))
		return nil

	default:
		return fmt.Errorf("unknown doses command %q", args[0])
	}
}

// resolveDose accepts the 1-based position shown by "doses today" or a dose id.
func resolveDose(a *app.App, ref string) (string, error) {
	n, err := strconv.Atoi(ref)
	if err != nil {
		return ref, nil
	}
	today := a.Tracker.TodayDoses()
	if n < 1 || n > len(today) {
		return "", apperrors.ErrDoseNotFound.WithMessage("no dose #%d today (1-%d)", n, len(today))
	}
	return today[n-1].ID, nil
}

func doseName(a *app.App, d doses.Dose) string {
	if m, ok := a.Tracker.Medication(d.MedicationID); ok {
		return m.Name + " " + m.Dosage
	}
	return d.MedicationID
}

func listToday(w io.Writer, a *app.App) {
	today := a.Tracker.TodayDoses()
	fmt.Fprintln(w, titleStyle.Render("Today, "+a.Tracker.Now().Format("Mon Jan 2")))
	if len(today) == 0 {
		fmt.Fprintln(w, "No doses scheduled today.")
		return
	}
	for i, d := range today {
		fmt.Fprintf(w, "  %2d. %s  %-24s %s\n", i+1, d.ScheduledTime.Format("15:04"), doseName(a, d), statusLabel(d.Status))
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, mutedStyle.Render(a.Tracker.Adherence().Summary()))
}

// AdherenceCommand prints today's adherence overall and per medication.
func AdherenceCommand(w io.Writer, a *app.App) error {
	overall := a.Tracker.Adherence()

	fmt.Fprintln(w, boxStyle.Render(fmt.Sprintf("%s\n%d%% adherence\n%d taken · %d skipped · %d pending",
		titleStyle.Render("Today"), overall.Rate, overall.Taken, overall.Skipped, overall.Pending)))

	for _, m := range a.Tracker.AdherenceByMedication() {
		fmt.Fprintf(w, "  %-16s %3d%%  %d taken, %d skipped, %d pending\n",
			m.Name, m.Rate, m.Taken, m.Skipped, m.Pending)
	}
	return nil
}

package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gmsas95/pillpal/internal/app"
	"github.com/gmsas95/pillpal/internal/doses"
	"github.com/gmsas95/pillpal/internal/tracker"
)

// MedsCommand lists, adds and deletes medications.
func MedsCommand(w io.Writer, a *app.App, args []string) error {
	if len(args) == 0 {
		args = []string{"list"}
	}

	switch args[0] {
	case "list", "ls":
		listMedications(w, a)
		return nil

	case "add", "new":
		in, err := parseMedicationArgs(args[1:])
		if err != nil {
			return err
		}
		m, err := a.Tracker.AddMedication(context.Background(), in)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "✓ Added %s %s every %dh from %s (id %s)\n", m.Name, m.Dosage, int(m.Frequency), m.StartTime, m.ID)
		return nil

	case "delete", "rm":
		if len(args) < 2 {
			return fmt.Errorf("usage: pillpal meds delete <id>")
		}
		m, ok := a.Tracker.Medication(args[1])
		if err := a.Tracker.DeleteMedication(context.Background(), args[1]); err != nil {
			return err
		}
		if ok {
			fmt.Fprintf(w, "✓ Deleted %s and its doses\n", m.Name)
		}
		return nil

	default:
		return fmt.Errorf("unknown meds command %q", args[0])
	}
}

func listMedications(w io.Writer, a *app.App) {
	meds := a.Tracker.Medications()
	if len(meds) == 0 {
		fmt.Fprintln(w, "No medications. Add one with: pillpal meds add --name <name> --dosage <dosage> --every <8|12|24> --at <HH:mm>")
		return
	}

	fmt.Fprintln(w, titleStyle.Render("Medications"))
	for _, m := range meds {
		fmt.Fprintf(w, "  %-38s %-14s %-8s every %2dh from %s\n", m.ID, m.Name, m.Dosage, int(m.Frequency), m.StartTime)
		if m.Observations != "" {
			fmt.Fprintf(w, "  %-38s %s\n", "", mutedStyle.Render(m.Observations))
		}
	}
}

// parseMedicationArgs reads --name, --dosage, --every, --at and --notes.
func parseMedicationArgs(args []string) (tracker.MedicationInput, error) {
	var in tracker.MedicationInput

	for i := 0; i < len(args); i++ {
		flag := args[i]
		if i+1 >= len(args) {
			return in, fmt.Errorf("missing value for %s", flag)
		}
		value := args[i+1]
		i++

		switch flag {
		case "-n", "--name":
			in.Name = value
		case "-d", "--dosage":
			in.Dosage = value
		case "-e", "--every":
			hours, err := strconv.Atoi(strings.TrimSuffix(value, "h"))
			if err != nil {
				return in, fmt.Errorf("invalid --every %q: %w", value, err)
			}
			in.Frequency = doses.Frequency(hours)
		case "-a", "--at":
			ct, err := doses.ParseClockTime(value)
			if err != nil {
				return in, err
			}
			in.StartTime = ct
		case "--notes":
			in.Observations = value
		default:
			return in, fmt.Errorf("unknown flag %s", flag)
		}
	}

	return in, nil
}

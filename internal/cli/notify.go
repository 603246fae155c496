package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/gmsas95/pillpal/internal/app"
	"github.com/gmsas95/pillpal/internal/notify"
)

// NotifyCommand reports channel permissions or sends a test reminder.
func NotifyCommand(w io.Writer, a *app.App, args []string) error {
	if len(args) == 0 {
		args = []string{"status"}
	}

	if err := a.ConnectChannels(); err != nil {
		return err
	}
	ctx := context.Background()

	switch args[0] {
	case "status", "permission":
		perms := a.Dispatcher.Permissions(ctx)
		names := make([]string, 0, len(perms))
		for name := range perms {
			names = append(names, name)
		}
		sort.Strings(names)

		fmt.Fprintf(w, "Permission: %s\n", a.Dispatcher.Permission(ctx))
		for _, name := range names {
			fmt.Fprintf(w, "  %-10s %s\n", name, perms[name])
		}
		return nil

	case "test":
		delivered, err := a.Dispatcher.Dispatch(ctx, notify.Notification{
			Title:         "PillPal test",
			Body:          "Reminders are working.",
			ScheduledTime: time.Now(),
		})
		if err != nil {
			return err
		}
		if len(delivered) == 0 {
			fmt.Fprintln(w, "No channel has permission to show notifications.")
			return nil
		}
		fmt.Fprintf(w, "✓ Delivered via %v\n", delivered)
		return nil

	default:
		return fmt.Errorf("unknown notify command %q", args[0])
	}
}

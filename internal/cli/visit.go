package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"

	"github.com/gmsas95/pillpal/internal/app"
	"github.com/gmsas95/pillpal/internal/visit"
)

const visitTimeout = 2 * time.Minute

// VisitCommand drafts questions for a doctor's appointment. Health details
// come from args, or are asked for on an interactive terminal.
func VisitCommand(w io.Writer, r io.Reader, a *app.App, args []string) error {
	details := strings.Join(args, " ")
	if details == "" && stdoutIsTerminal() {
		fmt.Fprint(w, "Anything to tell the doctor? (optional): ")
		line, _ := bufio.NewReader(r).ReadString('\n')
		details = strings.TrimSpace(line)
	}

	in := visit.BuildInput(a.Tracker.Adherence(), a.Tracker.Medications(), details)

	ctx, cancel := context.WithTimeout(context.Background(), visitTimeout)
	defer cancel()

	fmt.Fprintln(w, mutedStyle.Render("Asking the model..."))
	out, err := a.Visits.Generate(ctx, in)
	if err != nil {
		return err
	}

	return renderMarkdown(w, visitMarkdown(in, out))
}

func visitMarkdown(in visit.Input, out visit.Output) string {
	var sb strings.Builder
	sb.WriteString("# Questions for your doctor\n\n")
	for i, q := range visit.Questions(out.Prompt) {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, q)
	}
	sb.WriteString("\n---\n\n")
	fmt.Fprintf(&sb, "_%s_\n", in.MedicationAdherence)
	return sb.String()
}

// renderMarkdown styles md for a terminal and prints it raw otherwise.
func renderMarkdown(w io.Writer, md string) error {
	if !stdoutIsTerminal() {
		_, err := io.WriteString(w, md)
		return err
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(terminalWidth()-4),
	)
	if err != nil {
		return fmt.Errorf("failed to create renderer: %w", err)
	}
	styled, err := r.Render(md)
	if err != nil {
		return fmt.Errorf("failed to render markdown: %w", err)
	}
	_, err = io.WriteString(w, styled)
	return err
}

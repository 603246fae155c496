// Package visit drafts questions for a doctor's appointment from the
// patient's adherence, medication notes and free-text health details.
package visit

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"text/template"
	"time"

	"go.uber.org/zap"

	"github.com/gmsas95/pillpal/internal/doses"
	apperrors "github.com/gmsas95/pillpal/internal/errors"
	"github.com/gmsas95/pillpal/internal/metrics"
	"github.com/gmsas95/pillpal/internal/security"
)

// Input is what the model is told about the patient.
type Input struct {
	MedicationAdherence string `json:"medicationAdherence"`
	Observations        string `json:"observations"`
	HealthDetails       string `json:"healthDetails"`
}

// Output is the model's reply.
type Output struct {
	Prompt string `json:"prompt"`
}

const noObservations = "no observations"

// BuildInput assembles the input from today's adherence and the registered
// medications, one "- name: observations" line per medication.
func BuildInput(a doses.Adherence, meds []doses.Medication, healthDetails string) Input {
	lines := make([]string, 0, len(meds))
	for _, m := range meds {
		obs := strings.TrimSpace(m.Observations)
		if obs == "" {
			obs = noObservations
		}
		lines = append(lines, fmt.Sprintf("- %s: %s", m.Name, obs))
	}
	return Input{
		MedicationAdherence: a.Summary(),
		Observations:        strings.Join(lines, "\n"),
		HealthDetails:       strings.TrimSpace(healthDetails),
	}
}

var promptTemplate = template.Must(template.New("visit").Parse(
	`Here's a summary of the patient's medication adherence, observations, and important health details. Use this information to guide the clinical conversation with the patient.

Medication Adherence: {{.MedicationAdherence}}

Observations: {{.Observations}}

Health Details: {{.HealthDetails}}

Based on this information, what questions should I ask the patient to best understand their current health status and medication needs? Please format your response as a list of questions.`))

// RenderPrompt fills the fixed prompt template.
func RenderPrompt(in Input) (string, error) {
	var sb strings.Builder
	if err := promptTemplate.Execute(&sb, in); err != nil {
		return "", fmt.Errorf("failed to render prompt: %w", err)
	}
	return sb.String(), nil
}

// Completer answers a single-turn chat.
type Completer interface {
	SimpleChat(ctx context.Context, systemPrompt, userMessage string) (string, error)
}

// Generator asks a language model for doctor-visit questions.
type Generator struct {
	completer Completer
	guard     *security.Guard
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

func NewGenerator(completer Completer, logger *zap.Logger, m *metrics.Metrics) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.Default()
	}
	return &Generator{completer: completer, guard: security.NewGuard(), logger: logger, metrics: m}
}

// screen vets the user-written fields and redacts credentials from them.
func (g *Generator) screen(in Input) (Input, error) {
	out, err := g.guard.ScreenAll(map[string]string{
		"health_details": in.HealthDetails,
		"observations":   in.Observations,
	})
	if err != nil {
		return Input{}, apperrors.ErrBadRequest.WithCause(err)
	}

	for field, s := range out {
		if len(s.Redacted) > 0 {
			g.logger.Warn("Redacted secrets from doctor-visit input",
				zap.String("field", field),
				zap.Strings("kinds", s.Redacted),
			)
		}
	}

	in.HealthDetails = out["health_details"].Text
	in.Observations = out["observations"].Text
	return in, nil
}

// Generate performs one completion. An empty reply is an error.
func (g *Generator) Generate(ctx context.Context, in Input) (Output, error) {
	if g.completer == nil {
		return Output{}, apperrors.ErrProviderNotConfigured
	}

	in, err := g.screen(in)
	if err != nil {
		return Output{}, err
	}

	prompt, err := RenderPrompt(in)
	if err != nil {
		return Output{}, err
	}

	start := time.Now()
	text, err := g.completer.SimpleChat(ctx, "", prompt)
	g.metrics.RecordLLMRequest(err == nil, time.Since(start))
	if err != nil {
		g.logger.Error("Doctor-visit completion failed", zap.Error(err))
		return Output{}, apperrors.ErrProviderUnavailable.WithCause(err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return Output{}, apperrors.ErrEmptyCompletion
	}

	g.logger.Info("Doctor-visit questions generated",
		zap.Int("questions", len(Questions(text))),
		zap.Duration("took", time.Since(start)),
	)
	return Output{Prompt: text}, nil
}

var numbered = regexp.MustCompile(`^\d+\.\s+`)

// Questions extracts list items ("- " or "N. " prefixed lines) from text.
// Text without any list item is returned as its non-empty lines.
func Questions(text string) []string {
	var items, plain []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		switch {
		case strings.HasPrefix(line, "- "):
			items = append(items, strings.TrimSpace(line[2:]))
		case strings.HasPrefix(line, "* "):
			items = append(items, strings.TrimSpace(line[2:]))
		case numbered.MatchString(line):
			items = append(items, numbered.ReplaceAllString(line, ""))
		default:
			plain = append(plain, line)
		}
	}
	if len(items) > 0 {
		return items
	}
	return plain
}

// Package security screens user-written text before it leaves the machine in
// a language-model prompt.
package security

import (
	"fmt"
	"strings"
)

// Guard validates free text and redacts credentials from it.
type Guard struct {
	input     *InputValidator
	injection *InjectionDetector
	secrets   *SecretScanner
}

func NewGuard() *Guard {
	return &Guard{
		input:     NewInputValidator(),
		injection: NewInjectionDetector(),
		secrets:   NewSecretScanner(),
	}
}

// Screened is text that passed the guard.
type Screened struct {
	Text     string
	Redacted []string // kinds of secret removed from Text
}

// Screen rejects malformed text and prompt-injection attempts, then redacts
// anything that looks like a credential.
func (g *Guard) Screen(text string) (Screened, error) {
	if err := g.input.Validate(text); err != nil {
		return Screened{}, err
	}
	if g.injection.Detect(text) {
		return Screened{}, ErrPromptInjection
	}

	out := Screened{Text: text}
	for _, m := range g.secrets.Scan(text) {
		out.Redacted = appendUnique(out.Redacted, m.Type)
	}
	if len(out.Redacted) > 0 {
		out.Text = g.secrets.Redact(text)
	}
	return out, nil
}

// ScreenAll screens each field and stops at the first failure.
func (g *Guard) ScreenAll(fields map[string]string) (map[string]Screened, error) {
	out := make(map[string]Screened, len(fields))
	for name, text := range fields {
		s, err := g.Screen(text)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", strings.ReplaceAll(name, "_", " "), err)
		}
		out[name] = s
	}
	return out, nil
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}

package security

import "regexp"

// SecretMatch is one credential-looking span of text.
type SecretMatch struct {
	Type  string
	Start int
	End   int
}

type secretPattern struct {
	name       string
	regex      *regexp.Regexp
	redactWith string
}

// SecretScanner finds API keys, tokens and passwords pasted into text.
type SecretScanner struct {
	patterns []secretPattern
}

var defaultSecretPatterns = []secretPattern{
	{"OpenAI API Key", regexp.MustCompile(`sk-[A-Za-z0-9_-]{20,}`), "sk-****"},
	{"GitHub Token", regexp.MustCompile(`gh[pousr]_[0-9A-Za-z]{36}`), "gh*_****"},
	{"Google API Key", regexp.MustCompile(`AIza[0-9A-Za-z\-_]{35}`), "AIza****"},
	{"AWS Access Key", regexp.MustCompile(`AKIA[0-9A-Z]{16}`), "AKIA****"},
	{"Telegram Bot Token", regexp.MustCompile(`[0-9]{8,10}:[A-Za-z0-9_-]{35}`), "****:****"},
	{"JWT Token", regexp.MustCompile(`eyJ[A-Za-z0-9\-_]+\.eyJ[A-Za-z0-9\-_]+\.[A-Za-z0-9\-_]+`), "eyJ****"},
	{"Private Key", regexp.MustCompile(`-----BEGIN (?:RSA |EC |DSA |OPENSSH )?PRIVATE KEY-----`), "PRIVATE_KEY****"},
	{"Password", regexp.MustCompile(`(?i)(password|passwd|pwd|api[_-]?key|token)\s*[:=]\s*[^\s'"]{6,}`), "SECRET****"},
}

func NewSecretScanner() *SecretScanner {
	return &SecretScanner{patterns: defaultSecretPatterns}
}

func (s *SecretScanner) Scan(input string) []SecretMatch {
	var matches []SecretMatch
	for _, p := range s.patterns {
		for _, loc := range p.regex.FindAllStringIndex(input, -1) {
			matches = append(matches, SecretMatch{Type: p.name, Start: loc[0], End: loc[1]})
		}
	}
	return matches
}

func (s *SecretScanner) Redact(input string) string {
	for _, p := range s.patterns {
		input = p.regex.ReplaceAllString(input, p.redactWith)
	}
	return input
}

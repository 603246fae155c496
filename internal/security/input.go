package security

import (
	"errors"
	"strings"
)

var (
	ErrInputTooLarge     = errors.New("input exceeds maximum size")
	ErrNullByteDetected  = errors.New("null byte detected in input")
	ErrRepetitiveContent = errors.New("excessive repetition detected")
)

// InputValidator bounds the size and shape of a text field.
type InputValidator struct {
	MaxSize       int // bytes
	MaxRepetition int // identical consecutive runes
}

func NewInputValidator() *InputValidator {
	return &InputValidator{
		MaxSize:       8 * 1024,
		MaxRepetition: 64,
	}
}

func (v *InputValidator) Validate(input string) error {
	if v.MaxSize > 0 && len(input) > v.MaxSize {
		return ErrInputTooLarge
	}
	if strings.IndexByte(input, 0) >= 0 {
		return ErrNullByteDetected
	}
	if v.MaxRepetition > 0 && longestRun(input) > v.MaxRepetition {
		return ErrRepetitiveContent
	}
	return nil
}

func longestRun(input string) int {
	var (
		longest, run int
		prev         rune = -1
	)
	for _, r := range input {
		if r == prev {
			run++
		} else {
			run = 1
			prev = r
		}
		if run > longest {
			longest = run
		}
	}
	return longest
}

package security

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const DefaultMaxPromptLength = 8000

// injectionPatterns catch attempts to override the operator's instructions
// through the chat endpoint.
var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(ignore|disregard|forget|override)\s+(all\s+)?(previous|prior|above)\s+instructions`),
	regexp.MustCompile(`(?i)new\s+context\s*:`),
	regexp.MustCompile(`(?i)change\s+context\s*:`),
	regexp.MustCompile(`(?i)instead\s+of\s+the\s+above`),
	regexp.MustCompile(`(?i)you\s+are\s+now\s+(in\s+)?developer\s+mode`),
	regexp.MustCompile(`(?i)reveal\s+(your\s+)?system\s+prompt`),
}

// PromptValidator screens user messages received over HTTP.
type PromptValidator struct {
	maxLength int
}

func NewPromptValidator(maxLength int) *PromptValidator {
	if maxLength <= 0 {
		maxLength = DefaultMaxPromptLength
	}
	return &PromptValidator{maxLength: maxLength}
}

// ValidationResult contains validation outcome
type ValidationResult struct {
	Valid   bool
	Message string
}

func (v *PromptValidator) Validate(prompt string) ValidationResult {
	if strings.TrimSpace(prompt) == "" {
		return ValidationResult{Valid: false, Message: "message cannot be empty"}
	}
	if n := utf8.RuneCountInString(prompt); n > v.maxLength {
		return ValidationResult{
			Valid:   false,
			Message: fmt.Sprintf("message too long: %d chars (max %d)", n, v.maxLength),
		}
	}
	for _, pattern := range injectionPatterns {
		if pattern.MatchString(prompt) {
			return ValidationResult{
				Valid:   false,
				Message: fmt.Sprintf("prompt injection pattern detected: %s", pattern.String()),
			}
		}
	}
	return ValidationResult{Valid: true, Message: "ok"}
}

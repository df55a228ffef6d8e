package security

import (
	"regexp"
	"strings"
)

var (
	emailValueRe = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	cardValueRe  = regexp.MustCompile(`\b(?:\d[ -]?){13,16}\b`)
)

// PIIDetector checks text for sensitive keywords and redacts obvious values
// before they reach the logs.
type PIIDetector struct {
	keywords []string
}

func NewPIIDetector(keywords []string) *PIIDetector {
	lower := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.TrimSpace(strings.ToLower(k)); k != "" {
			lower = append(lower, k)
		}
	}
	return &PIIDetector{keywords: lower}
}

// Detect returns true and the matched keyword if PII is found in text
func (d *PIIDetector) Detect(text string) (bool, string) {
	lower := strings.ToLower(text)
	for _, kw := range d.keywords {
		if strings.Contains(lower, kw) {
			return true, kw
		}
	}
	return false, ""
}

// Redact masks e-mail addresses and card-like digit runs.
func (d *PIIDetector) Redact(text string) string {
	text = emailValueRe.ReplaceAllStringFunc(text, maskEmail)
	return cardValueRe.ReplaceAllStringFunc(text, maskCreditCard)
}

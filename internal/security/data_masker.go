package security

import (
	"fmt"
	"regexp"
	"strings"
)

// maskRule pairs a field-name pattern with the masking applied to its value.
// Rules are tried in order; the first match wins.
type maskRule struct {
	field *regexp.Regexp
	mask  func(string) string
}

var maskRules = []maskRule{
	{regexp.MustCompile(`(?i)email`), maskEmail},
	{regexp.MustCompile(`(?i)phone`), maskPhone},
	{regexp.MustCompile(`(?i)ssn|social_security`), func(string) string { return "***-**-****" }},
	{regexp.MustCompile(`(?i)credit_card|card_number`), maskCreditCard},
	{regexp.MustCompile(`(?i)password|secret|token|api_key|access_key|private_key`), maskAll},
}

// DataMasker masks sensitive fields in tool output before it is handed back
// to the model. A nil *DataMasker masks nothing.
type DataMasker struct {
	columns []string // lower-cased substrings
}

func NewDataMasker(sensitiveColumns []string) *DataMasker {
	cols := make([]string, 0, len(sensitiveColumns))
	for _, c := range sensitiveColumns {
		if c = strings.ToLower(strings.TrimSpace(c)); c != "" {
			cols = append(cols, c)
		}
	}
	return &DataMasker{columns: cols}
}

// MaskRows applies masking to rows returned by query_database.
func (m *DataMasker) MaskRows(rows []map[string]any) []map[string]any {
	if m == nil {
		return rows
	}
	masked := make([]map[string]any, len(rows))
	for i, row := range rows {
		masked[i] = m.MaskDocument(row)
	}
	return masked
}

// MaskDocument returns a masked copy of doc. Nested objects and arrays, such
// as a search hit's _source, are walked as well.
func (m *DataMasker) MaskDocument(doc map[string]any) map[string]any {
	if m == nil || doc == nil {
		return doc
	}
	out := make(map[string]any, len(doc))
	for key, val := range doc {
		out[key] = m.maskField(key, val)
	}
	return out
}

func (m *DataMasker) maskField(key string, val any) any {
	switch v := val.(type) {
	case nil:
		return nil
	case map[string]any:
		return m.MaskDocument(v)
	case []any:
		items := make([]any, len(v))
		for i, item := range v {
			items[i] = m.maskField(key, item)
		}
		return items
	}

	mask := m.maskerFor(key)
	if mask == nil {
		return val
	}
	return mask(fmt.Sprint(val))
}

// maskerFor returns nil when key is not sensitive. Configured columns without
// a specific rule are fully masked.
func (m *DataMasker) maskerFor(key string) func(string) string {
	for _, r := range maskRules {
		if r.field.MatchString(key) {
			return r.mask
		}
	}
	lower := strings.ToLower(key)
	for _, c := range m.columns {
		if strings.Contains(lower, c) {
			return maskAll
		}
	}
	return nil
}

func maskAll(string) string { return "***" }

// maskEmail: "john.doe@example.com" -> "jo***@***.com"
func maskEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || strings.Contains(domain, "@") {
		return "***"
	}
	if len(local) > 2 {
		local = local[:2]
	}
	ext := domain[strings.LastIndex(domain, ".")+1:]
	return local + "***@***." + ext
}

// maskPhone keeps the last four digits: "***-***-1234".
func maskPhone(phone string) string {
	d := digits(phone)
	if len(d) < 4 {
		return "***-***-****"
	}
	return "***-***-" + d[len(d)-4:]
}

// maskCreditCard: "4111111111111111" -> "****-****-****-1111"
func maskCreditCard(cc string) string {
	d := digits(cc)
	if len(d) < 4 {
		return "****-****-****-****"
	}
	return "****-****-****-" + d[len(d)-4:]
}

func digits(s string) string {
	var b strings.Builder
	for _, c := range s {
		if c >= '0' && c <= '9' {
			b.WriteRune(c)
		}
	}
	return b.String()
}

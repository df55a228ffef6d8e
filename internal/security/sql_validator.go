package security

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	ErrEmptySQL        = errors.New("SQL cannot be empty")
	ErrNotReadOnly     = errors.New("only SELECT queries are allowed")
	ErrUnsafeStatement = errors.New("unsafe SQL pattern detected")
)

// sqlDangerousPatterns covers stacked statements, classic injection
// tautologies and the Postgres functions that reach outside the database.
var sqlDangerousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i);\s*(DROP|DELETE|INSERT|UPDATE|ALTER|CREATE|TRUNCATE|GRANT|REVOKE)\s+`),
	regexp.MustCompile(`(?i);\s*(EXEC|EXECUTE|CALL|DO)\b`),
	regexp.MustCompile(`(?i)\bUNION\s+SELECT\b`), // UNION ALL SELECT stays allowed
	regexp.MustCompile(`(?i)\bCOPY\b.*\b(TO|FROM)\s+PROGRAM\b`),
	regexp.MustCompile(`(?i)\bpg_(sleep|read_file|read_binary_file|ls_dir|terminate_backend|cancel_backend)\s*\(`),
	regexp.MustCompile(`(?i)\b(dblink|lo_import|lo_export)\s*\(`),
	regexp.MustCompile(`(?i)\bINTO\s+(OUTFILE|DUMPFILE)\b`),
	regexp.MustCompile(`'.*--`),
	regexp.MustCompile(`;\s*--`),
	regexp.MustCompile(`/\*.*?\*/`),
	regexp.MustCompile(`(?i)\b(or|and)\s+1\s*=\s*1\b`),
	regexp.MustCompile(`(?i)\b(or|and)\s+'1'\s*=\s*'1'`),
}

// SQLValidator accepts read-only queries for the query_database tool.
type SQLValidator struct{}

func NewSQLValidator() *SQLValidator {
	return &SQLValidator{}
}

// Validate returns nil when sql is a single SELECT (or WITH ... SELECT).
func (v *SQLValidator) Validate(sql string) error {
	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		return ErrEmptySQL
	}

	upper := strings.ToUpper(trimmed)
	if !strings.HasPrefix(upper, "SELECT") && !strings.HasPrefix(upper, "WITH") {
		return ErrNotReadOnly
	}

	for _, pattern := range sqlDangerousPatterns {
		if pattern.MatchString(trimmed) {
			return fmt.Errorf("%w: %s", ErrUnsafeStatement, pattern.String())
		}
	}
	return nil
}

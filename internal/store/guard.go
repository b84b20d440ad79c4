package store

import (
	"fmt"
	"strings"
)

// Generated SQL is untrusted text. The guard runs before execution and only
// lets SELECT-class statements through.
var mutationKeywords = []string{
	"insert", "update", "delete", "drop", "alter", "create",
	"truncate", "grant", "revoke", "merge", "exec", "execute",
	"attach", "copy", "call",
}

// CheckReadOnly rejects any statement that is not SELECT/WITH-prefixed or
// that contains a mutating keyword anywhere in its token stream.
func CheckReadOnly(sqlText string) error {
	normalized := strings.ToLower(strings.TrimSpace(sqlText))
	if normalized == "" {
		return fmt.Errorf("sql is required")
	}
	if !strings.HasPrefix(normalized, "select") && !strings.HasPrefix(normalized, "with") {
		return fmt.Errorf("only SELECT/WITH queries are allowed")
	}
	for _, token := range tokenize(normalized) {
		for _, keyword := range mutationKeywords {
			if token == keyword {
				return fmt.Errorf("statement contains forbidden keyword %q", strings.ToUpper(keyword))
			}
		}
	}
	if strings.Count(trimTrailingSemicolons(normalized), ";") > 0 {
		return fmt.Errorf("multiple statements are not allowed")
	}
	return nil
}

// tokenize splits on everything that cannot be part of an identifier, so
// keywords hide neither behind punctuation ("select;drop") nor inside
// quoted string literals' neighbors. Identifiers merely containing a
// keyword ("created_at", "updates") survive.
func tokenize(sqlText string) []string {
	return strings.FieldsFunc(sqlText, func(r rune) bool {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			return false
		default:
			return true
		}
	})
}

func trimTrailingSemicolons(sqlText string) string {
	return strings.TrimRight(strings.TrimSpace(sqlText), "; \t\n")
}

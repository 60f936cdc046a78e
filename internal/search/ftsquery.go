package search

import "strings"

// sanitizeFTSQuery builds a safe MATCH expression from free-text user input
// (spec §4.5): strip '*' (FTS5 prefix-wildcard operator), fold '-' to
// whitespace (FTS5 column-exclusion operator), quote each remaining token,
// and AND-join them (FTS5's MATCH already ANDs space-separated terms, the
// explicit quoting just keeps punctuation inside a term from being parsed
// as FTS5 syntax).
func sanitizeFTSQuery(query string) string {
	cleaned := strings.ReplaceAll(query, "*", "")
	cleaned = strings.ReplaceAll(cleaned, "-", " ")

	fields := strings.Fields(cleaned)
	if len(fields) == 0 {
		return ""
	}

	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = `"` + strings.ReplaceAll(f, `"`, `""`) + `"`
	}

	return strings.Join(quoted, " ")
}

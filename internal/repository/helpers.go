package repository

import "strings"

// prefixColumns rewrites a comma-separated column list with a table alias.
func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ",")
	prefixed := make([]string, 0, len(parts))
	for _, part := range parts {
		col := strings.TrimSpace(strings.ReplaceAll(part, "\n", ""))
		if col == "" {
			continue
		}
		prefixed = append(prefixed, alias+"."+col)
	}
	return strings.Join(prefixed, ", ")
}

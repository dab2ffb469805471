package nl2sql

import (
	"regexp"
	"strings"
)

var (
	sqlFence = regexp.MustCompile("(?is)```sql\\s*(.*?)```")
	anyFence = regexp.MustCompile("(?is)```[a-z]*\\s*(.*?)```")
	selectIn = regexp.MustCompile(`(?i)\bselect\b`)
)

// Markers after which generated prose usually follows the statement.
var trailingProse = []string{"\n\n", "\nNote:", "\nNOTE:", "\n--", "\nIf ", "\nThis query"}

// minCut keeps a marker from truncating the statement right after SELECT.
const minCut = 20

// ExtractSQL pulls a candidate statement out of generated text. Rules, in
// order: a ```sql fence; any fence containing SELECT; text from the first
// "select " up to a paragraph break or note; the trimmed input.
func ExtractSQL(text string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ""
	}
	if m := sqlFence.FindStringSubmatch(trimmed); m != nil && strings.TrimSpace(m[1]) != "" {
		return strings.TrimSpace(m[1])
	}
	if m := anyFence.FindStringSubmatch(trimmed); m != nil && selectIn.MatchString(m[1]) {
		return strings.TrimSpace(m[1])
	}
	if idx := strings.Index(strings.ToLower(trimmed), "select "); idx >= 0 {
		sql := strings.TrimSpace(trimmed[idx:])
		if cut := proseStart(sql); cut >= 0 {
			sql = strings.TrimSpace(sql[:cut])
		}
		return sql
	}
	return trimmed
}

// proseStart returns the offset of the earliest trailing-prose marker past
// minCut, or -1.
func proseStart(sql string) int {
	if len(sql) <= minCut+1 {
		return -1
	}
	cut := -1
	for _, marker := range trailingProse {
		i := strings.Index(sql[minCut+1:], marker)
		if i < 0 {
			continue
		}
		if i += minCut + 1; cut < 0 || i < cut {
			cut = i
		}
	}
	return cut
}

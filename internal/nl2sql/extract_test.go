package nl2sql

import "testing"

func TestExtractSQL(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"sql fence", "Sure!\n```sql\nSELECT * FROM Event LIMIT 5\n```\nThanks", "SELECT * FROM Event LIMIT 5"},
		{"sql fence wins over earlier fence", "```text\nnothing\n```\n```SQL\nSELECT 1\n```", "SELECT 1"},
		{"plain fence with select", "```\nselect name from Artist\n```", "select name from Artist"},
		{"plain fence without select", "```\nhello\n```", "```\nhello\n```"},
		{"prose then select", "The query is: SELECT name FROM Artist ORDER BY name\n\nThis lists artists.", "SELECT name FROM Artist ORDER BY name"},
		{"note marker", "SELECT city, COUNT(*) FROM vw_events_enriched GROUP BY city\nNote: counts include past events", "SELECT city, COUNT(*) FROM vw_events_enriched GROUP BY city"},
		{"early marker ignored", "SELECT 1\n\nFROM x", "SELECT 1\n\nFROM x"},
		{"earliest marker wins", "Here you go: SELECT name FROM Event\nThis query lists every event.\n\nEnjoy!", "SELECT name FROM Event"},
		{"marker after early break", "SELECT 1\n\nFROM Event WHERE id > 10\nNote: ids start at 1", "SELECT 1\n\nFROM Event WHERE id > 10"},
		{"no sql", "  I cannot help with that.  ", "I cannot help with that."},
		{"empty", "   ", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ExtractSQL(tc.in); got != tc.want {
				t.Fatalf("ExtractSQL() = %q, want %q", got, tc.want)
			}
		})
	}
}

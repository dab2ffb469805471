package nl2sql

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestFallbackSummarizerByRowCount(t *testing.T) {
	cases := []struct {
		rows int
		want string
	}{
		{0, "No results were found"},
		{1, "Found exactly 1 result"},
		{4, "Found 4 results"},
		{12, "Found 12 results"},
		{40, "returned 40 results"},
	}
	for _, tc := range cases {
		got, err := FallbackSummarizer{}.Summarize(context.Background(), "concerts", make([]map[string]any, tc.rows))
		if err != nil {
			t.Fatalf("Summarize() error = %v", err)
		}
		if !strings.Contains(got, tc.want) {
			t.Fatalf("Summarize(%d rows) = %q, want it to contain %q", tc.rows, got, tc.want)
		}
	}
}

func TestSanitize(t *testing.T) {
	cases := map[string]string{
		"There are 3 concerts in Madrid. Hope this helps!": "There are 3 concerts in Madrid.",
		"  , Two events 🎭 in Seville.   Have a great day!": "Two events in Seville.",
		"Ratings average 4.2. Best regards,": "Ratings average 4.2.",
		"Nothing to strip.":                  "Nothing to strip.",
	}
	for in, want := range cases {
		if got := Sanitize(in); got != want {
			t.Fatalf("Sanitize(%q) = %q, want %q", in, got, want)
		}
	}
}

type stubSummarizer struct {
	out string
	err error
}

func (s stubSummarizer) Summarize(context.Context, string, []map[string]any) (string, error) {
	return s.out, s.err
}

func TestChainSummarizerFallsBack(t *testing.T) {
	chain := ChainSummarizer{Primary: stubSummarizer{err: errors.New("down")}, Secondary: stubSummarizer{out: "fallback"}}
	got, err := chain.Summarize(context.Background(), "q", nil)
	if err != nil || got != "fallback" {
		t.Fatalf("Summarize() = %q, %v", got, err)
	}

	chain = ChainSummarizer{Primary: stubSummarizer{out: "primary"}, Secondary: stubSummarizer{out: "fallback"}}
	if got, _ := chain.Summarize(context.Background(), "q", nil); got != "primary" {
		t.Fatalf("Summarize() = %q", got)
	}
}

package nl2sql

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// SummaryRowLimit caps the rows shown to the summarizing model.
const SummaryRowLimit = 20

const styleGuide = `You are a data analyst for the ArteVida cultural events database.
MANDATORY RULES:
- Answer ONLY with concrete data from the executed SQL query
- Do NOT mention external platforms, official websites or ticket vendors
- Do NOT say goodbye ("See you!", "I hope...", "Regards!")
- 120-160 words maximum, straight to the point
- If there is NO DATA: "No [events/artists/etc.] matching those criteria were found in our database"
- If there IS DATA: present the specific results found
- Short list (10 rows or fewer): mention the main items
- Long list: summarize the pattern with 1-2 specific examples
- End with a practical suggestion about the data (try filtering by city, date, etc.)
- Use ONLY information from the queried database`

// Summarizer turns a result set into a short natural-language answer.
type Summarizer interface {
	Summarize(ctx context.Context, question string, rows []map[string]any) (string, error)
}

type OpenAISummarizer struct {
	chat *chatClient
}

func NewOpenAISummarizer(cfg OpenAIConfig) (*OpenAISummarizer, error) {
	chat, err := newChatClient(cfg)
	if err != nil {
		return nil, err
	}
	return &OpenAISummarizer{chat: chat}, nil
}

func (s *OpenAISummarizer) Summarize(ctx context.Context, question string, rows []map[string]any) (string, error) {
	sample := rows
	label := "Data:"
	if len(rows) > SummaryRowLimit {
		sample = rows[:SummaryRowLimit]
		label = fmt.Sprintf("Sample (first %d):", SummaryRowLimit)
	}
	data, err := json.MarshalIndent(sample, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal summary rows: %w", err)
	}
	text, err := s.chat.complete(ctx, []chatMessage{
		{Role: "system", Content: styleGuide},
		{Role: "user", Content: fmt.Sprintf("Question: %q\nRows: %d\n%s\n%s", question, len(rows), label, data)},
	}, 250)
	if err != nil {
		return "", err
	}
	out := Sanitize(text)
	if out == "" {
		return "", &GenerationError{Provider: providerOpenAI, Err: fmt.Errorf("empty summary")}
	}
	return out, nil
}

// FallbackSummarizer describes the result by its row count.
type FallbackSummarizer struct{}

func (FallbackSummarizer) Summarize(_ context.Context, question string, rows []map[string]any) (string, error) {
	return Sanitize(countSummary(question, len(rows))), nil
}

func countSummary(question string, n int) string {
	switch {
	case n == 0:
		return fmt.Sprintf("No results were found for %q. Try rephrasing the question with more general terms.", question)
	case n == 1:
		return fmt.Sprintf("Found exactly 1 result for %q. The details are in the results table.", question)
	case n <= 5:
		return fmt.Sprintf("Found %d results for %q. Expand the results section to see every detail.", n, question)
	case n <= 20:
		return fmt.Sprintf("Found %d results for %q. They are listed in the results table for review.", n, question)
	default:
		return fmt.Sprintf("%q returned %d results. Narrow it down by city, date or category for a more specific answer.", question, n)
	}
}

// ChainSummarizer uses Primary and falls back to Secondary on error.
type ChainSummarizer struct {
	Primary   Summarizer
	Secondary Summarizer
}

func (c ChainSummarizer) Summarize(ctx context.Context, question string, rows []map[string]any) (string, error) {
	if c.Primary != nil {
		out, err := c.Primary.Summarize(ctx, question, rows)
		if err == nil {
			return out, nil
		}
		if c.Secondary == nil || ctx.Err() != nil {
			return "", err
		}
	}
	if c.Secondary == nil {
		return "", fmt.Errorf("no summarizer configured")
	}
	return c.Secondary.Summarize(ctx, question, rows)
}

var (
	boilerplate = regexp.MustCompile(`(?i)\b(see you( soon)?|i hope (this|that) helps|hope (this|that) helps|feel free to ask|best regards|regards|have a (nice|great|good) day|enjoy( the show)?|visit (the )?official (site|website|page)|official (site|website|page)|ticket (vendors?|platforms?)|ticketing platforms?)\b[!.,]?`)
	emoji       = regexp.MustCompile(`[\x{1F300}-\x{1FAFF}\x{2600}-\x{27BF}\x{FE0F}]`)
	spaces      = regexp.MustCompile(`\s{2,}`)
	edgePunct   = regexp.MustCompile(`^[.,\s]+|[,\s]+$`)
)

// Sanitize strips farewells, vendor boilerplate and emoji from a generated
// answer and tidies whitespace and edge punctuation.
func Sanitize(text string) string {
	out := boilerplate.ReplaceAllString(text, "")
	out = emoji.ReplaceAllString(out, "")
	out = spaces.ReplaceAllString(out, " ")
	out = edgePunct.ReplaceAllString(out, "")
	return strings.TrimSpace(out)
}

package nl2sql

import (
	"context"
	"errors"
	"fmt"

	"github.com/artevida/askql/internal/conversation"
)

// ErrNoSQL means the generator produced text with nothing resembling SQL.
var ErrNoSQL = errors.New("generator returned no SQL")

type Request struct {
	Question string              `json:"question"`
	Turns    []conversation.Turn `json:"turns,omitempty"`
	// Hint carries validator feedback on a repair attempt.
	Hint string `json:"hint,omitempty"`
	// SchemaSummary is advisory prompt context.
	SchemaSummary string `json:"schema_summary,omitempty"`
}

type Generation struct {
	Text        string `json:"text"`
	SQL         string `json:"sql"`
	Explanation string `json:"explanation"`
	Provider    string `json:"provider"`
	Model       string `json:"model"`
}

// Generator turns a question into candidate SQL. Output is untrusted.
type Generator interface {
	Generate(ctx context.Context, req Request) (Generation, error)
}

// FallbackGenerator tries Primary and, on error, Secondary.
type FallbackGenerator struct {
	Primary   Generator
	Secondary Generator
}

func (g FallbackGenerator) Generate(ctx context.Context, req Request) (Generation, error) {
	if g.Primary == nil {
		return g.secondary(ctx, req, nil)
	}
	out, err := g.Primary.Generate(ctx, req)
	if err == nil {
		return out, nil
	}
	if ctx.Err() != nil {
		return Generation{}, err
	}
	return g.secondary(ctx, req, err)
}

func (g FallbackGenerator) secondary(ctx context.Context, req Request, primaryErr error) (Generation, error) {
	if g.Secondary == nil {
		if primaryErr != nil {
			return Generation{}, primaryErr
		}
		return Generation{}, errors.New("no generator configured")
	}
	out, err := g.Secondary.Generate(ctx, req)
	if err != nil {
		if primaryErr != nil {
			return Generation{}, fmt.Errorf("primary: %v; secondary: %w", primaryErr, err)
		}
		return Generation{}, err
	}
	return out, nil
}

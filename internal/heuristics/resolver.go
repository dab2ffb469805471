// Package heuristics builds SQL for common question shapes without calling
// the text generator. Every draft still goes through sqlguard before it runs.
package heuristics

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/artevida/askql/internal/conversation"
	"github.com/artevida/askql/internal/entities"
)

type Rule string

const (
	RuleFollowUpAttribute   Rule = "follow_up_attribute"
	RuleFollowUpDescription Rule = "follow_up_description"
	RuleEventPrice          Rule = "event_price"
	RuleArtistEvents        Rule = "artist_events"
	RuleCount               Rule = "count"
	RuleTemplate            Rule = "template"
)

type Draft struct {
	SQL         string
	Explanation string
	Rule        Rule
}

// Lookup resolves names against live rows.
type Lookup interface {
	FindEvent(ctx context.Context, phrase string) (entities.Event, bool, error)
	FindArtist(ctx context.Context, phrase string) (entities.Artist, bool, error)
}

type Resolver struct {
	lookup Lookup
	logger *slog.Logger
}

func New(lookup Lookup, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Resolver{lookup: lookup, logger: logger}
}

var (
	pricePattern        = regexp.MustCompile(`(?i)\b(price|prices|cost|costs|how much)\b`)
	artistEventsPattern = regexp.MustCompile(`(?i)\b(events?|concerts?|gigs?|performs?|performing|plays|playing)\b`)
)

// Resolve tries each rule in priority order and returns the first draft. A
// failed lookup counts as no match.
func (r *Resolver) Resolve(ctx context.Context, question string, turns []conversation.Turn) (Draft, bool) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Draft{}, false
	}

	if prev := conversation.PreviousSQL(turns); prev != "" {
		if draft, ok := FollowUp(question, prev); ok {
			return draft, true
		}
	}

	if pricePattern.MatchString(question) {
		if draft, ok := r.eventPrice(ctx, question); ok {
			return draft, true
		}
	}

	if artistEventsPattern.MatchString(question) {
		if draft, ok := r.artistEvents(ctx, question); ok {
			return draft, true
		}
	}

	return BuildTemplate(question)
}

func (r *Resolver) eventPrice(ctx context.Context, question string) (Draft, bool) {
	if r.lookup == nil {
		return Draft{}, false
	}
	phrase := ExtractEventPhrase(question)
	if phrase == "" {
		phrase = question
	}
	event, ok, err := r.lookup.FindEvent(ctx, phrase)
	if err != nil {
		r.logger.WarnContext(ctx, "event lookup failed", slog.String("phrase", phrase), slog.Any("error", err))
		return Draft{}, false
	}
	if !ok {
		return Draft{}, false
	}
	return Draft{
		SQL:         fmt.Sprintf("SELECT e.name AS event, e.ticket_price\nFROM Event e\nWHERE e.id = %d\nLIMIT 1", event.ID),
		Explanation: fmt.Sprintf("Ticket price for the event resolved by name: %q", event.Name),
		Rule:        RuleEventPrice,
	}, true
}

func (r *Resolver) artistEvents(ctx context.Context, question string) (Draft, bool) {
	if r.lookup == nil {
		return Draft{}, false
	}
	phrase := ExtractArtistPhrase(question)
	if phrase == "" {
		return Draft{}, false
	}
	artist, ok, err := r.lookup.FindArtist(ctx, phrase)
	if err != nil {
		r.logger.WarnContext(ctx, "artist lookup failed", slog.String("phrase", phrase), slog.Any("error", err))
		return Draft{}, false
	}
	if !ok {
		return Draft{}, false
	}
	return Draft{
		SQL:         ArtistEventsSQL(artist, question),
		Explanation: fmt.Sprintf("Events for the artist resolved by name: %q", artist.Name),
		Rule:        RuleArtistEvents,
	}, true
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

package heuristics

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/artevida/askql/internal/conversation"
	"github.com/artevida/askql/internal/entities"
)

type fakeLookup struct {
	events      map[string]entities.Event
	artists     map[string]entities.Artist
	err         error
	eventCalls  []string
	artistCalls []string
}

func (f *fakeLookup) FindEvent(_ context.Context, phrase string) (entities.Event, bool, error) {
	f.eventCalls = append(f.eventCalls, phrase)
	if f.err != nil {
		return entities.Event{}, false, f.err
	}
	ev, ok := f.events[strings.ToLower(phrase)]
	return ev, ok, nil
}

func (f *fakeLookup) FindArtist(_ context.Context, phrase string) (entities.Artist, bool, error) {
	f.artistCalls = append(f.artistCalls, phrase)
	if f.err != nil {
		return entities.Artist{}, false, f.err
	}
	ar, ok := f.artists[strings.ToLower(phrase)]
	return ar, ok, nil
}

const previousArtistSQL = `SELECT e.name AS event, e.starts_at, ve.city
FROM Event e
JOIN Activity a ON e.activity_id = a.id
JOIN Venue ve ON e.venue_id = ve.id
JOIN Activity_Artist aa ON a.id = aa.activity_id
JOIN Artist ar ON aa.artist_id = ar.id
WHERE LOWER(ar.name) LIKE '%rosalía%'
ORDER BY e.starts_at DESC
LIMIT 200`

func fromTail(sql string) string {
	return sql[strings.Index(sql, "FROM "):]
}

func TestFollowUpKeepsPreviousTail(t *testing.T) {
	r := New(&fakeLookup{}, nil)
	turns := []conversation.Turn{{Question: "events by Rosalía", SQL: previousArtistSQL, Summary: "3 events"}}

	draft, ok := r.Resolve(context.Background(), "what is the price of those?", turns)
	if !ok {
		t.Fatal("expected a follow-up draft")
	}
	if draft.Rule != RuleFollowUpAttribute {
		t.Fatalf("Rule = %q", draft.Rule)
	}
	want := "SELECT e.name AS event, e.ticket_price\n" + fromTail(previousArtistSQL)
	if draft.SQL != want {
		t.Fatalf("SQL =\n%s\nwant\n%s", draft.SQL, want)
	}
}

func TestFollowUpAttributes(t *testing.T) {
	cases := []struct {
		question string
		prefix   string
	}{
		{"when is it?", "SELECT e.name AS event, e.starts_at\n"},
		{"and the city?", "SELECT e.name AS event, ve.city\n"},
		{"where is that held?", "SELECT e.name AS event, ve.name AS place, ve.city\n"},
		{"what is it about?", "SELECT e.name AS event, e.description, e.starts_at, ve.city\n"},
	}
	for _, tc := range cases {
		draft, ok := FollowUp(tc.question, previousArtistSQL)
		if !ok {
			t.Fatalf("FollowUp(%q) found nothing", tc.question)
		}
		if draft.SQL != tc.prefix+fromTail(previousArtistSQL) {
			t.Fatalf("FollowUp(%q) SQL =\n%s", tc.question, draft.SQL)
		}
	}
}

func TestFollowUpOverView(t *testing.T) {
	prev := "SELECT * FROM vw_events_enriched WHERE type = 'concert' LIMIT 200"
	draft, ok := FollowUp("the prices?", prev)
	if !ok {
		t.Fatal("expected follow-up")
	}
	if draft.SQL != "SELECT event_name, ticket_price\nFROM vw_events_enriched WHERE type = 'concert' LIMIT 200" {
		t.Fatalf("SQL = %q", draft.SQL)
	}
}

func TestFollowUpNeedsVenueAliasForPlace(t *testing.T) {
	prev := "SELECT e.name AS event, e.ticket_price\nFROM Event e\nWHERE e.id = 4\nLIMIT 1"
	if _, ok := FollowUp("where is it?", prev); ok {
		t.Fatal("place follow-up without a Venue join must not be produced")
	}
	if _, ok := FollowUp("when is it?", prev); !ok {
		t.Fatal("date follow-up only needs the Event alias")
	}
}

func TestNewTermDoesNotInheritPreviousFilter(t *testing.T) {
	lookup := &fakeLookup{events: map[string]entities.Event{"hamlet": {ID: 9, Name: "Hamlet"}}}
	r := New(lookup, nil)
	turns := []conversation.Turn{{Question: "events by Rosalía", SQL: previousArtistSQL}}

	draft, ok := r.Resolve(context.Background(), "what is the price of Hamlet?", turns)
	if !ok {
		t.Fatal("expected an entity draft")
	}
	if draft.Rule != RuleEventPrice {
		t.Fatalf("Rule = %q", draft.Rule)
	}
	if strings.Contains(draft.SQL, "rosalía") {
		t.Fatalf("new term inherited the previous filter:\n%s", draft.SQL)
	}
	if draft.SQL != "SELECT e.name AS event, e.ticket_price\nFROM Event e\nWHERE e.id = 9\nLIMIT 1" {
		t.Fatalf("SQL = %q", draft.SQL)
	}
}

func TestArtistEventsWithCityAndConcertFilter(t *testing.T) {
	lookup := &fakeLookup{artists: map[string]entities.Artist{"rosalía": {ID: 3, Name: "Rosalía"}}}
	r := New(lookup, nil)

	draft, ok := r.Resolve(context.Background(), "concerts by Rosalía in Madrid", nil)
	if !ok || draft.Rule != RuleArtistEvents {
		t.Fatalf("Resolve() = %+v, %v", draft, ok)
	}
	for _, fragment := range []string{"WHERE ar.id = 3", "a.type = 'concert'", "LOWER(ve.city) LIKE '%madrid%'", "JOIN Artist ar ON aa.artist_id = ar.id"} {
		if !strings.Contains(draft.SQL, fragment) {
			t.Fatalf("SQL missing %q:\n%s", fragment, draft.SQL)
		}
	}
	if len(lookup.artistCalls) != 1 || lookup.artistCalls[0] != "rosalía" {
		t.Fatalf("artist lookups = %v", lookup.artistCalls)
	}
}

func TestLookupErrorFallsThrough(t *testing.T) {
	r := New(&fakeLookup{err: errors.New("timeout")}, nil)
	draft, ok := r.Resolve(context.Background(), "price of jazz concerts", nil)
	if !ok {
		t.Fatal("expected the template rule to apply after the failed lookup")
	}
	if draft.Rule != RuleTemplate {
		t.Fatalf("Rule = %q", draft.Rule)
	}
	if !strings.Contains(draft.SQL, "type = 'concert'") || !strings.Contains(draft.SQL, "'%jazz%'") {
		t.Fatalf("SQL = %s", draft.SQL)
	}
	if !strings.HasPrefix(draft.SQL, "SELECT event_name, ticket_price, starts_at, city\n") {
		t.Fatalf("price question should select price columns: %s", draft.SQL)
	}
}

func TestTemplateDefersRankingQuestions(t *testing.T) {
	for _, q := range []string{
		"top 5 artists by revenue",
		"which city has the most events",
		"average rating per event",
		"give me general information",
	} {
		if draft, ok := BuildTemplate(q); ok {
			t.Fatalf("BuildTemplate(%q) = %q, want deferral", q, draft.SQL)
		}
	}
}

func TestCountTemplate(t *testing.T) {
	draft, ok := BuildTemplate("How many concerts in Madrid?")
	if !ok || draft.Rule != RuleCount {
		t.Fatalf("BuildTemplate() = %+v, %v", draft, ok)
	}
	want := "SELECT COUNT(*) AS total_events\nFROM vw_events_enriched\nWHERE type = 'concert' AND LOWER(city) = 'madrid'"
	if draft.SQL != want {
		t.Fatalf("SQL = %q", draft.SQL)
	}
}

func TestExclusionTemplate(t *testing.T) {
	draft, ok := BuildTemplate("concerts in Madrid except Rosalía")
	if !ok {
		t.Fatal("expected exclusion draft")
	}
	for _, fragment := range []string{"NOT EXISTS (", "LIKE '%rosalía%'", "a.type = 'concert'", "LOWER(ve.city) LIKE '%madrid%'"} {
		if !strings.Contains(draft.SQL, fragment) {
			t.Fatalf("SQL missing %q:\n%s", fragment, draft.SQL)
		}
	}
	if strings.Contains(draft.SQL, "LOWER(e.name) LIKE '%rosalía%'") {
		t.Fatalf("excluded name must not be a positive filter:\n%s", draft.SQL)
	}
}

func TestNothingToResolve(t *testing.T) {
	r := New(nil, nil)
	if _, ok := r.Resolve(context.Background(), "show me what you have", nil); ok {
		t.Fatal("expected no draft")
	}
	if _, ok := r.Resolve(context.Background(), "   ", nil); ok {
		t.Fatal("expected no draft for blank question")
	}
}

func TestExtractEventPhrase(t *testing.T) {
	cases := map[string]string{
		"What's the price of 'Hamlet'?":           "Hamlet",
		"price of the event Noche Flamenca?":      "Noche Flamenca",
		"How much is a ticket for Jazz Nights?":   "Jazz Nights",
		"Noche Flamenca price":                    "Noche Flamenca price",
		"ticket price for the event Carmen, what": "Carmen",
	}
	for in, want := range cases {
		if got := ExtractEventPhrase(in); got != want {
			t.Fatalf("ExtractEventPhrase(%q) = %q, want %q", in, got, want)
		}
	}
}

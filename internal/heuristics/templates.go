package heuristics

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/artevida/askql/internal/entities"
)

var (
	concertWord    = regexp.MustCompile(`(?i)\bconcerts?\b`)
	deferPattern   = regexp.MustCompile(`(?i)\b(artists?|top|count|number of|most|least|best|worst|average|avg|ranking|rank|total|revenue|sales|how many)\b|general information`)
	excludePattern = regexp.MustCompile(`(?i)(?:apart from|except|excluding|without|other than|not by)\s+([\p{L}\s]+?)(?:[,.!?]|$)`)
	countPattern   = regexp.MustCompile(`(?i)^how many\s+(events|concerts|plays|theatre plays|exhibitions|lectures)(?:\s+are\s+there)?(?:\s+in\s+(\p{L}[\p{L}\s]*?))?\s*\??$`)
)

var typeFilters = []struct {
	value   string
	pattern *regexp.Regexp
}{
	{"concert", regexp.MustCompile(`(?i)\bconcerts?\b`)},
	{"theatre", regexp.MustCompile(`(?i)\btheat(re|er)s?\b|\bplays\b`)},
	{"exhibition", regexp.MustCompile(`(?i)\bexhibitions?\b`)},
	{"lecture", regexp.MustCompile(`(?i)\b(lectures?|talks?)\b`)},
}

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "from": true, "what": true,
	"which": true, "who": true, "when": true, "where": true, "how": true, "are": true,
	"was": true, "were": true, "there": true, "their": true, "this": true, "that": true,
	"these": true, "those": true, "them": true, "they": true, "show": true, "give": true,
	"list": true, "tell": true, "find": true, "get": true, "all": true, "any": true,
	"some": true, "about": true, "please": true, "can": true, "could": true, "you": true,
	"your": true, "want": true, "need": true, "see": true, "events": true, "event": true,
	"concerts": true, "concert": true, "theatre": true, "theater": true, "theatres": true,
	"plays": true, "exhibitions": true, "exhibition": true, "lectures": true, "lecture": true,
	"talks": true, "talk": true, "price": true, "prices": true, "cost": true, "costs": true,
	"ticket": true, "tickets": true, "information": true, "info": true, "details": true,
	"apart": true, "except": true, "excluding": true, "without": true, "other": true,
	"than": true, "not": true, "have": true, "has": true, "does": true, "much": true,
	"like": true, "looking": true, "interested": true, "shows": true, "city": true,
	"cities": true, "venue": true, "venues": true, "happening": true, "held": true,
}

// ArtistEventsSQL lists every event of a resolved artist, optionally
// narrowed to concerts and to a city named in the question.
func ArtistEventsSQL(artist entities.Artist, question string) string {
	var filters []string
	if concertWord.MatchString(question) {
		filters = append(filters, "a.type = 'concert'")
	}
	if city := ExtractCity(question); city != "" {
		filters = append(filters, "LOWER(ve.city) LIKE "+quoteLiteral("%"+strings.ToLower(city)+"%"))
	}
	where := fmt.Sprintf("WHERE ar.id = %d", artist.ID)
	for _, f := range filters {
		where += " AND " + f
	}
	return `SELECT e.name AS event, e.starts_at, ve.city, ve.name AS venue, e.ticket_price, ar.name AS artist
FROM Event e
JOIN Activity a ON e.activity_id = a.id
JOIN Venue ve ON e.venue_id = ve.id
JOIN Activity_Artist aa ON a.id = aa.activity_id
JOIN Artist ar ON aa.artist_id = ar.id
` + where + `
ORDER BY e.starts_at DESC
LIMIT 200`
}

// BuildTemplate assembles SQL from a fixed join pattern for simple filter
// questions. Ranking and aggregation questions are left to the generator.
func BuildTemplate(question string) (Draft, bool) {
	q := strings.TrimSpace(question)
	if draft, ok := countTemplate(q); ok {
		return draft, true
	}
	if deferPattern.MatchString(q) {
		return Draft{}, false
	}

	eventType := detectType(q)
	city := ExtractCity(q)
	var excluded string
	if m := excludePattern.FindStringSubmatch(q); m != nil {
		excluded = strings.ToLower(strings.TrimSpace(m[1]))
	}

	skip := make(map[string]bool)
	for _, t := range entities.Tokens(city, 1) {
		skip[t] = true
	}
	for _, t := range entities.Tokens(excluded, 1) {
		skip[t] = true
	}
	var tokens []string
	for _, t := range entities.Tokens(q, 3) {
		if !stopwords[t] && !skip[t] {
			tokens = append(tokens, t)
		}
	}
	if len(tokens) == 0 && eventType == "" && city == "" {
		return Draft{}, false
	}
	wantsPrice := pricePattern.MatchString(q)

	if excluded != "" {
		return Draft{
			SQL:         exclusionSQL(tokens, eventType, city, excluded, wantsPrice),
			Explanation: fmt.Sprintf("Events matching the question, excluding those featuring %q", excluded),
			Rule:        RuleTemplate,
		}, true
	}

	var where []string
	for _, t := range tokens {
		like := quoteLiteral("%" + t + "%")
		where = append(where, "(LOWER(activity_name) LIKE "+like+" OR LOWER(event_name) LIKE "+like+
			" OR LOWER(subtype) LIKE "+like+" OR LOWER(city) LIKE "+like+")")
	}
	if eventType != "" {
		where = append(where, "type = "+quoteLiteral(eventType))
	}
	if city != "" {
		where = append(where, "LOWER(city) LIKE "+quoteLiteral("%"+strings.ToLower(city)+"%"))
	}
	columns := "*"
	if wantsPrice {
		columns = "event_name, ticket_price, starts_at, city"
	}
	return Draft{
		SQL: "SELECT " + columns + "\nFROM vw_events_enriched\nWHERE " + strings.Join(where, "\n  AND ") +
			"\nORDER BY starts_at DESC\nLIMIT 200",
		Explanation: "Events matching the question's keywords",
		Rule:        RuleTemplate,
	}, true
}

func exclusionSQL(tokens []string, eventType, city, excluded string, wantsPrice bool) string {
	var where []string
	if eventType != "" {
		where = append(where, "a.type = "+quoteLiteral(eventType))
	}
	if city != "" {
		where = append(where, "LOWER(ve.city) LIKE "+quoteLiteral("%"+strings.ToLower(city)+"%"))
	}
	for _, t := range tokens {
		like := quoteLiteral("%" + t + "%")
		where = append(where, "(LOWER(a.name) LIKE "+like+" OR LOWER(e.name) LIKE "+like+" OR LOWER(a.subtype) LIKE "+like+")")
	}
	where = append(where, `NOT EXISTS (
    SELECT 1 FROM Activity_Artist aa
    JOIN Artist ar ON ar.id = aa.artist_id
    WHERE aa.activity_id = a.id AND LOWER(ar.name) LIKE `+quoteLiteral("%"+excluded+"%")+`
  )`)

	columns := "e.name AS event, e.starts_at, ve.city, a.type"
	if wantsPrice {
		columns = "e.name AS event, e.ticket_price"
	}
	return "SELECT " + columns + `
FROM Event e
JOIN Activity a ON e.activity_id = a.id
JOIN Venue ve ON e.venue_id = ve.id
WHERE ` + strings.Join(where, "\n  AND ") + `
ORDER BY e.starts_at DESC
LIMIT 200`
}

func countTemplate(q string) (Draft, bool) {
	m := countPattern.FindStringSubmatch(q)
	if m == nil {
		return Draft{}, false
	}
	var where []string
	if eventType := detectType(m[1]); eventType != "" {
		where = append(where, "type = "+quoteLiteral(eventType))
	}
	if city := strings.TrimSpace(m[2]); city != "" {
		where = append(where, "LOWER(city) = "+quoteLiteral(strings.ToLower(city)))
	}
	sql := "SELECT COUNT(*) AS total_events\nFROM vw_events_enriched"
	if len(where) > 0 {
		sql += "\nWHERE " + strings.Join(where, " AND ")
	}
	return Draft{SQL: sql, Explanation: "Count of matching events", Rule: RuleCount}, true
}

func detectType(q string) string {
	for _, f := range typeFilters {
		if f.pattern.MatchString(q) {
			return f.value
		}
	}
	return ""
}

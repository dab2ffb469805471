package nl2sql

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const providerRules = "rules"

type sqlRule struct {
	name    string
	pattern *regexp.Regexp
	build   func(q string) (sql, explanation string)
}

func fixed(sql, explanation string) func(string) (string, string) {
	return func(string) (string, string) { return sql, explanation }
}

var (
	topN        = regexp.MustCompile(`\btop\s+(\d{1,2})\b`)
	perCity     = regexp.MustCompile(`\b(city|cities)\b`)
	popularWord = regexp.MustCompile(`\b(top|best|popular)\b`)
)

// topLimit reads "top N" from the question, clamped to 1..50.
func topLimit(q string, fallback int) int {
	m := topN.FindStringSubmatch(q)
	if m == nil {
		return fallback
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return fallback
	}
	return max(1, min(n, 50))
}

// rules are checked in order; specific questions come before generic ones.
var rules = []sqlRule{
	{
		name:    "activity_cost",
		pattern: regexp.MustCompile(`\b(fee|cost|spend)s?\b.*\b(artists?|activit(y|ies))\b|\bfees?\s+per\s+activity`),
		build: fixed(
			"SELECT * FROM vw_activity_cost ORDER BY total_fees DESC, activity_name ASC LIMIT 200",
			"Artist fees per activity",
		),
	},
	{
		name:    "most_zero_ratings",
		pattern: regexp.MustCompile(`\bmost\s+zero(es|s)?\b|\bscore\s+(of\s+)?0\b|\bworst\s+ratings?\s+per\s+event|\bzero\s+(ratings?|scores?)`),
		build: fixed(`SELECT e.id, e.name, COUNT(*) AS zeros
FROM Rating r
JOIN Event e ON e.id = r.event_id
WHERE r.score = 0
GROUP BY e.id, e.name
ORDER BY zeros DESC, e.id
LIMIT 1`, "Event with the most zero ratings"),
	},
	{
		name:    "theatre_only_cities",
		pattern: regexp.MustCompile(`\bcit(y|ies)\s+with\s+only\s+theat(re|er)|\bonly\s+theat(re|er)\s+(per|by)\s+city`),
		build: fixed(`SELECT ve.city
FROM Event e
JOIN Activity a ON a.id = e.activity_id
JOIN Venue ve ON ve.id = e.venue_id
GROUP BY ve.city
HAVING SUM(CASE WHEN a.type <> 'theatre' THEN 1 ELSE 0 END) = 0
LIMIT 200`, "Cities that only host theatre"),
	},
	{
		name:    "upcoming_occupancy",
		pattern: regexp.MustCompile(`\b(occupancy|percentage|capacity\s+used)\b.*\b(upcoming|next|future)\b|\b(upcoming|next|future)\b.*\boccupancy\b`),
		build: fixed(`SELECT event_id, event_name, starts_at, city, capacity, tickets_sold, occupancy_pct
FROM vw_upcoming_events
ORDER BY starts_at ASC
LIMIT 200`, "Occupancy of upcoming events"),
	},
	{
		name:    "upcoming_events",
		pattern: regexp.MustCompile(`\b(events?|concerts?|shows?)\b.*\b(upcoming|next|future|coming)\b|\b(upcoming|next|future|coming)\b.*\b(events?|concerts?|shows?)\b`),
		build: fixed(
			"SELECT * FROM vw_upcoming_events ORDER BY starts_at ASC LIMIT 200",
			"Upcoming events",
		),
	},
	{
		name:    "estimated_margin",
		pattern: regexp.MustCompile(`\b(estimated\s+)?(margin|profit)s?\b|\brevenue\s*-\s*(rent|rental|costs?|fees?)`),
		build: fixed(`SELECT e.id AS event_id, e.name AS event_name, ve.city,
  COALESCE(inc.revenue, 0) AS revenue,
  COALESCE(ve.rental_price, 0) AS rental,
  COALESCE(c.total_fees, 0) AS fees,
  COALESCE(inc.revenue, 0) - (COALESCE(ve.rental_price, 0) + COALESCE(c.total_fees, 0)) AS estimated_margin
FROM Event e
JOIN Venue ve ON ve.id = e.venue_id
JOIN Activity a ON a.id = e.activity_id
LEFT JOIN (
  SELECT event_id, SUM(price_paid) AS revenue
  FROM Ticket
  GROUP BY event_id
) inc ON inc.event_id = e.id
LEFT JOIN vw_activity_cost c ON c.activity_id = a.id
ORDER BY estimated_margin DESC
LIMIT 200`, "Estimated margin per event"),
	},
	{
		name:    "top_artists_revenue",
		pattern: regexp.MustCompile(`\bartists?\b.*\b(top|ranking|most\s+revenue|highest\s+revenue|prorated)\b|\btop\b.*\bartists?\b.*\brevenue\b`),
		build: func(q string) (string, string) {
			n := topLimit(q, 10)
			return fmt.Sprintf(`WITH event_revenue AS (
  SELECT e.id AS event_id, e.activity_id, COALESCE(SUM(t.price_paid), 0) AS revenue
  FROM Event e
  LEFT JOIN Ticket t ON t.event_id = e.id
  GROUP BY e.id, e.activity_id
),
artists_per_activity AS (
  SELECT activity_id, COUNT(*) AS artist_count
  FROM Activity_Artist
  GROUP BY activity_id
)
SELECT ar.id AS artist_id, ar.name AS artist_name,
  ROUND(SUM(er.revenue / NULLIF(apa.artist_count, 0)), 2) AS prorated_revenue
FROM event_revenue er
JOIN Activity_Artist aa ON aa.activity_id = er.activity_id
JOIN artists_per_activity apa ON apa.activity_id = aa.activity_id
JOIN Artist ar ON ar.id = aa.artist_id
GROUP BY ar.id, ar.name
ORDER BY prorated_revenue DESC, artist_name ASC
LIMIT %d`, n), fmt.Sprintf("Top %d artists by prorated revenue", n)
		},
	},
	{
		name:    "enriched_events",
		pattern: regexp.MustCompile(`\bevents?\b.*\b(enriched|sales|ratings?|details?)\b`),
		build: fixed(
			"SELECT * FROM vw_events_enriched ORDER BY starts_at DESC LIMIT 200",
			"Events with sales and rating details",
		),
	},
	{
		name:    "city_stats",
		pattern: regexp.MustCompile(`\b(statistics|stats?|summary|overview)\b.*\bcit(y|ies)\b|\bcity\s+stats\b`),
		build: fixed(
			"SELECT * FROM vw_city_stats ORDER BY total_revenue DESC LIMIT 200",
			"Statistics per city",
		),
	},
	{
		name:    "city_most_events",
		pattern: regexp.MustCompile(`\bcit(y|ies)\s+with\s+(the\s+)?most\s+events?\b|\bwhich\s+city\s+has\s+(the\s+)?most\s+events?\b`),
		build: fixed(`SELECT ve.city, COUNT(e.id) AS total_events
FROM Event e
JOIN Venue ve ON ve.id = e.venue_id
GROUP BY ve.city
ORDER BY total_events DESC, ve.city ASC
LIMIT 1`, "City with the most events"),
	},
	{
		name:    "highest_revenue_event",
		pattern: regexp.MustCompile(`\bevent\s+with\s+(the\s+)?(most|highest)\s+revenue\b|\bhighest[-\s]grossing\s+event\b|\bhighest\s+revenue\b`),
		build: fixed(`SELECT e.id, e.name, COALESCE(SUM(t.price_paid), 0) AS revenue
FROM Event e
LEFT JOIN Ticket t ON t.event_id = e.id
GROUP BY e.id, e.name
ORDER BY revenue DESC, e.name
LIMIT 1`, "Event with the highest revenue"),
	},
	{
		name:    "top_events_revenue",
		pattern: regexp.MustCompile(`\b(top|ranking)\b.*\b(revenue|sales|income)\b`),
		build: func(q string) (string, string) {
			n := topLimit(q, 5)
			return fmt.Sprintf(`SELECT e.id, e.name, ve.city, COALESCE(SUM(t.price_paid), 0) AS revenue
FROM Event e
JOIN Venue ve ON ve.id = e.venue_id
LEFT JOIN Ticket t ON t.event_id = e.id
GROUP BY e.id, e.name, ve.city
ORDER BY revenue DESC
LIMIT %d`, n), fmt.Sprintf("Top %d events by revenue", n)
		},
	},
	{
		name:    "average_rating_per_event",
		pattern: regexp.MustCompile(`\b(average|avg|mean)\b.*\b(ratings?|scores?)\b.*\bevents?\b`),
		build: fixed(`SELECT e.id, e.name, ROUND(AVG(r.score), 2) AS avg_score, COUNT(r.id) AS total_ratings
FROM Event e
LEFT JOIN Rating r ON r.event_id = e.id
GROUP BY e.id, e.name
ORDER BY avg_score DESC NULLS LAST, total_ratings DESC
LIMIT 200`, "Average rating per event"),
	},
	{
		name:    "database_summary",
		pattern: regexp.MustCompile(`\b(data|contents?)\b|what\s+do\s+you\s+have|what('s|\s+is)\s+(there|in\s+the\s+database)`),
		build: fixed("SELECT 'Events' AS kind, COUNT(*) AS total FROM Event"+
			" UNION ALL SELECT 'Artists' AS kind, COUNT(*) AS total FROM Artist"+
			" UNION ALL SELECT 'Tickets sold' AS kind, COUNT(*) AS total FROM Ticket"+
			" UNION ALL SELECT 'Ratings' AS kind, COUNT(*) AS total FROM Rating",
			"Summary of what the database holds"),
	},
	{
		name:    "count",
		pattern: regexp.MustCompile(`\bhow\s+many\b|\bcount\b|\bnumber\s+of\b`),
		build: func(q string) (string, string) {
			if perCity.MatchString(q) {
				return "SELECT city, COUNT(*) AS total_events FROM vw_events_enriched GROUP BY city ORDER BY total_events DESC LIMIT 200",
					"Event count per city"
			}
			return "SELECT COUNT(*) AS total_events FROM Event", "Total number of events"
		},
	},
	{
		name:    "artists",
		pattern: regexp.MustCompile(`\bartists?\b`),
		build: func(q string) (string, string) {
			if popularWord.MatchString(q) {
				return "SELECT * FROM vw_artists_by_activity ORDER BY artist_count DESC LIMIT 200",
					"Activities by number of artists"
			}
			return "SELECT id, name, biography FROM Artist ORDER BY name LIMIT 200", "Artists"
		},
	},
	{
		name:    "performer_events",
		pattern: regexp.MustCompile(`\bperform(s|ing)?\b|\bconcerts?\s+(of|by)\b|\bevents?\s+(of|by)\b`),
		build: fixed(`SELECT e.name AS event, e.starts_at, ve.city, ve.name AS venue, ar.name AS artist
FROM Event e
JOIN Activity a ON e.activity_id = a.id
JOIN Activity_Artist aa ON a.id = aa.activity_id
JOIN Artist ar ON aa.artist_id = ar.id
JOIN Venue ve ON e.venue_id = ve.id
ORDER BY e.starts_at DESC
LIMIT 200`, "Events with their artists"),
	},
	{
		name:    "theatre",
		pattern: regexp.MustCompile(`\btheat(re|er)s?\b|\bplays?\b`),
		build: fixed(
			"SELECT * FROM vw_events_enriched WHERE type = 'theatre' ORDER BY starts_at DESC LIMIT 200",
			"Theatre events",
		),
	},
	{
		name:    "concerts",
		pattern: regexp.MustCompile(`\bconcerts?\b|\bmusic\b`),
		build: fixed(
			"SELECT * FROM vw_events_enriched WHERE type = 'concert' ORDER BY starts_at DESC LIMIT 200",
			"Concerts",
		),
	},
	{
		name:    "venues",
		pattern: regexp.MustCompile(`\b(venues?|locations?|places?)\b`),
		build: fixed(
			"SELECT id, name, address, city, capacity, rental_price FROM Venue ORDER BY capacity DESC LIMIT 200",
			"Venues by capacity",
		),
	},
}

const defaultRuleSQL = "SELECT * FROM vw_events_enriched ORDER BY starts_at DESC LIMIT 200"

// RuleGenerator maps questions to fixed SQL through an ordered pattern table.
// It never fails: questions no rule matches get the most recent events.
type RuleGenerator struct{}

func (RuleGenerator) Generate(ctx context.Context, req Request) (Generation, error) {
	if err := ctx.Err(); err != nil {
		return Generation{}, err
	}
	question := strings.TrimSpace(req.Question)
	sql, explanation, _ := MatchRule(question)
	return Generation{
		Text:        sql,
		SQL:         sql,
		Explanation: fmt.Sprintf("%s for: %q", explanation, question),
		Provider:    providerRules,
	}, nil
}

// MatchRule returns the SQL of the first rule matching the question and the
// rule's name, or the default listing with an empty name.
func MatchRule(question string) (sql, explanation, name string) {
	q := strings.ToLower(question)
	for _, r := range rules {
		if r.pattern.MatchString(q) {
			sql, explanation = r.build(q)
			return sql, explanation, r.name
		}
	}
	return defaultRuleSQL, "Could not interpret the question; showing recent events", ""
}

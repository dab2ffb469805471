package api

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/artevida/askql/internal/query"
)

const maxWidgetLimit = 50

// Dashboard queries. They are fixed, but still pass the validator like any
// generated statement.
const (
	kpiEventsSQL  = "SELECT COUNT(*) AS total FROM Event"
	kpiTicketsSQL = "SELECT COUNT(*) AS total FROM Ticket"
	kpiRevenueSQL = "SELECT COALESCE(SUM(price_paid), 0) AS total FROM Ticket"
	kpiScoreSQL   = "SELECT AVG(score) AS total FROM Rating"

	topSalesSQL = `SELECT event_id, event_name, city, starts_at, tickets_sold, revenue
FROM vw_event_sales
ORDER BY revenue DESC, tickets_sold DESC
LIMIT %d`

	timelineSQL = `SELECT date_trunc('%s', e.starts_at) AS period, COUNT(t.id) AS tickets_sold, COALESCE(SUM(t.price_paid), 0) AS revenue
FROM Event e
LEFT JOIN Ticket t ON t.event_id = e.id
GROUP BY date_trunc('%s', e.starts_at)
ORDER BY period`

	ratingsSQL = `SELECT r.id, r.score, r.comment, e.name AS event, e.starts_at, ad.full_name AS attendee, ve.city, a.type, a.subtype
FROM Rating r
JOIN Event e ON r.event_id = e.id
JOIN Attendee ad ON r.attendee_id = ad.id
JOIN Venue ve ON e.venue_id = ve.id
JOIN Activity a ON e.activity_id = a.id
ORDER BY %s
LIMIT %d`

	ratingStatsSQL = `SELECT COUNT(*) AS total, AVG(score) AS avg_score,
SUM(CASE WHEN score >= 4 THEN 1 ELSE 0 END) AS positive,
SUM(CASE WHEN score <= 2 THEN 1 ELSE 0 END) AS negative
FROM Rating`

	topCitiesSQL = `SELECT city, total_events, total_revenue
FROM vw_city_stats
WHERE total_events > 0
ORDER BY total_revenue DESC, total_events DESC
LIMIT %d`
)

var ratingOrders = map[string]string{
	"date":  "e.starts_at DESC, r.score DESC",
	"score": "r.score DESC, e.starts_at DESC",
}

var errWidgetsNotConfigured = errors.New("widget dependencies are not configured")

func (s *server) handleKPIs(w http.ResponseWriter, r *http.Request) {
	var values [4]float64
	for i, sql := range []string{kpiEventsSQL, kpiTicketsSQL, kpiRevenueSQL, kpiScoreSQL} {
		records, err := s.runWidget(r.Context(), sql)
		if err != nil {
			s.writeWidgetError(w, r, err)
			return
		}
		if len(records) > 0 {
			values[i] = numberOf(records[0]["total"])
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"events":   int64(values[0]),
		"tickets":  int64(values[1]),
		"revenue":  math.Round(values[2]*100) / 100,
		"avgScore": math.Round(values[3]*10) / 10,
	})
}

func (s *server) handleSales(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	mode := strings.ToLower(params.Get("mode"))
	if mode == "" {
		mode = "timeline"
	}

	var sql string
	switch mode {
	case "top":
		sql = fmt.Sprintf(topSalesSQL, parseLimit(params.Get("limit"), 10))
	case "timeline":
		granularity := strings.ToLower(params.Get("granularity"))
		if granularity == "" {
			granularity = "month"
		}
		if granularity != "month" && granularity != "day" {
			writeError(r.Context(), w, http.StatusBadRequest, "VALIDATION_ERROR", "granularity must be month or day", granularity)
			return
		}
		sql = fmt.Sprintf(timelineSQL, granularity, granularity)
	default:
		writeError(r.Context(), w, http.StatusBadRequest, "VALIDATION_ERROR", "mode must be top or timeline", mode)
		return
	}

	records, err := s.runWidget(r.Context(), sql)
	if err != nil {
		s.writeWidgetError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *server) handleRatings(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	order, ok := ratingOrders[strings.ToLower(params.Get("orderBy"))]
	if !ok {
		order = ratingOrders["date"]
	}

	ratings, err := s.runWidget(r.Context(), fmt.Sprintf(ratingsSQL, order, parseLimit(params.Get("limit"), 20)))
	if err != nil {
		s.writeWidgetError(w, r, err)
		return
	}
	stats, err := s.runWidget(r.Context(), ratingStatsSQL)
	if err != nil {
		s.writeWidgetError(w, r, err)
		return
	}

	summary := map[string]any{"total": int64(0), "avgScore": 0.0, "positive": int64(0), "negative": int64(0)}
	if len(stats) > 0 {
		row := stats[0]
		summary["total"] = int64(numberOf(row["total"]))
		summary["avgScore"] = math.Round(numberOf(row["avg_score"])*10) / 10
		summary["positive"] = int64(numberOf(row["positive"]))
		summary["negative"] = int64(numberOf(row["negative"]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"ratings": ratings, "stats": summary})
}

func (s *server) handleTopCities(w http.ResponseWriter, r *http.Request) {
	records, err := s.runWidget(r.Context(), fmt.Sprintf(topCitiesSQL, parseLimit(r.URL.Query().Get("limit"), 5)))
	if err != nil {
		s.writeWidgetError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *server) runWidget(ctx context.Context, sql string) ([]map[string]any, error) {
	if s.deps.Validator == nil || s.deps.Engine == nil {
		return nil, errWidgetsNotConfigured
	}
	sanitized, err := s.deps.Validator.Check(sql)
	if err != nil {
		return nil, fmt.Errorf("validate widget query: %w", err)
	}
	result, err := s.deps.Engine.Execute(ctx, sanitized)
	if err != nil {
		return nil, err
	}
	return result.Records(), nil
}

func (s *server) writeWidgetError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, errWidgetsNotConfigured) {
		writeError(r.Context(), w, http.StatusNotImplemented, "WIDGETS_NOT_CONFIGURED", err.Error(), nil)
		return
	}
	if query.Fatal(err) {
		s.writeQueryError(w, r, err)
		return
	}
	s.writeInternal(r, w, "widget query failed", err)
}

// parseLimit reads a row limit clamped to 1..maxWidgetLimit.
func parseLimit(raw string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		n = fallback
	}
	return max(1, min(n, maxWidgetLimit))
}

func numberOf(value any) float64 {
	switch v := value.(type) {
	case int64:
		return float64(v)
	case int32:
		return float64(v)
	case int:
		return float64(v)
	case float64:
		return v
	case float32:
		return float64(v)
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	default:
		return 0
	}
}

package nl2sql

import (
	"context"
	"strings"
	"testing"

	"github.com/artevida/askql/internal/catalog"
	"github.com/artevida/askql/internal/sqlguard"
)

func TestMatchRuleOrder(t *testing.T) {
	cases := map[string]string{
		"What do artist fees cost per activity?":           "activity_cost",
		"Which event has the most zeros?":                  "most_zero_ratings",
		"Cities with only theatre":                         "theatre_only_cities",
		"Occupancy percentage of upcoming events":          "upcoming_occupancy",
		"What are the next concerts?":                      "upcoming_events",
		"Estimated margin per event":                       "estimated_margin",
		"Top 3 artists by revenue":                         "top_artists_revenue",
		"Events with sales details":                        "enriched_events",
		"Statistics per city":                              "city_stats",
		"Which city has the most events?":                  "city_most_events",
		"Event with the highest revenue":                   "highest_revenue_event",
		"Top 7 by revenue":                                 "top_events_revenue",
		"Average rating per event":                         "average_rating_per_event",
		"What do you have?":                                "database_summary",
		"How many events per city?":                        "count",
		"List the artists":                                 "artists",
		"Theatre plays":                                    "theatre",
		"Any music tonight?":                               "concerts",
		"Show me the venues":                               "venues",
		"Something completely unrelated to the catalogue": "",
	}
	for q, want := range cases {
		if _, _, got := MatchRule(q); got != want {
			t.Fatalf("MatchRule(%q) rule = %q, want %q", q, got, want)
		}
	}
}

func TestTopLimitIsClamped(t *testing.T) {
	sql, explanation, _ := MatchRule("top 99 by revenue")
	if !strings.HasSuffix(sql, "LIMIT 50") || explanation != "Top 50 events by revenue" {
		t.Fatalf("sql=%q explanation=%q", sql, explanation)
	}
	sql, _, _ = MatchRule("top 0 artists ranking")
	if !strings.HasSuffix(sql, "LIMIT 1") {
		t.Fatalf("sql=%q", sql)
	}
	sql, _, _ = MatchRule("artists ranking")
	if !strings.HasSuffix(sql, "LIMIT 10") {
		t.Fatalf("default artist ranking limit: %q", sql)
	}
}

func TestRuleSQLPassesValidator(t *testing.T) {
	v := sqlguard.New(catalog.Default())
	for _, r := range rules {
		sql, _ := r.build("top 3 per city")
		if res := v.Validate(sql); !res.Valid {
			t.Fatalf("rule %s produced rejected SQL (%s): %s", r.name, res.Err, sql)
		}
	}
	if res := v.Validate(defaultRuleSQL); !res.Valid {
		t.Fatalf("default SQL rejected: %s", res.Err)
	}
}

func TestRuleGeneratorNeverFails(t *testing.T) {
	out, err := RuleGenerator{}.Generate(context.Background(), Request{Question: "  concerts  "})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if out.Provider != "rules" || !strings.Contains(out.SQL, "type = 'concert'") {
		t.Fatalf("Generate() = %+v", out)
	}
	if out.Explanation != `Concerts for: "concerts"` {
		t.Fatalf("Explanation = %q", out.Explanation)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := (RuleGenerator{}).Generate(ctx, Request{Question: "concerts"}); err == nil {
		t.Fatal("expected context error")
	}
}

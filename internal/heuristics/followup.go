package heuristics

import (
	"regexp"

	"github.com/artevida/askql/internal/entities"
)

type Attribute string

const (
	AttributePrice Attribute = "price"
	AttributeDate  Attribute = "date"
	AttributeCity  Attribute = "city"
	AttributePlace Attribute = "place"
)

var attributePatterns = []struct {
	attr    Attribute
	pattern *regexp.Regexp
}{
	{AttributePrice, regexp.MustCompile(`(?i)\b(price|prices|cost|costs)\b|how much (is|are|does|do|did)\b`)},
	{AttributeDate, regexp.MustCompile(`(?i)\b(date|dates|when)\b|what time`)},
	{AttributeCity, regexp.MustCompile(`(?i)\b(city|town)\b|which city|what city`)},
	{AttributePlace, regexp.MustCompile(`(?i)\b(place|venue|location|where)\b`)},
}

var descriptionPattern = regexp.MustCompile(`(?i)what('s| is) (it|that|this|the event|that event) about|\bdescription\b|\bdescribe\b|tell me (more )?about (it|that|this|them)|more (info|information|details)`)

// Words a referential follow-up may consist of. Anything else is treated as
// a new concrete term.
var followUpVocabulary = map[string]bool{
	"what": true, "whats": true, "when": true, "where": true, "which": true, "how": true,
	"much": true, "does": true, "did": true, "the": true, "that": true, "those": true,
	"these": true, "this": true, "them": true, "they": true, "their": true, "its": true,
	"and": true, "about": true, "for": true, "price": true, "prices": true, "cost": true,
	"costs": true, "ticket": true, "tickets": true, "date": true, "dates": true, "time": true,
	"place": true, "venue": true, "location": true, "city": true, "town": true, "held": true,
	"take": true, "takes": true, "happen": true, "happens": true, "event": true, "events": true,
	"one": true, "ones": true, "description": true, "describe": true, "tell": true, "more": true,
	"info": true, "information": true, "details": true, "please": true, "also": true,
	"again": true, "then": true, "are": true, "was": true, "were": true, "will": true,
	"there": true, "can": true, "you": true, "same": true, "give": true, "show": true,
}

var (
	fromKeyword   = regexp.MustCompile(`(?i)\bfrom\b`)
	viewTail      = regexp.MustCompile(`(?i)^from\s+vw_events_enriched\b`)
	eventAlias    = regexp.MustCompile(`(?i)\bEvent\s+(AS\s+)?e\b`)
	venueAlias    = regexp.MustCompile(`(?i)\bVenue\s+(AS\s+)?ve\b`)
	withStatement = regexp.MustCompile(`(?i)^\s*with\b`)
)

// DetectAttribute returns the single event attribute a question asks for.
func DetectAttribute(question string) (Attribute, bool) {
	for _, candidate := range attributePatterns {
		if candidate.pattern.MatchString(question) {
			return candidate.attr, true
		}
	}
	return "", false
}

func IsDescriptionIntent(question string) bool {
	return descriptionPattern.MatchString(question)
}

// IsReferential reports whether the question uses only referential and
// attribute vocabulary, i.e. names nothing new.
func IsReferential(question string) bool {
	if quotedPhrase.MatchString(question) {
		return false
	}
	for _, token := range entities.Tokens(question, 3) {
		if !followUpVocabulary[token] {
			return false
		}
	}
	return true
}

// FollowUp re-selects from the previous statement's FROM tail when the
// question asks for an attribute or description of the same rows.
func FollowUp(question, previousSQL string) (Draft, bool) {
	if !IsReferential(question) {
		return Draft{}, false
	}
	if IsDescriptionIntent(question) {
		if sql, ok := reselect(previousSQL, "", true); ok {
			return Draft{SQL: sql, Explanation: "Description of the events from the previous answer", Rule: RuleFollowUpDescription}, true
		}
		return Draft{}, false
	}
	attr, ok := DetectAttribute(question)
	if !ok {
		return Draft{}, false
	}
	sql, ok := reselect(previousSQL, attr, false)
	if !ok {
		return Draft{}, false
	}
	return Draft{
		SQL:         sql,
		Explanation: "The " + string(attr) + " of the events from the previous answer",
		Rule:        RuleFollowUpAttribute,
	}, true
}

func reselect(previousSQL string, attr Attribute, description bool) (string, bool) {
	if withStatement.MatchString(previousSQL) {
		return "", false
	}
	idx := topLevelFrom(previousSQL)
	if idx < 0 {
		return "", false
	}
	tail := previousSQL[idx:]

	if viewTail.MatchString(tail) {
		if description {
			return "SELECT event_name, event_description, starts_at, city\n" + tail, true
		}
		return viewSelect[attr] + "\n" + tail, true
	}

	if !eventAlias.MatchString(tail) {
		return "", false
	}
	needsVenue := description || attr == AttributeCity || attr == AttributePlace
	if needsVenue && !venueAlias.MatchString(tail) {
		return "", false
	}
	if description {
		return "SELECT e.name AS event, e.description, e.starts_at, ve.city\n" + tail, true
	}
	return tableSelect[attr] + "\n" + tail, true
}

var viewSelect = map[Attribute]string{
	AttributePrice: "SELECT event_name, ticket_price",
	AttributeDate:  "SELECT event_name, starts_at",
	AttributePlace: "SELECT event_name, venue_name AS place, city",
	AttributeCity:  "SELECT event_name, city",
}

var tableSelect = map[Attribute]string{
	AttributePrice: "SELECT e.name AS event, e.ticket_price",
	AttributeDate:  "SELECT e.name AS event, e.starts_at",
	AttributePlace: "SELECT e.name AS event, ve.name AS place, ve.city",
	AttributeCity:  "SELECT e.name AS event, ve.city",
}

// topLevelFrom returns the offset of the first FROM outside parentheses and
// quotes, or -1.
func topLevelFrom(sql string) int {
	for _, loc := range fromKeyword.FindAllStringIndex(sql, -1) {
		if balancedBefore(sql[:loc[0]]) {
			return loc[0]
		}
	}
	return -1
}

func balancedBefore(prefix string) bool {
	depth := 0
	inQuote := false
	for _, r := range prefix {
		switch {
		case r == '\'':
			inQuote = !inQuote
		case inQuote:
		case r == '(':
			depth++
		case r == ')':
			depth--
		}
	}
	return depth == 0 && !inQuote
}

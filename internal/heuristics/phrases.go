package heuristics

import (
	"regexp"
	"strings"

	"github.com/artevida/askql/internal/entities"
)

var (
	// The opening quote must start a word so apostrophes in "what's" are
	// not taken for quotes.
	quotedPhrase   = regexp.MustCompile(`(?:^|\s)["'“‘]([^"'“”‘’]+)["'”’]`)
	afterEventWord = regexp.MustCompile(`(?i)\bevent\s+(?:called\s+|named\s+)?([^?]+)`)
	afterOfFor     = regexp.MustCompile(`(?i)\b(?:of|for)\s+(?:the\s+)?(?:event\s+)?([^?]+)`)
	afterArtistBy  = regexp.MustCompile(`(?i)\b(?:by|of|from|with|featuring)\s+(.+)$`)
	trailingPrice  = regexp.MustCompile(`(?i)\s*(,\s*)?(what|how much)\b.*$`)
	trailingCity   = regexp.MustCompile(`(?i)\s+in\s+.*$`)
	trailingPunct  = regexp.MustCompile(`[\s?!.,;:]+$`)
	cityPhrase     = regexp.MustCompile(`\bin\s+(\p{Lu}\p{L}*(?:\s+\p{Lu}\p{L}*)*)`)
)

// Words that never belong to an artist's name in a question about events.
var artistNoise = map[string]bool{
	"events": true, "event": true, "concerts": true, "concert": true, "gigs": true,
	"gig": true, "performs": true, "performing": true, "plays": true, "playing": true,
	"show": true, "shows": true, "list": true, "all": true, "the": true, "what": true,
	"which": true, "are": true, "there": true, "upcoming": true, "does": true, "have": true,
	"has": true, "any": true, "artist": true, "give": true, "find": true,
	"how": true, "many": true, "me": true, "next": true, "this": true, "year": true,
	"month": true, "week": true, "is": true, "a": true,
}

// ExtractEventPhrase picks the part of a price question that names the
// event: quoted text, then text after "event", then text after "of"/"for".
func ExtractEventPhrase(question string) string {
	q := strings.TrimSpace(question)
	if m := quotedPhrase.FindStringSubmatch(q); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := afterEventWord.FindStringSubmatch(q); m != nil {
		return cleanPhrase(trailingPrice.ReplaceAllString(m[1], ""))
	}
	if m := afterOfFor.FindStringSubmatch(q); m != nil {
		return cleanPhrase(trailingPrice.ReplaceAllString(m[1], ""))
	}
	return cleanPhrase(q)
}

// ExtractArtistPhrase picks the artist name from an events question, cut
// before a trailing " in <city>".
func ExtractArtistPhrase(question string) string {
	q := strings.TrimSpace(question)
	if m := quotedPhrase.FindStringSubmatch(q); m != nil {
		return strings.TrimSpace(m[1])
	}
	base := q
	if m := afterArtistBy.FindStringSubmatch(q); m != nil {
		base = m[1]
	}
	base = trailingCity.ReplaceAllString(base, "")

	var kept []string
	for _, token := range entities.Tokens(base, 1) {
		if !artistNoise[token] {
			kept = append(kept, token)
		}
	}
	return strings.Join(kept, " ")
}

// ExtractCity returns a capitalized place name following "in".
func ExtractCity(question string) string {
	m := cityPhrase.FindStringSubmatch(question)
	if m == nil {
		return ""
	}
	return m[1]
}

func cleanPhrase(s string) string {
	return strings.TrimSpace(trailingPunct.ReplaceAllString(strings.TrimSpace(s), ""))
}

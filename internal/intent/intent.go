// Package intent separates small talk from data questions.
package intent

import (
	"regexp"
	"strings"
)

type Kind string

const (
	Conversational Kind = "conversational"
	Data           Kind = "data"
)

// Greeting is the canned reply for conversational turns.
const Greeting = "Hi! I'm the ArteVida assistant. Ask me about the catalogue, for example: " +
	"ticket prices for an artist, events in Madrid in 2024, or the top cities by revenue."

var smallTalk = regexp.MustCompile(`^(hi|hello|hey|hiya|howdy|good (morning|afternoon|evening)|how are you( doing)?|how's it going|what's up|whats up|thanks|thank you( very much)?|cheers)( there)?[\s!.?,]*$`)

var domainKeyword = regexp.MustCompile(`\b(events?|artists?|concerts?|theat(re|er)s?|exhibitions?|lectures?|venues?|city|cities|prices?|tickets?|sales?|sold|revenue|ratings?|scores?|dates?|data|show me|list|how many)\b`)

// Classify reports whether the question is small talk. A domain keyword
// always wins, so "hi, show me concerts" is a data question.
func Classify(question string) Kind {
	q := strings.ToLower(strings.TrimSpace(question))
	if domainKeyword.MatchString(q) {
		return Data
	}
	if smallTalk.MatchString(q) {
		return Conversational
	}
	return Data
}

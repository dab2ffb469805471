// Package entities resolves free-text event and artist names against live
// rows. Results are never cached.
package entities

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
)

const (
	DefaultLookupTimeout = 2 * time.Second

	minEventTokenLen  = 2
	minArtistTokenLen = 3
)

type Event struct {
	ID   int64
	Name string
}

type Artist struct {
	ID   int64
	Name string
}

// Store runs parameterized substring lookups. Every token of the phrase must
// appear in the name, case-insensitively.
type Store struct {
	db      *sql.DB
	timeout time.Duration
}

func NewStore(db *sql.DB, timeout time.Duration) *Store {
	if timeout <= 0 {
		timeout = DefaultLookupTimeout
	}
	return &Store{db: db, timeout: timeout}
}

// FindEvent returns the most recent event whose name contains every token.
func (s *Store) FindEvent(ctx context.Context, phrase string) (Event, bool, error) {
	tokens := Tokens(phrase, minEventTokenLen)
	if len(tokens) == 0 {
		return Event{}, false, nil
	}
	where, args := likeAll("name", tokens)
	query := `SELECT id, name FROM Event WHERE ` + where + ` ORDER BY starts_at DESC LIMIT 1`

	var ev Event
	found, err := s.queryOne(ctx, query, args, &ev.ID, &ev.Name)
	if err != nil {
		return Event{}, false, fmt.Errorf("find event: %w", err)
	}
	return ev, found, nil
}

// FindArtist returns the newest artist whose name contains every token.
func (s *Store) FindArtist(ctx context.Context, phrase string) (Artist, bool, error) {
	tokens := Tokens(phrase, minArtistTokenLen)
	if len(tokens) == 0 {
		return Artist{}, false, nil
	}
	where, args := likeAll("name", tokens)
	query := `SELECT id, name FROM Artist WHERE ` + where + ` ORDER BY id DESC LIMIT 1`

	var ar Artist
	found, err := s.queryOne(ctx, query, args, &ar.ID, &ar.Name)
	if err != nil {
		return Artist{}, false, fmt.Errorf("find artist: %w", err)
	}
	return ar, found, nil
}

func (s *Store) queryOne(ctx context.Context, query string, args []any, dest ...any) (bool, error) {
	if s == nil || s.db == nil {
		return false, errors.New("entity store is not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	err := s.db.QueryRowContext(ctx, query, args...).Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func likeAll(column string, tokens []string) (string, []any) {
	clauses := make([]string, 0, len(tokens))
	args := make([]any, 0, len(tokens))
	for i, token := range tokens {
		clauses = append(clauses, fmt.Sprintf("LOWER(%s) LIKE $%d", column, i+1))
		args = append(args, "%"+token+"%")
	}
	return strings.Join(clauses, " AND "), args
}

// Tokens lower-cases the phrase, splits it on anything that is not a letter
// or digit, and drops tokens shorter than minLen runes.
func Tokens(phrase string, minLen int) []string {
	fields := strings.FieldsFunc(strings.ToLower(phrase), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, field := range fields {
		if len([]rune(field)) >= minLen {
			out = append(out, field)
		}
	}
	return out
}

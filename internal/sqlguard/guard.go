// Package sqlguard decides whether a candidate SQL string may run against the
// cultural-events database and produces the sanitized text that is executed.
//
// Acceptance requires a single read-only SELECT (or WITH ... SELECT) whose
// relations all appear in the catalog. Statements the structural parser
// understands are checked on their syntax tree; the rest fall back to a
// conservative token scan that can only reject more, never less.
package sqlguard

import (
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/xwb1989/sqlparser"

	"github.com/artevida/askql/internal/catalog"
)

const DefaultLimit = 200

// shortNameMax is the longest relation name treated as an alias or CTE name
// and exempt from the catalog check.
const shortNameMax = 2

// Result is the outcome of one validation. SanitizedSQL is set only when
// Valid is true; Err only when it is false.
type Result struct {
	Valid        bool
	SanitizedSQL string
	Err          *ValidationError
}

// ErrorKind returns the failure kind or an empty string for accepted input.
func (r Result) ErrorKind() Kind {
	if r.Err == nil {
		return ""
	}
	return r.Err.Kind
}

func invalid(err *ValidationError) Result {
	return Result{Err: err}
}

type Validator struct {
	catalog      *catalog.Catalog
	defaultLimit int
	logger       *slog.Logger
}

type Option func(*Validator)

// WithDefaultLimit sets the row cap appended to statements without LIMIT.
// Zero disables injection.
func WithDefaultLimit(limit int) Option {
	return func(v *Validator) {
		if limit >= 0 {
			v.defaultLimit = limit
		}
	}
}

// WithLogger enables debug logging of rejected statements.
func WithLogger(logger *slog.Logger) Option {
	return func(v *Validator) { v.logger = logger }
}

func New(cat *catalog.Catalog, opts ...Option) *Validator {
	if cat == nil {
		cat = catalog.Default()
	}
	v := &Validator{catalog: cat, defaultLimit: DefaultLimit}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate is deterministic: the same input always yields the same result, and
// validating an accepted SanitizedSQL returns it unchanged.
func (v *Validator) Validate(candidate string) Result {
	result := v.validate(candidate)
	if !result.Valid && v.logger != nil {
		v.logger.Debug("sql rejected",
			slog.String("kind", string(result.Err.Kind)),
			slog.String("message", result.Err.Message),
		)
	}
	return result
}

func (v *Validator) validate(candidate string) Result {
	stripped, flags := stripComments(candidate)
	if strings.TrimSpace(stripped) == "" {
		return invalid(newError(KindEmptyInput, "query is empty"))
	}
	if flags.unterminated {
		return invalid(newError(KindParseError, "unterminated quoted literal or identifier"))
	}
	if flags.unsupported != "" {
		return invalid(newError(KindParseError, flags.unsupported+" are not supported"))
	}

	tokens := tokenize(stripped)
	body, tokens, verr := splitTerminator(stripped, tokens)
	if verr != nil {
		return invalid(verr)
	}
	if tokens[0].kind == tokWord {
		if op, ok := writeKeywords[tokens[0].upper()]; ok {
			return invalid(operationError(op))
		}
	}

	var parseErr error
	if flags.structuralSafe() {
		stmt, err := sqlparser.Parse(body)
		if err == nil {
			hasLimit, verr := v.checkStructural(stmt)
			if verr != nil {
				return invalid(verr)
			}
			return v.accept(body, hasLimit)
		}
		parseErr = err
	}

	if verr := v.checkTextual(tokens); verr != nil {
		if verr.Kind == KindParseError && parseErr != nil {
			verr.Err = parseErr
		}
		return invalid(verr)
	}
	return v.accept(body, hasTopLevelLimit(tokens))
}

// Check is Validate in error-returning form.
func (v *Validator) Check(candidate string) (string, error) {
	result := v.Validate(candidate)
	if !result.Valid {
		return "", result.Err
	}
	return result.SanitizedSQL, nil
}

func (v *Validator) accept(body string, hasLimit bool) Result {
	if !hasLimit && v.defaultLimit > 0 {
		body = fmt.Sprintf("%s LIMIT %d", body, v.defaultLimit)
	}
	return Result{Valid: true, SanitizedSQL: body}
}

func (v *Validator) checkTable(name string) *ValidationError {
	if utf8.RuneCountInString(name) <= shortNameMax {
		return nil
	}
	if strings.Contains(name, ".") {
		return tableError(name)
	}
	if !v.catalog.Allowed(name) {
		return tableError(name)
	}
	return nil
}

// splitTerminator drops a single trailing semicolon. Any other semicolon
// outside literals means more than one statement.
func splitTerminator(text string, tokens []token) (string, []token, *ValidationError) {
	last := -1
	for i, tok := range tokens {
		if !tok.isSymbol(";") {
			continue
		}
		if last >= 0 || i != len(tokens)-1 {
			return "", nil, newError(KindMultiStatement, "multiple statements are not allowed")
		}
		last = i
	}
	if last < 0 {
		return strings.TrimSpace(text), tokens, nil
	}
	body := strings.TrimSpace(text[:tokens[last].pos])
	tokens = tokens[:last]
	if len(tokens) == 0 {
		return "", nil, newError(KindEmptyInput, "query is empty")
	}
	return body, tokens, nil
}

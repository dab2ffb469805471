package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/artevida/askql/internal/conversation"
	"github.com/artevida/askql/internal/query"
	"github.com/artevida/askql/internal/sqlguard"
)

const (
	maxQuestionLength = 500
	maxRequestBytes   = 64 << 10
)

type askRequest struct {
	Question            string              `json:"question"`
	ConversationContext []conversation.Turn `json:"conversationContext"`
}

type askResponse struct {
	SQL             string           `json:"sql"`
	Rows            []map[string]any `json:"rows"`
	Explanation     string           `json:"explanation"`
	NaturalResponse string           `json:"naturalResponse"`
	ExecutionTime   int64            `json:"executionTime"`
	Degraded        bool             `json:"degraded,omitempty"`
}

// validateAskRequest returns the problems with request, one per field rule.
func validateAskRequest(request askRequest) []string {
	var problems []string
	switch n := utf8.RuneCountInString(request.Question); {
	case strings.TrimSpace(request.Question) == "":
		problems = append(problems, "question must not be empty")
	case n > maxQuestionLength:
		problems = append(problems, fmt.Sprintf("question is too long (maximum %d characters)", maxQuestionLength))
	}
	if strings.ContainsAny(request.Question, `<>{}[]\`) {
		problems = append(problems, "question contains invalid characters")
	}
	if len(request.ConversationContext) > conversation.MaxTurns {
		problems = append(problems, fmt.Sprintf("conversationContext holds at most %d turns", conversation.MaxTurns))
	}
	return problems
}

func (s *server) handleAsk(w http.ResponseWriter, r *http.Request) {
	if s.deps.Asker == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "ASK_NOT_CONFIGURED", "ask pipeline is not configured", nil)
		return
	}
	start := time.Now()

	var request askRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body", err.Error())
		return
	}
	if problems := validateAskRequest(request); len(problems) > 0 {
		writeError(r.Context(), w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid input", strings.Join(problems, ", "))
		return
	}

	answer, err := s.deps.Asker.Ask(r.Context(), request.Question, request.ConversationContext)
	if err != nil {
		s.writeQueryError(w, r, err)
		return
	}

	rows := answer.Rows
	if rows == nil {
		rows = []map[string]any{}
	}
	writeJSON(w, http.StatusOK, askResponse{
		SQL:             answer.SQL,
		Rows:            rows,
		Explanation:     answer.Explanation,
		NaturalResponse: answer.NaturalResponse,
		ExecutionTime:   time.Since(start).Milliseconds(),
		Degraded:        answer.Degraded,
	})
}

// writeQueryError maps executor and validator failures onto the public error
// codes.
func (s *server) writeQueryError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *sqlguard.ValidationError
	kind := query.KindOf(err)
	switch {
	case kind == query.KindTimeout:
		writeError(r.Context(), w, http.StatusRequestTimeout, "QUERY_TIMEOUT", "the query took too long", err.Error())
	case kind == query.KindConnectionRefused:
		writeError(r.Context(), w, http.StatusServiceUnavailable, "DATABASE_UNAVAILABLE", "the database is unavailable", err.Error())
	case kind == query.KindSyntax:
		writeError(r.Context(), w, http.StatusBadRequest, "SQL_ERROR", "the query could not be executed", err.Error())
	case errors.As(err, &verr):
		writeError(r.Context(), w, http.StatusBadRequest, "SQL_VALIDATION_ERROR", "the generated query was rejected", verr.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(r.Context(), w, http.StatusRequestTimeout, "QUERY_TIMEOUT", "the query took too long", err.Error())
	default:
		s.writeInternal(r, w, "request failed", err)
	}
}

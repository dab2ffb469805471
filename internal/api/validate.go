package api

import (
	"encoding/json"
	"net/http"

	"github.com/artevida/askql/internal/observability"
)

type validateRequest struct {
	SQL string `json:"sql"`
}

type validateResponse struct {
	Valid        bool   `json:"valid"`
	SanitizedSQL string `json:"sanitizedSql,omitempty"`
	ErrorKind    string `json:"errorKind,omitempty"`
	Operation    string `json:"operation,omitempty"`
	Table        string `json:"table,omitempty"`
	Message      string `json:"message,omitempty"`
}

// handleValidate lints SQL without executing it. A rejected statement is a
// successful lint, so both outcomes answer 200.
func (s *server) handleValidate(w http.ResponseWriter, r *http.Request) {
	if s.deps.Validator == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "VALIDATOR_NOT_CONFIGURED", "sql validator is not configured", nil)
		return
	}

	var request validateRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body", err.Error())
		return
	}

	result := s.deps.Validator.Validate(request.SQL)
	observability.ObserveValidation(string(result.ErrorKind()))
	response := validateResponse{Valid: result.Valid, SanitizedSQL: result.SanitizedSQL}
	if result.Err != nil {
		response.ErrorKind = string(result.Err.Kind)
		response.Operation = result.Err.Operation
		response.Table = result.Err.Table
		response.Message = result.Err.Message
	}
	writeJSON(w, http.StatusOK, response)
}

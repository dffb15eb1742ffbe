// Package httpx provides HTTP response utilities following RFC7807 problem details.
package httpx

import (
	"encoding/json"
	"net/http"
)

// ProblemDetail represents RFC7807 problem details. FieldErrors carries
// per-field messages for validation problems, each kept separate so the UI
// can show them next to the offending input.
type ProblemDetail struct {
	Type        string              `json:"type,omitempty"`
	Title       string              `json:"title"`
	Status      int                 `json:"status"`
	Detail      string              `json:"detail,omitempty"`
	Retryable   bool                `json:"retryable,omitempty"`
	FieldErrors map[string][]string `json:"field_errors,omitempty"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Problem sends an RFC7807 problem details response.
func Problem(w http.ResponseWriter, status int, title, detail string) {
	JSON(w, status, ProblemDetail{
		Title:  title,
		Status: status,
		Detail: detail,
	})
}

// ValidationProblem sends a 422 with per-field messages.
func ValidationProblem(w http.ResponseWriter, detail string, fields map[string][]string) {
	JSON(w, http.StatusUnprocessableEntity, ProblemDetail{
		Title:       "Validation Failed",
		Status:      http.StatusUnprocessableEntity,
		Detail:      detail,
		FieldErrors: fields,
	})
}

// RetryableProblem sends a 502 marking the failure as safe to resubmit.
func RetryableProblem(w http.ResponseWriter, detail string) {
	JSON(w, http.StatusBadGateway, ProblemDetail{
		Title:     "Upstream Unavailable",
		Status:    http.StatusBadGateway,
		Detail:    detail,
		Retryable: true,
	})
}

// DecodeJSON decodes JSON request body into the target struct.
func DecodeJSON(r *http.Request, target any) error {
	return json.NewDecoder(r.Body).Decode(target)
}

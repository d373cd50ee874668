package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/odyssey-erp/backoffice/internal/shared"
)

// Result is the envelope returned by every mutation and query endpoint.
type Result struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// OK sends a successful result.
func OK(w http.ResponseWriter, status int, data any) {
	JSON(w, status, Result{Success: true, Data: data})
}

// Fail sends a failure result with an explicit reason.
func Fail(w http.ResponseWriter, status int, reason string) {
	JSON(w, status, Result{Success: false, Error: reason})
}

// DecodeJSON decodes JSON request body into the target struct.
func DecodeJSON(r *http.Request, target any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return shared.Validationf("malformed request body: " + err.Error())
	}
	return nil
}

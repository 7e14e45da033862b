// Package api provides the shared JSON response vocabulary for HTTP handlers.
package api

import (
	"encoding/json"
	"net/http"
)

// WriteJSON encodes v as the response body with the given status code.
// Encoding failures after the header is written can only be logged by
// the caller's middleware; the status line has already gone out.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Package httputil writes the JSON envelopes shared by every handler.
package httputil

import (
	"encoding/json"
	"net/http"

	dErrors "tfc/pkg/domain-errors"
)

// ErrorResponse is the failure envelope: {"ok":false,"error":"<reason>"}.
type ErrorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates a domain error into its status and envelope. Internal
// errors never expose their message.
func WriteError(w http.ResponseWriter, err error) {
	de, ok := dErrors.As(err)
	if !ok {
		WriteJSON(w, http.StatusInternalServerError, ErrorResponse{Error: string(dErrors.CodeInternal)})
		return
	}
	reason := de.Message
	if de.Code == dErrors.CodeInternal || reason == "" {
		reason = string(de.Code)
	}
	WriteJSON(w, dErrors.HTTPStatus(de.Code), ErrorResponse{Error: reason})
}

// WriteReason writes a failure envelope with an explicit status and reason.
func WriteReason(w http.ResponseWriter, status int, reason string) {
	WriteJSON(w, status, ErrorResponse{Error: reason})
}

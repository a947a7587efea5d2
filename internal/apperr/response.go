package apperr

import (
	"encoding/json"
	"net/http"
)

// Envelope is the body shape of every JSON response.
type Envelope struct {
	Success bool           `json:"success"`
	Data    any            `json:"data,omitempty"`
	Error   *AppError      `json:"error,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

// WriteJSON writes v as JSON with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// WriteData writes a success envelope.
func WriteData(w http.ResponseWriter, status int, data any) {
	WriteJSON(w, status, Envelope{Success: true, Data: data})
}

// WriteList writes a success envelope with pagination metadata.
func WriteList(w http.ResponseWriter, data any, total, limit, offset int) {
	WriteJSON(w, http.StatusOK, Envelope{
		Success: true,
		Data:    data,
		Meta: map[string]any{
			"total":  total,
			"limit":  limit,
			"offset": offset,
		},
	})
}

// WriteError writes err as a failure envelope. Internal errors hide their cause.
func WriteError(w http.ResponseWriter, err error) {
	ae := From(err)
	out := *ae
	if out.Status >= http.StatusInternalServerError && out.Code == CodeInternal {
		out.Message = "internal server error"
	}
	WriteJSON(w, out.Status, Envelope{Success: false, Error: &out})
}

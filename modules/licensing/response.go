package licensing

import (
	"encoding/json"
	"net/http"
)

type errorResponse struct {
	Error    string `json:"error"`
	Action   string `json:"action,omitempty"`
	Requires string `json:"requires,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

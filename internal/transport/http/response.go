package httptransport

import (
	"encoding/json"
	"net/http"
)

// every jobs API response carries the same envelope:
// { "success": bool, "job": {...} } or { "success": false, "error": "..." }
type jobEnvelope struct {
	Success bool        `json:"success"`
	Job     *jobPayload `json:"job,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJob(w http.ResponseWriter, code int, job *jobPayload) {
	writeJSON(w, code, jobEnvelope{Success: true, Job: job})
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, jobEnvelope{Success: false, Error: msg})
}

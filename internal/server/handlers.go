package server

import (
	"encoding/json"
	"net/http"
	"time"
)

// handleHealth is the liveness probe: 200 while the process is up.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode health response")
	}
}

package handler

import "net/http"

// WriteMetrics handles GET /metrics
func WriteMetrics(w http.ResponseWriter, snapshot map[string]any) {
	writeJSON(w, http.StatusOK, map[string]any{"metrics": snapshot})
}

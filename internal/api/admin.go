package api

import (
	"net/http"
)

type sweepResponse struct {
	Applications int    `json:"applications"`
	Analyzed     int    `json:"analyzed"`
	Failed       int    `json:"failed"`
	Warnings     int    `json:"warnings"`
	Duration     string `json:"duration"`
}

// handleSweep re-analyses every tracked application synchronously.
func (h *Handler) handleSweep(w http.ResponseWriter, r *http.Request) {
	if h.sweeper == nil {
		writeError(w, http.StatusServiceUnavailable, "scheduler is not configured")
		return
	}

	sum, err := h.sweeper.RunOnce(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "sweep", err)
		return
	}

	writeJSON(w, http.StatusOK, sweepResponse{
		Applications: sum.Applications,
		Analyzed:     sum.Analyzed,
		Failed:       sum.Failed,
		Warnings:     sum.Warnings,
		Duration:     sum.Duration.String(),
	})
}

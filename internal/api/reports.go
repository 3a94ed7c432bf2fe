package api

import (
	"encoding/json"
	"net/http"
)

// handleGetReport serves a stored analysis report. The application lookup
// resolves the owning user, which keys the blob.
func (h *Handler) handleGetReport(w http.ResponseWriter, r *http.Request) {
	if h.reports == nil {
		writeError(w, http.StatusNotFound, "report storage is not configured")
		return
	}
	appID := r.PathValue("appID")

	app, err := h.store.GetApplication(r.Context(), appID)
	if err != nil {
		h.writeServiceError(w, r, "get application", err)
		return
	}

	data, err := h.reports.GetReport(r.Context(), app.UserID, appID, r.PathValue("reportID"))
	if err != nil {
		h.writeServiceError(w, r, "load report", err)
		return
	}
	if !json.Valid(data) {
		writeError(w, http.StatusInternalServerError, "stored report is corrupt")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

package api

import "net/http"

func (h *Handler) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.analyses.Job(r.PathValue("jobID"))
	if err != nil {
		h.writeServiceError(w, r, "get job", err)
		return
	}
	writeJSON(w, http.StatusOK, job.View())
}

package api

import (
	"net/http"
	"strings"

	"github.com/softwatch/softwatch/pkg/inventory"
)

type createApplicationRequest struct {
	Name        string   `json:"name"`
	Category    string   `json:"category"`
	Description string   `json:"description"`
	Website     string   `json:"website"`
	APIEndpoint string   `json:"api_endpoint"`
	StatusPage  string   `json:"status_page"`
	Tags        []string `json:"tags"`
	Analyze     bool     `json:"analyze"` // enqueue an analysis right away
}

type createApplicationResponse struct {
	Application *inventory.Application `json:"application"`
	JobID       string                 `json:"job_id,omitempty"`
}

func (h *Handler) handleListApplications(w http.ResponseWriter, r *http.Request) {
	apps, err := h.store.ListApplications(r.Context(), r.PathValue("userID"))
	if err != nil {
		h.writeServiceError(w, r, "list applications", err)
		return
	}
	if apps == nil {
		apps = []inventory.Application{}
	}
	writeJSON(w, http.StatusOK, apps)
}

func (h *Handler) handleGetApplication(w http.ResponseWriter, r *http.Request) {
	app, err := h.store.GetApplication(r.Context(), r.PathValue("appID"))
	if err != nil {
		h.writeServiceError(w, r, "get application", err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

func (h *Handler) handleCreateApplication(w http.ResponseWriter, r *http.Request) {
	var req createApplicationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.Category == "" {
		req.Category = "Unknown"
	}

	app, err := h.store.CreateApplication(r.Context(), &inventory.Application{
		UserID:      r.PathValue("userID"),
		Name:        req.Name,
		Category:    req.Category,
		Description: req.Description,
		Website:     strings.TrimSpace(req.Website),
		APIEndpoint: strings.TrimSpace(req.APIEndpoint),
		StatusPage:  strings.TrimSpace(req.StatusPage),
		Tags:        req.Tags,
	})
	if err != nil {
		h.writeServiceError(w, r, "create application", err)
		return
	}

	resp := createApplicationResponse{Application: app}
	if req.Analyze {
		resp.JobID = h.analyses.Enqueue(r.Context(), app.ID, 0).ID
	}
	writeJSON(w, http.StatusCreated, resp)
}

// handleAnalyze queues an analysis and answers 202 with the job, or runs it
// inline and answers 200 with the outcome when ?wait=true.
func (h *Handler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	appID := r.PathValue("appID")

	if r.URL.Query().Get("wait") == "true" {
		out, err := h.analyses.Analyze(r.Context(), appID)
		if err != nil {
			h.writeServiceError(w, r, "analyze application", err)
			return
		}
		writeJSON(w, http.StatusOK, out)
		return
	}

	// Reject unknown applications up front rather than in a failed job.
	if _, err := h.store.GetApplication(r.Context(), appID); err != nil {
		h.writeServiceError(w, r, "analyze application", err)
		return
	}
	job := h.analyses.Enqueue(r.Context(), appID, 0)
	w.Header().Set("Location", "/api/jobs/"+job.ID)
	writeJSON(w, http.StatusAccepted, job.View())
}

func (h *Handler) handlePerformance(w http.ResponseWriter, r *http.Request) {
	samples, err := h.store.ListPerformanceSamples(r.Context(), r.PathValue("appID"), queryLimit(r, 50, 500))
	if err != nil {
		h.writeServiceError(w, r, "list performance samples", err)
		return
	}
	if samples == nil {
		samples = []inventory.PerformanceSample{}
	}
	writeJSON(w, http.StatusOK, samples)
}

func (h *Handler) handleActivity(w http.ResponseWriter, r *http.Request) {
	logs, err := h.store.ListActivity(r.Context(), r.PathValue("userID"), queryLimit(r, 20, 200))
	if err != nil {
		h.writeServiceError(w, r, "list activity", err)
		return
	}
	if logs == nil {
		logs = []inventory.ActivityLog{}
	}
	writeJSON(w, http.StatusOK, logs)
}

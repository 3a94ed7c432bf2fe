package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/softwatch/softwatch/pkg/inventory"
)

// importRequest is the JSON body for POST /api/users/{userID}/imports.
type importRequest struct {
	Platform inventory.Platform `json:"platform"`
	Username string             `json:"username"`
}

type importResponse struct {
	Message      string               `json:"message"`
	Imported     int                  `json:"imported"`
	Repositories []repositoryResponse `json:"repositories"`
}

// autoDetectRequest is the JSON body for POST /api/users/{userID}/auto-detect.
type autoDetectRequest struct {
	Platform inventory.Platform `json:"platform"`
}

type autoDetectResponse struct {
	Message      string                  `json:"message"`
	Applications []inventory.Application `json:"applications"`
}

func (h *Handler) handleImport(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userID")

	var req importRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" {
		writeError(w, http.StatusBadRequest, "username is required")
		return
	}
	if !req.Platform.Valid() {
		writeError(w, http.StatusBadRequest, "platform must be github or gitlab")
		return
	}

	res, err := h.importer.Sync(r.Context(), userID, req.Platform, req.Username)
	if err != nil {
		h.writeServiceError(w, r, "import repositories", err)
		return
	}
	h.cache.Invalidate(userID)

	resp := importResponse{Imported: res.Imported, Repositories: []repositoryResponse{}}
	for i := range res.Repositories {
		resp.Repositories = append(resp.Repositories, repositoryToResponse(&res.Repositories[i]))
	}
	noun := "repositories"
	if req.Platform == inventory.PlatformGitLab {
		noun = "projects"
	}
	resp.Message = fmt.Sprintf("Successfully imported %d %s", res.Imported, noun)
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleAutoDetect(w http.ResponseWriter, r *http.Request) {
	var req autoDetectRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	apps, err := h.importer.AutoDetect(r.Context(), r.PathValue("userID"), req.Platform)
	if err != nil {
		h.writeServiceError(w, r, "auto-detect applications", err)
		return
	}
	if apps == nil {
		apps = []inventory.Application{}
	}

	msg := "No new applications detected"
	if len(apps) > 0 {
		msg = fmt.Sprintf("Added %d applications", len(apps))
	}
	writeJSON(w, http.StatusOK, autoDetectResponse{Message: msg, Applications: apps})
}

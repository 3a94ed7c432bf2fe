package api

import (
	"net/http"

	"github.com/softwatch/softwatch/pkg/inventory"
)

type repositoryResponse struct {
	ID           string             `json:"id"`
	Platform     inventory.Platform `json:"platform"`
	Name         string             `json:"name"`
	URL          string             `json:"url"`
	Description  string             `json:"description,omitempty"`
	Language     string             `json:"language,omitempty"`
	Stars        int                `json:"stars"`
	Forks        int                `json:"forks"`
	LastCommitAt string             `json:"last_commit_at,omitempty"`
}

func repositoryToResponse(r *inventory.Repository) repositoryResponse {
	resp := repositoryResponse{
		ID:          r.ID,
		Platform:    r.Platform,
		Name:        r.Name,
		URL:         r.URL,
		Description: r.Description,
		Language:    r.LanguageOrEmpty(),
		Stars:       r.Stars,
		Forks:       r.Forks,
	}
	if !r.LastCommitAt.IsZero() {
		resp.LastCommitAt = r.LastCommitAt.UTC().Format("2006-01-02T15:04:05Z")
	}
	return resp
}

// handleListRepositories lists a user's imported repositories, optionally
// filtered by ?platform=.
func (h *Handler) handleListRepositories(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userID")

	repos, ok := h.cache.Get(userID)
	if !ok {
		var err error
		repos, err = h.store.ListRepositories(r.Context(), userID)
		if err != nil {
			h.writeServiceError(w, r, "list repositories", err)
			return
		}
		h.cache.Put(userID, repos)
	}

	platform := inventory.Platform(r.URL.Query().Get("platform"))
	if platform != "" && !platform.Valid() {
		writeError(w, http.StatusBadRequest, "unknown platform "+string(platform))
		return
	}

	result := []repositoryResponse{}
	for i := range repos {
		if platform != "" && repos[i].Platform != platform {
			continue
		}
		result = append(result, repositoryToResponse(&repos[i]))
	}
	writeJSON(w, http.StatusOK, result)
}

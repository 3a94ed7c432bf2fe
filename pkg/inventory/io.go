package inventory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// LoadRepositories reads a JSON array of repositories from disk.
func LoadRepositories(path string) ([]Repository, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading repositories: %w", err)
	}

	var repos []Repository
	if err := json.Unmarshal(data, &repos); err != nil {
		return nil, fmt.Errorf("unmarshaling repositories: %w", err)
	}

	return repos, nil
}

// SaveRepositories writes repositories to disk as indented JSON.
func SaveRepositories(path string, repos []Repository) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating directory for repositories: %w", err)
	}

	data, err := json.MarshalIndent(repos, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling repositories: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing repositories: %w", err)
	}

	return nil
}

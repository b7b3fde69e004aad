package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ArtifactStore provides file-based storage for export artifacts (PDF
// itineraries and their text fallbacks). Files are served back under the
// /outputs/ URL prefix.
type ArtifactStore struct {
	basePath string
}

// NewArtifactStore creates a new ArtifactStore and ensures the base directory exists.
func NewArtifactStore(basePath string) (*ArtifactStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create outputs directory %s: %w", basePath, err)
	}
	return &ArtifactStore{basePath: basePath}, nil
}

// BasePath returns the directory artifacts are written to.
func (s *ArtifactStore) BasePath() string {
	return s.basePath
}

// sanitizeName makes a session-derived name safe for filenames.
func sanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		}
		return '-'
	}, name)
}

// Save writes an artifact and returns its public URL path.
func (s *ArtifactStore) Save(name string, data []byte) (string, error) {
	name = sanitizeName(name)
	filePath := filepath.Join(s.basePath, name)
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write artifact file: %w", err)
	}
	return "/outputs/" + name, nil
}

// Load reads an artifact back by name.
func (s *ArtifactStore) Load(name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.basePath, sanitizeName(name)))
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact file: %w", err)
	}
	return data, nil
}

// Exists checks if an artifact file exists.
func (s *ArtifactStore) Exists(name string) bool {
	_, err := os.Stat(filepath.Join(s.basePath, sanitizeName(name)))
	return !os.IsNotExist(err)
}

// Remove deletes every artifact belonging to a session.
func (s *ArtifactStore) Remove(sessionPrefix string) error {
	pattern := filepath.Join(s.basePath, sanitizeName(sessionPrefix)+"*")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return fmt.Errorf("failed to glob artifact files: %w", err)
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil {
			return fmt.Errorf("failed to remove %s: %w", m, err)
		}
	}
	return nil
}

package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestArtifactStore(t *testing.T) {
	tempDir := t.TempDir()

	store, err := NewArtifactStore(tempDir)
	if err != nil {
		t.Fatalf("Failed to create ArtifactStore: %v", err)
	}

	name := "itinerary_abc12345.pdf"
	payload := []byte("%PDF-1.4 test")

	t.Run("Exists-False", func(t *testing.T) {
		if store.Exists(name) {
			t.Errorf("Expected artifact '%s' to not exist, but it does", name)
		}
	})

	t.Run("Save", func(t *testing.T) {
		url, err := store.Save(name, payload)
		if err != nil {
			t.Fatalf("Failed to save artifact: %v", err)
		}
		if url != "/outputs/"+name {
			t.Errorf("Expected URL '/outputs/%s', got '%s'", name, url)
		}
		if _, err := os.Stat(filepath.Join(tempDir, name)); os.IsNotExist(err) {
			t.Errorf("Expected file to be created, but it wasn't")
		}
	})

	t.Run("Load", func(t *testing.T) {
		data, err := store.Load(name)
		if err != nil {
			t.Fatalf("Failed to load artifact: %v", err)
		}
		if string(data) != string(payload) {
			t.Errorf("Loaded payload mismatch: %q", data)
		}
	})

	t.Run("SanitizesNames", func(t *testing.T) {
		url, err := store.Save("week/end plan.txt", []byte("x"))
		if err != nil {
			t.Fatalf("Failed to save artifact: %v", err)
		}
		if url != "/outputs/week-end-plan.txt" {
			t.Errorf("Expected sanitized URL, got '%s'", url)
		}
	})

	t.Run("Remove", func(t *testing.T) {
		if err := store.Remove("itinerary_abc12345"); err != nil {
			t.Fatalf("Failed to remove artifacts: %v", err)
		}
		if store.Exists(name) {
			t.Errorf("Expected artifact '%s' to be removed, but it exists", name)
		}
	})

	t.Run("Load-NotFound", func(t *testing.T) {
		if _, err := store.Load("missing.pdf"); err == nil {
			t.Fatal("Expected an error for loading a missing artifact, got nil")
		}
	})
}

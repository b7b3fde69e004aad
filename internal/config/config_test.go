package config

import (
	"testing"
	"time"
)

func TestNewFromEnv(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		cfg, err := NewFromEnv()
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if cfg.HTTPPort != "8080" {
			t.Errorf("Expected default HTTPPort '8080', got '%s'", cfg.HTTPPort)
		}
		if cfg.DBPath != "data/trip-planner.db" {
			t.Errorf("Expected default DBPath, got '%s'", cfg.DBPath)
		}
		if cfg.VerifyConcurrency != 4 {
			t.Errorf("Expected default VerifyConcurrency 4, got %d", cfg.VerifyConcurrency)
		}
		if cfg.VerifyTimeout != 20*time.Second {
			t.Errorf("Expected default VerifyTimeout 20s, got %v", cfg.VerifyTimeout)
		}
	})

	t.Run("Overrides", func(t *testing.T) {
		t.Setenv("HTTP_PORT", "9090")
		t.Setenv("SOCIAL_API_URL", "http://social.test")
		t.Setenv("GEMINI_API_KEY", "gemini_key")
		t.Setenv("VERIFY_CONCURRENCY", "8")
		t.Setenv("VERIFY_TIMEOUT_SECONDS", "5")

		cfg, err := NewFromEnv()
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if cfg.HTTPPort != "9090" {
			t.Errorf("Expected HTTPPort '9090', got '%s'", cfg.HTTPPort)
		}
		if cfg.SocialAPIURL != "http://social.test" {
			t.Errorf("Expected SocialAPIURL 'http://social.test', got '%s'", cfg.SocialAPIURL)
		}
		if cfg.GeminiAPIKey != "gemini_key" {
			t.Errorf("Expected GeminiAPIKey 'gemini_key', got '%s'", cfg.GeminiAPIKey)
		}
		if cfg.VerifyConcurrency != 8 {
			t.Errorf("Expected VerifyConcurrency 8, got %d", cfg.VerifyConcurrency)
		}
		if cfg.VerifyTimeout != 5*time.Second {
			t.Errorf("Expected VerifyTimeout 5s, got %v", cfg.VerifyTimeout)
		}
	})

	t.Run("InvalidConcurrency", func(t *testing.T) {
		t.Setenv("VERIFY_CONCURRENCY", "zero")

		_, err := NewFromEnv()
		if err == nil {
			t.Fatal("Expected an error for invalid VERIFY_CONCURRENCY, got nil")
		}
	})
}

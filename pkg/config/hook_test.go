package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestResolveHookSettings_Defaults(t *testing.T) {
	s := ResolveHookSettings([]string{filepath.Join(t.TempDir(), "nope.json")}, nil)

	if s.WebhookURL != DefaultWebhookURL {
		t.Errorf("WebhookURL = %s, want %s", s.WebhookURL, DefaultWebhookURL)
	}
	if s.Secret != DefaultSecret {
		t.Errorf("Secret = %s, want %s", s.Secret, DefaultSecret)
	}
	if s.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", s.Timeout)
	}
	if s.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", s.MaxRetries)
	}
	if s.RetryDelay != 2*time.Second {
		t.Errorf("RetryDelay = %v, want 2s", s.RetryDelay)
	}
	if s.Debug {
		t.Error("Debug should default to false")
	}
}

func TestResolveHookSettings_EnvOverrides(t *testing.T) {
	t.Setenv("WHM2BUNNY_WEBHOOK_URL", "https://hooks.example.com/whm")
	t.Setenv("WHM2BUNNY_TIMEOUT", "5")
	t.Setenv("WHM2BUNNY_DEBUG", "true")

	s := ResolveHookSettings([]string{filepath.Join(t.TempDir(), "nope.json")}, nil)

	if s.WebhookURL != "https://hooks.example.com/whm" {
		t.Errorf("WebhookURL = %s", s.WebhookURL)
	}
	if s.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", s.Timeout)
	}
	if !s.Debug {
		t.Error("Debug should be true")
	}
}

func TestResolveHookSettings_FileOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	content := `{"webhook_url":"https://relay.example.com/hook","max_retries":5,"unknown_key":"ignored"}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	t.Setenv("WHM2BUNNY_SECRET", "env-secret")

	s := ResolveHookSettings([]string{path}, nil)

	if s.WebhookURL != "https://relay.example.com/hook" {
		t.Errorf("WebhookURL = %s, file should override default", s.WebhookURL)
	}
	if s.MaxRetries != 5 {
		t.Errorf("MaxRetries = %d, want 5", s.MaxRetries)
	}
	// Key absent from file keeps the environment value.
	if s.Secret != "env-secret" {
		t.Errorf("Secret = %s, want env-secret", s.Secret)
	}
	if s.RetryDelay != DefaultRetryDelay {
		t.Errorf("RetryDelay = %v, want default", s.RetryDelay)
	}
}

func TestResolveHookSettings_MalformedFileSkipped(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.json")
	good := filepath.Join(dir, "good.json")
	if err := os.WriteFile(bad, []byte("{not json"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(good, []byte(`{"secret":"file-secret"}`), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	s := ResolveHookSettings([]string{bad, good}, nil)

	if s.Secret != "file-secret" {
		t.Errorf("Secret = %s, resolution should fall through to next candidate", s.Secret)
	}
}

func TestResolveHookSettings_MinimumRetries(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{"max_retries":0}`), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	s := ResolveHookSettings([]string{path}, nil)
	if s.MaxRetries != 1 {
		t.Errorf("MaxRetries = %d, want clamped to 1", s.MaxRetries)
	}
}

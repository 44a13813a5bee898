package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeWatched(t *testing.T, path string, retries int) {
	t.Helper()
	content := fmt.Sprintf("pipelines:\n  billing-api:\n    retry:\n      max_retries: %d\n", retries)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resilience.yaml")
	writeWatched(t, path, 1)

	updates := make(chan *Config, 4)
	w, err := Watch(path, func(cfg *Config) {
		updates <- cfg
	})
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer w.Close()

	writeWatched(t, path, 5)

	select {
	case cfg := <-updates:
		if got := cfg.Pipelines["billing-api"].Retry.MaxRetries; got != 5 {
			t.Errorf("expected reloaded max_retries=5, got %d", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}

func TestWatch_KeepsOldConfigOnParseError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resilience.yaml")
	writeWatched(t, path, 1)

	updates := make(chan *Config, 4)
	errs := make(chan error, 4)
	w, err := Watch(path,
		func(cfg *Config) { updates <- cfg },
		WithErrorHandler(func(err error) { errs <- err }),
	)
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(path, []byte("pipelines: ["), 0o600); err != nil {
		t.Fatalf("write broken config: %v", err)
	}

	select {
	case err := <-errs:
		if err == nil {
			t.Error("expected a parse error")
		}
	case cfg := <-updates:
		t.Fatalf("broken file should not produce an update, got %+v", cfg)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for error callback")
	}
}

func TestWatch_RequiresInitialLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.yaml")
	if _, err := Watch(path, func(*Config) {}); err == nil {
		t.Error("expected error when the file does not load")
	}
}

func TestWatch_RequiresCallback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resilience.yaml")
	writeWatched(t, path, 1)

	if _, err := Watch(path, nil); err == nil {
		t.Error("expected error for nil callback")
	}
}

func TestWatcher_CloseIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resilience.yaml")
	writeWatched(t, path, 1)

	w, err := Watch(path, func(*Config) {})
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}

	if err := w.Close(); err != nil {
		t.Errorf("first Close: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

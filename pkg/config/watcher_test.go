package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/buttond/buttond/pkg/telemetry"
)

func TestWatcher_SignalsConfigChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "buttond.yaml")
	if err := os.WriteFile(path, []byte("global: {}\n"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	w, err := NewWatcher(path, telemetry.NopLogger())
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(path, []byte("global: {poll_interval_ms: 100}\n"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	select {
	case <-w.Changes():
	case <-time.After(5 * time.Second):
		t.Fatal("no change signal after rewriting the config file")
	}
}

func TestWatcher_IgnoresUnrelatedFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "buttond.yaml")
	if err := os.WriteFile(path, []byte("global: {}\n"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	w, err := NewWatcher(path, telemetry.NopLogger())
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	defer w.Close()

	other := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(other, []byte("unrelated"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	select {
	case <-w.Changes():
		t.Fatal("unrelated file change produced a signal")
	case <-time.After(2 * watchDebounce):
	}
}

package config

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func TestNewWatcher(t *testing.T) {
	t.Run("valid config path", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.yaml")
		writeConfig(t, configPath, "app:\n  name: test\n")

		watcher, err := NewWatcher(configPath, NewLoader())
		if err != nil {
			t.Fatalf("NewWatcher failed: %v", err)
		}
		defer watcher.Stop()

		if watcher.ConfigPath() != configPath {
			t.Errorf("expected config path %s, got %s", configPath, watcher.ConfigPath())
		}
		if watcher.IsRunning() {
			t.Error("expected watcher not to be running before Watch")
		}
	})

	t.Run("empty config path", func(t *testing.T) {
		if _, err := NewWatcher("", NewLoader()); err == nil {
			t.Fatal("expected error for empty config path")
		}
	})

	t.Run("with debounce option", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.yaml")
		writeConfig(t, configPath, "app:\n  name: test\n")

		watcher, err := NewWatcher(configPath, nil, WithDebounce(100*time.Millisecond))
		if err != nil {
			t.Fatalf("NewWatcher failed: %v", err)
		}
		defer watcher.Stop()

		if watcher.debounce != 100*time.Millisecond {
			t.Errorf("expected debounce 100ms, got %v", watcher.debounce)
		}
	})
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, configPath, "log:\n  level: info\n")

	watcher, err := NewWatcher(configPath, NewLoader(), WithDebounce(20*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	defer watcher.Stop()

	levels := make(chan string, 4)
	watcher.OnChange(func(cfg *Config) {
		levels <- cfg.Log.Level
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = watcher.Watch(ctx) }()

	deadline := time.Now().Add(time.Second)
	for !watcher.IsRunning() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	// give fsnotify a moment to register the directory
	time.Sleep(50 * time.Millisecond)

	writeConfig(t, configPath, "log:\n  level: debug\n")

	select {
	case level := <-levels:
		if level != "debug" {
			t.Errorf("expected reloaded level debug, got %s", level)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}

func TestWatcher_InvalidReloadKeepsCallbacksQuiet(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, configPath, "log:\n  level: info\n")

	watcher, err := NewWatcher(configPath, NewLoader())
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	defer watcher.Stop()

	var calls atomic.Int32
	watcher.OnChange(func(*Config) { calls.Add(1) })

	writeConfig(t, configPath, "log:\n  level: loud\n")
	watcher.reloadConfig()
	if calls.Load() != 0 {
		t.Fatalf("expected no callbacks for invalid config, got %d", calls.Load())
	}

	writeConfig(t, configPath, "log:\n  level: warn\n")
	watcher.reloadConfig()
	if calls.Load() != 1 {
		t.Fatalf("expected one callback, got %d", calls.Load())
	}
}

func TestWatcher_CallbackPanicIsRecovered(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, configPath, "app:\n  name: test\n")

	watcher, err := NewWatcher(configPath, NewLoader())
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	defer watcher.Stop()

	var after atomic.Bool
	watcher.OnChange(func(*Config) { panic("boom") })
	watcher.OnChange(func(*Config) { after.Store(true) })

	watcher.reloadConfig()
	if !after.Load() {
		t.Fatal("expected later callbacks to run after a panic")
	}
}

func TestWatcher_Stop(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, configPath, "app:\n  name: test\n")

	watcher, err := NewWatcher(configPath, NewLoader())
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- watcher.Watch(context.Background()) }()

	deadline := time.Now().Add(time.Second)
	for !watcher.IsRunning() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	if err := watcher.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	// second stop is a no-op
	if err := watcher.Stop(); err != nil {
		t.Fatalf("second Stop() error = %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected nil from Watch after Stop, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Watch did not return after Stop")
	}
}

func TestWatcher_AlreadyRunning(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, configPath, "app:\n  name: test\n")

	watcher, err := NewWatcher(configPath, NewLoader())
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	defer watcher.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = watcher.Watch(ctx) }()

	deadline := time.Now().Add(time.Second)
	for !watcher.IsRunning() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if err := watcher.Watch(ctx); err == nil {
		t.Fatal("expected error when watching twice")
	}
}

func TestHotReloadableConfig(t *testing.T) {
	cfg := DefaultConfig()
	a := ExtractHotReloadable(cfg)
	b := ExtractHotReloadable(cfg)
	if a.Changed(b) {
		t.Error("expected identical configs to be unchanged")
	}

	cfg.Log.Level = "debug"
	c := ExtractHotReloadable(cfg)
	if !a.Changed(c) {
		t.Error("expected log level change to be detected")
	}
	if c.LogLevel != "debug" {
		t.Errorf("expected debug, got %s", c.LogLevel)
	}

	cfg.Server.RateLimit.Burst = 1
	if !c.Changed(ExtractHotReloadable(cfg)) {
		t.Error("expected rate limit change to be detected")
	}
}

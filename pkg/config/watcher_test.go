// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcherDetectsChanges(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	initial := `backend:
  base_url: https://tws-test.example.com
`
	if err := os.WriteFile(configPath, []byte(initial), 0644); err != nil {
		t.Fatalf("failed to write initial config: %v", err)
	}

	watcher, err := NewWatcher([]string{configPath}, WithWatchInterval(50*time.Millisecond))
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}

	changes := make(chan *Config, 1)
	watcher.OnChange(func(cfg *Config) {
		changes <- cfg
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	watcher.Start(ctx)
	defer watcher.Stop()

	cfg := watcher.Config()
	if cfg.Backend.BaseURL != "https://tws-test.example.com" {
		t.Errorf("expected base url, got %q", cfg.Backend.BaseURL)
	}

	time.Sleep(100 * time.Millisecond)

	updated := `backend:
  base_url: https://tws-updated.example.com
`
	if err := os.WriteFile(configPath, []byte(updated), 0644); err != nil {
		t.Fatalf("failed to write updated config: %v", err)
	}

	select {
	case newCfg := <-changes:
		if newCfg.Backend.BaseURL != "https://tws-updated.example.com" {
			t.Errorf("expected updated base url, got %q", newCfg.Backend.BaseURL)
		}
	case <-time.After(500 * time.Millisecond):
		t.Error("timeout waiting for config change notification")
	}
}

func TestWatcherMultipleListeners(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	initial := `backend:
  base_url: https://tws-v1.example.com
`
	if err := os.WriteFile(configPath, []byte(initial), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	watcher, err := NewWatcher([]string{configPath}, WithWatchInterval(50*time.Millisecond))
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}

	count1 := 0
	count2 := 0
	watcher.OnChange(func(*Config) { count1++ })
	watcher.OnChange(func(*Config) { count2++ })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	watcher.Start(ctx)
	defer watcher.Stop()

	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(configPath, []byte(`backend:
  base_url: https://tws-v2.example.com
`), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	time.Sleep(200 * time.Millisecond)

	if count1 != 1 || count2 != 1 {
		t.Errorf("expected both listeners called once, got count1=%d, count2=%d", count1, count2)
	}
}

func TestWatcherStops(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	if err := os.WriteFile(configPath, []byte(`backend: {}`), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	watcher, err := NewWatcher([]string{configPath}, WithWatchInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}

	ctx := context.Background()
	watcher.Start(ctx)

	done := make(chan struct{})
	go func() {
		watcher.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Error("watcher.Stop() did not complete in time")
	}
}

func TestReloadableConfig(t *testing.T) {
	cfg1 := &Config{
		Backend: BackendConfig{BaseURL: "https://tws-a.example.com"},
	}
	cfg2 := &Config{
		Backend: BackendConfig{BaseURL: "https://tws-b.example.com"},
	}

	rc := NewReloadableConfig(cfg1)

	if rc.Backend().BaseURL != "https://tws-a.example.com" {
		t.Errorf("expected tws-a, got %q", rc.Backend().BaseURL)
	}

	rc.Update(cfg2)

	if rc.Backend().BaseURL != "https://tws-b.example.com" {
		t.Errorf("expected tws-b, got %q", rc.Backend().BaseURL)
	}

	if rc.Get().Backend.BaseURL != "https://tws-b.example.com" {
		t.Errorf("expected tws-b from Get(), got %q", rc.Get().Backend.BaseURL)
	}
}

func TestWatchConfigWithProfiles(t *testing.T) {
	tmpDir := t.TempDir()

	basePath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(basePath, []byte(`backend:
  base_url: https://tws-base.example.com
`), 0644); err != nil {
		t.Fatalf("failed to write base config: %v", err)
	}

	devPath := filepath.Join(tmpDir, "config.dev.yaml")
	if err := os.WriteFile(devPath, []byte(`backend:
  base_url: https://tws-dev.example.com
`), 0644); err != nil {
		t.Fatalf("failed to write dev config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	watcher, cfg, err := WatchConfig(ctx, basePath, WithWatchInterval(50*time.Millisecond))
	if err != nil {
		t.Fatalf("failed to watch config: %v", err)
	}
	defer watcher.Stop()

	if cfg.Backend.BaseURL != "https://tws-base.example.com" {
		t.Errorf("expected base url, got %q", cfg.Backend.BaseURL)
	}
}

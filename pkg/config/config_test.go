package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Cache.L1MaxSize != 10000 {
		t.Errorf("expected default l1 max size 10000, got %d", cfg.Cache.L1MaxSize)
	}
	if cfg.Graph.MaxDepth != 5 {
		t.Errorf("expected default graph max depth 5, got %d", cfg.Graph.MaxDepth)
	}
	if cfg.Poller.FailureThreshold != 3 {
		t.Errorf("expected default poller failure threshold 3, got %d", cfg.Poller.FailureThreshold)
	}
}

func TestLoadEnv(t *testing.T) {
	os.Setenv("TWSGW_BACKEND_BASE_URL", "https://tws.example.com")
	defer os.Unsetenv("TWSGW_BACKEND_BASE_URL")

	k.Delete("backend.base_url")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Backend.BaseURL != "https://tws.example.com" {
		t.Errorf("expected base url from env, got %s", cfg.Backend.BaseURL)
	}
}

func TestLoadWithProfile(t *testing.T) {
	tmpDir := t.TempDir()

	baseConfig := `
backend:
  base_url: "https://tws-base.example.com"
log:
  level: "info"
`
	basePath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(basePath, []byte(baseConfig), 0644); err != nil {
		t.Fatalf("failed to write base config: %v", err)
	}

	devConfig := `
backend:
  base_url: "https://tws-dev.example.com"
log:
  level: "debug"
`
	devPath := filepath.Join(tmpDir, "config.dev.yaml")
	if err := os.WriteFile(devPath, []byte(devConfig), 0644); err != nil {
		t.Fatalf("failed to write dev config: %v", err)
	}

	prodConfig := `
backend:
  base_url: "https://tws-prod.example.com"
log:
  level: "warn"
`
	prodPath := filepath.Join(tmpDir, "config.prod.yaml")
	if err := os.WriteFile(prodPath, []byte(prodConfig), 0644); err != nil {
		t.Fatalf("failed to write prod config: %v", err)
	}

	tests := []struct {
		name         string
		profile      string
		wantBaseURL  string
		wantLogLevel string
	}{
		{
			name:         "no profile - base only",
			profile:      "",
			wantBaseURL:  "https://tws-base.example.com",
			wantLogLevel: "info",
		},
		{
			name:         "dev profile",
			profile:      "dev",
			wantBaseURL:  "https://tws-dev.example.com",
			wantLogLevel: "debug",
		},
		{
			name:         "prod profile",
			profile:      "prod",
			wantBaseURL:  "https://tws-prod.example.com",
			wantLogLevel: "warn",
		},
		{
			name:         "nonexistent profile - falls back to base",
			profile:      "staging",
			wantBaseURL:  "https://tws-base.example.com",
			wantLogLevel: "info",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := LoadWithProfile(basePath, tc.profile)
			if err != nil {
				t.Fatalf("LoadWithProfile failed: %v", err)
			}

			if cfg.Backend.BaseURL != tc.wantBaseURL {
				t.Errorf("base url: got %s, want %s", cfg.Backend.BaseURL, tc.wantBaseURL)
			}
			if cfg.Log.Level != tc.wantLogLevel {
				t.Errorf("log level: got %s, want %s", cfg.Log.Level, tc.wantLogLevel)
			}
		})
	}
}

func TestLoadWithCLIProfile(t *testing.T) {
	tmpDir := t.TempDir()

	baseConfig := `
backend:
  base_url: "https://tws-base.example.com"
`
	basePath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(basePath, []byte(baseConfig), 0644); err != nil {
		t.Fatalf("failed to write base config: %v", err)
	}

	devConfig := `
backend:
  base_url: "https://tws-dev.example.com"
`
	devPath := filepath.Join(tmpDir, "config.dev.yaml")
	if err := os.WriteFile(devPath, []byte(devConfig), 0644); err != nil {
		t.Fatalf("failed to write dev config: %v", err)
	}

	tests := []struct {
		name        string
		args        []string
		wantBaseURL string
	}{
		{
			name:        "profile flag",
			args:        []string{"--config", basePath, "--profile", "dev"},
			wantBaseURL: "https://tws-dev.example.com",
		},
		{
			name:        "env flag alias",
			args:        []string{"--config", basePath, "--env", "dev"},
			wantBaseURL: "https://tws-dev.example.com",
		},
		{
			name:        "profile with equals",
			args:        []string{"--config=" + basePath, "--profile=dev"},
			wantBaseURL: "https://tws-dev.example.com",
		},
		{
			name:        "env with equals",
			args:        []string{"--config=" + basePath, "--env=dev"},
			wantBaseURL: "https://tws-dev.example.com",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := LoadWithCLI(tc.args)
			if err != nil {
				t.Fatalf("LoadWithCLI failed: %v", err)
			}

			if cfg.Backend.BaseURL != tc.wantBaseURL {
				t.Errorf("base url: got %s, want %s", cfg.Backend.BaseURL, tc.wantBaseURL)
			}
		})
	}
}

func TestLoadWithCLITelemetryHeaders(t *testing.T) {
	args := []string{
		"--set", "telemetry.exporter=otlp",
		"--set", "telemetry.otlp_endpoint=http://localhost:4317",
		"--set", "telemetry.otlp_headers.x-api-key=secret-token",
		"--set", "telemetry.otlp_headers.x-org-id=org-123",
	}

	cfg, err := LoadWithCLI(args)
	if err != nil {
		t.Fatalf("LoadWithCLI failed: %v", err)
	}

	if cfg.Telemetry.Exporter != "otlp" {
		t.Errorf("expected exporter otlp, got %s", cfg.Telemetry.Exporter)
	}
	if cfg.Telemetry.OTLPEndpoint != "http://localhost:4317" {
		t.Errorf("expected endpoint, got %s", cfg.Telemetry.OTLPEndpoint)
	}

	headers := cfg.Telemetry.OTLPHeaders
	if headers["x-api-key"] != "secret-token" {
		t.Errorf("expected x-api-key=secret-token, got %s", headers["x-api-key"])
	}
	if headers["x-org-id"] != "org-123" {
		t.Errorf("expected x-org-id=org-123, got %s", headers["x-org-id"])
	}
}

func TestLoadWithCLITelemetryBasicAuth(t *testing.T) {
	args := []string{
		"--set", "telemetry.exporter=otlp",
		"--set", "telemetry.otlp_user=admin",
		"--set", "telemetry.otlp_token=password123",
	}

	cfg, err := LoadWithCLI(args)
	if err != nil {
		t.Fatalf("LoadWithCLI failed: %v", err)
	}

	if cfg.Telemetry.OTLPUser != "admin" {
		t.Errorf("expected user admin, got %s", cfg.Telemetry.OTLPUser)
	}
	if cfg.Telemetry.OTLPToken != "password123" {
		t.Errorf("expected token password123, got %s", cfg.Telemetry.OTLPToken)
	}
}

func TestLoadWithCLIBreakerOverride(t *testing.T) {
	args := []string{
		"--set", "circuit_breakers.backend.failure_threshold=10",
		"--set", "circuit_breakers.backend.recovery_timeout_seconds=60",
	}

	cfg, err := LoadWithCLI(args)
	if err != nil {
		t.Fatalf("LoadWithCLI failed: %v", err)
	}

	override, ok := cfg.CircuitBreakers["backend"]
	if !ok {
		t.Fatalf("expected backend circuit breaker override to be set")
	}
	if override.FailureThreshold != 10 {
		t.Errorf("expected failure threshold 10, got %d", override.FailureThreshold)
	}
	if override.RecoveryTimeoutSeconds != 60 {
		t.Errorf("expected recovery timeout 60, got %d", override.RecoveryTimeoutSeconds)
	}
}

func TestProfileConfigPath(t *testing.T) {
	tmpDir := t.TempDir()

	devPath := filepath.Join(tmpDir, "config.dev.yaml")
	if err := os.WriteFile(devPath, []byte("test"), 0644); err != nil {
		t.Fatalf("failed to create dev config: %v", err)
	}

	basePath := filepath.Join(tmpDir, "config.yaml")

	tests := []struct {
		name     string
		base     string
		profile  string
		wantPath string
	}{
		{
			name:     "existing profile",
			base:     basePath,
			profile:  "dev",
			wantPath: devPath,
		},
		{
			name:     "nonexistent profile",
			base:     basePath,
			profile:  "prod",
			wantPath: "",
		},
		{
			name:     "empty profile",
			base:     basePath,
			profile:  "",
			wantPath: "",
		},
		{
			name:     "empty base",
			base:     "",
			profile:  "dev",
			wantPath: "",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := profileConfigPath(tc.base, tc.profile)
			if got != tc.wantPath {
				t.Errorf("profileConfigPath(%q, %q) = %q, want %q", tc.base, tc.profile, got, tc.wantPath)
			}
		})
	}
}

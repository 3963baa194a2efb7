// Package config loads and normalizes the gateway's runtime configuration.
// The HTTP router, JWT/CSP middleware, and startup validators that consume
// this package are out of scope for the core described by DESIGN.md; this
// package only owns turning files/env/CLI overrides into the typed Config
// every core component is constructed from.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is the root configuration for the gateway.
type Config struct {
	Log             LogConfig             `koanf:"log"`
	Backend         BackendConfig         `koanf:"backend"`
	Cache           CacheConfig           `koanf:"cache"`
	Graph           GraphConfig           `koanf:"graph"`
	Poller          PollerConfig          `koanf:"poller"`
	Health          HealthConfig          `koanf:"health"`
	LLM             LLMConfig             `koanf:"llm"`
	CircuitBreakers map[string]BreakerOverride `koanf:"circuit_breakers"`
	Telemetry       TelemetryConfig       `koanf:"telemetry"`
}

// LogConfig controls logging output.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json, text
}

// BackendConfig addresses the workload-automation REST backend.
type BackendConfig struct {
	BaseURL        string        `koanf:"base_url"`
	Username       string        `koanf:"username"`
	Password       string        `koanf:"password"`
	EngineName     string        `koanf:"engine_name"`
	EngineOwner    string        `koanf:"engine_owner"`
	TimeoutSeconds int           `koanf:"timeout_seconds"`
	Timeout        time.Duration `koanf:"-"`
}

// CacheConfig configures the L1+L2 cache hierarchy.
type CacheConfig struct {
	L1MaxSize               int    `koanf:"l1_max_size"`
	L1NumShards              int    `koanf:"l1_num_shards"`
	L2DefaultTTLSeconds      int    `koanf:"l2_default_ttl_seconds"`
	L2CleanupIntervalSeconds int    `koanf:"l2_cleanup_interval_seconds"`
	KeyPrefix                string `koanf:"key_prefix"`
	EnableEncryption         bool   `koanf:"enable_encryption"`
}

// GraphConfig bounds the dependency-graph service.
type GraphConfig struct {
	TTLSeconds int `koanf:"ttl_seconds"`
	MaxDepth   int `koanf:"max_depth"`
}

// PollerConfig bounds the proactive poller.
type PollerConfig struct {
	IntervalSeconds         int `koanf:"interval_seconds"`
	IterationTimeoutSeconds int `koanf:"iteration_timeout_seconds"`
	MaxBackoffSeconds       int `koanf:"max_backoff_seconds"`
	FailureThreshold        int `koanf:"failure_threshold"`
}

// HealthConfig bounds the health orchestrator.
type HealthConfig struct {
	ComponentTimeoutSeconds int     `koanf:"component_timeout_seconds"`
	TimeoutSeconds          int     `koanf:"timeout_seconds"`
	MaxHistoryEntries       int     `koanf:"max_history_entries"`
	RetentionDays           int     `koanf:"retention_days"`
	DBConnThresholdPercent  float64 `koanf:"db_conn_threshold_percent"`
}

// LLMConfig configures the fallback chain's primary model plus ordered
// fallbacks.
type LLMConfig struct {
	Primary               ProviderConfig   `koanf:"primary"`
	FallbackChain         []ProviderConfig `koanf:"fallback_chain"`
	DefaultTimeoutSeconds int              `koanf:"default_timeout_seconds"`
	MaxRetriesPerProvider int              `koanf:"max_retries_per_provider"`
	RetryBaseDelayMs      int              `koanf:"retry_base_delay_ms"`
}

// ProviderConfig names one provider in the fallback chain.
type ProviderConfig struct {
	Name           string `koanf:"name"`
	Provider       string `koanf:"provider"` // openai, anthropic, ollama
	Model          string `koanf:"model"`
	Endpoint       string `koanf:"endpoint"`
	APIKey         string `koanf:"api_key"`
	TimeoutSeconds int    `koanf:"timeout_seconds"`
}

// BreakerOverride overrides one named circuit breaker's defaults.
type BreakerOverride struct {
	FailureThreshold       int `koanf:"failure_threshold"`
	SuccessThreshold       int `koanf:"success_threshold"`
	RecoveryTimeoutSeconds int `koanf:"recovery_timeout_seconds"`
}

// TelemetryConfig configures OpenTelemetry exporters, carried over from the
// teacher's telemetry wiring unchanged.
type TelemetryConfig struct {
	Exporter           string            `koanf:"exporter"` // stdout, otlp
	OTLPEndpoint       string            `koanf:"otlp_endpoint"`
	OTLPInsecure       bool              `koanf:"otlp_insecure"`
	OTLPTimeoutSeconds int               `koanf:"otlp_timeout_seconds"`
	OTLPHeaders        map[string]string `koanf:"otlp_headers"`
	OTLPUser           string            `koanf:"otlp_user"`
	OTLPToken          string            `koanf:"otlp_token"`
}

var k = koanf.New(".")

// Load resolves configuration from defaults, files, and environment
// variables.
func Load(path string) (*Config, error) {
	return loadWithOverrides(path, "", nil)
}

// LoadWithProfile resolves configuration with environment-specific
// layering: base file, then profile override file merged on top.
func LoadWithProfile(path, profile string) (*Config, error) {
	return loadWithOverrides(path, profile, nil)
}

// LoadWithCLI resolves configuration and applies CLI overrides from args.
// Supported flags: --config=path, --profile=name (or --env), --set k=v.
func LoadWithCLI(args []string) (*Config, error) {
	path, profile, overrides, err := parseCLIOverrides(args)
	if err != nil {
		return nil, err
	}
	return loadWithOverrides(path, profile, overrides)
}

func loadWithOverrides(path, profile string, overrides map[string]any) (*Config, error) {
	k.Set("log.level", "info")
	k.Set("log.format", "text")

	k.Set("backend.timeout_seconds", 30)

	k.Set("cache.l1_max_size", 10000)
	k.Set("cache.l1_num_shards", 16)
	k.Set("cache.l2_default_ttl_seconds", 300)
	k.Set("cache.l2_cleanup_interval_seconds", 60)
	k.Set("cache.key_prefix", "cache:")
	k.Set("cache.enable_encryption", false)

	k.Set("graph.ttl_seconds", 300)
	k.Set("graph.max_depth", 5)

	k.Set("poller.interval_seconds", 30)
	k.Set("poller.iteration_timeout_seconds", 10)
	k.Set("poller.max_backoff_seconds", 300)
	k.Set("poller.failure_threshold", 3)

	k.Set("health.component_timeout_seconds", 5)
	k.Set("health.timeout_seconds", 15)
	k.Set("health.max_history_entries", 500)
	k.Set("health.retention_days", 7)
	k.Set("health.db_conn_threshold_percent", 80)

	k.Set("llm.default_timeout_seconds", 30)
	k.Set("llm.max_retries_per_provider", 3)
	k.Set("llm.retry_base_delay_ms", 100)

	k.Set("telemetry.exporter", "stdout")
	k.Set("telemetry.otlp_insecure", true)
	k.Set("telemetry.otlp_timeout_seconds", 10)
	k.Set("telemetry.otlp_headers", map[string]string{})

	configPath := path
	if configPath == "" {
		configPath = defaultConfigPath()
	}
	if configPath != "" {
		if err := loadFromFile(configPath); err != nil {
			return nil, err
		}
	}

	if profile != "" && configPath != "" {
		if profilePath := profileConfigPath(configPath, profile); profilePath != "" {
			if err := loadFromFile(profilePath); err != nil {
				return nil, err
			}
		}
	}

	if err := k.Load(env.Provider("TWSGW_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "TWSGW_")), "_", ".", 1)
	}), nil); err != nil {
		return nil, err
	}

	for key, value := range overrides {
		_ = k.Set(key, value)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	cfg.Backend.Timeout = time.Duration(cfg.Backend.TimeoutSeconds) * time.Second
	return &cfg, nil
}

func parseCLIOverrides(args []string) (string, string, map[string]any, error) {
	overrides := make(map[string]any)
	var path, profile string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			break
		}
		if arg == "--config" {
			if i+1 >= len(args) {
				return "", "", nil, fmt.Errorf("missing value for --config")
			}
			path = args[i+1]
			i++
			continue
		}
		if strings.HasPrefix(arg, "--config=") {
			path = strings.TrimPrefix(arg, "--config=")
			continue
		}
		if arg == "--profile" || arg == "--env" {
			if i+1 >= len(args) {
				return "", "", nil, fmt.Errorf("missing value for %s", arg)
			}
			profile = args[i+1]
			i++
			continue
		}
		if strings.HasPrefix(arg, "--profile=") {
			profile = strings.TrimPrefix(arg, "--profile=")
			continue
		}
		if strings.HasPrefix(arg, "--env=") {
			profile = strings.TrimPrefix(arg, "--env=")
			continue
		}
		if arg == "--set" {
			if i+1 >= len(args) {
				return "", "", nil, fmt.Errorf("missing value for --set")
			}
			key, value, err := parseKeyValue(args[i+1])
			if err != nil {
				return "", "", nil, err
			}
			overrides[key] = value
			i++
			continue
		}
		if strings.HasPrefix(arg, "--set=") {
			key, value, err := parseKeyValue(strings.TrimPrefix(arg, "--set="))
			if err != nil {
				return "", "", nil, err
			}
			overrides[key] = value
			continue
		}
	}
	return path, profile, overrides, nil
}

func parseKeyValue(raw string) (string, any, error) {
	parts := strings.SplitN(raw, "=", 2)
	if len(parts) != 2 {
		return "", nil, fmt.Errorf("invalid --set value %q (expected key=value)", raw)
	}
	key := strings.TrimSpace(parts[0])
	if key == "" {
		return "", nil, fmt.Errorf("invalid --set key in %q", raw)
	}
	return key, parseOverrideValue(strings.TrimSpace(parts[1])), nil
}

func parseOverrideValue(raw string) any {
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(raw, "{") || strings.HasPrefix(raw, "[") || strings.HasPrefix(raw, "\"") {
		var value any
		if err := json.Unmarshal([]byte(raw), &value); err == nil {
			return value
		}
	}
	if value, err := strconv.ParseBool(raw); err == nil {
		return value
	}
	if value, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return value
	}
	if value, err := strconv.ParseFloat(raw, 64); err == nil {
		return value
	}
	return raw
}

func loadFromFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if info.IsDir() {
		return nil
	}
	return k.Load(file.Provider(path), yaml.Parser())
}

func defaultConfigPath() string {
	candidates := []string{filepath.Join(".tws-gateway", "config.yaml")}
	if homeDir, err := os.UserHomeDir(); err == nil && homeDir != "" {
		candidates = append(candidates, filepath.Join(homeDir, ".tws-gateway", "config.yaml"))
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		candidates = append(candidates, filepath.Join(xdg, "tws-gateway", "config.yaml"))
	}
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// profileConfigPath returns the path to a profile-specific config file, or
// "" if one doesn't exist. For "config.yaml" with profile "dev", that is
// "config.dev.yaml".
func profileConfigPath(basePath, profile string) string {
	if basePath == "" || profile == "" {
		return ""
	}
	dir := filepath.Dir(basePath)
	base := filepath.Base(basePath)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)
	profilePath := filepath.Join(dir, name+"."+profile+ext)
	if _, err := os.Stat(profilePath); err == nil {
		return profilePath
	}
	return ""
}

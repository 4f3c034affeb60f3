package config

import (
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	History   HistoryConfig   `koanf:"history"`
	Retention RetentionConfig `koanf:"retention"`
	Archive   ArchiveConfig   `koanf:"archive"`
	AI        AIConfig        `koanf:"ai"`
	Usage     UsageConfig     `koanf:"usage"`
}

type ServerConfig struct {
	Port    int    `koanf:"port"`
	BaseURL string `koanf:"base_url"`
}

type HistoryConfig struct {
	// MaxRequests bounds the per-endpoint request history. Oldest
	// entries are evicted first once the bound is reached.
	MaxRequests int `koanf:"max_requests"`
}

type RetentionConfig struct {
	Enabled       bool          `koanf:"enabled"`
	TTL           time.Duration `koanf:"ttl"`
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

type ArchiveConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

type AIConfig struct {
	Enabled                 bool          `koanf:"enabled"`
	APIKey                  string        `koanf:"api_key"`
	Model                   string        `koanf:"model"`
	MaxTokens               int           `koanf:"max_tokens"`
	Timeout                 time.Duration `koanf:"timeout"`
	CallsPerEndpointPerHour int           `koanf:"calls_per_endpoint_per_hour"`
	CallsPerIPPerHour       int           `koanf:"calls_per_ip_per_hour"`
}

type UsageConfig struct {
	CostPerToken       float64 `koanf:"cost_per_token"`
	DailyWarnThreshold int     `koanf:"daily_warn_threshold"`
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads configuration from an optional config.yaml and the
// environment. Environment variables use the HOOKSCOPE_ prefix with
// double underscores as section separators (HOOKSCOPE_SERVER__PORT).
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			if !os.IsNotExist(err) {
				return nil, err
			}
		}
	}

	if err := k.Load(env.Provider("HOOKSCOPE_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "HOOKSCOPE_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	applyDefaults(k)

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	cfg.AI.APIKey = substituteEnvVars(cfg.AI.APIKey)
	if cfg.AI.APIKey == "" {
		// Common deployment shortcut: the bare Anthropic variable.
		cfg.AI.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}

	return &cfg, nil
}

func applyDefaults(k *koanf.Koanf) {
	defaults := map[string]interface{}{
		"server.port":                    8080,
		"server.base_url":                "http://localhost:8080",
		"history.max_requests":           100,
		"retention.ttl":                  "24h",
		"retention.sweep_interval":       "1h",
		"archive.path":                   "hookscope.db",
		"ai.model":                       "claude-sonnet-4-5-20250929",
		"ai.max_tokens":                  512,
		"ai.timeout":                     "15s",
		"ai.calls_per_endpoint_per_hour": 10,
		"ai.calls_per_ip_per_hour":       20,
		"usage.cost_per_token":           0.000003,
		"usage.daily_warn_threshold":     100,
	}
	for key, val := range defaults {
		if !k.Exists(key) {
			k.Set(key, val)
		}
	}
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

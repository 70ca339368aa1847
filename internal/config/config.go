// Package config loads process configuration from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultEnvFile is read when present.
const DefaultEnvFile = ".env"

// Config holds the complete configuration for both binaries.
type Config struct {
	Port        string
	Token       string
	TLSCertFile string
	TLSKeyFile  string

	Exchange  ExchangeConfig
	Log       LogConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
	Client    ClientConfig
}

// ExchangeConfig selects and authenticates the upstream rates API.
type ExchangeConfig struct {
	APIKey  string
	URL     string
	Timeout time.Duration
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string
	Format string
}

// CacheConfig configures the optional response cache.
type CacheConfig struct {
	Enabled     bool
	TTL         time.Duration
	NumCounters int64
	MaxCost     int64
}

// RateLimitConfig configures per-client limits on /tools.
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerSecond float64
	Burst             int
	Window            time.Duration
	RedisAddr         string
	RedisPassword     string
	RedisDB           int
}

// ClientConfig configures the companion client.
type ClientConfig struct {
	ServerURL        string
	OllamaURL        string
	Model            string
	ConversationFile string
}

// Load reads envFile when it exists and overlays the process environment.
// An empty envFile skips the file.
func Load(envFile string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if envFile != "" {
		v.SetConfigFile(envFile)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil && !isNotFound(err) {
			return Config{}, fmt.Errorf("read %s: %w", envFile, err)
		}
	}

	cfg := Config{
		Port:        v.GetString("port"),
		Token:       v.GetString("mcp_token"),
		TLSCertFile: v.GetString("tls_cert_file"),
		TLSKeyFile:  v.GetString("tls_key_file"),
		Exchange: ExchangeConfig{
			APIKey:  strings.TrimSpace(v.GetString("exchange_api_key")),
			URL:     v.GetString("exchange_api_url"),
			Timeout: v.GetDuration("upstream_timeout"),
		},
		Log: LogConfig{
			Level:  v.GetString("log_level"),
			Format: v.GetString("log_format"),
		},
		Cache: CacheConfig{
			Enabled:     v.GetBool("cache_enabled"),
			TTL:         v.GetDuration("cache_ttl"),
			NumCounters: v.GetInt64("cache_num_counters"),
			MaxCost:     v.GetInt64("cache_max_cost"),
		},
		RateLimit: RateLimitConfig{
			Enabled:           v.GetBool("rate_limit_enabled"),
			RequestsPerSecond: v.GetFloat64("rate_limit_rps"),
			Burst:             v.GetInt("rate_limit_burst"),
			Window:            v.GetDuration("rate_limit_window"),
			RedisAddr:         v.GetString("redis_addr"),
			RedisPassword:     v.GetString("redis_password"),
			RedisDB:           v.GetInt("redis_db"),
		},
		Client: ClientConfig{
			ServerURL:        v.GetString("mcp_server_url"),
			OllamaURL:        v.GetString("ollama_url"),
			Model:            v.GetString("ollama_model"),
			ConversationFile: v.GetString("conversation_file"),
		},
	}
	if cfg.Client.ServerURL == "" {
		cfg.Client.ServerURL = "http://localhost:" + cfg.Port
	}
	return cfg, nil
}

// Addr is the listen address for Port.
func (c Config) Addr() string {
	return ":" + c.Port
}

// TLSEnabled reports whether both certificate and key were configured.
func (c Config) TLSEnabled() bool {
	return c.TLSCertFile != "" && c.TLSKeyFile != ""
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "3000")
	v.SetDefault("upstream_timeout", time.Duration(0))
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("cache_enabled", false)
	v.SetDefault("cache_ttl", time.Minute)
	v.SetDefault("cache_num_counters", int64(1e4))
	v.SetDefault("cache_max_cost", int64(1<<24))
	v.SetDefault("rate_limit_enabled", false)
	v.SetDefault("rate_limit_rps", 10.0)
	v.SetDefault("rate_limit_burst", 20)
	v.SetDefault("rate_limit_window", time.Minute)
	v.SetDefault("redis_db", 0)
	v.SetDefault("ollama_url", "http://localhost:11434")
	v.SetDefault("ollama_model", "gemma3:27b")
	v.SetDefault("conversation_file", "ollama-mcp-conversation.txt")
}

func isNotFound(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)
}

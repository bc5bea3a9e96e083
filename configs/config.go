package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// AppFs is the filesystem config files are read from. Tests swap in a
// memory filesystem.
var AppFs = afero.NewOsFs()

// EnvConfigFile names the environment variable pointing at a YAML config file.
const EnvConfigFile = "UNITLENS_CONFIG"

type Config struct {
	APIPort string `yaml:"api_port"`

	// Service manager tools
	SystemctlPath  string        `yaml:"systemctl_path"`
	JournalctlPath string        `yaml:"journalctl_path"`
	NoPager        bool          `yaml:"no_pager"`
	CommandTimeout time.Duration `yaml:"command_timeout"` // 0 disables the timeout

	// Logging
	LogLevel    string `yaml:"log_level"`
	LogEncoding string `yaml:"log_encoding"`
	LogOutput   string `yaml:"log_output"`

	// Tracing
	TracingEnabled    bool    `yaml:"tracing_enabled"`
	OTLPEndpoint      string  `yaml:"otlp_endpoint"`
	TracingSampleRate float64 `yaml:"tracing_sample_rate"`
	Environment       string  `yaml:"environment"`

	// Auth
	AuthEnabled bool   `yaml:"auth_enabled"`
	JWTSecret   string `yaml:"jwt_secret"`
	JWTIssuer   string `yaml:"jwt_issuer"`
	RedisHost   string `yaml:"redis_host"`
	RedisPort   string `yaml:"redis_port"`

	// Rate limiting
	RateLimitPerMinute int `yaml:"rate_limit_per_minute"`
	RateLimitBurst     int `yaml:"rate_limit_burst"`

	// Agent registry
	RegistryEnabled   bool          `yaml:"registry_enabled"`
	EtcdEndpoints     []string      `yaml:"etcd_endpoints"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	AgentTTL          int           `yaml:"agent_ttl"`
	AdvertiseAddr     string        `yaml:"advertise_addr"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		APIPort:            "8080",
		SystemctlPath:      "systemctl",
		JournalctlPath:     "journalctl",
		NoPager:            true,
		LogLevel:           "info",
		LogEncoding:        "json",
		LogOutput:          "stderr",
		OTLPEndpoint:       "localhost:4318",
		TracingSampleRate:  1.0,
		Environment:        "development",
		JWTIssuer:          "unitlens",
		RedisHost:          "localhost",
		RedisPort:          "6379",
		RateLimitPerMinute: 120,
		RateLimitBurst:     20,
		EtcdEndpoints:      []string{"localhost:2379"},
		HeartbeatInterval:  5 * time.Second,
		AgentTTL:           15,
	}
}

// Load layers defaults, the YAML file at path (when path is non-empty) and
// environment variables, in that order. Unparseable environment values are
// ignored in favour of the layer below.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv(EnvConfigFile)
	}
	if path != "" {
		data, err := afero.ReadFile(AppFs, path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}
	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	if c.APIPort == "" {
		return fmt.Errorf("api_port must not be empty")
	}
	if c.CommandTimeout < 0 {
		return fmt.Errorf("command_timeout must not be negative")
	}
	if c.AuthEnabled && c.JWTSecret == "" {
		return fmt.Errorf("jwt_secret is required when auth is enabled")
	}
	if c.RegistryEnabled && len(c.EtcdEndpoints) == 0 {
		return fmt.Errorf("etcd_endpoints is required when the registry is enabled")
	}
	if c.RateLimitPerMinute <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("rate limits must be positive")
	}
	return nil
}

// RedisAddr joins the Redis host and port.
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}

func applyEnv(cfg *Config) {
	cfg.APIPort = getEnv("API_PORT", cfg.APIPort)
	cfg.SystemctlPath = getEnv("SYSTEMCTL_PATH", cfg.SystemctlPath)
	cfg.JournalctlPath = getEnv("JOURNALCTL_PATH", cfg.JournalctlPath)
	cfg.NoPager = getEnvAsBool("NO_PAGER", cfg.NoPager)
	cfg.CommandTimeout = getEnvAsDuration("COMMAND_TIMEOUT", cfg.CommandTimeout)

	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogEncoding = getEnv("LOG_ENCODING", cfg.LogEncoding)
	cfg.LogOutput = getEnv("LOG_OUTPUT", cfg.LogOutput)

	cfg.TracingEnabled = getEnvAsBool("TRACING_ENABLED", cfg.TracingEnabled)
	cfg.OTLPEndpoint = getEnv("OTLP_ENDPOINT", cfg.OTLPEndpoint)
	cfg.TracingSampleRate = getEnvAsFloat("TRACING_SAMPLE_RATE", cfg.TracingSampleRate)
	cfg.Environment = getEnv("ENVIRONMENT", cfg.Environment)

	cfg.AuthEnabled = getEnvAsBool("AUTH_ENABLED", cfg.AuthEnabled)
	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	cfg.JWTIssuer = getEnv("JWT_ISSUER", cfg.JWTIssuer)
	cfg.RedisHost = getEnv("REDIS_HOST", cfg.RedisHost)
	cfg.RedisPort = getEnv("REDIS_PORT", cfg.RedisPort)

	cfg.RateLimitPerMinute = getEnvAsInt("RATE_LIMIT_PER_MINUTE", cfg.RateLimitPerMinute)
	cfg.RateLimitBurst = getEnvAsInt("RATE_LIMIT_BURST", cfg.RateLimitBurst)

	cfg.RegistryEnabled = getEnvAsBool("REGISTRY_ENABLED", cfg.RegistryEnabled)
	if v := getEnv("ETCD_ENDPOINTS", ""); v != "" {
		cfg.EtcdEndpoints = splitList(v)
	}
	cfg.HeartbeatInterval = getEnvAsDuration("HEARTBEAT_INTERVAL", cfg.HeartbeatInterval)
	cfg.AgentTTL = getEnvAsInt("AGENT_TTL", cfg.AgentTTL)
	cfg.AdvertiseAddr = getEnv("ADVERTISE_ADDR", cfg.AdvertiseAddr)
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

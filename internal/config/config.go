package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Backend names accepted by store.backend.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Eviction policies accepted by store.memory.eviction.
const (
	EvictionFIFO = "fifo"
	EvictionNone = "none"
)

// Config holds the kontext service configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Store      StoreConfig      `yaml:"store"`
	Pagination PaginationConfig `yaml:"pagination"`
	Ingest     IngestConfig     `yaml:"ingest"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// StoreConfig selects and configures the storage backend.
type StoreConfig struct {
	Backend string            `yaml:"backend"` // memory, redis (default: memory)
	Memory  MemoryStoreConfig `yaml:"memory"`
	Redis   RedisStoreConfig  `yaml:"redis"`
}

// MemoryStoreConfig holds bounded in-process store settings.
type MemoryStoreConfig struct {
	MaxSize  int    `yaml:"max_size"`
	Eviction string `yaml:"eviction"` // fifo (default), none
}

// RedisStoreConfig holds durable store connection settings.
type RedisStoreConfig struct {
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	KeyPrefix        string   `yaml:"key_prefix"`
	OpTimeoutSec     int      `yaml:"op_timeout_sec"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// PaginationConfig holds page size limits.
type PaginationConfig struct {
	DefaultPageSize int `yaml:"default_page_size"`
	MaxPageSize     int `yaml:"max_page_size"`
}

// IngestConfig holds batch ingest settings.
type IngestConfig struct {
	ChunkSize int    `yaml:"chunk_size"`
	SeedDir   string `yaml:"seed_dir"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Store.Backend == "" {
		c.Store.Backend = BackendMemory
	}
	if c.Store.Memory.MaxSize <= 0 {
		c.Store.Memory.MaxSize = 10000
	}
	if c.Store.Memory.Eviction == "" {
		c.Store.Memory.Eviction = EvictionFIFO
	}
	if c.Store.Redis.KeyPrefix == "" {
		c.Store.Redis.KeyPrefix = "kontext:"
	}
	if c.Store.Redis.OpTimeoutSec <= 0 {
		c.Store.Redis.OpTimeoutSec = 5
	}
	if c.Store.Redis.ReadinessTimeout <= 0 {
		c.Store.Redis.ReadinessTimeout = 10
	}
	if c.Pagination.DefaultPageSize <= 0 {
		c.Pagination.DefaultPageSize = 20
	}
	if c.Pagination.MaxPageSize <= 0 {
		c.Pagination.MaxPageSize = 100
	}
	if c.Ingest.ChunkSize <= 0 {
		c.Ingest.ChunkSize = 100
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Store.Backend {
	case BackendMemory, BackendRedis:
	default:
		return fmt.Errorf("store.backend must be %q or %q, got %q",
			BackendMemory, BackendRedis, c.Store.Backend)
	}
	switch c.Store.Memory.Eviction {
	case EvictionFIFO, EvictionNone:
	default:
		return fmt.Errorf("store.memory.eviction must be %q or %q, got %q",
			EvictionFIFO, EvictionNone, c.Store.Memory.Eviction)
	}
	if c.Store.Backend == BackendRedis && len(c.Store.Redis.Addrs) == 0 {
		return fmt.Errorf("store.redis.addrs is required for the redis backend")
	}
	if c.Pagination.DefaultPageSize > c.Pagination.MaxPageSize {
		return fmt.Errorf("pagination.default_page_size %d exceeds max_page_size %d",
			c.Pagination.DefaultPageSize, c.Pagination.MaxPageSize)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}

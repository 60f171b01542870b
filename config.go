package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const defaultConfigPath = "gearscan.yaml"

// Config is the gearscan configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Gemini GeminiConfig `yaml:"gemini"`
	Cache  CacheConfig  `yaml:"cache"`
	Log    LogConfig    `yaml:"log"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           string        `yaml:"port"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`
	UploadRate     int           `yaml:"upload_rate"`
	UploadInterval time.Duration `yaml:"upload_interval"`
	QueryRate      int           `yaml:"query_rate"`
	QueryInterval  time.Duration `yaml:"query_interval"`
}

// withDefaults fills zero fields from DefaultConfig.
func (c ServerConfig) withDefaults() ServerConfig {
	def := DefaultConfig().Server
	if c.Port == "" {
		c.Port = def.Port
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = def.MaxUploadBytes
	}
	if c.UploadRate <= 0 || c.UploadInterval <= 0 {
		c.UploadRate, c.UploadInterval = def.UploadRate, def.UploadInterval
	}
	if c.QueryRate <= 0 || c.QueryInterval <= 0 {
		c.QueryRate, c.QueryInterval = def.QueryRate, def.QueryInterval
	}
	return c
}

// GeminiConfig configures photo extraction. Extraction is disabled when
// Project is empty.
type GeminiConfig struct {
	Project string `yaml:"project"`
	Region  string `yaml:"region"`
	Model   string `yaml:"model"`
}

// CacheConfig sizes the report cache.
type CacheConfig struct {
	Size int `yaml:"size"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           "8080",
			MaxUploadBytes: 10 << 20,
			UploadRate:     5,
			UploadInterval: time.Minute,
			QueryRate:      60,
			QueryInterval:  time.Second,
		},
		Gemini: GeminiConfig{
			Region: defaultRegion,
			Model:  defaultModel,
		},
		Cache: CacheConfig{Size: defaultCacheSize},
		Log:   LogConfig{Level: "info"},
	}
}

// LoadConfig reads path (a missing file yields defaults), then .env, then
// environment overrides.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	_ = godotenv.Load()

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	if v := strings.TrimSpace(os.Getenv("PORT")); v != "" {
		c.Server.Port = strings.TrimPrefix(v, ":")
	}
	if v := strings.TrimSpace(os.Getenv("GCP_PROJECT_ID")); v != "" {
		c.Gemini.Project = v
	}
	if v := strings.TrimSpace(os.Getenv("GCP_REGION")); v != "" {
		c.Gemini.Region = v
	}
	if v := strings.TrimSpace(os.Getenv("GEARSCAN_MODEL")); v != "" {
		c.Gemini.Model = v
	}
	if v := strings.TrimSpace(os.Getenv("GEARSCAN_CACHE_SIZE")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("GEARSCAN_CACHE_SIZE: %w", err)
		}
		c.Cache.Size = n
	}
	if v := strings.TrimSpace(os.Getenv("GEARSCAN_LOG_LEVEL")); v != "" {
		c.Log.Level = v
	}
	return nil
}

// Addr returns the listen address of the HTTP API.
func (c *Config) Addr() string {
	return ":" + c.Server.Port
}

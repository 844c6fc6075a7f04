package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

type Config struct {
	Port          string        `mapstructure:"PORT"`
	Env           string        `mapstructure:"ENV"`
	MongoURI      string        `mapstructure:"MONGO_URI"`
	MongoDatabase string        `mapstructure:"MONGO_DATABASE"`
	RedisAddr     string        `mapstructure:"REDIS_ADDR"`
	CacheTTL      time.Duration `mapstructure:"CACHE_TTL"`
	DraftTTL      time.Duration `mapstructure:"DRAFT_TTL"`
	LogLevel      string        `mapstructure:"LOG_LEVEL"`
	CORSOrigins   []string      `mapstructure:"CORS_ORIGINS"`
	ChecklistFile string        `mapstructure:"CHECKLIST_FILE"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGO_DATABASE", "imcitrack")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("CACHE_TTL", "24h")
	v.SetDefault("DRAFT_TTL", "72h")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CORS_ORIGINS", "*")
	v.SetDefault("CHECKLIST_FILE", "")

	for _, key := range []string{
		"PORT", "ENV", "MONGO_URI", "MONGO_DATABASE", "REDIS_ADDR",
		"CACHE_TTL", "DRAFT_TTL", "LOG_LEVEL", "CORS_ORIGINS", "CHECKLIST_FILE",
	} {
		_ = v.BindEnv(key)
	}

	// The .env file is optional.
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if len(cfg.CORSOrigins) <= 1 {
		if origins := v.GetString("CORS_ORIGINS"); origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}
	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Level parses LOG_LEVEL.
func (c *Config) Level() (zerolog.Level, error) {
	return zerolog.ParseLevel(strings.ToLower(c.LogLevel))
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	if c.MongoURI == "" {
		return fmt.Errorf("MONGO_URI is required")
	}
	if c.MongoDatabase == "" {
		return fmt.Errorf("MONGO_DATABASE is required")
	}
	if _, err := c.Level(); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	if c.DraftTTL <= 0 || c.CacheTTL <= 0 {
		return fmt.Errorf("CACHE_TTL and DRAFT_TTL must be positive")
	}
	return nil
}

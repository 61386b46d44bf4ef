// Package config provides configuration structures and loading for the generation data collector.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/DridrM/renewable-energy-forecast/internal/api/rte"
	"github.com/DridrM/renewable-energy-forecast/internal/resource"
	"github.com/DridrM/renewable-energy-forecast/internal/storage"
)

// Config holds all configuration for the generation data collector.
type Config struct {
	// Upstream API connection settings
	API rte.Config
	// Directory holding the ledger and the dataset files
	DataDir string
	// Number of datasets kept in the read cache
	CacheSize int
	// PostgreSQL connection string, empty disables the database sink
	PostgresDSN string
	// Log level (debug, info, warn, error)
	LogLevel string
	// Log format (json, console)
	LogFormat string
	// HTTP server address
	HTTPAddr string
	// Hour of the daily acquisition (0-23)
	ScheduleHour int
	// Resources acquired by the scheduler
	Kinds []resource.Kind
	// Minimum interval between two calls of a resource
	MinIntervals map[resource.Kind]time.Duration
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	intervals := make(map[resource.Kind]time.Duration)
	for _, k := range resource.All() {
		intervals[k] = k.MinInterval()
	}

	return &Config{
		API: rte.Config{
			BaseURL:        rte.DefaultBaseURL,
			TokenPath:      rte.DefaultTokenPath,
			GenerationPath: rte.DefaultGenerationPath,
			ContentType:    rte.DefaultContentType,
		},
		DataDir:      "data",
		CacheSize:    storage.DefaultCacheSize,
		PostgresDSN:  "",
		LogLevel:     "info",
		LogFormat:    "json",
		HTTPAddr:     ":8080",
		ScheduleHour: 6,
		Kinds:        resource.All(),
		MinIntervals: intervals,
	}
}

// LoadDotEnv loads variables from a .env file into the environment. A missing
// file is not an error; variables already set are left untouched.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// LoadFromEnv loads configuration from environment variables.
func (c *Config) LoadFromEnv() {
	if v := os.Getenv("BASE_URL"); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv("TOKEN_PATH"); v != "" {
		c.API.TokenPath = v
	}
	if v := os.Getenv("GENERATION_PATH"); v != "" {
		c.API.GenerationPath = v
	}
	if v := os.Getenv("CLIENT_SECRET"); v != "" {
		c.API.ClientSecret = v
	}
	if v := os.Getenv("CONTENT_TYPE"); v != "" {
		c.API.ContentType = v
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("CACHE_SIZE"); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i > 0 {
			c.CacheSize = i
		}
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		c.PostgresDSN = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.LogFormat = v
	}
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		c.HTTPAddr = v
	}
	if v := os.Getenv("SCHEDULE_HOUR"); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i >= 0 && i <= 23 {
			c.ScheduleHour = i
		}
	}
	if v := os.Getenv("KINDS"); v != "" {
		if kinds, err := ParseKinds(v); err == nil {
			c.Kinds = kinds
		}
	}
	for _, k := range resource.All() {
		if v := os.Getenv(fmt.Sprintf("MIN_INTERVAL_%d", int(k))); v != "" {
			if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
				c.MinIntervals[k] = time.Duration(secs) * time.Second
			}
		}
	}
}

// ParseKinds parses a comma separated list of resource numbers or names.
func ParseKinds(s string) ([]resource.Kind, error) {
	var kinds []resource.Kind
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k, err := resource.Parse(part)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, k)
	}
	if len(kinds) == 0 {
		return nil, fmt.Errorf("no resource in %q", s)
	}
	return kinds, nil
}

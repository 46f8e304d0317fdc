// Package config loads the engine's YAML configuration document, grounded
// on cli/cmd/config.go's LoadConfig: os.ReadFile followed by
// yaml.Unmarshal into a typed struct, with an explicit "file not found"
// error rather than a zero-value fallback.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// PriorityCaps is the per-priority concurrency ceiling surface from spec §6
// (per_priority_caps{critical,high,normal,low}).
type PriorityCaps struct {
	Critical int `yaml:"critical"`
	High     int `yaml:"high"`
	Normal   int `yaml:"normal"`
	Low      int `yaml:"low"`
}

// AlertThresholds is spec §6's alert_thresholds{memory_percent, queue_depth}.
type AlertThresholds struct {
	MemoryPercent float64 `yaml:"memory_percent"`
	QueueDepth    int     `yaml:"queue_depth"`
}

// DatabaseConfig names one logical backend connection, mirroring the
// teacher's Config{Databases map[string]DatabaseConfig} shape but scoped to
// dialect + DSN rather than a deployment target.
type DatabaseConfig struct {
	Dialect string `yaml:"dialect"` // "postgres" | "mssql"
	DSN     string `yaml:"dsn"`
}

// Config is the engine's full configuration surface, spec §6's "Config
// surface (enumerated)" plus the database connections the CLI's backend
// adapters are built from.
type Config struct {
	MaxConcurrentQueries           int                       `yaml:"max_concurrent_queries"`
	MaxMemoryBytes                 int64                     `yaml:"max_memory_bytes"`
	MaxQueryComplexity             int64                     `yaml:"max_query_complexity"`
	PerPriorityCaps                PriorityCaps              `yaml:"per_priority_caps"`
	DefaultQueryTimeout            time.Duration             `yaml:"default_query_timeout"`
	CacheDefaultTTL                time.Duration             `yaml:"cache_default_ttl"`
	CacheCompressionThresholdBytes int64                     `yaml:"cache_compression_threshold_bytes"`
	CacheByteCeiling               int64                     `yaml:"cache_byte_ceiling"`
	CacheEvictionPolicy            string                    `yaml:"cache_eviction_policy"` // "lru" | "lfu" | "ttl"
	StuckQueryThreshold            time.Duration             `yaml:"stuck_query_threshold"`
	MonitoringSampleInterval       time.Duration             `yaml:"monitoring_sample_interval"`
	LowStarvationThreshold         time.Duration             `yaml:"low_starvation_threshold"`
	AlertThresholds                AlertThresholds           `yaml:"alert_thresholds"`
	Databases                      map[string]DatabaseConfig `yaml:"databases"`
	SchemaFile                     string                    `yaml:"schema_file"`
}

// Default returns a Config populated with conservative defaults, the base
// Load merges a config document onto, also used by tests that only care
// about a few fields.
func Default() Config {
	return Config{
		MaxConcurrentQueries:           64,
		MaxMemoryBytes:                 1 << 30, // 1 GiB
		MaxQueryComplexity:             1000,
		PerPriorityCaps:                PriorityCaps{Critical: 16, High: 16, Normal: 24, Low: 8},
		DefaultQueryTimeout:            30 * time.Second,
		CacheDefaultTTL:                5 * time.Minute,
		CacheCompressionThresholdBytes: 10 * 1024,
		CacheByteCeiling:               256 << 20, // 256 MiB
		CacheEvictionPolicy:            "lru",
		StuckQueryThreshold:            2 * time.Minute,
		MonitoringSampleInterval:       10 * time.Second,
		LowStarvationThreshold:         15 * time.Second,
		AlertThresholds:                AlertThresholds{MemoryPercent: 0.9, QueueDepth: 100},
	}
}

// Load reads and parses a config YAML document at path, merging it onto
// Default() so an omitted field keeps its conservative default rather than
// silently zeroing.
func Load(path string) (Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Config{}, fmt.Errorf("config: no file found at %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	result := Default()
	if err := yaml.Unmarshal(data, &result); err != nil {
		return Config{}, err
	}
	return result, nil
}

// Database looks up a configured backend connection by its logical name,
// returning an error callers can surface directly rather than a bare
// "not found" bool, since a missing database is always a user-facing
// configuration mistake.
func (c Config) Database(name string) (DatabaseConfig, error) {
	dbcfg, ok := c.Databases[name]
	if !ok {
		return DatabaseConfig{}, fmt.Errorf("config: database %q not present in configuration", name)
	}
	return dbcfg, nil
}

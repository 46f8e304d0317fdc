package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsExplicitError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.Error(t, err)
}

func TestLoadMergesOntoDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kqlcore.yaml")
	doc := `
max_concurrent_queries: 8
databases:
  main:
    dialect: postgres
    dsn: "postgres://localhost/test"
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.MaxConcurrentQueries)
	// Fields omitted from the document keep Default()'s values rather than
	// zeroing, since Load unmarshals onto Default() rather than a bare
	// zero Config{}.
	assert.Equal(t, Default().CacheDefaultTTL, cfg.CacheDefaultTTL)
	assert.Equal(t, Default().PerPriorityCaps, cfg.PerPriorityCaps)

	dbcfg, err := cfg.Database("main")
	require.NoError(t, err)
	assert.Equal(t, "postgres", dbcfg.Dialect)
}

func TestDatabaseUnknownNameErrors(t *testing.T) {
	cfg := Default()
	_, err := cfg.Database("nope")
	require.Error(t, err)
}

func TestSchedulerConfigTranslation(t *testing.T) {
	cfg := Default()
	cfg.PerPriorityCaps = PriorityCaps{Critical: 1, High: 2, Normal: 3, Low: 4}
	sc := cfg.SchedulerConfig()

	assert.Equal(t, cfg.MaxConcurrentQueries, sc.GlobalCap)
	assert.Equal(t, cfg.MaxMemoryBytes, sc.MemLimit)
	assert.Equal(t, [4]int{1, 2, 3, 4}, sc.PerPriorityCap)
}

func TestCachePolicyTranslation(t *testing.T) {
	cfg := Default()

	cfg.CacheEvictionPolicy = "lfu"
	assert.Equal(t, "lfu", cfg.CachePolicy().String())

	cfg.CacheEvictionPolicy = "ttl"
	assert.Equal(t, "ttl", cfg.CachePolicy().String())

	cfg.CacheEvictionPolicy = "bogus"
	assert.Equal(t, "lru", cfg.CachePolicy().String())
}

func TestDefaultHasSaneTimeouts(t *testing.T) {
	cfg := Default()
	assert.Greater(t, cfg.DefaultQueryTimeout, time.Duration(0))
	assert.Greater(t, cfg.StuckQueryThreshold, cfg.DefaultQueryTimeout)
}

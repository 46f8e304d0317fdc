package config

import (
	"github.com/vippsas/kqlcore/cache"
	"github.com/vippsas/kqlcore/schedule"
)

// SchedulerConfig translates the YAML surface into schedule.Config, the
// shape the scheduler actually consumes.
func (c Config) SchedulerConfig() schedule.Config {
	return schedule.Config{
		GlobalCap:     c.MaxConcurrentQueries,
		MemLimit:      c.MaxMemoryBytes,
		ComplexityCap: c.MaxQueryComplexity,
		PerPriorityCap: [4]int{
			c.PerPriorityCaps.Critical,
			c.PerPriorityCaps.High,
			c.PerPriorityCaps.Normal,
			c.PerPriorityCaps.Low,
		},
		LowStarvationThreshold:   c.LowStarvationThreshold,
		StuckQueryThreshold:      c.StuckQueryThreshold,
		MonitoringSampleInterval: c.MonitoringSampleInterval,
		AlertThresholds: schedule.AlertThresholds{
			MemoryPercent: c.AlertThresholds.MemoryPercent,
			QueueDepth:    c.AlertThresholds.QueueDepth,
		},
	}
}

// CachePolicy translates the cache_eviction_policy string into cache.Policy,
// defaulting to LRU for an unrecognized or empty value.
func (c Config) CachePolicy() cache.Policy {
	switch c.CacheEvictionPolicy {
	case "lfu":
		return cache.LFU
	case "ttl":
		return cache.TTL
	default:
		return cache.LRU
	}
}

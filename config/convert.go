package config

import (
	"github.com/sallie/companion/pkg/emotion"
	"github.com/sallie/companion/pkg/eventbus"
	"github.com/sallie/companion/pkg/logger"
	"github.com/sallie/companion/pkg/memory"
	"github.com/sallie/companion/pkg/metrics"
	"github.com/sallie/companion/pkg/personality"
	badgerstore "github.com/sallie/companion/pkg/storage/badger"
	redisstore "github.com/sallie/companion/pkg/storage/redis"
)

// ToOptions converts the memory section to store options.
func (m MemoryConfig) ToOptions() memory.Options {
	return memory.Options{
		AssociationThreshold: m.AssociationThreshold,
		TagWeight:            m.TagWeight,
		ContentWeight:        m.ContentWeight,
		KindWeight:           m.KindWeight,
		PromoteImportance:    m.PromoteImportance,
		PromoteAge:           m.PromoteAge,
		PromoteAccessCount:   m.PromoteAccessCount,
		MaxShortTermAge:      m.MaxShortTermAge,
		ShortTermCapacity:    m.ShortTermCapacity,
		DecayFactor:          m.DecayFactor,
		DecayAfter:           m.DecayAfter,
		DecayInterval:        m.DecayInterval,
		ImportanceFloor:      m.ImportanceFloor,
		RecencyScale:         m.RecencyScale,
		DefaultImportance:    m.DefaultImportance,
		DefaultLimit:         m.DefaultLimit,
		ContextLimits: memory.ContextLimits{
			Conversation: m.ContextLimits.Conversation,
			Experience:   m.ContextLimits.Experience,
			Preference:   m.ContextLimits.Preference,
			Emotion:      m.ContextLimits.Emotion,
		},
		ConsolidationInterval: m.ConsolidationInterval,
	}
}

// ToOptions converts the emotion section to tracker options.
func (e EmotionConfig) ToOptions() emotion.Options {
	return emotion.Options{
		HistorySize:    e.HistorySize,
		BaselineSize:   e.BaselineSize,
		TrendWindow:    e.TrendWindow,
		TrendThreshold: e.TrendThreshold,
	}
}

// ToOptions converts the personality section to adapter options.
func (p PersonalityConfig) ToOptions() (personality.Options, error) {
	archetype, err := personality.ParseArchetype(p.Archetype)
	if err != nil {
		return personality.Options{}, err
	}
	return personality.Options{
		Archetype:      archetype,
		AdjustmentRate: p.AdjustmentRate,
	}, nil
}

// RetryConfig converts the event bus section to a publisher retry policy.
func (e EventBusConfig) RetryConfig() eventbus.RetryConfig {
	return eventbus.RetryConfig{
		MaxRetries:     e.MaxRetries,
		InitialBackoff: e.InitialBackoff,
		MaxBackoff:     e.MaxBackoff,
		BackoffFactor:  e.BackoffFactor,
	}
}

// ToBadgerConfig converts to the badger backend configuration.
func (b BadgerConfig) ToBadgerConfig() *badgerstore.Config {
	return &badgerstore.Config{
		Path:              b.Path,
		SyncWrites:        b.SyncWrites,
		ValueLogFileSize:  b.ValueLogFileSize,
		NumVersionsToKeep: b.NumVersionsToKeep,
		KeyPrefix:         b.KeyPrefix,
	}
}

// ToRedisConfig converts to the redis backend configuration.
func (r RedisConfig) ToRedisConfig() *redisstore.Config {
	return &redisstore.Config{
		Address:     r.Address,
		Password:    r.Password,
		DB:          r.DB,
		KeyPrefix:   r.KeyPrefix,
		ScanCount:   r.ScanCount,
		DialTimeout: r.DialTimeout,
	}
}

// ToMetricsConfig converts to the metrics manager configuration.
func (m MetricsConfig) ToMetricsConfig() metrics.Config {
	cfg := metrics.DefaultConfig()
	cfg.Enabled = m.Enabled
	cfg.Port = m.Port
	cfg.Path = m.Path
	return cfg
}

// ToLoggerConfig converts to the logger configuration.
func (l LogConfig) ToLoggerConfig() *logger.Config {
	return &logger.Config{
		Level:  logger.ParseLevel(l.Level),
		Format: l.Format,
		Output: l.Output,
	}
}

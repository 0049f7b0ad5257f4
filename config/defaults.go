package config

import "time"

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:        "sallie",
			Version:     "dev",
			Environment: "development",
			Debug:       false,
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
			HTTP: HTTPConfig{
				ReadTimeout:     30 * time.Second,
				WriteTimeout:    30 * time.Second,
				IdleTimeout:     120 * time.Second,
				ShutdownTimeout: 10 * time.Second,
				MaxHeaderBytes:  1 << 20, // 1MB
				MaxBodyBytes:    1 << 20,
			},
			GRPC: GRPCConfig{
				Enabled:           false,
				Port:              9090,
				MaxRecvMsgSize:    4 << 20,
				MaxSendMsgSize:    4 << 20,
				EnableReflection:  false,
				EnableHealthCheck: true,
				HealthInterval:    5 * time.Second,
				Keepalive: GRPCKeepaliveConfig{
					MaxIdle:     5 * time.Minute,
					MaxAge:      time.Hour,
					MaxAgeGrace: time.Minute,
					Time:        time.Minute,
					Timeout:     20 * time.Second,
					MinTime:     30 * time.Second,
				},
			},
			CORS: CORSConfig{
				Enabled:        false,
				AllowedOrigins: []string{"*"},
				AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
				AllowedHeaders: []string{"Content-Type", "X-Request-ID"},
				MaxAge:         300,
			},
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerSecond: 20,
				Burst:             40,
			},
			WebSocket: WebSocketConfig{
				Enabled:        true,
				MaxConnections: 100,
				BufferSize:     64,
				WriteTimeout:   10 * time.Second,
				PingInterval:   30 * time.Second,
			},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Storage: StorageConfig{
			Type:    "memory",
			Timeout: 5 * time.Second,
			Badger: BadgerConfig{
				Path:              "./data/badger",
				SyncWrites:        true,
				ValueLogFileSize:  64 << 20, // 64MB
				NumVersionsToKeep: 1,
				KeyPrefix:         "sallie:",
			},
			Redis: RedisConfig{
				Address:     "localhost:6379",
				Password:    "",
				DB:          0,
				KeyPrefix:   "sallie:",
				ScanCount:   100,
				DialTimeout: 5 * time.Second,
			},
			SQLite: SQLiteConfig{
				Path: "./data/sallie.db",
			},
		},
		Memory: MemoryConfig{
			AssociationThreshold: 0.6,
			TagWeight:            0.4,
			ContentWeight:        0.4,
			KindWeight:           0.2,
			PromoteImportance:    0.7,
			PromoteAge:           24 * time.Hour,
			PromoteAccessCount:   2,
			MaxShortTermAge:      168 * time.Hour,
			ShortTermCapacity:    100,
			DecayFactor:          0.95,
			DecayAfter:           7 * 24 * time.Hour,
			DecayInterval:        24 * time.Hour,
			ImportanceFloor:      0.1,
			RecencyScale:         30 * 24 * time.Hour,
			DefaultImportance:    0.5,
			DefaultLimit:         10,
			ContextLimits: ContextLimitsConfig{
				Conversation: 5,
				Experience:   3,
				Preference:   5,
				Emotion:      3,
			},
			ConsolidationEnabled:  true,
			ConsolidationInterval: 5 * time.Minute,
		},
		Emotion: EmotionConfig{
			HistorySize:    100,
			BaselineSize:   5,
			TrendWindow:    10,
			TrendThreshold: 0.3,
		},
		Personality: PersonalityConfig{
			Archetype:      "companion",
			AdjustmentRate: 0.05,
		},
		EventBus: EventBusConfig{
			Enabled:        true,
			Source:         "sallie",
			Transport:      "memory",
			ChannelPrefix:  "sallie:events:",
			MaxRetries:     3,
			InitialBackoff: 50 * time.Millisecond,
			MaxBackoff:     2 * time.Second,
			BackoffFactor:  2,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
			Port:    9091,
		},
		Tracing: TracingConfig{
			Enabled:    false,
			Exporter:   "otlpgrpc",
			Endpoint:   "localhost:4317",
			Insecure:   true,
			Timeout:    5 * time.Second,
			Sampler:    "parentbased_traceidratio",
			SampleRate: 0.1,
		},
	}
}

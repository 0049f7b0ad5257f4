// Package config provides configuration management for the Sallie companion service.
package config

import (
	"fmt"
	"time"
)

// Config is the global configuration.
type Config struct {
	// App is the application configuration.
	App AppConfig `mapstructure:"app" validate:"required"`

	// Server is the HTTP API configuration.
	Server ServerConfig `mapstructure:"server" validate:"required"`

	// Log is the logging configuration.
	Log LogConfig `mapstructure:"log" validate:"required"`

	// Storage is the persistence configuration.
	Storage StorageConfig `mapstructure:"storage"`

	// Memory tunes the memory store.
	Memory MemoryConfig `mapstructure:"memory"`

	// Emotion tunes the emotional state tracker.
	Emotion EmotionConfig `mapstructure:"emotion"`

	// Personality configures the personality adapter.
	Personality PersonalityConfig `mapstructure:"personality"`

	// EventBus configures in-process event publishing.
	EventBus EventBusConfig `mapstructure:"eventbus"`

	// Metrics is the observability configuration.
	Metrics MetricsConfig `mapstructure:"metrics"`

	// Tracing is the distributed tracing configuration.
	Tracing TracingConfig `mapstructure:"tracing"`
}

// AppConfig holds application metadata and settings.
type AppConfig struct {
	// Name is the application name.
	Name string `mapstructure:"name" validate:"required"`

	// Version is the application version.
	Version string `mapstructure:"version"`

	// Environment is the runtime environment (development, staging, production).
	Environment string `mapstructure:"environment" validate:"env"`

	// Debug enables debug mode with verbose logging.
	Debug bool `mapstructure:"debug"`
}

// ServerConfig holds the HTTP server configuration.
type ServerConfig struct {
	// Host is the bind address.
	Host string `mapstructure:"host" validate:"host"`

	// Port is the HTTP API port.
	Port int `mapstructure:"port" validate:"required,min=1,max=65535"`

	HTTP      HTTPConfig      `mapstructure:"http"`
	GRPC      GRPCConfig      `mapstructure:"grpc"`
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
}

// GRPCConfig holds gRPC server settings. The server exposes the standard
// health service and, optionally, reflection.
type GRPCConfig struct {
	// Enabled starts the gRPC server next to the HTTP API.
	Enabled bool `mapstructure:"enabled"`

	// Port is the gRPC listen port. It shares Server.Host with the HTTP API.
	Port int `mapstructure:"port" validate:"min=0,max=65535"`

	// MaxConcurrentStreams limits streams per connection; 0 means the gRPC default.
	MaxConcurrentStreams int `mapstructure:"max_concurrent_streams" validate:"min=0"`

	MaxRecvMsgSize int `mapstructure:"max_recv_msg_size" validate:"min=0"`
	MaxSendMsgSize int `mapstructure:"max_send_msg_size" validate:"min=0"`

	EnableReflection  bool `mapstructure:"enable_reflection"`
	EnableHealthCheck bool `mapstructure:"enable_health_check"`

	// HealthInterval is how often the health service re-checks companion readiness.
	HealthInterval time.Duration `mapstructure:"health_interval" validate:"gt=0"`

	TLS       GRPCTLSConfig       `mapstructure:"tls"`
	Keepalive GRPCKeepaliveConfig `mapstructure:"keepalive"`
}

// GRPCTLSConfig holds gRPC TLS/mTLS settings.
type GRPCTLSConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	CertFile string `mapstructure:"cert_file" validate:"required_if=Enabled true"`
	KeyFile  string `mapstructure:"key_file" validate:"required_if=Enabled true"`

	// CAFile is required when ClientAuth is set.
	CAFile     string `mapstructure:"ca_file" validate:"required_if=ClientAuth true"`
	ClientAuth bool   `mapstructure:"client_auth"`
}

// GRPCKeepaliveConfig holds gRPC keepalive settings.
type GRPCKeepaliveConfig struct {
	MaxIdle     time.Duration `mapstructure:"max_idle" validate:"gte=0"`
	MaxAge      time.Duration `mapstructure:"max_age" validate:"gte=0"`
	MaxAgeGrace time.Duration `mapstructure:"max_age_grace" validate:"gte=0"`

	// Time is the server ping interval; Timeout must be shorter.
	Time    time.Duration `mapstructure:"time" validate:"gte=0"`
	Timeout time.Duration `mapstructure:"timeout" validate:"gte=0"`

	// MinTime is the minimum interval a client may ping at.
	MinTime             time.Duration `mapstructure:"min_time" validate:"gte=0"`
	PermitWithoutStream bool          `mapstructure:"permit_without_stream"`
}

// HTTPConfig holds HTTP-specific settings.
type HTTPConfig struct {
	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout time.Duration `mapstructure:"read_timeout" validate:"gte=0"`

	// WriteTimeout is the maximum duration before timing out writes.
	WriteTimeout time.Duration `mapstructure:"write_timeout" validate:"gte=0"`

	// IdleTimeout is the maximum amount of time to wait for the next request.
	IdleTimeout time.Duration `mapstructure:"idle_timeout" validate:"gte=0"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gte=0"`

	// MaxHeaderBytes limits the size of request headers.
	MaxHeaderBytes int `mapstructure:"max_header_bytes" validate:"min=0"`

	// MaxBodyBytes limits the size of request bodies.
	MaxBodyBytes int64 `mapstructure:"max_body_bytes" validate:"min=0"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	Enabled          bool     `mapstructure:"enabled"`
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	// MaxAge is the preflight cache lifetime in seconds.
	MaxAge int `mapstructure:"max_age" validate:"min=0"`
}

// RateLimitConfig holds per-client request rate limiting.
type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" validate:"gte=0"`
	Burst             int     `mapstructure:"burst" validate:"min=0"`
}

// WebSocketConfig holds the event stream settings.
type WebSocketConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// MaxConnections caps concurrent event stream clients. Zero means unlimited.
	MaxConnections int `mapstructure:"max_connections" validate:"min=0"`

	// BufferSize is the per-client event buffer.
	BufferSize int `mapstructure:"buffer_size" validate:"min=1"`

	WriteTimeout time.Duration `mapstructure:"write_timeout" validate:"gt=0"`
	PingInterval time.Duration `mapstructure:"ping_interval" validate:"gt=0"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is the log level (debug, info, warn, error).
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`

	// Format is the output format (json, text).
	Format string `mapstructure:"format" validate:"oneof=json text"`

	// Output is the output destination (stdout, stderr, or file path).
	Output string `mapstructure:"output"`
}

// StorageConfig holds persistence settings.
type StorageConfig struct {
	// Type is the storage backend (memory, badger, redis, sqlite).
	Type string `mapstructure:"type" validate:"oneof=memory badger redis sqlite"`

	// Timeout bounds every storage call. Zero disables the bound.
	Timeout time.Duration `mapstructure:"timeout" validate:"gte=0"`

	Badger BadgerConfig `mapstructure:"badger"`
	Redis  RedisConfig  `mapstructure:"redis"`
	SQLite SQLiteConfig `mapstructure:"sqlite"`
}

// BadgerConfig holds BadgerDB-specific settings.
type BadgerConfig struct {
	// Path is the database directory path.
	Path string `mapstructure:"path"`

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool `mapstructure:"sync_writes"`

	// ValueLogFileSize is the maximum size of value log files in bytes.
	ValueLogFileSize int64 `mapstructure:"value_log_file_size" validate:"min=0"`

	// NumVersionsToKeep is the number of versions to keep per key.
	NumVersionsToKeep int `mapstructure:"num_versions_to_keep" validate:"min=0"`

	KeyPrefix string `mapstructure:"key_prefix"`
}

// RedisConfig holds Redis-specific settings.
type RedisConfig struct {
	// Address is the Redis server address.
	Address string `mapstructure:"address"`

	// Password is the Redis password.
	Password string `mapstructure:"password"`

	// DB is the Redis database number.
	DB int `mapstructure:"db" validate:"min=0"`

	KeyPrefix   string        `mapstructure:"key_prefix"`
	ScanCount   int64         `mapstructure:"scan_count" validate:"min=0"`
	DialTimeout time.Duration `mapstructure:"dial_timeout" validate:"gte=0"`
}

// SQLiteConfig holds SQLite-specific settings.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string `mapstructure:"path"`
}

// MemoryConfig tunes the memory store.
type MemoryConfig struct {
	AssociationThreshold float64 `mapstructure:"association_threshold" validate:"gt=0,lte=1"`

	TagWeight     float64 `mapstructure:"tag_weight" validate:"gte=0,lte=1"`
	ContentWeight float64 `mapstructure:"content_weight" validate:"gte=0,lte=1"`
	KindWeight    float64 `mapstructure:"kind_weight" validate:"gte=0,lte=1"`

	PromoteImportance  float64       `mapstructure:"promote_importance" validate:"gt=0,lte=1"`
	PromoteAge         time.Duration `mapstructure:"promote_age" validate:"gt=0"`
	PromoteAccessCount int           `mapstructure:"promote_access_count" validate:"min=1"`
	MaxShortTermAge    time.Duration `mapstructure:"max_short_term_age" validate:"gt=0"`
	ShortTermCapacity  int           `mapstructure:"short_term_capacity" validate:"min=1"`

	DecayFactor     float64       `mapstructure:"decay_factor" validate:"gt=0,lte=1"`
	DecayAfter      time.Duration `mapstructure:"decay_after" validate:"gt=0"`
	DecayInterval   time.Duration `mapstructure:"decay_interval" validate:"gt=0"`
	ImportanceFloor float64       `mapstructure:"importance_floor" validate:"gt=0,lt=1"`
	RecencyScale    time.Duration `mapstructure:"recency_scale" validate:"gt=0"`

	DefaultImportance float64 `mapstructure:"default_importance" validate:"gt=0,lte=1"`
	DefaultLimit      int     `mapstructure:"default_limit" validate:"min=1"`

	ContextLimits ContextLimitsConfig `mapstructure:"context_limits"`

	// ConsolidationEnabled starts the background consolidation loop.
	ConsolidationEnabled  bool          `mapstructure:"consolidation_enabled"`
	ConsolidationInterval time.Duration `mapstructure:"consolidation_interval" validate:"gt=0"`
}

// ContextLimitsConfig caps each section of a memory context.
type ContextLimitsConfig struct {
	Conversation int `mapstructure:"conversation" validate:"min=1"`
	Experience   int `mapstructure:"experience" validate:"min=1"`
	Preference   int `mapstructure:"preference" validate:"min=1"`
	Emotion      int `mapstructure:"emotion" validate:"min=1"`
}

// EmotionConfig tunes the emotional state tracker.
type EmotionConfig struct {
	HistorySize    int     `mapstructure:"history_size" validate:"min=1"`
	BaselineSize   int     `mapstructure:"baseline_size" validate:"min=1"`
	TrendWindow    int     `mapstructure:"trend_window" validate:"min=1"`
	TrendThreshold float64 `mapstructure:"trend_threshold" validate:"gt=0,lte=1"`
}

// PersonalityConfig configures the personality adapter.
type PersonalityConfig struct {
	// Archetype is one of companion, mentor, muse, guardian.
	Archetype      string  `mapstructure:"archetype" validate:"archetype"`
	AdjustmentRate float64 `mapstructure:"adjustment_rate" validate:"gt=0,lte=1"`
}

// EventBusConfig configures event publishing.
type EventBusConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// Source identifies this process in event envelopes.
	Source string `mapstructure:"source" validate:"required_if=Enabled true"`

	// Transport carries events: memory (in-process) or redis (Pub/Sub on
	// the storage.redis server, shared between processes).
	Transport string `mapstructure:"transport" validate:"oneof=memory redis"`

	// ChannelPrefix namespaces Redis channels.
	ChannelPrefix string `mapstructure:"channel_prefix"`

	MaxRetries     int           `mapstructure:"max_retries" validate:"min=0"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff" validate:"gt=0"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff" validate:"gtefield=InitialBackoff"`
	BackoffFactor  float64       `mapstructure:"backoff_factor" validate:"gte=1"`
}

// MetricsConfig holds observability settings.
type MetricsConfig struct {
	// Enabled enables metrics collection.
	Enabled bool `mapstructure:"enabled"`

	// Path is the metrics endpoint path.
	Path string `mapstructure:"path" validate:"startswith=/"`

	// Port is the metrics server port.
	Port int `mapstructure:"port" validate:"min=1,max=65535"`
}

// TracingConfig holds distributed tracing settings.
type TracingConfig struct {
	// Enabled enables distributed tracing.
	Enabled bool `mapstructure:"enabled"`

	// Exporter is the span exporter. Only otlpgrpc is supported.
	Exporter string `mapstructure:"exporter" validate:"oneof=otlpgrpc"`

	// Endpoint is the collector endpoint.
	Endpoint string `mapstructure:"endpoint" validate:"required_if=Enabled true"`

	// Insecure disables TLS towards the collector.
	Insecure bool `mapstructure:"insecure"`

	// Headers are sent with every export request.
	Headers map[string]string `mapstructure:"headers"`

	// Timeout bounds a single export.
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`

	// Sampler is always_on, always_off, or parentbased_traceidratio.
	Sampler string `mapstructure:"sampler" validate:"oneof=always_on always_off parentbased_traceidratio"`

	// SampleRate is the fraction of traces to sample (0.0-1.0).
	SampleRate float64 `mapstructure:"sample_rate" validate:"min=0,max=1"`
}

// Validate performs validation on the configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// String returns a string representation of the configuration (without sensitive data).
func (c *Config) String() string {
	return fmt.Sprintf("Config{App: %s, Server: :%d, Env: %s, Storage: %s}",
		c.App.Name, c.Server.Port, c.App.Environment, c.Storage.Type)
}

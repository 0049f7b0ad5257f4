package grpc

import (
	"fmt"
	"time"
)

// Config holds gRPC server configuration.
type Config struct {
	// Address is the listen address, e.g. "0.0.0.0:9090".
	Address string

	TLS       *TLSConfig
	Keepalive *KeepaliveConfig

	// MaxConcurrentStreams limits streams per connection; 0 keeps the gRPC default.
	MaxConcurrentStreams int

	MaxRecvMsgSize int
	MaxSendMsgSize int

	EnableReflection  bool
	EnableHealthCheck bool

	// HealthInterval is how often readiness is re-evaluated for the health service.
	HealthInterval time.Duration
}

// TLSConfig holds TLS/mTLS configuration.
type TLSConfig struct {
	Enabled    bool
	CertFile   string
	KeyFile    string
	CAFile     string
	ClientAuth bool
}

// KeepaliveConfig holds keepalive configuration.
type KeepaliveConfig struct {
	MaxIdle             time.Duration
	MaxAge              time.Duration
	MaxAgeGrace         time.Duration
	Time                time.Duration
	Timeout             time.Duration
	MinTime             time.Duration
	PermitWithoutStream bool
}

// DefaultConfig returns a default gRPC server configuration.
func DefaultConfig() *Config {
	return &Config{
		Address:           ":9090",
		MaxRecvMsgSize:    4 << 20,
		MaxSendMsgSize:    4 << 20,
		EnableHealthCheck: true,
		HealthInterval:    5 * time.Second,
		Keepalive: &KeepaliveConfig{
			MaxIdle:     5 * time.Minute,
			MaxAge:      time.Hour,
			MaxAgeGrace: time.Minute,
			Time:        time.Minute,
			Timeout:     20 * time.Second,
			MinTime:     30 * time.Second,
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Address == "" {
		return fmt.Errorf("address cannot be empty")
	}
	if c.MaxConcurrentStreams < 0 {
		return fmt.Errorf("max concurrent streams cannot be negative")
	}
	if c.MaxRecvMsgSize < 0 || c.MaxSendMsgSize < 0 {
		return fmt.Errorf("message size limits cannot be negative")
	}
	if c.HealthInterval < 0 {
		return fmt.Errorf("health interval cannot be negative")
	}
	if c.TLS != nil {
		if err := c.TLS.Validate(); err != nil {
			return fmt.Errorf("invalid TLS config: %w", err)
		}
	}
	if c.Keepalive != nil {
		if err := c.Keepalive.Validate(); err != nil {
			return fmt.Errorf("invalid keepalive config: %w", err)
		}
	}
	return nil
}

// Validate validates TLS configuration.
func (t *TLSConfig) Validate() error {
	if !t.Enabled {
		return nil
	}
	if t.CertFile == "" || t.KeyFile == "" {
		return fmt.Errorf("cert and key files are required when TLS is enabled")
	}
	if t.ClientAuth && t.CAFile == "" {
		return fmt.Errorf("CA file is required when client auth is enabled")
	}
	return nil
}

// Validate validates keepalive configuration.
func (k *KeepaliveConfig) Validate() error {
	for name, d := range map[string]time.Duration{
		"max idle":      k.MaxIdle,
		"max age":       k.MaxAge,
		"max age grace": k.MaxAgeGrace,
		"time":          k.Time,
		"timeout":       k.Timeout,
		"min time":      k.MinTime,
	} {
		if d < 0 {
			return fmt.Errorf("%s cannot be negative", name)
		}
	}
	if k.Time > 0 && k.Timeout >= k.Time {
		return fmt.Errorf("timeout must be less than ping interval")
	}
	return nil
}

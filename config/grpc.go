package config

import (
	"net"
	"strconv"

	grpcserver "github.com/sallie/companion/pkg/grpc"
)

// ToGRPCConfig converts the gRPC section to server configuration. The server
// binds the same host as the HTTP API.
func (g GRPCConfig) ToGRPCConfig(host string) *grpcserver.Config {
	cfg := &grpcserver.Config{
		Address:              net.JoinHostPort(host, strconv.Itoa(g.Port)),
		MaxConcurrentStreams: g.MaxConcurrentStreams,
		MaxRecvMsgSize:       g.MaxRecvMsgSize,
		MaxSendMsgSize:       g.MaxSendMsgSize,
		EnableReflection:     g.EnableReflection,
		EnableHealthCheck:    g.EnableHealthCheck,
		HealthInterval:       g.HealthInterval,
		Keepalive: &grpcserver.KeepaliveConfig{
			MaxIdle:             g.Keepalive.MaxIdle,
			MaxAge:              g.Keepalive.MaxAge,
			MaxAgeGrace:         g.Keepalive.MaxAgeGrace,
			Time:                g.Keepalive.Time,
			Timeout:             g.Keepalive.Timeout,
			MinTime:             g.Keepalive.MinTime,
			PermitWithoutStream: g.Keepalive.PermitWithoutStream,
		},
	}
	if g.TLS.Enabled {
		cfg.TLS = &grpcserver.TLSConfig{
			Enabled:    true,
			CertFile:   g.TLS.CertFile,
			KeyFile:    g.TLS.KeyFile,
			CAFile:     g.TLS.CAFile,
			ClientAuth: g.TLS.ClientAuth,
		}
	}
	return cfg
}

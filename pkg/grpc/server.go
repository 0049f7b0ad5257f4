// Package grpc runs the companion's gRPC endpoint: the standard health and
// reflection services behind the interceptor chain, next to the HTTP API.
package grpc

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"

	"github.com/sallie/companion/pkg/grpc/interceptors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"
)

// Options carries the collaborators the server reports to.
type Options struct {
	// Readiness gates the health service; nil reports serving once started.
	Readiness ReadinessFunc
	Logger    interceptors.Logger
	// Metrics receives per-call metrics; nil disables the metrics interceptor.
	Metrics interceptors.Recorder
	Tracing bool
}

// Server represents a gRPC server instance.
type Server struct {
	config       *Config
	opts         Options
	log          interceptors.Logger
	grpcSrv      *grpc.Server
	listener     net.Listener
	healthServer *HealthServer
	pending      []serviceRegistration
	errCh        chan error
	mu           sync.RWMutex
	running      bool
}

type serviceRegistration struct {
	desc *grpc.ServiceDesc
	impl any
}

// New creates a gRPC server with the given configuration.
func New(cfg *Config, opts Options) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	var log interceptors.Logger = interceptors.NopLogger{}
	if opts.Logger != nil {
		log = opts.Logger
	}
	return &Server{
		config: cfg,
		opts:   opts,
		log:    log,
		errCh:  make(chan error, 1),
	}, nil
}

// Start listens and serves in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("server already running")
	}

	listener, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Address, err)
	}

	opts, err := s.buildServerOptions()
	if err != nil {
		listener.Close()
		return fmt.Errorf("failed to build server options: %w", err)
	}

	s.listener = listener
	s.grpcSrv = grpc.NewServer(opts...)

	for _, reg := range s.pending {
		s.grpcSrv.RegisterService(reg.desc, reg.impl)
	}
	s.pending = nil

	if s.config.EnableReflection {
		reflection.Register(s.grpcSrv)
	}

	if s.config.EnableHealthCheck {
		s.healthServer = NewHealthServer(s.opts.Readiness)
		grpc_health_v1.RegisterHealthServer(s.grpcSrv, s.healthServer.GetServer())
		s.healthServer.Run(s.config.HealthInterval)
	}

	s.running = true
	srv := s.grpcSrv
	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			s.log.ErrorContext(context.Background(), "gRPC server error", "error", err)
			select {
			case s.errCh <- err:
			default:
			}
		}
	}()

	s.log.InfoContext(context.Background(), "gRPC server listening",
		"address", listener.Addr().String(),
		"tls", s.config.TLS != nil && s.config.TLS.Enabled,
		"reflection", s.config.EnableReflection,
	)
	return nil
}

// Stop marks the server NOT_SERVING and drains in-flight calls until ctx
// expires, then forces the remaining connections closed.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false

	if s.healthServer != nil {
		s.healthServer.Stop()
	}

	stopped := make(chan struct{})
	go func() {
		s.grpcSrv.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
		return nil
	case <-ctx.Done():
		s.grpcSrv.Stop()
		return fmt.Errorf("graceful shutdown timeout, forced stop")
	}
}

// Err reports a failure of the serve loop after Start returned.
func (s *Server) Err() <-chan error {
	return s.errCh
}

// RegisterService registers a gRPC service, queuing it until Start when the
// server has not been built yet.
func (s *Server) RegisterService(desc *grpc.ServiceDesc, impl any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.grpcSrv != nil {
		s.grpcSrv.RegisterService(desc, impl)
		return
	}
	s.pending = append(s.pending, serviceRegistration{desc: desc, impl: impl})
}

// UpdateHealth re-evaluates readiness immediately instead of waiting for the
// next health tick. It reports false when health checks are disabled.
func (s *Server) UpdateHealth() bool {
	s.mu.RLock()
	h := s.healthServer
	running := s.running
	s.mu.RUnlock()

	if h == nil || !running {
		return false
	}
	return h.Update()
}

// Address returns the listening address, or the configured one before Start.
func (s *Server) Address() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.config.Address
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

func (s *Server) buildServerOptions() ([]grpc.ServerOption, error) {
	var opts []grpc.ServerOption

	if s.config.TLS != nil && s.config.TLS.Enabled {
		creds, err := s.buildTLSCredentials()
		if err != nil {
			return nil, fmt.Errorf("failed to build TLS credentials: %w", err)
		}
		opts = append(opts, grpc.Creds(creds))
	}

	if s.config.MaxConcurrentStreams > 0 {
		opts = append(opts, grpc.MaxConcurrentStreams(uint32(s.config.MaxConcurrentStreams)))
	}

	if ka := s.config.Keepalive; ka != nil {
		opts = append(opts,
			grpc.KeepaliveParams(keepalive.ServerParameters{
				MaxConnectionIdle:     ka.MaxIdle,
				MaxConnectionAge:      ka.MaxAge,
				MaxConnectionAgeGrace: ka.MaxAgeGrace,
				Time:                  ka.Time,
				Timeout:               ka.Timeout,
			}),
			grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
				MinTime:             ka.MinTime,
				PermitWithoutStream: ka.PermitWithoutStream,
			}),
		)
	}

	if s.config.MaxRecvMsgSize > 0 {
		opts = append(opts, grpc.MaxRecvMsgSize(s.config.MaxRecvMsgSize))
	}
	if s.config.MaxSendMsgSize > 0 {
		opts = append(opts, grpc.MaxSendMsgSize(s.config.MaxSendMsgSize))
	}

	chain := interceptors.DefaultChain(s.log, s.opts.Metrics, s.opts.Tracing)
	return append(opts, chain.Build()...), nil
}

func (s *Server) buildTLSCredentials() (credentials.TransportCredentials, error) {
	tlsCfg := s.config.TLS
	if !tlsCfg.ClientAuth {
		creds, err := credentials.NewServerTLSFromFile(tlsCfg.CertFile, tlsCfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load server certificate: %w", err)
		}
		return creds, nil
	}

	cert, err := tls.LoadX509KeyPair(tlsCfg.CertFile, tlsCfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load server certificate: %w", err)
	}
	caCert, err := os.ReadFile(tlsCfg.CAFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA certificate: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("failed to parse CA certificate")
	}

	return credentials.NewTLS(&tls.Config{
		Certificates: []tls.Certificate{cert},
		ClientAuth:   tls.RequireAndVerifyClientCert,
		ClientCAs:    pool,
		MinVersion:   tls.VersionTLS12,
	}), nil
}

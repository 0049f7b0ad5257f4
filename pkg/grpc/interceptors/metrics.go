package interceptors

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// Recorder receives gRPC call metrics. metrics.Manager implements it.
type Recorder interface {
	RecordGRPCRequest(ctx context.Context, method, code string, duration time.Duration)
	RecordGRPCStreamMessages(method, direction string, count int)
	IncGRPCInFlight(method string)
	DecGRPCInFlight(method string)
}

// MetricsUnaryInterceptor records count, status and latency of unary calls.
func MetricsUnaryInterceptor(rec Recorder) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		rec.IncGRPCInFlight(info.FullMethod)
		defer rec.DecGRPCInFlight(info.FullMethod)

		resp, err := handler(ctx, req)
		rec.RecordGRPCRequest(ctx, info.FullMethod, status.Code(err).String(), time.Since(start))
		return resp, err
	}
}

// MetricsStreamInterceptor records streams and the messages they carried.
func MetricsStreamInterceptor(rec Recorder) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		rec.IncGRPCInFlight(info.FullMethod)
		defer rec.DecGRPCInFlight(info.FullMethod)

		counted := &countingStream{ServerStream: ss}
		err := handler(srv, counted)
		rec.RecordGRPCRequest(ss.Context(), info.FullMethod, status.Code(err).String(), time.Since(start))
		rec.RecordGRPCStreamMessages(info.FullMethod, "recv", counted.recv)
		rec.RecordGRPCStreamMessages(info.FullMethod, "sent", counted.sent)
		return err
	}
}

type countingStream struct {
	grpc.ServerStream
	recv int
	sent int
}

func (s *countingStream) RecvMsg(m any) error {
	if err := s.ServerStream.RecvMsg(m); err != nil {
		return err
	}
	s.recv++
	return nil
}

func (s *countingStream) SendMsg(m any) error {
	if err := s.ServerStream.SendMsg(m); err != nil {
		return err
	}
	s.sent++
	return nil
}

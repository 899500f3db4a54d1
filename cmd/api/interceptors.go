package main

import (
	"context"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/PaulBabatuyi/konsultasi-chat/internal/middleware"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

// streamInterceptors returns the stream chain: recovery -> logging -> rate
// limiter on stream opens.
func streamInterceptors(limiter *middleware.LimiterStore, log *slog.Logger) []grpc.StreamServerInterceptor {
	limited := map[string]bool{
		eventsMethod: true,
	}
	return []grpc.StreamServerInterceptor{
		recoveryStreamInterceptor(log),
		loggingStreamInterceptor(log),
		middleware.RateLimitStreamInterceptor(limiter, limited),
	}
}

// loggingStreamInterceptor logs every finished stream with its duration.
func loggingStreamInterceptor(log *slog.Logger) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		err := handler(srv, ss)

		attrs := []any{
			"method", info.FullMethod,
			"peer", peerAddr(ss.Context()),
			"duration", time.Since(start),
		}
		if err != nil {
			log.Warn("stream closed with error", append(attrs, "code", status.Code(err).String(), "error", err)...)
			return err
		}
		log.Info("stream closed", attrs...)
		return nil
	}
}

// recoveryStreamInterceptor turns a handler panic into codes.Internal so one
// bad stream does not take the process down.
func recoveryStreamInterceptor(log *slog.Logger) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) (err error) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("panic in stream handler", "method", info.FullMethod, "panic", r, "stack", string(debug.Stack()))
				err = status.Errorf(codes.Internal, "internal error")
			}
		}()
		return handler(srv, ss)
	}
}

func peerAddr(ctx context.Context) string {
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		return p.Addr.String()
	}
	return "unknown"
}

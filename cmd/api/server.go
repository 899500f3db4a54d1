package main

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/PaulBabatuyi/konsultasi-chat/internal/chat"
	"github.com/PaulBabatuyi/konsultasi-chat/internal/config"
	"github.com/PaulBabatuyi/konsultasi-chat/internal/middleware"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const (
	serviceName  = "chat.v1.ConsultationChat"
	eventsMethod = "/" + serviceName + "/Events"
)

// Server carries chat events over a bidirectional gRPC stream. Frames are
// the same JSON envelopes the WebSocket transport uses.
type Server struct {
	gateway *chat.Gateway
	log     *slog.Logger
}

// newServer returns a ready-to-use Server wired to the chat gateway.
func newServer(gateway *chat.Gateway, log *slog.Logger) *Server {
	return &Server{gateway: gateway, log: log}
}

// eventsServer is the handler type of the service description.
type eventsServer interface {
	Events(stream grpc.ServerStream) error
}

func eventsHandler(srv any, stream grpc.ServerStream) error {
	return srv.(eventsServer).Events(stream)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*eventsServer)(nil),
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Events",
			Handler:       eventsHandler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "chat/v1/consultation.json",
}

// registerService registers the chat service on the given gRPC server.
func registerService(s *grpc.Server, srv *Server) {
	s.RegisterService(&serviceDesc, srv)
}

// jsonCodec lets clients pick JSON frames with the "json" content-subtype.
// The default proto codec stays in place for the health service.
type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// newGRPCServer assembles the gRPC server: optional TLS, the interceptor
// chain, the chat service and the health service.
func newGRPCServer(cfg *config.Config, srv *Server, limiter *middleware.LimiterStore, log *slog.Logger) (*grpc.Server, *health.Server, error) {
	var serverOpts []grpc.ServerOption

	// If TLS certs are configured, create server credentials and require TLS
	if cfg.TLSCert != "" && cfg.TLSKey != "" {
		creds, err := credentials.NewServerTLSFromFile(cfg.TLSCert, cfg.TLSKey)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load TLS certs: %w", err)
		}
		serverOpts = append(serverOpts, grpc.Creds(creds))
	} else if cfg.RequireTLS {
		return nil, nil, fmt.Errorf("REQUIRE_TLS is true but TLS_CERT/TLS_KEY are not configured")
	}

	serverOpts = append(serverOpts, grpc.ChainStreamInterceptor(streamInterceptors(limiter, log)...))

	s := grpc.NewServer(serverOpts...)
	registerService(s, srv)

	hs := health.NewServer()
	hs.SetServingStatus(serviceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, hs)
	return s, hs, nil
}

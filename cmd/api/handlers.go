package main

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/PaulBabatuyi/konsultasi-chat/internal/session"
	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Events is the bidirectional chat stream. Every inbound frame is handed to
// the gateway in arrival order; outbound frames are pushed by the session
// registry whenever a room this stream joined receives an event.
func (s *Server) Events(stream grpc.ServerStream) error {
	conn := &streamConn{id: "grpc-" + uuid.NewString(), stream: stream}
	s.gateway.Connect(conn)
	defer s.gateway.Disconnect(conn)

	ctx := stream.Context()
	// a unit of work already read finishes even if the client disconnects
	work := context.WithoutCancel(ctx)
	for {
		var ev session.Event
		err := stream.RecvMsg(&ev)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			// client went away; nothing to report
			if ctx.Err() != nil || status.Code(err) == codes.Canceled {
				return nil
			}
			return status.Errorf(codes.Internal, "receive error: %v", err)
		}

		s.gateway.Handle(work, conn, ev)
	}
}

// streamConn adapts a server stream to session.Conn. Sends come from many
// goroutines while gRPC allows one sender at a time, hence the mutex.
type streamConn struct {
	id     string
	mu     sync.Mutex
	stream grpc.ServerStream
}

func (c *streamConn) ID() string { return c.id }

func (c *streamConn) Send(ev session.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stream.SendMsg(&ev)
}

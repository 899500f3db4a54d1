package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/PaulBabatuyi/konsultasi-chat/internal/chat"
	"github.com/PaulBabatuyi/konsultasi-chat/internal/config"
	"github.com/PaulBabatuyi/konsultasi-chat/internal/data"
	"github.com/PaulBabatuyi/konsultasi-chat/internal/db"
	"github.com/PaulBabatuyi/konsultasi-chat/internal/fanout"
	"github.com/PaulBabatuyi/konsultasi-chat/internal/middleware"
	"github.com/PaulBabatuyi/konsultasi-chat/internal/session"
	"github.com/mama165/sdk-go/logs"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run wires every component and blocks until a signal or a server failure.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logs.GetLoggerFromString(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database
	dbClient, err := db.New(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing MongoDB connection")
		_ = dbClient.Close(context.Background())
	}()

	// Ensure indexes exist
	if err := dbClient.CreateIndexes(ctx); err != nil {
		return err
	}

	conversations := data.NewConversationsStore(dbClient.ChatListsCollection(), db.SchedulesCollection)
	messages := data.NewMessagesStore(dbClient.ChatsCollection())

	rooms := session.NewRegistry(log)
	pub, closeBus, err := newPublisher(ctx, cfg, rooms, log)
	if err != nil {
		return err
	}
	defer closeBus()

	// events inside a connection are limited per connection id; stream
	// opens and HTTP calls per client address
	eventLimiter := middleware.NewLimiterStore(cfg.RateLimitEPM, cfg.RateLimitBurst, time.Minute)
	defer eventLimiter.Stop()
	clientLimiter := middleware.NewLimiterStore(cfg.RateLimitEPM, cfg.RateLimitBurst, time.Minute)
	defer clientLimiter.Stop()

	gate := chat.NewGate(cfg.ClosedScheduleStatuses()...)
	svc := chat.NewService(conversations, messages, gate, pub, log)
	gateway := chat.NewGateway(svc, rooms, eventLimiter, cfg.PersistTimeout, log)

	grpcServer, health, err := newGRPCServer(cfg, newServer(gateway, log), clientLimiter, log)
	if err != nil {
		return err
	}
	app := newHTTPApp(ctx, svc, gateway, clientLimiter, cfg.AllowedOrigins(), log)

	listenAddr := fmt.Sprintf(":%d", cfg.GRPCPort)
	lis, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", listenAddr, err)
	}

	errCh := make(chan error, 2)
	go func() {
		log.Info("gRPC server listening", "addr", listenAddr)
		if err := grpcServer.Serve(lis); err != nil {
			errCh <- fmt.Errorf("gRPC server exit: %w", err)
		}
	}()
	go func() {
		log.Info("HTTP server listening", "addr", cfg.HTTPAddr)
		if err := app.Listen(cfg.HTTPAddr); err != nil {
			errCh <- fmt.Errorf("HTTP server exit: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		err = nil
	case err = <-errCh:
	}

	log.Info("shutting down")
	health.Shutdown()
	if shutdownErr := app.ShutdownWithTimeout(shutdownTimeout); shutdownErr != nil {
		log.Warn("HTTP shutdown", "error", shutdownErr)
	}
	grpcServer.GracefulStop()
	return err
}

// newPublisher builds the fanout selected by FANOUT_BUS and starts its
// subscriber. The returned func releases the bus connection.
func newPublisher(ctx context.Context, cfg *config.Config, rooms *session.Registry, log *slog.Logger) (fanout.Publisher, func(), error) {
	type bus interface {
		fanout.Publisher
		Run(ctx context.Context) error
		Close() error
	}

	var b bus
	switch cfg.FanoutBus {
	case config.BusRedis:
		r, err := fanout.NewRedis(ctx, cfg.RedisURL, cfg.FanoutChannel, rooms, log)
		if err != nil {
			return nil, nil, err
		}
		b = r
	case config.BusNATS:
		n, err := fanout.NewNATS(cfg.NATSURL, cfg.FanoutChannel, rooms, log)
		if err != nil {
			return nil, nil, err
		}
		b = n
	default:
		return fanout.NewLocal(rooms), func() {}, nil
	}

	go func() {
		if err := b.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("fanout subscriber stopped", "bus", cfg.FanoutBus, "error", err)
		}
	}()
	return b, func() { _ = b.Close() }, nil
}

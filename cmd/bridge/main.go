package main

import (
	"bot-bridge/auth"
	"bot-bridge/codec"
	"bot-bridge/domain"
	"bot-bridge/domain/event"
	grpcserver "bot-bridge/infrastructure/grpc/server"
	"bot-bridge/infrastructure/http/server"
	"bot-bridge/infrastructure/nats"
	"bot-bridge/infrastructure/search"
	"bot-bridge/infrastructure/storage"
	"bot-bridge/moderation"
	"bot-bridge/observability"
	"bot-bridge/runtime"
	"bot-bridge/runtime/workers"
	"bot-bridge/services"
	"bot-bridge/sink"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/database"
	"github.com/mama165/sdk-go/logs"
	"google.golang.org/grpc"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

const shutdownTimeout = 5 * time.Second

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Bridge terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run wires every component and blocks until a signal or a server failure.
// Returning instead of exiting lets the deferred closes flush the stores.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return exitConfig, err
	}
	charReplacement, err := config.CharacterRune()
	if err != nil {
		return exitConfig, err
	}
	logger := logs.GetLoggerFromString(config.LogLevel)

	identityList := domain.DefaultIdentities
	if config.IdentitiesFile != "" {
		if identityList, err = domain.LoadIdentities(config.IdentitiesFile); err != nil {
			return exitConfig, fmt.Errorf("identities: %w", err)
		}
	}
	identities, err := domain.NewIdentityRegistry(identityList)
	if err != nil {
		return exitConfig, fmt.Errorf("identities: %w", err)
	}

	var moderator *moderation.Moderator
	if words := moderation.ParseWords(config.CensoredWords); len(words) > 0 {
		if moderator, err = moderation.NewModerator(words, charReplacement, logger); err != nil {
			return exitConfig, fmt.Errorf("moderation: %w", err)
		}
	}

	// 2. Storage
	repository, err := storage.Open(storage.Options{
		Backend:          config.StorageBackend,
		BadgerFilepath:   config.BadgerFilepath,
		SnapshotFilepath: config.SnapshotFilepath,
		Retention:        config.MessageRetention,
		Debug:            config.Debug(),
	}, logger)
	if err != nil {
		return exitRuntime, fmt.Errorf("storage: %w", err)
	}
	defer func() {
		logger.Info("Closing message store...")
		_ = repository.Close()
	}()

	if badgerRepository, ok := repository.(*storage.MessageRepository); ok && config.Debug() {
		endpoint := "/inspect"
		logger.Info("Debug Badger inspector available",
			"url", fmt.Sprintf("http://localhost:%d%s", config.DebugPort, endpoint))
		database.StartDebugServer(badgerRepository.DB(), config.DebugPort, endpoint, storage.MessageMapper)
	}

	messages := domain.NewMessageLog(identities, config.MessageRetention).WithMaxLength(config.MaxContentLength)
	if err := restore(logger, repository, messages); err != nil {
		return exitRuntime, err
	}

	var index search.ISearchIndex
	if config.SearchEnabled {
		blugeIndex, err := search.Open(config.SearchIndexPath, logger)
		if err != nil {
			return exitRuntime, fmt.Errorf("search index: %w", err)
		}
		defer func() {
			logger.Info("Closing search index...")
			_ = blugeIndex.Close()
		}()
		for _, message := range messages.All() {
			if err := blugeIndex.IndexMessage(message); err != nil {
				logger.Warn("Unable to index restored message", "message_id", message.ID, "error", err)
			}
		}
		index = blugeIndex
	}

	// 3. Hub & permanent sinks
	permanent := make(chan event.DomainEvent, config.BufferSize)
	hub := runtime.NewHub(logger, identities, messages, runtime.NewRegistry(), runtime.HubConfig{
		HistoryLimit:  config.HistoryLimit,
		TypingTimeout: config.TypingTimeout,
		SinkTimeout:   config.DeliveryTimeout,
	}).WithPermanentSink(permanent)
	if moderator != nil {
		hub.WithModerator(moderator)
	}

	metrics := observability.NewMetrics(hub)
	if moderator != nil {
		moderator.WithHitCounter(metrics)
	}
	encoder := codec.NewEncoder(identities)

	fanout := workers.NewEventFanout(logger, permanent, config.SinkTimeout).
		Add(sink.NewDiskSink(repository, logger), sink.NewMetricsSink(metrics)).
		WithFailureCounter(metrics)
	if index != nil {
		fanout.Add(sink.NewSearchSink(index))
	}
	if config.NatsURL != "" {
		publisher, err := nats.Connect(config.NatsURL, config.NatsSubject, logger)
		if err != nil {
			return exitRuntime, fmt.Errorf("nats: %w", err)
		}
		defer publisher.Close()
		fanout.Add(sink.NewMirrorSink(publisher, encoder))
	}

	sup := workers.NewSupervisor(logger, config.RestartInterval).WithRestartObserver(metrics)
	sup.Add(hub, fanout, workers.NewChannelCapacityWorker(logger,
		[]workers.NamedChannel{{Name: "permanent", Channel: permanent}}, metrics, config.MetricInterval).
		WithLowCapacityThreshold(config.LowCapacityThreshold))

	monitor, err := observability.NewProcessMonitor()
	if err != nil {
		logger.Warn("Process stats unavailable", "error", err)
		monitor = nil
	} else {
		sup.Add(workers.NewHeartbeatWorker(logger, monitor, config.MetricInterval))
	}

	// 4. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 2)

	var grpcServer *grpc.Server
	if config.GRPCHealthPort > 0 {
		healthServer := grpcserver.NewHealthServer(logger, hub, grpcserver.DefaultHealthInterval)
		sup.Add(healthServer)
		grpcServer = grpcserver.NewGRPCServer(logger)
		healthServer.Register(grpcServer)

		address := fmt.Sprintf("%s:%d", config.Host, config.GRPCHealthPort)
		listener, err := net.Listen("tcp", address)
		if err != nil {
			return exitRuntime, fmt.Errorf("failed to listen on %s: %w", address, err)
		}
		go func() {
			logger.Info("Starting gRPC health server", "address", address)
			if err := grpcServer.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				errChan <- fmt.Errorf("gRPC server error: %w", err)
			}
		}()
	}

	// 5. Workers
	supervised := make(chan struct{})
	go func() {
		logger.Info("Starting hub...")
		sup.Run(ctx)
		close(supervised)
	}()

	// 6. HTTP & WebSocket
	service := services.NewChatService(hub, index, logger)
	httpServer := server.New(logger, service, encoder,
		auth.NewAuthenticator(config.APIKeyHash, config.JWTSecret), metrics, monitor,
		server.Config{
			HistoryLimit:         config.HistoryLimit,
			Retention:            config.MessageRetention,
			StaticDir:            config.StaticDir,
			ConnectionBufferSize: config.ConnectionBufferSize,
			PingPeriod:           config.WSPingPeriod,
			RateLimit:            config.WSRateLimit,
			RateBurst:            config.WSRateBurst,
			AccessLog:            config.Debug(),
		})
	go func() {
		if err := httpServer.Listen(config.Address()); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// 7. Wait for Stop or Error
	code, runErr := exitOK, error(nil)
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case runErr = <-errChan:
		code = exitRuntime
	}

	// 8. Graceful Shutdown
	logger.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", "error", err)
	}
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
	sup.Stop()
	<-supervised
	logger.Info("Program stopped cleanly")

	return code, runErr
}

// restore seeds the log from the store and deletes what no longer fits.
func restore(logger *slog.Logger, repository storage.IMessageRepository, messages *domain.MessageLog) error {
	persisted, err := repository.LoadMessages()
	if err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	for _, dropped := range messages.Restore(persisted) {
		if err := repository.DeleteMessage(dropped.ID); err != nil {
			logger.Warn("Unable to delete message past retention", "message_id", dropped.ID, "error", err)
		}
	}
	logger.Info("Message log restored", "messages", messages.Len(), "last_id", messages.LastID())
	return nil
}

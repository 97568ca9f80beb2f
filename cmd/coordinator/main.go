// Command coordinator runs the saga coordination HTTP API: it wires
// the state store, event log producer, participant registry,
// compensation engine, and orchestrator, then serves
// POST /saga/execute and friends until terminated.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/logichill/sagaforge/compensation"
	"github.com/logichill/sagaforge/di"
	"github.com/logichill/sagaforge/errors"
	"github.com/logichill/sagaforge/eventlog"
	"github.com/logichill/sagaforge/eventlog/memorylog"
	"github.com/logichill/sagaforge/eventlog/natsstream"
	"github.com/logichill/sagaforge/eventlog/redisstream"
	"github.com/logichill/sagaforge/httpapi"
	"github.com/logichill/sagaforge/logging"
	"github.com/logichill/sagaforge/metrics"
	"github.com/logichill/sagaforge/obslog"
	"github.com/logichill/sagaforge/orchestrator"
	"github.com/logichill/sagaforge/participant"
	"github.com/logichill/sagaforge/sagastore"
	"github.com/logichill/sagaforge/sagastore/sqlstore"
)

func main() {
	logger := logging.NewStdLogger("coordinator")
	logging.SetLogger(logger)
	ctx := context.Background()

	container := di.New()

	store, err := buildStore(logger)
	must(err)
	container.Register(store)

	producer, err := buildProducer(logger)
	must(err)

	registry := buildParticipantRegistry()
	client := participant.NewClient(registry, nil, logger)
	m := metrics.New()
	rec := obslog.New(os.Stdout, logger)
	engine := compensation.New(store, producer, client, m, rec)
	plans := orchestrator.NewPlanRegistry()
	coordinator := orchestrator.New(store, producer, client, plans, engine, m, rec, logger)
	container.Register(coordinator)

	if err := coordinator.ReplayIncomplete(ctx); err != nil {
		logger.Error(ctx, "startup replay failed", logging.Error(err))
	}

	server := httpapi.New(coordinator, m, producer, logger)
	cfg := httpapi.DefaultConfig()
	if addr := os.Getenv("SAGAFORGE_ADDR"); addr != "" {
		cfg.Addr = addr
	}

	go func() {
		logger.Info(ctx, "coordinator listening", logging.String("addr", cfg.Addr))
		if err := server.Start(cfg); err != nil {
			logger.Error(ctx, "http server stopped", logging.Error(err))
		}
	}()

	waitForShutdown(ctx, logger, server, producer)
}

func waitForShutdown(ctx context.Context, logger logging.ILogger, server *httpapi.Server, producer eventlog.Producer) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		logger.Error(ctx, "graceful shutdown failed", logging.Error(err))
	}
	_ = producer.Close()
}

// buildStore selects the state store backend via SAGAFORGE_STORE_DSN:
// empty uses an in-memory store (development/tests), non-empty opens a
// sqlite-backed store at that path.
func buildStore(logger logging.ILogger) (sagastore.Store, error) {
	dsn := os.Getenv("SAGAFORGE_STORE_DSN")
	if dsn == "" {
		return sagastore.NewMemoryStore(), nil
	}
	store, err := sqlstore.Open(sqlstore.Config{Driver: "sqlite", DSN: dsn, Logger: logger})
	if err != nil {
		return nil, errors.WrapDatabaseError(context.Background(), err, "open saga store")
	}
	return store, nil
}

// buildProducer selects the event log backend via SAGAFORGE_EVENTLOG:
// "redis", "nats", or unset/"memory" for the in-process default.
func buildProducer(logger logging.ILogger) (eventlog.Producer, error) {
	partitions := envInt("SAGAFORGE_EVENTLOG_PARTITIONS", 8)

	switch os.Getenv("SAGAFORGE_EVENTLOG") {
	case "redis":
		return redisstream.New(redisstream.Config{
			Addr:       os.Getenv("SAGAFORGE_REDIS_ADDR"),
			Partitions: partitions,
			Logger:     logger,
		})
	case "nats":
		return natsstream.New(natsstream.Config{
			URL:        os.Getenv("SAGAFORGE_NATS_URL"),
			Stream:     "SAGAFORGE",
			Partitions: partitions,
			Logger:     logger,
		})
	default:
		return memorylog.New(partitions), nil
	}
}

// buildParticipantRegistry registers the three example participants
// from environment-configured base URLs. ExecuteSaga does not check a
// plan's services against it at admission: a step naming an unregistered
// service fails when it is called, and the saga is compensated.
func buildParticipantRegistry() *participant.Registry {
	registry := participant.NewRegistry()
	registry.Register(participant.Descriptor{
		ServiceName:    "inventory",
		BaseURL:        envString("SAGAFORGE_INVENTORY_URL", "http://localhost:9001"),
		SupportedSteps: []string{"VerifyStock", "ReserveStock"},
	})
	registry.Register(participant.Descriptor{
		ServiceName:    "payments",
		BaseURL:        envString("SAGAFORGE_PAYMENTS_URL", "http://localhost:9002"),
		SupportedSteps: []string{"ProcessPayment"},
	})
	registry.Register(participant.Descriptor{
		ServiceName:    "orders",
		BaseURL:        envString("SAGAFORGE_ORDERS_URL", "http://localhost:9003"),
		SupportedSteps: []string{"ConfirmOrder"},
	})
	return registry
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}

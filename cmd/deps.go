package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	pgdriver "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/frahmantamala/courier-fulfillment/internal"
	"github.com/frahmantamala/courier-fulfillment/internal/broker"
	"github.com/frahmantamala/courier-fulfillment/internal/broker/kafka"
	"github.com/frahmantamala/courier-fulfillment/internal/broker/nats"
	"github.com/frahmantamala/courier-fulfillment/internal/core/events"
	"github.com/frahmantamala/courier-fulfillment/internal/jobs"
)

// initDB opens one pgx pool shared by sqlx (health, seeding) and gorm
// (repositories).
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, *gorm.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.GetDSN())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	gdb, err := gorm.Open(pgdriver.New(pgdriver.Config{Conn: dbConn.DB}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		_ = dbConn.Close()
		return nil, nil, fmt.Errorf("failed to open gorm: %w", err)
	}

	return dbConn, gdb, nil
}

// jobBackend returns the delayed job queue and, for redis, the client that
// must be closed with it.
func jobBackend(cfg *internal.Config) (jobs.Queue, *redis.Client) {
	if cfg.Jobs.Backend == "memory" {
		return jobs.NewMemoryQueue(), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	return jobs.NewRedisQueue(client, cfg.Redis.KeyPrefix, cfg.Jobs.JobRetention), client
}

// eventSink connects the configured broker. "none" keeps events in process.
func eventSink(cfg internal.EventsConfig, logger *slog.Logger) (broker.Sink, error) {
	switch cfg.Broker {
	case "kafka":
		return kafka.NewProducer(cfg.KafkaBrokers), nil
	case "nats":
		return nats.Connect(cfg.NatsURL, logger)
	}
	return nil, nil
}

// newEventBus builds the bus and relays every event to the broker when one
// is configured. The returned closer flushes the sink.
func newEventBus(cfg internal.EventsConfig, logger *slog.Logger) (*events.EventBus, io.Closer, error) {
	bus := events.NewEventBus(logger)

	sink, err := eventSink(cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect %s broker: %w", cfg.Broker, err)
	}
	if sink == nil {
		return bus, nopCloser{}, nil
	}

	broker.NewForwarder(sink, cfg.TopicPrefix, logger).Register(bus)
	logger.Info("forwarding events", "broker", cfg.Broker, "topic_prefix", cfg.TopicPrefix)
	return bus, sink, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

type redisPinger struct{ client *redis.Client }

func (p redisPinger) PingContext(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

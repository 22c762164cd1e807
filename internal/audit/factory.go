package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"

	"credentialing-backend/internal/config"
	"credentialing-backend/internal/store"
)

// Open builds the sink selected by cfg.Driver. A comma-separated driver list
// such as "outbox,redis" fans every event out to each sink through Multi.
// The returned shutdown func flushes and releases whatever the sinks hold.
func Open(cfg config.AuditConfig, s *store.Store, logger *slog.Logger) (Sink, func(context.Context) error, error) {
	drivers := strings.Split(cfg.Driver, ",")
	if len(drivers) == 1 {
		return openOne(strings.TrimSpace(cfg.Driver), cfg, s, logger)
	}

	var (
		sinks   Multi
		closers []func(context.Context) error
	)
	closeAll := func(ctx context.Context) error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i](ctx))
		}
		return errors.Join(errs...)
	}
	for _, d := range drivers {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		sink, closeFn, err := openOne(d, cfg, s, logger)
		if err != nil {
			_ = closeAll(context.Background())
			return nil, nil, err
		}
		sinks = append(sinks, sink)
		closers = append(closers, closeFn)
	}
	if len(sinks) == 0 {
		return nil, nil, fmt.Errorf("audit.driver %q names no sinks", cfg.Driver)
	}
	return sinks, closeAll, nil
}

func openOne(driver string, cfg config.AuditConfig, s *store.Store, logger *slog.Logger) (Sink, func(context.Context) error, error) {
	noClose := func(context.Context) error { return nil }

	switch driver {
	case "", "log":
		return NewLogSink(logger), noClose, nil
	case "none":
		return Noop{}, noClose, nil
	case "outbox":
		ob := NewOutbox(s.DB, s.Dialect, logger, cfg.BufferSize, cfg.FlushIntervalMs)
		return ob, ob.Stop, nil
	case "kafka":
		if len(cfg.KafkaBrokers) == 0 {
			return nil, nil, fmt.Errorf("audit.kafka_brokers is required for the kafka sink")
		}
		sink := NewKafkaSink(NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic))
		return sink, func(context.Context) error { return sink.Close() }, nil
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return NewRedisSink(client, cfg.RedisStream), func(context.Context) error { return client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown audit driver %q", driver)
	}
}

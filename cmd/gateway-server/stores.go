package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/bcgov/healthgateway-sub024/internal/config"
	"github.com/bcgov/healthgateway-sub024/internal/platform/audit"
	"github.com/bcgov/healthgateway-sub024/internal/platform/db"
)

// auditStores holds the selected audit store, the readiness checks of its
// backing services and what must be closed on shutdown.
type auditStores struct {
	name     string
	primary  audit.Store
	sinks    []audit.Store
	checkers []db.Checker
	closers  []func() error
}

// openAuditStores connects the store named by AUDIT_STORE.
func openAuditStores(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*auditStores, error) {
	s := &auditStores{name: cfg.AuditStore}

	switch cfg.AuditStore {
	case config.AuditStoreMemory, "":
		s.name = config.AuditStoreMemory
		s.primary = audit.NewMemoryStore()
		if cfg.IsProduction() {
			logger.Warn().Msg("audit events are kept in memory and lost on restart")
		}

	case config.AuditStorePostgres:
		pool, err := db.NewPool(ctx, db.PoolConfig{
			URL:      cfg.DatabaseURL,
			MaxConns: cfg.DBMaxConns,
			MinConns: cfg.DBMinConns,
		})
		if err != nil {
			return nil, fmt.Errorf("audit store: %w", err)
		}
		s.primary = audit.NewPostgresStore(pool)
		s.checkers = append(s.checkers, db.PoolChecker(pool))
		s.closers = append(s.closers, func() error { pool.Close(); return nil })
		logger.Info().Msg("connected to database")

	case config.AuditStoreRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("audit store: parse redis url: %w", err)
		}
		rc := redis.NewClient(opts)
		if err := rc.Ping(ctx).Err(); err != nil {
			rc.Close()
			return nil, fmt.Errorf("audit store: ping redis: %w", err)
		}
		s.primary = audit.NewRedisStore(rc)
		s.checkers = append(s.checkers, db.CheckFunc{
			Label: "redis",
			Fn:    func(ctx context.Context) error { return rc.Ping(ctx).Err() },
		})
		s.closers = append(s.closers, rc.Close)
		logger.Info().Msg("connected to redis")

	case config.AuditStoreBadger:
		bs, err := audit.OpenBadgerStore(cfg.AuditBadgerDir)
		if err != nil {
			return nil, fmt.Errorf("audit store: %w", err)
		}
		s.primary = bs
		s.closers = append(s.closers, bs.Close)

	default:
		return nil, fmt.Errorf("audit store: unknown store %q", cfg.AuditStore)
	}

	return s, nil
}

// addKafkaSink publishes every event to AUDIT_KAFKA_TOPIC as well. It is a
// no-op when no brokers are configured.
func (s *auditStores) addKafkaSink(ctx context.Context, cfg *config.Config) error {
	if len(cfg.AuditKafkaBrokers) == 0 {
		return nil
	}
	cl, err := audit.DialKafka(ctx, cfg.AuditKafkaBrokers, cfg.AuditKafkaTopic)
	if err != nil {
		return fmt.Errorf("audit sink: %w", err)
	}
	sink, err := audit.NewKafkaSink(cl, cfg.AuditKafkaTopic)
	if err != nil {
		cl.Close()
		return err
	}
	s.sinks = append(s.sinks, sink)
	s.checkers = append(s.checkers, db.CheckFunc{Label: "kafka", Fn: cl.Ping})
	s.closers = append(s.closers, func() error { cl.Close(); return nil })
	return nil
}

// Store returns the primary store fanned out to the sinks.
func (s *auditStores) Store() audit.Store {
	return audit.NewFanoutStore(s.primary, s.sinks...)
}

// Close releases the stores in reverse order of opening.
func (s *auditStores) Close(context.Context) error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

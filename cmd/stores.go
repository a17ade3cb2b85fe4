package main

import (
	"context"
	"fmt"

	"github.com/cwrk-planet/messaging-service/config"
	"github.com/cwrk-planet/messaging-service/internal/badgerstore"
	"github.com/cwrk-planet/messaging-service/internal/memstore"
	"github.com/cwrk-planet/messaging-service/internal/postgres"
	"github.com/cwrk-planet/messaging-service/internal/service"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// stores groups whatever backs messages, the directory and follows.
type stores struct {
	messages  service.MessageStore
	directory service.Directory
	follows   service.FollowRelation
	pinger    pinger
	close     func()
}

func openStores(ctx context.Context, cfg config.Store) (*stores, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		pool, err := postgres.NewPool(ctx, postgres.Config{
			DSN:             cfg.Postgres.DSN,
			MaxConns:        cfg.Postgres.MaxConns,
			MinConns:        cfg.Postgres.MinConns,
			MaxConnLifetime: cfg.Postgres.MaxConnLifetime,
			MaxConnIdleTime: cfg.Postgres.MaxConnIdleTime,
			ApplicationName: "messaging-service",
		})
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		if cfg.Postgres.Migrate {
			if err := postgres.Migrate(ctx, pool); err != nil {
				pool.Close()
				return nil, err
			}
		}
		users := postgres.NewUserRepository(pool)
		return &stores{
			messages:  postgres.NewMessageRepository(pool),
			directory: users,
			follows:   users,
			pinger:    postgres.NewPinger(pool),
			close:     pool.Close,
		}, nil

	case config.DriverBadger:
		db, err := badgerstore.Open(cfg.Badger.Path)
		if err != nil {
			return nil, err
		}
		return &stores{
			messages:  db,
			directory: db,
			follows:   db,
			pinger:    db,
			close:     func() { _ = db.Close() },
		}, nil

	case config.DriverMemory:
		db := memstore.New()
		return &stores{
			messages:  db,
			directory: db,
			follows:   db,
			pinger:    db,
			close:     func() {},
		}, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
}

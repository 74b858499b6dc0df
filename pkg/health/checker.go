package health

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/richxcame/rental-risk/pkg/common"
)

// DefaultTimeout bounds every individual probe
const DefaultTimeout = 2 * time.Second

// Pinger is satisfied by *pgxpool.Pool
type Pinger interface {
	Ping(ctx context.Context) error
}

// DatabaseChecker returns a health check function for the PostgreSQL pool
func DatabaseChecker(db Pinger) common.DependencyCheck {
	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
		defer cancel()
		return db.Ping(ctx)
	}
}

// RedisChecker returns a health check function for Redis
func RedisChecker(client redis.UniversalClient) common.DependencyCheck {
	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
		defer cancel()
		return client.Ping(ctx).Err()
	}
}

// NATSChecker reports whether the event bus connection is up
func NATSChecker(conn *nats.Conn) common.DependencyCheck {
	return func(ctx context.Context) error {
		if conn == nil || !conn.IsConnected() {
			return errors.New("nats not connected")
		}
		return nil
	}
}

var _ Pinger = (*pgxpool.Pool)(nil)

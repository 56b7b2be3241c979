package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	_ "github.com/lib/pq"
	"github.com/teresa-solution/tenant-access-service/internal/crypto"
)

// RedisClient is the subset of the redis client the store uses, so tests can
// substitute a fake.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	SetEx(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Close() error
}

// Store bundles the repositories over a shared database handle.
type Store struct {
	db            *sql.DB
	Tenants       *TenantRepository
	Plans         *PlanRepository
	Subscriptions *SubscriptionRepository
	Users         *UserRepository
}

// Options configures the store connections.
type Options struct {
	DSN           string
	RedisAddr     string
	RedisPassword string
	Cipher        *crypto.Cipher
}

// New opens the database connection and wires the repositories. Redis backs a
// read-through cache for tenant-by-ID lookups; lookups fall through to the
// database when Redis is unavailable.
func New(opts Options) (*Store, error) {
	cfg, err := pgx.ParseConfig(opts.DSN)
	if err != nil {
		return nil, err
	}

	db := stdlib.OpenDB(*cfg)
	if err := db.Ping(); err != nil {
		return nil, err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.RedisAddr,
		Password: opts.RedisPassword,
		DB:       0,
	})

	return &Store{
		db:            db,
		Tenants:       &TenantRepository{db: db, redis: rdb, cipher: opts.Cipher},
		Plans:         &PlanRepository{db: db},
		Subscriptions: &SubscriptionRepository{db: db},
		Users:         &UserRepository{db: db},
	}, nil
}

// Close closes the database and cache connections.
func (s *Store) Close() error {
	var redisErr error
	if s.Tenants != nil && s.Tenants.redis != nil {
		redisErr = s.Tenants.redis.Close()
	}
	if err := s.db.Close(); err != nil {
		return err
	}
	return redisErr
}

// isUniqueViolation reports whether the error is a Postgres unique-constraint
// violation, optionally on a specific constraint.
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	if pgErr.Code != "23505" {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

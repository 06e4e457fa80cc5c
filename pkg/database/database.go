package database

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/GestIAdev/Dentiagest-sub007/pkg/config"
	"github.com/GestIAdev/Dentiagest-sub007/pkg/logger"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

const healthTimeout = time.Second

// DB is the clinic database handle. Repositories query through Conn so that
// work started with InTx runs on the caller's transaction.
type DB struct {
	*sqlx.DB
	logger *logger.Logger
}

// Pool bounds the connection pool. Zero fields keep the driver defaults.
type Pool struct {
	MaxOpen     int
	MaxIdle     int
	MaxLifetime time.Duration
}

func (p Pool) apply(db *sqlx.DB) {
	if p.MaxOpen > 0 {
		db.SetMaxOpenConns(p.MaxOpen)
	}
	if p.MaxIdle > 0 {
		db.SetMaxIdleConns(p.MaxIdle)
	}
	if p.MaxLifetime > 0 {
		db.SetConnMaxLifetime(p.MaxLifetime)
	}
}

// New connects to the configured clinic database.
func New(cfg *config.DatabaseConfig, log *logger.Logger) (*DB, error) {
	pool := Pool{MaxOpen: cfg.MaxOpenConns, MaxIdle: cfg.MaxIdleConns, MaxLifetime: cfg.ConnMaxLifetime}
	return open(cfg.DSN(), cfg.Redacted(), pool, log)
}

// NewWithDSN connects with the driver's pool defaults. Test schemas use it to
// pin a search_path.
func NewWithDSN(dsn string, log *logger.Logger) (*DB, error) {
	return open(dsn, "test schema", Pool{}, log)
}

func open(dsn, target string, pool Pool, log *logger.Logger) (*DB, error) {
	raw, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database %s: %w", target, err)
	}
	pool.apply(raw)
	return Wrap(raw, log), nil
}

// Wrap adopts an existing handle, e.g. one backed by sqlmock.
func Wrap(db *sqlx.DB, log *logger.Logger) *DB {
	if log == nil {
		log = logger.Nop()
	}
	return &DB{DB: db, logger: log}
}

func (db *DB) Ping(ctx context.Context) error {
	return db.PingContext(ctx)
}

func (db *DB) Close() error {
	return db.DB.Close()
}

// Health pings the database and reports pool usage alongside the result.
func (db *DB) Health(ctx context.Context) map[string]string {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	stats := db.Stats()
	status := map[string]string{
		"status":           "up",
		"open_connections": strconv.Itoa(stats.OpenConnections),
		"in_use":           strconv.Itoa(stats.InUse),
	}
	if err := db.PingContext(ctx); err != nil {
		status["status"] = "down"
		status["error"] = err.Error()
	}
	return status
}

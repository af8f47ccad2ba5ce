package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver

	"docsum-backend/internal/shared/telemetry"
)

// Pool sizes the connection pool and bounds the startup ping.
type Pool struct {
	MaxOpen     int
	MaxIdle     int
	MaxLifetime time.Duration
	MaxIdleTime time.Duration
	PingTimeout time.Duration
}

var openDB = sql.Open

// ServerPool is the pool used by the API process.
func ServerPool() Pool {
	return Pool{
		MaxOpen:     10,
		MaxIdle:     5,
		MaxLifetime: time.Hour,
		MaxIdleTime: 2 * time.Minute,
		PingTimeout: 5 * time.Second,
	}
}

// CLIPool is the pool used by cmd/migrate.
func CLIPool() Pool {
	p := ServerPool()
	p.MaxOpen = 1
	p.MaxIdle = 1
	return p
}

// WithEnv applies DB_* overrides. Unparseable values are logged and skipped.
func (p Pool) WithEnv() Pool {
	ints := map[string]*int{
		"DB_MAX_OPEN_CONNS": &p.MaxOpen,
		"DB_MAX_IDLE_CONNS": &p.MaxIdle,
	}
	for key, dst := range ints {
		raw := strings.TrimSpace(os.Getenv(key))
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			telemetry.Warn("db.env_invalid", map[string]any{"key": key, "err": err})
			continue
		}
		*dst = n
	}

	durations := map[string]*time.Duration{
		"DB_CONN_MAX_LIFETIME":  &p.MaxLifetime,
		"DB_CONN_MAX_IDLE_TIME": &p.MaxIdleTime,
		"DB_PING_TIMEOUT":       &p.PingTimeout,
	}
	for key, dst := range durations {
		raw := strings.TrimSpace(os.Getenv(key))
		if raw == "" {
			continue
		}
		d, err := time.ParseDuration(raw)
		if err != nil {
			telemetry.Warn("db.env_invalid", map[string]any{"key": key, "err": err})
			continue
		}
		*dst = d
	}
	return p
}

// Open connects to the documents database and pings it. Callers share the
// returned handle for the life of the process.
func Open(ctx context.Context, databaseURL string, p Pool) (*sql.DB, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, errors.New("DATABASE_URL is empty")
	}

	db, err := openDB("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	p.apply(db)

	timeout := p.PingTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	stats := db.Stats()
	telemetry.Info("db.connected", map[string]any{
		"max_open": stats.MaxOpenConnections,
		"open":     stats.OpenConnections,
		"idle":     stats.Idle,
	})
	return db, nil
}

// IsConnRefused reports whether err means the database could not be reached.
func IsConnRefused(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "connection refused")
}

func (p Pool) apply(db *sql.DB) {
	if p.MaxOpen <= 0 {
		p.MaxOpen = 10
	}
	if p.MaxIdle <= 0 {
		p.MaxIdle = 5
	}
	if p.MaxLifetime <= 0 {
		p.MaxLifetime = time.Hour
	}
	db.SetMaxOpenConns(p.MaxOpen)
	db.SetMaxIdleConns(p.MaxIdle)
	db.SetConnMaxLifetime(p.MaxLifetime)
	if p.MaxIdleTime > 0 {
		db.SetConnMaxIdleTime(p.MaxIdleTime)
	}
}

// Package repo implements the data persistence layer for responder rules,
// backed by GORM. This file contains database bootstrapping helpers for
// SQLite (pure Go driver) and PostgreSQL, and the schema guard.
package repo

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/tbourn/go-responder-bot/internal/domain"
)

// Options controls how Open connects.
type Options struct {
	// URL is either a postgres:// (or postgresql://) connection string or a
	// SQLite file path.
	URL string
	// SSL toggles TLS for PostgreSQL when the URL does not set sslmode itself.
	SSL bool
	// Tracing installs the OpenTelemetry GORM plugin.
	Tracing bool
}

// Open connects to PostgreSQL or SQLite depending on the URL scheme.
func Open(opts Options) (*gorm.DB, error) {
	var (
		db  *gorm.DB
		err error
	)
	if IsPostgresURL(opts.URL) {
		db, err = OpenPostgres(postgresDSN(opts.URL, opts.SSL))
	} else {
		db, err = OpenSQLite(opts.URL)
	}
	if err != nil {
		return nil, err
	}
	if opts.Tracing {
		if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
			return nil, err
		}
	}
	return db, nil
}

// IsPostgresURL reports whether url selects the PostgreSQL driver.
func IsPostgresURL(url string) bool {
	u := strings.ToLower(strings.TrimSpace(url))
	return strings.HasPrefix(u, "postgres://") || strings.HasPrefix(u, "postgresql://")
}

// postgresDSN adds sslmode to url unless the caller already chose one.
func postgresDSN(url string, ssl bool) string {
	if strings.Contains(url, "sslmode=") {
		return url
	}
	mode := "sslmode=disable"
	if ssl {
		mode = "sslmode=require"
	}
	if strings.Contains(url, "?") {
		return url + "&" + mode
	}
	return url + "?" + mode
}

// OpenPostgres opens a PostgreSQL database through the pgx-backed driver.
func OpenPostgres(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	tunePool(db)
	return db, nil
}

// sqlitePragmas are applied to every SQLite connection Open hands out.
var sqlitePragmas = []string{
	"PRAGMA journal_mode=WAL;",
	"PRAGMA synchronous=NORMAL;",
	"PRAGMA busy_timeout=5000;",
}

// OpenSQLite opens (or creates) the SQLite file at path. A missing parent
// directory is reported up front; the driver would otherwise fail later with
// an opaque "out of memory (14)".
func OpenSQLite(path string) (*gorm.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	for _, p := range sqlitePragmas {
		if err := db.Exec(p).Error; err != nil {
			return nil, &StorageError{Op: "pragma", Err: err}
		}
	}

	tunePool(db)
	return db, nil
}

func tunePool(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}
}

// AutoMigrate creates missing tables, columns and indexes. It never drops
// anything, so running it against an existing schema is a no-op.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Responder{},
		&domain.ResponderHistory{},
		&domain.Idempotency{},
	)
}

// SchemaGuard runs AutoMigrate at most once successfully per guard. Callers
// may invoke Ensure before every operation: after the first success it is a
// single atomic load. A failed attempt is retried by the next caller.
//
// The zero value is ready to use.
type SchemaGuard struct {
	done atomic.Bool
	mu   sync.Mutex
}

// Ensure migrates the schema unless that already happened.
func (g *SchemaGuard) Ensure(ctx context.Context, db *gorm.DB) error {
	if g.done.Load() {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.done.Load() {
		return nil
	}
	if err := AutoMigrate(db.WithContext(ctx)); err != nil {
		return &StorageError{Op: "migrate", Err: err}
	}
	g.done.Store(true)
	return nil
}

// Done reports whether the schema has been migrated through this guard.
func (g *SchemaGuard) Done() bool { return g.done.Load() }

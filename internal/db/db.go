package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

const (
	// DefaultTimeout bounds individual store calls made on behalf of a request.
	DefaultTimeout = 5 * time.Second

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// newGormLogger reports slow queries and errors. Lookups that miss are
// expected on most read paths, so ErrRecordNotFound is not logged.
func newGormLogger(w io.Writer) logger.Interface {
	return logger.New(log.New(w, "\r\n", log.LstdFlags), logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}

// Connect opens a GORM session for the configured driver. Postgres goes
// through the pgx stdlib adapter; sqlite is meant for single-user installs
// and tests.
func Connect(ctx context.Context, driver, dsn string) (*gorm.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("database dsn is required")
	}

	gormCfg := &gorm.Config{
		Logger:         newGormLogger(os.Stderr),
		NamingStrategy: schema.NamingStrategy{SingularTable: false},
	}

	var dialector gorm.Dialector
	switch driver {
	case DriverPostgres:
		connCfg, err := pgx.ParseConfig(dsn)
		if err != nil {
			return nil, fmt.Errorf("parse postgres dsn: %w", err)
		}
		// Prefer simple protocol for compatibility with goose and poolers.
		connCfg.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
		dialector = postgres.New(postgres.Config{
			Conn:                 stdlib.OpenDB(*connCfg),
			PreferSimpleProtocol: true,
		})
	case DriverSQLite, "":
		dialector = sqlite.Open(sqliteDSN(dsn))
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	database, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, err
	}

	sqlDB, err := database.DB()
	if err != nil {
		return nil, err
	}

	if database.Dialector.Name() == DriverSQLite {
		// sqlite serialises writers; a single connection avoids SQLITE_BUSY.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
	}

	if err := Ping(ctx, database); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	return database, nil
}

func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_foreign_keys") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_foreign_keys=on&_busy_timeout=5000"
}

// Ping ensures the database is reachable with the default timeout.
func Ping(ctx context.Context, database *gorm.DB) error {
	sqlDB, err := database.DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()
	return sqlDB.PingContext(ctx)
}

// Close releases the underlying sql.DB resources for the provided GORM handle.
func Close(database *gorm.DB) error {
	sqlDB, err := database.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// openTx wraps a migration transaction in a GORM session of the same dialect.
func openTx(dialect string) func(tx *sql.Tx) (*gorm.DB, error) {
	return func(tx *sql.Tx) (*gorm.DB, error) {
		cfg := &gorm.Config{
			NamingStrategy: schema.NamingStrategy{SingularTable: false},
			Logger:         logger.Default.LogMode(logger.Silent),
		}
		if dialect == DriverSQLite {
			return gorm.Open(sqlite.New(sqlite.Config{Conn: tx}), cfg)
		}
		return gorm.Open(postgres.New(postgres.Config{Conn: tx, PreferSimpleProtocol: true}), cfg)
	}
}

package db

import (
	"context"
	"errors"

	"github.com/pressly/goose/v3"
	"gorm.io/gorm"

	"wownote/internal/db/migrations"
)

// Migrate applies all pending schema migrations.
func Migrate(ctx context.Context, database *gorm.DB) error {
	if database == nil {
		return errors.New("nil database provided")
	}

	sqlDB, err := database.DB()
	if err != nil {
		return err
	}

	dialectName := database.Dialector.Name()
	dialect := goose.DialectPostgres
	if dialectName == DriverSQLite {
		dialect = goose.DialectSQLite3
	}

	provider, err := goose.NewProvider(dialect, sqlDB, nil,
		goose.WithGoMigrations(migrations.All(openTx(dialectName))...),
		goose.WithDisableGlobalRegistry(true),
	)
	if err != nil {
		return err
	}

	_, err = provider.Up(ctx)
	return err
}

package migrations

import (
	"context"
	"database/sql"

	"wownote/internal/models"
)

func upInit(open OpenFunc) func(context.Context, *sql.Tx) error {
	return func(ctx context.Context, tx *sql.Tx) error {
		gormDB, err := open(tx)
		if err != nil {
			return err
		}

		return gormDB.WithContext(ctx).AutoMigrate(
			&models.Tab{},
			&models.Page{},
			&models.Section{},
			&models.StorageLocation{},
			&models.User{},
			&models.Session{},
			&models.EmailVerificationToken{},
			&models.AuditLog{},
		)
	}
}

func downInit(open OpenFunc) func(context.Context, *sql.Tx) error {
	return func(ctx context.Context, tx *sql.Tx) error {
		gormDB, err := open(tx)
		if err != nil {
			return err
		}

		return gormDB.WithContext(ctx).Migrator().DropTable(
			&models.AuditLog{},
			&models.EmailVerificationToken{},
			&models.Session{},
			&models.User{},
			&models.StorageLocation{},
			&models.Section{},
			&models.Page{},
			&models.Tab{},
		)
	}
}

package migrations

import (
	"context"
	"database/sql"

	"wownote/internal/models"
)

func upTokenVerifiedAt(open OpenFunc) func(context.Context, *sql.Tx) error {
	return func(ctx context.Context, tx *sql.Tx) error {
		gormDB, err := open(tx)
		if err != nil {
			return err
		}

		m := gormDB.WithContext(ctx).Migrator()
		if m.HasColumn(&models.EmailVerificationToken{}, "VerifiedAt") {
			return nil
		}
		return m.AddColumn(&models.EmailVerificationToken{}, "VerifiedAt")
	}
}

func downTokenVerifiedAt(open OpenFunc) func(context.Context, *sql.Tx) error {
	return func(ctx context.Context, tx *sql.Tx) error {
		gormDB, err := open(tx)
		if err != nil {
			return err
		}

		return gormDB.WithContext(ctx).Migrator().DropColumn(&models.EmailVerificationToken{}, "VerifiedAt")
	}
}

// Package migrations holds the versioned schema changes applied by db.Migrate.
package migrations

import (
	"database/sql"

	"github.com/pressly/goose/v3"
	"gorm.io/gorm"
)

// OpenFunc wraps a migration transaction in a GORM session.
type OpenFunc func(tx *sql.Tx) (*gorm.DB, error)

// All returns every Go migration in version order.
func All(open OpenFunc) []*goose.Migration {
	return []*goose.Migration{
		goose.NewGoMigration(1,
			&goose.GoFunc{RunTx: upInit(open)},
			&goose.GoFunc{RunTx: downInit(open)},
		),
		goose.NewGoMigration(2,
			&goose.GoFunc{RunTx: upTokenVerifiedAt(open)},
			&goose.GoFunc{RunTx: downTokenVerifiedAt(open)},
		),
	}
}

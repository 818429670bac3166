package db

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"wownote/internal/models"
)

func TestSqliteDSN(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "bare path", input: "wownote.db", want: "wownote.db?_foreign_keys=on&_busy_timeout=5000"},
		{name: "existing query", input: "file:x.db?cache=shared", want: "file:x.db?cache=shared&_foreign_keys=on&_busy_timeout=5000"},
		{name: "already configured", input: "x.db?_foreign_keys=off", want: "x.db?_foreign_keys=off"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sqliteDSN(tt.input))
		})
	}
}

func TestGormLoggerSkipsNotFound(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		logged bool
	}{
		{name: "record not found", err: gorm.ErrRecordNotFound, logged: false},
		{name: "wrapped not found", err: fmt.Errorf("find: %w", gorm.ErrRecordNotFound), logged: false},
		{name: "other error", err: errors.New("disk I/O error"), logged: true},
		{name: "no error", err: nil, logged: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			l := newGormLogger(&buf)
			l.Trace(context.Background(), time.Now(), func() (string, int64) {
				return "SELECT * FROM users", 0
			}, tt.err)
			assert.Equal(t, tt.logged, buf.Len() > 0, buf.String())
		})
	}
}

func TestConnectRejectsUnknownDriver(t *testing.T) {
	_, err := Connect(context.Background(), "oracle", "x")
	require.Error(t, err)
}

func TestMigrateAndSeed(t *testing.T) {
	ctx := context.Background()
	database, err := Connect(ctx, DriverSQLite, filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(database) })

	require.NoError(t, Migrate(ctx, database))
	// Running again is a no-op.
	require.NoError(t, Migrate(ctx, database))
	assert.True(t, database.Migrator().HasColumn(&models.EmailVerificationToken{}, "VerifiedAt"))

	seedPath := filepath.Join(t.TempDir(), "locations.yaml")
	require.NoError(t, os.WriteFile(seedPath, []byte(`
locations:
  - name: Shared
    storage_type: local
    path: /srv/shared
  - name: Team Drive
    storage_type: googledrive
    path: /srv/gdrive
`), 0o644))

	seed, err := ReadSeedFile(seedPath)
	require.NoError(t, err)
	require.Len(t, seed.Locations, 2)

	n, err := SeedStorageLocations(ctx, database, seed)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = SeedStorageLocations(ctx, database, seed)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	var count int64
	require.NoError(t, database.Model(&models.StorageLocation{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)

	_, err = SeedStorageLocations(ctx, database, SeedFile{Locations: []SeedLocation{{Name: "x", StorageType: "dropbox", Path: "/x"}}})
	require.Error(t, err)
}

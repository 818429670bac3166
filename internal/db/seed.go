package db

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"wownote/internal/models"
	"wownote/internal/pathutil"
	"wownote/internal/storage"
)

// SeedFile is the YAML document accepted by SeedStorageLocations.
type SeedFile struct {
	Locations []SeedLocation `yaml:"locations"`
}

// SeedLocation describes one storage location to pre-register.
type SeedLocation struct {
	Name        string `yaml:"name"`
	StorageType string `yaml:"storage_type"`
	Path        string `yaml:"path"`
}

// ReadSeedFile parses a storage location seed document.
func ReadSeedFile(path string) (SeedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SeedFile{}, fmt.Errorf("read seed file: %w", err)
	}
	var seed SeedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return SeedFile{}, fmt.Errorf("parse seed file: %w", err)
	}
	return seed, nil
}

// SeedStorageLocations inserts the listed locations, skipping ones that
// already exist with the same name and path. It returns the number inserted.
func SeedStorageLocations(ctx context.Context, database *gorm.DB, seed SeedFile) (int, error) {
	inserted := 0
	for i, loc := range seed.Locations {
		name := strings.TrimSpace(loc.Name)
		if name == "" || strings.TrimSpace(loc.Path) == "" {
			return inserted, fmt.Errorf("location %d: name and path are required", i)
		}
		storageType, err := storage.ParseStorageType(loc.StorageType)
		if err != nil {
			return inserted, fmt.Errorf("location %q: %w", name, err)
		}

		row := models.StorageLocation{
			Name:        name,
			StorageType: string(storageType),
			Path:        pathutil.Resolve(loc.Path),
			IsActive:    true,
		}
		res := database.WithContext(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&row)
		if res.Error != nil {
			return inserted, res.Error
		}
		inserted += int(res.RowsAffected)
	}
	return inserted, nil
}

package store

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"wownote/internal/apperr"
	"wownote/internal/models"
	"wownote/internal/pathutil"
	"wownote/internal/storage"
)

// LocationStore persists registered storage locations.
type LocationStore interface {
	ListLocations(ctx context.Context, activeOnly bool) ([]models.StorageLocation, error)
	CreateLocation(ctx context.Context, in LocationInput) (models.StorageLocation, error)
	GetActiveLocation(ctx context.Context, id uuid.UUID) (models.StorageLocation, error)
}

// LocationInput is the body of a storage location create request.
type LocationInput struct {
	Name        string `json:"name"`
	StorageType string `json:"storage_type"`
	Path        string `json:"path"`
}

type locationStore struct {
	db *gorm.DB
}

// NewLocationStore returns a GORM-backed LocationStore.
func NewLocationStore(db *gorm.DB) LocationStore {
	return &locationStore{db: db}
}

func (s *locationStore) ListLocations(ctx context.Context, activeOnly bool) ([]models.StorageLocation, error) {
	q := s.db.WithContext(ctx).Order("name ASC")
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	var locations []models.StorageLocation
	if err := q.Find(&locations).Error; err != nil {
		return nil, wrap("list storage locations", err)
	}
	return locations, nil
}

func (s *locationStore) CreateLocation(ctx context.Context, in LocationInput) (models.StorageLocation, error) {
	name, err := requireName(in.Name)
	if err != nil {
		return models.StorageLocation{}, err
	}
	if strings.TrimSpace(in.Path) == "" {
		return models.StorageLocation{}, apperr.Validation("path is required")
	}
	st, err := storage.ParseStorageType(in.StorageType)
	if err != nil {
		return models.StorageLocation{}, err
	}

	loc := models.StorageLocation{
		Name:        name,
		StorageType: string(st),
		Path:        pathutil.Resolve(in.Path),
		IsActive:    true,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.StorageLocation{}).
			Where("name = ? AND path = ?", loc.Name, loc.Path).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return apperr.Conflict("storage location %q already exists for %s", loc.Name, loc.Path)
		}
		return tx.Create(&loc).Error
	})
	if err != nil {
		return models.StorageLocation{}, wrap("create storage location", err)
	}
	return loc, nil
}

func (s *locationStore) GetActiveLocation(ctx context.Context, id uuid.UUID) (models.StorageLocation, error) {
	var loc models.StorageLocation
	err := s.db.WithContext(ctx).
		Where("id = ? AND is_active = ?", id, true).
		First(&loc).Error
	if err != nil {
		return models.StorageLocation{}, wrap("get storage location", notFound(err, "storage location"))
	}
	return loc, nil
}

package store

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"wownote/internal/apperr"
	"wownote/internal/content"
	"wownote/internal/models"
	"wownote/internal/pathutil"
)

const (
	DefaultSectionWidth  = 300
	DefaultSectionHeight = 200
)

// ContentStore persists tabs, pages and sections.
type ContentStore interface {
	ListTabs(ctx context.Context) ([]models.Tab, error)
	CreateTab(ctx context.Context, in TabInput) (models.Tab, error)
	UpdateTab(ctx context.Context, id uuid.UUID, patch TabPatch) (models.Tab, error)
	DeleteTab(ctx context.Context, id uuid.UUID) error

	CreatePage(ctx context.Context, in PageInput) (models.Page, error)
	GetPage(ctx context.Context, id uuid.UUID) (models.Page, error)
	UpdatePage(ctx context.Context, id uuid.UUID, patch PagePatch) (models.Page, error)
	DeletePage(ctx context.Context, id uuid.UUID) error

	CreateSection(ctx context.Context, in SectionInput) (models.Section, error)
	GetSection(ctx context.Context, id uuid.UUID) (models.Section, error)
	UpdateSection(ctx context.Context, id uuid.UUID, patch SectionPatch) (models.Section, error)
	DeleteSection(ctx context.Context, id uuid.UUID) (models.Section, error)
	CountFileReferences(ctx context.Context, path string) (int64, error)
}

// TabInput is the body of a tab create request.
type TabInput struct {
	Name       string `json:"name"`
	OrderIndex *int   `json:"order_index"`
}

// TabPatch carries the fields of a tab update. Nil fields are left alone.
type TabPatch struct {
	Name       *string `json:"name"`
	OrderIndex *int    `json:"order_index"`
}

// PageInput is the body of a page create request.
type PageInput struct {
	TabID      uuid.UUID `json:"tab_id"`
	Name       string    `json:"name"`
	OrderIndex *int      `json:"order_index"`
}

// PagePatch carries the fields of a page update.
type PagePatch struct {
	Name       *string `json:"name"`
	OrderIndex *int    `json:"order_index"`
}

// SectionInput is the body of a section create request.
type SectionInput struct {
	PageID      uuid.UUID       `json:"page_id"`
	Name        *string         `json:"name"`
	ContentType string          `json:"content_type"`
	ContentData json.RawMessage `json:"content_data"`
	Memo        *string         `json:"memo"`
	OrderIndex  *int            `json:"order_index"`
	Width       *int            `json:"width"`
	Height      *int            `json:"height"`
	PositionX   *int            `json:"position_x"`
	PositionY   *int            `json:"position_y"`
}

// SectionPatch carries the fields of a section update. ContentData is applied
// when present; an explicit null clears it.
type SectionPatch struct {
	Name        *string         `json:"name"`
	ContentType *string         `json:"content_type"`
	ContentData json.RawMessage `json:"content_data"`
	Memo        *string         `json:"memo"`
	OrderIndex  *int            `json:"order_index"`
	Width       *int            `json:"width"`
	Height      *int            `json:"height"`
	PositionX   *int            `json:"position_x"`
	PositionY   *int            `json:"position_y"`
}

type contentStore struct {
	db *gorm.DB
}

// NewContentStore returns a GORM-backed ContentStore.
func NewContentStore(db *gorm.DB) ContentStore {
	return &contentStore{db: db}
}

func intOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

func (s *contentStore) ListTabs(ctx context.Context) ([]models.Tab, error) {
	var tabs []models.Tab
	err := s.db.WithContext(ctx).
		Preload("Pages", func(tx *gorm.DB) *gorm.DB {
			return tx.Select("id", "tab_id", "name", "order_index", "created_at", "updated_at").
				Order("order_index ASC").Order("created_at ASC")
		}).
		Order("order_index ASC").Order("created_at ASC").
		Find(&tabs).Error
	if err != nil {
		return nil, wrap("list tabs", err)
	}
	return tabs, nil
}

func (s *contentStore) CreateTab(ctx context.Context, in TabInput) (models.Tab, error) {
	name, err := requireName(in.Name)
	if err != nil {
		return models.Tab{}, err
	}
	tab := models.Tab{Name: name, OrderIndex: intOr(in.OrderIndex, 0)}
	if err := s.db.WithContext(ctx).Create(&tab).Error; err != nil {
		return models.Tab{}, wrap("create tab", err)
	}
	return tab, nil
}

func (s *contentStore) UpdateTab(ctx context.Context, id uuid.UUID, patch TabPatch) (models.Tab, error) {
	updates := map[string]any{"updated_at": time.Now().UTC()}
	if patch.Name != nil {
		name, err := requireName(*patch.Name)
		if err != nil {
			return models.Tab{}, err
		}
		updates["name"] = name
	}
	if patch.OrderIndex != nil {
		updates["order_index"] = *patch.OrderIndex
	}

	var tab models.Tab
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&tab, "id = ?", id).Error; err != nil {
			return notFound(err, "tab")
		}
		if err := tx.Model(&tab).Updates(updates).Error; err != nil {
			return err
		}
		return tx.First(&tab, "id = ?", id).Error
	})
	if err != nil {
		return models.Tab{}, wrap("update tab", err)
	}
	return tab, nil
}

func (s *contentStore) DeleteTab(ctx context.Context, id uuid.UUID) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		pageIDs := tx.Model(&models.Page{}).Select("id").Where("tab_id = ?", id)
		if err := tx.Where("page_id IN (?)", pageIDs).Delete(&models.Section{}).Error; err != nil {
			return err
		}
		if err := tx.Where("tab_id = ?", id).Delete(&models.Page{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&models.Tab{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound("tab not found")
		}
		return nil
	})
	return wrap("delete tab", err)
}

func (s *contentStore) CreatePage(ctx context.Context, in PageInput) (models.Page, error) {
	name, err := requireName(in.Name)
	if err != nil {
		return models.Page{}, err
	}
	page := models.Page{TabID: in.TabID, Name: name, OrderIndex: intOr(in.OrderIndex, 0)}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var tab models.Tab
		if err := tx.Select("id").First(&tab, "id = ?", in.TabID).Error; err != nil {
			return notFound(err, "tab")
		}
		return tx.Create(&page).Error
	})
	if err != nil {
		return models.Page{}, wrap("create page", err)
	}
	return page, nil
}

func (s *contentStore) GetPage(ctx context.Context, id uuid.UUID) (models.Page, error) {
	var page models.Page
	err := s.db.WithContext(ctx).
		Preload("Sections", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("order_index ASC").Order("created_at ASC")
		}).
		First(&page, "id = ?", id).Error
	if err != nil {
		return models.Page{}, wrap("get page", notFound(err, "page"))
	}
	return page, nil
}

func (s *contentStore) UpdatePage(ctx context.Context, id uuid.UUID, patch PagePatch) (models.Page, error) {
	updates := map[string]any{"updated_at": time.Now().UTC()}
	if patch.Name != nil {
		name, err := requireName(*patch.Name)
		if err != nil {
			return models.Page{}, err
		}
		updates["name"] = name
	}
	if patch.OrderIndex != nil {
		updates["order_index"] = *patch.OrderIndex
	}

	var page models.Page
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&page, "id = ?", id).Error; err != nil {
			return notFound(err, "page")
		}
		if err := tx.Model(&page).Updates(updates).Error; err != nil {
			return err
		}
		return tx.First(&page, "id = ?", id).Error
	})
	if err != nil {
		return models.Page{}, wrap("update page", err)
	}
	return page, nil
}

func (s *contentStore) DeletePage(ctx context.Context, id uuid.UUID) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("page_id = ?", id).Delete(&models.Section{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&models.Page{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound("page not found")
		}
		return nil
	})
	return wrap("delete page", err)
}

func (s *contentStore) CreateSection(ctx context.Context, in SectionInput) (models.Section, error) {
	ct, err := content.ParseType(in.ContentType)
	if err != nil {
		return models.Section{}, err
	}
	data, err := content.Normalize(ct, in.ContentData)
	if err != nil {
		return models.Section{}, err
	}

	section := models.Section{
		PageID:      in.PageID,
		Name:        in.Name,
		ContentType: ct,
		ContentData: datatypes.JSON(data),
		Memo:        in.Memo,
		OrderIndex:  intOr(in.OrderIndex, 0),
		Width:       intOr(in.Width, DefaultSectionWidth),
		Height:      intOr(in.Height, DefaultSectionHeight),
		PositionX:   intOr(in.PositionX, 0),
		PositionY:   intOr(in.PositionY, 0),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var page models.Page
		if err := tx.Select("id").First(&page, "id = ?", in.PageID).Error; err != nil {
			return notFound(err, "page")
		}
		return tx.Create(&section).Error
	})
	if err != nil {
		return models.Section{}, wrap("create section", err)
	}
	return section, nil
}

func (s *contentStore) GetSection(ctx context.Context, id uuid.UUID) (models.Section, error) {
	var section models.Section
	if err := s.db.WithContext(ctx).First(&section, "id = ?", id).Error; err != nil {
		return models.Section{}, wrap("get section", notFound(err, "section"))
	}
	return section, nil
}

func (s *contentStore) UpdateSection(ctx context.Context, id uuid.UUID, patch SectionPatch) (models.Section, error) {
	var section models.Section
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&section, "id = ?", id).Error; err != nil {
			return notFound(err, "section")
		}

		updates := map[string]any{"updated_at": time.Now().UTC()}
		ct := section.ContentType
		if patch.ContentType != nil {
			parsed, err := content.ParseType(*patch.ContentType)
			if err != nil {
				return err
			}
			ct = parsed
			updates["content_type"] = ct
		}
		if patch.ContentData != nil {
			data, err := content.Normalize(ct, patch.ContentData)
			if err != nil {
				return err
			}
			updates["content_data"] = datatypes.JSON(data)
		}
		if patch.Name != nil {
			updates["name"] = *patch.Name
		}
		if patch.Memo != nil {
			updates["memo"] = *patch.Memo
		}
		for col, v := range map[string]*int{
			"order_index": patch.OrderIndex,
			"width":       patch.Width,
			"height":      patch.Height,
			"position_x":  patch.PositionX,
			"position_y":  patch.PositionY,
		} {
			if v != nil {
				updates[col] = *v
			}
		}

		if err := tx.Model(&section).Updates(updates).Error; err != nil {
			return err
		}
		return tx.First(&section, "id = ?", id).Error
	})
	if err != nil {
		return models.Section{}, wrap("update section", err)
	}
	return section, nil
}

// DeleteSection removes the row and returns it so the caller can clean up
// any file the section referenced.
func (s *contentStore) DeleteSection(ctx context.Context, id uuid.UUID) (models.Section, error) {
	var section models.Section
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&section, "id = ?", id).Error; err != nil {
			return notFound(err, "section")
		}
		return tx.Delete(&models.Section{}, "id = ?", id).Error
	})
	if err != nil {
		return models.Section{}, wrap("delete section", err)
	}
	return section, nil
}

// CountFileReferences reports how many file and image sections point at path.
// Pasted sections share their source's file, so a file may be referenced more
// than once.
func (s *contentStore) CountFileReferences(ctx context.Context, path string) (int64, error) {
	var rows []models.Section
	err := s.db.WithContext(ctx).
		Select("id", "content_type", "content_data").
		Where("content_type IN ?", []string{string(content.TypeFile), string(content.TypeImage)}).
		Find(&rows).Error
	if err != nil {
		return 0, wrap("count file references", err)
	}

	target := pathutil.Resolve(path)
	var n int64
	for _, sec := range rows {
		fc, err := content.File(sec.ContentType, sec.ContentData)
		if err != nil || strings.TrimSpace(fc.FilePath) == "" {
			continue
		}
		if pathutil.Resolve(fc.FilePath) == target {
			n++
		}
	}
	return n, nil
}

package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"wownote/internal/apperr"
	"wownote/internal/content"
	"wownote/internal/db"
	"wownote/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()
	database, err := db.Connect(ctx, db.DriverSQLite, filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(database) })
	require.NoError(t, db.Migrate(ctx, database))
	return database
}

func ptr[T any](v T) *T { return &v }

func TestCreateTabOrderIndex(t *testing.T) {
	s := NewContentStore(newTestDB(t))
	ctx := context.Background()

	tabs := []struct {
		name  string
		order *int
		want  int
	}{
		{name: "omitted", order: nil, want: 0},
		{name: "explicit", order: ptr(3), want: 3},
	}
	for _, tt := range tabs {
		t.Run(tt.name, func(t *testing.T) {
			tab, err := s.CreateTab(ctx, TabInput{Name: tt.name, OrderIndex: tt.order})
			require.NoError(t, err)
			assert.Equal(t, tt.want, tab.OrderIndex)
			assert.NotEqual(t, uuid.Nil, tab.ID)
		})
	}

	_, err := s.CreateTab(ctx, TabInput{Name: "  "})
	assert.Equal(t, 400, apperr.Status(err))
}

func TestListTabsOrdered(t *testing.T) {
	s := NewContentStore(newTestDB(t))
	ctx := context.Background()

	second, err := s.CreateTab(ctx, TabInput{Name: "second", OrderIndex: ptr(2)})
	require.NoError(t, err)
	_, err = s.CreateTab(ctx, TabInput{Name: "first", OrderIndex: ptr(1)})
	require.NoError(t, err)

	_, err = s.CreatePage(ctx, PageInput{TabID: second.ID, Name: "p2", OrderIndex: ptr(5)})
	require.NoError(t, err)
	_, err = s.CreatePage(ctx, PageInput{TabID: second.ID, Name: "p1", OrderIndex: ptr(1)})
	require.NoError(t, err)

	tabs, err := s.ListTabs(ctx)
	require.NoError(t, err)
	require.Len(t, tabs, 2)
	assert.Equal(t, "first", tabs[0].Name)
	assert.Empty(t, tabs[0].Pages)
	require.Len(t, tabs[1].Pages, 2)
	assert.Equal(t, "p1", tabs[1].Pages[0].Name)
	assert.Equal(t, "p2", tabs[1].Pages[1].Name)
}

func TestCreatePageRequiresTab(t *testing.T) {
	s := NewContentStore(newTestDB(t))

	_, err := s.CreatePage(context.Background(), PageInput{TabID: uuid.New(), Name: "orphan"})
	assert.Equal(t, 404, apperr.Status(err))
}

func TestSectionDefaultsAndValidation(t *testing.T) {
	s := NewContentStore(newTestDB(t))
	ctx := context.Background()

	tab, err := s.CreateTab(ctx, TabInput{Name: "t"})
	require.NoError(t, err)
	page, err := s.CreatePage(ctx, PageInput{TabID: tab.ID, Name: "p"})
	require.NoError(t, err)

	sec, err := s.CreateSection(ctx, SectionInput{PageID: page.ID})
	require.NoError(t, err)
	assert.Equal(t, content.TypeText, sec.ContentType)
	assert.Equal(t, 300, sec.Width)
	assert.Equal(t, 200, sec.Height)
	assert.Equal(t, 0, sec.PositionX)

	_, err = s.CreateSection(ctx, SectionInput{PageID: page.ID, ContentType: "video"})
	assert.Equal(t, 400, apperr.Status(err))

	_, err = s.CreateSection(ctx, SectionInput{PageID: page.ID, ContentType: "link", ContentData: json.RawMessage(`{"title":"x"}`)})
	assert.Equal(t, 400, apperr.Status(err))

	_, err = s.CreateSection(ctx, SectionInput{PageID: uuid.New()})
	assert.Equal(t, 404, apperr.Status(err))

	link, err := s.CreateSection(ctx, SectionInput{
		PageID:      page.ID,
		ContentType: "link",
		ContentData: json.RawMessage(`{"url":"https://example.com","title":"Example","extra":1}`),
		OrderIndex:  ptr(1),
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"url":"https://example.com","title":"Example"}`, string(link.ContentData))

	got, err := s.GetPage(ctx, page.ID)
	require.NoError(t, err)
	require.Len(t, got.Sections, 2)
	assert.Equal(t, sec.ID, got.Sections[0].ID)
	assert.Equal(t, link.ID, got.Sections[1].ID)
}

func TestUpdateSectionPartial(t *testing.T) {
	s := NewContentStore(newTestDB(t))
	ctx := context.Background()

	tab, err := s.CreateTab(ctx, TabInput{Name: "t"})
	require.NoError(t, err)
	page, err := s.CreatePage(ctx, PageInput{TabID: tab.ID, Name: "p"})
	require.NoError(t, err)
	sec, err := s.CreateSection(ctx, SectionInput{
		PageID:      page.ID,
		Name:        ptr("notes"),
		ContentData: json.RawMessage(`{"text":"hello"}`),
		Width:       ptr(500),
	})
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	updated, err := s.UpdateSection(ctx, sec.ID, SectionPatch{PositionX: ptr(40), Memo: ptr("memo")})
	require.NoError(t, err)
	assert.Equal(t, 40, updated.PositionX)
	assert.Equal(t, 500, updated.Width)
	assert.Equal(t, "notes", *updated.Name)
	assert.Equal(t, "memo", *updated.Memo)
	assert.JSONEq(t, `{"text":"hello"}`, string(updated.ContentData))
	assert.True(t, updated.UpdatedAt.After(sec.UpdatedAt))

	// Changing only the type keeps the old payload; storage operations on it
	// then fail cleanly.
	retyped, err := s.UpdateSection(ctx, sec.ID, SectionPatch{ContentType: ptr("storage")})
	require.NoError(t, err)
	assert.Equal(t, content.TypeStorage, retyped.ContentType)
	_, err = content.Storage(retyped.ContentType, retyped.ContentData)
	assert.Equal(t, 404, apperr.Status(err))

	_, err = s.UpdateSection(ctx, sec.ID, SectionPatch{ContentType: ptr("link"), ContentData: json.RawMessage(`{}`)})
	assert.Equal(t, 400, apperr.Status(err))

	_, err = s.UpdateSection(ctx, uuid.New(), SectionPatch{})
	assert.Equal(t, 404, apperr.Status(err))
}

func TestDeleteTabCascades(t *testing.T) {
	s := NewContentStore(newTestDB(t))
	ctx := context.Background()

	tab, err := s.CreateTab(ctx, TabInput{Name: "t"})
	require.NoError(t, err)
	page, err := s.CreatePage(ctx, PageInput{TabID: tab.ID, Name: "p"})
	require.NoError(t, err)
	sec, err := s.CreateSection(ctx, SectionInput{PageID: page.ID})
	require.NoError(t, err)

	require.NoError(t, s.DeleteTab(ctx, tab.ID))

	_, err = s.GetPage(ctx, page.ID)
	assert.Equal(t, 404, apperr.Status(err))
	_, err = s.GetSection(ctx, sec.ID)
	assert.Equal(t, 404, apperr.Status(err))

	err = s.DeleteTab(ctx, tab.ID)
	assert.Equal(t, 404, apperr.Status(err))
}

func TestDeletePageAndSection(t *testing.T) {
	s := NewContentStore(newTestDB(t))
	ctx := context.Background()

	tab, err := s.CreateTab(ctx, TabInput{Name: "t"})
	require.NoError(t, err)
	page, err := s.CreatePage(ctx, PageInput{TabID: tab.ID, Name: "p"})
	require.NoError(t, err)
	keep, err := s.CreateSection(ctx, SectionInput{PageID: page.ID})
	require.NoError(t, err)
	file, err := s.CreateSection(ctx, SectionInput{
		PageID:      page.ID,
		ContentType: "file",
		ContentData: json.RawMessage(`{"file_path":"/tmp/x.txt","filename":"x.txt"}`),
	})
	require.NoError(t, err)

	deleted, err := s.DeleteSection(ctx, file.ID)
	require.NoError(t, err)
	assert.Equal(t, content.TypeFile, deleted.ContentType)
	fc, err := content.File(deleted.ContentType, deleted.ContentData)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/x.txt", fc.FilePath)

	require.NoError(t, s.DeletePage(ctx, page.ID))
	_, err = s.GetSection(ctx, keep.ID)
	assert.Equal(t, 404, apperr.Status(err))
	assert.Equal(t, 404, apperr.Status(s.DeletePage(ctx, page.ID)))
}

func TestCountFileReferences(t *testing.T) {
	s := NewContentStore(newTestDB(t))
	ctx := context.Background()

	tab, err := s.CreateTab(ctx, TabInput{Name: "t"})
	require.NoError(t, err)
	page, err := s.CreatePage(ctx, PageInput{TabID: tab.ID, Name: "p"})
	require.NoError(t, err)

	for _, in := range []SectionInput{
		{PageID: page.ID, ContentType: "file", ContentData: json.RawMessage(`{"file_path":"/srv/u/a.txt","filename":"a.txt"}`)},
		{PageID: page.ID, ContentType: "image", ContentData: json.RawMessage(`{"file_path":"/srv/u/../u/a.txt","filename":"a.txt"}`)},
		{PageID: page.ID, ContentType: "file", ContentData: json.RawMessage(`{"file_path":"/srv/u/b.txt","filename":"b.txt"}`)},
		{PageID: page.ID, ContentType: "text", ContentData: json.RawMessage(`{"text":"/srv/u/a.txt"}`)},
	} {
		_, err := s.CreateSection(ctx, in)
		require.NoError(t, err)
	}

	tests := []struct {
		path string
		want int64
	}{
		{path: "/srv/u/a.txt", want: 2},
		{path: "/srv/u/b.txt", want: 1},
		{path: "/srv/u/c.txt", want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			n, err := s.CountFileReferences(ctx, tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, n)
		})
	}
}

func TestLocationStore(t *testing.T) {
	database := newTestDB(t)
	s := NewLocationStore(database)
	ctx := context.Background()

	loc, err := s.CreateLocation(ctx, LocationInput{Name: "Shared", StorageType: "local", Path: "/srv/shared"})
	require.NoError(t, err)
	assert.True(t, loc.IsActive)

	_, err = s.CreateLocation(ctx, LocationInput{Name: "Shared", StorageType: "local", Path: "/srv/shared"})
	assert.Equal(t, 409, apperr.Status(err))

	_, err = s.CreateLocation(ctx, LocationInput{Name: "Box", StorageType: "box", Path: "/srv/box"})
	assert.Equal(t, 400, apperr.Status(err))

	inactive, err := s.CreateLocation(ctx, LocationInput{Name: "Old", StorageType: "onedrive", Path: "/srv/old"})
	require.NoError(t, err)
	require.NoError(t, database.Model(&models.StorageLocation{}).Where("id = ?", inactive.ID).Update("is_active", false).Error)

	active, err := s.ListLocations(ctx, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "Shared", active[0].Name)

	all, err := s.ListLocations(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = s.GetActiveLocation(ctx, inactive.ID)
	assert.Equal(t, 404, apperr.Status(err))
	got, err := s.GetActiveLocation(ctx, loc.ID)
	require.NoError(t, err)
	assert.Equal(t, "/srv/shared", got.Path)
}

func TestAccountStoreTokens(t *testing.T) {
	s := NewAccountStore(newTestDB(t))
	ctx := context.Background()

	first := &models.EmailVerificationToken{Email: "A@Example.com", Token: "one", ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, s.CreateToken(ctx, first))
	assert.Equal(t, "a@example.com", first.Email)

	require.NoError(t, s.InvalidateTokens(ctx, "a@example.com"))
	got, err := s.FindToken(ctx, "one")
	require.NoError(t, err)
	assert.True(t, got.Used)
	assert.Nil(t, got.VerifiedAt)

	second := &models.EmailVerificationToken{Email: "a@example.com", Token: "two", ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, s.CreateToken(ctx, second))
	require.NoError(t, s.MarkTokenVerified(ctx, second.ID, time.Now()))
	got, err = s.FindToken(ctx, "two")
	require.NoError(t, err)
	assert.True(t, got.Used)
	assert.NotNil(t, got.VerifiedAt)

	_, err = s.FindToken(ctx, "missing")
	assert.Equal(t, 404, apperr.Status(err))

	user := &models.User{Email: "a@example.com", Username: "a", PasswordHash: "x", IsActive: true}
	require.NoError(t, s.CreateUser(ctx, user))
	err = s.CreateUser(ctx, &models.User{Email: "A@example.com", Username: "a", PasswordHash: "y", IsActive: true})
	assert.Equal(t, 409, apperr.Status(err))

	session := &models.Session{UserID: user.ID, ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, s.CreateSession(ctx, session))
	require.NoError(t, s.RevokeSession(ctx, session.ID, time.Now()))
	loaded, err := s.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.NotNil(t, loaded.RevokedAt)
}

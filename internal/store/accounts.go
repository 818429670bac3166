package store

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"wownote/internal/apperr"
	"wownote/internal/models"
)

// AccountStore persists users, verification tokens, sessions and the audit
// trail.
type AccountStore interface {
	// Transaction runs fn against a store bound to a single transaction.
	Transaction(ctx context.Context, fn func(AccountStore) error) error

	FindUserByEmail(ctx context.Context, email string) (models.User, error)
	GetUser(ctx context.Context, id uuid.UUID) (models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
	UpdateUser(ctx context.Context, id uuid.UUID, updates map[string]any) (models.User, error)

	InvalidateTokens(ctx context.Context, email string) error
	CreateToken(ctx context.Context, token *models.EmailVerificationToken) error
	FindToken(ctx context.Context, token string) (models.EmailVerificationToken, error)
	MarkTokenVerified(ctx context.Context, id uuid.UUID, at time.Time) error

	CreateSession(ctx context.Context, session *models.Session) error
	GetSession(ctx context.Context, id uuid.UUID) (models.Session, error)
	RevokeSession(ctx context.Context, id uuid.UUID, at time.Time) error

	WriteAudit(ctx context.Context, entry *models.AuditLog) error
}

type accountStore struct {
	db *gorm.DB
}

// NewAccountStore returns a GORM-backed AccountStore.
func NewAccountStore(db *gorm.DB) AccountStore {
	return &accountStore{db: db}
}

// NormalizeEmail lowercases and trims an address for lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *accountStore) Transaction(ctx context.Context, fn func(AccountStore) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&accountStore{db: tx})
	})
}

func (s *accountStore) FindUserByEmail(ctx context.Context, email string) (models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", NormalizeEmail(email)).First(&user).Error; err != nil {
		return models.User{}, notFound(err, "user")
	}
	return user, nil
}

func (s *accountStore) GetUser(ctx context.Context, id uuid.UUID) (models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return models.User{}, notFound(err, "user")
	}
	return user, nil
}

func (s *accountStore) CreateUser(ctx context.Context, user *models.User) error {
	user.Email = NormalizeEmail(user.Email)
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", user.Email).Count(&count).Error; err != nil {
		return wrap("create user", err)
	}
	if count > 0 {
		return apperr.Conflict("email already registered")
	}
	return wrap("create user", s.db.WithContext(ctx).Create(user).Error)
}

func (s *accountStore) UpdateUser(ctx context.Context, id uuid.UUID, updates map[string]any) (models.User, error) {
	if updates == nil {
		updates = map[string]any{}
	}
	updates["updated_at"] = time.Now().UTC()

	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return models.User{}, wrap("update user", res.Error)
	}
	if res.RowsAffected == 0 {
		return models.User{}, apperr.NotFound("user not found")
	}
	return s.GetUser(ctx, id)
}

func (s *accountStore) InvalidateTokens(ctx context.Context, email string) error {
	err := s.db.WithContext(ctx).Model(&models.EmailVerificationToken{}).
		Where("email = ? AND used = ?", NormalizeEmail(email), false).
		Update("used", true).Error
	return wrap("invalidate tokens", err)
}

func (s *accountStore) CreateToken(ctx context.Context, token *models.EmailVerificationToken) error {
	token.Email = NormalizeEmail(token.Email)
	return wrap("create token", s.db.WithContext(ctx).Create(token).Error)
}

func (s *accountStore) FindToken(ctx context.Context, token string) (models.EmailVerificationToken, error) {
	var t models.EmailVerificationToken
	if err := s.db.WithContext(ctx).Where("token = ?", token).First(&t).Error; err != nil {
		return models.EmailVerificationToken{}, notFound(err, "token")
	}
	return t, nil
}

func (s *accountStore) MarkTokenVerified(ctx context.Context, id uuid.UUID, at time.Time) error {
	err := s.db.WithContext(ctx).Model(&models.EmailVerificationToken{}).
		Where("id = ?", id).
		Updates(map[string]any{"used": true, "verified_at": at}).Error
	return wrap("mark token verified", err)
}

func (s *accountStore) CreateSession(ctx context.Context, session *models.Session) error {
	return wrap("create session", s.db.WithContext(ctx).Create(session).Error)
}

func (s *accountStore) GetSession(ctx context.Context, id uuid.UUID) (models.Session, error) {
	var session models.Session
	if err := s.db.WithContext(ctx).First(&session, "id = ?", id).Error; err != nil {
		return models.Session{}, notFound(err, "session")
	}
	return session, nil
}

func (s *accountStore) RevokeSession(ctx context.Context, id uuid.UUID, at time.Time) error {
	err := s.db.WithContext(ctx).Model(&models.Session{}).
		Where("id = ? AND revoked_at IS NULL", id).
		Update("revoked_at", at).Error
	return wrap("revoke session", err)
}

func (s *accountStore) WriteAudit(ctx context.Context, entry *models.AuditLog) error {
	return wrap("write audit log", s.db.WithContext(ctx).Create(entry).Error)
}

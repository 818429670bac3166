// Package auth implements email-verified registration, password login and
// cookie sessions.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"wownote/internal/apperr"
	"wownote/internal/models"
	"wownote/internal/store"
)

const (
	// MinPasswordLength is the shortest password accepted at registration and
	// on password change.
	MinPasswordLength = 8

	defaultTokenTTL   = 24 * time.Hour
	defaultSessionTTL = 14 * 24 * time.Hour
	tokenBytes        = 32
)

// Audit actions recorded in the audit log.
const (
	ActionRegistrationRequested = "auth.registration_requested"
	ActionEmailVerified         = "auth.email_verified"
	ActionRegistered            = "auth.registered"
	ActionLogin                 = "auth.login"
	ActionLoginFailed           = "auth.login_failed"
	ActionLogout                = "auth.logout"
	ActionProfileUpdated        = "auth.profile_updated"
)

// Mailer delivers verification links.
type Mailer interface {
	SendVerification(ctx context.Context, to, link string) error
}

// Options configures a Service.
type Options struct {
	BaseURL    string
	TokenTTL   time.Duration
	SessionTTL time.Duration
	Now        func() time.Time
	Logger     zerolog.Logger
}

// Service runs the account state machine on top of an AccountStore.
type Service struct {
	store      store.AccountStore
	hasher     Hasher
	mailer     Mailer
	signer     *SessionSigner
	baseURL    string
	tokenTTL   time.Duration
	sessionTTL time.Duration
	now        func() time.Time
	log        zerolog.Logger
}

// Session is a freshly started login.
type Session struct {
	User      models.User
	Token     string
	ExpiresAt time.Time
}

// RegisterInput is the final step of registration.
type RegisterInput struct {
	Token         string `json:"token"`
	Password      string `json:"password"`
	AgreedToTerms bool   `json:"agreedToTerms"`
}

// ProfileInput changes the caller's username and/or password.
type ProfileInput struct {
	CurrentPassword string  `json:"current_password"`
	Username        *string `json:"username"`
	NewPassword     *string `json:"new_password"`
}

// NewService wires a Service. All collaborators are required.
func NewService(accounts store.AccountStore, hasher Hasher, mailer Mailer, signer *SessionSigner, opts Options) (*Service, error) {
	if accounts == nil || hasher == nil || mailer == nil || signer == nil {
		return nil, errors.New("auth: store, hasher, mailer and signer are required")
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = defaultTokenTTL
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = defaultSessionTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		store:      accounts,
		hasher:     hasher,
		mailer:     mailer,
		signer:     signer,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		tokenTTL:   opts.TokenTTL,
		sessionTTL: opts.SessionTTL,
		now:        opts.Now,
		log:        opts.Logger,
	}, nil
}

// RequestRegistration issues a verification token for email and mails the
// link. Earlier unused tokens for the address stop working.
func (s *Service) RequestRegistration(ctx context.Context, email string) error {
	addr, err := validateEmail(email)
	if err != nil {
		return err
	}

	token, err := randomToken()
	if err != nil {
		return err
	}

	err = s.store.Transaction(ctx, func(tx store.AccountStore) error {
		if _, err := tx.FindUserByEmail(ctx, addr); err == nil {
			return apperr.Conflict("email already registered")
		} else if !errors.Is(err, apperr.ErrNotFound) {
			return err
		}
		if err := tx.InvalidateTokens(ctx, addr); err != nil {
			return err
		}
		return tx.CreateToken(ctx, &models.EmailVerificationToken{
			Email:     addr,
			Token:     token,
			ExpiresAt: s.now().Add(s.tokenTTL).UTC(),
		})
	})
	if err != nil {
		return err
	}

	link := fmt.Sprintf("%s/?token=%s", s.baseURL, token)
	if err := s.mailer.SendVerification(ctx, addr, link); err != nil {
		return fmt.Errorf("send verification mail: %w", err)
	}
	s.audit(ctx, nil, ActionRegistrationRequested, "email", addr, nil)
	return nil
}

// VerifyEmail consumes a token and returns the address it was issued for.
func (s *Service) VerifyEmail(ctx context.Context, token string) (string, error) {
	var email string
	err := s.store.Transaction(ctx, func(tx store.AccountStore) error {
		t, err := tx.FindToken(ctx, strings.TrimSpace(token))
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				return apperr.Validation("invalid token")
			}
			return err
		}
		if t.Used {
			return apperr.Validation("invalid token")
		}
		if !s.now().Before(t.ExpiresAt) {
			return apperr.Validation("token expired")
		}
		email = t.Email
		return tx.MarkTokenVerified(ctx, t.ID, s.now().UTC())
	})
	if err != nil {
		return "", err
	}
	s.audit(ctx, nil, ActionEmailVerified, "email", email, nil)
	return email, nil
}

// Register creates the account for a verified token and logs it in.
func (s *Service) Register(ctx context.Context, in RegisterInput) (Session, error) {
	if len(in.Password) < MinPasswordLength {
		return Session{}, apperr.Validation("password must be at least %d characters", MinPasswordLength)
	}
	if !in.AgreedToTerms {
		return Session{}, apperr.Validation("you must agree to the terms of service")
	}

	digest, err := s.hasher.Hash(in.Password)
	if err != nil {
		return Session{}, fmt.Errorf("hash password: %w", err)
	}

	var user models.User
	err = s.store.Transaction(ctx, func(tx store.AccountStore) error {
		t, err := tx.FindToken(ctx, strings.TrimSpace(in.Token))
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				return apperr.Validation("invalid token")
			}
			return err
		}
		if t.VerifiedAt == nil {
			return apperr.Validation("email address has not been verified")
		}
		user = models.User{
			Email:        t.Email,
			Username:     usernameFor(t.Email),
			PasswordHash: digest,
			IsActive:     true,
		}
		return tx.CreateUser(ctx, &user)
	})
	if err != nil {
		return Session{}, err
	}

	s.audit(ctx, &user.ID, ActionRegistered, "user", user.ID.String(), nil)
	return s.startSession(ctx, user)
}

// Login checks credentials and starts a session.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	addr := store.NormalizeEmail(email)
	user, err := s.store.FindUserByEmail(ctx, addr)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return Session{}, err
	}
	if err != nil || !s.hasher.Verify(password, user.PasswordHash) {
		s.audit(ctx, nil, ActionLoginFailed, "email", addr, nil)
		return Session{}, apperr.Unauthorized("incorrect email or password")
	}
	if !user.IsActive {
		s.audit(ctx, &user.ID, ActionLoginFailed, "user", user.ID.String(), map[string]any{"reason": "disabled"})
		return Session{}, apperr.Forbidden("account is disabled")
	}
	return s.startSession(ctx, user)
}

func (s *Service) startSession(ctx context.Context, user models.User) (Session, error) {
	now := s.now().UTC()
	row := models.Session{UserID: user.ID, ExpiresAt: now.Add(s.sessionTTL)}
	if err := s.store.CreateSession(ctx, &row); err != nil {
		return Session{}, err
	}
	token, err := s.signer.Issue(row.ID, now, row.ExpiresAt)
	if err != nil {
		return Session{}, fmt.Errorf("sign session: %w", err)
	}
	s.audit(ctx, &user.ID, ActionLogin, "session", row.ID.String(), nil)
	return Session{User: user, Token: token, ExpiresAt: row.ExpiresAt}, nil
}

// Authenticate resolves a session cookie value into an Identity.
func (s *Service) Authenticate(ctx context.Context, token string) (Identity, error) {
	if strings.TrimSpace(token) == "" {
		return Identity{}, apperr.Unauthorized("authentication required")
	}
	sessionID, err := s.signer.Parse(token)
	if err != nil {
		return Identity{}, apperr.Unauthorized("invalid session")
	}
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return Identity{}, apperr.Unauthorized("invalid session")
		}
		return Identity{}, err
	}
	if session.RevokedAt != nil || !s.now().Before(session.ExpiresAt) {
		return Identity{}, apperr.Unauthorized("session expired")
	}
	user, err := s.store.GetUser(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return Identity{}, apperr.Unauthorized("invalid session")
		}
		return Identity{}, err
	}
	if !user.IsActive {
		return Identity{}, apperr.Forbidden("account is disabled")
	}
	return Identity{UserID: user.ID, SessionID: session.ID, Email: user.Email, Username: user.Username}, nil
}

// Logout revokes the caller's session.
func (s *Service) Logout(ctx context.Context, id Identity) error {
	if err := s.store.RevokeSession(ctx, id.SessionID, s.now().UTC()); err != nil {
		return err
	}
	s.audit(ctx, &id.UserID, ActionLogout, "session", id.SessionID.String(), nil)
	return nil
}

// Me returns the caller's account.
func (s *Service) Me(ctx context.Context, id Identity) (models.User, error) {
	user, err := s.store.GetUser(ctx, id.UserID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return models.User{}, apperr.Unauthorized("authentication required")
		}
		return models.User{}, err
	}
	return user, nil
}

// UpdateProfile changes the username and/or password after re-checking the
// current password.
func (s *Service) UpdateProfile(ctx context.Context, id Identity, in ProfileInput) (models.User, error) {
	user, err := s.Me(ctx, id)
	if err != nil {
		return models.User{}, err
	}
	if in.CurrentPassword == "" {
		return models.User{}, apperr.Validation("current_password is required")
	}
	if !s.hasher.Verify(in.CurrentPassword, user.PasswordHash) {
		return models.User{}, apperr.Unauthorized("current password is incorrect")
	}

	updates := map[string]any{}
	changed := []string{}
	if in.Username != nil {
		name := strings.TrimSpace(*in.Username)
		if name == "" {
			return models.User{}, apperr.Validation("username cannot be empty")
		}
		updates["username"] = name
		changed = append(changed, "username")
	}
	if in.NewPassword != nil {
		if len(*in.NewPassword) < MinPasswordLength {
			return models.User{}, apperr.Validation("password must be at least %d characters", MinPasswordLength)
		}
		digest, err := s.hasher.Hash(*in.NewPassword)
		if err != nil {
			return models.User{}, fmt.Errorf("hash password: %w", err)
		}
		updates["password_hash"] = digest
		changed = append(changed, "password")
	}

	updated, err := s.store.UpdateUser(ctx, user.ID, updates)
	if err != nil {
		return models.User{}, err
	}
	s.audit(ctx, &user.ID, ActionProfileUpdated, "user", user.ID.String(), map[string]any{"fields": changed})
	return updated, nil
}

// audit writes an audit row. A failed write is logged and does not fail the
// request that triggered it.
func (s *Service) audit(ctx context.Context, actor *uuid.UUID, action, targetType, targetID string, meta map[string]any) {
	entry := &models.AuditLog{
		ActorID:    actor,
		Action:     action,
		TargetType: targetType,
		Metadata:   meta,
	}
	if targetID != "" {
		entry.TargetID = &targetID
	}
	if err := s.store.WriteAudit(ctx, entry); err != nil {
		s.log.Warn().Err(err).Str("action", action).Msg("write audit log")
	}
}

func validateEmail(raw string) (string, error) {
	addr := store.NormalizeEmail(raw)
	if addr == "" {
		return "", apperr.Validation("email is required")
	}
	parsed, err := mail.ParseAddress(addr)
	if err != nil || parsed.Address != addr || !strings.Contains(addr[strings.LastIndex(addr, "@")+1:], ".") {
		return "", apperr.Validation("invalid email address")
	}
	return addr, nil
}

func usernameFor(email string) string {
	if i := strings.Index(email, "@"); i > 0 {
		return email[:i]
	}
	return email
}

func randomToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Package handlers exposes the wownote HTTP API.
package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"wownote/internal/auth"
	"wownote/internal/events"
	"wownote/internal/models"
	"wownote/internal/storage"
	"wownote/internal/store"
)

const (
	SessionCookieName     = "wownote_session"
	defaultMaxUploadBytes = 500 << 20
	publishTimeout        = 2 * time.Second
)

// AccountService is the part of auth.Service the handlers use.
type AccountService interface {
	RequestRegistration(ctx context.Context, email string) error
	VerifyEmail(ctx context.Context, token string) (string, error)
	Register(ctx context.Context, in auth.RegisterInput) (auth.Session, error)
	Login(ctx context.Context, email, password string) (auth.Session, error)
	Logout(ctx context.Context, id auth.Identity) error
	Authenticate(ctx context.Context, token string) (auth.Identity, error)
	Me(ctx context.Context, id auth.Identity) (models.User, error)
	UpdateProfile(ctx context.Context, id auth.Identity, in auth.ProfileInput) (models.User, error)
}

// Config controls runtime behaviour for the handlers.
type Config struct {
	UploadFolder   string
	MaxUploadBytes int64
	AuthRequired   bool
	AllowedOrigins []string
	CookieSecure   bool
	CookieDomain   string
	ServiceName    string
}

// Deps are the collaborators the API needs.
type Deps struct {
	Content   store.ContentStore
	Locations store.LocationStore
	Accounts  AccountService
	Files     *storage.Manager
	Ingester  *storage.Ingester
	Events    events.Publisher
	// Ready reports whether backing services are reachable.
	Ready  func(ctx context.Context) error
	Logger zerolog.Logger
}

// API wires dependencies and configuration for HTTP handlers.
type API struct {
	content   store.ContentStore
	locations store.LocationStore
	accounts  AccountService
	files     *storage.Manager
	ingester  *storage.Ingester
	events    events.Publisher
	ready     func(ctx context.Context) error
	log       zerolog.Logger
	config    Config
}

// New validates deps and applies defaults to cfg.
func New(deps Deps, cfg Config) (*API, error) {
	if deps.Content == nil || deps.Locations == nil {
		return nil, errors.New("content and location stores are required")
	}
	if deps.Accounts == nil {
		return nil, errors.New("account service is required")
	}
	if deps.Files == nil || deps.Ingester == nil {
		return nil, errors.New("file manager and ingester are required")
	}
	if cfg.UploadFolder == "" {
		return nil, errors.New("upload folder is required")
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUploadBytes
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "wownote"
	}
	if deps.Events == nil {
		deps.Events = events.Nop{}
	}
	if deps.Ready == nil {
		deps.Ready = func(context.Context) error { return nil }
	}

	return &API{
		content:   deps.Content,
		locations: deps.Locations,
		accounts:  deps.Accounts,
		files:     deps.Files,
		ingester:  deps.Ingester,
		events:    deps.Events,
		ready:     deps.Ready,
		log:       deps.Logger,
		config:    cfg,
	}, nil
}

// publish sends an event and only logs failures; events never fail a request.
func (a *API) publish(ctx context.Context, subject string, payload map[string]any) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := a.events.Publish(ctx, subject, payload); err != nil {
		a.log.Debug().Err(err).Str("subject", subject).Msg("publish event")
	}
}

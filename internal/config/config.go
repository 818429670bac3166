package config

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"

	"wownote/internal/pathutil"
)

// Config holds runtime configuration for the wownote service.
type Config struct {
	Addr                string        `env:"ADDR,default=:5001"`
	DBDriver            string        `env:"DB_DRIVER,default=sqlite"`
	DBDSN               string        `env:"DB_DSN,default=wownote.db"`
	UploadFolder        string        `env:"UPLOAD_FOLDER,default=./uploads"`
	StorageBasePath     string        `env:"STORAGE_BASE_PATH,default=./storage"`
	StorageSectionRoots []string      `env:"STORAGE_SECTION_ROOTS"`
	StorageLocations    string        `env:"STORAGE_LOCATIONS_FILE"`
	MaxUploadBytes      int64         `env:"MAX_UPLOAD_BYTES,default=524288000"`
	SessionSigningKey   string        `env:"SESSION_SIGNING_KEY,required"`
	SessionTTL          time.Duration `env:"SESSION_TTL,default=336h"`
	CookieDomain        string        `env:"COOKIE_DOMAIN"`
	CookieSecure        bool          `env:"COOKIE_SECURE,default=false"`
	AuthRequired        bool          `env:"AUTH_REQUIRED,default=true"`
	PublicBaseURL       string        `env:"PUBLIC_BASE_URL,default=http://localhost:5001"`
	SMTPHost            string        `env:"SMTP_HOST"`
	SMTPPort            int           `env:"SMTP_PORT,default=587"`
	SMTPUser            string        `env:"SMTP_USER"`
	SMTPPassword        string        `env:"SMTP_PASS"`
	MailFrom            string        `env:"MAIL_FROM,default=no-reply@wownote.local"`
	AllowedOrigins      []string      `env:"CORS_ALLOWED_ORIGINS"`
	OTLPEndpoint        string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	NATSURL             string        `env:"NATS_URL"`
	MirrorBucket        string        `env:"MIRROR_S3_BUCKET"`
}

// Load returns a Config populated from environment variables.
func Load(ctx context.Context) (Config, error) {
	return load(ctx, envconfig.OsLookuper())
}

func load(ctx context.Context, lookuper envconfig.Lookuper) (Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return Config{}, err
	}
	if err := cfg.normalize(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalize() error {
	c.DBDriver = strings.ToLower(strings.TrimSpace(c.DBDriver))
	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		return errors.New("DB_DRIVER must be postgres or sqlite")
	}
	if len(strings.TrimSpace(c.SessionSigningKey)) < 16 {
		return errors.New("SESSION_SIGNING_KEY must be at least 16 characters")
	}
	if c.MaxUploadBytes <= 0 {
		return errors.New("MAX_UPLOAD_BYTES must be positive")
	}

	c.UploadFolder = pathutil.Resolve(c.UploadFolder)
	c.StorageBasePath = pathutil.Resolve(c.StorageBasePath)

	roots := c.StorageSectionRoots[:0]
	for _, root := range c.StorageSectionRoots {
		if strings.TrimSpace(root) == "" {
			continue
		}
		roots = append(roots, pathutil.Resolve(root))
	}
	c.StorageSectionRoots = roots
	c.PublicBaseURL = strings.TrimRight(c.PublicBaseURL, "/")
	return nil
}

// ServedRoots are the directories GET /api/files may serve from.
func (c Config) ServedRoots() []string {
	return []string{c.UploadFolder, c.StorageBasePath}
}

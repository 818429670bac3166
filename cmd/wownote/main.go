package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"wownote/internal/auth"
	"wownote/internal/config"
	"wownote/internal/db"
	"wownote/internal/events"
	"wownote/internal/handlers"
	"wownote/internal/mail"
	"wownote/internal/mirror"
	"wownote/internal/render"
	"wownote/internal/storage"
	"wownote/internal/store"
	"wownote/internal/telemetry"
	"wownote/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	cleanup, err := telemetry.Init(ctx, version.Name, version.Version, cfg.OTLPEndpoint)
	if err != nil {
		log.Fatal().Err(err).Msg("init otel")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := cleanup(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown otel")
		}
	}()

	database, err := db.Connect(ctx, cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("connect database")
	}
	defer func() {
		if err := db.Close(database); err != nil {
			log.Error().Err(err).Msg("close database")
		}
	}()

	if err := db.Migrate(ctx, database); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}
	if cfg.StorageLocations != "" {
		seedLocations(ctx, database, cfg.StorageLocations)
	}

	for _, dir := range []string{cfg.UploadFolder, cfg.StorageBasePath} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatal().Err(err).Str("dir", dir).Msg("create data directory")
		}
	}

	mailer, err := newMailer(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("init mailer")
	}

	var publisher events.Publisher = events.Nop{}
	if cfg.NATSURL != "" {
		bus, err := events.Connect(cfg.NATSURL)
		if err != nil {
			log.Fatal().Err(err).Msg("connect nats")
		}
		defer bus.Close()
		publisher = bus
	}

	var fileMirror storage.Mirror
	if cfg.MirrorBucket != "" {
		m, err := mirror.NewFromEnv(ctx, cfg.MirrorBucket)
		if err != nil {
			log.Fatal().Err(err).Msg("init upload mirror")
		}
		fileMirror = m
	}

	signer, err := auth.NewSessionSigner(cfg.SessionSigningKey)
	if err != nil {
		log.Fatal().Err(err).Msg("init session signer")
	}
	accounts, err := auth.NewService(store.NewAccountStore(database), auth.BcryptHasher{Cost: bcrypt.DefaultCost}, mailer, signer, auth.Options{
		BaseURL:    cfg.PublicBaseURL,
		SessionTTL: cfg.SessionTTL,
		Logger:     log.Logger,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("init account service")
	}

	contentStore := store.NewContentStore(database)
	api, err := handlers.New(handlers.Deps{
		Content:   contentStore,
		Locations: store.NewLocationStore(database),
		Accounts:  accounts,
		Files: storage.NewManager(contentStore, storage.ManagerOptions{
			SectionRoots: cfg.StorageSectionRoots,
			ServedRoots:  cfg.ServedRoots(),
		}),
		Ingester: storage.NewIngester(fileMirror, log.Logger),
		Events:   publisher,
		Ready:    func(ctx context.Context) error { return db.Ping(ctx, database) },
		Logger:   log.Logger,
	}, handlers.Config{
		UploadFolder:   cfg.UploadFolder,
		MaxUploadBytes: cfg.MaxUploadBytes,
		AuthRequired:   cfg.AuthRequired,
		AllowedOrigins: cfg.AllowedOrigins,
		CookieSecure:   cfg.CookieSecure,
		CookieDomain:   cfg.CookieDomain,
		ServiceName:    version.Name,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("init api")
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr).Str("version", version.Version).Msg("starting wownote")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown server")
	}
}

func newMailer(cfg config.Config) (auth.Mailer, error) {
	if cfg.SMTPHost == "" {
		log.Warn().Msg("SMTP_HOST not set, verification links are written to the log")
		return mail.NewLogMailer(log.Logger), nil
	}
	renderer, err := render.New()
	if err != nil {
		return nil, err
	}
	return mail.NewSMTPMailer(mail.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		User:     cfg.SMTPUser,
		Password: cfg.SMTPPassword,
		From:     cfg.MailFrom,
	}, renderer)
}

// seedLocations registers the storage locations listed in path. A broken
// seed file is logged and does not stop the server.
func seedLocations(ctx context.Context, database *gorm.DB, path string) {
	seed, err := db.ReadSeedFile(path)
	if err != nil {
		log.Error().Err(err).Str("file", path).Msg("read storage locations")
		return
	}
	n, err := db.SeedStorageLocations(ctx, database, seed)
	if err != nil {
		log.Error().Err(err).Str("file", path).Msg("seed storage locations")
		return
	}
	log.Info().Int("added", n).Str("file", path).Msg("seeded storage locations")
}

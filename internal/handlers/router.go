package handlers

import (
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/hlog"

	"wownote/internal/metrics"
	"wownote/internal/telemetry"
)

// Routes constructs the chi router containing all endpoints.
func (a *API) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(hlog.NewHandler(a.log))
	r.Use(telemetry.Middleware(a.config.ServiceName))
	r.Use(accessLog)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(middleware.Timeout(60 * time.Second))

	// No configured origins means same-origin only.
	if origins := a.config.AllowedOrigins; len(origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
			ExposedHeaders: []string{"Link"},
			// The session cookie is never shared with a wildcard origin.
			AllowCredentials: !slices.Contains(origins, "*"),
			MaxAge:           int((10 * time.Minute).Seconds()),
		}))
	}

	r.Get("/healthz", a.handleHealth)
	r.Get("/readyz", a.handleReady)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/auth", func(r chi.Router) {
		r.Use(httprate.LimitByIP(100, time.Minute))
		r.Post("/request-registration", a.handleRequestRegistration)
		r.Get("/verify-email/{token}", a.handleVerifyEmail)
		r.Post("/register", a.handleRegister)
		r.Post("/login", a.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(a.requireSession)
			r.Post("/logout", a.handleLogout)
			r.Get("/me", a.handleMe)
			r.Put("/me", a.handleUpdateMe)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(httprate.LimitByIP(600, time.Minute))
		if a.config.AuthRequired {
			r.Use(a.requireSession)
		}

		r.Get("/api/tabs", a.handleListTabs)
		r.Post("/api/tabs", a.handleCreateTab)
		r.Put("/api/tabs/{id}", a.handleUpdateTab)
		r.Delete("/api/tabs/{id}", a.handleDeleteTab)

		r.Post("/api/pages", a.handleCreatePage)
		r.Get("/api/pages/{id}", a.handleGetPage)
		r.Put("/api/pages/{id}", a.handleUpdatePage)
		r.Delete("/api/pages/{id}", a.handleDeletePage)
		r.Post("/api/pages/{id}/sections", a.handlePasteSection)

		r.Post("/api/sections", a.handleCreateSection)
		r.Put("/api/sections/{id}", a.handleUpdateSection)
		r.Delete("/api/sections/{id}", a.handleDeleteSection)
		r.Post("/api/sections/{id}/image", a.handleSectionImage)

		r.Get("/api/sections/{id}/files", a.handleListSectionFiles)
		r.Post("/api/sections/{id}/files", a.handleUploadSectionFile)
		r.Get("/api/sections/{id}/files/{filename}", a.handleDownloadSectionFile)
		r.Delete("/api/sections/{id}/files/{filename}", a.handleDeleteSectionFile)
		r.Post("/api/sections/{id}/files/{filename}/move", a.handleMoveSectionFile)
		r.Post("/api/sections/{id}/files/{filename}/copy", a.handleCopySectionFile)
		r.Post("/api/sections/{id}/files/{filename}/extract", a.handleExtractSectionFile)

		r.Post("/api/upload", a.handleUpload)
		r.Get("/api/files/{id}", a.handleGetFile)

		r.Get("/api/storage-locations", a.handleListLocations)
		r.Post("/api/storage-locations", a.handleCreateLocation)

		r.Get("/api/system/directories", a.handleListDirectories)
		r.Post("/api/system/directories", a.handleCreateDirectory)
		r.Get("/api/system/cloud-storage-paths", a.handleCloudPaths)
	})

	return r
}

func accessLog(next http.Handler) http.Handler {
	return hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("req_id", middleware.GetReqID(r.Context())).
			Str("trace_id", telemetry.TraceID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	})(next)
}

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (a *API) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r.Context())
	defer cancel()
	if err := a.ready(ctx); err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("readiness check failed")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/ckr-labs/roofkb/internal/api"
	"github.com/ckr-labs/roofkb/internal/api/handlers"
	"github.com/ckr-labs/roofkb/internal/api/middleware"
)

type RouterConfig struct {
	AdminToken      string
	Logger          zerolog.Logger
	FileHandler     *handlers.FileHandler
	SearchHandler   *handlers.SearchHandler
	ConflictHandler *handlers.ConflictHandler
	SummaryHandler  *handlers.SummaryHandler
	SyncHandler     *handlers.SyncHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 5 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog(cfg.Logger))
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.AdminTokenAuth(cfg.AdminToken))

		r.Route("/files", func(r chi.Router) {
			r.Post("/", cfg.FileHandler.Create)
			r.Get("/", cfg.FileHandler.List)
			r.Get("/{id}", cfg.FileHandler.Get)
			r.Put("/{id}", cfg.FileHandler.Update)
			r.Delete("/{id}", cfg.FileHandler.Delete)
			r.Post("/{id}/re-embed", cfg.FileHandler.ReEmbed)
			r.Get("/{id}/versions", cfg.FileHandler.Versions)
			r.Get("/{id}/versions/{number}", cfg.FileHandler.Version)
		})

		r.Post("/search", cfg.SearchHandler.Search)

		r.Route("/conflicts", func(r chi.Router) {
			r.Post("/detect", cfg.ConflictHandler.Detect)
			r.Get("/", cfg.ConflictHandler.List)
			r.Get("/{id}", cfg.ConflictHandler.Get)
			r.Post("/{id}/resolve", cfg.ConflictHandler.Resolve)
		})

		r.Get("/summary/{category}", cfg.SummaryHandler.Get)

		r.Route("/sync/rules", func(r chi.Router) {
			r.Get("/", cfg.SyncHandler.List)
			r.Post("/", cfg.SyncHandler.Create)
			r.Post("/{id}/run", cfg.SyncHandler.Run)
			r.Post("/{id}/start", cfg.SyncHandler.Start)
			r.Post("/{id}/stop", cfg.SyncHandler.Stop)
		})
	})

	return r
}

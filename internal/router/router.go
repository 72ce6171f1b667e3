package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mediavault/internal/config"
	"mediavault/internal/handler"
	"mediavault/internal/metrics"
	"mediavault/internal/middleware"
)

type Handlers struct {
	Auth    *handler.AuthHandler
	File    *handler.FileHandler
	Admin   *handler.AdminHandler
	Audit   *handler.AuditHandler
	Command *handler.CommandHandler
}

func New(
	cfg *config.Config,
	authMiddleware *middleware.AuthMiddleware,
	h Handlers,
	healthCheck func(r *http.Request) error,
) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.AuthRateLimitRPM)

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(metrics.Middleware)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(rateLimitMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if healthCheck != nil {
			if err := healthCheck(req); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("unhealthy"))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(middleware.Timeout(cfg.RequestTimeout))

		api.Route("/auth", func(auth chi.Router) {
			auth.Post("/login", h.Auth.Login)
			auth.With(authMiddleware.RequireAuth, authMiddleware.RequireAdmin).Post("/register", h.Auth.Register)
			auth.With(authMiddleware.RequireAuth).Get("/me", h.Auth.Me)
		})

		api.With(authMiddleware.RequireAuth).Post("/commands", h.Command.Execute)

		api.With(authMiddleware.RequireAuth).Get("/files", h.File.List)
		api.With(authMiddleware.RequireAuth).Post("/files", h.File.Upload)
		api.With(authMiddleware.RequireAuth).Get("/files/search", h.File.Search)
		api.With(authMiddleware.RequireAuth).Get("/files/recent", h.File.Recent)
		api.With(authMiddleware.RequireAuth).Post("/files/download", h.File.Download)
		api.With(authMiddleware.RequireAuth).Delete("/files", h.File.Delete)
		api.With(authMiddleware.RequireAuth).Delete("/files/all", h.File.Purge)
		api.With(authMiddleware.RequireAuth).Delete("/account", h.File.EraseAccount)

		api.Route("/admin", func(admin chi.Router) {
			admin.Use(authMiddleware.RequireAuth, authMiddleware.RequireAdmin)
			admin.Get("/files", h.Admin.ListAll)
			admin.Delete("/files", h.Admin.Delete)
			admin.Delete("/users/{user_id}/files", h.Admin.PurgeUser)
			admin.Put("/retention", h.Admin.SetRetention)
			admin.Get("/audit", h.Audit.List)
		})
	})

	return r
}

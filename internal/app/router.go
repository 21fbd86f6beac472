package app

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/munsociety/munsociety/internal/auth"
	"github.com/munsociety/munsociety/internal/blogs"
	"github.com/munsociety/munsociety/internal/carousel"
	"github.com/munsociety/munsociety/internal/members"
	"github.com/munsociety/munsociety/internal/observability"
	"github.com/munsociety/munsociety/internal/outreach"
	"github.com/munsociety/munsociety/internal/resources"
	"github.com/munsociety/munsociety/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	AuthMiddleware  auth.Middleware
	AuthHandler     *auth.Handler
	MembersHandler  *members.Handler
	BlogsHandler    *blogs.Handler
	ResourceHandler *resources.Handler
	CarouselHandler *carousel.Handler
	OutreachHandler *outreach.Handler
	JobHandler      *jobs.Handler
	Metrics         *observability.Metrics
}

// NewRouter constructs the chi.Router with the API surface.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", healthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", healthCheck)

		r.Route("/auth", func(r chi.Router) {
			r.Use(AuthRateLimiter())
			params.AuthHandler.MountRoutes(r, params.AuthMiddleware)
		})
		r.Route("/blogs", func(r chi.Router) {
			params.BlogsHandler.MountRoutes(r, params.AuthMiddleware)
		})
		r.Route("/resources", func(r chi.Router) {
			params.ResourceHandler.MountRoutes(r, params.AuthMiddleware)
		})
		r.Route("/carousel", func(r chi.Router) {
			params.CarouselHandler.MountRoutes(r, params.AuthMiddleware)
		})
		r.Route("/outreach", params.OutreachHandler.MountRoutes)

		r.Route("/admin", func(r chi.Router) {
			r.Use(params.AuthMiddleware.RequireAdmin)
			params.MembersHandler.MountRoutes(r)
			params.BlogsHandler.MountAdminRoutes(r)
			params.ResourceHandler.MountAdminRoutes(r)
			params.CarouselHandler.MountAdminRoutes(r)
		})

		if params.JobHandler != nil {
			r.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	r.Handle("/uploads/*", uploadsServer(params.Config.UploadPath))

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// uploadsServer serves stored files read-only. Directory listings are
// refused; files get a day of client-side caching since stored names are
// unique per upload.
func uploadsServer(root string) http.Handler {
	fs := http.StripPrefix("/uploads/", http.FileServer(http.Dir(root)))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Cache-Control", "public, max-age=86400")
		fs.ServeHTTP(w, r)
	})
}

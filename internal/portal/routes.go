package portal

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func (p *Portal) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger:  slog.NewLogLogger(p.logger.Handler(), slog.LevelInfo),
		NoColor: true,
	}))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/heartbeat"))
	if origins := p.config.Server.AllowedOrigins; len(origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	r.Use(p.metrics.Middleware)
	r.Use(p.sessions.LoadUser)

	// Static files
	static, _ := fs.Sub(staticFS, "static")
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(static))))

	// Public routes
	r.Get("/", p.handleIndex)
	r.Get("/login", p.handleLogin)
	r.Post("/login", p.handleLoginPost)
	r.Get("/signup", p.handleSignup)
	r.Post("/signup", p.handleSignupPost)
	r.Get("/reset_password_request", p.handleResetRequest)
	r.Post("/reset_password_request", p.handleResetRequestPost)
	if !p.config.Analytics.RequireAuth {
		r.Get("/analytics", p.handleAnalytics)
	}

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(p.sessions.RequireAuth)

		r.Get("/logout", p.handleLogout)
		r.Get("/profile", p.handleProfile)
		r.Get("/products", p.handleProducts)
		r.Get("/categories", p.handleCategories)
		r.Get("/users", p.handleUsers)
		if p.config.Analytics.RequireAuth {
			r.Get("/analytics", p.handleAnalytics)
		}
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		p.renderStatus(w, r, http.StatusNotFound, "404.html", "Not Found", map[string]any{
			"Path": r.URL.Path,
		})
	})

	return r
}

package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/silencie/silencie/internal/config"
	"github.com/silencie/silencie/internal/middleware"
	"github.com/silencie/silencie/internal/utils"
)

const loginBurst = 5

type Router struct {
	store  Store
	svc    Services
	auth   *middleware.Authenticator
	logins *middleware.RateLimiter
	cfg    *config.Config
	logger *slog.Logger
}

// NewRouter builds the services on top of store and signs tokens with the
// configured secret. Roles are re-read from the store on every request.
func NewRouter(store Store, cfg *config.Config, logger *slog.Logger) *Router {
	auth := middleware.NewAuthenticator(cfg.JWTSecret, roleLookup(store))
	return &Router{
		store:  store,
		svc:    NewServices(store, auth.SignToken, cfg.TokenTTL, logger),
		auth:   auth,
		logins: middleware.NewRateLimiter(cfg.LoginInterval, loginBurst),
		cfg:    cfg,
		logger: logger,
	}
}

func roleLookup(store Store) middleware.RoleLookup {
	return func(ctx context.Context, userID string) (string, error) {
		p, err := store.GetProfile(ctx, userID)
		if err != nil || p == nil {
			return "", err
		}
		return p.Role, nil
	}
}

// Handler returns the full HTTP surface.
func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	// Forwarded headers are client controlled unless a proxy rewrites them.
	if rt.cfg.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.RequestLogger(rt.logger))
	r.Use(chimw.Recoverer)
	r.Use(middleware.SecureHeaders)
	r.Use(middleware.CORS(rt.cfg.AllowedOrigins))
	r.Use(middleware.Locale(rt.cfg.DefaultLocale))
	r.Use(rt.auth.WithAuth)

	r.Get("/health", rt.handleHealth)
	r.Get("/version", rt.handleVersion)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.NoStore)
		r.With(rt.logins.Limit).Post("/auth/login", rt.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth)
			r.Get("/me", rt.handleMe)
			r.Get("/me/forms", rt.handleMyForms)
			r.Route("/forms/{programFormID}", func(r chi.Router) {
				r.Get("/", rt.handleOpenForm)
				r.Post("/check", rt.handleCheckAnswer)
				r.Post("/submit", rt.handleSubmit)
				r.Get("/result", rt.handleResult)
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireAdmin)
			rt.registerAdmin(r)
		})
	})
	return r
}

func (rt *Router) registerAdmin(r chi.Router) {
	r.Get("/templates", rt.handleListTemplates)
	r.Post("/templates", rt.handleCreateTemplate)
	r.Post("/templates/import", rt.handleImportTemplate)
	r.Get("/templates/{id}", rt.handleGetTemplate)
	r.Patch("/templates/{id}", rt.handleUpdateTemplate)
	r.Delete("/templates/{id}", rt.handleDeleteTemplate)
	r.Post("/templates/{id}/sections", rt.handleAddSection)

	r.Patch("/sections/{id}", rt.handleUpdateSection)
	r.Delete("/sections/{id}", rt.handleDeleteSection)
	r.Post("/sections/{id}/questions", rt.handleAddQuestion)

	r.Patch("/questions/{id}", rt.handleUpdateQuestion)
	r.Delete("/questions/{id}", rt.handleDeleteQuestion)
	r.Put("/questions/{id}/options", rt.handleReplaceOptions)

	r.Get("/programs", rt.handleListPrograms)
	r.Post("/programs", rt.handleCreateProgram)
	r.Get("/programs/{id}", rt.handleGetProgram)
	r.Delete("/programs/{id}", rt.handleDeleteProgram)
	r.Post("/programs/{id}/phases", rt.handleAddPhase)
	r.Patch("/phases/{id}", rt.handleUpdatePhase)
	r.Delete("/phases/{id}", rt.handleDeletePhase)

	r.Get("/programs/{id}/enrollments", rt.handleListEnrollments)
	r.Post("/programs/{id}/enrollments", rt.handleEnroll)
	r.Delete("/programs/{id}/enrollments/{userID}", rt.handleUnenroll)

	r.Get("/programs/{id}/forms", rt.handleListProgramForms)
	r.Post("/programs/{id}/forms", rt.handleAttachForm)
	r.Patch("/program-forms/{id}", rt.handleUpdateProgramForm)
	r.Delete("/program-forms/{id}", rt.handleDetachForm)
	r.Get("/program-forms/{id}/summary", rt.handleSummary)
	r.Get("/program-forms/{id}/export", rt.handleExport)

	r.Get("/users", rt.handleListUsers)
	r.Post("/users", rt.handleCreateUser)
}

func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	locale := middleware.LocaleFromContext(r.Context())
	status := http.StatusOK
	ok := true
	if err := rt.store.Ping(r.Context()); err != nil {
		rt.logger.WarnContext(r.Context(), "health ping failed", "err", err)
		status = http.StatusServiceUnavailable
		ok = false
	}
	writeJSON(w, status, map[string]any{
		"ok":         ok,
		"name":       "Silencie API",
		"locale":     locale,
		"msg":        utils.T(locale, "health.ok"),
		"commit":     rt.cfg.Commit,
		"build_time": rt.cfg.BuildTime,
	})
}

func (rt *Router) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"commit":     rt.cfg.Commit,
		"build_time": rt.cfg.BuildTime,
	})
}

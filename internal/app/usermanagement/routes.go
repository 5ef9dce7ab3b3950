// Package usermanagement собирает HTTP API управления пользователями.
package usermanagement

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/user-management/internal/access"
	"github.com/magabrotheeeer/user-management/internal/http/handlers/auth/email"
	"github.com/magabrotheeeer/user-management/internal/http/handlers/auth/password"
	"github.com/magabrotheeeer/user-management/internal/http/handlers/auth/signin"
	"github.com/magabrotheeeer/user-management/internal/http/handlers/auth/signout"
	"github.com/magabrotheeeer/user-management/internal/http/handlers/auth/verification"
	"github.com/magabrotheeeer/user-management/internal/http/handlers/health"
	"github.com/magabrotheeeer/user-management/internal/http/handlers/user/create"
	"github.com/magabrotheeeer/user-management/internal/http/handlers/user/feedback"
	"github.com/magabrotheeeer/user-management/internal/http/handlers/user/list"
	"github.com/magabrotheeeer/user-management/internal/http/handlers/user/read"
	"github.com/magabrotheeeer/user-management/internal/http/handlers/user/remove"
	"github.com/magabrotheeeer/user-management/internal/http/handlers/user/update"
	"github.com/magabrotheeeer/user-management/internal/http/links"
	"github.com/magabrotheeeer/user-management/internal/http/middlewarectx"
	"github.com/magabrotheeeer/user-management/internal/http/response"
	"github.com/magabrotheeeer/user-management/internal/metrics"
	"github.com/magabrotheeeer/user-management/internal/models"
	authservice "github.com/magabrotheeeer/user-management/internal/services/auth"
	userservice "github.com/magabrotheeeer/user-management/internal/services/user"

	_ "github.com/magabrotheeeer/user-management/docs"
)

// Deps зависимости маршрутов.
type Deps struct {
	Log        *slog.Logger
	Auth       *authservice.AuthService
	Users      *userservice.UserService
	Guard      *middlewarectx.Guard
	Links      *links.Builder
	Metrics    *metrics.Metrics
	Gatherer   prometheus.Gatherer
	Health     map[string]health.Pinger
	SessionTTL time.Duration
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, d Deps) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
		d.Metrics.Middleware,
	)

	protected := d.Guard.Protect(models.RoleUser, models.RoleAdmin)
	log := d.Log

	r.Route("/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/", signin.New(log, d.Auth, d.Links, d.SessionTTL).ServeHTTP)
			r.Post("/verification", verification.NewSend(log, d.Auth, d.Links).ServeHTTP)
			r.Get("/verification/{token}", verification.NewVerify(log, d.Auth, d.Links).ServeHTTP)
			r.Post("/new_password", password.NewForgot(log, d.Auth, d.Links).ServeHTTP)
			r.Patch("/new_password/{reset_token}", password.NewReset(log, d.Auth, d.Links).ServeHTTP)
			r.Patch("/new_email/{token}", email.NewVerify(log, d.Auth, d.Links).ServeHTTP)

			r.Group(func(r chi.Router) {
				r.Use(protected)
				r.Delete("/", signout.New(log, d.Auth, d.Links).ServeHTTP)
				r.Post("/new_email", email.NewChange(log, d.Auth, d.Links).ServeHTTP)
			})
		})

		r.Route("/users", func(r chi.Router) {
			r.With(middlewarectx.ForbidAttributes(log, "role", "is_verified", "is_active")).
				Post("/", create.New(log, d.Users, d.Links).ServeHTTP)
			r.Post("/feedback", feedback.New(log, d.Users, d.Links).ServeHTTP)

			r.Group(func(r chi.Router) {
				r.Use(protected)
				r.Get("/", list.New(log, d.Users, d.Links).ServeHTTP)
				r.Get("/{id}", read.New(log, d.Users, d.Links).ServeHTTP)
				r.With(middlewarectx.ForbidAttributes(log, access.GuardedAttributes()...)).
					Put("/{id}", update.New(log, d.Users, d.Links).ServeHTTP)
				r.Delete("/{id}", remove.New(log, d.Users, d.Links).ServeHTTP)
			})
		})
	})

	r.Get("/health", health.New(log, d.Health).ServeHTTP)
	r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, response.Error("Resource not found"))
	})
}

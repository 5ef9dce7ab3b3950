// Package signout реализует выход из учетной записи.
package signout

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/user-management/internal/http/links"
	"github.com/magabrotheeeer/user-management/internal/http/middlewarectx"
	"github.com/magabrotheeeer/user-management/internal/http/response"
	"github.com/magabrotheeeer/user-management/internal/lib/apperr"
	"github.com/magabrotheeeer/user-management/internal/lib/sl"
	"github.com/magabrotheeeer/user-management/internal/models"
)

// Service описывает сценарий выхода.
type Service interface {
	SignOut(ctx context.Context, identity models.Identity, token string) error
}

// Handler обрабатывает DELETE /v1/auth/.
type Handler struct {
	log     *slog.Logger
	service Service
	links   *links.Builder
}

func New(log *slog.Logger, service Service, builder *links.Builder) *Handler {
	return &Handler{log: log, service: service, links: builder}
}

// ServeHTTP godoc
// @Summary Выход пользователя
// @Description Отзывает текущий токен сессии и удаляет cookie jwt.
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 401 {object} response.ErrorResponse "Нет авторизации"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /auth/ [delete]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.signout"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	identity, ok := middlewarectx.IdentityFromContext(r.Context())
	token, hasToken := middlewarectx.TokenFromContext(r.Context())
	if !ok || !hasToken {
		response.Fail(w, r, log, apperr.E(apperr.Unauthorized, "Invalid authorization", nil))
		return
	}

	if err := h.service.SignOut(r.Context(), identity, token); err != nil {
		response.Fail(w, r, log, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middlewarectx.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})

	log.Info("sign out success", sl.UserID(identity.ID))
	render.JSON(w, r, response.Message("Signed out successfully.", links.Set{
		"sign_in": h.links.SignIn(),
	}))
}

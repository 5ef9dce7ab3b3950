// Package read реализует получение профиля по идентификатору.
package read

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/user-management/internal/http/links"
	"github.com/magabrotheeeer/user-management/internal/http/middlewarectx"
	"github.com/magabrotheeeer/user-management/internal/http/response"
	"github.com/magabrotheeeer/user-management/internal/lib/apperr"
	"github.com/magabrotheeeer/user-management/internal/models"
)

// Service описывает чтение профиля.
type Service interface {
	Get(ctx context.Context, identity models.Identity, param string) (any, error)
}

// Handler обрабатывает GET /v1/users/{id}. Значение active означает
// текущего пользователя.
type Handler struct {
	log     *slog.Logger
	service Service
	links   *links.Builder
}

func New(log *slog.Logger, service Service, builder *links.Builder) *Handler {
	return &Handler{log: log, service: service, links: builder}
}

// ServeHTTP godoc
// @Summary Профиль пользователя
// @Description Возвращает профиль по id или профиль текущего пользователя по значению active.
// @Description Закрытый чужой профиль для роли USER не находится.
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID пользователя или active"
// @Success 200 {object} response.Response
// @Failure 401 {object} response.ErrorResponse "Нет авторизации"
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Router /users/{id} [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.user.read"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	identity, ok := middlewarectx.IdentityFromContext(r.Context())
	if !ok {
		response.Fail(w, r, log, apperr.E(apperr.Unauthorized, "Invalid authorization", nil))
		return
	}

	user, err := h.service.Get(r.Context(), identity, chi.URLParam(r, "id"))
	if err != nil {
		response.Fail(w, r, log, err)
		return
	}

	render.JSON(w, r, response.OK(user, links.Set{
		"self":   h.links.GetUser(),
		"users":  h.links.ListUsers(),
		"update": h.links.UpdateUser(),
		"delete": h.links.DeleteUser(),
	}))
}

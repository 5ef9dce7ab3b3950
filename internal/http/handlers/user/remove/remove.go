// Package remove реализует удаление учетной записи.
package remove

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

// Service описывает удаление профиля.
type Service interface {
	Delete(ctx context.Context, identity models.Identity, param string) error
}

// Handler обрабатывает DELETE /v1/users/{id}.
type Handler struct {
	log     *slog.Logger
	service Service
	links   *links.Builder
}

func New(log *slog.Logger, service Service, builder *links.Builder) *Handler {
	return &Handler{log: log, service: service, links: builder}
}

// ServeHTTP godoc
// @Summary Удалить пользователя
// @Description Удаляет учетную запись вместе с записью аутентификации и отозванными токенами.
// @Description Роль USER может удалить только себя.
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID пользователя или active"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse "Чужая учетная запись"
// @Failure 401 {object} response.ErrorResponse "Нет авторизации"
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Router /users/{id} [delete]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.user.remove"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	identity, ok := middlewarectx.IdentityFromContext(r.Context())
	if !ok {
		response.Fail(w, r, log, apperr.E(apperr.Unauthorized, "Invalid authorization", nil))
		return
	}

	if err := h.service.Delete(r.Context(), identity, chi.URLParam(r, "id")); err != nil {
		response.Fail(w, r, log, err)
		return
	}

	render.JSON(w, r, response.Message("User deleted successfully.", links.Set{
		"self":   h.links.DeleteUser(),
		"users":  h.links.ListUsers(),
		"create": h.links.CreateUser(),
	}))
}

// Package list реализует поиск пользователей по фильтрам из строки запроса.
package list

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/user-management/internal/http/links"
	"github.com/magabrotheeeer/user-management/internal/http/middlewarectx"
	"github.com/magabrotheeeer/user-management/internal/http/response"
	"github.com/magabrotheeeer/user-management/internal/lib/apperr"
	"github.com/magabrotheeeer/user-management/internal/models"
)

// Service описывает поиск профилей.
type Service interface {
	List(ctx context.Context, identity models.Identity, query url.Values) ([]any, error)
}

// Handler обрабатывает GET /v1/users/.
type Handler struct {
	log     *slog.Logger
	service Service
	links   *links.Builder
}

func New(log *slog.Logger, service Service, builder *links.Builder) *Handler {
	return &Handler{log: log, service: service, links: builder}
}

// ServeHTTP godoc
// @Summary Список пользователей
// @Description Возвращает профили, подходящие под фильтры. Роль USER не может фильтровать
// @Description по email, phone_number, is_public и address.*, и видит только публичные поля.
// @Description Списочные атрибуты передаются через запятую.
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param name query string false "Имя"
// @Param age query int false "Возраст"
// @Param interests query string false "Интересы через запятую"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse "Недопустимый фильтр"
// @Failure 401 {object} response.ErrorResponse "Нет авторизации"
// @Failure 404 {object} response.ErrorResponse "Ничего не найдено"
// @Router /users/ [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.user.list"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	identity, ok := middlewarectx.IdentityFromContext(r.Context())
	if !ok {
		response.Fail(w, r, log, apperr.E(apperr.Unauthorized, "Invalid authorization", nil))
		return
	}

	users, err := h.service.List(r.Context(), identity, r.URL.Query())
	if err != nil {
		response.Fail(w, r, log, err)
		return
	}

	log.Info("users listed", slog.Int("count", len(users)))
	render.JSON(w, r, response.OK(users, links.Set{
		"self":   h.links.ListUsers(),
		"user":   h.links.GetUser(),
		"active": h.links.ActiveUser(),
	}))
}

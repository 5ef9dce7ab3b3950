// Package update реализует частичное обновление профиля.
//
// Атрибуты password, is_active и is_verified отклоняет middleware
// ForbidAttributes до вызова обработчика. Остальные проверки прав на
// атрибуты выполняет сервис по списку переданных ключей.
package update

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/user-management/internal/http/links"
	"github.com/magabrotheeeer/user-management/internal/http/middlewarectx"
	"github.com/magabrotheeeer/user-management/internal/http/response"
	"github.com/magabrotheeeer/user-management/internal/lib/apperr"
	"github.com/magabrotheeeer/user-management/internal/lib/sl"
	"github.com/magabrotheeeer/user-management/internal/lib/validation"
	"github.com/magabrotheeeer/user-management/internal/models"
)

// Request изменяемые атрибуты профиля. Отсутствующий атрибут не меняется.
type Request struct {
	Email        *string         `json:"email" validate:"omitempty,email_format"`
	Role         *models.Role    `json:"role" validate:"omitempty,oneof=USER ADMIN"`
	Name         *string         `json:"name" validate:"omitempty,max=100"`
	LastName     *string         `json:"last_name" validate:"omitempty,max=100"`
	ProfilePhoto *string         `json:"profile_photo" validate:"omitempty,max=2048"`
	PhoneNumber  *string         `json:"phone_number" validate:"omitempty,max=30"`
	Country      *string         `json:"country" validate:"omitempty,max=100"`
	Address      *models.Address `json:"address"`
	Age          *int            `json:"age" validate:"omitempty,min=0,max=150"`
	Gender       *string         `json:"gender" validate:"omitempty,oneof=Male Female Other"`
	IsPublic     *bool           `json:"is_public"`
	Studies      *[]string       `json:"studies"`
	Professions  *[]string       `json:"professions"`
	Interests    *[]string       `json:"interests"`
}

func (req Request) patch() models.UserPatch {
	return models.UserPatch{
		Email:        req.Email,
		Role:         req.Role,
		Name:         req.Name,
		LastName:     req.LastName,
		ProfilePhoto: req.ProfilePhoto,
		PhoneNumber:  req.PhoneNumber,
		Country:      req.Country,
		Address:      req.Address,
		Age:          req.Age,
		Gender:       req.Gender,
		IsPublic:     req.IsPublic,
		Studies:      req.Studies,
		Professions:  req.Professions,
		Interests:    req.Interests,
	}
}

// Service описывает обновление профиля.
type Service interface {
	Update(ctx context.Context, identity models.Identity, param string, keys []string, patch models.UserPatch) error
}

// Handler обрабатывает PUT /v1/users/{id}.
type Handler struct {
	log      *slog.Logger
	service  Service
	links    *links.Builder
	validate *validator.Validate
}

func New(log *slog.Logger, service Service, builder *links.Builder) *Handler {
	return &Handler{log: log, service: service, links: builder, validate: validation.New()}
}

// ServeHTTP godoc
// @Summary Обновить пользователя
// @Description Частично обновляет профиль по id или active. Роль USER может менять только свой профиль
// @Description и не может менять email и role.
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID пользователя или active"
// @Param request body Request true "Изменяемые атрибуты"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.ErrorResponse "Недопустимый атрибут"
// @Failure 401 {object} response.ErrorResponse "Нет авторизации"
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Failure 422 {object} response.ErrorResponse "Ошибка формата"
// @Failure 500 {object} response.ErrorResponse "Профиль не изменен"
// @Router /users/{id} [put]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.user.update"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	identity, ok := middlewarectx.IdentityFromContext(r.Context())
	if !ok {
		response.Fail(w, r, log, apperr.E(apperr.Unauthorized, "Invalid authorization", nil))
		return
	}

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		response.FailDecode(w, r, log, err)
		return
	}

	var attrs map[string]json.RawMessage
	if err := render.DecodeJSON(bytes.NewReader(raw), &attrs); err != nil {
		response.FailDecode(w, r, log, err)
		return
	}
	if len(attrs) == 0 {
		response.Fail(w, r, log, apperr.E(apperr.BadRequest, "The body must contain at least one attribute to update", nil))
		return
	}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}

	var req Request
	if err := render.DecodeJSON(bytes.NewReader(raw), &req); err != nil {
		response.FailDecode(w, r, log, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.FailValidation(w, r, log, err)
		return
	}

	if err := h.service.Update(r.Context(), identity, chi.URLParam(r, "id"), keys, req.patch()); err != nil {
		response.Fail(w, r, log, err)
		return
	}

	log.Info("user updated", sl.UserID(identity.ID), slog.Any("attributes", keys))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.Message("User updated successfully.", links.Set{
		"self":            h.links.UpdateUser(),
		"user":            h.links.GetUser(),
		"forgot_password": h.links.ForgotPassword(),
		"change_email":    h.links.ChangeEmail(),
	}))
}

// Package email реализует смену адреса почты: запрос со ссылкой на новый
// адрес и подтверждение по этой ссылке.
package email

import (
	"context"
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

// Request новый адрес.
type Request struct {
	Email string `json:"email" validate:"required,email_format" example:"jane.new@example.com"`
}

// Service описывает сценарии смены адреса.
type Service interface {
	ChangeEmail(ctx context.Context, identity models.Identity, newEmail string) error
	VerifyNewEmail(ctx context.Context, token string) error
}

// ChangeHandler обрабатывает POST /v1/auth/new_email.
type ChangeHandler struct {
	log      *slog.Logger
	service  Service
	links    *links.Builder
	validate *validator.Validate
}

func NewChange(log *slog.Logger, service Service, builder *links.Builder) *ChangeHandler {
	return &ChangeHandler{log: log, service: service, links: builder, validate: validation.New()}
}

// ServeHTTP godoc
// @Summary Сменить адрес почты
// @Description Отправляет ссылку подтверждения на новый адрес. Адрес меняется только после перехода по ссылке.
// @Tags Auth
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body Request true "Новый адрес"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.ErrorResponse "Адрес занят или совпадает с текущим"
// @Failure 401 {object} response.ErrorResponse "Нет авторизации"
// @Failure 422 {object} response.ErrorResponse "Ошибка формата"
// @Failure 500 {object} response.ErrorResponse "Письмо не отправлено"
// @Router /auth/new_email [post]
func (h *ChangeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.email.change"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	identity, ok := middlewarectx.IdentityFromContext(r.Context())
	if !ok {
		response.Fail(w, r, log, apperr.E(apperr.Unauthorized, "Invalid authorization", nil))
		return
	}

	var req Request
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		response.FailDecode(w, r, log, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.FailValidation(w, r, log, err)
		return
	}

	if err := h.service.ChangeEmail(r.Context(), identity, req.Email); err != nil {
		response.Fail(w, r, log, err)
		return
	}

	log.Info("email change requested", sl.UserID(identity.ID))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.Message("Verification email sent to the new address", links.Set{
		"self":   h.links.ChangeEmail(),
		"active": h.links.ActiveUser(),
	}))
}

// VerifyHandler обрабатывает PATCH /v1/auth/new_email/{token}.
type VerifyHandler struct {
	log     *slog.Logger
	service Service
	links   *links.Builder
}

func NewVerify(log *slog.Logger, service Service, builder *links.Builder) *VerifyHandler {
	return &VerifyHandler{log: log, service: service, links: builder}
}

// ServeHTTP godoc
// @Summary Подтвердить новый адрес
// @Description Проверяет токен из письма и сохраняет новый адрес.
// @Tags Auth
// @Produce json
// @Param token path string true "Токен из письма"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse "Адрес уже занят"
// @Failure 401 {object} response.ErrorResponse "Токен недействителен или истек"
// @Router /auth/new_email/{token} [patch]
func (h *VerifyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.email.verify"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	if err := h.service.VerifyNewEmail(r.Context(), chi.URLParam(r, "token")); err != nil {
		response.Fail(w, r, log, err)
		return
	}

	log.Info("email changed")
	render.JSON(w, r, response.Message("Email updated successfully", links.Set{
		"sign_in": h.links.SignIn(),
	}))
}

// Package password реализует запрос на сброс пароля и установку нового
// пароля по ссылке из письма.
//
// В основном режиме новый пароль передается только при переходе по ссылке.
// В устаревшем режиме (auth.legacy_reset_flow) пароль передается в запросе
// на сброс и сохраняется в самом токене, а переход по ссылке тела не требует.
package password

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/user-management/internal/http/links"
	"github.com/magabrotheeeer/user-management/internal/http/response"
	"github.com/magabrotheeeer/user-management/internal/lib/validation"
)

// ForgotRequest запрос на сброс пароля. Password нужен только в
// устаревшем режиме.
type ForgotRequest struct {
	Email    string `json:"email" validate:"required,email_format" example:"jane@example.com"`
	Password string `json:"password,omitempty" validate:"omitempty,password_policy"`
}

// ResetRequest новый пароль.
type ResetRequest struct {
	Password string `json:"password" validate:"omitempty,password_policy" example:"NewPass1$"`
}

// Service описывает сценарии сброса пароля.
type Service interface {
	ForgotPassword(ctx context.Context, email, newPassword string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
}

// ForgotHandler обрабатывает POST /v1/auth/new_password.
type ForgotHandler struct {
	log      *slog.Logger
	service  Service
	links    *links.Builder
	validate *validator.Validate
}

func NewForgot(log *slog.Logger, service Service, builder *links.Builder) *ForgotHandler {
	return &ForgotHandler{log: log, service: service, links: builder, validate: validation.New()}
}

// ServeHTTP godoc
// @Summary Запросить сброс пароля
// @Description Отправляет на email ссылку для установки нового пароля.
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body ForgotRequest true "Адрес"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.ErrorResponse "Отсутствует атрибут"
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Failure 422 {object} response.ErrorResponse "Ошибка формата"
// @Failure 500 {object} response.ErrorResponse "Письмо не отправлено"
// @Router /auth/new_password [post]
func (h *ForgotHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.password.forgot"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req ForgotRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		response.FailDecode(w, r, log, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.FailValidation(w, r, log, err)
		return
	}

	if err := h.service.ForgotPassword(r.Context(), req.Email, req.Password); err != nil {
		response.Fail(w, r, log, err)
		return
	}

	log.Info("reset password email sent")
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.Message("Reset password email sent", links.Set{
		"self":    h.links.ForgotPassword(),
		"sign_in": h.links.SignIn(),
	}))
}

// ResetHandler обрабатывает PATCH /v1/auth/new_password/{reset_token}.
type ResetHandler struct {
	log      *slog.Logger
	service  Service
	links    *links.Builder
	validate *validator.Validate
}

func NewReset(log *slog.Logger, service Service, builder *links.Builder) *ResetHandler {
	return &ResetHandler{log: log, service: service, links: builder, validate: validation.New()}
}

// ServeHTTP godoc
// @Summary Установить новый пароль
// @Description Погашает токен сброса и сохраняет новый пароль. В устаревшем режиме тело не требуется.
// @Tags Auth
// @Accept json
// @Produce json
// @Param reset_token path string true "Токен из письма"
// @Param request body ResetRequest false "Новый пароль"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse "Отсутствует атрибут"
// @Failure 401 {object} response.ErrorResponse "Токен недействителен или истек"
// @Failure 422 {object} response.ErrorResponse "Ошибка формата"
// @Router /auth/new_password/{reset_token} [patch]
func (h *ResetHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.password.reset"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req ResetRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil && !errors.Is(err, io.EOF) {
		response.FailDecode(w, r, log, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.FailValidation(w, r, log, err)
		return
	}

	if err := h.service.ResetPassword(r.Context(), chi.URLParam(r, "reset_token"), req.Password); err != nil {
		response.Fail(w, r, log, err)
		return
	}

	log.Info("password reset")
	render.JSON(w, r, response.Message("Password updated successfully", links.Set{
		"sign_in": h.links.SignIn(),
	}))
}

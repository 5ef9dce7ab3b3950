// Package verification реализует отправку письма подтверждения и переход
// по ссылке из него.
package verification

import (
	"context"
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

// Request адрес учетной записи, которую нужно подтвердить.
type Request struct {
	Email string `json:"email" validate:"required,email_format" example:"jane@example.com"`
}

// Service описывает сценарии подтверждения учетной записи.
type Service interface {
	SendVerification(ctx context.Context, email string) error
	VerifyAccount(ctx context.Context, token string) error
}

// SendHandler обрабатывает POST /v1/auth/verification.
type SendHandler struct {
	log      *slog.Logger
	service  Service
	links    *links.Builder
	validate *validator.Validate
}

func NewSend(log *slog.Logger, service Service, builder *links.Builder) *SendHandler {
	return &SendHandler{log: log, service: service, links: builder, validate: validation.New()}
}

// ServeHTTP godoc
// @Summary Отправить письмо подтверждения
// @Description Выпускает новый код подтверждения и отправляет ссылку на email. Предыдущая ссылка перестает действовать.
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body Request true "Адрес"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.ErrorResponse "Учетная запись уже подтверждена"
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Failure 422 {object} response.ErrorResponse "Ошибка формата"
// @Failure 500 {object} response.ErrorResponse "Письмо не отправлено"
// @Router /auth/verification [post]
func (h *SendHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.verification.send"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		response.FailDecode(w, r, log, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.FailValidation(w, r, log, err)
		return
	}

	if err := h.service.SendVerification(r.Context(), req.Email); err != nil {
		response.Fail(w, r, log, err)
		return
	}

	log.Info("verification email sent")
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.Message("Verification email sent", links.Set{
		"self":    h.links.SendVerification(),
		"sign_in": h.links.SignIn(),
	}))
}

// VerifyHandler обрабатывает GET /v1/auth/verification/{token}.
type VerifyHandler struct {
	log     *slog.Logger
	service Service
	links   *links.Builder
}

func NewVerify(log *slog.Logger, service Service, builder *links.Builder) *VerifyHandler {
	return &VerifyHandler{log: log, service: service, links: builder}
}

// ServeHTTP godoc
// @Summary Подтвердить учетную запись
// @Description Проверяет токен из письма и отмечает учетную запись подтвержденной.
// @Tags Auth
// @Produce json
// @Param token path string true "Токен из письма"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse "Учетная запись уже подтверждена"
// @Failure 401 {object} response.ErrorResponse "Токен недействителен или истек"
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Router /auth/verification/{token} [get]
func (h *VerifyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.verification.verify"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	if err := h.service.VerifyAccount(r.Context(), chi.URLParam(r, "token")); err != nil {
		response.Fail(w, r, log, err)
		return
	}

	log.Info("account verified")
	render.JSON(w, r, response.Message("Your account has been verified successfully", links.Set{
		"sign_in": h.links.SignIn(),
	}))
}

// Package signin реализует HTTP-обработчик входа по email и паролю.
//
// При успешном входе токен сессии возвращается в теле ответа и в
// httpOnly cookie jwt. Клиент должен передавать его в обоих местах.
package signin

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/user-management/internal/http/links"
	"github.com/magabrotheeeer/user-management/internal/http/middlewarectx"
	"github.com/magabrotheeeer/user-management/internal/http/response"
	"github.com/magabrotheeeer/user-management/internal/lib/sl"
	"github.com/magabrotheeeer/user-management/internal/lib/validation"
	services "github.com/magabrotheeeer/user-management/internal/services/auth"
)

// Request учетные данные для входа.
type Request struct {
	Email    string `json:"email" validate:"required,email_format" example:"jane@example.com"`
	Password string `json:"password" validate:"required,password_policy" example:"User1234$"`
}

// Token тело успешного ответа.
type Token struct {
	SecurityToken string `json:"security_token"`
}

// Service описывает сценарий входа.
type Service interface {
	SignIn(ctx context.Context, email, password string) (*services.SignInResult, error)
}

// Handler обрабатывает POST /v1/auth/.
type Handler struct {
	log        *slog.Logger
	service    Service
	links      *links.Builder
	sessionTTL time.Duration
	validate   *validator.Validate
}

// New создает Handler. sessionTTL задает время жизни cookie.
func New(log *slog.Logger, service Service, builder *links.Builder, sessionTTL time.Duration) *Handler {
	return &Handler{
		log:        log,
		service:    service,
		links:      builder,
		sessionTTL: sessionTTL,
		validate:   validation.New(),
	}
}

// ServeHTTP godoc
// @Summary Вход пользователя
// @Description Проверяет email и пароль, выпускает токен сессии и устанавливает cookie jwt.
// @Description Неподтвержденной учетной записи возвращается сообщение и ссылка на повторную отправку письма.
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body Request true "Учетные данные"
// @Success 200 {object} response.Response "Токен сессии или просьба подтвердить почту"
// @Failure 400 {object} response.ErrorResponse "Неверный пароль или отсутствует атрибут"
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Failure 422 {object} response.ErrorResponse "Ошибка формата"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /auth/ [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.signin"

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

	res, err := h.service.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		response.Fail(w, r, log, err)
		return
	}

	if !res.Verified {
		log.Info("sign in of unverified account", sl.UserID(res.User.ID))
		render.JSON(w, r, response.Message(
			"You have to verify your account before signing in. Check your email account or ask for a new verification email.",
			links.Set{"verification": h.links.SendVerification()},
		))
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middlewarectx.SessionCookie,
		Value:    res.Token,
		Path:     "/",
		MaxAge:   int(h.sessionTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	log.Info("sign in success", sl.UserID(res.User.ID))
	render.JSON(w, r, response.OK(Token{SecurityToken: res.Token}, links.Set{
		"self":     h.links.SignIn(),
		"sign_out": h.links.SignOut(),
		"active":   h.links.ActiveUser(),
	}))
}

// Package feedback реализует прием сообщений обратной связи.
//
// Сообщение ставится в очередь mail.feedback и отправляется процессом
// mail-sender.
package feedback

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/user-management/internal/http/links"
	"github.com/magabrotheeeer/user-management/internal/http/response"
	"github.com/magabrotheeeer/user-management/internal/lib/validation"
	"github.com/magabrotheeeer/user-management/internal/models"
)

// Request сообщение обратной связи.
type Request struct {
	Email string `json:"email" validate:"required,email_format" example:"jane@example.com"`
	Name  string `json:"name" validate:"required,max=100" example:"Jane"`
	Text  string `json:"text" validate:"required,max=5000" example:"Great API"`
}

// Service описывает отправку обратной связи.
type Service interface {
	SendFeedback(ctx context.Context, feedback models.Feedback) error
}

// Handler обрабатывает POST /v1/users/feedback.
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
// @Summary Отправить отзыв
// @Tags Users
// @Accept json
// @Produce json
// @Param request body Request true "Отзыв"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse "Отсутствует атрибут"
// @Failure 422 {object} response.ErrorResponse "Ошибка формата"
// @Failure 500 {object} response.ErrorResponse "Очередь недоступна"
// @Router /users/feedback [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.user.feedback"

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

	err := h.service.SendFeedback(r.Context(), models.Feedback{Email: req.Email, Name: req.Name, Text: req.Text})
	if err != nil {
		response.Fail(w, r, log, err)
		return
	}

	log.Info("feedback queued")
	render.JSON(w, r, response.Message("Feedback sent succesfully. Thank you for taking the time", links.Set{
		"self":    h.links.Feedback(),
		"sign_in": h.links.SignIn(),
		"create":  h.links.CreateUser(),
	}))
}

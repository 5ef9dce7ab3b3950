// Package create реализует регистрацию учетной записи.
//
// Новая учетная запись всегда получает роль USER и остается
// неподтвержденной до перехода по ссылке из письма.
package create

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/user-management/internal/http/links"
	"github.com/magabrotheeeer/user-management/internal/http/response"
	"github.com/magabrotheeeer/user-management/internal/lib/sl"
	"github.com/magabrotheeeer/user-management/internal/lib/validation"
	"github.com/magabrotheeeer/user-management/internal/models"
	services "github.com/magabrotheeeer/user-management/internal/services/user"
)

const (
	msgCreated = "User created succesfully. Go to your email account and get verified to access to all the resources"
	msgNoEmail = "User created succesfully. The verification email could not be sent, ask for a new one to get verified"
)

// Request данные новой учетной записи.
type Request struct {
	Email        string          `json:"email" validate:"required,email_format" example:"jane@example.com"`
	Password     string          `json:"password" validate:"required,password_policy" example:"User1234$"`
	Name         string          `json:"name,omitempty" validate:"max=100"`
	LastName     string          `json:"last_name,omitempty" validate:"max=100"`
	ProfilePhoto string          `json:"profile_photo,omitempty" validate:"max=2048"`
	PhoneNumber  string          `json:"phone_number,omitempty" validate:"max=30"`
	Country      string          `json:"country,omitempty" validate:"max=100"`
	Address      *models.Address `json:"address,omitempty"`
	Age          *int            `json:"age,omitempty" validate:"omitempty,min=0,max=150"`
	Gender       string          `json:"gender,omitempty" validate:"omitempty,oneof=Male Female Other"`
	IsPublic     bool            `json:"is_public,omitempty"`
	Studies      []string        `json:"studies,omitempty"`
	Professions  []string        `json:"professions,omitempty"`
	Interests    []string        `json:"interests,omitempty"`
}

// Created ресурс ответа.
type Created struct {
	Message string       `json:"message"`
	User    *models.User `json:"user"`
}

// Service описывает создание учетной записи.
type Service interface {
	Create(ctx context.Context, in models.NewUser) (*services.CreateResult, error)
}

// Handler обрабатывает POST /v1/users/.
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
// @Summary Создать пользователя
// @Description Создает учетную запись с ролью USER и отправляет письмо подтверждения.
// @Description Атрибуты role, is_verified и is_active передавать нельзя.
// @Tags Users
// @Accept json
// @Produce json
// @Param request body Request true "Новый пользователь"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.ErrorResponse "Пользователь уже существует или запрещенный атрибут"
// @Failure 422 {object} response.ErrorResponse "Ошибка формата"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /users/ [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.user.create"

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

	res, err := h.service.Create(r.Context(), models.NewUser{
		Email:        req.Email,
		Password:     req.Password,
		Role:         models.RoleUser,
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
	})
	if err != nil {
		response.Fail(w, r, log, err)
		return
	}

	msg := msgCreated
	if !res.VerificationSent {
		msg = msgNoEmail
	}

	log.Info("user created", sl.UserID(res.User.ID), slog.Bool("verification_sent", res.VerificationSent))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.OK(Created{Message: msg, User: res.User}, links.Set{
		"self":            h.links.CreateUser(),
		"sign_in":         h.links.SignIn(),
		"verification":    h.links.SendVerification(),
		"forgot_password": h.links.ForgotPassword(),
		"change_email":    h.links.ChangeEmail(),
		"delete":          h.links.DeleteUser(),
	}))
}

// Package response содержит вспомогательные типы и функции для формирования
// унифицированных JSON-ответов HTTP-обработчиков.
//
// Успешный ответ: {"success": true, "resource" | "message", "_links"}.
// Ответ с ошибкой: {"success": false, "message"}; вид ошибки передается
// HTTP-статусом.
package response

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/user-management/internal/http/links"
	"github.com/magabrotheeeer/user-management/internal/lib/apperr"
	"github.com/magabrotheeeer/user-management/internal/lib/sl"
	"github.com/magabrotheeeer/user-management/internal/lib/validation"
)

// Response описывает стандартную структуру успешного JSON-ответа.
type Response struct {
	Success  bool      `json:"success"`
	Resource any       `json:"resource,omitempty"`
	Message  string    `json:"message,omitempty"`
	Links    links.Set `json:"_links,omitempty"`
}

// ErrorResponse структура ошибки, в том числе для Swagger-документации.
type ErrorResponse struct {
	Success bool   `json:"success" example:"false"`
	Message string `json:"message" example:"User not found"`
}

// OK возвращает успешный Response с ресурсом.
func OK(resource any, set links.Set) Response {
	return Response{Success: true, Resource: resource, Links: set}
}

// Message возвращает успешный Response с сообщением.
func Message(msg string, set links.Set) Response {
	return Response{Success: true, Message: msg, Links: set}
}

// Error возвращает ErrorResponse с переданным сообщением.
func Error(msg string) ErrorResponse {
	return ErrorResponse{Success: false, Message: msg}
}

// Fail единая точка ответа с ошибкой: статус и сообщение берутся из
// apperr, внутренние ошибки логируются и не раскрываются клиенту.
func Fail(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	status := apperr.Status(err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", slog.Int("status", status), sl.Err(err))
	} else {
		log.Info("request rejected", slog.Int("status", status), sl.Err(err))
	}
	render.Status(r, status)
	render.JSON(w, r, Error(apperr.Message(err)))
}

// FailDecode отвечает 400 на тело запроса, которое не удалось разобрать.
func FailDecode(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	Fail(w, r, log, apperr.E(apperr.BadRequest, "Invalid request body", err))
}

// FailValidation отвечает на ошибку валидатора. Отсутствующее
// обязательное поле дает 400, неверный формат 422.
func FailValidation(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	errs, ok := err.(validator.ValidationErrors)
	if !ok || len(errs) == 0 {
		Fail(w, r, log, apperr.E(apperr.BadRequest, "Invalid request body", err))
		return
	}
	Fail(w, r, log, ValidationError(errs))
}

// ValidationError превращает первую ошибку валидатора в ошибку приложения.
func ValidationError(errs validator.ValidationErrors) *apperr.Error {
	first := errs[0]
	field := first.Field()

	switch first.ActualTag() {
	case "required":
		return apperr.E(apperr.BadRequest, fmt.Sprintf("%s '%s' attribute is required", article(field), field), nil)
	case validation.TagEmail:
		return apperr.E(apperr.Unprocessable,
			fmt.Sprintf("The value of the '%s' attribute must be a valid email address", field), nil)
	case validation.TagPassword:
		return apperr.E(apperr.Unprocessable,
			fmt.Sprintf("The value of '%s' attribute must have at least one lowercase letter, one uppercase letter, "+
				"one digit, one special character, and be between 8 and 72 characters long.", field), nil)
	case "oneof":
		return apperr.E(apperr.Unprocessable,
			fmt.Sprintf("The value of the '%s' attribute must be one of: %s", field, strings.ReplaceAll(first.Param(), " ", ", ")), nil)
	default:
		return apperr.E(apperr.Unprocessable, fmt.Sprintf("The value of the '%s' attribute is not valid", field), nil)
	}
}

func article(word string) string {
	if word != "" && strings.ContainsRune("aeiouAEIOU", rune(word[0])) {
		return "An"
	}
	return "A"
}

// Package apperr описывает типизированные ошибки приложения.
//
// Сервисы возвращают *Error с видом (Kind) и сообщением для клиента,
// HTTP-слой отображает вид ошибки в статус ответа в одном месте.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind категория ошибки приложения.
type Kind int

const (
	// Internal непредвиденная ошибка инфраструктуры.
	Internal Kind = iota
	// BadRequest некорректный запрос или нарушение правил доступа к полям.
	BadRequest
	// Unauthorized отсутствует или недействителен токен сессии.
	Unauthorized
	// Forbidden роль пользователя не допускается к ресурсу.
	Forbidden
	// NotFound ресурс не найден или скрыт.
	NotFound
	// Unprocessable данные не проходят проверку формата.
	Unprocessable
	// Integrity частично выполненная операция была откатана.
	Integrity
)

func (k Kind) String() string {
	switch k {
	case BadRequest:
		return "bad_request"
	case Unauthorized:
		return "unauthorized"
	case Forbidden:
		return "forbidden"
	case NotFound:
		return "not_found"
	case Unprocessable:
		return "unprocessable"
	case Integrity:
		return "integrity"
	default:
		return "internal"
	}
}

// Status возвращает HTTP-статус для вида ошибки.
func (k Kind) Status() int {
	switch k {
	case BadRequest:
		return http.StatusBadRequest
	case Unauthorized:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case Unprocessable:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// Error ошибка приложения с сообщением для клиента и исходной причиной.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// E создает ошибку заданного вида. cause может быть nil.
func E(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Err: cause}
}

// KindOf возвращает вид ошибки из цепочки или Internal, если *Error в ней нет.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return Internal
}

// Status возвращает HTTP-статус для произвольной ошибки.
func Status(err error) int {
	return KindOf(err).Status()
}

// Message возвращает сообщение для клиента. Для внутренних ошибок
// подробности наружу не отдаются.
func Message(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Kind != Internal {
		return appErr.Message
	}
	return "Internal server error"
}

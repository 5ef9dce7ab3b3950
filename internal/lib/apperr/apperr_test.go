package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"bad request", E(BadRequest, "bad", nil), http.StatusBadRequest},
		{"unauthorized", E(Unauthorized, "no", nil), http.StatusUnauthorized},
		{"forbidden", E(Forbidden, "no", nil), http.StatusForbidden},
		{"not found", E(NotFound, "no", nil), http.StatusNotFound},
		{"unprocessable", E(Unprocessable, "no", nil), http.StatusUnprocessableEntity},
		{"integrity", E(Integrity, "rolled back", nil), http.StatusInternalServerError},
		{"обернутая ошибка приложения", fmt.Errorf("op: %w", E(NotFound, "no", nil)), http.StatusNotFound},
		{"обычная ошибка", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Status(tt.err))
		})
	}
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "User not found.", Message(E(NotFound, "User not found.", nil)))
	assert.Equal(t, "Internal server error", Message(errors.New("pq: connection refused")))
	assert.Equal(t, "Internal server error", Message(E(Internal, "db down", nil)))
	assert.Equal(t, "Email could not be sent", Message(E(Integrity, "Email could not be sent", errors.New("smtp"))))
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("cause")
	err := E(Internal, "wrapped", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "wrapped: cause", err.Error())
	assert.Equal(t, "plain", E(BadRequest, "plain", nil).Error())
	assert.Equal(t, "not_found", NotFound.String())
}

package response

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/user-management/internal/lib/apperr"
	"github.com/magabrotheeeer/user-management/internal/lib/validation"
)

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFail(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{"ошибка приложения", apperr.E(apperr.NotFound, "User not found", nil), http.StatusNotFound, "User not found"},
		{"нарушение целостности", apperr.E(apperr.Integrity, "User not modified.", nil), http.StatusInternalServerError, "User not modified."},
		{"внутренняя ошибка скрыта", errors.New("pq: password authentication failed"), http.StatusInternalServerError, "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/", nil)

			Fail(rr, req, newNoopLogger(), tt.err)

			assert.Equal(t, tt.wantStatus, rr.Code)
			var body map[string]any
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tt.wantMsg, body["message"])
		})
	}
}

func TestFailValidation(t *testing.T) {
	type request struct {
		Email    string `json:"email" validate:"required,email_format"`
		Password string `json:"password" validate:"required,password_policy"`
	}
	v := validation.New()

	tests := []struct {
		name       string
		req        request
		wantStatus int
		wantMsg    string
	}{
		{
			name:       "нет email",
			req:        request{Password: "User1234$"},
			wantStatus: http.StatusBadRequest,
			wantMsg:    "An 'email' attribute is required",
		},
		{
			name:       "нет пароля",
			req:        request{Email: "jane@example.com"},
			wantStatus: http.StatusBadRequest,
			wantMsg:    "A 'password' attribute is required",
		},
		{
			name:       "неверный email",
			req:        request{Email: "jane", Password: "User1234$"},
			wantStatus: http.StatusUnprocessableEntity,
			wantMsg:    "The value of the 'email' attribute must be a valid email address",
		},
		{
			name:       "слабый пароль",
			req:        request{Email: "jane@example.com", Password: "user"},
			wantStatus: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/", nil)

			FailValidation(rr, req, newNoopLogger(), v.Struct(tt.req))

			assert.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantMsg != "" {
				assert.Contains(t, rr.Body.String(), tt.wantMsg)
			}
		})
	}
}

func TestOK_Envelope(t *testing.T) {
	data, err := json.Marshal(Message("User deleted successfully.", nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true,"message":"User deleted successfully."}`, string(data))
}

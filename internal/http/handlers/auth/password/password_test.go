package password

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/user-management/internal/http/links"
	"github.com/magabrotheeeer/user-management/internal/lib/apperr"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) ForgotPassword(ctx context.Context, email, newPassword string) error {
	return m.Called(ctx, email, newPassword).Error(0)
}

func (m *MockService) ResetPassword(ctx context.Context, token, newPassword string) error {
	return m.Called(ctx, token, newPassword).Error(0)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newRouter(svc Service) http.Handler {
	b := links.New("http://localhost:8080")
	r := chi.NewRouter()
	r.Post("/v1/auth/new_password", NewForgot(newNoopLogger(), svc, b).ServeHTTP)
	r.Patch("/v1/auth/new_password/{reset_token}", NewReset(newNoopLogger(), svc, b).ServeHTTP)
	return r
}

func TestForgotHandler(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		setup      func(m *MockService)
		wantStatus int
	}{
		{
			name: "только email",
			body: `{"email":"jane@example.com"}`,
			setup: func(m *MockService) {
				m.On("ForgotPassword", mock.Anything, "jane@example.com", "").Return(nil).Once()
			},
			wantStatus: http.StatusCreated,
		},
		{
			name: "email и пароль",
			body: `{"email":"jane@example.com","password":"NewPass1$"}`,
			setup: func(m *MockService) {
				m.On("ForgotPassword", mock.Anything, "jane@example.com", "NewPass1$").Return(nil).Once()
			},
			wantStatus: http.StatusCreated,
		},
		{
			name: "пользователь не найден",
			body: `{"email":"nobody@example.com"}`,
			setup: func(m *MockService) {
				m.On("ForgotPassword", mock.Anything, "nobody@example.com", "").
					Return(apperr.E(apperr.NotFound, "User not found", nil)).Once()
			},
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "слабый пароль",
			body:       `{"email":"jane@example.com","password":"weak"}`,
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "нет email",
			body:       `{}`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			if tt.setup != nil {
				tt.setup(svc)
			}

			rec := httptest.NewRecorder()
			newRouter(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/auth/new_password", bytes.NewBufferString(tt.body)))

			assert.Equal(t, tt.wantStatus, rec.Code)
			svc.AssertExpectations(t)
		})
	}
}

func TestResetHandler(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		setup      func(m *MockService)
		wantStatus int
	}{
		{
			name: "новый пароль в теле",
			body: `{"password":"NewPass1$"}`,
			setup: func(m *MockService) {
				m.On("ResetPassword", mock.Anything, "tok", "NewPass1$").Return(nil).Once()
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "пустое тело",
			body: ``,
			setup: func(m *MockService) {
				m.On("ResetPassword", mock.Anything, "tok", "").Return(nil).Once()
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "токен заменен новым",
			body: `{"password":"NewPass1$"}`,
			setup: func(m *MockService) {
				m.On("ResetPassword", mock.Anything, "tok", "NewPass1$").
					Return(apperr.E(apperr.Unauthorized, "Invalid token", nil)).Once()
			},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "слабый пароль",
			body:       `{"password":"weak"}`,
			wantStatus: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			if tt.setup != nil {
				tt.setup(svc)
			}

			rec := httptest.NewRecorder()
			newRouter(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/v1/auth/new_password/tok", bytes.NewBufferString(tt.body)))

			assert.Equal(t, tt.wantStatus, rec.Code)
			svc.AssertExpectations(t)
		})
	}
}

package signout

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/user-management/internal/http/links"
	"github.com/magabrotheeeer/user-management/internal/http/middlewarectx"
	"github.com/magabrotheeeer/user-management/internal/models"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) SignOut(ctx context.Context, identity models.Identity, token string) error {
	return m.Called(ctx, identity, token).Error(0)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func authed(req *http.Request, identity models.Identity, token string) *http.Request {
	ctx := context.WithValue(req.Context(), middlewarectx.IdentityKey, identity)
	ctx = context.WithValue(ctx, middlewarectx.TokenKey, token)
	return req.WithContext(ctx)
}

func TestHandler_ServeHTTP(t *testing.T) {
	identity := models.Identity{ID: "u1", Role: models.RoleUser}

	t.Run("выход очищает cookie", func(t *testing.T) {
		svc := new(MockService)
		svc.On("SignOut", mock.Anything, identity, "tok").Return(nil).Once()
		h := New(newNoopLogger(), svc, links.New("http://localhost:8080"))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, authed(httptest.NewRequest(http.MethodDelete, "/v1/auth/", nil), identity, "tok"))

		assert.Equal(t, http.StatusOK, rec.Code)
		cookies := rec.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, "jwt", cookies[0].Name)
		assert.Empty(t, cookies[0].Value)
		assert.Less(t, cookies[0].MaxAge, 0)
		svc.AssertExpectations(t)
	})

	t.Run("ошибка хранилища", func(t *testing.T) {
		svc := new(MockService)
		svc.On("SignOut", mock.Anything, identity, "tok").Return(errors.New("db down")).Once()
		h := New(newNoopLogger(), svc, links.New("http://localhost:8080"))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, authed(httptest.NewRequest(http.MethodDelete, "/v1/auth/", nil), identity, "tok"))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Empty(t, rec.Result().Cookies())
	})

	t.Run("без авторизации", func(t *testing.T) {
		svc := new(MockService)
		h := New(newNoopLogger(), svc, links.New("http://localhost:8080"))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/v1/auth/", nil))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		svc.AssertNotCalled(t, "SignOut", mock.Anything, mock.Anything, mock.Anything)
	})
}

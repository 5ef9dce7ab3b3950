package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/user-management/internal/models"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) PurgeBlacklist(ctx context.Context, olderThan time.Time) (int64, error) {
	args := m.Called(ctx, olderThan)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRepository) PurgeStalePending(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestSchedulerService_runPurge(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	cutoff := now.Add(-models.BlacklistTTL)

	tests := []struct {
		name       string
		setupMocks func(*MockRepository)
	}{
		{
			name: "успешная очистка",
			setupMocks: func(r *MockRepository) {
				r.On("PurgeBlacklist", mock.Anything, cutoff).Return(int64(3), nil).Once()
				r.On("PurgeStalePending", mock.Anything, now).Return(int64(1), nil).Once()
			},
		},
		{
			name: "ошибка очистки черного списка не мешает очистке кодов",
			setupMocks: func(r *MockRepository) {
				r.On("PurgeBlacklist", mock.Anything, cutoff).Return(int64(0), errors.New("db error")).Once()
				r.On("PurgeStalePending", mock.Anything, now).Return(int64(0), nil).Once()
			},
		},
		{
			name: "ошибка очистки кодов только логируется",
			setupMocks: func(r *MockRepository) {
				r.On("PurgeBlacklist", mock.Anything, cutoff).Return(int64(0), nil).Once()
				r.On("PurgeStalePending", mock.Anything, now).Return(int64(0), errors.New("db error")).Once()
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockRepository)
			service := NewSchedulerService(repo, newNoopLogger())
			service.now = func() time.Time { return now }

			tt.setupMocks(repo)
			service.runPurge(context.Background())

			repo.AssertExpectations(t)
		})
	}
}

func TestSchedulerService_RunStopsOnCancel(t *testing.T) {
	repo := new(MockRepository)
	repo.On("PurgeBlacklist", mock.Anything, mock.Anything).Return(int64(0), nil)
	repo.On("PurgeStalePending", mock.Anything, mock.Anything).Return(int64(0), nil)

	service := NewSchedulerService(repo, newNoopLogger())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		service.Run(ctx, 10*time.Millisecond)
		close(done)
	}()

	time.Sleep(35 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
	repo.AssertCalled(t, "PurgeBlacklist", mock.Anything, mock.Anything)
}

// Package services содержит периодическую очистку отозванных токенов и
// просроченных кодов подтверждения.
package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/user-management/internal/lib/sl"
	"github.com/magabrotheeeer/user-management/internal/models"
)

// Repository описывает операции очистки.
type Repository interface {
	PurgeBlacklist(ctx context.Context, olderThan time.Time) (int64, error)
	PurgeStalePending(ctx context.Context, now time.Time) (int64, error)
}

// SchedulerService выполняет очистку по таймеру.
type SchedulerService struct {
	repo Repository
	log  *slog.Logger
	now  func() time.Time
}

// NewSchedulerService создает новый экземпляр SchedulerService.
func NewSchedulerService(repo Repository, log *slog.Logger) *SchedulerService {
	return &SchedulerService{
		repo: repo,
		log:  log,
		now:  time.Now,
	}
}

// Run запускает очистку сразу и затем каждые interval до отмены ctx.
func (s *SchedulerService) Run(ctx context.Context, interval time.Duration) {
	s.runPurge(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.runPurge(ctx)
		}
	}
}

func (s *SchedulerService) runPurge(ctx context.Context) {
	now := s.now()
	s.log.Info("starting purge of expired auth state")

	tokens, err := s.repo.PurgeBlacklist(ctx, now.Add(-models.BlacklistTTL))
	if err != nil {
		s.log.Error("failed to purge blacklisted tokens", sl.Err(err))
	} else {
		s.log.Info("purged blacklisted tokens", "count", tokens)
	}

	pending, err := s.repo.PurgeStalePending(ctx, now)
	if err != nil {
		s.log.Error("failed to purge stale pending codes", sl.Err(err))
		return
	}
	s.log.Info("purged stale pending codes", "count", pending)
}

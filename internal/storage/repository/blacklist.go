package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/magabrotheeeer/user-management/internal/models"
)

// AddToBlacklist отзывает токен пользователя. Повторный отзыв не ошибка.
func (s *Storage) AddToBlacklist(ctx context.Context, userID, token string) error {
	const op = "storage.AddToBlacklist"
	_, err := s.DB.Exec(ctx, `INSERT INTO black_listed_tokens (user_id, token)
		VALUES ($1, $2)
		ON CONFLICT (user_id, token) DO NOTHING`, userID, token)
	if isPgCode(err, codeForeignKeyViolation) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// IsBlacklisted сообщает, отозван ли токен. Записи старше BlacklistTTL
// не учитываются, даже если еще не удалены.
func (s *Storage) IsBlacklisted(ctx context.Context, userID, token string) (bool, error) {
	const op = "storage.IsBlacklisted"
	if !validID(userID) {
		return false, nil
	}
	var exists bool
	err := s.DB.QueryRow(ctx, `SELECT EXISTS (
		SELECT 1 FROM black_listed_tokens
		WHERE user_id = $1 AND token = $2 AND created_at > $3
	)`, userID, token, time.Now().Add(-models.BlacklistTTL)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return exists, nil
}

// PurgeBlacklist удаляет записи, созданные раньше olderThan.
func (s *Storage) PurgeBlacklist(ctx context.Context, olderThan time.Time) (int64, error) {
	const op = "storage.PurgeBlacklist"
	tag, err := s.DB.Exec(ctx, `DELETE FROM black_listed_tokens WHERE created_at < $1`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return tag.RowsAffected(), nil
}

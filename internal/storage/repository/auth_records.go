package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/magabrotheeeer/user-management/internal/models"
)

// GetAuthRecord возвращает запись аутентификации пользователя.
func (s *Storage) GetAuthRecord(ctx context.Context, userID string) (*models.AuthRecord, error) {
	const op = "storage.GetAuthRecord"
	if !validID(userID) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}

	var (
		rec                  models.AuthRecord
		resetToken, code     *string
		resetExpire, expires *time.Time
	)
	err := s.DB.QueryRow(ctx, `SELECT user_id::text, reset_password_token, reset_password_expire,
			verification_code, verification_expire
		FROM auth_records WHERE user_id = $1`, userID).
		Scan(&rec.UserID, &resetToken, &resetExpire, &code, &expires)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if resetToken != nil {
		rec.ResetPasswordToken = *resetToken
	}
	if code != nil {
		rec.VerificationCode = *code
	}
	rec.ResetPasswordExpire = resetExpire
	rec.VerificationExpire = expires
	return &rec, nil
}

// EnsureAuthRecord создает пустую запись аутентификации, если ее еще нет.
func (s *Storage) EnsureAuthRecord(ctx context.Context, userID string) (*models.AuthRecord, error) {
	const op = "storage.EnsureAuthRecord"
	if !validID(userID) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}

	_, err := s.DB.Exec(ctx, `INSERT INTO auth_records (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, userID)
	if isPgCode(err, codeForeignKeyViolation) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return s.GetAuthRecord(ctx, userID)
}

// SetVerification задает код подтверждения и срок его действия.
func (s *Storage) SetVerification(ctx context.Context, userID, code string, expire time.Time) error {
	const op = "storage.SetVerification"
	_, err := s.DB.Exec(ctx, `INSERT INTO auth_records (user_id, verification_code, verification_expire)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET verification_code = EXCLUDED.verification_code,
		    verification_expire = EXCLUDED.verification_expire`, userID, code, expire)
	if isPgCode(err, codeForeignKeyViolation) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ClearVerification очищает код подтверждения вместе со сроком.
func (s *Storage) ClearVerification(ctx context.Context, userID string) error {
	const op = "storage.ClearVerification"
	if _, err := s.DB.Exec(ctx, `UPDATE auth_records
		SET verification_code = NULL, verification_expire = NULL
		WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// SetResetToken сохраняет хэш токена сброса пароля и срок его действия.
func (s *Storage) SetResetToken(ctx context.Context, userID, tokenHash string, expire time.Time) error {
	const op = "storage.SetResetToken"
	_, err := s.DB.Exec(ctx, `INSERT INTO auth_records (user_id, reset_password_token, reset_password_expire)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET reset_password_token = EXCLUDED.reset_password_token,
		    reset_password_expire = EXCLUDED.reset_password_expire`, userID, tokenHash, expire)
	if isPgCode(err, codeForeignKeyViolation) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ClearResetToken очищает токен сброса пароля вместе со сроком.
func (s *Storage) ClearResetToken(ctx context.Context, userID string) error {
	const op = "storage.ClearResetToken"
	if _, err := s.DB.Exec(ctx, `UPDATE auth_records
		SET reset_password_token = NULL, reset_password_expire = NULL
		WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// MarkVerified отмечает учетную запись подтвержденной и очищает код
// подтверждения в одной транзакции.
func (s *Storage) MarkVerified(ctx context.Context, userID string) error {
	const op = "storage.MarkVerified"
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE users SET is_verified = TRUE, updated_at = now() WHERE id = $1`, userID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		_, err = tx.Exec(ctx, `UPDATE auth_records
			SET verification_code = NULL, verification_expire = NULL
			WHERE user_id = $1`, userID)
		return err
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// CommitEmailChange записывает новый адрес и очищает код подтверждения
// в одной транзакции.
func (s *Storage) CommitEmailChange(ctx context.Context, userID, newEmail string) error {
	const op = "storage.CommitEmailChange"
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE users SET email = $2, updated_at = now() WHERE id = $1`, userID, newEmail)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		_, err = tx.Exec(ctx, `UPDATE auth_records
			SET verification_code = NULL, verification_expire = NULL
			WHERE user_id = $1`, userID)
		return err
	})
	if isPgCode(err, codeUniqueViolation) {
		return fmt.Errorf("%s: %w", op, ErrEmailTaken)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// CommitPasswordReset записывает новый хэш пароля и очищает токен сброса
// в одной транзакции.
func (s *Storage) CommitPasswordReset(ctx context.Context, userID, passwordHash string) error {
	const op = "storage.CommitPasswordReset"
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`, userID, passwordHash)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		_, err = tx.Exec(ctx, `UPDATE auth_records
			SET reset_password_token = NULL, reset_password_expire = NULL
			WHERE user_id = $1`, userID)
		return err
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// PurgeStalePending очищает истекшие коды подтверждения и токены сброса.
func (s *Storage) PurgeStalePending(ctx context.Context, now time.Time) (int64, error) {
	const op = "storage.PurgeStalePending"
	var total int64
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE auth_records
			SET verification_code = NULL, verification_expire = NULL
			WHERE verification_expire < $1`, now)
		if err != nil {
			return err
		}
		total += tag.RowsAffected()
		tag, err = tx.Exec(ctx, `UPDATE auth_records
			SET reset_password_token = NULL, reset_password_expire = NULL
			WHERE reset_password_expire < $1`, now)
		if err != nil {
			return err
		}
		total += tag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return total, nil
}

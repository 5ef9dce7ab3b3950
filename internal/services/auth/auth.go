// Package services содержит сценарии аутентификации: вход и выход,
// подтверждение учетной записи, сброс пароля и смену почты.
//
// Каждый сценарий это короткая последовательность изменений пользователя
// и его записи аутентификации. Если письмо не удалось отправить, только
// что выставленный код или токен очищается до возврата ошибки.
package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/user-management/internal/cache"
	"github.com/magabrotheeeer/user-management/internal/lib/apperr"
	"github.com/magabrotheeeer/user-management/internal/lib/jwt"
	"github.com/magabrotheeeer/user-management/internal/lib/sl"
	"github.com/magabrotheeeer/user-management/internal/lib/smtp"
	"github.com/magabrotheeeer/user-management/internal/models"
	"github.com/magabrotheeeer/user-management/internal/storage/repository"
)

// Repository описывает операции хранилища, нужные сценариям аутентификации.
type Repository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	EmailTaken(ctx context.Context, email string) (bool, error)
	UpdateOne(ctx context.Context, filter models.UserFilter, patch models.UserPatch) (models.UpdateResult, error)

	EnsureAuthRecord(ctx context.Context, userID string) (*models.AuthRecord, error)
	GetAuthRecord(ctx context.Context, userID string) (*models.AuthRecord, error)
	SetVerification(ctx context.Context, userID, code string, expire time.Time) error
	ClearVerification(ctx context.Context, userID string) error
	SetResetToken(ctx context.Context, userID, tokenHash string, expire time.Time) error
	ClearResetToken(ctx context.Context, userID string) error
	MarkVerified(ctx context.Context, userID string) error
	CommitEmailChange(ctx context.Context, userID, newEmail string) error
	CommitPasswordReset(ctx context.Context, userID, passwordHash string) error

	AddToBlacklist(ctx context.Context, userID, token string) error
}

// TokenMaker выпускает и разбирает подписанные токены.
type TokenMaker interface {
	GenerateSessionToken(user *models.User) (string, error)
	GenerateVerificationToken(email, code string) (string, error)
	ParseVerificationToken(token string) (*jwt.VerificationClaims, error)
	GenerateEmailChangeToken(userID, newEmail, code string) (string, error)
	ParseEmailChangeToken(token string) (*jwt.EmailChangeClaims, error)
	GenerateResetToken(userID, sealedPassword string) (string, error)
	ParseResetToken(token string) (*jwt.ResetClaims, error)
}

// Hasher хэширует и проверяет пароли.
type Hasher interface {
	GetHash(password string) (string, error)
	Verify(password, hash string) bool
}

// Sealer шифрует новый пароль, передаваемый внутри токена сброса.
type Sealer interface {
	Seal(plaintext []byte) (string, error)
	Open(sealed string) ([]byte, error)
}

// Mailer отправляет письма.
type Mailer interface {
	Send(ctx context.Context, to, subject, html string) (smtp.Receipt, error)
}

// Cache хранит профили пользователей.
type Cache interface {
	Invalidate(ctx context.Context, key string) error
}

// EventRecorder учитывает исходы сценариев аутентификации.
type EventRecorder interface {
	AuthEvent(event, outcome string)
}

// Options параметры сценариев.
type Options struct {
	// PublicURL адрес API, из которого строятся ссылки в письмах.
	PublicURL       string
	VerificationTTL time.Duration
	EmailChangeTTL  time.Duration
	ResetTTL        time.Duration
	// LegacyReset включает режим, в котором новый пароль передается при
	// запросе сброса и хранится зашифрованным в токене.
	LegacyReset bool
}

// SignInResult результат входа. Для неподтвержденной учетной записи
// Token пуст, а Verified ложно.
type SignInResult struct {
	Token    string
	Verified bool
	User     *models.User
}

// AuthService реализует сценарии аутентификации.
type AuthService struct {
	log    *slog.Logger
	repo   Repository
	tokens TokenMaker
	hasher Hasher
	sealer Sealer
	mailer Mailer
	cache  Cache
	events EventRecorder
	opts   Options
	now    func() time.Time
}

// NewAuthService создает новый экземпляр AuthService.
func NewAuthService(log *slog.Logger, repo Repository, tokens TokenMaker, hasher Hasher,
	sealer Sealer, mailer Mailer, cache Cache, opts Options) *AuthService {
	return &AuthService{
		log:    log,
		repo:   repo,
		tokens: tokens,
		hasher: hasher,
		sealer: sealer,
		mailer: mailer,
		cache:  cache,
		events: noopRecorder{},
		opts:   opts,
		now:    time.Now,
	}
}

// WithClock подменяет источник времени.
func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	s.now = now
	return s
}

// WithEvents подключает учет событий.
func (s *AuthService) WithEvents(events EventRecorder) *AuthService {
	if events != nil {
		s.events = events
	}
	return s
}

type noopRecorder struct{}

func (noopRecorder) AuthEvent(string, string) {}

// LegacyReset сообщает, включен ли режим сброса с паролем в токене.
func (s *AuthService) LegacyReset() bool {
	return s.opts.LegacyReset
}

// SignIn проверяет учетные данные и выпускает токен сессии.
func (s *AuthService) SignIn(ctx context.Context, email, password string) (*SignInResult, error) {
	const op = "services.auth.SignIn"

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		s.events.AuthEvent("sign_in", "not_found")
		return nil, s.storageErr(op, err, "User not found")
	}
	if !user.IsVerified {
		s.events.AuthEvent("sign_in", "unverified")
		return &SignInResult{User: user}, nil
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		s.events.AuthEvent("sign_in", "bad_password")
		return nil, apperr.E(apperr.BadRequest, "Invalid credentials", nil)
	}

	token, err := s.tokens.GenerateSessionToken(user)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.setActive(ctx, user.ID, true); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	user.IsActive = true

	s.events.AuthEvent("sign_in", "ok")
	s.log.Info("user signed in", sl.UserID(user.ID))
	return &SignInResult{Token: token, Verified: true, User: user}, nil
}

// SignOut отзывает токен текущей сессии и снимает признак активности.
func (s *AuthService) SignOut(ctx context.Context, identity models.Identity, token string) error {
	const op = "services.auth.SignOut"

	if err := s.setActive(ctx, identity.ID, false); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.repo.AddToBlacklist(ctx, identity.ID, token); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.events.AuthEvent("sign_out", "ok")
	s.log.Info("user signed out", sl.UserID(identity.ID))
	return nil
}

func (s *AuthService) setActive(ctx context.Context, userID string, active bool) error {
	if _, err := s.repo.UpdateOne(ctx, models.ByID(userID), models.UserPatch{IsActive: &active}); err != nil {
		return err
	}
	s.invalidate(ctx, userID)
	return nil
}

// SendVerification повторно отправляет письмо подтверждения на адрес email.
func (s *AuthService) SendVerification(ctx context.Context, email string) error {
	const op = "services.auth.SendVerification"

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return s.storageErr(op, err, "User not found")
	}
	if user.IsVerified {
		return apperr.E(apperr.BadRequest, "You are already verified", nil)
	}
	return s.IssueVerification(ctx, user)
}

// IssueVerification выставляет новый код подтверждения и отправляет
// письмо со ссылкой. Предыдущий код перезаписывается.
func (s *AuthService) IssueVerification(ctx context.Context, user *models.User) error {
	const op = "services.auth.IssueVerification"

	if _, err := s.repo.EnsureAuthRecord(ctx, user.ID); err != nil {
		return s.storageErr(op, err, "User not found")
	}
	code, err := newCode()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	token, err := s.tokens.GenerateVerificationToken(user.Email, code)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.repo.SetVerification(ctx, user.ID, code, s.now().Add(s.opts.VerificationTTL)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	link := s.opts.PublicURL + "/v1/auth/verification/" + token
	html := fmt.Sprintf(`<p>Hello %s,</p><p>Please verify your account by following this <a href="%s">link</a>.</p>`,
		displayName(user), link)
	if _, err := s.mailer.Send(ctx, user.Email, "Account verification", html); err != nil {
		s.log.Error("failed to send verification email", sl.UserID(user.ID), sl.Err(err))
		s.rollback(op, func() error { return s.repo.ClearVerification(ctx, user.ID) })
		s.events.AuthEvent("verification_sent", "mail_failed")
		return apperr.E(apperr.Integrity, "Failed to send email", err)
	}
	s.events.AuthEvent("verification_sent", "ok")
	return nil
}

// VerifyAccount погашает токен подтверждения учетной записи.
func (s *AuthService) VerifyAccount(ctx context.Context, token string) error {
	const op = "services.auth.VerifyAccount"

	claims, err := s.tokens.ParseVerificationToken(token)
	if err != nil {
		s.events.AuthEvent("verify_account", "invalid_token")
		return tokenErr(err)
	}
	user, err := s.repo.GetByEmail(ctx, claims.Email)
	if err != nil {
		return s.storageErr(op, err, "User not found")
	}
	if user.IsVerified {
		return apperr.E(apperr.BadRequest, "You are already verified", nil)
	}
	if err := s.checkVerificationCode(ctx, op, user.ID, claims.Code); err != nil {
		s.events.AuthEvent("verify_account", "rejected")
		return err
	}
	if err := s.repo.MarkVerified(ctx, user.ID); err != nil {
		return s.storageErr(op, err, "User not found")
	}
	s.invalidate(ctx, user.ID)
	s.events.AuthEvent("verify_account", "ok")
	s.log.Info("account verified", sl.UserID(user.ID))
	return nil
}

func (s *AuthService) checkVerificationCode(ctx context.Context, op, userID, code string) error {
	rec, err := s.repo.GetAuthRecord(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.E(apperr.Unauthorized, "Invalid token", nil)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if !rec.HasVerification() || subtle.ConstantTimeCompare([]byte(rec.VerificationCode), []byte(code)) != 1 {
		return apperr.E(apperr.Unauthorized, "Invalid token", nil)
	}
	if models.IsExpired(s.now(), rec.VerificationExpire) {
		return apperr.E(apperr.Unauthorized, "The token has expired", nil)
	}
	return nil
}

// ForgotPassword выпускает токен сброса пароля и отправляет его на почту.
// newPassword используется только в режиме LegacyReset.
func (s *AuthService) ForgotPassword(ctx context.Context, email, newPassword string) error {
	const op = "services.auth.ForgotPassword"

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return s.storageErr(op, err, "User not found")
	}

	var sealed string
	if s.opts.LegacyReset {
		if newPassword == "" {
			return apperr.E(apperr.BadRequest, "A 'password' attribute is required", nil)
		}
		hash, err := s.hasher.GetHash(newPassword)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if sealed, err = s.sealer.Seal([]byte(hash)); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	token, err := s.tokens.GenerateResetToken(user.ID, sealed)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.repo.SetResetToken(ctx, user.ID, hashToken(token), s.now().Add(s.opts.ResetTTL)); err != nil {
		return s.storageErr(op, err, "User not found")
	}

	link := s.opts.PublicURL + "/v1/auth/new_password/" + token
	html := fmt.Sprintf(`<p>Hello %s,</p><p>Use this <a href="%s">link</a> to set a new password. It expires in %s.</p>`,
		displayName(user), link, s.opts.ResetTTL)
	if _, err := s.mailer.Send(ctx, user.Email, "Password reset", html); err != nil {
		s.log.Error("failed to send reset email", sl.UserID(user.ID), sl.Err(err))
		s.rollback(op, func() error { return s.repo.ClearResetToken(ctx, user.ID) })
		s.events.AuthEvent("reset_requested", "mail_failed")
		return apperr.E(apperr.Integrity, "Failed to send email", err)
	}
	s.events.AuthEvent("reset_requested", "ok")
	return nil
}

// ResetPassword погашает токен сброса. В обычном режиме новый пароль
// передается здесь, в режиме LegacyReset он берется из токена.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	const op = "services.auth.ResetPassword"

	claims, err := s.tokens.ParseResetToken(token)
	if err != nil {
		s.events.AuthEvent("reset_password", "invalid_token")
		return tokenErr(err)
	}

	rec, err := s.repo.GetAuthRecord(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.E(apperr.Unauthorized, "Invalid token", nil)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if !rec.HasReset() || subtle.ConstantTimeCompare([]byte(rec.ResetPasswordToken), []byte(hashToken(token))) != 1 {
		s.events.AuthEvent("reset_password", "rejected")
		return apperr.E(apperr.Unauthorized, "Invalid token", nil)
	}
	if models.IsExpired(s.now(), rec.ResetPasswordExpire) {
		s.events.AuthEvent("reset_password", "expired")
		return apperr.E(apperr.Unauthorized, "The token has expired", nil)
	}

	var hash string
	if s.opts.LegacyReset {
		if claims.SealedPassword == "" {
			return apperr.E(apperr.Unauthorized, "Invalid token", nil)
		}
		plain, err := s.sealer.Open(claims.SealedPassword)
		if err != nil {
			return apperr.E(apperr.Unauthorized, "Invalid token", err)
		}
		hash = string(plain)
	} else {
		if newPassword == "" {
			return apperr.E(apperr.BadRequest, "A 'password' attribute is required", nil)
		}
		if hash, err = s.hasher.GetHash(newPassword); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	if err := s.repo.CommitPasswordReset(ctx, claims.UserID, hash); err != nil {
		return s.storageErr(op, err, "User not found")
	}
	s.invalidate(ctx, claims.UserID)
	s.events.AuthEvent("reset_password", "ok")
	s.log.Info("password reset", sl.UserID(claims.UserID))
	return nil
}

// ChangeEmail отправляет на новый адрес ссылку подтверждения. Сам адрес
// меняется только в VerifyNewEmail.
func (s *AuthService) ChangeEmail(ctx context.Context, identity models.Identity, newEmail string) error {
	const op = "services.auth.ChangeEmail"

	user, err := s.repo.GetByID(ctx, identity.ID)
	if err != nil {
		return s.storageErr(op, err, "User not found")
	}
	if user.Email == newEmail {
		return apperr.E(apperr.BadRequest, "The new email is the same as the current one", nil)
	}
	taken, err := s.repo.EmailTaken(ctx, newEmail)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if taken {
		return apperr.E(apperr.BadRequest, "User already exists", nil)
	}

	if _, err := s.repo.EnsureAuthRecord(ctx, user.ID); err != nil {
		return s.storageErr(op, err, "User not found")
	}
	code, err := newCode()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	token, err := s.tokens.GenerateEmailChangeToken(user.ID, newEmail, code)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.repo.SetVerification(ctx, user.ID, code, s.now().Add(s.opts.EmailChangeTTL)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	link := s.opts.PublicURL + "/v1/auth/new_email/" + token
	html := fmt.Sprintf(`<p>Hello %s,</p><p>Confirm your new email address by following this <a href="%s">link</a>.</p>`,
		displayName(user), link)
	if _, err := s.mailer.Send(ctx, newEmail, "Email change confirmation", html); err != nil {
		s.log.Error("failed to send email change confirmation", sl.UserID(user.ID), sl.Err(err))
		s.rollback(op, func() error { return s.repo.ClearVerification(ctx, user.ID) })
		s.events.AuthEvent("email_change_requested", "mail_failed")
		return apperr.E(apperr.Integrity, "Failed to send email", err)
	}
	s.events.AuthEvent("email_change_requested", "ok")
	return nil
}

// VerifyNewEmail погашает токен смены почты и записывает новый адрес.
func (s *AuthService) VerifyNewEmail(ctx context.Context, token string) error {
	const op = "services.auth.VerifyNewEmail"

	claims, err := s.tokens.ParseEmailChangeToken(token)
	if err != nil {
		s.events.AuthEvent("email_change", "invalid_token")
		return tokenErr(err)
	}
	if _, err := s.repo.GetByID(ctx, claims.UserID); err != nil {
		return s.storageErr(op, err, "User not found")
	}
	if err := s.checkVerificationCode(ctx, op, claims.UserID, claims.Code); err != nil {
		s.events.AuthEvent("email_change", "rejected")
		return err
	}
	if err := s.repo.CommitEmailChange(ctx, claims.UserID, claims.NewEmail); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return apperr.E(apperr.BadRequest, "User already exists", nil)
		}
		return s.storageErr(op, err, "User not found")
	}
	s.invalidate(ctx, claims.UserID)
	s.events.AuthEvent("email_change", "ok")
	s.log.Info("email changed", sl.UserID(claims.UserID))
	return nil
}

// rollback выполняет компенсирующее действие. Его ошибка только
// логируется: наружу уходит исходная ошибка отправки письма.
func (s *AuthService) rollback(op string, undo func() error) {
	if err := undo(); err != nil {
		s.log.Error("failed to roll back pending auth record", slog.String("op", op), sl.Err(err))
	}
}

func (s *AuthService) invalidate(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, cache.UserKey(userID)); err != nil {
		s.log.Warn("failed to invalidate user cache", sl.UserID(userID), sl.Err(err))
	}
}

func (s *AuthService) storageErr(op string, err error, notFound string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.E(apperr.NotFound, notFound, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func tokenErr(err error) error {
	if errors.Is(err, jwt.ErrExpiredToken) {
		return apperr.E(apperr.Unauthorized, "The token has expired", err)
	}
	if errors.Is(err, jwt.ErrSigningFailure) {
		return err
	}
	return apperr.E(apperr.Unauthorized, "Invalid token", err)
}

func displayName(u *models.User) string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

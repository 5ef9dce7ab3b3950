package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/magabrotheeeer/user-management/internal/models"
)

var (
	// ErrSigningFailure токен не может быть подписан, например не задан секрет.
	ErrSigningFailure = errors.New("token signing failure")
	// ErrInvalidToken подпись, формат или назначение токена неверны.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken срок действия токена истек.
	ErrExpiredToken = errors.New("token is expired")
)

// TTL сроки жизни токенов по назначению.
type TTL struct {
	Session      time.Duration
	Verification time.Duration
	EmailChange  time.Duration
	Reset        time.Duration
}

// MakerImpl выпускает и проверяет токены, подписанные HS256 общим секретом.
type MakerImpl struct {
	secretKey string
	ttl       TTL
	now       func() time.Time
}

// NewJWTMaker создает MakerImpl на основе секретного ключа и сроков жизни.
func NewJWTMaker(secretKey string, ttl TTL) *MakerImpl {
	return &MakerImpl{
		secretKey: secretKey,
		ttl:       ttl,
		now:       time.Now,
	}
}

// WithClock подменяет источник времени, используется в тестах.
func (j *MakerImpl) WithClock(now func() time.Time) *MakerImpl {
	j.now = now
	return j
}

func (j *MakerImpl) registered(ttl time.Duration) jwt.RegisteredClaims {
	now := j.now()
	return jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

func (j *MakerImpl) sign(claims jwt.Claims) (string, error) {
	const op = "jwt.sign"
	if j.secretKey == "" {
		return "", fmt.Errorf("%s: %w", op, ErrSigningFailure)
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(j.secretKey))
	if err != nil {
		return "", fmt.Errorf("%s: %w: %v", op, ErrSigningFailure, err)
	}
	return token, nil
}

func (j *MakerImpl) parse(tokenStr string, claims purposeClaims, want Purpose) error {
	const op = "jwt.parse"
	if j.secretKey == "" {
		return fmt.Errorf("%s: %w", op, ErrSigningFailure)
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(j.now),
		jwt.WithExpirationRequired(),
	)
	token, err := parser.ParseWithClaims(tokenStr, claims, func(_ *jwt.Token) (any, error) {
		return []byte(j.secretKey), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return fmt.Errorf("%s: %w", op, ErrExpiredToken)
		}
		return fmt.Errorf("%s: %w: %v", op, ErrInvalidToken, err)
	}
	if !token.Valid || claims.purpose() != want {
		return fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}
	return nil
}

// GenerateSessionToken выпускает токен сессии.
func (j *MakerImpl) GenerateSessionToken(user *models.User) (string, error) {
	return j.sign(&SessionClaims{
		UserID:           user.ID,
		Email:            user.Email,
		Role:             user.Role,
		Purpose:          PurposeSession,
		RegisteredClaims: j.registered(j.ttl.Session),
	})
}

// ParseSessionToken проверяет токен сессии.
func (j *MakerImpl) ParseSessionToken(tokenStr string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	if err := j.parse(tokenStr, claims, PurposeSession); err != nil {
		return nil, err
	}
	return claims, nil
}

// GenerateVerificationToken выпускает токен подтверждения учетной записи.
func (j *MakerImpl) GenerateVerificationToken(email, code string) (string, error) {
	return j.sign(&VerificationClaims{
		Email:            email,
		Code:             code,
		Purpose:          PurposeVerification,
		RegisteredClaims: j.registered(j.ttl.Verification),
	})
}

// ParseVerificationToken проверяет токен подтверждения учетной записи.
func (j *MakerImpl) ParseVerificationToken(tokenStr string) (*VerificationClaims, error) {
	claims := &VerificationClaims{}
	if err := j.parse(tokenStr, claims, PurposeVerification); err != nil {
		return nil, err
	}
	return claims, nil
}

// GenerateEmailChangeToken выпускает токен подтверждения нового адреса.
func (j *MakerImpl) GenerateEmailChangeToken(userID, newEmail, code string) (string, error) {
	return j.sign(&EmailChangeClaims{
		UserID:           userID,
		NewEmail:         newEmail,
		Code:             code,
		Purpose:          PurposeEmailChange,
		RegisteredClaims: j.registered(j.ttl.EmailChange),
	})
}

// ParseEmailChangeToken проверяет токен подтверждения нового адреса.
func (j *MakerImpl) ParseEmailChangeToken(tokenStr string) (*EmailChangeClaims, error) {
	claims := &EmailChangeClaims{}
	if err := j.parse(tokenStr, claims, PurposeEmailChange); err != nil {
		return nil, err
	}
	return claims, nil
}

// GenerateResetToken выпускает токен сброса пароля. sealedPassword может быть пустым.
func (j *MakerImpl) GenerateResetToken(userID, sealedPassword string) (string, error) {
	return j.sign(&ResetClaims{
		UserID:           userID,
		SealedPassword:   sealedPassword,
		Purpose:          PurposeReset,
		RegisteredClaims: j.registered(j.ttl.Reset),
	})
}

// ParseResetToken проверяет токен сброса пароля.
func (j *MakerImpl) ParseResetToken(tokenStr string) (*ResetClaims, error) {
	claims := &ResetClaims{}
	if err := j.parse(tokenStr, claims, PurposeReset); err != nil {
		return nil, err
	}
	return claims, nil
}

// Package jwt реализует выпуск и разбор подписанных токенов сервиса.
//
// Каждый токен несет claim purpose: токен, выпущенный для одной цели
// (сессия, подтверждение почты, смена почты, сброс пароля), не
// принимается для другой.
package jwt

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/magabrotheeeer/user-management/internal/models"
)

// Purpose назначение токена.
type Purpose string

const (
	PurposeSession      Purpose = "session"
	PurposeVerification Purpose = "verification"
	PurposeEmailChange  Purpose = "email_change"
	PurposeReset        Purpose = "reset_password"
)

type purposeClaims interface {
	jwt.Claims
	purpose() Purpose
}

// SessionClaims данные токена сессии.
type SessionClaims struct {
	UserID  string      `json:"_id"`
	Email   string      `json:"email"`
	Role    models.Role `json:"role"`
	Purpose Purpose     `json:"purpose"`
	jwt.RegisteredClaims
}

func (c *SessionClaims) purpose() Purpose { return c.Purpose }

// VerificationClaims данные токена подтверждения учетной записи.
type VerificationClaims struct {
	Email   string  `json:"email"`
	Code    string  `json:"code"`
	Purpose Purpose `json:"purpose"`
	jwt.RegisteredClaims
}

func (c *VerificationClaims) purpose() Purpose { return c.Purpose }

// EmailChangeClaims данные токена подтверждения нового адреса почты.
type EmailChangeClaims struct {
	UserID   string  `json:"_id"`
	NewEmail string  `json:"new_email"`
	Code     string  `json:"code"`
	Purpose  Purpose `json:"purpose"`
	jwt.RegisteredClaims
}

func (c *EmailChangeClaims) purpose() Purpose { return c.Purpose }

// ResetClaims данные токена сброса пароля. SealedPassword заполняется
// только в режиме, когда новый пароль передается при запросе сброса.
type ResetClaims struct {
	UserID         string  `json:"_id"`
	SealedPassword string  `json:"sealed_password,omitempty"`
	Purpose        Purpose `json:"purpose"`
	jwt.RegisteredClaims
}

func (c *ResetClaims) purpose() Purpose { return c.Purpose }

package models

import "time"

// BlacklistTTL время хранения отозванного токена.
const BlacklistTTL = 30 * 24 * time.Hour

// BlacklistedToken отозванный токен сессии.
type BlacklistedToken struct {
	UserID    string
	Token     string
	CreatedAt time.Time
}

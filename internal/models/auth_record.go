package models

import "time"

// AuthRecord одна запись на пользователя с состоянием сброса пароля и
// верификации почты. Код и срок его действия всегда задаются и
// очищаются парой.
type AuthRecord struct {
	UserID              string
	ResetPasswordToken  string
	ResetPasswordExpire *time.Time
	VerificationCode    string
	VerificationExpire  *time.Time
}

// HasVerification сообщает, что ожидается подтверждение почты.
func (a *AuthRecord) HasVerification() bool {
	return a.VerificationCode != "" && a.VerificationExpire != nil
}

// HasReset сообщает, что ожидается сброс пароля.
func (a *AuthRecord) HasReset() bool {
	return a.ResetPasswordToken != "" && a.ResetPasswordExpire != nil
}

// IsExpired истинно строго после момента expire. Отсутствующий срок
// считается истекшим.
func IsExpired(now time.Time, expire *time.Time) bool {
	if expire == nil {
		return true
	}
	return now.After(*expire)
}

// Package password реализует хеширование и проверку паролей на bcrypt.
//
// Hasher хранит стоимость bcrypt и подготавливает частичные обновления
// профиля к сохранению: открытый пароль заменяется хэшем.
package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/magabrotheeeer/user-management/internal/models"
)

// DefaultCost стоимость bcrypt по умолчанию.
const DefaultCost = 10

// Hasher хэширует пароли с заданной стоимостью.
type Hasher struct {
	cost int
}

// NewHasher создает Hasher. Стоимость вне допустимого диапазона bcrypt
// заменяется на DefaultCost.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return &Hasher{cost: cost}
}

// GetHash возвращает bcrypt-хэш пароля.
func (h *Hasher) GetHash(password string) (string, error) {
	const op = "password.GetHash"
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return string(hashed), nil
}

// CompareHash сравнивает bcrypt-хэш с введенным паролем.
// Возвращает nil, если пароль соответствует хэшу.
func (h *Hasher) CompareHash(originalHash, externalPassword string) error {
	const op = "password.CompareHash"
	if err := bcrypt.CompareHashAndPassword([]byte(originalHash), []byte(externalPassword)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Verify сообщает, соответствует ли пароль хэшу.
func (h *Hasher) Verify(externalPassword, originalHash string) bool {
	return h.CompareHash(originalHash, externalPassword) == nil
}

// PrepareForPersist хэширует patch.Password, если в обновлении есть новый
// пароль, и очищает открытое значение. Без пароля patch возвращается как есть.
func (h *Hasher) PrepareForPersist(patch models.UserPatch) (models.UserPatch, error) {
	const op = "password.PrepareForPersist"
	if patch.Password == nil {
		return patch, nil
	}
	if *patch.Password == "" {
		return patch, fmt.Errorf("%s: %w", op, errors.New("empty password"))
	}
	hash, err := h.GetHash(*patch.Password)
	if err != nil {
		return patch, fmt.Errorf("%s: %w", op, err)
	}
	patch.PasswordHash = &hash
	patch.Password = nil
	return patch, nil
}

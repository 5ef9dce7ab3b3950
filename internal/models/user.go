// Package models содержит доменные типы сервиса управления пользователями:
// профиль пользователя, запись аутентификации, отозванные токены и
// структуры фильтрации и частичного обновления.
package models

import "time"

// Role роль пользователя. Набор ролей закрыт.
type Role string

const (
	// RoleUser обычный пользователь.
	RoleUser Role = "USER"
	// RoleAdmin администратор.
	RoleAdmin Role = "ADMIN"
)

// Valid сообщает, входит ли роль в допустимый набор.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// ParseRole разбирает строковое представление роли.
func ParseRole(s string) (Role, bool) {
	r := Role(s)
	return r, r.Valid()
}

// Допустимые значения поля gender.
var Genders = []string{"Male", "Female", "Other"}

// Address почтовый адрес пользователя.
type Address struct {
	Street  string `json:"street,omitempty"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	ZipCode string `json:"zip_code,omitempty"`
}

// IsZero сообщает, что ни одно поле адреса не заполнено.
func (a Address) IsZero() bool {
	return a == Address{}
}

// User профиль пользователя. Хэш пароля никогда не сериализуется.
type User struct {
	ID           string    `json:"_id"`
	Email        string    `json:"email"`
	Role         Role      `json:"role"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name,omitempty"`
	LastName     string    `json:"last_name,omitempty"`
	ProfilePhoto string    `json:"profile_photo,omitempty"`
	PhoneNumber  string    `json:"phone_number,omitempty"`
	Country      string    `json:"country,omitempty"`
	Address      *Address  `json:"address,omitempty"`
	Age          *int      `json:"age,omitempty"`
	Gender       string    `json:"gender,omitempty"`
	IsVerified   bool      `json:"is_verified"`
	IsActive     bool      `json:"is_active"`
	IsPublic     bool      `json:"is_public"`
	Studies      []string  `json:"studies"`
	Professions  []string  `json:"professions"`
	Interests    []string  `json:"interests"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// PublicProfile проекция профиля, видимая другим пользователям с ролью USER.
type PublicProfile struct {
	ID          string   `json:"_id"`
	Role        Role     `json:"role"`
	Name        string   `json:"name,omitempty"`
	LastName    string   `json:"last_name,omitempty"`
	Country     string   `json:"country,omitempty"`
	Age         *int     `json:"age,omitempty"`
	Gender      string   `json:"gender,omitempty"`
	IsVerified  bool     `json:"is_verified"`
	IsActive    bool     `json:"is_active"`
	Studies     []string `json:"studies"`
	Professions []string `json:"professions"`
	Interests   []string `json:"interests"`
}

// Public возвращает публичную проекцию профиля.
func (u *User) Public() PublicProfile {
	return PublicProfile{
		ID:          u.ID,
		Role:        u.Role,
		Name:        u.Name,
		LastName:    u.LastName,
		Country:     u.Country,
		Age:         u.Age,
		Gender:      u.Gender,
		IsVerified:  u.IsVerified,
		IsActive:    u.IsActive,
		Studies:     u.Studies,
		Professions: u.Professions,
		Interests:   u.Interests,
	}
}

// Identity аутентифицированный субъект запроса. Создается middleware
// один раз на запрос и дальше не изменяется.
type Identity struct {
	ID   string
	Role Role
}

// IsAdmin сообщает, что субъект администратор.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// NewUser данные для создания учетной записи.
type NewUser struct {
	Email        string
	Password     string
	Role         Role
	Name         string
	LastName     string
	ProfilePhoto string
	PhoneNumber  string
	Country      string
	Address      *Address
	Age          *int
	Gender       string
	IsPublic     bool
	Studies      []string
	Professions  []string
	Interests    []string
}

// Package validation настраивает валидатор входных данных HTTP-обработчиков.
package validation

import (
	"reflect"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/validator"
)

const (
	// TagEmail формат адреса почты.
	TagEmail = "email_format"
	// TagPassword политика сложности пароля.
	TagPassword = "password_policy"
)

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

const passwordSpecials = "@$!%*?&"

// MaxPasswordLen предел bcrypt: более длинные пароли не хэшируются.
const MaxPasswordLen = 72

// New возвращает валидатор с тегами email_format и password_policy.
// В ошибках используются имена полей из json-тегов.
func New() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation(TagEmail, func(fl validator.FieldLevel) bool {
		return IsEmail(fl.Field().String())
	})
	_ = v.RegisterValidation(TagPassword, func(fl validator.FieldLevel) bool {
		return IsStrongPassword(fl.Field().String())
	})
	return v
}

// IsEmail проверяет формат адреса почты.
func IsEmail(s string) bool {
	return emailRe.MatchString(s)
}

// IsStrongPassword требует строчную и заглавную букву, цифру и спецсимвол
// из набора @$!%*?&, длину от 8 до 72 символов и никаких других символов.
func IsStrongPassword(s string) bool {
	if len(s) < 8 || len(s) > MaxPasswordLen {
		return false
	}
	var lower, upper, digit, special bool
	for _, r := range s {
		switch {
		case r > unicode.MaxASCII:
			return false
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune(passwordSpecials, r):
			special = true
		default:
			return false
		}
	}
	return lower && upper && digit && special
}

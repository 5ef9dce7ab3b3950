// Package access описывает правила доступа к атрибутам пользователя:
// по каким полям можно фильтровать, какие поля можно менять и какие
// поля видны другим пользователям. Все правила собраны в одной
// декларативной таблице fields.
package access

import "github.com/magabrotheeeer/user-management/internal/models"

// ValueKind тип значения атрибута в строке запроса.
type ValueKind int

const (
	KindString ValueKind = iota
	KindInt
	KindBool
	KindList
	KindRole
	KindGender
	KindObject
)

type roles []models.Role

func (rs roles) has(r models.Role) bool {
	for _, x := range rs {
		if x == r {
			return true
		}
	}
	return false
}

var (
	nobody   = roles{}
	everyone = roles{models.RoleUser, models.RoleAdmin}
	admins   = roles{models.RoleAdmin}
)

// FieldRule правило для одного атрибута.
type FieldRule struct {
	Kind ValueKind
	// Filter роли, которым разрешено фильтровать по атрибуту.
	Filter roles
	// Write роли, которым разрешено менять атрибут через обновление профиля.
	Write roles
	// Public атрибут входит в публичную проекцию профиля.
	Public bool
	// Guarded атрибут меняется только отдельными сценариями
	// (сброс пароля, вход, подтверждение почты).
	Guarded bool
}

var fields = map[string]FieldRule{
	"_id":              {Kind: KindString, Filter: nobody, Write: nobody, Public: true},
	"email":            {Kind: KindString, Filter: admins, Write: admins},
	"role":             {Kind: KindRole, Filter: everyone, Write: admins, Public: true},
	"password":         {Kind: KindString, Filter: nobody, Write: nobody, Guarded: true},
	"name":             {Kind: KindString, Filter: everyone, Write: everyone, Public: true},
	"last_name":        {Kind: KindString, Filter: everyone, Write: everyone, Public: true},
	"profile_photo":    {Kind: KindString, Filter: nobody, Write: everyone},
	"phone_number":     {Kind: KindString, Filter: admins, Write: everyone},
	"country":          {Kind: KindString, Filter: everyone, Write: everyone, Public: true},
	"address":          {Kind: KindObject, Filter: nobody, Write: everyone},
	"address.street":   {Kind: KindString, Filter: admins, Write: nobody},
	"address.city":     {Kind: KindString, Filter: admins, Write: nobody},
	"address.state":    {Kind: KindString, Filter: admins, Write: nobody},
	"address.zip_code": {Kind: KindString, Filter: admins, Write: nobody},
	"age":              {Kind: KindInt, Filter: everyone, Write: everyone, Public: true},
	"gender":           {Kind: KindGender, Filter: everyone, Write: everyone, Public: true},
	"is_verified":      {Kind: KindBool, Filter: everyone, Write: nobody, Public: true, Guarded: true},
	"is_active":        {Kind: KindBool, Filter: everyone, Write: nobody, Public: true, Guarded: true},
	"is_public":        {Kind: KindBool, Filter: admins, Write: everyone},
	"studies":          {Kind: KindList, Filter: everyone, Write: everyone, Public: true},
	"professions":      {Kind: KindList, Filter: everyone, Write: everyone, Public: true},
	"interests":        {Kind: KindList, Filter: everyone, Write: everyone, Public: true},
	"createdAt":        {Kind: KindString, Filter: nobody, Write: nobody},
	"updatedAt":        {Kind: KindString, Filter: nobody, Write: nobody},
}

// Rule возвращает правило для атрибута.
func Rule(field string) (FieldRule, bool) {
	r, ok := fields[field]
	return r, ok
}

// GuardedAttributes атрибуты, которые нельзя передавать в теле обновления профиля.
func GuardedAttributes() []string {
	return []string{"password", "is_active", "is_verified"}
}

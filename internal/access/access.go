package access

import (
	"fmt"
	"net/url"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/magabrotheeeer/user-management/internal/lib/apperr"
	"github.com/magabrotheeeer/user-management/internal/models"
)

// ActiveUser сокращение в пути запроса, обозначающее текущего пользователя.
const ActiveUser = "active"

// Action изменяющее действие над чужим профилем.
type Action int

const (
	ActionChange Action = iota
	ActionDelete
)

// ParseQuery проверяет параметры строки запроса и превращает их в фильтр.
// Для роли USER выборка ограничивается публичными профилями.
func ParseQuery(role models.Role, query url.Values) (models.UserFilter, error) {
	filter := models.UserFilter{OnlyPublic: role != models.RoleAdmin}

	if query.Has("password") {
		return filter, apperr.E(apperr.BadRequest, "You can't filter by password", nil)
	}

	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		rule, ok := fields[key]
		if !ok || len(rule.Filter) == 0 {
			return filter, apperr.E(apperr.BadRequest, fmt.Sprintf("The query '%s' is not allowed", key), nil)
		}
		if !rule.Filter.has(role) {
			return filter, apperr.E(apperr.BadRequest,
				fmt.Sprintf("The query '%s' is not allowed for role: %s", key, role), nil)
		}
		cond, err := parseCondition(key, rule.Kind, query.Get(key))
		if err != nil {
			return filter, err
		}
		filter.Conditions = append(filter.Conditions, cond)
	}
	return filter, nil
}

func parseCondition(key string, kind ValueKind, raw string) (models.Condition, error) {
	cond := models.Condition{Field: key, Kind: models.Equals}
	invalid := func(expected string) error {
		return apperr.E(apperr.BadRequest, fmt.Sprintf("The query '%s' must be %s", key, expected), nil)
	}

	switch kind {
	case KindInt:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return cond, invalid("an integer")
		}
		cond.Value = n
	case KindBool:
		switch raw {
		case "true":
			cond.Value = true
		case "false":
			cond.Value = false
		default:
			return cond, invalid("true or false")
		}
	case KindRole:
		r, ok := models.ParseRole(raw)
		if !ok {
			return cond, invalid("USER or ADMIN")
		}
		cond.Value = string(r)
	case KindGender:
		if !slices.Contains(models.Genders, raw) {
			return cond, invalid("one of " + strings.Join(models.Genders, ", "))
		}
		cond.Value = raw
	case KindList:
		var values []string
		for _, v := range strings.Split(raw, ",") {
			if v = strings.TrimSpace(v); v != "" {
				values = append(values, v)
			}
		}
		if len(values) == 0 {
			return cond, invalid("a comma separated list")
		}
		cond.Kind = models.ContainsAll
		cond.Value = values
	default:
		if raw == "" {
			return cond, invalid("a non empty string")
		}
		cond.Value = raw
	}
	return cond, nil
}

// CheckPatch проверяет, что роль может изменить каждый из переданных атрибутов.
func CheckPatch(role models.Role, keys []string) error {
	sorted := slices.Clone(keys)
	sort.Strings(sorted)

	for _, key := range sorted {
		rule, ok := fields[key]
		if !ok || rule.Guarded || len(rule.Write) == 0 {
			return apperr.E(apperr.BadRequest, fmt.Sprintf("The attribute '%s' is not allowed", key), nil)
		}
		if !rule.Write.has(role) {
			return apperr.E(apperr.BadRequest,
				fmt.Sprintf("The attribute '%s' is not allowed to change for %s role.", key, role), nil)
		}
	}
	return nil
}

// ResolveTarget возвращает идентификатор пользователя, к которому относится
// запрос: "active" означает самого субъекта.
func ResolveTarget(identity models.Identity, param string) string {
	if param == ActiveUser {
		return identity.ID
	}
	return param
}

// CanModify проверяет, что субъект может изменить или удалить профиль targetID.
func CanModify(identity models.Identity, targetID string, action Action) error {
	if identity.IsAdmin() || identity.ID == targetID {
		return nil
	}
	if action == ActionDelete {
		return apperr.E(apperr.BadRequest, "USER role is not allowed to delete others accounts.", nil)
	}
	return apperr.E(apperr.BadRequest, "USER role is not allowed to change others information.", nil)
}

// ProjectForRead возвращает представление профиля для субъекта. Администратор
// и владелец видят профиль целиком, остальные только публичную проекцию,
// и только если профиль публичный.
func ProjectForRead(identity models.Identity, target *models.User) (any, error) {
	if identity.IsAdmin() || identity.ID == target.ID {
		return target, nil
	}
	if !target.IsPublic {
		return nil, apperr.E(apperr.NotFound, "The user searched is private", nil)
	}
	return target.Public(), nil
}

// ProjectList применяет проекцию к результатам поиска.
func ProjectList(identity models.Identity, users []*models.User) []any {
	out := make([]any, 0, len(users))
	for _, u := range users {
		if identity.IsAdmin() {
			out = append(out, u)
			continue
		}
		out = append(out, u.Public())
	}
	return out
}

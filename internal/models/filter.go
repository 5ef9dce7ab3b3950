package models

// ConditionKind определяет, как значение условия сравнивается со столбцом.
type ConditionKind int

const (
	// Equals точное совпадение.
	Equals ConditionKind = iota
	// ContainsAll списочное поле содержит все перечисленные значения.
	ContainsAll
)

// Condition одно условие фильтра по атрибуту пользователя.
// Value имеет тип string, int, bool или []string.
type Condition struct {
	Field string
	Kind  ConditionKind
	Value any
}

// UserFilter набор условий, объединенных через AND.
type UserFilter struct {
	Conditions []Condition
	// OnlyPublic ограничивает выборку публичными профилями.
	OnlyPublic bool
}

// ByID фильтр по идентификатору пользователя.
func ByID(id string) UserFilter {
	return UserFilter{Conditions: []Condition{{Field: "_id", Value: id}}}
}

// ByEmail фильтр по адресу электронной почты.
func ByEmail(email string) UserFilter {
	return UserFilter{Conditions: []Condition{{Field: "email", Value: email}}}
}

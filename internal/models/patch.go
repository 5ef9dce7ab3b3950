package models

// UserPatch частичное обновление профиля. nil означает "не изменять".
//
// Password содержит новый пароль в открытом виде и никогда не попадает в
// хранилище: перед сохранением он превращается в PasswordHash.
type UserPatch struct {
	Email        *string
	Role         *Role
	Password     *string
	PasswordHash *string
	Name         *string
	LastName     *string
	ProfilePhoto *string
	PhoneNumber  *string
	Country      *string
	Address      *Address
	Age          *int
	Gender       *string
	IsVerified   *bool
	IsActive     *bool
	IsPublic     *bool
	Studies      *[]string
	Professions  *[]string
	Interests    *[]string
}

// UpdateResult результат UpdateOne: сколько записей подошло под фильтр
// и сколько фактически изменилось.
type UpdateResult struct {
	Matched  int64
	Modified int64
}

// Package links строит описания связанных действий (_links) для ответов API.
package links

import "strings"

// Link описание одного действия.
type Link struct {
	Href        string `json:"href"`
	Method      string `json:"method"`
	Description string `json:"description"`
}

// Set набор связанных действий по именам.
type Set map[string]Link

// Builder строит ссылки относительно публичного адреса API.
type Builder struct {
	base string
}

// New создает Builder. publicURL адрес без завершающего слэша, например
// https://api.example.com.
func New(publicURL string) *Builder {
	return &Builder{base: strings.TrimRight(publicURL, "/") + "/v1"}
}

func (b *Builder) link(method, path, description string) Link {
	return Link{Href: b.base + path, Method: method, Description: description}
}

func (b *Builder) SignIn() Link {
	return b.link("POST", "/auth/", "Post an email and password to sign in and get access to other endpoints.")
}

func (b *Builder) SignOut() Link {
	return b.link("DELETE", "/auth/", "Delete the authorization of the active account.")
}

func (b *Builder) SendVerification() Link {
	return b.link("POST", "/auth/verification", "Post an email to send a link to verify the associated account.")
}

func (b *Builder) ForgotPassword() Link {
	return b.link("POST", "/auth/new_password", "Post an email to send a link to change the password of the associated account.")
}

func (b *Builder) ChangeEmail() Link {
	return b.link("POST", "/auth/new_email", "Post an email to send a link to verify it.")
}

func (b *Builder) ListUsers() Link {
	return b.link("GET", "/users/", "Get the users that match the given query filters.")
}

func (b *Builder) GetUser() Link {
	return b.link("GET", "/users/:id", "Get a user by id.")
}

func (b *Builder) ActiveUser() Link {
	return b.link("GET", "/users/active", "Get the profile of the signed in user.")
}

func (b *Builder) CreateUser() Link {
	return b.link("POST", "/users/", "Creates a new user.")
}

func (b *Builder) UpdateUser() Link {
	return b.link("PUT", "/users/:id", "Update a user by id. Use 'active' to update the signed in user.")
}

func (b *Builder) DeleteUser() Link {
	return b.link("DELETE", "/users/:id", "Delete a user by id. Use 'active' to delete the signed in user.")
}

func (b *Builder) Feedback() Link {
	return b.link("POST", "/users/feedback", "Send feedback about this API.")
}

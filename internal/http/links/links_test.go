package links

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuilder(t *testing.T) {
	b := New("https://api.example.com/")

	assert.Equal(t, Link{
		Href:        "https://api.example.com/v1/auth/",
		Method:      "POST",
		Description: "Post an email and password to sign in and get access to other endpoints.",
	}, b.SignIn())
	assert.Equal(t, "https://api.example.com/v1/users/:id", b.DeleteUser().Href)
	assert.Equal(t, "DELETE", b.DeleteUser().Method)
	assert.Equal(t, "https://api.example.com/v1/users/feedback", b.Feedback().Href)
}

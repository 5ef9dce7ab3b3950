package password

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/magabrotheeeer/user-management/internal/models"
)

func TestGetHash(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	tests := []struct {
		name     string
		password string
	}{
		{name: "regular password", password: "Password1@"},
		{name: "password with special chars", password: "p@ssw0rd!@#$%^&*()"},
		{name: "short password", password: "short"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotHash, err := h.GetHash(tt.password)
			require.NoError(t, err)
			assert.NotEmpty(t, gotHash)
			assert.NotEqual(t, tt.password, gotHash)
			assert.NoError(t, h.CompareHash(gotHash, tt.password))
			assert.True(t, h.Verify(tt.password, gotHash))
		})
	}
}

func TestCompareHash(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)
	correctHash, err := h.GetHash("correct_password")
	require.NoError(t, err)
	anotherHash, err := h.GetHash("another_password")
	require.NoError(t, err)

	tests := []struct {
		name        string
		hash        string
		password    string
		shouldMatch bool
	}{
		{name: "matching password", hash: correctHash, password: "correct_password", shouldMatch: true},
		{name: "wrong password", hash: correctHash, password: "wrong_password", shouldMatch: false},
		{name: "different hash same password", hash: anotherHash, password: "correct_password", shouldMatch: false},
		{name: "empty password", hash: correctHash, password: "", shouldMatch: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := h.CompareHash(tt.hash, tt.password)
			if tt.shouldMatch {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestNewHasher_Cost(t *testing.T) {
	assert.Equal(t, DefaultCost, NewHasher(0).cost)
	assert.Equal(t, DefaultCost, NewHasher(100).cost)
	assert.Equal(t, 12, NewHasher(12).cost)

	h := NewHasher(bcrypt.MinCost)
	hash, err := h.GetHash("Password1@")
	require.NoError(t, err)
	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost, cost)
}

func TestPrepareForPersist(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	t.Run("пароль не меняется", func(t *testing.T) {
		name := "Ann"
		patch, err := h.PrepareForPersist(models.UserPatch{Name: &name})
		require.NoError(t, err)
		assert.Nil(t, patch.PasswordHash)
		assert.Equal(t, "Ann", *patch.Name)
	})

	t.Run("новый пароль хэшируется", func(t *testing.T) {
		plain := "Password1@"
		patch, err := h.PrepareForPersist(models.UserPatch{Password: &plain})
		require.NoError(t, err)
		assert.Nil(t, patch.Password)
		require.NotNil(t, patch.PasswordHash)
		assert.True(t, h.Verify(plain, *patch.PasswordHash))
	})

	t.Run("пустой пароль", func(t *testing.T) {
		empty := ""
		_, err := h.PrepareForPersist(models.UserPatch{Password: &empty})
		assert.Error(t, err)
	})
}

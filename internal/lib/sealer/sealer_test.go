package sealer

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealOpen(t *testing.T) {
	s, err := New("server-secret")
	require.NoError(t, err)

	sealed, err := s.Seal([]byte("NewPassword1@"))
	require.NoError(t, err)
	assert.NotContains(t, sealed, "NewPassword1@")

	again, err := s.Seal([]byte("NewPassword1@"))
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again, "nonce must differ between seals")

	plain, err := s.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "NewPassword1@", string(plain))
}

func TestOpen_Errors(t *testing.T) {
	s, err := New("server-secret")
	require.NoError(t, err)
	other, err := New("another-secret")
	require.NoError(t, err)

	sealed, err := other.Seal([]byte("value"))
	require.NoError(t, err)

	own, err := s.Seal([]byte("value"))
	require.NoError(t, err)
	raw, err := base64.RawURLEncoding.DecodeString(own)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xff
	tampered := base64.RawURLEncoding.EncodeToString(raw)

	tests := []struct {
		name  string
		value string
	}{
		{"другой ключ", sealed},
		{"не base64", "%%%"},
		{"слишком короткое значение", "AAAA"},
		{"поврежденный шифртекст", tampered},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Open(tt.value)
			assert.ErrorIs(t, err, ErrOpen)
		})
	}
}

func TestNew_EmptySecret(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)
}

// Package sealer шифрует короткие значения, которые нужно передать внутри
// подписанного токена так, чтобы их нельзя было прочитать.
//
// Используется XChaCha20-Poly1305, ключ выводится из секрета сервера через
// HKDF-SHA256. Результат: base64url(nonce || ciphertext).
package sealer

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// ErrOpen значение повреждено или запечатано другим ключом.
var ErrOpen = errors.New("sealer: cannot open value")

const info = "user-management reset token v1"

// Sealer запечатывает и вскрывает значения общим ключом.
type Sealer struct {
	key []byte
}

// New выводит ключ шифрования из секрета сервера.
func New(secret string) (*Sealer, error) {
	const op = "sealer.New"
	if secret == "" {
		return nil, fmt.Errorf("%s: empty secret", op)
	}
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(info)), key); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Sealer{key: key}, nil
}

// Seal шифрует plaintext со случайным nonce.
func (s *Sealer) Seal(plaintext []byte) (string, error) {
	const op = "sealer.Seal"
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	sealed := aead.Seal(nonce, nonce, plaintext, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Open расшифровывает значение, полученное из Seal.
func (s *Sealer) Open(sealed string) ([]byte, error) {
	raw, err := base64.RawURLEncoding.DecodeString(sealed)
	if err != nil {
		return nil, ErrOpen
	}
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, fmt.Errorf("sealer.Open: %w", err)
	}
	if len(raw) < aead.NonceSize() {
		return nil, ErrOpen
	}
	nonce, ciphertext := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrOpen
	}
	return plaintext, nil
}

package admin

import (
	"encoding/base64"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/argon2"

	"nebulavpn.ru/telegram-bot/internal/config"
)

// encodeArgon2id — тестовый генератор хеша в том же формате, что scripts/generate_hash.go.
func encodeArgon2id(password string, salt []byte, memory, iterations uint32, parallelism uint8) string {
	key := argon2.IDKey([]byte(password), salt, iterations, memory, parallelism, 32)
	return fmt.Sprintf("$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		memory, iterations, parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key))
}

func TestVerifyArgon2id(t *testing.T) {
	salt := []byte("0123456789abcdef")
	hash := encodeArgon2id("сильный-пароль", salt, 1024, 1, 1)

	assert.True(t, verifyArgon2id("сильный-пароль", hash))
	assert.False(t, verifyArgon2id("неверный", hash))
	assert.False(t, verifyArgon2id("", hash))
}

func TestVerifyArgon2idRejectsMalformedHash(t *testing.T) {
	cases := []string{
		"",
		"plaintext",
		"$argon2id$v=19$m=1024,t=1,p=1$onlyfourparts",
		"$argon2id$v=19$broken-params$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=1024,t=1,p=1$не-base64!$aGFzaA",
		"$argon2id$v=19$m=1024,t=1,p=1$c2FsdA$не-base64!",
	}
	for _, h := range cases {
		assert.False(t, verifyArgon2id("пароль", h), "hash=%q", h)
	}
}

func TestGenerateSecureToken(t *testing.T) {
	a := generateSecureToken()
	b := generateSecureToken()
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}

func TestIsConfiguredAdmin(t *testing.T) {
	svc := NewService(nil, &config.Config{AdminIDs: []int64{10, 20}})
	assert.True(t, svc.IsConfiguredAdmin(10))
	assert.True(t, svc.IsConfiguredAdmin(20))
	assert.False(t, svc.IsConfiguredAdmin(30))
}

func TestDialogStates(t *testing.T) {
	svc := NewService(nil, &config.Config{})

	require.Nil(t, svc.GetState(1))

	svc.SetState(1, StateAwaitingPassword)
	state := svc.GetState(1)
	require.NotNil(t, state)
	assert.Equal(t, StateAwaitingPassword, state.State)

	// состояния независимы по пользователям
	assert.Nil(t, svc.GetState(2))

	svc.ClearState(1)
	assert.Nil(t, svc.GetState(1))
}

package security

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"deep-search-wiser/internal/config"
)

func TestVaultRoundTrip(t *testing.T) {
	dir := t.TempDir()
	v, err := openVault(dir, "master")
	require.NoError(t, err)

	require.NoError(t, v.set("a", "1"))
	require.NoError(t, v.set("b", "2"))

	// same passphrase, fresh instance: salt is reused
	v2, err := openVault(dir, "master")
	require.NoError(t, err)
	got, err := v2.get("a")
	require.NoError(t, err)
	assert.Equal(t, "1", got)

	wrong, err := openVault(dir, "other")
	require.NoError(t, err)
	_, err = wrong.get("a")
	assert.Error(t, err)

	require.NoError(t, v2.delete("a"))
	_, err = v2.get("a")
	assert.ErrorIs(t, err, ErrSecretNotFound)
}

func TestVaultWithoutPassphrase(t *testing.T) {
	v, err := openVault(t.TempDir(), "")
	require.NoError(t, err)
	assert.ErrorIs(t, v.set("a", "1"), ErrNoVaultKey)
	_, err = v.get("a")
	assert.ErrorIs(t, err, ErrSecretNotFound)
}

func TestEncryptDecrypt(t *testing.T) {
	key := deriveKey("test-password", make([]byte, saltLen))
	sealed, err := encrypt([]byte("sk-abc123"), key)
	require.NoError(t, err)
	assert.NotContains(t, sealed, "sk-abc123")

	plain, err := decrypt(sealed, key)
	require.NoError(t, err)
	assert.Equal(t, "sk-abc123", string(plain))

	_, err = decrypt(sealed, deriveKey("wrong", make([]byte, saltLen)))
	assert.Error(t, err)
}

func TestKeyStoreFallsBackToVault(t *testing.T) {
	keyring.MockInitWithError(errors.New("no keyring"))
	ks, err := NewKeyStore(t.TempDir(), "master")
	require.NoError(t, err)

	require.NoError(t, ks.Set(SecretLLMKey, "sk-test"))
	got, err := ks.Get(SecretLLMKey)
	require.NoError(t, err)
	assert.Equal(t, "sk-test", got)
}

func TestResolveAndSealSecrets(t *testing.T) {
	keyring.MockInit()
	ks, err := NewKeyStore(t.TempDir(), "")
	require.NoError(t, err)

	cfg := config.Defaults()
	cfg.LLM.APIKey = "sk-live"
	cfg.Channels.Telegram = &config.TelegramConfig{Token: "123:abc"}

	sealed, err := ks.SealSecrets(cfg)
	require.NoError(t, err)
	assert.Equal(t, Placeholder, sealed.LLM.APIKey)
	assert.Equal(t, Placeholder, sealed.Channels.Telegram.Token)
	assert.Empty(t, sealed.Search.APIKey)
	// the original is untouched
	assert.Equal(t, "sk-live", cfg.LLM.APIKey)
	assert.Equal(t, "123:abc", cfg.Channels.Telegram.Token)

	require.NoError(t, ks.ResolveSecrets(sealed))
	assert.Equal(t, "sk-live", sealed.LLM.APIKey)
	assert.Equal(t, "123:abc", sealed.Channels.Telegram.Token)

	missing := config.Defaults()
	missing.Cookie.Key = Placeholder
	err = ks.ResolveSecrets(missing)
	require.Error(t, err)
	assert.Contains(t, err.Error(), SecretCookieKey)
}

func TestMaskKey(t *testing.T) {
	assert.Equal(t, "****", MaskKey("short"))
	assert.Equal(t, "sk-...cdef", MaskKey("sk-1234567890abcdef"))
}

package security

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deep-search-wiser/internal/config"
)

func testCredentials() config.CredentialsConfig {
	return config.CredentialsConfig{Usernames: map[string]config.UserConfig{
		"ayse":   {Name: "Ayşe", Email: "ayse@example.com", Password: "s3cret"},
		"mehmet": {Name: "Mehmet", Email: "mehmet@example.com", Password: ""},
	}}
}

func TestHashPasswords(t *testing.T) {
	creds := testCredentials()
	n, err := HashPasswords(&creds)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	hashed := creds.Usernames["ayse"].Password
	assert.True(t, IsHashed(hashed))
	assert.Equal(t, "Ayşe", creds.Usernames["ayse"].Name)

	// second run leaves hashes alone
	n, err = HashPasswords(&creds)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, hashed, creds.Usernames["ayse"].Password)
}

func TestAuthenticate(t *testing.T) {
	plain := testCredentials()
	hashed := testCredentials()
	_, err := HashPasswords(&hashed)
	require.NoError(t, err)

	for name, creds := range map[string]config.CredentialsConfig{"plain": plain, "hashed": hashed} {
		t.Run(name, func(t *testing.T) {
			u, err := Authenticate(creds, "ayse", "s3cret")
			require.NoError(t, err)
			assert.Equal(t, "ayse@example.com", u.Email)

			_, err = Authenticate(creds, "ayse", "wrong")
			assert.ErrorIs(t, err, ErrInvalidCredentials)
			_, err = Authenticate(creds, "nobody", "s3cret")
			assert.ErrorIs(t, err, ErrInvalidCredentials)
			_, err = Authenticate(creds, "mehmet", "")
			assert.ErrorIs(t, err, ErrInvalidCredentials)
		})
	}
}

func TestCookieSigner(t *testing.T) {
	_, err := NewCookieSigner(config.CookieConfig{})
	require.Error(t, err)

	s, err := NewCookieSigner(config.CookieConfig{Key: "k", ExpiryDays: 30})
	require.NoError(t, err)
	assert.Equal(t, 30*24*time.Hour, s.TTL())

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	value := s.Sign("ayse|admin")

	user, err := s.Verify(value)
	require.NoError(t, err)
	assert.Equal(t, "ayse|admin", user)

	_, err = s.Verify(value + "x")
	assert.ErrorIs(t, err, ErrInvalidCookie)
	_, err = s.Verify("garbage")
	assert.ErrorIs(t, err, ErrInvalidCookie)

	other, err := NewCookieSigner(config.CookieConfig{Key: "other"})
	require.NoError(t, err)
	_, err = other.Verify(value)
	assert.ErrorIs(t, err, ErrInvalidCookie)

	now = now.Add(31 * 24 * time.Hour)
	_, err = s.Verify(value)
	assert.ErrorIs(t, err, ErrCookieExpired)
}

func TestAuthorizer(t *testing.T) {
	assert.True(t, NewAuthorizer(nil).IsAllowed(1))
	a := NewAuthorizer([]int64{42})
	assert.True(t, a.IsAllowed(42))
	assert.False(t, a.IsAllowed(7))
}

package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"deep-search-wiser/internal/config"
)

var (
	// ErrInvalidCredentials is returned for an unknown user or a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidCookie      = errors.New("invalid auth cookie")
	ErrCookieExpired      = errors.New("auth cookie expired")
)

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", errors.Wrap(err, "hash password")
	}
	return string(h), nil
}

// IsHashed reports whether s looks like a bcrypt hash.
func IsHashed(s string) bool {
	return len(s) == 60 && (strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$"))
}

// HashPasswords replaces plaintext passwords in creds with bcrypt hashes and
// returns how many were changed. Hashed passwords are left alone.
func HashPasswords(creds *config.CredentialsConfig) (int, error) {
	n := 0
	for name, u := range creds.Usernames {
		if u.Password == "" || IsHashed(u.Password) {
			continue
		}
		h, err := HashPassword(u.Password)
		if err != nil {
			return n, errors.Wrapf(err, "user %s", name)
		}
		u.Password = h
		creds.Usernames[name] = u
		n++
	}
	return n, nil
}

// Authenticate checks username and password against creds. Passwords not yet
// hashed are compared in constant time.
func Authenticate(creds config.CredentialsConfig, username, password string) (config.UserConfig, error) {
	u, ok := creds.Usernames[username]
	if !ok || u.Password == "" {
		return config.UserConfig{}, ErrInvalidCredentials
	}
	if IsHashed(u.Password) {
		if bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) != nil {
			return config.UserConfig{}, ErrInvalidCredentials
		}
		return u, nil
	}
	if subtle.ConstantTimeCompare([]byte(u.Password), []byte(password)) != 1 {
		return config.UserConfig{}, ErrInvalidCredentials
	}
	return u, nil
}

// CookieSigner issues and checks the HMAC-SHA256 signed login cookie.
// A value is base64url("<username>|<unix expiry>") + "." + base64url(mac).
type CookieSigner struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// NewCookieSigner creates a signer from the cookie section of the config.
func NewCookieSigner(cfg config.CookieConfig) (*CookieSigner, error) {
	if cfg.Key == "" {
		return nil, errors.New("cookie.key is required")
	}
	days := cfg.ExpiryDays
	if days <= 0 {
		days = config.Defaults().Cookie.ExpiryDays
	}
	return &CookieSigner{
		key: []byte(cfg.Key),
		ttl: time.Duration(days) * 24 * time.Hour,
		now: time.Now,
	}, nil
}

// TTL is how long a signed cookie stays valid.
func (s *CookieSigner) TTL() time.Duration { return s.ttl }

// Sign returns a cookie value for username.
func (s *CookieSigner) Sign(username string) string {
	expires := s.now().Add(s.ttl).Unix()
	payload := username + "|" + strconv.FormatInt(expires, 10)
	enc := base64.RawURLEncoding
	return enc.EncodeToString([]byte(payload)) + "." + enc.EncodeToString(s.mac(payload))
}

// Verify checks value and returns the username it was issued for.
func (s *CookieSigner) Verify(value string) (string, error) {
	enc := base64.RawURLEncoding
	p, m, ok := strings.Cut(value, ".")
	if !ok {
		return "", ErrInvalidCookie
	}
	payload, err := enc.DecodeString(p)
	if err != nil {
		return "", ErrInvalidCookie
	}
	mac, err := enc.DecodeString(m)
	if err != nil || !hmac.Equal(mac, s.mac(string(payload))) {
		return "", ErrInvalidCookie
	}

	i := strings.LastIndexByte(string(payload), '|')
	if i < 0 {
		return "", ErrInvalidCookie
	}
	expires, err := strconv.ParseInt(string(payload[i+1:]), 10, 64)
	if err != nil {
		return "", ErrInvalidCookie
	}
	if s.now().Unix() >= expires {
		return "", ErrCookieExpired
	}
	return string(payload[:i]), nil
}

func (s *CookieSigner) mac(payload string) []byte {
	h := hmac.New(sha256.New, s.key)
	h.Write([]byte(payload))
	return h.Sum(nil)
}

// Authorizer checks if a chat user is allowed to talk to the bot.
type Authorizer struct {
	allowedIDs map[int64]bool
}

// NewAuthorizer creates an authorizer with the given allowed user IDs.
// If the list is empty, all users are allowed.
func NewAuthorizer(allowedIDs []int64) *Authorizer {
	m := make(map[int64]bool, len(allowedIDs))
	for _, id := range allowedIDs {
		m[id] = true
	}
	return &Authorizer{allowedIDs: m}
}

// IsAllowed returns true if the user is authorized.
func (a *Authorizer) IsAllowed(userID int64) bool {
	if len(a.allowedIDs) == 0 {
		return true // no allowlist = allow all
	}
	return a.allowedIDs[userID]
}

// Package security holds secret storage, password hashing and the login
// cookie used by the HTTP shell.
package security

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/zalando/go-keyring"
	"go.uber.org/zap"

	"deep-search-wiser/internal/config"
	"deep-search-wiser/internal/logger"
)

// Placeholder in a config value means "read this secret from the key store".
const Placeholder = "[keyring]"

const keyringService = "deep-search-wiser"

// ErrSecretNotFound is returned when a secret is in neither the keyring nor the vault.
var ErrSecretNotFound = errors.New("secret not found")

// KeyStore keeps secrets in the OS keyring, falling back to an encrypted
// vault file when no keyring is available.
type KeyStore struct {
	vault *vault
	log   *zap.Logger
}

// NewKeyStore creates a key store whose vault lives in dir (default
// ~/.deep-search-wiser). passphrase unlocks the vault and may be empty when
// only the keyring is used.
func NewKeyStore(dir, passphrase string) (*KeyStore, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, errors.Wrap(err, "locate home dir")
		}
		dir = filepath.Join(home, ".deep-search-wiser")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, errors.Wrap(err, "create key store dir")
	}
	v, err := openVault(dir, passphrase)
	if err != nil {
		return nil, err
	}
	return &KeyStore{vault: v, log: logger.Named("security")}, nil
}

// Set stores a secret.
func (ks *KeyStore) Set(name, value string) error {
	err := keyring.Set(keyringService, name, value)
	if err == nil {
		return nil
	}
	ks.log.Debug("keyring unavailable, using vault", zap.String("secret", name), zap.Error(err))
	return ks.vault.set(name, value)
}

// Get retrieves a secret.
func (ks *KeyStore) Get(name string) (string, error) {
	if val, err := keyring.Get(keyringService, name); err == nil {
		return val, nil
	}
	return ks.vault.get(name)
}

// Delete removes a secret from both backends.
func (ks *KeyStore) Delete(name string) error {
	kerr := keyring.Delete(keyringService, name)
	verr := ks.vault.delete(name)
	if kerr != nil && !errors.Is(kerr, keyring.ErrNotFound) && verr != nil {
		return verr
	}
	return nil
}

// MaskKey returns a masked version of an API key for display.
func MaskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:3] + "..." + key[len(key)-4:]
}

// Secret names, shared by `secrets set` and placeholder resolution.
const (
	SecretLLMKey         = "llm_api_key"
	SecretFallbackLLMKey = "fallback_llm_api_key"
	SecretSearchKey      = "search_api_key"
	SecretCookieKey      = "cookie_key"
	SecretTelegramToken  = "telegram_token"
)

// SecretNames lists the names accepted by the key store commands.
func SecretNames() []string {
	return []string{SecretLLMKey, SecretFallbackLLMKey, SecretSearchKey, SecretCookieKey, SecretTelegramToken}
}

func secretFields(cfg *config.Config) map[string]*string {
	fields := map[string]*string{
		SecretLLMKey:    &cfg.LLM.APIKey,
		SecretSearchKey: &cfg.Search.APIKey,
		SecretCookieKey: &cfg.Cookie.Key,
	}
	if cfg.FallbackLLM != nil {
		fields[SecretFallbackLLMKey] = &cfg.FallbackLLM.APIKey
	}
	if cfg.Channels.Telegram != nil {
		fields[SecretTelegramToken] = &cfg.Channels.Telegram.Token
	}
	return fields
}

// ResolveSecrets replaces every Placeholder in cfg with the stored secret.
func (ks *KeyStore) ResolveSecrets(cfg *config.Config) error {
	for name, field := range secretFields(cfg) {
		if *field != Placeholder {
			continue
		}
		val, err := ks.Get(name)
		if err != nil {
			return errors.Wrapf(err, "resolve %s", name)
		}
		*field = val
	}
	return nil
}

// SealSecrets moves the plaintext secrets of cfg into the key store and
// returns a copy with placeholders in their place, ready to be saved.
func (ks *KeyStore) SealSecrets(cfg *config.Config) (*config.Config, error) {
	out := *cfg
	if cfg.FallbackLLM != nil {
		fb := *cfg.FallbackLLM
		out.FallbackLLM = &fb
	}
	if cfg.Channels.Telegram != nil {
		tg := *cfg.Channels.Telegram
		out.Channels.Telegram = &tg
	}
	for name, field := range secretFields(&out) {
		if *field == "" || *field == Placeholder {
			continue
		}
		if err := ks.Set(name, *field); err != nil {
			return nil, errors.Wrapf(err, "store %s", name)
		}
		*field = Placeholder
	}
	return &out, nil
}

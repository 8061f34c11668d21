package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"golang.org/x/crypto/argon2"
)

const (
	argonTime    = 3
	argonMemory  = 64 * 1024 // 64MB
	argonThreads = 4
	argonKeyLen  = 32 // AES-256
	saltLen      = 16

	vaultFile = "vault.enc"
	saltFile  = "vault.salt"
)

// ErrNoVaultKey is returned when the vault is needed but no passphrase was given.
var ErrNoVaultKey = errors.New("vault passphrase not set")

// deriveKey derives an AES-256 key from a passphrase using Argon2id.
func deriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
}

// vault is an AES-256-GCM encrypted JSON map of secrets on disk. It backs
// the OS keyring on machines without one (headless servers, containers).
type vault struct {
	path string
	key  []byte
}

// openVault prepares the vault in dir. The salt is created on first use and
// kept next to the vault so the same passphrase keeps working.
func openVault(dir, passphrase string) (*vault, error) {
	v := &vault{path: filepath.Join(dir, vaultFile)}
	if passphrase == "" {
		return v, nil
	}
	salt, err := loadSalt(filepath.Join(dir, saltFile))
	if err != nil {
		return nil, err
	}
	v.key = deriveKey(passphrase, salt)
	return v, nil
}

func loadSalt(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err == nil && len(data) == saltLen {
		return data, nil
	}
	if err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "read vault salt")
	}
	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, errors.Wrap(err, "generate vault salt")
	}
	if err := os.WriteFile(path, salt, 0600); err != nil {
		return nil, errors.Wrap(err, "write vault salt")
	}
	return salt, nil
}

func (v *vault) load() (map[string]string, error) {
	data, err := os.ReadFile(v.path)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "read vault")
	}
	if v.key == nil {
		return nil, ErrNoVaultKey
	}
	plaintext, err := decrypt(string(data), v.key)
	if err != nil {
		return nil, errors.Wrap(err, "decrypt vault")
	}
	secrets := map[string]string{}
	if err := json.Unmarshal(plaintext, &secrets); err != nil {
		return nil, errors.Wrap(err, "parse vault")
	}
	return secrets, nil
}

func (v *vault) save(secrets map[string]string) error {
	if v.key == nil {
		return ErrNoVaultKey
	}
	data, err := json.Marshal(secrets)
	if err != nil {
		return err
	}
	sealed, err := encrypt(data, v.key)
	if err != nil {
		return err
	}
	return errors.Wrap(os.WriteFile(v.path, []byte(sealed), 0600), "write vault")
}

func (v *vault) get(name string) (string, error) {
	secrets, err := v.load()
	if err != nil {
		return "", err
	}
	val, ok := secrets[name]
	if !ok {
		return "", errors.Wrap(ErrSecretNotFound, name)
	}
	return val, nil
}

func (v *vault) set(name, value string) error {
	secrets, err := v.load()
	if err != nil {
		return err
	}
	secrets[name] = value
	return v.save(secrets)
}

func (v *vault) delete(name string) error {
	secrets, err := v.load()
	if err != nil {
		return err
	}
	if _, ok := secrets[name]; !ok {
		return nil
	}
	delete(secrets, name)
	return v.save(secrets)
}

// encrypt seals plaintext with AES-256-GCM and returns base64 of nonce||ciphertext.
func encrypt(plaintext, key []byte) (string, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", errors.Wrap(err, "generate nonce")
	}
	return base64.StdEncoding.EncodeToString(gcm.Seal(nonce, nonce, plaintext, nil)), nil
}

func decrypt(encoded string, key []byte) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, errors.Wrap(err, "decode base64")
	}
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	n := gcm.NonceSize()
	if len(data) < n {
		return nil, errors.New("ciphertext too short")
	}
	return gcm.Open(nil, data[:n], data[n:], nil)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(err, "create cipher")
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.Wrap(err, "create GCM")
	}
	return gcm, nil
}

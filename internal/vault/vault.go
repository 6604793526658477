package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

var (
	ErrInvalidCiphertext = errors.New("invalid ciphertext format")
	ErrDecryptionFailed  = errors.New("decryption failed")
	ErrKeyNotFound       = errors.New("encryption key not found")
	ErrInvalidKeyLength  = errors.New("encryption key must be 32 bytes for AES-256")
)

// Vault owns the key used to encrypt card payment fields at rest.
// Services depend on it for encryption and decryption but never handle
// key material themselves.
type Vault struct {
	mu         sync.RWMutex
	key        []byte
	keyVersion string
}

// Config holds configuration for the vault
type Config struct {
	// Master key, base64 or hex encoded, 32 bytes decoded
	MasterKey string
	// Version label recorded in each ciphertext for rotation
	KeyVersion string
}

// DefaultConfig reads vault settings from the environment
func DefaultConfig() Config {
	version := os.Getenv("VAULT_KEY_VERSION")
	if version == "" {
		version = "v1"
	}
	return Config{
		MasterKey:  os.Getenv("VAULT_MASTER_KEY"),
		KeyVersion: version,
	}
}

// New creates a vault from the given configuration
func New(cfg Config) (*Vault, error) {
	if cfg.MasterKey == "" {
		return nil, ErrKeyNotFound
	}

	key, err := base64.StdEncoding.DecodeString(cfg.MasterKey)
	if err != nil {
		// Try hex decoding
		key, err = hex.DecodeString(cfg.MasterKey)
		if err != nil {
			return nil, fmt.Errorf("invalid master key format: %w", err)
		}
	}
	if len(key) != 32 {
		return nil, ErrInvalidKeyLength
	}

	return &Vault{key: key, keyVersion: cfg.KeyVersion}, nil
}

// Rotate swaps in a new key under a new version label. Previously written
// ciphertexts keep their version tag; decryption of old versions requires
// the matching key to still be loaded, so rotation here re-keys for new
// writes only.
func (v *Vault) Rotate(masterKey, version string) error {
	key, err := base64.StdEncoding.DecodeString(masterKey)
	if err != nil {
		key, err = hex.DecodeString(masterKey)
		if err != nil {
			return fmt.Errorf("invalid master key format: %w", err)
		}
	}
	if len(key) != 32 {
		return ErrInvalidKeyLength
	}

	v.mu.Lock()
	v.key = key
	v.keyVersion = version
	v.mu.Unlock()
	return nil
}

// KeyVersion returns the current key version label
func (v *Vault) KeyVersion() string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.keyVersion
}

// Encrypt encrypts plaintext using AES-256-GCM
func (v *Vault) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	v.mu.RLock()
	key := v.key
	version := v.keyVersion
	v.mu.RUnlock()

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	encoded := base64.StdEncoding.EncodeToString(ciphertext)

	// Format: $enc$v1$keyVersion$ciphertext
	return fmt.Sprintf("$enc$v1$%s$%s", version, encoded), nil
}

// Decrypt decrypts ciphertext encrypted with Encrypt
func (v *Vault) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}

	if !strings.HasPrefix(ciphertext, "$enc$") {
		return "", ErrInvalidCiphertext
	}

	parts := strings.Split(ciphertext, "$")
	if len(parts) != 5 {
		return "", ErrInvalidCiphertext
	}

	// parts[0] = "", parts[1] = "enc", parts[2] = "v1", parts[3] = keyVersion, parts[4] = ciphertext
	encoded := parts[4]

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("failed to decode ciphertext: %w", err)
	}

	v.mu.RLock()
	key := v.key
	v.mu.RUnlock()

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to create GCM: %w", err)
	}

	if len(data) < gcm.NonceSize() {
		return "", ErrInvalidCiphertext
	}

	nonce, sealed := data[:gcm.NonceSize()], data[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}

	return string(plaintext), nil
}

package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chatflow-ai/chatflow/pkg/domain"
	"github.com/chatflow-ai/chatflow/pkg/ports"
)

// envelopePrefix marks a message text sealed by this middleware.
const envelopePrefix = "enc:v1:"

// ErrNotEncrypted is returned when a stored text lacks the encryption envelope.
var ErrNotEncrypted = errors.New("message text is missing encrypted data envelope")

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey is the key used for encrypting new data.
	// Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys is a list of old keys to try when decryption fails.
	// This enables zero-downtime key rotation.
	FallbackKeys [][]byte
}

type encryptionMiddleware struct {
	ports.Store
	config EncryptionConfig
}

// NewEncryptionMiddleware creates a middleware that seals message log text with
// AES-GCM. Contacts and flows pass through unchanged.
func NewEncryptionMiddleware(config EncryptionConfig) Middleware {
	if len(config.ActiveKey) != 32 {
		panic("active key must be 32 bytes (AES-256)")
	}
	return func(next ports.Store) ports.Store {
		return &encryptionMiddleware{Store: next, config: config}
	}
}

func (m *encryptionMiddleware) AppendMessageLog(ctx context.Context, entry *domain.MessageLog) error {
	ciphertext, err := encrypt([]byte(entry.Text), m.config.ActiveKey)
	if err != nil {
		return fmt.Errorf("failed to encrypt message: %w", err)
	}

	sealed := *entry
	sealed.Text = envelopePrefix + base64.StdEncoding.EncodeToString(ciphertext)
	if err := m.Store.AppendMessageLog(ctx, &sealed); err != nil {
		return err
	}
	entry.ID = sealed.ID
	return nil
}

func (m *encryptionMiddleware) RecentLogs(ctx context.Context, contactID string, limit int) ([]domain.MessageLog, error) {
	logs, err := m.Store.RecentLogs(ctx, contactID, limit)
	if err != nil {
		return nil, err
	}
	for i := range logs {
		plain, err := m.open(logs[i].Text)
		if err != nil {
			return nil, fmt.Errorf("message %s: %w", logs[i].ID, err)
		}
		logs[i].Text = plain
	}
	return logs, nil
}

func (m *encryptionMiddleware) open(text string) (string, error) {
	encoded, ok := strings.CutPrefix(text, envelopePrefix)
	if !ok {
		// Plaintext rows are rejected, never returned.
		return "", ErrNotEncrypted
	}
	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("failed to decode ciphertext base64: %w", err)
	}
	plain, err := decryptWithRotation(ciphertext, m.config.ActiveKey, m.config.FallbackKeys)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt message: %w", err)
	}
	return string(plain), nil
}

// Helpers

func encrypt(plaintext []byte, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decryptWithRotation(ciphertext []byte, activeKey []byte, fallbackKeys [][]byte) ([]byte, error) {
	for _, key := range append([][]byte{activeKey}, fallbackKeys...) {
		if plain, err := decrypt(ciphertext, key); err == nil {
			return plain, nil
		}
	}
	return nil, errors.New("decryption failed with all available keys")
}

func decrypt(ciphertext []byte, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}
	nonce, sealed := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, sealed, nil)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

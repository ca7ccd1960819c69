package authn

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/suleymanmyradov/trustgate/internal/model"
)

// CredentialCipher seals and opens the API key body envelope
// (ApiKey.EncryptedBody). The plaintext name/description/permissions/
// expiry never touch the database un-encrypted; only a lookup hash
// and the sealed body are persisted (growth-server's auth domain
// hashes passwords with bcrypt for the same "never store plaintext"
// reason, adapted here to an AEAD envelope since API keys need O(1)
// lookup by exact hash rather than per-row salted comparison).
type CredentialCipher struct {
	aead cipher.AEAD
}

// NewCredentialCipher derives a 256-bit AEAD key from masterSecret via
// HKDF-SHA256, so the gateway's raw config secret is never used
// directly as a cipher key.
func NewCredentialCipher(masterSecret string) (*CredentialCipher, error) {
	kdf := hkdf.New(sha256.New, []byte(masterSecret), nil, []byte("trustgate-api-key-body"))
	key := make([]byte, 32)
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("derive credential key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init aes cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("init gcm: %w", err)
	}
	return &CredentialCipher{aead: aead}, nil
}

// HashLookupKey produces the deterministic digest stored as
// ApiKey.KeyHash and used to find a key in O(1) by exact match. The
// plaintext secret is high-entropy and randomly generated (never
// user-chosen), so a fast unsalted digest does not expose it to
// offline guessing the way a password hash would.
func HashLookupKey(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

// Seal encrypts an ApiKeyBody for storage.
func (c *CredentialCipher) Seal(body model.ApiKeyBody) ([]byte, error) {
	plaintext, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal api key body: %w", err)
	}
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return c.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decrypts a stored EncryptedBody back into an ApiKeyBody.
func (c *CredentialCipher) Open(sealed []byte) (model.ApiKeyBody, error) {
	nonceSize := c.aead.NonceSize()
	if len(sealed) < nonceSize {
		return model.ApiKeyBody{}, fmt.Errorf("sealed body too short")
	}
	nonce, ciphertext := sealed[:nonceSize], sealed[nonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return model.ApiKeyBody{}, fmt.Errorf("open sealed body: %w", err)
	}
	var body model.ApiKeyBody
	if err := json.Unmarshal(plaintext, &body); err != nil {
		return model.ApiKeyBody{}, fmt.Errorf("unmarshal api key body: %w", err)
	}
	return body, nil
}

// GeneratePlaintext produces a new high-entropy API key secret in the
// "tg_<32 random bytes, hex>" shape, prefixed so callers and log
// scanners can recognize the credential type at a glance.
func GeneratePlaintext() (string, error) {
	raw := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, raw); err != nil {
		return "", fmt.Errorf("generate api key secret: %w", err)
	}
	return "tg_" + hex.EncodeToString(raw), nil
}

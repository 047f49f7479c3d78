package service

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/pbkdf2"

	"github.com/lolerskatez/jellyconnect/internal/core/domain"
)

const (
	lowerChars  = "abcdefghijklmnopqrstuvwxyz"
	upperChars  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	digitChars  = "0123456789"
	symbolChars = "!@#$%^&*-_=+"

	// maxUsernameLen is the downstream service's username length ceiling.
	maxUsernameLen = 32

	vaultKeyLen        = 32
	vaultKeyIterations = 10000
)

// vaultSalt is a fixed application salt for key derivation. The derived
// key must be stable across restarts so stored ciphertexts stay readable.
var vaultSalt = []byte("jellyconnect.vault.v1")

// Vault provides secret custody: cryptographically strong generation and
// authenticated symmetric encryption for shadow passwords at rest.
// Generated secrets are never logged or surfaced to any UI.
type Vault struct {
	aead cipher.AEAD
}

// NewVault derives an AES-256-GCM key from the configured secret via
// PBKDF2 and returns a ready Vault.
func NewVault(secret string) (*Vault, error) {
	if secret == "" {
		return nil, fmt.Errorf("vault: secret is required")
	}

	key := pbkdf2.Key([]byte(secret), vaultSalt, vaultKeyIterations, vaultKeyLen, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("vault: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("vault: %w", err)
	}

	return &Vault{aead: aead}, nil
}

// Encrypt seals plaintext with a fresh random nonce and returns
// base64(nonce || ciphertext).
func (v *Vault) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, v.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("vault: nonce: %w", err)
	}
	sealed := v.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a ciphertext produced by Encrypt. Tampered input or a
// ciphertext sealed under a different key yields *domain.DecryptionError;
// callers must treat that as "credential unusable" and fall back.
func (v *Vault) Decrypt(encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", &domain.DecryptionError{Err: err}
	}
	if len(raw) < v.aead.NonceSize() {
		return "", &domain.DecryptionError{Err: fmt.Errorf("ciphertext shorter than nonce")}
	}
	nonce, ciphertext := raw[:v.aead.NonceSize()], raw[v.aead.NonceSize():]
	plaintext, err := v.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", &domain.DecryptionError{Err: err}
	}
	return string(plaintext), nil
}

// GenerateSecret returns a random string of the given length (minimum 4)
// containing at least one character from each of the lowercase, uppercase,
// digit and symbol classes. All randomness comes from crypto/rand,
// including the final Fisher-Yates shuffle.
func GenerateSecret(length int) (string, error) {
	if length < 4 {
		return "", fmt.Errorf("secret length must be at least 4, got %d", length)
	}

	allChars := lowerChars + upperChars + digitChars + symbolChars
	buf := make([]byte, 0, length)

	for _, class := range []string{lowerChars, upperChars, digitChars, symbolChars} {
		c, err := randomChar(class)
		if err != nil {
			return "", err
		}
		buf = append(buf, c)
	}
	for len(buf) < length {
		c, err := randomChar(allChars)
		if err != nil {
			return "", err
		}
		buf = append(buf, c)
	}

	for i := len(buf) - 1; i > 0; i-- {
		j, err := randomInt(i + 1)
		if err != nil {
			return "", err
		}
		buf[i], buf[j] = buf[j], buf[i]
	}

	return string(buf), nil
}

// GenerateUsername derives a downstream username from an email address:
// the sanitized local part plus an 8-hex-digit random suffix, truncated
// to the downstream length ceiling.
func GenerateUsername(email string) (string, error) {
	local := email
	if at := strings.IndexByte(email, '@'); at >= 0 {
		local = email[:at]
	}
	local = SanitizeUsername(local)
	if local == "" {
		local = "user"
	}

	suffix := make([]byte, 4)
	if _, err := rand.Read(suffix); err != nil {
		return "", fmt.Errorf("username suffix: %w", err)
	}

	name := local + hex.EncodeToString(suffix)
	if len(name) > maxUsernameLen {
		name = name[:maxUsernameLen]
	}
	return name, nil
}

// SanitizeUsername lowercases the input and strips every character
// outside [a-z0-9._-], truncating to the downstream ceiling.
func SanitizeUsername(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	s := b.String()
	if len(s) > maxUsernameLen {
		s = s[:maxUsernameLen]
	}
	return s
}

func randomChar(class string) (byte, error) {
	i, err := randomInt(len(class))
	if err != nil {
		return 0, err
	}
	return class[i], nil
}

func randomInt(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("secure random: %w", err)
	}
	return int(v.Int64()), nil
}

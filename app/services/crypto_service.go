// Package services provides external service integrations and technical concerns like crypto and tokens
package services

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"log"

	"github.com/harukisato/machidori/config"
	"github.com/harukisato/machidori/utils"
	"golang.org/x/crypto/chacha20poly1305"
)

// Crypto service error constants
var (
	ErrCiphertextInvalid = errors.New("ciphertext is malformed or too short")
	ErrDecryptionFailed  = errors.New("decryption failed")
	ErrKeyInvalid        = errors.New("encryption key must be 32 bytes")
)

// Supported cipher names
const (
	CipherAESGCM   = "aes-gcm"
	CipherChaCha20 = "chacha20poly1305"
)

// CryptoService encrypts and decrypts tenant credentials at rest.
// The wire format is base64(nonce || tag || ciphertext) with a 12-byte
// nonce and a 16-byte tag, independent of the chosen cipher.
type CryptoService interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(encoded string) (string, error)
	EncryptPair(accessToken, channelSecret string) (encToken, encSecret string, err error)
	DecryptPair(encToken, encSecret string) (accessToken, channelSecret string, err error)
	ValidateKey() error
}

// CryptoServiceImpl implements CryptoService
type CryptoServiceImpl struct {
	aead cipher.AEAD
}

// NewCryptoService creates a crypto service from the encryption config.
// In development an empty key falls back to a derived key so the service
// can run without secrets provisioned; production requires a real key.
func NewCryptoService(cfg *config.EncryptionConfig, deployment *config.DeploymentConfig) (CryptoService, error) {
	key, err := resolveKey(cfg.Key, deployment)
	if err != nil {
		return nil, err
	}

	aead, err := buildAEAD(cfg.Cipher, key)
	if err != nil {
		return nil, err
	}

	return &CryptoServiceImpl{aead: aead}, nil
}

func resolveKey(encoded string, deployment *config.DeploymentConfig) ([]byte, error) {
	if encoded == "" {
		if deployment == nil || !deployment.IsDevelopment() {
			return nil, fmt.Errorf("DATA_ENCRYPTION_KEY is required outside development")
		}
		log.Printf("WARNING: DATA_ENCRYPTION_KEY not set, using derived development key")
		derived := sha256.Sum256([]byte("machidori-development-key"))
		return derived[:], nil
	}

	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("DATA_ENCRYPTION_KEY is not valid base64: %w", err)
	}
	if len(key) != utils.EncryptionKeySize {
		return nil, ErrKeyInvalid
	}

	return key, nil
}

func buildAEAD(name string, key []byte) (cipher.AEAD, error) {
	switch name {
	case CipherChaCha20:
		aead, err := chacha20poly1305.New(key)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize chacha20poly1305: %w", err)
		}
		return aead, nil
	case CipherAESGCM, "":
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize AES: %w", err)
		}
		aead, err := cipher.NewGCM(block)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize GCM: %w", err)
		}
		return aead, nil
	default:
		return nil, fmt.Errorf("unsupported cipher: %s", name)
	}
}

// Encrypt seals the plaintext with a fresh random nonce
func (s *CryptoServiceImpl) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, utils.NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := s.aead.Seal(nil, nonce, []byte(plaintext), nil)

	// Seal appends the tag after the ciphertext; the stored frame keeps
	// the tag in front of the ciphertext instead.
	split := len(sealed) - utils.TagSize
	frame := make([]byte, 0, utils.NonceSize+len(sealed))
	frame = append(frame, nonce...)
	frame = append(frame, sealed[split:]...)
	frame = append(frame, sealed[:split]...)

	return base64.StdEncoding.EncodeToString(frame), nil
}

// Decrypt opens a frame produced by Encrypt. Undecodable input, short
// frames, and authentication failures all map to the same errors so
// callers cannot distinguish tampering modes.
func (s *CryptoServiceImpl) Decrypt(encoded string) (string, error) {
	frame, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrCiphertextInvalid
	}
	if len(frame) < utils.NonceSize+utils.TagSize {
		return "", ErrCiphertextInvalid
	}

	nonce := frame[:utils.NonceSize]
	tag := frame[utils.NonceSize : utils.NonceSize+utils.TagSize]
	ciphertext := frame[utils.NonceSize+utils.TagSize:]

	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := s.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}

	return string(plaintext), nil
}

// ValidateKey round-trips a probe value to prove the configured key and
// cipher can seal and open. Called once at startup.
func (s *CryptoServiceImpl) ValidateKey() error {
	const probe = "machidori-key-probe"

	sealed, err := s.Encrypt(probe)
	if err != nil {
		return fmt.Errorf("key validation failed to encrypt: %w", err)
	}

	opened, err := s.Decrypt(sealed)
	if err != nil {
		return fmt.Errorf("key validation failed to decrypt: %w", err)
	}
	if opened != probe {
		return errors.New("key validation round trip mismatch")
	}

	return nil
}

// EncryptPair encrypts both channel credentials
func (s *CryptoServiceImpl) EncryptPair(accessToken, channelSecret string) (string, string, error) {
	encToken, err := s.Encrypt(accessToken)
	if err != nil {
		return "", "", err
	}

	encSecret, err := s.Encrypt(channelSecret)
	if err != nil {
		return "", "", err
	}

	return encToken, encSecret, nil
}

// DecryptPair decrypts both channel credentials. Callers must not retain
// the returned plaintext beyond the operation that needs it.
func (s *CryptoServiceImpl) DecryptPair(encToken, encSecret string) (string, string, error) {
	accessToken, err := s.Decrypt(encToken)
	if err != nil {
		return "", "", err
	}

	channelSecret, err := s.Decrypt(encSecret)
	if err != nil {
		return "", "", err
	}

	return accessToken, channelSecret, nil
}

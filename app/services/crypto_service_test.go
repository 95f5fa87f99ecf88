package services

import (
	"encoding/base64"
	"testing"

	"github.com/harukisato/machidori/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey() string {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	return base64.StdEncoding.EncodeToString(key)
}

func newTestCrypto(t *testing.T, cipherName string) CryptoService {
	t.Helper()

	svc, err := NewCryptoService(&config.EncryptionConfig{
		Key:    testKey(),
		Cipher: cipherName,
	}, &config.DeploymentConfig{Environment: "test"})
	require.NoError(t, err)

	return svc
}

func TestEncryptDecryptRoundtrip(t *testing.T) {
	for _, cipherName := range []string{CipherAESGCM, CipherChaCha20} {
		t.Run(cipherName, func(t *testing.T) {
			svc := newTestCrypto(t, cipherName)

			encoded, err := svc.Encrypt("channel-access-token-value")
			require.NoError(t, err)
			assert.NotEqual(t, "channel-access-token-value", encoded)

			plaintext, err := svc.Decrypt(encoded)
			require.NoError(t, err)
			assert.Equal(t, "channel-access-token-value", plaintext)
		})
	}
}

func TestEncryptUsesFreshNonce(t *testing.T) {
	svc := newTestCrypto(t, CipherAESGCM)

	first, err := svc.Encrypt("same-plaintext")
	require.NoError(t, err)
	second, err := svc.Encrypt("same-plaintext")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestDecryptRejectsMalformedInput(t *testing.T) {
	svc := newTestCrypto(t, CipherAESGCM)

	_, err := svc.Decrypt("not-base64!!!")
	assert.ErrorIs(t, err, ErrCiphertextInvalid)

	// 27 bytes is one short of the minimum nonce plus tag frame
	short := base64.StdEncoding.EncodeToString(make([]byte, 27))
	_, err = svc.Decrypt(short)
	assert.ErrorIs(t, err, ErrCiphertextInvalid)
}

func TestDecryptRejectsTamperedCiphertext(t *testing.T) {
	svc := newTestCrypto(t, CipherAESGCM)

	encoded, err := svc.Encrypt("secret-value")
	require.NoError(t, err)

	frame, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)
	frame[len(frame)-1] ^= 0x01

	_, err = svc.Decrypt(base64.StdEncoding.EncodeToString(frame))
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestDecryptRejectsWrongKey(t *testing.T) {
	svc := newTestCrypto(t, CipherAESGCM)

	otherKey := make([]byte, 32)
	for i := range otherKey {
		otherKey[i] = byte(255 - i)
	}
	other, err := NewCryptoService(&config.EncryptionConfig{
		Key:    base64.StdEncoding.EncodeToString(otherKey),
		Cipher: CipherAESGCM,
	}, &config.DeploymentConfig{Environment: "test"})
	require.NoError(t, err)

	encoded, err := svc.Encrypt("secret-value")
	require.NoError(t, err)

	_, err = other.Decrypt(encoded)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestNewCryptoServiceRejectsBadKeys(t *testing.T) {
	_, err := NewCryptoService(&config.EncryptionConfig{Key: "%%%"}, &config.DeploymentConfig{Environment: "test"})
	assert.Error(t, err)

	shortKey := base64.StdEncoding.EncodeToString(make([]byte, 16))
	_, err = NewCryptoService(&config.EncryptionConfig{Key: shortKey}, &config.DeploymentConfig{Environment: "test"})
	assert.ErrorIs(t, err, ErrKeyInvalid)

	_, err = NewCryptoService(&config.EncryptionConfig{Key: testKey(), Cipher: "rot13"}, &config.DeploymentConfig{Environment: "test"})
	assert.Error(t, err)
}

func TestNewCryptoServiceKeyFallback(t *testing.T) {
	// Development falls back to a derived key
	svc, err := NewCryptoService(&config.EncryptionConfig{}, &config.DeploymentConfig{Environment: "development"})
	require.NoError(t, err)

	encoded, err := svc.Encrypt("value")
	require.NoError(t, err)
	plaintext, err := svc.Decrypt(encoded)
	require.NoError(t, err)
	assert.Equal(t, "value", plaintext)

	// Production does not
	_, err = NewCryptoService(&config.EncryptionConfig{}, &config.DeploymentConfig{Environment: "production"})
	assert.Error(t, err)
}

func TestEncryptPairDecryptPair(t *testing.T) {
	svc := newTestCrypto(t, CipherAESGCM)

	encToken, encSecret, err := svc.EncryptPair("token-value", "secret-value")
	require.NoError(t, err)
	assert.NotEqual(t, encToken, encSecret)

	token, secret, err := svc.DecryptPair(encToken, encSecret)
	require.NoError(t, err)
	assert.Equal(t, "token-value", token)
	assert.Equal(t, "secret-value", secret)
}

func TestValidateKey(t *testing.T) {
	for _, cipherName := range []string{CipherAESGCM, CipherChaCha20} {
		t.Run(cipherName, func(t *testing.T) {
			svc := newTestCrypto(t, cipherName)
			assert.NoError(t, svc.ValidateKey())
		})
	}
}

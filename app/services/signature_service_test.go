package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerifyAcceptsValidSignature(t *testing.T) {
	svc := NewSignatureService()
	body := []byte(`{"events":[{"type":"message"}]}`)

	sig := svc.Sign(body, "channel-secret")
	assert.True(t, svc.Verify(body, sig, "channel-secret"))
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	svc := NewSignatureService()
	body := []byte(`{"events":[]}`)

	sig := svc.Sign(body, "channel-secret")
	assert.False(t, svc.Verify(body, sig, "other-secret"))
}

func TestVerifyRejectsModifiedBody(t *testing.T) {
	svc := NewSignatureService()
	body := []byte(`{"events":[]}`)

	sig := svc.Sign(body, "channel-secret")
	assert.False(t, svc.Verify([]byte(`{"events":[{}]}`), sig, "channel-secret"))
}

func TestVerifyRejectsEmptyAndMalformedInput(t *testing.T) {
	svc := NewSignatureService()
	body := []byte(`{}`)

	assert.False(t, svc.Verify(body, "", "channel-secret"))
	assert.False(t, svc.Verify(body, "not base64 %%%", "channel-secret"))
	assert.False(t, svc.Verify(body, svc.Sign(body, "secret"), ""))
}

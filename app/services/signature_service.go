package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

// SignatureService validates inbound webhook signatures
type SignatureService interface {
	Verify(body []byte, signature, channelSecret string) bool
	Sign(body []byte, channelSecret string) string
}

// SignatureServiceImpl implements SignatureService
type SignatureServiceImpl struct{}

// NewSignatureService creates a new signature service
func NewSignatureService() SignatureService {
	return &SignatureServiceImpl{}
}

// Sign computes the base64 HMAC-SHA256 digest of the raw body
func (s *SignatureServiceImpl) Sign(body []byte, channelSecret string) string {
	mac := hmac.New(sha256.New, []byte(channelSecret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Verify checks the presented signature against the raw request body.
// The comparison is constant time. An empty signature or secret never
// verifies.
func (s *SignatureServiceImpl) Verify(body []byte, signature, channelSecret string) bool {
	if signature == "" || channelSecret == "" {
		return false
	}

	expected, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(channelSecret))
	mac.Write(body)

	return hmac.Equal(expected, mac.Sum(nil))
}

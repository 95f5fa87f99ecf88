package utils

import (
	"time"
)

// Scheduling constants
const (
	// DefaultTimezone is the civil time zone all scheduling decisions are made in
	DefaultTimezone = "Asia/Tokyo"

	// DefaultDueTolerance is the window around a campaign's send time within
	// which a once-per-minute scan tick considers it due
	DefaultDueTolerance = 60 * time.Second

	// DefaultDispatchInterval is how often the dispatch scanner runs
	DefaultDispatchInterval = time.Minute
)

// Crypto frame sizes (nonce + tag + ciphertext)
const (
	// NonceSize is the AEAD nonce length in bytes
	NonceSize = 12

	// TagSize is the AEAD authentication tag length in bytes
	TagSize = 16

	// EncryptionKeySize is the required symmetric key length in bytes
	EncryptionKeySize = 32
)

// ContextKey is a typed key for request-scoped context values
type ContextKey string

// Request-scoped context keys
const (
	RequestIDKey ContextKey = "request_id"
	IPAddressKey ContextKey = "ip_address"
	UserAgentKey ContextKey = "user_agent"
)

// CORS and security constants
const (
	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400

	// RedactedMarker replaces sensitive values in logged payloads
	RedactedMarker = "[REDACTED]"
)

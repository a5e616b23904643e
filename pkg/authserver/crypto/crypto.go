// Package crypto provides the random-value and hash primitives the
// authorization server builds token identifiers and PKCE challenges from.
package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"

	"golang.org/x/oauth2"
)

// ChallengeMethodS256 is the PKCE challenge method using SHA-256 (RFC 7636).
const ChallengeMethodS256 = "S256"

// secretLen is the byte length of the per-process token-id salt.
const secretLen = 32

// tokenRandLen is the number of random bytes hashed into each token id,
// 256 bits of entropy.
const tokenRandLen = 32

// NewSecret returns the per-process random secret used as a salting input
// for token id generation. It panics if the system random source fails.
func NewSecret() string {
	return base64.RawURLEncoding.EncodeToString(randBytes(secretLen))
}

// NewTokenID generates an opaque, URL-safe, unguessable token identifier:
// base64url(SHA-256(secret || random)), 43 characters.
func NewTokenID(secret string) string {
	sum := sha256.New()
	sum.Write([]byte(secret))
	sum.Write(randBytes(tokenRandLen))
	return base64.RawURLEncoding.EncodeToString(sum.Sum(nil))
}

// NewVerifier generates a PKCE code_verifier per RFC 7636 §4.1.
// It delegates to oauth2.GenerateVerifier.
func NewVerifier() string {
	return oauth2.GenerateVerifier()
}

// S256Challenge computes base64url(SHA-256(verifier)) per RFC 7636 §4.2.
// It delegates to oauth2.S256ChallengeFromVerifier.
func S256Challenge(verifier string) string {
	return oauth2.S256ChallengeFromVerifier(verifier)
}

func randBytes(n int) []byte {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand is unavailable: " + err.Error())
	}
	return b
}

package crypto

import (
	"crypto/rand"
	"fmt"
	"io"
)

// Sizes of the protocol's cryptographic values, in bytes.
const (
	// HandshakeNonceSize is the size of the random nonce carried in the
	// hello messages.
	HandshakeNonceSize = 16

	// PublicKeySize is the size of an X25519 public key.
	PublicKeySize = 32

	// AEADKeySize is the size of an AES-128-GCM key.
	AEADKeySize = 16

	// AEADNonceSize is the size of an AES-GCM nonce.
	AEADNonceSize = 12

	// AEADTagSize is the size of the AES-GCM authentication tag.
	AEADTagSize = 16
)

// GenerateHandshakeNonce returns a fresh random handshake nonce.
func GenerateHandshakeNonce() ([HandshakeNonceSize]byte, error) {
	var nonce [HandshakeNonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nonce, fmt.Errorf("failed to generate handshake nonce: %w", err)
	}
	return nonce, nil
}

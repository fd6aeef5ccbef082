package crypto

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/curve25519"
)

// Key agreement errors.
var (
	// ErrBadPeerPublicKey indicates the peer's X25519 public key produced an
	// all-zero shared secret (low-order point).
	ErrBadPeerPublicKey = errors.New("bad peer public key")

	// ErrKeyConsumed indicates the ephemeral private key was already wiped.
	ErrKeyConsumed = errors.New("ephemeral key already consumed")
)

// EphemeralKeyPair is a single-use X25519 key pair generated per handshake
// attempt. The private scalar must be wiped after key agreement regardless
// of the handshake outcome; Wipe is safe to call multiple times.
type EphemeralKeyPair struct {
	Public  [PublicKeySize]byte
	private [PublicKeySize]byte
	wiped   bool
}

// GenerateEphemeralKeyPair creates a fresh X25519 key pair.
func GenerateEphemeralKeyPair() (*EphemeralKeyPair, error) {
	kp := &EphemeralKeyPair{}
	if _, err := io.ReadFull(rand.Reader, kp.private[:]); err != nil {
		return nil, fmt.Errorf("failed to generate ephemeral key: %w", err)
	}

	public, err := curve25519.X25519(kp.private[:], curve25519.Basepoint)
	if err != nil {
		Wipe(kp.private[:])
		return nil, fmt.Errorf("failed to compute ephemeral public key: %w", err)
	}
	copy(kp.Public[:], public)

	return kp, nil
}

// SharedSecret computes the X25519 shared secret with the peer's ephemeral
// public key. curve25519.X25519 rejects low-order peer points by refusing
// all-zero outputs, which is surfaced as ErrBadPeerPublicKey.
func (kp *EphemeralKeyPair) SharedSecret(peerPublic [PublicKeySize]byte) ([]byte, error) {
	if kp.wiped {
		return nil, ErrKeyConsumed
	}

	secret, err := curve25519.X25519(kp.private[:], peerPublic[:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPeerPublicKey, err)
	}
	return secret, nil
}

// Wipe erases the private scalar. The key pair is unusable afterwards.
func (kp *EphemeralKeyPair) Wipe() {
	Wipe(kp.private[:])
	kp.wiped = true
}

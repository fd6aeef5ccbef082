// Package identity holds the long-term signing material of the two peers:
// the local Ed25519 key pair and, on the verifying side, the pinned public
// key the peer is expected to prove possession of. There is no certificate
// chain; the pinned key is the whole trust anchor.
package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/hermit-proto/hermit-go/pkg/crypto"
)

// Ed25519 sizes, in bytes.
const (
	// PublicKeySize is the size of an Ed25519 public key.
	PublicKeySize = ed25519.PublicKeySize

	// SignatureSize is the size of an Ed25519 signature.
	SignatureSize = ed25519.SignatureSize

	// SeedSize is the size of an Ed25519 private key seed.
	SeedSize = ed25519.SeedSize
)

// Identity errors.
var (
	// ErrInvalidSeed indicates a seed of the wrong length.
	ErrInvalidSeed = errors.New("invalid private key seed")

	// ErrInvalidPublicKey indicates a public key of the wrong length.
	ErrInvalidPublicKey = errors.New("invalid public key")
)

// KeyPair is a long-term Ed25519 signing key pair. The private material is
// owned exclusively by the party that generated it and must be wiped on
// session teardown via Wipe.
type KeyPair struct {
	public  ed25519.PublicKey
	private ed25519.PrivateKey
}

// Generate creates a new long-term signing key pair.
func Generate() (*KeyPair, error) {
	public, private, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate signing key pair: %w", err)
	}
	return &KeyPair{public: public, private: private}, nil
}

// FromSeed reconstructs a key pair from a 32-byte private key seed.
func FromSeed(seed []byte) (*KeyPair, error) {
	if len(seed) != SeedSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidSeed, len(seed))
	}
	private := ed25519.NewKeyFromSeed(seed)
	return &KeyPair{
		public:  private.Public().(ed25519.PublicKey),
		private: private,
	}, nil
}

// Public returns the public half of the key pair.
func (kp *KeyPair) Public() ed25519.PublicKey {
	return kp.public
}

// Sign signs the message with the long-term private key.
func (kp *KeyPair) Sign(message []byte) []byte {
	return ed25519.Sign(kp.private, message)
}

// Wipe erases the private key material. The key pair is unusable afterwards.
func (kp *KeyPair) Wipe() {
	crypto.Wipe(kp.private)
	kp.private = nil
}

// PeerIdentity is the pinned Ed25519 public key a client expects the server
// to prove possession of. It is immutable for the session's lifetime.
type PeerIdentity struct {
	key [PublicKeySize]byte
}

// NewPeerIdentity pins an expected peer public key.
func NewPeerIdentity(key []byte) (PeerIdentity, error) {
	var p PeerIdentity
	if len(key) != PublicKeySize {
		return p, fmt.Errorf("%w: %d bytes", ErrInvalidPublicKey, len(key))
	}
	copy(p.key[:], key)
	return p, nil
}

// Matches reports whether the presented key is byte-exact equal to the
// pinned key. The comparison is constant time.
func (p PeerIdentity) Matches(presented []byte) bool {
	if len(presented) != PublicKeySize {
		return false
	}
	return subtle.ConstantTimeCompare(p.key[:], presented) == 1
}

// Key returns a copy of the pinned public key.
func (p PeerIdentity) Key() []byte {
	out := make([]byte, PublicKeySize)
	copy(out, p.key[:])
	return out
}

// Verify checks an Ed25519 signature over message against the pinned key.
func (p PeerIdentity) Verify(message, signature []byte) bool {
	if len(signature) != SignatureSize {
		return false
	}
	return ed25519.Verify(p.key[:], message, signature)
}

package identity

import (
	"bytes"
	"errors"
	"testing"
)

func TestGenerateAndSign(t *testing.T) {
	kp, err := Generate()
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	msg := []byte("attached to the transcript")
	sig := kp.Sign(msg)
	if len(sig) != SignatureSize {
		t.Fatalf("signature length = %d, want %d", len(sig), SignatureSize)
	}

	pin, err := NewPeerIdentity(kp.Public())
	if err != nil {
		t.Fatalf("NewPeerIdentity failed: %v", err)
	}
	if !pin.Verify(msg, sig) {
		t.Error("signature did not verify against own public key")
	}
	if pin.Verify([]byte("different message"), sig) {
		t.Error("signature verified against a different message")
	}
}

func TestFromSeedDeterministic(t *testing.T) {
	seed := bytes.Repeat([]byte{0x42}, SeedSize)

	kp1, err := FromSeed(seed)
	if err != nil {
		t.Fatalf("FromSeed failed: %v", err)
	}
	kp2, err := FromSeed(seed)
	if err != nil {
		t.Fatalf("FromSeed failed: %v", err)
	}

	if !bytes.Equal(kp1.Public(), kp2.Public()) {
		t.Error("same seed produced different public keys")
	}
}

func TestFromSeedRejectsBadLength(t *testing.T) {
	if _, err := FromSeed(make([]byte, SeedSize-1)); !errors.Is(err, ErrInvalidSeed) {
		t.Errorf("expected ErrInvalidSeed, got %v", err)
	}
}

func TestPeerIdentityMatches(t *testing.T) {
	kp, err := Generate()
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	pin, err := NewPeerIdentity(kp.Public())
	if err != nil {
		t.Fatalf("NewPeerIdentity failed: %v", err)
	}

	if !pin.Matches(kp.Public()) {
		t.Error("pinned key did not match itself")
	}

	// A single flipped bit must be detected.
	flipped := append([]byte(nil), kp.Public()...)
	flipped[0] ^= 0x01
	if pin.Matches(flipped) {
		t.Error("pinned key matched a key differing by one bit")
	}

	if pin.Matches(kp.Public()[:PublicKeySize-1]) {
		t.Error("pinned key matched a truncated key")
	}
}

func TestNewPeerIdentityRejectsBadLength(t *testing.T) {
	if _, err := NewPeerIdentity(make([]byte, 16)); !errors.Is(err, ErrInvalidPublicKey) {
		t.Errorf("expected ErrInvalidPublicKey, got %v", err)
	}
}

func TestKeyPairWipe(t *testing.T) {
	kp, err := Generate()
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	private := kp.private

	kp.Wipe()

	if kp.private != nil {
		t.Error("private key reference not cleared")
	}
	for _, b := range private {
		if b != 0 {
			t.Error("private key bytes not zeroed")
			break
		}
	}
}

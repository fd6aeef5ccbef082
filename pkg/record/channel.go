package record

import (
	"crypto/cipher"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/hermit-proto/hermit-go/pkg/crypto"
	"github.com/hermit-proto/hermit-go/pkg/wire"
)

// Record errors. All of them are fatal for the session.
var (
	// ErrPayloadTooLarge indicates a plaintext exceeding the negotiated
	// limit for its direction.
	ErrPayloadTooLarge = errors.New("record payload exceeds length limit")

	// ErrAuthenticationFailed indicates an AEAD open failure: the record
	// was tampered with, truncated, or the counters desynchronized.
	ErrAuthenticationFailed = errors.New("record authentication failed")

	// ErrCounterOverflow indicates a direction exhausted its 64-bit
	// counter space; continuing would reuse a nonce.
	ErrCounterOverflow = errors.New("record counter overflow")
)

// LimitSource supplies the length limit currently in force for one data
// direction. *lenlimit.Negotiator implements it.
type LimitSource interface {
	Limit() int
}

// FixedLimit is a LimitSource with a constant value.
type FixedLimit int

// Limit returns the fixed value.
func (l FixedLimit) Limit() int { return int(l) }

// half is one direction of the channel: an AEAD key, a nonce base and a
// strictly monotonic counter. The mutex makes counter-advance and nonce
// derivation atomic with respect to seal/open, so concurrent sends can
// never reuse a nonce.
type half struct {
	mu        sync.Mutex
	aead      cipher.AEAD
	base      [crypto.AEADNonceSize]byte
	counter   uint64
	exhausted bool
}

func newHalf(secrets crypto.DirectionSecrets) (*half, error) {
	aead, err := crypto.NewAEAD(secrets.Key)
	if err != nil {
		return nil, err
	}
	return &half{aead: aead, base: secrets.Base}, nil
}

// nonceAt derives the record nonce for a counter value: the direction's
// base with the big-endian counter XORed into its last 8 bytes. Distinct
// counters yield distinct nonces under the same base.
func (h *half) nonceAt(counter uint64) [crypto.AEADNonceSize]byte {
	nonce := h.base
	var ctr [8]byte
	binary.BigEndian.PutUint64(ctr[:], counter)
	for i, b := range ctr {
		nonce[crypto.AEADNonceSize-8+i] ^= b
	}
	return nonce
}

// advance hands out the current counter value exactly once and flags
// exhaustion when the counter wraps.
func (h *half) advance() (uint64, error) {
	if h.exhausted {
		return 0, ErrCounterOverflow
	}
	n := h.counter
	h.counter++
	if h.counter == 0 {
		h.exhausted = true
	}
	return n, nil
}

// Channel seals and opens secure records for an established session.
// Seal and Open may be called concurrently with each other; each is also
// individually safe for concurrent use.
type Channel struct {
	send *half
	recv *half

	sendLimit LimitSource
	recvLimit LimitSource
}

// NewChannel creates a record channel from the session's directional key
// material. send protects records this peer emits, recv records it
// receives; the limit sources are consulted on every call.
func NewChannel(send, recv crypto.DirectionSecrets, sendLimit, recvLimit LimitSource) (*Channel, error) {
	sendHalf, err := newHalf(send)
	if err != nil {
		return nil, fmt.Errorf("failed to set up send direction: %w", err)
	}
	recvHalf, err := newHalf(recv)
	if err != nil {
		return nil, fmt.Errorf("failed to set up receive direction: %w", err)
	}
	return &Channel{
		send:      sendHalf,
		recv:      recvHalf,
		sendLimit: sendLimit,
		recvLimit: recvLimit,
	}, nil
}

// Seal encrypts a payload into a secure envelope. The plaintext must not
// exceed the send direction's current limit; oversized payloads fail
// without consuming a counter value, so nothing is partially sent.
func (c *Channel) Seal(plaintext []byte) (*wire.Message, error) {
	limit := c.sendLimit.Limit()
	if len(plaintext) > limit {
		return nil, fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, len(plaintext), limit)
	}

	c.send.mu.Lock()
	defer c.send.mu.Unlock()

	n, err := c.send.advance()
	if err != nil {
		return nil, err
	}
	nonce := c.send.nonceAt(n)

	sealed := c.send.aead.Seal(nil, nonce[:], plaintext, nil)
	return wire.NewSecure(sealed), nil
}

// Open authenticates and decrypts a secure envelope. The declared plaintext
// length is checked against the receive direction's limit before any
// decryption work. Open never returns partially trusted plaintext: on any
// authentication failure the whole session must be torn down.
func (c *Channel) Open(msg *wire.Message) ([]byte, error) {
	if msg.Type != wire.TypeSecure {
		return nil, fmt.Errorf("%w: got %s, want %s", wire.ErrTypeMismatch, msg.Type, wire.TypeSecure)
	}
	if len(msg.Payload) < crypto.AEADTagSize {
		return nil, fmt.Errorf("%w: record shorter than tag", ErrAuthenticationFailed)
	}

	plaintextLen := len(msg.Payload) - crypto.AEADTagSize
	limit := c.recvLimit.Limit()
	if plaintextLen > limit {
		return nil, fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, plaintextLen, limit)
	}

	c.recv.mu.Lock()
	defer c.recv.mu.Unlock()

	n, err := c.recv.advance()
	if err != nil {
		return nil, err
	}
	nonce := c.recv.nonceAt(n)

	plaintext, err := c.recv.aead.Open(nil, nonce[:], msg.Payload, nil)
	if err != nil {
		return nil, ErrAuthenticationFailed
	}
	return plaintext, nil
}

// SendCounter returns the number of records sealed so far.
func (c *Channel) SendCounter() uint64 {
	c.send.mu.Lock()
	defer c.send.mu.Unlock()
	return c.send.counter
}

// RecvCounter returns the number of records opened so far, including the
// one that failed if the session died on an authentication error.
func (c *Channel) RecvCounter() uint64 {
	c.recv.mu.Lock()
	defer c.recv.mu.Unlock()
	return c.recv.counter
}


package wire

import (
	"errors"
	"fmt"

	"github.com/hermit-proto/hermit-go/pkg/crypto"
	"github.com/hermit-proto/hermit-go/pkg/identity"
)

// Envelope constants.
const (
	// HeaderSize is the size of the envelope header in bytes.
	HeaderSize = 6

	// Version1 is the only protocol version currently defined.
	Version1 uint8 = 0x01

	// MinLenLimit is the smallest negotiable secure payload limit. Plain
	// payloads are bounded by it unconditionally.
	MinLenLimit = 512

	// MaxLenLimit is the largest negotiable secure payload limit.
	MaxLenLimit = 65536
)

// Type is the envelope type tag.
type Type uint8

// Envelope type tags. TypeSecure marks an AEAD-sealed record; all other
// tags are plain control messages.
const (
	TypeSecure                 Type = 0x00
	TypeClientHello            Type = 0x01
	TypeServerHello            Type = 0x02
	TypeDisconnect             Type = 0x03
	TypeDowngrade              Type = 0x04
	TypeAdjustLenLimitRequest  Type = 0x10
	TypeAdjustLenLimitResponse Type = 0x11
)

// String returns the type tag name.
func (t Type) String() string {
	switch t {
	case TypeSecure:
		return "SECURE"
	case TypeClientHello:
		return "CLIENT_HELLO"
	case TypeServerHello:
		return "SERVER_HELLO"
	case TypeDisconnect:
		return "DISCONNECT"
	case TypeDowngrade:
		return "DOWNGRADE"
	case TypeAdjustLenLimitRequest:
		return "ADJUST_LEN_LIMIT_REQUEST"
	case TypeAdjustLenLimitResponse:
		return "ADJUST_LEN_LIMIT_RESPONSE"
	default:
		return fmt.Sprintf("UNKNOWN(0x%02x)", uint8(t))
	}
}

// Valid reports whether the tag is one of the defined envelope types.
func (t Type) Valid() bool {
	switch t {
	case TypeSecure, TypeClientHello, TypeServerHello, TypeDisconnect,
		TypeDowngrade, TypeAdjustLenLimitRequest, TypeAdjustLenLimitResponse:
		return true
	default:
		return false
	}
}

// IsPlain reports whether the tag denotes an unencrypted control message.
func (t Type) IsPlain() bool {
	return t != TypeSecure
}

// Message is a decoded envelope: a type tag and its raw payload.
// For TypeSecure the payload is ciphertext plus tag; for plain types it is
// the CBOR-encoded control payload (possibly empty).
type Message struct {
	Type    Type
	Version uint8
	Payload []byte
}

// Payload validation errors.
var (
	// ErrInvalidPayload indicates a control payload whose fields do not
	// have the required sizes or ranges.
	ErrInvalidPayload = errors.New("invalid control payload")

	// ErrTypeMismatch indicates a decode against the wrong envelope type.
	ErrTypeMismatch = errors.New("envelope type mismatch")
)

// ClientHello opens the handshake. It carries the initiator's random nonce
// and ephemeral X25519 public key.
type ClientHello struct {
	Nonce        []byte `cbor:"1,keyasint"`
	EphemeralKey []byte `cbor:"2,keyasint"`
}

// Validate checks the field sizes.
func (m *ClientHello) Validate() error {
	if len(m.Nonce) != crypto.HandshakeNonceSize {
		return fmt.Errorf("%w: client hello nonce %d bytes", ErrInvalidPayload, len(m.Nonce))
	}
	if len(m.EphemeralKey) != crypto.PublicKeySize {
		return fmt.Errorf("%w: client hello ephemeral key %d bytes", ErrInvalidPayload, len(m.EphemeralKey))
	}
	return nil
}

// ServerHello answers a ClientHello. It carries the responder's random
// nonce, ephemeral X25519 public key, long-term Ed25519 public key and the
// transcript signature.
type ServerHello struct {
	Nonce        []byte `cbor:"1,keyasint"`
	EphemeralKey []byte `cbor:"2,keyasint"`
	SigningKey   []byte `cbor:"3,keyasint"`
	Signature    []byte `cbor:"4,keyasint"`
}

// Validate checks the field sizes.
func (m *ServerHello) Validate() error {
	if len(m.Nonce) != crypto.HandshakeNonceSize {
		return fmt.Errorf("%w: server hello nonce %d bytes", ErrInvalidPayload, len(m.Nonce))
	}
	if len(m.EphemeralKey) != crypto.PublicKeySize {
		return fmt.Errorf("%w: server hello ephemeral key %d bytes", ErrInvalidPayload, len(m.EphemeralKey))
	}
	if len(m.SigningKey) != identity.PublicKeySize {
		return fmt.Errorf("%w: server hello signing key %d bytes", ErrInvalidPayload, len(m.SigningKey))
	}
	if len(m.Signature) != identity.SignatureSize {
		return fmt.Errorf("%w: server hello signature %d bytes", ErrInvalidPayload, len(m.Signature))
	}
	return nil
}

// AdjustLenLimitRequest asks the peer to change the secure payload limit
// for the requester's send direction.
type AdjustLenLimitRequest struct {
	Limit uint32 `cbor:"1,keyasint"`
}

// AdjustLenLimitResponse answers an AdjustLenLimitRequest. Limit echoes the
// accepted value and is meaningless when Accepted is false.
type AdjustLenLimitResponse struct {
	Accepted bool   `cbor:"1,keyasint"`
	Limit    uint32 `cbor:"2,keyasint,omitempty"`
}

// encode wraps a CBOR-encodable control payload in an envelope message.
func encode(t Type, v any) (*Message, error) {
	payload, err := Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", t, err)
	}
	return &Message{Type: t, Version: Version1, Payload: payload}, nil
}

// decode unwraps an envelope message into a control payload, checking the
// expected type tag first.
func decode(msg *Message, t Type, v any) error {
	if msg.Type != t {
		return fmt.Errorf("%w: got %s, want %s", ErrTypeMismatch, msg.Type, t)
	}
	if err := Unmarshal(msg.Payload, v); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", t, err)
	}
	return nil
}

// EncodeClientHello encodes a ClientHello into an envelope message.
func EncodeClientHello(m *ClientHello) (*Message, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return encode(TypeClientHello, m)
}

// DecodeClientHello decodes and validates a ClientHello envelope.
func DecodeClientHello(msg *Message) (*ClientHello, error) {
	var m ClientHello
	if err := decode(msg, TypeClientHello, &m); err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// EncodeServerHello encodes a ServerHello into an envelope message.
func EncodeServerHello(m *ServerHello) (*Message, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return encode(TypeServerHello, m)
}

// DecodeServerHello decodes and validates a ServerHello envelope.
func DecodeServerHello(msg *Message) (*ServerHello, error) {
	var m ServerHello
	if err := decode(msg, TypeServerHello, &m); err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// EncodeAdjustLenLimitRequest encodes an adjustment request.
func EncodeAdjustLenLimitRequest(m *AdjustLenLimitRequest) (*Message, error) {
	return encode(TypeAdjustLenLimitRequest, m)
}

// DecodeAdjustLenLimitRequest decodes an adjustment request envelope.
func DecodeAdjustLenLimitRequest(msg *Message) (*AdjustLenLimitRequest, error) {
	var m AdjustLenLimitRequest
	if err := decode(msg, TypeAdjustLenLimitRequest, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// EncodeAdjustLenLimitResponse encodes an adjustment response.
func EncodeAdjustLenLimitResponse(m *AdjustLenLimitResponse) (*Message, error) {
	return encode(TypeAdjustLenLimitResponse, m)
}

// DecodeAdjustLenLimitResponse decodes an adjustment response envelope.
func DecodeAdjustLenLimitResponse(msg *Message) (*AdjustLenLimitResponse, error) {
	var m AdjustLenLimitResponse
	if err := decode(msg, TypeAdjustLenLimitResponse, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// NewDisconnect builds the empty-payload Disconnect envelope.
func NewDisconnect() *Message {
	return &Message{Type: TypeDisconnect, Version: Version1}
}

// NewSecure wraps sealed record bytes (ciphertext plus tag) in an envelope.
func NewSecure(sealed []byte) *Message {
	return &Message{Type: TypeSecure, Version: Version1, Payload: sealed}
}

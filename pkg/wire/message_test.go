package wire

import (
	"bytes"
	"errors"
	"testing"

	"github.com/hermit-proto/hermit-go/pkg/crypto"
	"github.com/hermit-proto/hermit-go/pkg/identity"
)

func TestTypeString(t *testing.T) {
	tests := []struct {
		t    Type
		want string
	}{
		{TypeSecure, "SECURE"},
		{TypeClientHello, "CLIENT_HELLO"},
		{TypeServerHello, "SERVER_HELLO"},
		{TypeDisconnect, "DISCONNECT"},
		{TypeDowngrade, "DOWNGRADE"},
		{TypeAdjustLenLimitRequest, "ADJUST_LEN_LIMIT_REQUEST"},
		{TypeAdjustLenLimitResponse, "ADJUST_LEN_LIMIT_RESPONSE"},
		{Type(0xff), "UNKNOWN(0xff)"},
	}
	for _, tt := range tests {
		if got := tt.t.String(); got != tt.want {
			t.Errorf("Type(0x%02x).String() = %q, want %q", uint8(tt.t), got, tt.want)
		}
	}
}

func TestTypeValid(t *testing.T) {
	for _, valid := range []Type{TypeSecure, TypeClientHello, TypeServerHello,
		TypeDisconnect, TypeDowngrade, TypeAdjustLenLimitRequest, TypeAdjustLenLimitResponse} {
		if !valid.Valid() {
			t.Errorf("Type %s reported invalid", valid)
		}
	}
	for _, invalid := range []Type{0x05, 0x0f, 0x12, 0xff} {
		if invalid.Valid() {
			t.Errorf("Type 0x%02x reported valid", uint8(invalid))
		}
	}
}

func TestClientHelloRoundTrip(t *testing.T) {
	hello := &ClientHello{
		Nonce:        bytes.Repeat([]byte{0x11}, crypto.HandshakeNonceSize),
		EphemeralKey: bytes.Repeat([]byte{0x22}, crypto.PublicKeySize),
	}

	msg, err := EncodeClientHello(hello)
	if err != nil {
		t.Fatalf("EncodeClientHello failed: %v", err)
	}
	if msg.Type != TypeClientHello || msg.Version != Version1 {
		t.Fatalf("envelope = %s v%d, want CLIENT_HELLO v1", msg.Type, msg.Version)
	}

	got, err := DecodeClientHello(msg)
	if err != nil {
		t.Fatalf("DecodeClientHello failed: %v", err)
	}
	if !bytes.Equal(got.Nonce, hello.Nonce) || !bytes.Equal(got.EphemeralKey, hello.EphemeralKey) {
		t.Error("client hello fields did not round trip")
	}
}

func TestClientHelloValidation(t *testing.T) {
	tests := []struct {
		name  string
		hello ClientHello
	}{
		{"short nonce", ClientHello{
			Nonce:        make([]byte, crypto.HandshakeNonceSize-1),
			EphemeralKey: make([]byte, crypto.PublicKeySize),
		}},
		{"long nonce", ClientHello{
			Nonce:        make([]byte, crypto.HandshakeNonceSize+1),
			EphemeralKey: make([]byte, crypto.PublicKeySize),
		}},
		{"missing key", ClientHello{
			Nonce: make([]byte, crypto.HandshakeNonceSize),
		}},
		{"empty", ClientHello{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := EncodeClientHello(&tt.hello); !errors.Is(err, ErrInvalidPayload) {
				t.Errorf("EncodeClientHello = %v, want ErrInvalidPayload", err)
			}
		})
	}
}

func TestServerHelloRoundTrip(t *testing.T) {
	hello := &ServerHello{
		Nonce:        bytes.Repeat([]byte{0x33}, crypto.HandshakeNonceSize),
		EphemeralKey: bytes.Repeat([]byte{0x44}, crypto.PublicKeySize),
		SigningKey:   bytes.Repeat([]byte{0x55}, identity.PublicKeySize),
		Signature:    bytes.Repeat([]byte{0x66}, identity.SignatureSize),
	}

	msg, err := EncodeServerHello(hello)
	if err != nil {
		t.Fatalf("EncodeServerHello failed: %v", err)
	}

	got, err := DecodeServerHello(msg)
	if err != nil {
		t.Fatalf("DecodeServerHello failed: %v", err)
	}
	if !bytes.Equal(got.Signature, hello.Signature) || !bytes.Equal(got.SigningKey, hello.SigningKey) {
		t.Error("server hello fields did not round trip")
	}
}

func TestServerHelloValidation(t *testing.T) {
	// A truncated signature must be rejected on decode even if the CBOR
	// itself is well formed.
	payload, err := Marshal(&ServerHello{
		Nonce:        make([]byte, crypto.HandshakeNonceSize),
		EphemeralKey: make([]byte, crypto.PublicKeySize),
		SigningKey:   make([]byte, identity.PublicKeySize),
		Signature:    make([]byte, identity.SignatureSize-1),
	})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	msg := &Message{Type: TypeServerHello, Version: Version1, Payload: payload}
	if _, err := DecodeServerHello(msg); !errors.Is(err, ErrInvalidPayload) {
		t.Errorf("DecodeServerHello = %v, want ErrInvalidPayload", err)
	}
}

func TestDecodeWrongType(t *testing.T) {
	msg, err := EncodeAdjustLenLimitRequest(&AdjustLenLimitRequest{Limit: 1024})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	if _, err := DecodeClientHello(msg); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("DecodeClientHello on request envelope = %v, want ErrTypeMismatch", err)
	}
	if _, err := DecodeAdjustLenLimitResponse(msg); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("DecodeAdjustLenLimitResponse on request envelope = %v, want ErrTypeMismatch", err)
	}
}

func TestDecodeGarbagePayload(t *testing.T) {
	msg := &Message{Type: TypeClientHello, Version: Version1, Payload: []byte{0xff, 0xfe, 0xfd}}
	if _, err := DecodeClientHello(msg); err == nil {
		t.Error("DecodeClientHello accepted garbage CBOR")
	}
}

func TestAdjustLenLimitRoundTrip(t *testing.T) {
	reqMsg, err := EncodeAdjustLenLimitRequest(&AdjustLenLimitRequest{Limit: 4096})
	if err != nil {
		t.Fatalf("encode request failed: %v", err)
	}
	req, err := DecodeAdjustLenLimitRequest(reqMsg)
	if err != nil {
		t.Fatalf("decode request failed: %v", err)
	}
	if req.Limit != 4096 {
		t.Errorf("request limit = %d, want 4096", req.Limit)
	}

	respMsg, err := EncodeAdjustLenLimitResponse(&AdjustLenLimitResponse{Accepted: true, Limit: 4096})
	if err != nil {
		t.Fatalf("encode response failed: %v", err)
	}
	resp, err := DecodeAdjustLenLimitResponse(respMsg)
	if err != nil {
		t.Fatalf("decode response failed: %v", err)
	}
	if !resp.Accepted || resp.Limit != 4096 {
		t.Errorf("response = %+v, want accepted with limit 4096", resp)
	}
}

func TestCanonicalEncodingIsDeterministic(t *testing.T) {
	hello := &ClientHello{
		Nonce:        bytes.Repeat([]byte{0x77}, crypto.HandshakeNonceSize),
		EphemeralKey: bytes.Repeat([]byte{0x88}, crypto.PublicKeySize),
	}

	a, err := Marshal(hello)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	b, err := Marshal(hello)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Error("two encodings of the same value differ")
	}
}

func TestUnmarshalRejectsDuplicateKeys(t *testing.T) {
	// {1: 512, 1: 1024} with a duplicate integer key.
	data := []byte{0xa2, 0x01, 0x19, 0x02, 0x00, 0x01, 0x19, 0x04, 0x00}
	var req AdjustLenLimitRequest
	if err := Unmarshal(data, &req); err == nil {
		t.Error("Unmarshal accepted duplicate map keys")
	}
}

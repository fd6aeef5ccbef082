// Package wire defines the hermit protocol's on-wire envelope and the
// canonical encoding of its control payloads.
//
// Every message, plain or secure, travels in the same envelope:
//
//	┌──────┬─────────┬────────────────┐
//	│ type │ version │ length (u32 BE)│  6-byte header
//	├──────┴─────────┴────────────────┤
//	│ payload                         │
//	└─────────────────────────────────┘
//
// The type byte discriminates secure records (TypeSecure) from plain
// control messages (everything else). Plain payloads are bounded by
// MinLenLimit unconditionally, independent of any negotiated limit, so
// handshake and control traffic is never starved by a shrunk limit.
// Secure payloads carry AEAD ciphertext plus tag and are bounded by
// MaxLenLimit plus the tag overhead.
//
// Control payloads are encoded as deterministic CBOR with integer map
// keys, identical in both directions.
package wire

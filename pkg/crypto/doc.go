// Package crypto provides thin wrappers over the cryptographic primitives
// used by the hermit protocol.
//
// The package contains no protocol logic. It adapts:
//   - X25519 ephemeral key agreement (one key pair per handshake attempt)
//   - HKDF-HMAC-SHA-256 session key derivation
//   - AES-128-GCM AEAD construction for the record layer
//   - SHA-256 nonce base derivation
//   - random handshake nonce generation
//   - best-effort wiping of key material
//
// Ed25519 signing lives in the identity package; this package only deals
// with per-session material.
package crypto

// Package handshake implements the mutual establishment of a secure session
// between a client and a server that already know each other's long-term
// Ed25519 public keys. There are no certificates: the client pins the
// server's key out of band, and the server proves possession of it by
// signing the handshake transcript.
//
// The exchange is two messages. The client opens with a random nonce and an
// ephemeral X25519 public key; the server answers with its own nonce and
// ephemeral key, its long-term signing key, and an Ed25519 signature over
// the full transcript. Both sides then derive the session's AEAD keys and
// nonce bases from the X25519 shared secret via HKDF-SHA-256.
//
// Every failure is terminal for the attempt: the engine enters FAILED, the
// ephemeral private key is wiped, and a new engine is required to retry.
package handshake

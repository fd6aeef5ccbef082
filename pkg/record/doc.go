// Package record implements the secure record layer: it turns opaque
// payloads into authenticated, encrypted, replay-safe secure envelopes once
// a handshake has established session keys.
//
// Each data direction has its own AES-128-GCM key, nonce base and 64-bit
// counter. The nonce for record n is the direction's base with the
// big-endian counter XORed into its last 8 bytes; nonces are never carried
// on the wire. Both peers advance their counters in lockstep, one step per
// record, so any loss of synchronization (or tampering) surfaces as an
// authentication failure.
//
// All record errors are fatal for the session: an authentication failure
// may indicate tampering or desynchronized counters, an oversized payload a
// limit violation, and counter exhaustion would lead to nonce reuse. None
// of them may be ignored; the session must be torn down.
package record

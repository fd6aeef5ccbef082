// Package log provides structured protocol event logging for the hermit
// transport.
//
// Every layer of the protocol stack (framing, handshake, record,
// negotiation, session) emits Event values through the Logger interface.
// Applications choose where events go:
//
//   - NoopLogger discards everything (the default)
//   - SlogAdapter forwards events to a log/slog logger for development
//   - StreamLogger writes a CBOR event stream to any io.Writer
//   - FileLogger appends a CBOR event stream to a file
//   - MultiLogger fans out to several of the above
//
// Events use integer CBOR keys so captured streams stay compact enough to
// record entire sessions, including frame payloads (truncated above
// wire.MaxLogFrameSize).
//
// Logging never carries plaintext of secure records: the framing layer only
// sees ciphertext, and no other layer logs payload bytes.
package log

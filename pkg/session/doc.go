// Package session is the top of the stack: it establishes a secure session
// over any ordered, reliable byte stream and exposes Send/Receive for
// application payloads.
//
// Connect and Accept run the handshake and wire the record channel to one
// length limit negotiator per data direction. The endpoint that sends on a
// direction owns adjustment requests for it; raise requests arriving from
// the peer are subject to the configured accept policy, shrink requests are
// always honored.
//
// Receive is the session's single reader: it dispatches control messages
// (limit adjustments, disconnects) internally and returns only application
// payloads. Exactly one goroutine may call Receive; Send and
// RequestSendLimit are safe from any goroutine.
//
// Every record layer error is fatal. The session latches the first fatal
// error and returns it from all subsequent calls; the only recovery is a
// new connection and a new handshake.
package session

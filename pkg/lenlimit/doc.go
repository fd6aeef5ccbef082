// Package lenlimit implements the message length limit (MLL) negotiation
// state machine.
//
// Each data direction of a session has its own limit, starting at
// wire.MinLenLimit. The sender of a direction may request an adjustment;
// the receiver answers. An accepted new limit takes effect strictly after
// the response is sent (responder side) or received (requester side), so
// both peers agree on which limit applies to any record already in flight.
//
// # States
//
//   - IDLE: no adjustment in flight
//   - REQUEST_SENT: a locally initiated request awaits the peer's response
//   - REQUEST_RECEIVED: a peer request awaits the local response commit
//
// At most one adjustment may be outstanding per direction. Any request
// arriving while one is pending is rejected without disturbing the
// in-flight negotiation.
//
// # Accept rules
//
//   - requested limit out of [MinLenLimit, MaxLenLimit]: always rejected
//   - requested limit ≤ current limit: always accepted
//   - requested limit > current limit: local Policy decides
//
// Rejections are protocol-level outcomes, not errors; the session continues
// with the prior limit.
package lenlimit

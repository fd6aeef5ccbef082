package handshake

// State of the handshake engine. A client runs IDLE through ESTABLISHED in
// order; a server visits HELLO_RECEIVED before HELLO_SENT. Any error drops
// the engine into FAILED, which is terminal.
type State uint8

const (
	// StateIdle is the initial state; no message has been exchanged.
	StateIdle State = 0

	// StateHelloSent means the local hello is on the wire.
	StateHelloSent State = 1

	// StateHelloReceived means the peer's hello has been read and decoded.
	StateHelloReceived State = 2

	// StateKeyAgreed means the X25519 shared secret has been computed.
	StateKeyAgreed State = 3

	// StatePeerVerified means the peer's identity proof checked out. On the
	// server this transition is immediate: the client proves nothing during
	// the handshake.
	StatePeerVerified State = 4

	// StateEstablished means session secrets are derived and the record
	// layer may start.
	StateEstablished State = 5

	// StateFailed is the terminal error state.
	StateFailed State = 6
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateHelloSent:
		return "HELLO_SENT"
	case StateHelloReceived:
		return "HELLO_RECEIVED"
	case StateKeyAgreed:
		return "KEY_AGREED"
	case StatePeerVerified:
		return "PEER_VERIFIED"
	case StateEstablished:
		return "ESTABLISHED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Role of the local endpoint in the handshake.
type Role uint8

const (
	// RoleClient initiates the handshake and verifies the server.
	RoleClient Role = 1

	// RoleServer responds and proves its identity.
	RoleServer Role = 2
)

// String returns the role name.
func (r Role) String() string {
	switch r {
	case RoleClient:
		return "CLIENT"
	case RoleServer:
		return "SERVER"
	default:
		return "NONE"
	}
}

package log

import "time"

// Event is one protocol log event. CBOR encoding uses integer keys for
// compactness; exactly one of the typed payload pointers is set, matching
// the Category.
type Event struct {
	// Timestamp when the event occurred.
	Timestamp time.Time `cbor:"1,keyasint"`

	// SessionID uniquely identifies the session (UUID).
	SessionID string `cbor:"2,keyasint"`

	// Direction of the message flow, where applicable.
	Direction Direction `cbor:"3,keyasint,omitempty"`

	// Layer that captured the event.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event.
	Category Category `cbor:"5,keyasint"`

	// Role of the local endpoint, if known.
	Role Role `cbor:"6,keyasint,omitempty"`

	// Typed payloads; one of these is set.
	Frame       *FrameEvent       `cbor:"10,keyasint,omitempty"`
	StateChange *StateChangeEvent `cbor:"11,keyasint,omitempty"`
	Negotiation *NegotiationEvent `cbor:"12,keyasint,omitempty"`
	Error       *ErrorEventData   `cbor:"13,keyasint,omitempty"`
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates an incoming message.
	DirectionIn Direction = 1
	// DirectionOut indicates an outgoing message.
	DirectionOut Direction = 2
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "NONE"
	}
}

// Layer indicates which protocol layer captured the event.
type Layer uint8

const (
	// LayerFraming is the envelope encode/decode layer.
	LayerFraming Layer = 0
	// LayerHandshake is the handshake engine.
	LayerHandshake Layer = 1
	// LayerRecord is the secure record layer.
	LayerRecord Layer = 2
	// LayerNegotiation is the length limit negotiator.
	LayerNegotiation Layer = 3
	// LayerSession is the session lifecycle layer.
	LayerSession Layer = 4
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerFraming:
		return "FRAMING"
	case LayerHandshake:
		return "HANDSHAKE"
	case LayerRecord:
		return "RECORD"
	case LayerNegotiation:
		return "NEGOTIATION"
	case LayerSession:
		return "SESSION"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage indicates a protocol message crossed a layer.
	CategoryMessage Category = 0
	// CategoryState indicates a state machine transition.
	CategoryState Category = 1
	// CategoryError indicates an error event.
	CategoryError Category = 2
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Role indicates which end of the handshake the local endpoint took.
type Role uint8

const (
	// RoleNone indicates the role is not yet known.
	RoleNone Role = 0
	// RoleClient indicates the handshake initiator.
	RoleClient Role = 1
	// RoleServer indicates the handshake responder.
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

// FrameEvent captures an envelope crossing the framing layer. For secure
// envelopes Data holds ciphertext, never plaintext.
type FrameEvent struct {
	// Type is the envelope type tag name.
	Type string `cbor:"1,keyasint"`

	// Size is the full envelope size in bytes, header included.
	Size int `cbor:"2,keyasint"`

	// Data is the payload, possibly truncated.
	Data []byte `cbor:"3,keyasint,omitempty"`

	// Truncated indicates Data was cut off.
	Truncated bool `cbor:"4,keyasint,omitempty"`
}

// StateChangeEvent captures a transition of one of the protocol's state
// machines.
type StateChangeEvent struct {
	// Entity names the state machine (handshake, negotiation, session).
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the state before the transition.
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the state after the transition.
	NewState string `cbor:"3,keyasint"`

	// Reason for the transition, if any.
	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity names the state machine that changed.
type StateEntity uint8

const (
	// StateEntityHandshake is the handshake engine FSM.
	StateEntityHandshake StateEntity = 0
	// StateEntityNegotiation is a length limit negotiator.
	StateEntityNegotiation StateEntity = 1
	// StateEntitySession is the session lifecycle.
	StateEntitySession StateEntity = 2
)

// String returns the entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityHandshake:
		return "HANDSHAKE"
	case StateEntityNegotiation:
		return "NEGOTIATION"
	case StateEntitySession:
		return "SESSION"
	default:
		return "UNKNOWN"
	}
}

// NegotiationEvent captures a length limit adjustment exchange.
type NegotiationEvent struct {
	// RequestedLimit is the limit proposed by the request.
	RequestedLimit uint32 `cbor:"1,keyasint"`

	// Accepted is set once the outcome is known.
	Accepted *bool `cbor:"2,keyasint,omitempty"`

	// AppliedLimit is the limit in force after the exchange.
	AppliedLimit uint32 `cbor:"3,keyasint,omitempty"`
}

// ErrorEventData captures an error at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error text.
	Message string `cbor:"2,keyasint"`

	// Context describes the operation that failed.
	Context string `cbor:"3,keyasint,omitempty"`
}

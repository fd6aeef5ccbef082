package lenlimit

import (
	"errors"
	"fmt"
	"sync"

	"github.com/hermit-proto/hermit-go/pkg/wire"
)

// State represents the negotiation state for one data direction.
type State uint8

const (
	// StateIdle indicates no adjustment is in flight.
	StateIdle State = iota

	// StateRequestSent indicates a locally initiated request awaits the
	// peer's response.
	StateRequestSent

	// StateRequestReceived indicates a peer request awaits the local
	// response commit.
	StateRequestReceived
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRequestSent:
		return "REQUEST_SENT"
	case StateRequestReceived:
		return "REQUEST_RECEIVED"
	default:
		return "UNKNOWN"
	}
}

// Negotiation errors.
var (
	// ErrAdjustmentPending indicates a local request was attempted while
	// another adjustment is already in flight for this direction.
	ErrAdjustmentPending = errors.New("adjustment already pending")

	// ErrLimitOutOfRange indicates a requested limit outside
	// [wire.MinLenLimit, wire.MaxLenLimit].
	ErrLimitOutOfRange = errors.New("length limit out of range")

	// ErrUnexpectedResponse indicates a response arrived with no request
	// in flight.
	ErrUnexpectedResponse = errors.New("unexpected adjustment response")

	// ErrLimitMismatch indicates an accepting response echoed a different
	// limit than was requested.
	ErrLimitMismatch = errors.New("response limit does not match request")
)

// Policy decides whether to accept a peer request that would raise the
// limit above its current value. Requests at or below the current limit are
// accepted unconditionally and never reach the policy.
type Policy func(current, requested int) bool

// AcceptAll accepts every in-range raise request.
func AcceptAll(current, requested int) bool { return true }

// AcceptUpTo returns a policy accepting raises only up to max.
func AcceptUpTo(max int) Policy {
	return func(current, requested int) bool { return requested <= max }
}

// inRange reports whether limit is a negotiable value.
func inRange(limit int) bool {
	return limit >= wire.MinLenLimit && limit <= wire.MaxLenLimit
}

// Negotiator runs the MLL state machine for one data direction. The zero
// value is not usable; create one with NewNegotiator.
//
// All methods are safe for concurrent use; the internal mutex makes each
// transition atomic, so two concurrent local requests can never both
// observe IDLE.
type Negotiator struct {
	mu sync.Mutex

	state  State
	limit  int
	policy Policy

	// Pending adjustment, valid while state != StateIdle.
	pendingLimit    int
	pendingAccepted bool
}

// NewNegotiator creates a negotiator with the limit at wire.MinLenLimit.
// A nil policy defaults to AcceptAll.
func NewNegotiator(policy Policy) *Negotiator {
	if policy == nil {
		policy = AcceptAll
	}
	return &Negotiator{
		state:  StateIdle,
		limit:  wire.MinLenLimit,
		policy: policy,
	}
}

// Limit returns the limit currently in force for this direction.
func (n *Negotiator) Limit() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.limit
}

// State returns the current negotiation state.
func (n *Negotiator) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// RequestAdjustment starts a locally initiated adjustment and returns the
// request message to send to the peer. Allowed only from IDLE; the new
// limit takes effect when HandleResponse processes an accepting response.
func (n *Negotiator) RequestAdjustment(newLimit int) (*wire.AdjustLenLimitRequest, error) {
	if !inRange(newLimit) {
		return nil, fmt.Errorf("%w: %d", ErrLimitOutOfRange, newLimit)
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.state != StateIdle {
		return nil, fmt.Errorf("%w: state %s", ErrAdjustmentPending, n.state)
	}

	n.state = StateRequestSent
	n.pendingLimit = newLimit

	return &wire.AdjustLenLimitRequest{Limit: uint32(newLimit)}, nil
}

// HandleResponse processes the peer's response to a locally initiated
// request. It returns the limit now in force. The negotiator returns to
// IDLE regardless of the outcome.
func (n *Negotiator) HandleResponse(resp *wire.AdjustLenLimitResponse) (int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.state != StateRequestSent {
		return n.limit, fmt.Errorf("%w: state %s", ErrUnexpectedResponse, n.state)
	}

	n.state = StateIdle
	if !resp.Accepted {
		n.pendingLimit = 0
		return n.limit, nil
	}

	if int(resp.Limit) != n.pendingLimit {
		requested := n.pendingLimit
		n.pendingLimit = 0
		return n.limit, fmt.Errorf("%w: requested %d, response %d",
			ErrLimitMismatch, requested, resp.Limit)
	}

	n.limit = n.pendingLimit
	n.pendingLimit = 0
	return n.limit, nil
}

// HandleRequest evaluates a peer-initiated adjustment request and returns
// the response to send. When pending is true the decision is held in
// REQUEST_RECEIVED and must be applied with CommitResponse after the
// response has been written to the peer; the limit must not change before
// the response is on the wire.
//
// Requests arriving while any adjustment is pending are rejected without
// touching the in-flight negotiation, as are out-of-range requests.
func (n *Negotiator) HandleRequest(req *wire.AdjustLenLimitRequest) (resp *wire.AdjustLenLimitResponse, pending bool) {
	requested := int(req.Limit)

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.state != StateIdle {
		return &wire.AdjustLenLimitResponse{Accepted: false}, false
	}
	if !inRange(requested) {
		return &wire.AdjustLenLimitResponse{Accepted: false}, false
	}

	accepted := requested <= n.limit || n.policy(n.limit, requested)

	n.state = StateRequestReceived
	n.pendingLimit = requested
	n.pendingAccepted = accepted

	if !accepted {
		return &wire.AdjustLenLimitResponse{Accepted: false}, true
	}
	return &wire.AdjustLenLimitResponse{Accepted: true, Limit: uint32(requested)}, true
}

// CommitResponse applies the outcome of the last HandleRequest and returns
// the negotiator to IDLE. Call it only after the response produced by
// HandleRequest has been written to the peer. It returns the limit now in
// force.
func (n *Negotiator) CommitResponse() int {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.state != StateRequestReceived {
		return n.limit
	}

	n.state = StateIdle
	if n.pendingAccepted {
		n.limit = n.pendingLimit
	}
	n.pendingLimit = 0
	n.pendingAccepted = false
	return n.limit
}

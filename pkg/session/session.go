package session

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hermit-proto/hermit-go/pkg/crypto"
	"github.com/hermit-proto/hermit-go/pkg/handshake"
	"github.com/hermit-proto/hermit-go/pkg/identity"
	"github.com/hermit-proto/hermit-go/pkg/lenlimit"
	"github.com/hermit-proto/hermit-go/pkg/log"
	"github.com/hermit-proto/hermit-go/pkg/record"
	"github.com/hermit-proto/hermit-go/pkg/wire"
)

// Session errors.
var (
	// ErrSessionClosed indicates the session was closed locally.
	ErrSessionClosed = errors.New("session closed")

	// ErrClosedByPeer indicates the peer sent a Disconnect.
	ErrClosedByPeer = errors.New("session closed by peer")

	// ErrProtocolViolation indicates the peer sent a message that is never
	// valid on an established session, such as a second hello or a
	// downgrade attempt.
	ErrProtocolViolation = errors.New("protocol violation")
)

// Options configures an endpoint. The zero value is usable: no logging and
// an accept-all policy for peer raise requests.
type Options struct {
	// Logger receives protocol events from all layers of this session.
	Logger log.Logger

	// Policy decides whether to accept a peer's request to raise the limit
	// on the receive direction. Shrink requests bypass it. Nil accepts all
	// in-range requests.
	Policy lenlimit.Policy
}

func (o *Options) logger() log.Logger {
	if o == nil || o.Logger == nil {
		return log.NoopLogger{}
	}
	return o.Logger
}

func (o *Options) policy() lenlimit.Policy {
	if o == nil {
		return nil
	}
	return o.Policy
}

// Session is an established secure session over a byte stream.
type Session struct {
	id     string
	role   handshake.Role
	conn   io.ReadWriteCloser
	framer *wire.Framer

	channel *record.Channel
	secrets *crypto.SessionSecrets

	// sendNeg owns adjustments for the direction this endpoint sends on;
	// recvNeg answers the peer's requests for the opposite direction.
	sendNeg *lenlimit.Negotiator
	recvNeg *lenlimit.Negotiator

	logger log.Logger

	mu       sync.Mutex
	fatalErr error

	closeOnce sync.Once
}

// Connect establishes a session as the initiating client. peer is the
// pinned long-term key the server must prove possession of. On error the
// connection is closed.
func Connect(conn io.ReadWriteCloser, peer identity.PeerIdentity, opts *Options) (*Session, error) {
	s := newSession(conn, handshake.RoleClient, opts)
	engine := handshake.NewClient(s.framer, peer)
	return s.establish(engine)
}

// Accept establishes a session as the responding server. keys is the
// long-term signing key pair the server proves possession of. On error the
// connection is closed.
func Accept(conn io.ReadWriteCloser, keys *identity.KeyPair, opts *Options) (*Session, error) {
	s := newSession(conn, handshake.RoleServer, opts)
	engine := handshake.NewServer(s.framer, keys)
	return s.establish(engine)
}

func newSession(conn io.ReadWriteCloser, role handshake.Role, opts *Options) *Session {
	s := &Session{
		id:      uuid.NewString(),
		role:    role,
		conn:    conn,
		framer:  wire.NewFramer(conn),
		logger:  opts.logger(),
		sendNeg: lenlimit.NewNegotiator(nil),
		recvNeg: lenlimit.NewNegotiator(opts.policy()),
	}
	s.framer.SetLogger(s.logger, s.id)
	return s
}

func (s *Session) establish(engine *handshake.Engine) (*Session, error) {
	engine.SetLogger(s.logger, s.id)

	secrets, err := engine.Perform()
	if err != nil {
		s.conn.Close()
		return nil, err
	}
	s.secrets = secrets

	send, recv := secrets.Client(), secrets.Server()
	if s.role == handshake.RoleServer {
		send, recv = recv, send
	}
	channel, err := record.NewChannel(send, recv, s.sendNeg, s.recvNeg)
	if err != nil {
		secrets.Wipe()
		s.conn.Close()
		return nil, err
	}
	s.channel = channel

	s.logState("", "ESTABLISHED", "handshake complete")
	return s, nil
}

// ID returns the session's UUID, shared across all its log events.
func (s *Session) ID() string {
	return s.id
}

// SendLimit returns the payload limit in force for the send direction.
func (s *Session) SendLimit() int {
	return s.sendNeg.Limit()
}

// RecvLimit returns the payload limit in force for the receive direction.
func (s *Session) RecvLimit() int {
	return s.recvNeg.Limit()
}

// Send seals a payload and writes it as a secure envelope. Safe for
// concurrent use.
func (s *Session) Send(payload []byte) error {
	if err := s.failed(); err != nil {
		return err
	}

	msg, err := s.channel.Seal(payload)
	if err != nil {
		if errors.Is(err, record.ErrPayloadTooLarge) {
			// Oversized payloads are a caller error, not a channel fault.
			return err
		}
		return s.fatal(err, "seal")
	}
	if err := s.framer.WriteMessage(msg); err != nil {
		return s.fatal(err, "send record")
	}
	return nil
}

// Receive blocks until the next application payload arrives. Control
// messages are handled internally and do not surface. Only one goroutine
// may call Receive at a time.
func (s *Session) Receive() ([]byte, error) {
	for {
		if err := s.failed(); err != nil {
			return nil, err
		}

		msg, err := s.framer.ReadMessage()
		if err != nil {
			if err == io.EOF {
				return nil, s.fatal(ErrClosedByPeer, "stream ended")
			}
			return nil, s.fatal(err, "read envelope")
		}

		switch msg.Type {
		case wire.TypeSecure:
			plaintext, err := s.channel.Open(msg)
			if err != nil {
				return nil, s.fatal(err, "open record")
			}
			return plaintext, nil

		case wire.TypeAdjustLenLimitRequest:
			if err := s.handleAdjustRequest(msg); err != nil {
				return nil, s.fatal(err, "handle adjustment request")
			}

		case wire.TypeAdjustLenLimitResponse:
			if err := s.handleAdjustResponse(msg); err != nil {
				return nil, s.fatal(err, "handle adjustment response")
			}

		case wire.TypeDisconnect:
			return nil, s.fatal(ErrClosedByPeer, "peer disconnect")

		default:
			// Hellos and downgrade attempts are never valid once the
			// session is established.
			return nil, s.fatal(
				fmt.Errorf("%w: unexpected %s", ErrProtocolViolation, msg.Type),
				"dispatch")
		}
	}
}

// RequestSendLimit asks the peer to change the limit for this endpoint's
// send direction. The request completes asynchronously: the new limit takes
// effect once the peer's response is dispatched by Receive, observable via
// SendLimit. Only one adjustment may be in flight per direction.
func (s *Session) RequestSendLimit(newLimit int) error {
	if err := s.failed(); err != nil {
		return err
	}

	req, err := s.sendNeg.RequestAdjustment(newLimit)
	if err != nil {
		return err
	}
	msg, err := wire.EncodeAdjustLenLimitRequest(req)
	if err != nil {
		return s.fatal(err, "encode adjustment request")
	}
	if err := s.framer.WriteMessage(msg); err != nil {
		return s.fatal(err, "send adjustment request")
	}

	s.logger.Log(log.Event{
		Timestamp: time.Now(),
		SessionID: s.id,
		Direction: log.DirectionOut,
		Layer:     log.LayerNegotiation,
		Category:  log.CategoryMessage,
		Role:      log.Role(s.role),
		Negotiation: &log.NegotiationEvent{
			RequestedLimit: req.Limit,
		},
	})
	return nil
}

// handleAdjustRequest answers a peer request for the receive direction. The
// new limit is committed strictly after the response is on the wire.
func (s *Session) handleAdjustRequest(msg *wire.Message) error {
	req, err := wire.DecodeAdjustLenLimitRequest(msg)
	if err != nil {
		return err
	}

	resp, pending := s.recvNeg.HandleRequest(req)
	respMsg, err := wire.EncodeAdjustLenLimitResponse(resp)
	if err != nil {
		return err
	}
	if err := s.framer.WriteMessage(respMsg); err != nil {
		return err
	}

	applied := s.recvNeg.Limit()
	if pending {
		applied = s.recvNeg.CommitResponse()
	}

	accepted := resp.Accepted
	s.logger.Log(log.Event{
		Timestamp: time.Now(),
		SessionID: s.id,
		Direction: log.DirectionIn,
		Layer:     log.LayerNegotiation,
		Category:  log.CategoryMessage,
		Role:      log.Role(s.role),
		Negotiation: &log.NegotiationEvent{
			RequestedLimit: req.Limit,
			Accepted:       &accepted,
			AppliedLimit:   uint32(applied),
		},
	})
	return nil
}

// handleAdjustResponse completes a locally initiated adjustment.
func (s *Session) handleAdjustResponse(msg *wire.Message) error {
	resp, err := wire.DecodeAdjustLenLimitResponse(msg)
	if err != nil {
		return err
	}

	applied, err := s.sendNeg.HandleResponse(resp)
	if err != nil {
		return err
	}

	accepted := resp.Accepted
	s.logger.Log(log.Event{
		Timestamp: time.Now(),
		SessionID: s.id,
		Direction: log.DirectionIn,
		Layer:     log.LayerNegotiation,
		Category:  log.CategoryMessage,
		Role:      log.Role(s.role),
		Negotiation: &log.NegotiationEvent{
			RequestedLimit: resp.Limit,
			Accepted:       &accepted,
			AppliedLimit:   uint32(applied),
		},
	})
	return nil
}

// Close tears the session down: a best-effort Disconnect to the peer, key
// material wiped, connection closed. Safe to call multiple times.
func (s *Session) Close() error {
	s.mu.Lock()
	alreadyDead := s.fatalErr != nil
	if !alreadyDead {
		s.fatalErr = ErrSessionClosed
	}
	s.mu.Unlock()

	// Announce the close only on a healthy session; after a fatal error
	// the peer may be gone or the channel untrustworthy.
	return s.teardown(!alreadyDead, "local close")
}

// closeNotifyTimeout bounds the best-effort Disconnect write during Close.
// A peer that stopped reading must not stall the local teardown.
const closeNotifyTimeout = 250 * time.Millisecond

// teardown wipes key material and closes the connection exactly once.
func (s *Session) teardown(sendDisconnect bool, reason string) error {
	var closeErr error
	s.closeOnce.Do(func() {
		if sendDisconnect {
			s.notifyDisconnect()
		}
		s.secrets.Wipe()
		closeErr = s.conn.Close()
		s.logState("ESTABLISHED", "CLOSED", reason)
	})
	return closeErr
}

// notifyDisconnect writes the Disconnect envelope best effort. The write is
// bounded by closeNotifyTimeout so teardown always proceeds to the key wipe
// and connection close; an unbounded write could block forever against a
// peer with full buffers and no reader.
func (s *Session) notifyDisconnect() {
	type writeDeadliner interface {
		SetWriteDeadline(time.Time) error
	}
	if d, ok := s.conn.(writeDeadliner); ok {
		if d.SetWriteDeadline(time.Now().Add(closeNotifyTimeout)) == nil {
			_ = s.framer.WriteMessage(wire.NewDisconnect())
			return
		}
	}

	// No deadline support: write concurrently and abandon the attempt on
	// timeout. The conn close that follows unblocks the stalled writer.
	done := make(chan struct{})
	go func() {
		_ = s.framer.WriteMessage(wire.NewDisconnect())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(closeNotifyTimeout):
	}
}

// failed returns the latched fatal error, if any.
func (s *Session) failed() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fatalErr
}

// fatal latches the session's first fatal error, logs it and tears the
// session down. Returns the error that is now in force.
func (s *Session) fatal(err error, context string) error {
	s.mu.Lock()
	if s.fatalErr == nil {
		s.fatalErr = err
	}
	latched := s.fatalErr
	s.mu.Unlock()

	s.logger.Log(log.Event{
		Timestamp: time.Now(),
		SessionID: s.id,
		Layer:     log.LayerSession,
		Category:  log.CategoryError,
		Role:      log.Role(s.role),
		Error: &log.ErrorEventData{
			Layer:   log.LayerSession,
			Message: latched.Error(),
			Context: context,
		},
	})

	s.teardown(false, "fatal: "+latched.Error())
	return latched
}

// logState records a session lifecycle transition.
func (s *Session) logState(oldState, newState, reason string) {
	s.logger.Log(log.Event{
		Timestamp: time.Now(),
		SessionID: s.id,
		Layer:     log.LayerSession,
		Category:  log.CategoryState,
		Role:      log.Role(s.role),
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntitySession,
			OldState: oldState,
			NewState: newState,
			Reason:   reason,
		},
	})
}

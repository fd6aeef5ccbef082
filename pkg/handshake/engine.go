package handshake

import (
	"errors"
	"fmt"
	"time"

	"github.com/hermit-proto/hermit-go/pkg/crypto"
	"github.com/hermit-proto/hermit-go/pkg/identity"
	"github.com/hermit-proto/hermit-go/pkg/log"
	"github.com/hermit-proto/hermit-go/pkg/wire"
)

// Handshake errors.
var (
	// ErrOutOfOrder indicates Perform was called on an engine that already
	// ran, or the peer sent a message the current state does not expect.
	ErrOutOfOrder = errors.New("handshake message out of order")

	// ErrPeerIdentityMismatch indicates the server presented a signing key
	// different from the pinned one.
	ErrPeerIdentityMismatch = errors.New("peer identity mismatch")

	// ErrBadSignature indicates the transcript signature did not verify.
	ErrBadSignature = errors.New("bad transcript signature")

	// ErrPeerDisconnected indicates the peer sent a Disconnect during the
	// handshake.
	ErrPeerDisconnected = errors.New("peer disconnected during handshake")
)

// transcriptPrefix domain-separates the handshake signature from any other
// use of the server's long-term key.
var transcriptPrefix = []byte("hermit handshake v1")

// transcript assembles the byte string the server signs: the prefix, then
// each peer's nonce and ephemeral public key in initiation order.
func transcript(clientNonce, serverNonce []byte, clientEph, serverEph []byte) []byte {
	t := make([]byte, 0, len(transcriptPrefix)+2*crypto.HandshakeNonceSize+2*crypto.PublicKeySize)
	t = append(t, transcriptPrefix...)
	t = append(t, clientNonce...)
	t = append(t, clientEph...)
	t = append(t, serverNonce...)
	t = append(t, serverEph...)
	return t
}

// Engine drives one handshake attempt over a framer. An engine is single
// use and not safe for concurrent use; run Perform exactly once.
type Engine struct {
	framer *wire.Framer
	role   Role
	state  State

	// Client side: the key the server must prove possession of.
	peer identity.PeerIdentity

	// Server side: the key pair used to sign the transcript.
	keys *identity.KeyPair

	logger    log.Logger
	sessionID string
}

// NewClient creates a handshake engine for the initiating side. peer is the
// pinned long-term key the server must present and prove.
func NewClient(framer *wire.Framer, peer identity.PeerIdentity) *Engine {
	return &Engine{
		framer: framer,
		role:   RoleClient,
		peer:   peer,
		logger: log.NoopLogger{},
	}
}

// NewServer creates a handshake engine for the responding side. keys is the
// server's long-term signing key pair.
func NewServer(framer *wire.Framer, keys *identity.KeyPair) *Engine {
	return &Engine{
		framer: framer,
		role:   RoleServer,
		keys:   keys,
		logger: log.NoopLogger{},
	}
}

// SetLogger configures protocol event logging for this engine.
// Pass nil to disable logging.
func (e *Engine) SetLogger(logger log.Logger, sessionID string) {
	if logger == nil {
		logger = log.NoopLogger{}
	}
	e.logger = logger
	e.sessionID = sessionID
}

// State returns the engine's current state.
func (e *Engine) State() State {
	return e.state
}

// Perform runs the handshake to completion and returns the derived session
// secrets. The caller owns the secrets and must wipe them on teardown. On
// any error the engine is in FAILED and must be discarded.
func (e *Engine) Perform() (*crypto.SessionSecrets, error) {
	if e.state != StateIdle {
		return nil, fmt.Errorf("%w: engine in state %s", ErrOutOfOrder, e.state)
	}

	var secrets *crypto.SessionSecrets
	var err error
	switch e.role {
	case RoleClient:
		secrets, err = e.performClient()
	case RoleServer:
		secrets, err = e.performServer()
	default:
		err = fmt.Errorf("unknown handshake role %d", e.role)
	}

	if err != nil {
		e.fail(err)
		return nil, err
	}
	return secrets, nil
}

func (e *Engine) performClient() (*crypto.SessionSecrets, error) {
	clientNonce, err := crypto.GenerateHandshakeNonce()
	if err != nil {
		return nil, err
	}
	eph, err := crypto.GenerateEphemeralKeyPair()
	if err != nil {
		return nil, err
	}
	defer eph.Wipe()

	helloMsg, err := wire.EncodeClientHello(&wire.ClientHello{
		Nonce:        clientNonce[:],
		EphemeralKey: eph.Public[:],
	})
	if err != nil {
		return nil, err
	}
	if err := e.framer.WriteMessage(helloMsg); err != nil {
		return nil, fmt.Errorf("failed to send client hello: %w", err)
	}
	e.setState(StateHelloSent, "client hello sent")

	reply, err := e.framer.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("failed to read server hello: %w", err)
	}
	if reply.Type == wire.TypeDisconnect {
		return nil, ErrPeerDisconnected
	}
	serverHello, err := wire.DecodeServerHello(reply)
	if err != nil {
		if errors.Is(err, wire.ErrTypeMismatch) {
			return nil, fmt.Errorf("%w: expected server hello, got %s", ErrOutOfOrder, reply.Type)
		}
		return nil, err
	}
	e.setState(StateHelloReceived, "server hello received")

	var serverEph [crypto.PublicKeySize]byte
	copy(serverEph[:], serverHello.EphemeralKey)
	shared, err := eph.SharedSecret(serverEph)
	if err != nil {
		return nil, err
	}
	defer crypto.Wipe(shared)
	e.setState(StateKeyAgreed, "shared secret computed")

	if !e.peer.Matches(serverHello.SigningKey) {
		return nil, ErrPeerIdentityMismatch
	}
	signed := transcript(clientNonce[:], serverHello.Nonce, eph.Public[:], serverHello.EphemeralKey)
	if !e.peer.Verify(signed, serverHello.Signature) {
		return nil, ErrBadSignature
	}
	e.setState(StatePeerVerified, "server identity verified")

	var serverNonce [crypto.HandshakeNonceSize]byte
	copy(serverNonce[:], serverHello.Nonce)
	secrets, err := crypto.DeriveSessionSecrets(shared, clientNonce, serverNonce)
	if err != nil {
		return nil, err
	}
	e.setState(StateEstablished, "session secrets derived")

	return secrets, nil
}

func (e *Engine) performServer() (*crypto.SessionSecrets, error) {
	first, err := e.framer.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("failed to read client hello: %w", err)
	}
	if first.Type == wire.TypeDisconnect {
		return nil, ErrPeerDisconnected
	}
	clientHello, err := wire.DecodeClientHello(first)
	if err != nil {
		if errors.Is(err, wire.ErrTypeMismatch) {
			return nil, fmt.Errorf("%w: expected client hello, got %s", ErrOutOfOrder, first.Type)
		}
		return nil, err
	}
	e.setState(StateHelloReceived, "client hello received")

	serverNonce, err := crypto.GenerateHandshakeNonce()
	if err != nil {
		return nil, err
	}
	eph, err := crypto.GenerateEphemeralKeyPair()
	if err != nil {
		return nil, err
	}
	defer eph.Wipe()

	signed := transcript(clientHello.Nonce, serverNonce[:], clientHello.EphemeralKey, eph.Public[:])
	helloMsg, err := wire.EncodeServerHello(&wire.ServerHello{
		Nonce:        serverNonce[:],
		EphemeralKey: eph.Public[:],
		SigningKey:   e.keys.Public(),
		Signature:    e.keys.Sign(signed),
	})
	if err != nil {
		return nil, err
	}
	if err := e.framer.WriteMessage(helloMsg); err != nil {
		return nil, fmt.Errorf("failed to send server hello: %w", err)
	}
	e.setState(StateHelloSent, "server hello sent")

	var clientEph [crypto.PublicKeySize]byte
	copy(clientEph[:], clientHello.EphemeralKey)
	shared, err := eph.SharedSecret(clientEph)
	if err != nil {
		return nil, err
	}
	defer crypto.Wipe(shared)
	e.setState(StateKeyAgreed, "shared secret computed")

	// The client proves nothing during the handshake; its authenticity is
	// implied by its ability to speak on the derived keys.
	e.setState(StatePeerVerified, "no client proof required")

	var clientNonce [crypto.HandshakeNonceSize]byte
	copy(clientNonce[:], clientHello.Nonce)
	secrets, err := crypto.DeriveSessionSecrets(shared, clientNonce, serverNonce)
	if err != nil {
		return nil, err
	}
	e.setState(StateEstablished, "session secrets derived")

	return secrets, nil
}

// setState transitions the engine and logs the change.
func (e *Engine) setState(next State, reason string) {
	old := e.state
	e.state = next
	e.logger.Log(log.Event{
		Timestamp: time.Now(),
		SessionID: e.sessionID,
		Layer:     log.LayerHandshake,
		Category:  log.CategoryState,
		Role:      log.Role(e.role),
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityHandshake,
			OldState: old.String(),
			NewState: next.String(),
			Reason:   reason,
		},
	})
}

// fail drops the engine into the terminal FAILED state and logs the error.
func (e *Engine) fail(err error) {
	e.setState(StateFailed, err.Error())
	e.logger.Log(log.Event{
		Timestamp: time.Now(),
		SessionID: e.sessionID,
		Layer:     log.LayerHandshake,
		Category:  log.CategoryError,
		Role:      log.Role(e.role),
		Error: &log.ErrorEventData{
			Layer:   log.LayerHandshake,
			Message: err.Error(),
			Context: "handshake",
		},
	})
}

package hermit_test

import (
	"bytes"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hermit-proto/hermit-go/pkg/identity"
	"github.com/hermit-proto/hermit-go/pkg/lenlimit"
	"github.com/hermit-proto/hermit-go/pkg/log"
	"github.com/hermit-proto/hermit-go/pkg/session"
	"github.com/hermit-proto/hermit-go/pkg/wire"
)

// startEchoServer runs a single-connection echo server on a loopback TCP
// listener and returns its address and pinned identity.
func startEchoServer(t *testing.T, opts *session.Options) (addr string, pinned identity.PeerIdentity) {
	t.Helper()

	keys, err := identity.Generate()
	require.NoError(t, err)
	pinned, err = identity.NewPeerIdentity(keys.Public())
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		sess, err := session.Accept(conn, keys, opts)
		if err != nil {
			return
		}
		defer sess.Close()

		for {
			payload, err := sess.Receive()
			if err != nil {
				return
			}
			for len(payload) > 0 {
				chunk := payload
				if limit := sess.SendLimit(); len(chunk) > limit {
					chunk = chunk[:limit]
				}
				if sess.Send(chunk) != nil {
					return
				}
				payload = payload[len(chunk):]
			}
		}
	}()

	return ln.Addr().String(), pinned
}

func dial(t *testing.T, addr string, pinned identity.PeerIdentity, opts *session.Options) *session.Session {
	t.Helper()

	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	require.NoError(t, err)

	sess, err := session.Connect(conn, pinned, opts)
	require.NoError(t, err)
	t.Cleanup(func() { sess.Close() })
	return sess
}

func TestEndToEndEcho(t *testing.T) {
	addr, pinned := startEchoServer(t, nil)
	sess := dial(t, addr, pinned, nil)

	for _, payload := range [][]byte{
		[]byte("first message"),
		[]byte("second message"),
		bytes.Repeat([]byte{0x5a}, wire.MinLenLimit),
	} {
		require.NoError(t, sess.Send(payload))
		got, err := sess.Receive()
		require.NoError(t, err)
		assert.Equal(t, payload, got)
	}
}

func TestEndToEndLimitRaise(t *testing.T) {
	capture := &eventCapture{}
	addr, pinned := startEchoServer(t, nil)
	sess := dial(t, addr, pinned, &session.Options{Logger: capture})

	require.NoError(t, sess.RequestSendLimit(4096))

	// A small probe forces the client to dispatch the pending response
	// before its echo comes back.
	require.NoError(t, sess.Send([]byte("probe")))
	got, err := sess.Receive()
	require.NoError(t, err)
	assert.Equal(t, []byte("probe"), got)
	assert.Equal(t, 4096, sess.SendLimit())

	// The server echoes the enlarged payload chunked to its own send
	// limit, which was never raised.
	big := bytes.Repeat([]byte{0xc3}, 4096)
	require.NoError(t, sess.Send(big))

	var echoed []byte
	for len(echoed) < len(big) {
		chunk, err := sess.Receive()
		require.NoError(t, err)
		assert.LessOrEqual(t, len(chunk), wire.MinLenLimit)
		echoed = append(echoed, chunk...)
	}
	assert.Equal(t, big, echoed)

	// The capture saw the handshake, the negotiation, and the frames.
	assert.True(t, capture.sawLayer(log.LayerHandshake), "no handshake events captured")
	assert.True(t, capture.sawLayer(log.LayerNegotiation), "no negotiation events captured")
	assert.True(t, capture.sawLayer(log.LayerFraming), "no framing events captured")
}

func TestEndToEndPolicyCap(t *testing.T) {
	addr, pinned := startEchoServer(t, &session.Options{Policy: lenlimit.AcceptUpTo(1024)})
	sess := dial(t, addr, pinned, nil)

	require.NoError(t, sess.RequestSendLimit(2048))
	require.NoError(t, sess.Send([]byte("probe")))
	_, err := sess.Receive()
	require.NoError(t, err)

	assert.Equal(t, wire.MinLenLimit, sess.SendLimit())

	require.NoError(t, sess.RequestSendLimit(1024))
	require.NoError(t, sess.Send([]byte("probe")))
	_, err = sess.Receive()
	require.NoError(t, err)

	assert.Equal(t, 1024, sess.SendLimit())
}

func TestEndToEndWrongPinnedKey(t *testing.T) {
	addr, _ := startEchoServer(t, nil)

	decoy, err := identity.Generate()
	require.NoError(t, err)
	wrongPin, err := identity.NewPeerIdentity(decoy.Public())
	require.NoError(t, err)

	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	require.NoError(t, err)
	defer conn.Close()

	_, err = session.Connect(conn, wrongPin, nil)
	require.Error(t, err)
}

// eventCapture is a threadsafe Logger recording which layers emitted events.
type eventCapture struct {
	mu     sync.Mutex
	layers map[log.Layer]bool
}

func (c *eventCapture) Log(event log.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.layers == nil {
		c.layers = make(map[log.Layer]bool)
	}
	c.layers[event.Layer] = true
}

func (c *eventCapture) sawLayer(layer log.Layer) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.layers[layer]
}

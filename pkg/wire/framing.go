package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/hermit-proto/hermit-go/pkg/crypto"
	"github.com/hermit-proto/hermit-go/pkg/log"
)

// maxSecurePayload is the largest secure envelope payload: the maximum
// negotiable plaintext plus the AEAD tag.
const maxSecurePayload = MaxLenLimit + crypto.AEADTagSize

// MaxLogFrameSize is the maximum payload size included in log events.
// Larger payloads are truncated in the event to bound memory usage.
const MaxLogFrameSize = 4096

// Framing errors.
var (
	// ErrPayloadTooLarge indicates a payload exceeding the bound for its
	// envelope type.
	ErrPayloadTooLarge = errors.New("payload too large")

	// ErrFrameTruncated indicates the stream ended mid-envelope.
	ErrFrameTruncated = errors.New("frame truncated")

	// ErrUnknownType indicates an envelope with an undefined type tag.
	ErrUnknownType = errors.New("unknown envelope type")

	// ErrUnknownVersion indicates an envelope with an unsupported version.
	ErrUnknownVersion = errors.New("unknown protocol version")
)

// maxPayload returns the payload bound for an envelope type. Plain messages
// are bounded by MinLenLimit unconditionally; negotiated limits never apply
// to them.
func maxPayload(t Type) int {
	if t.IsPlain() {
		return MinLenLimit
	}
	return maxSecurePayload
}

// Framer reads and writes envelopes over an ordered, reliable byte stream.
//
// Writes are serialized by an internal mutex and may be issued from multiple
// goroutines. Reads are not internally serialized; the caller must ensure a
// single reader at a time.
type Framer struct {
	r io.Reader
	w io.Writer

	wmu       sync.Mutex
	headerBuf [HeaderSize]byte

	logger    log.Logger
	sessionID string
}

// NewFramer creates a framer over a full-duplex stream.
func NewFramer(rw io.ReadWriter) *Framer {
	return &Framer{r: rw, w: rw, logger: log.NoopLogger{}}
}

// SetLogger configures protocol event logging for this framer.
// Pass nil to disable logging.
func (f *Framer) SetLogger(logger log.Logger, sessionID string) {
	if logger == nil {
		logger = log.NoopLogger{}
	}
	f.logger = logger
	f.sessionID = sessionID
}

// WriteMessage writes one envelope. Thread-safe.
func (f *Framer) WriteMessage(msg *Message) error {
	if !msg.Type.Valid() {
		return fmt.Errorf("%w: 0x%02x", ErrUnknownType, uint8(msg.Type))
	}
	if len(msg.Payload) > maxPayload(msg.Type) {
		return fmt.Errorf("%w: %s payload %d > %d", ErrPayloadTooLarge,
			msg.Type, len(msg.Payload), maxPayload(msg.Type))
	}

	var header [HeaderSize]byte
	header[0] = uint8(msg.Type)
	header[1] = msg.Version
	binary.BigEndian.PutUint32(header[2:], uint32(len(msg.Payload)))

	f.wmu.Lock()
	defer f.wmu.Unlock()

	if _, err := f.w.Write(header[:]); err != nil {
		return fmt.Errorf("failed to write envelope header: %w", err)
	}
	if len(msg.Payload) > 0 {
		if _, err := f.w.Write(msg.Payload); err != nil {
			return fmt.Errorf("failed to write envelope payload: %w", err)
		}
	}

	f.logger.Log(f.frameEvent(msg, log.DirectionOut))
	return nil
}

// ReadMessage reads one envelope. Returns io.EOF only on a clean stream end
// before any header byte.
func (f *Framer) ReadMessage() (*Message, error) {
	if _, err := io.ReadFull(f.r, f.headerBuf[:]); err != nil {
		if err == io.EOF {
			return nil, err
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrFrameTruncated
		}
		return nil, fmt.Errorf("failed to read envelope header: %w", err)
	}

	msg := &Message{
		Type:    Type(f.headerBuf[0]),
		Version: f.headerBuf[1],
	}
	length := binary.BigEndian.Uint32(f.headerBuf[2:])

	if !msg.Type.Valid() {
		return nil, fmt.Errorf("%w: 0x%02x", ErrUnknownType, f.headerBuf[0])
	}
	if msg.Version != Version1 {
		return nil, fmt.Errorf("%w: 0x%02x", ErrUnknownVersion, msg.Version)
	}
	if int64(length) > int64(maxPayload(msg.Type)) {
		return nil, fmt.Errorf("%w: %s payload %d > %d", ErrPayloadTooLarge,
			msg.Type, length, maxPayload(msg.Type))
	}

	if length > 0 {
		msg.Payload = make([]byte, length)
		if _, err := io.ReadFull(f.r, msg.Payload); err != nil {
			if err == io.EOF || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, ErrFrameTruncated
			}
			return nil, fmt.Errorf("failed to read envelope payload: %w", err)
		}
	}

	f.logger.Log(f.frameEvent(msg, log.DirectionIn))
	return msg, nil
}

// frameEvent builds a framing-layer log event for an envelope.
func (f *Framer) frameEvent(msg *Message, direction log.Direction) log.Event {
	data := msg.Payload
	truncated := false
	if len(data) > MaxLogFrameSize {
		data = data[:MaxLogFrameSize]
		truncated = true
	}

	return log.Event{
		Timestamp: time.Now(),
		SessionID: f.sessionID,
		Direction: direction,
		Layer:     log.LayerFraming,
		Category:  log.CategoryMessage,
		Frame: &log.FrameEvent{
			Type:      msg.Type.String(),
			Size:      HeaderSize + len(msg.Payload),
			Data:      data,
			Truncated: truncated,
		},
	}
}

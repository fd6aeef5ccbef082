package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"

	"github.com/hermit-proto/hermit-go/pkg/log"
)

// duplex is an in-memory ReadWriter for framer tests.
type duplex struct {
	bytes.Buffer
}

func TestFramerRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		msg  *Message
	}{
		{"empty disconnect", NewDisconnect()},
		{"secure record", NewSecure(bytes.Repeat([]byte{0xab}, 128))},
		{"plain with payload", &Message{Type: TypeClientHello, Version: Version1, Payload: []byte{0x01, 0x02}}},
		{"plain at bound", &Message{Type: TypeServerHello, Version: Version1, Payload: bytes.Repeat([]byte{0x03}, MinLenLimit)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d duplex
			f := NewFramer(&d)

			if err := f.WriteMessage(tt.msg); err != nil {
				t.Fatalf("WriteMessage failed: %v", err)
			}
			got, err := f.ReadMessage()
			if err != nil {
				t.Fatalf("ReadMessage failed: %v", err)
			}

			if got.Type != tt.msg.Type || got.Version != tt.msg.Version {
				t.Errorf("header = %s v%d, want %s v%d", got.Type, got.Version, tt.msg.Type, tt.msg.Version)
			}
			if !bytes.Equal(got.Payload, tt.msg.Payload) {
				t.Error("payload did not round trip")
			}
		})
	}
}

func TestFramerHeaderLayout(t *testing.T) {
	var d duplex
	f := NewFramer(&d)

	payload := []byte{0xde, 0xad, 0xbe, 0xef}
	if err := f.WriteMessage(NewSecure(payload)); err != nil {
		t.Fatalf("WriteMessage failed: %v", err)
	}

	raw := d.Bytes()
	if len(raw) != HeaderSize+len(payload) {
		t.Fatalf("frame is %d bytes, want %d", len(raw), HeaderSize+len(payload))
	}
	if raw[0] != uint8(TypeSecure) || raw[1] != Version1 {
		t.Errorf("header prefix = % x, want type 0x00 version 0x01", raw[:2])
	}
	if got := binary.BigEndian.Uint32(raw[2:HeaderSize]); got != uint32(len(payload)) {
		t.Errorf("length field = %d, want %d", got, len(payload))
	}
}

func TestWriteRejectsOversizedPlain(t *testing.T) {
	var d duplex
	f := NewFramer(&d)

	msg := &Message{
		Type:    TypeClientHello,
		Version: Version1,
		Payload: bytes.Repeat([]byte{0x01}, MinLenLimit+1),
	}
	if err := f.WriteMessage(msg); !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("WriteMessage = %v, want ErrPayloadTooLarge", err)
	}
	if d.Len() != 0 {
		t.Error("rejected message left bytes on the wire")
	}
}

func TestWriteRejectsOversizedSecure(t *testing.T) {
	var d duplex
	f := NewFramer(&d)

	msg := NewSecure(bytes.Repeat([]byte{0x01}, maxSecurePayload+1))
	if err := f.WriteMessage(msg); !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("WriteMessage = %v, want ErrPayloadTooLarge", err)
	}
}

func TestWriteRejectsUnknownType(t *testing.T) {
	var d duplex
	f := NewFramer(&d)

	msg := &Message{Type: Type(0x7f), Version: Version1}
	if err := f.WriteMessage(msg); !errors.Is(err, ErrUnknownType) {
		t.Fatalf("WriteMessage = %v, want ErrUnknownType", err)
	}
}

func TestReadRejectsUnknownType(t *testing.T) {
	var d duplex
	d.Write([]byte{0x7f, 0x01, 0x00, 0x00, 0x00, 0x00})

	f := NewFramer(&d)
	if _, err := f.ReadMessage(); !errors.Is(err, ErrUnknownType) {
		t.Fatalf("ReadMessage = %v, want ErrUnknownType", err)
	}
}

func TestReadRejectsUnknownVersion(t *testing.T) {
	var d duplex
	d.Write([]byte{0x03, 0x02, 0x00, 0x00, 0x00, 0x00})

	f := NewFramer(&d)
	if _, err := f.ReadMessage(); !errors.Is(err, ErrUnknownVersion) {
		t.Fatalf("ReadMessage = %v, want ErrUnknownVersion", err)
	}
}

func TestReadRejectsOversizedDeclaredLength(t *testing.T) {
	// A plain header declaring a payload beyond the unconditional bound
	// must be rejected before any payload read.
	var d duplex
	header := []byte{uint8(TypeDisconnect), Version1, 0x00, 0x00, 0x00, 0x00}
	binary.BigEndian.PutUint32(header[2:], MinLenLimit+1)
	d.Write(header)

	f := NewFramer(&d)
	if _, err := f.ReadMessage(); !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("ReadMessage = %v, want ErrPayloadTooLarge", err)
	}
}

func TestReadCleanEOF(t *testing.T) {
	var d duplex
	f := NewFramer(&d)
	if _, err := f.ReadMessage(); err != io.EOF {
		t.Fatalf("ReadMessage on empty stream = %v, want io.EOF", err)
	}
}

func TestReadTruncatedHeader(t *testing.T) {
	var d duplex
	d.Write([]byte{0x00, 0x01, 0x00})

	f := NewFramer(&d)
	if _, err := f.ReadMessage(); !errors.Is(err, ErrFrameTruncated) {
		t.Fatalf("ReadMessage = %v, want ErrFrameTruncated", err)
	}
}

func TestReadTruncatedPayload(t *testing.T) {
	var d duplex
	header := []byte{uint8(TypeSecure), Version1, 0x00, 0x00, 0x00, 0x10}
	d.Write(header)
	d.Write([]byte{0x01, 0x02, 0x03})

	f := NewFramer(&d)
	if _, err := f.ReadMessage(); !errors.Is(err, ErrFrameTruncated) {
		t.Fatalf("ReadMessage = %v, want ErrFrameTruncated", err)
	}
}

// captureLogger records events for assertions.
type captureLogger struct {
	events []log.Event
}

func (c *captureLogger) Log(event log.Event) {
	c.events = append(c.events, event)
}

func TestFramerLogsEvents(t *testing.T) {
	var d duplex
	f := NewFramer(&d)

	capture := &captureLogger{}
	f.SetLogger(capture, "test-session")

	if err := f.WriteMessage(NewSecure([]byte{0x01, 0x02})); err != nil {
		t.Fatalf("WriteMessage failed: %v", err)
	}
	if _, err := f.ReadMessage(); err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}

	if len(capture.events) != 2 {
		t.Fatalf("captured %d events, want 2", len(capture.events))
	}
	out, in := capture.events[0], capture.events[1]
	if out.Direction != log.DirectionOut || in.Direction != log.DirectionIn {
		t.Errorf("directions = %s/%s, want OUT/IN", out.Direction, in.Direction)
	}
	if out.SessionID != "test-session" {
		t.Errorf("session ID = %q, want test-session", out.SessionID)
	}
	if out.Frame == nil || out.Frame.Type != "SECURE" {
		t.Errorf("frame event = %+v, want SECURE frame", out.Frame)
	}
	if out.Frame.Size != HeaderSize+2 {
		t.Errorf("frame size = %d, want %d", out.Frame.Size, HeaderSize+2)
	}
}

func TestFramerLogTruncatesLargePayloads(t *testing.T) {
	var d duplex
	f := NewFramer(&d)

	capture := &captureLogger{}
	f.SetLogger(capture, "test-session")

	payload := bytes.Repeat([]byte{0x0a}, MaxLogFrameSize+100)
	if err := f.WriteMessage(NewSecure(payload)); err != nil {
		t.Fatalf("WriteMessage failed: %v", err)
	}

	if len(capture.events) != 1 {
		t.Fatalf("captured %d events, want 1", len(capture.events))
	}
	frame := capture.events[0].Frame
	if frame == nil {
		t.Fatal("missing frame event")
	}
	if !frame.Truncated {
		t.Error("frame event not marked truncated")
	}
	if len(frame.Data) != MaxLogFrameSize {
		t.Errorf("logged data is %d bytes, want %d", len(frame.Data), MaxLogFrameSize)
	}
	if frame.Size != HeaderSize+len(payload) {
		t.Errorf("frame size = %d, want full envelope size %d", frame.Size, HeaderSize+len(payload))
	}
}

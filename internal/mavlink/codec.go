package mavlink

import (
	"bytes"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/bluenviron/gomavlib/v3/pkg/dialect"
	"github.com/bluenviron/gomavlib/v3/pkg/dialects/ardupilotmega"
	"github.com/bluenviron/gomavlib/v3/pkg/frame"
	"github.com/bluenviron/gomavlib/v3/pkg/message"
)

// Dialect is the message set used for decoding, encoding and checksum
// verification. ardupilotmega includes common, so ArduPilot streams decode
// in full.
var Dialect = ardupilotmega.Dialect

// Decoder renders raw frames as one-line summaries and verifies frame
// checksums. Describe never fails: frames the codec cannot parse are
// described as such. Safe for concurrent use.
type Decoder struct {
	rw    *dialect.ReadWriter
	known map[uint32]struct{}
}

func NewDecoder() (*Decoder, error) {
	rw := &dialect.ReadWriter{Dialect: Dialect}
	if err := rw.Initialize(); err != nil {
		return nil, fmt.Errorf("initializing dialect: %w", err)
	}
	known := make(map[uint32]struct{}, len(Dialect.Messages))
	for _, m := range Dialect.Messages {
		known[m.GetID()] = struct{}{}
	}
	return &Decoder{rw: rw, known: known}, nil
}

// Known reports whether the dialect defines message id.
func (d *Decoder) Known(id uint32) bool {
	_, ok := d.known[id]
	return ok
}

// Verify implements Verifier. A frame of a known message must carry a
// matching checksum (CRC_EXTRA included) and parse; frames of messages the
// dialect does not define pass unchecked.
func (d *Decoder) Verify(raw []byte) bool {
	id, ok := MessageID(raw)
	if !ok {
		return false
	}
	if !d.Known(id) {
		return true
	}
	_, err := d.Decode(raw)
	return err == nil
}

// Decode parses a single raw frame into a message.
func (d *Decoder) Decode(raw []byte) (message.Message, error) {
	fr := &frame.Reader{
		ByteReader: bytes.NewReader(raw),
		DialectRW:  d.rw,
	}
	if err := fr.Initialize(); err != nil {
		return nil, err
	}
	f, err := fr.Read()
	if err != nil {
		return nil, err
	}
	return f.GetMessage(), nil
}

// Describe returns "NAME {fields}" for raw, or a placeholder when it cannot
// be decoded.
func (d *Decoder) Describe(raw []byte) string {
	msg, err := d.Decode(raw)
	if err != nil {
		return fmt.Sprintf("<undecodable %d bytes: %v>", len(raw), err)
	}
	return Summary(msg)
}

// Summary formats a decoded message.
func Summary(msg message.Message) string {
	if raw, ok := msg.(*message.MessageRaw); ok {
		return fmt.Sprintf("UNKNOWN(%d) %d bytes", raw.ID, len(raw.Payload))
	}
	return fmt.Sprintf("%s %+v", messageName(msg), reflect.Indirect(reflect.ValueOf(msg)).Interface())
}

// messageName turns *common.MessageGlobalPositionInt into GLOBAL_POSITION_INT.
func messageName(msg message.Message) string {
	name := strings.TrimPrefix(reflect.Indirect(reflect.ValueOf(msg)).Type().Name(), "Message")
	var b strings.Builder
	for i, r := range name {
		if i > 0 && r >= 'A' && r <= 'Z' {
			b.WriteByte('_')
		}
		b.WriteRune(r)
	}
	return strings.ToUpper(b.String())
}

// Encoder serializes messages into raw v2 frames. It is safe for concurrent
// use; frames are produced one at a time.
type Encoder struct {
	mu  sync.Mutex
	buf bytes.Buffer
	fw  *frame.Writer
}

// NewEncoder returns an Encoder that stamps frames with the given system id.
func NewEncoder(systemID byte) (*Encoder, error) {
	rw := &dialect.ReadWriter{Dialect: Dialect}
	if err := rw.Initialize(); err != nil {
		return nil, fmt.Errorf("initializing dialect: %w", err)
	}
	e := &Encoder{}
	e.fw = &frame.Writer{
		ByteWriter:  &e.buf,
		DialectRW:   rw,
		OutVersion:  frame.V2,
		OutSystemID: systemID,
	}
	if err := e.fw.Initialize(); err != nil {
		return nil, fmt.Errorf("initializing frame writer: %w", err)
	}
	return e, nil
}

// Encode returns the wire bytes of msg.
func (e *Encoder) Encode(msg message.Message) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.buf.Reset()
	if err := e.fw.WriteMessage(msg); err != nil {
		return nil, fmt.Errorf("encoding %s: %w", messageName(msg), err)
	}
	return bytes.Clone(e.buf.Bytes()), nil
}

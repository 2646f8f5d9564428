// Package capturelog persists captured messages as a versioned, append-only
// binary file. Each record carries its own CRC so an interrupted capture
// leaves a file whose complete records still load.
package capturelog

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Magic opens every capture log file.
var Magic = [8]byte{'M', 'A', 'V', 'T', 'A', 'P', 'E', 0}

const (
	// FormatVersion is the only on-disk layout this package reads and writes.
	FormatVersion = 1

	headerLen = len(Magic) + 1 + 1 + 16 + 8

	// MaxPayloadLen bounds a single record. Anything larger is treated as
	// corruption rather than allocated.
	MaxPayloadLen = 1 << 20
)

// Schema selects whether records carry a timestamp.
type Schema uint8

const (
	// SchemaPayloadOnly stores bare payloads; they load with timestamp 0.
	SchemaPayloadOnly Schema = 0
	// SchemaTimestamped stores a relative millisecond timestamp per record.
	SchemaTimestamped Schema = 1
)

func (s Schema) String() string {
	switch s {
	case SchemaPayloadOnly:
		return "payload-only"
	case SchemaTimestamped:
		return "timestamped"
	default:
		return fmt.Sprintf("schema(%d)", uint8(s))
	}
}

// Record is one captured message.
type Record struct {
	// TimestampMs is milliseconds since the first message of the session.
	TimestampMs int64
	// Payload is the message's raw wire bytes. Loaded payloads are shared
	// between readers and must not be modified.
	Payload []byte
}

// Header describes a capture session.
type Header struct {
	Version   uint8
	Schema    Schema
	SessionID uuid.UUID
	StartedAt time.Time
}

var (
	// ErrOutOfOrder is returned when a record's timestamp is below its
	// predecessor's.
	ErrOutOfOrder = errors.New("capturelog: timestamp out of order")
	// ErrUnsupportedSchema marks a file written by an unknown format version
	// or with an unknown schema.
	ErrUnsupportedSchema = errors.New("capturelog: unsupported schema")
	// ErrClosed is returned by Append after Close.
	ErrClosed = errors.New("capturelog: writer closed")
)

// CorruptLogError reports a capture file that cannot be decoded. It is never
// worth retrying.
type CorruptLogError struct {
	Path   string
	Record int   // index of the offending record, -1 for the header
	Offset int64 // byte offset where the offending record starts
	Reason string
	Err    error
}

func (e *CorruptLogError) Error() string {
	where := "header"
	if e.Record >= 0 {
		where = fmt.Sprintf("record %d at offset %d", e.Record, e.Offset)
	}
	name := e.Path
	if name == "" {
		name = "<stream>"
	}
	if e.Err != nil {
		return fmt.Sprintf("corrupt capture log %s: %s: %s: %v", name, where, e.Reason, e.Err)
	}
	return fmt.Sprintf("corrupt capture log %s: %s: %s", name, where, e.Reason)
}

func (e *CorruptLogError) Unwrap() error {
	return e.Err
}

func encodeHeader(h Header) []byte {
	buf := make([]byte, 0, headerLen)
	buf = append(buf, Magic[:]...)
	buf = append(buf, h.Version, byte(h.Schema))
	buf = append(buf, h.SessionID[:]...)
	return binary.LittleEndian.AppendUint64(buf, uint64(h.StartedAt.UnixMilli()))
}

func parseHeader(buf []byte) (Header, error) {
	if [8]byte(buf[:8]) != Magic {
		return Header{}, errors.New("bad magic")
	}
	h := Header{
		Version: buf[8],
		Schema:  Schema(buf[9]),
	}
	copy(h.SessionID[:], buf[10:26])
	h.StartedAt = time.UnixMilli(int64(binary.LittleEndian.Uint64(buf[26:34]))).UTC()
	return h, nil
}

// Package capturelog reads and writes Mavtape capture logs for external
// tools.
package capturelog

import (
	"io"

	internal "github.com/SmitUplenchwar2687/Mavtape/internal/capturelog"
)

// Record is one captured message.
type Record = internal.Record

// Header describes a capture session.
type Header = internal.Header

// Schema identifies the record layout of a log.
type Schema = internal.Schema

// Log is a loaded, read-only capture.
type Log = internal.Log

// Writer appends records to a capture log.
type Writer = internal.Writer

// Options configures a Writer.
type Options = internal.Options

// CorruptLogError reports a capture file that cannot be decoded.
type CorruptLogError = internal.CorruptLogError

const (
	SchemaPayloadOnly = internal.SchemaPayloadOnly
	SchemaTimestamped = internal.SchemaTimestamped
)

var (
	ErrOutOfOrder        = internal.ErrOutOfOrder
	ErrUnsupportedSchema = internal.ErrUnsupportedSchema
	ErrClosed            = internal.ErrClosed
)

// Create truncates path and starts a new capture log.
func Create(path string, opts Options) (*Writer, error) {
	return internal.Create(path, opts)
}

// Load reads a whole capture log.
func Load(path string) (*Log, error) {
	return internal.Load(path)
}

// Decode reads a capture log from r.
func Decode(r io.Reader) (*Log, error) {
	return internal.Decode(r)
}

// Save writes records to a new capture log in one pass.
func Save(path string, h Header, records []Record) error {
	return internal.Save(path, h, records)
}

package replay

import (
	"slices"

	"github.com/SmitUplenchwar2687/Mavtape/internal/capturelog"
	"github.com/SmitUplenchwar2687/Mavtape/internal/mavlink"
)

// Filter selects a slice of a capture for replay.
type Filter struct {
	FromMs int64 // include records at or after this timestamp
	ToMs   int64 // include records at or before this timestamp (0 = no limit)
	// MessageIDs keeps only frames with these MAVLink message ids (empty = all).
	MessageIDs []uint32
}

// IsZero reports whether the filter keeps everything.
func (f Filter) IsZero() bool {
	return f.FromMs <= 0 && f.ToMs <= 0 && len(f.MessageIDs) == 0
}

// Match returns true if the record passes the filter.
func (f Filter) Match(r capturelog.Record) bool {
	if r.TimestampMs < f.FromMs {
		return false
	}
	if f.ToMs > 0 && r.TimestampMs > f.ToMs {
		return false
	}
	if len(f.MessageIDs) > 0 {
		id, ok := mavlink.MessageID(r.Payload)
		if !ok || !slices.Contains(f.MessageIDs, id) {
			return false
		}
	}
	return true
}

// Apply returns the matching records with timestamps shifted so the first
// kept record is at 0. The input is not modified.
func (f Filter) Apply(records []capturelog.Record) []capturelog.Record {
	if f.IsZero() {
		return records
	}
	var out []capturelog.Record
	var base int64
	for _, r := range records {
		if !f.Match(r) {
			continue
		}
		if len(out) == 0 {
			base = r.TimestampMs
		}
		out = append(out, capturelog.Record{TimestampMs: r.TimestampMs - base, Payload: r.Payload})
	}
	return out
}

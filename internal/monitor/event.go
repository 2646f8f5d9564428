package monitor

import (
	"time"

	"github.com/SmitUplenchwar2687/Mavtape/internal/endpoint"
	"github.com/SmitUplenchwar2687/Mavtape/internal/mavlink"
	"github.com/SmitUplenchwar2687/Mavtape/internal/recorder"
	"github.com/SmitUplenchwar2687/Mavtape/internal/replay"
)

// Kind tells capture events from replay events.
type Kind string

const (
	KindCapture Kind = "capture"
	KindReplay  Kind = "replay"
)

// Event is the JSON document pushed to every WebSocket client.
type Event struct {
	Kind        Kind          `json:"kind"`
	Endpoint    endpoint.Kind `json:"endpoint"`
	Job         string        `json:"job,omitempty"`
	Index       int64         `json:"index"`
	TimestampMs int64         `json:"timestamp_ms"`
	Size        int           `json:"size"`
	MessageID   uint32        `json:"message_id"`
	Summary     string        `json:"summary,omitempty"`
	Time        time.Time     `json:"time"`
}

// FromCapture converts a recorder event captured from a source of kind src.
func FromCapture(src endpoint.Kind, e recorder.Event) Event {
	id, _ := mavlink.MessageID(e.Payload)
	return Event{
		Kind:        KindCapture,
		Endpoint:    src,
		Index:       int64(e.Count),
		TimestampMs: e.TimestampMs,
		Size:        e.Size,
		MessageID:   id,
		Summary:     e.Summary,
		Time:        e.Time,
	}
}

// FromReplay converts a replay send event.
func FromReplay(e replay.Event) Event {
	return Event{
		Kind:        KindReplay,
		Endpoint:    e.Kind,
		Job:         e.Job,
		Index:       e.Seq + 1,
		TimestampMs: e.TimestampMs,
		Size:        e.Size,
		MessageID:   e.MessageID,
		Time:        e.Time,
	}
}

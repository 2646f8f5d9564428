package recorder

import "time"

// Event describes one captured message. Emitted to OnMessage for live
// monitoring.
type Event struct {
	Count       int       `json:"count"`
	TimestampMs int64     `json:"timestamp_ms"`
	Size        int       `json:"size"`
	Summary     string    `json:"summary"`
	Payload     []byte    `json:"-"`
	Time        time.Time `json:"time"`
}

// Summary reports the outcome of a capture run.
type Summary struct {
	Count           int           `json:"count"`
	LastTimestampMs int64         `json:"last_timestamp_ms"`
	Elapsed         time.Duration `json:"elapsed_ns"`
	// Skipped counts messages dropped while waiting for a heartbeat.
	Skipped int `json:"skipped,omitempty"`
	// StoppedBy is "cancel", "max", "eof" or "error".
	StoppedBy string `json:"stopped_by"`
}

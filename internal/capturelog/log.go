package capturelog

import (
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"time"
)

// Log is a loaded capture. It is read-only and safe to share between
// goroutines without locking.
type Log struct {
	Header Header
	Path   string
	// Truncated is set when the final record was cut short and dropped.
	Truncated bool

	records []Record
}

// NewLog builds an in-memory log, mainly for generated traffic and tests.
func NewLog(h Header, records []Record) *Log {
	out := make([]Record, len(records))
	copy(out, records)
	return &Log{Header: h, records: out}
}

// Records returns the records in capture order. The slice is a copy; the
// payloads are shared.
func (l *Log) Records() []Record {
	out := make([]Record, len(l.records))
	copy(out, l.records)
	return out
}

func (l *Log) Len() int {
	return len(l.records)
}

// Duration is the relative timestamp of the last record.
func (l *Log) Duration() time.Duration {
	if len(l.records) == 0 {
		return 0
	}
	return time.Duration(l.records[len(l.records)-1].TimestampMs) * time.Millisecond
}

type exportedRecord struct {
	Index       int    `json:"index"`
	TimestampMs int64  `json:"timestamp_ms"`
	Size        int    `json:"size"`
	Payload     string `json:"payload_hex"`
}

type exportedLog struct {
	Version   uint8            `json:"version"`
	Schema    string           `json:"schema"`
	SessionID string           `json:"session_id"`
	StartedAt time.Time        `json:"started_at"`
	Truncated bool             `json:"truncated,omitempty"`
	Records   []exportedRecord `json:"records"`
}

// ExportJSON writes the log as indented JSON with hex-encoded payloads.
func (l *Log) ExportJSON(w io.Writer) error {
	out := exportedLog{
		Version:   l.Header.Version,
		Schema:    l.Header.Schema.String(),
		SessionID: l.Header.SessionID.String(),
		StartedAt: l.Header.StartedAt,
		Truncated: l.Truncated,
		Records:   make([]exportedRecord, len(l.records)),
	}
	for i, r := range l.records {
		out.Records[i] = exportedRecord{
			Index:       i,
			TimestampMs: r.TimestampMs,
			Size:        len(r.Payload),
			Payload:     hex.EncodeToString(r.Payload),
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// ExportFile writes the JSON export to path.
func (l *Log) ExportFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return l.ExportJSON(f)
}

// Save writes records to a new capture log at path in one pass.
func Save(path string, h Header, records []Record) error {
	w, err := Create(path, Options{
		Untimed:      h.Schema == SchemaPayloadOnly,
		SessionID:    h.SessionID,
		SyncInterval: time.Hour,
	})
	if err != nil {
		return err
	}
	for _, r := range records {
		if err := w.Append(r); err != nil {
			_ = w.Close()
			return err
		}
	}
	return w.Close()
}

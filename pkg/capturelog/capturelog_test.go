package capturelog

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestCreateAppendLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ext.bin")
	w, err := Create(path, Options{})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	for i, ts := range []int64{0, 40, 90} {
		if err := w.Append(Record{TimestampMs: ts, Payload: []byte{0xFD, byte(i)}}); err != nil {
			t.Fatalf("Append(%d) error = %v", i, err)
		}
	}
	if err := w.Append(Record{TimestampMs: 10, Payload: []byte{0}}); !errors.Is(err, ErrOutOfOrder) {
		t.Errorf("out-of-order Append() error = %v, want ErrOutOfOrder", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	lg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if lg.Len() != 3 || lg.Header.Schema != SchemaTimestamped {
		t.Errorf("loaded %d records, schema %s", lg.Len(), lg.Header.Schema)
	}
}

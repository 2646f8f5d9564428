package capturelog

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/SmitUplenchwar2687/Mavtape/internal/clock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func sampleRecords() []Record {
	return []Record{
		{TimestampMs: 0, Payload: []byte{0xFD, 0x09, 0x00, 0x00}},
		{TimestampMs: 100, Payload: []byte("line\nbreak,comma\"quote")},
		{TimestampMs: 100, Payload: []byte{}},
		{TimestampMs: 250, Payload: append([]byte("MAVTAPE\x00"), 0xFF, 0x00, 0x80)},
		{TimestampMs: 70000, Payload: bytes.Repeat([]byte{0xAB}, 300)},
	}
}

// rawRecord encodes a timestamped record by hand, independently of Writer.
func rawRecord(ts uint64, payload []byte) []byte {
	b := binary.AppendUvarint(nil, ts)
	b = binary.AppendUvarint(b, uint64(len(payload)))
	b = append(b, payload...)
	return binary.LittleEndian.AppendUint32(b, crc32.ChecksumIEEE(b))
}

func writeLog(t *testing.T, opts Options, recs []Record) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "capture.bin")
	w, err := Create(path, opts)
	require.NoError(t, err)
	for _, r := range recs {
		require.NoError(t, w.Append(r))
	}
	require.NoError(t, w.Close())
	return path
}

func TestRoundTrip(t *testing.T) {
	id := uuid.New()
	vc := clock.NewVirtualClock(epoch)
	want := sampleRecords()
	path := writeLog(t, Options{SessionID: id, Clock: vc}, want)

	l, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, uint8(FormatVersion), l.Header.Version)
	assert.Equal(t, SchemaTimestamped, l.Header.Schema)
	assert.Equal(t, id, l.Header.SessionID)
	assert.True(t, l.Header.StartedAt.Equal(epoch))
	assert.False(t, l.Truncated)
	require.Equal(t, len(want), l.Len())

	got := l.Records()
	for i := range want {
		assert.Equal(t, want[i].TimestampMs, got[i].TimestampMs, "record %d timestamp", i)
		assert.True(t, bytes.Equal(want[i].Payload, got[i].Payload), "record %d payload", i)
	}
	assert.Equal(t, 70*time.Second, l.Duration())
}

func TestDecode_Stream(t *testing.T) {
	path := writeLog(t, Options{}, sampleRecords()[:2])
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	l, err := Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 2, l.Len())
	assert.Empty(t, l.Path)
}

func TestPayloadOnlySchema(t *testing.T) {
	path := writeLog(t, Options{Untimed: true}, sampleRecords())

	l, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, SchemaPayloadOnly, l.Header.Schema)
	require.Equal(t, 5, l.Len())
	for i, r := range l.Records() {
		if r.TimestampMs != 0 {
			t.Errorf("record %d TimestampMs = %d, want 0", i, r.TimestampMs)
		}
	}
	assert.Equal(t, time.Duration(0), l.Duration())
}

func TestPartialCaptureDurability(t *testing.T) {
	const n = 6
	path := filepath.Join(t.TempDir(), "partial.bin")
	w, err := Create(path, Options{})
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		require.NoError(t, w.Append(Record{TimestampMs: int64(i * 20), Payload: []byte{byte(i), 0xFD, 0xFE}}))
	}

	// The writer is never closed: the process "dies" halfway through the
	// next record.
	next := rawRecord(200, bytes.Repeat([]byte{0x42}, 40))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0)
	require.NoError(t, err)
	_, err = f.Write(next[:len(next)/2])
	require.NoError(t, err)
	require.NoError(t, f.Close())

	l, err := Load(path)
	require.NoError(t, err)
	assert.True(t, l.Truncated)
	require.Equal(t, n, l.Len())
	for i, r := range l.Records() {
		assert.Equal(t, int64(i*20), r.TimestampMs)
		assert.Equal(t, []byte{byte(i), 0xFD, 0xFE}, r.Payload)
	}
}

func TestLoad_UnclosedWriterIsReadable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "live.bin")
	w, err := Create(path, Options{})
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.Append(Record{TimestampMs: 5, Payload: []byte("a")}))
	require.NoError(t, w.Append(Record{TimestampMs: 9, Payload: []byte("b")}))

	l, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, l.Len())
	assert.False(t, l.Truncated)
}

func TestLoad_ChecksumMismatch(t *testing.T) {
	path := writeLog(t, Options{}, sampleRecords()[:3])
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	// Record 0 is 1 (ts) + 1 (len) + 4 payload + 4 crc bytes; flip a
	// payload byte of record 1.
	rec1 := headerLen + 10
	data[rec1+3] ^= 0xFF
	require.NoError(t, os.WriteFile(path, data, 0o644))

	_, err = Load(path)
	var corrupt *CorruptLogError
	require.ErrorAs(t, err, &corrupt)
	assert.Equal(t, 1, corrupt.Record)
	assert.Equal(t, int64(rec1), corrupt.Offset)
	assert.Contains(t, corrupt.Error(), "checksum mismatch")
}

func TestLoad_BadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pickle.bin")
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte{0x80, 0x04}, 40), 0o644))

	_, err := Load(path)
	var corrupt *CorruptLogError
	require.ErrorAs(t, err, &corrupt)
	assert.Equal(t, -1, corrupt.Record)
	assert.Contains(t, err.Error(), "bad magic")
}

func TestLoad_ShortFile(t *testing.T) {
	for _, size := range []int{0, 5, headerLen - 1} {
		path := filepath.Join(t.TempDir(), "short.bin")
		require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))

		_, err := Load(path)
		var corrupt *CorruptLogError
		if !errors.As(err, &corrupt) {
			t.Errorf("Load(%d bytes) error = %v, want *CorruptLogError", size, err)
		}
	}
}

func TestLoad_UnsupportedSchema(t *testing.T) {
	tests := []struct {
		name string
		at   int
		val  byte
	}{
		{"future version", 8, 2},
		{"unknown schema", 9, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeLog(t, Options{}, sampleRecords()[:1])
			data, err := os.ReadFile(path)
			require.NoError(t, err)
			data[tt.at] = tt.val
			require.NoError(t, os.WriteFile(path, data, 0o644))

			_, err = Load(path)
			require.ErrorIs(t, err, ErrUnsupportedSchema)
			var corrupt *CorruptLogError
			require.ErrorAs(t, err, &corrupt)
		})
	}
}

func TestLoad_OutOfOrderTimestamps(t *testing.T) {
	path := writeLog(t, Options{}, []Record{{TimestampMs: 100, Payload: []byte("x")}})
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0)
	require.NoError(t, err)
	_, err = f.Write(rawRecord(50, []byte("y")))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = Load(path)
	require.ErrorIs(t, err, ErrOutOfOrder)
	var corrupt *CorruptLogError
	require.ErrorAs(t, err, &corrupt)
	assert.Equal(t, 1, corrupt.Record)
}

func TestLoad_OversizedLength(t *testing.T) {
	path := writeLog(t, Options{}, nil)
	b := binary.AppendUvarint(nil, 0)
	b = binary.AppendUvarint(b, MaxPayloadLen+1)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0)
	require.NoError(t, err)
	_, err = f.Write(b)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = Load(path)
	var corrupt *CorruptLogError
	require.ErrorAs(t, err, &corrupt)
	assert.Contains(t, err.Error(), "exceeds")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.bin"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestWriter_RejectsOutOfOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "order.bin")
	w, err := Create(path, Options{})
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.Append(Record{TimestampMs: 10, Payload: []byte{1}}))
	require.NoError(t, w.Append(Record{TimestampMs: 10, Payload: []byte{2}}))
	require.ErrorIs(t, w.Append(Record{TimestampMs: 9, Payload: []byte{3}}), ErrOutOfOrder)
	require.Error(t, w.Append(Record{TimestampMs: -1}))
	assert.Equal(t, 2, w.Count())
}

func TestWriter_CloseIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "close.bin")
	w, err := Create(path, Options{SyncInterval: time.Minute, Clock: clock.NewVirtualClock(epoch)})
	require.NoError(t, err)
	require.NoError(t, w.Append(Record{Payload: []byte("z")}))

	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
	require.ErrorIs(t, w.Append(Record{Payload: []byte("late")}), ErrClosed)

	// Close flushes records held back by the sync interval.
	l, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1, l.Len())
}

func TestSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "saved.bin")
	h := Header{Schema: SchemaTimestamped, SessionID: uuid.New()}
	require.NoError(t, Save(path, h, sampleRecords()))

	l, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, h.SessionID, l.Header.SessionID)
	assert.Equal(t, 5, l.Len())
}

func TestExportJSON(t *testing.T) {
	l := NewLog(Header{Version: FormatVersion, Schema: SchemaTimestamped}, []Record{
		{TimestampMs: 0, Payload: []byte{0xFD, 0x01}},
		{TimestampMs: 42, Payload: []byte{0xCA, 0xFE}},
	})
	var buf bytes.Buffer
	require.NoError(t, l.ExportJSON(&buf))

	out := buf.String()
	assert.Contains(t, out, `"payload_hex": "fd01"`)
	assert.Contains(t, out, `"timestamp_ms": 42`)
	assert.Contains(t, out, `"schema": "timestamped"`)
	assert.False(t, strings.Contains(out, "truncated"))
}

func TestRecordsReturnsCopy(t *testing.T) {
	l := NewLog(Header{}, sampleRecords())
	recs := l.Records()
	recs[0] = Record{TimestampMs: 999}
	assert.Equal(t, int64(0), l.Records()[0].TimestampMs)
}

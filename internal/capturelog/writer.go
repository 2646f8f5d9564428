package capturelog

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"log"
	"os"
	"sync"
	"time"

	"github.com/SmitUplenchwar2687/Mavtape/internal/clock"
	"github.com/google/uuid"
)

// Options configures a Writer.
type Options struct {
	// Untimed writes the payload-only schema.
	Untimed bool
	// SessionID identifies the capture; a random one is generated when nil.
	SessionID uuid.UUID
	// SyncInterval bounds how often the file is fsynced. Zero syncs after
	// every record.
	SyncInterval time.Duration
	Clock        clock.Clock
}

// Writer appends records to a capture log. Each Append is a single write
// call, so a crash can only ever leave the final record partially written.
// Safe for concurrent use.
type Writer struct {
	mu       sync.Mutex
	f        *os.File
	path     string
	header   Header
	clock    clock.Clock
	interval time.Duration
	nextSync time.Time
	dirty    bool

	count  int
	lastTs int64
	buf    []byte

	closeOnce sync.Once
	closeErr  error
	closed    bool
}

// Create truncates path and writes a fresh header to it.
func Create(path string, opts Options) (*Writer, error) {
	clk := opts.Clock
	if clk == nil {
		clk = clock.NewRealClock()
	}
	sessionID := opts.SessionID
	if sessionID == uuid.Nil {
		sessionID = uuid.New()
	}
	schema := SchemaTimestamped
	if opts.Untimed {
		schema = SchemaPayloadOnly
	}
	h := Header{
		Version:   FormatVersion,
		Schema:    schema,
		SessionID: sessionID,
		StartedAt: clk.Now().UTC().Truncate(time.Millisecond),
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create capture log: %w", err)
	}
	if _, err := f.Write(encodeHeader(h)); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write capture log header: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("sync capture log header: %w", err)
	}

	w := &Writer{
		f:        f,
		path:     path,
		header:   h,
		clock:    clk,
		interval: opts.SyncInterval,
	}
	if w.interval > 0 {
		w.nextSync = clk.Now().Add(w.interval)
	}
	return w, nil
}

// Append writes rec and flushes it according to the sync policy.
func (w *Writer) Append(rec Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}
	if len(rec.Payload) > MaxPayloadLen {
		return fmt.Errorf("capturelog: payload of %d bytes exceeds %d", len(rec.Payload), MaxPayloadLen)
	}
	timed := w.header.Schema == SchemaTimestamped
	if timed {
		if rec.TimestampMs < 0 {
			return fmt.Errorf("capturelog: negative timestamp %d", rec.TimestampMs)
		}
		if rec.TimestampMs < w.lastTs {
			return fmt.Errorf("%w: %d after %d", ErrOutOfOrder, rec.TimestampMs, w.lastTs)
		}
	}

	b := w.buf[:0]
	if timed {
		b = binary.AppendUvarint(b, uint64(rec.TimestampMs))
	}
	b = binary.AppendUvarint(b, uint64(len(rec.Payload)))
	b = append(b, rec.Payload...)
	b = binary.LittleEndian.AppendUint32(b, crc32.ChecksumIEEE(b))
	w.buf = b

	if _, err := w.f.Write(b); err != nil {
		return fmt.Errorf("append capture record: %w", err)
	}
	w.dirty = true
	if timed {
		w.lastTs = rec.TimestampMs
	}
	w.count++
	return w.maybeSyncLocked()
}

func (w *Writer) maybeSyncLocked() error {
	if !w.dirty {
		return nil
	}
	if w.interval > 0 {
		now := w.clock.Now()
		if now.Before(w.nextSync) {
			return nil
		}
		w.nextSync = now.Add(w.interval)
	}
	if err := w.f.Sync(); err != nil {
		return fmt.Errorf("sync capture log: %w", err)
	}
	w.dirty = false
	return nil
}

// Count returns the number of records appended so far.
func (w *Writer) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

func (w *Writer) Header() Header {
	return w.header
}

func (w *Writer) Path() string {
	return w.path
}

// Close flushes pending data and closes the file. Subsequent calls return
// the result of the first.
func (w *Writer) Close() error {
	w.closeOnce.Do(func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		w.closed = true
		if w.dirty {
			if err := w.f.Sync(); err != nil {
				log.Printf("capture log sync on close failed: %v", err)
			}
		}
		if err := w.f.Close(); err != nil {
			w.closeErr = fmt.Errorf("close capture log: %w", err)
		}
	})
	return w.closeErr
}

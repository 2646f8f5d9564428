package capturelog

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"log"
	"math"
	"os"
)

// Load reads the capture log at path.
func Load(path string) (*Log, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open capture log: %w", err)
	}
	defer f.Close()

	l, err := decode(f, path)
	if err != nil {
		return nil, err
	}
	return l, nil
}

// Decode reads a capture log from r.
func Decode(r io.Reader) (*Log, error) {
	return decode(r, "")
}

// recordReader remembers every byte consumed for the current record so the
// checksum can be verified without re-encoding.
type recordReader struct {
	br     *bufio.Reader
	buf    []byte
	offset int64
}

func (r *recordReader) ReadByte() (byte, error) {
	b, err := r.br.ReadByte()
	if err == nil {
		r.buf = append(r.buf, b)
		r.offset++
	}
	return b, err
}

func (r *recordReader) readFull(n int) error {
	start := len(r.buf)
	r.buf = append(r.buf, make([]byte, n)...)
	got, err := io.ReadFull(r.br, r.buf[start:])
	r.offset += int64(got)
	return err
}

func decode(src io.Reader, path string) (*Log, error) {
	rr := &recordReader{br: bufio.NewReaderSize(src, 64<<10)}

	hdrBuf := make([]byte, headerLen)
	if n, err := io.ReadFull(rr.br, hdrBuf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, &CorruptLogError{Path: path, Record: -1, Reason: fmt.Sprintf("header is %d bytes, want %d", n, headerLen)}
		}
		return nil, fmt.Errorf("read capture log header: %w", err)
	}
	rr.offset = int64(headerLen)

	h, err := parseHeader(hdrBuf)
	if err != nil {
		return nil, &CorruptLogError{Path: path, Record: -1, Reason: err.Error()}
	}
	if h.Version != FormatVersion {
		return nil, &CorruptLogError{Path: path, Record: -1, Reason: fmt.Sprintf("format version %d", h.Version), Err: ErrUnsupportedSchema}
	}
	if h.Schema != SchemaPayloadOnly && h.Schema != SchemaTimestamped {
		return nil, &CorruptLogError{Path: path, Record: -1, Reason: h.Schema.String(), Err: ErrUnsupportedSchema}
	}

	l := &Log{Header: h, Path: path}
	timed := h.Schema == SchemaTimestamped
	var lastTs int64

	for idx := 0; ; idx++ {
		start := rr.offset
		rr.buf = rr.buf[:0]
		corrupt := func(reason string, err error) error {
			return &CorruptLogError{Path: path, Record: idx, Offset: start, Reason: reason, Err: err}
		}
		truncated := func() (*Log, error) {
			l.Truncated = true
			log.Printf("capture log %s: dropping truncated record %d at offset %d (%d bytes)", displayName(path), idx, start, len(rr.buf))
			return l, nil
		}

		var ts uint64
		if timed {
			ts, err = binary.ReadUvarint(rr)
			if err != nil {
				if err == io.EOF && len(rr.buf) == 0 {
					return l, nil
				}
				if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
					return truncated()
				}
				return nil, corrupt("bad timestamp", err)
			}
		}

		size, err := binary.ReadUvarint(rr)
		if err != nil {
			if err == io.EOF && len(rr.buf) == 0 {
				return l, nil
			}
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return truncated()
			}
			return nil, corrupt("bad length", err)
		}
		if size > MaxPayloadLen {
			return nil, corrupt(fmt.Sprintf("payload length %d exceeds %d", size, MaxPayloadLen), nil)
		}

		bodyStart := len(rr.buf)
		if err := rr.readFull(int(size) + 4); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return truncated()
			}
			return nil, fmt.Errorf("read capture record %d: %w", idx, err)
		}
		sumAt := len(rr.buf) - 4
		want := binary.LittleEndian.Uint32(rr.buf[sumAt:])
		if got := crc32.ChecksumIEEE(rr.buf[:sumAt]); got != want {
			return nil, corrupt(fmt.Sprintf("checksum mismatch: got=%08x want=%08x", got, want), nil)
		}

		if ts > math.MaxInt64 {
			return nil, corrupt(fmt.Sprintf("timestamp %d out of range", ts), nil)
		}
		if int64(ts) < lastTs {
			return nil, corrupt(fmt.Sprintf("timestamp %d after %d", ts, lastTs), ErrOutOfOrder)
		}
		lastTs = int64(ts)

		payload := make([]byte, size)
		copy(payload, rr.buf[bodyStart:sumAt])
		l.records = append(l.records, Record{TimestampMs: int64(ts), Payload: payload})
	}
}

func displayName(path string) string {
	if path == "" {
		return "<stream>"
	}
	return path
}

// Package mavlink splits raw MAVLink byte streams into frames and renders
// frames as human-readable summaries. Payload bytes are never rewritten:
// a frame returned by Reader is exactly what arrived on the wire.
package mavlink

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

const (
	MagicV1 = 0xFE
	MagicV2 = 0xFD

	headerLenV1    = 6
	headerLenV2    = 10
	checksumLen    = 2
	signatureLen   = 13
	incompatSigned = 0x01

	// MaxFrameLen is the largest possible frame: a signed v2 frame with a
	// full 255-byte payload.
	MaxFrameLen = headerLenV2 + 255 + checksumLen + signatureLen
)

// Verifier decides whether a candidate frame is genuine. A rejected
// candidate is treated as noise: only its start marker is dropped and the
// search resumes at the next byte.
type Verifier interface {
	Verify(raw []byte) bool
}

// Reader extracts whole frames from a byte stream. Bytes that precede a
// start-of-frame marker, and markers of candidates the Verifier rejects, are
// discarded.
type Reader struct {
	br       *bufio.Reader
	verify   Verifier
	skipped  int64
	rejected int64
}

// NewReader frames r. v may be nil, in which case every candidate with a
// start marker and a complete length is accepted.
func NewReader(r io.Reader, v Verifier) *Reader {
	return &Reader{br: bufio.NewReaderSize(r, 4*MaxFrameLen), verify: v}
}

// Skipped returns how many bytes were discarded while searching for a
// start-of-frame marker.
func (r *Reader) Skipped() int64 {
	return r.skipped
}

// Rejected returns how many candidate frames failed verification.
func (r *Reader) Rejected() int64 {
	return r.rejected
}

// Next returns the next complete frame. It returns io.EOF on a clean end of
// stream and io.ErrUnexpectedEOF when the stream ends inside a frame.
//
// Candidates are peeked, not consumed, until they are accepted, so a false
// marker inside line noise never swallows the real frame that follows it.
func (r *Reader) Next() ([]byte, error) {
	partial := false
	for {
		b, err := r.br.Peek(1)
		if err != nil {
			if partial && errors.Is(err, io.EOF) {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}
		magic := b[0]
		if magic != MagicV1 && magic != MagicV2 {
			r.discard(1)
			continue
		}

		hdrLen := headerLenV1
		if magic == MagicV2 {
			hdrLen = headerLenV2
		}
		hdr, err := r.br.Peek(hdrLen)
		if err != nil {
			if r.rescanTail(err) {
				partial = true
				continue
			}
			return nil, unexpected(err)
		}

		total := FrameLen(hdr)
		buf, err := r.br.Peek(total)
		if err != nil {
			if r.rescanTail(err) {
				partial = true
				continue
			}
			return nil, unexpected(err)
		}
		if r.verify != nil && !r.verify.Verify(buf) {
			r.rejected++
			r.discard(1)
			continue
		}

		frame := make([]byte, total)
		copy(frame, buf)
		_, _ = r.br.Discard(total)
		return frame, nil
	}
}

// rescanTail handles a stream that ends inside a candidate. Without a
// Verifier the candidate is taken at face value and the stream is reported
// truncated. With one, the candidate may be noise, so the remaining bytes
// are searched for a complete frame first.
func (r *Reader) rescanTail(err error) bool {
	if r.verify == nil || !(errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)) {
		return false
	}
	r.discard(1)
	return true
}

func (r *Reader) discard(n int) {
	d, _ := r.br.Discard(n)
	r.skipped += int64(d)
}

// FrameLen computes the full frame length from a header prefix. The prefix
// must contain at least the bytes up to and including incompat_flags for v2.
func FrameLen(hdr []byte) int {
	payload := int(hdr[1])
	if hdr[0] == MagicV1 {
		return headerLenV1 + payload + checksumLen
	}
	n := headerLenV2 + payload + checksumLen
	if hdr[2]&incompatSigned != 0 {
		n += signatureLen
	}
	return n
}

// MessageID peeks the message id from a raw frame header.
func MessageID(raw []byte) (uint32, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	switch raw[0] {
	case MagicV1:
		if len(raw) < headerLenV1 {
			return 0, false
		}
		return uint32(raw[5]), true
	case MagicV2:
		if len(raw) < headerLenV2 {
			return 0, false
		}
		return uint32(raw[7]) | uint32(raw[8])<<8 | uint32(raw[9])<<16, true
	}
	return 0, false
}

// Version reports the protocol version of a raw frame, or 0 if the first
// byte is not a start-of-frame marker.
func Version(raw []byte) int {
	if len(raw) == 0 {
		return 0
	}
	switch raw[0] {
	case MagicV1:
		return 1
	case MagicV2:
		return 2
	}
	return 0
}

func unexpected(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return io.ErrUnexpectedEOF
	}
	return fmt.Errorf("reading frame: %w", err)
}

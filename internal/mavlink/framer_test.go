package mavlink

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/bluenviron/gomavlib/v3/pkg/dialects/ardupilotmega"
	"github.com/bluenviron/gomavlib/v3/pkg/dialects/common"
	"github.com/bluenviron/gomavlib/v3/pkg/message"
)

// v1Frame builds a v1 frame with the given message id and payload. The
// checksum bytes are filler; readers without a Verifier do not check them.
func v1Frame(id byte, payload []byte) []byte {
	f := []byte{MagicV1, byte(len(payload)), 7, 1, 1, id}
	f = append(f, payload...)
	return append(f, 0xAA, 0xBB)
}

func v2Frame(id uint32, payload []byte, signed bool) []byte {
	var incompat byte
	if signed {
		incompat = incompatSigned
	}
	f := []byte{MagicV2, byte(len(payload)), incompat, 0, 9, 1, 1, byte(id), byte(id >> 8), byte(id >> 16)}
	f = append(f, payload...)
	f = append(f, 0xCC, 0xDD)
	if signed {
		f = append(f, bytes.Repeat([]byte{0x5A}, signatureLen)...)
	}
	return f
}

func TestReader_MixedVersions(t *testing.T) {
	frames := [][]byte{
		v1Frame(0, []byte{1, 2, 3, 4, 5, 6, 7, 8, 9}),
		v2Frame(30, bytes.Repeat([]byte{0xFE}, 28), false),
		v2Frame(0x012345, []byte{0xFD, 0x00, 0xFE}, true),
		v2Frame(24, nil, false),
	}
	var stream []byte
	for _, f := range frames {
		stream = append(stream, f...)
	}

	r := NewReader(bytes.NewReader(stream), nil)
	for i, want := range frames {
		got, err := r.Next()
		if err != nil {
			t.Fatalf("Next() #%d error = %v", i, err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("Next() #%d = % x, want % x", i, got, want)
		}
	}
	if _, err := r.Next(); err != io.EOF {
		t.Fatalf("Next() at end error = %v, want io.EOF", err)
	}
	if r.Skipped() != 0 {
		t.Errorf("Skipped() = %d, want 0", r.Skipped())
	}
}

func TestReader_Resync(t *testing.T) {
	want := v1Frame(1, []byte{0x10, 0x20})
	stream := append([]byte{0x00, 0x13, 0x37}, want...)

	r := NewReader(bytes.NewReader(stream), nil)
	got, err := r.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("Next() = % x, want % x", got, want)
	}
	if r.Skipped() != 3 {
		t.Errorf("Skipped() = %d, want 3", r.Skipped())
	}
}

func encodeAll(t *testing.T, msgs ...message.Message) ([][]byte, *Decoder) {
	t.Helper()
	enc, err := NewEncoder(1)
	if err != nil {
		t.Fatalf("NewEncoder() error = %v", err)
	}
	dec, err := NewDecoder()
	if err != nil {
		t.Fatalf("NewDecoder() error = %v", err)
	}
	var frames [][]byte
	for _, m := range msgs {
		f, err := enc.Encode(m)
		if err != nil {
			t.Fatalf("Encode(%T) error = %v", m, err)
		}
		frames = append(frames, f)
	}
	return frames, dec
}

func TestReader_ResyncPastFalseMarker(t *testing.T) {
	frames, dec := encodeAll(t,
		&common.MessageHeartbeat{MavlinkVersion: 3},
		&common.MessageAttitude{TimeBootMs: 500, Roll: 0.5},
	)
	tests := []struct {
		name         string
		noise        []byte
		wantRejected bool
	}{
		// A HEARTBEAT-sized candidate whose checksum lands inside the real
		// frame.
		{"v1 marker", []byte{0xFE, 0x05}, true},
		{"v2 marker", []byte{0xFD, 0, 0, 0, 0, 0, 0, 0, 0, 0}, true},
		// Claims more bytes than the stream holds.
		{"marker with long length", []byte{0xFE, 0xFF, 0x42}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stream := append(bytes.Clone(tt.noise), bytes.Join(frames, nil)...)
			r := NewReader(bytes.NewReader(stream), dec)
			for i, want := range frames {
				got, err := r.Next()
				if err != nil {
					t.Fatalf("Next() #%d error = %v", i, err)
				}
				if !bytes.Equal(got, want) {
					t.Fatalf("Next() #%d = % x, want % x", i, got, want)
				}
			}
			if _, err := r.Next(); err != io.EOF {
				t.Fatalf("Next() at end error = %v, want io.EOF", err)
			}
			if r.Skipped() != int64(len(tt.noise)) {
				t.Errorf("Skipped() = %d, want %d", r.Skipped(), len(tt.noise))
			}
			if got := r.Rejected() > 0; got != tt.wantRejected {
				t.Errorf("Rejected() = %d, want rejected %v", r.Rejected(), tt.wantRejected)
			}
		})
	}
}

func TestReader_VerifierPassesUnknownMessages(t *testing.T) {
	_, dec := encodeAll(t)
	// 0x0ABCDE is not defined by the dialect, so its filler checksum is not
	// checked.
	unknown := v2Frame(0x0ABCDE, []byte{1, 2, 3}, false)
	if dec.Known(0x0ABCDE) {
		t.Fatal("test id unexpectedly defined by the dialect")
	}
	r := NewReader(bytes.NewReader(unknown), dec)
	got, err := r.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if !bytes.Equal(got, unknown) {
		t.Errorf("Next() = % x, want % x", got, unknown)
	}
}

func TestReader_VerifierRejectsBadChecksum(t *testing.T) {
	frames, dec := encodeAll(t, &common.MessageHeartbeat{MavlinkVersion: 3})
	corrupt := bytes.Clone(frames[0])
	corrupt[len(corrupt)-1] ^= 0xFF

	if dec.Verify(corrupt) {
		t.Fatal("Verify() accepted a frame with a bad checksum")
	}
	if !dec.Verify(frames[0]) {
		t.Fatal("Verify() rejected a valid frame")
	}

	r := NewReader(bytes.NewReader(corrupt), dec)
	if _, err := r.Next(); !errors.Is(err, io.ErrUnexpectedEOF) && err != io.EOF {
		t.Fatalf("Next() error = %v, want end of stream", err)
	}
}

func TestReader_TruncatedFrame(t *testing.T) {
	full := v2Frame(33, make([]byte, 28), false)
	r := NewReader(bytes.NewReader(full[:20]), nil)
	if _, err := r.Next(); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("Next() error = %v, want io.ErrUnexpectedEOF", err)
	}

	r = NewReader(bytes.NewReader(full[:3]), nil)
	if _, err := r.Next(); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("Next() on partial header error = %v, want io.ErrUnexpectedEOF", err)
	}
}

func TestMessageID(t *testing.T) {
	tests := []struct {
		name   string
		raw    []byte
		wantID uint32
		wantOK bool
	}{
		{"v1", v1Frame(253, nil), 253, true},
		{"v2 three byte id", v2Frame(0x0A0B0C, nil, false), 0x0A0B0C, true},
		{"empty", nil, 0, false},
		{"short v2", []byte{MagicV2, 0, 0}, 0, false},
		{"not a frame", []byte{0x42, 1, 2, 3, 4, 5, 6}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := MessageID(tt.raw)
			if id != tt.wantID || ok != tt.wantOK {
				t.Errorf("MessageID() = %d, %v; want %d, %v", id, ok, tt.wantID, tt.wantOK)
			}
		})
	}
}

func TestVersion(t *testing.T) {
	if v := Version(v1Frame(0, nil)); v != 1 {
		t.Errorf("Version(v1) = %d", v)
	}
	if v := Version(v2Frame(0, nil, false)); v != 2 {
		t.Errorf("Version(v2) = %d", v)
	}
	if v := Version([]byte("x")); v != 0 {
		t.Errorf("Version(garbage) = %d", v)
	}
}

func TestEncoderDecoder_RoundTrip(t *testing.T) {
	enc, err := NewEncoder(1)
	if err != nil {
		t.Fatalf("NewEncoder() error = %v", err)
	}
	dec, err := NewDecoder()
	if err != nil {
		t.Fatalf("NewDecoder() error = %v", err)
	}

	hb, err := enc.Encode(&common.MessageHeartbeat{MavlinkVersion: 3})
	if err != nil {
		t.Fatalf("Encode(heartbeat) error = %v", err)
	}
	att, err := enc.Encode(&common.MessageAttitude{TimeBootMs: 1200, Roll: 0.25})
	if err != nil {
		t.Fatalf("Encode(attitude) error = %v", err)
	}

	if id, ok := MessageID(hb); !ok || id != 0 {
		t.Errorf("MessageID(heartbeat) = %d, %v", id, ok)
	}
	if id, ok := MessageID(att); !ok || id != 30 {
		t.Errorf("MessageID(attitude) = %d, %v", id, ok)
	}

	// The framer must split encoded output back into the same frames.
	r := NewReader(bytes.NewReader(append(bytes.Clone(hb), att...)), dec)
	for _, want := range [][]byte{hb, att} {
		got, err := r.Next()
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("Next() = % x, want % x", got, want)
		}
	}

	if s := dec.Describe(hb); !strings.HasPrefix(s, "HEARTBEAT ") {
		t.Errorf("Describe(heartbeat) = %q", s)
	}
	if s := dec.Describe(att); !strings.HasPrefix(s, "ATTITUDE ") || !strings.Contains(s, "TimeBootMs:1200") {
		t.Errorf("Describe(attitude) = %q", s)
	}
}

func TestDecoder_Undecodable(t *testing.T) {
	dec, err := NewDecoder()
	if err != nil {
		t.Fatalf("NewDecoder() error = %v", err)
	}
	s := dec.Describe([]byte{0x01, 0x02, 0x03})
	if !strings.HasPrefix(s, "<undecodable 3 bytes") {
		t.Errorf("Describe(garbage) = %q", s)
	}
}

func TestDecoder_ArduPilotMessages(t *testing.T) {
	frames, dec := encodeAll(t,
		&ardupilotmega.MessageAhrs{AccelWeight: 0.5, RenormVal: 1},
		&common.MessageHeartbeat{MavlinkVersion: 3},
	)
	if !dec.Known(163) {
		t.Fatal("Known(163) = false, want AHRS defined")
	}
	if s := dec.Describe(frames[0]); !strings.HasPrefix(s, "AHRS ") {
		t.Errorf("Describe(ahrs) = %q", s)
	}
	if s := dec.Describe(frames[1]); !strings.HasPrefix(s, "HEARTBEAT ") {
		t.Errorf("Describe(heartbeat) = %q", s)
	}
	if !dec.Verify(frames[0]) {
		t.Error("Verify(ahrs) = false")
	}
}

func TestMessageName(t *testing.T) {
	if got := messageName(&common.MessageGlobalPositionInt{}); got != "GLOBAL_POSITION_INT" {
		t.Errorf("messageName() = %q", got)
	}
}

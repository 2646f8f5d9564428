package replay

import (
	"testing"

	"github.com/SmitUplenchwar2687/Mavtape/internal/capturelog"
)

// v1 builds a minimal MAVLink 1 header carrying msgID.
func v1(msgID byte) []byte {
	return []byte{0xFE, 0, 0, 1, 1, msgID, 0, 0}
}

func TestFilter_Empty_KeepsEverything(t *testing.T) {
	records := makeRecords(5, 10, 15)
	f := Filter{}
	if !f.IsZero() {
		t.Fatal("empty filter should be zero")
	}
	got := f.Apply(records)
	if len(got) != 3 || got[0].TimestampMs != 5 {
		t.Errorf("Apply() = %+v, want input unchanged", got)
	}
}

func TestFilter_TimeWindow(t *testing.T) {
	records := makeRecords(0, 100, 200, 300, 400)
	f := Filter{FromMs: 100, ToMs: 300}

	got := f.Apply(records)
	if len(got) != 3 {
		t.Fatalf("Apply() kept %d records, want 3", len(got))
	}
	for i, want := range []int64{0, 100, 200} {
		if got[i].TimestampMs != want {
			t.Errorf("record %d TimestampMs = %d, want %d", i, got[i].TimestampMs, want)
		}
	}
	if records[1].TimestampMs != 100 {
		t.Error("Apply() modified its input")
	}
}

func TestFilter_MessageIDs(t *testing.T) {
	records := []capturelog.Record{
		{TimestampMs: 0, Payload: v1(0)},
		{TimestampMs: 10, Payload: v1(30)},
		{TimestampMs: 20, Payload: v1(0)},
		{TimestampMs: 30, Payload: []byte{0x00}},
	}
	f := Filter{MessageIDs: []uint32{0}}

	if f.Match(records[1]) {
		t.Error("ATTITUDE should not match a HEARTBEAT-only filter")
	}
	if f.Match(records[3]) {
		t.Error("non-frame payload should never match an id filter")
	}
	got := f.Apply(records)
	if len(got) != 2 || got[0].TimestampMs != 0 || got[1].TimestampMs != 20 {
		t.Errorf("Apply() = %+v", got)
	}
}

func TestFilter_NothingMatches(t *testing.T) {
	f := Filter{FromMs: 1000}
	if got := f.Apply(makeRecords(0, 1, 2)); len(got) != 0 {
		t.Errorf("Apply() = %+v, want empty", got)
	}
}

package discovery

import (
	"testing"
)

func TestPointKey(t *testing.T) {
	key := PointKey("tt0133093", SourcePlot)
	if key != "tt0133093:plot" {
		t.Errorf("unexpected key: %q", key)
	}
}

func TestPointNumDeterministic(t *testing.T) {
	a := PointNum("tt0133093:plot")
	b := PointNum("tt0133093:plot")
	if a != b {
		t.Errorf("same input produced different ids: %d vs %d", a, b)
	}
	if a == PointNum("tt0133093:title") {
		t.Error("distinct keys collided")
	}
}

func TestPointUUIDDeterministic(t *testing.T) {
	a := PointUUID("tt0133093:plot")
	b := PointUUID("tt0133093:plot")
	if a != b {
		t.Errorf("same input produced different uuids: %s vs %s", a, b)
	}
	if a == PointUUID("tt0133093:title") {
		t.Error("distinct keys collided")
	}
}

func TestNewVectorPoint(t *testing.T) {
	pt := NewVectorPoint("tt0133093", SourceTitle, []float32{0.1, 0.2})
	if pt.ID != "tt0133093:title" {
		t.Errorf("unexpected id: %q", pt.ID)
	}
	if RecordID(pt.Payload) != "tt0133093" {
		t.Errorf("payload missing record id: %v", pt.Payload)
	}
	if PointSource(pt.Payload) != SourceTitle {
		t.Errorf("payload missing source: %v", pt.Payload)
	}
}

func TestRecordIDMissing(t *testing.T) {
	if RecordID(nil) != "" {
		t.Error("nil payload should yield empty record id")
	}
	if RecordID(map[string]any{PayloadRecordID: 42}) != "" {
		t.Error("non-string record id should yield empty string")
	}
}

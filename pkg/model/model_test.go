package model

import (
	"encoding/json"
	"testing"
)

func TestJSONBValueAndScan(t *testing.T) {
	original := JSONB{"root_type": "country", "count": 2}

	value, err := original.Value()
	if err != nil {
		t.Fatalf("Value() error: %v", err)
	}

	data, ok := value.([]byte)
	if !ok {
		t.Fatalf("expected []byte value, got %T", value)
	}

	var scanned JSONB
	if err := scanned.Scan(data); err != nil {
		t.Fatalf("Scan() error: %v", err)
	}
	if scanned["root_type"] != "country" {
		t.Fatalf("expected scanned root_type country, got %v", scanned["root_type"])
	}

	var fromString JSONB
	if err := fromString.Scan(string(data)); err != nil {
		t.Fatalf("Scan(string) error: %v", err)
	}
	if fromString["root_type"] != "country" {
		t.Fatalf("expected root_type from string scan, got %v", fromString["root_type"])
	}
}

func TestRecordUnmarshalLiftsCoreColumns(t *testing.T) {
	payload := []byte(`{"id": 7, "status": 1, "comp_id": 3, "state_name": "Maharashtra", "country_id": 1}`)

	var record Record
	if err := json.Unmarshal(payload, &record); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}

	if record.ID != 7 || record.Status != StatusActive || record.CompID != 3 {
		t.Fatalf("unexpected core columns: %+v", record)
	}
	if _, ok := record.Fields["id"]; ok {
		t.Fatalf("id must not remain in fields")
	}
	if got := record.StringField("state_name"); got != "Maharashtra" {
		t.Fatalf("expected state_name Maharashtra, got %q", got)
	}
	countryID, ok := record.Int64Field("country_id")
	if !ok || countryID != 1 {
		t.Fatalf("expected country_id 1, got %d (%v)", countryID, ok)
	}
}

func TestRecordUnmarshalRejectsMissingID(t *testing.T) {
	var record Record
	if err := json.Unmarshal([]byte(`{"status": 1}`), &record); err == nil {
		t.Fatalf("expected error for record without id")
	}
}

func TestRecordMarshalRoundTripsFields(t *testing.T) {
	record := Record{ID: 4, Status: StatusInactive, CompID: 9, Fields: map[string]interface{}{"agency_name": "Max Life"}}

	data, err := json.Marshal(record)
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if decoded["agency_name"] != "Max Life" || decoded["status"] != float64(0) || decoded["comp_id"] != float64(9) {
		t.Fatalf("unexpected payload: %v", decoded)
	}
}

func TestRecordCloneIsIndependent(t *testing.T) {
	original := Record{ID: 1, Fields: map[string]interface{}{"name": "a"}}
	clone := original.Clone()
	clone.Fields["name"] = "b"

	if original.Fields["name"] != "a" {
		t.Fatalf("clone mutated original fields")
	}
}

func TestStatusToggle(t *testing.T) {
	if StatusActive.Toggle() != StatusInactive || StatusInactive.Toggle() != StatusActive {
		t.Fatalf("toggle must flip status")
	}
	if Status(2).Valid() {
		t.Fatalf("status 2 must be invalid")
	}
}

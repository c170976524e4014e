package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

type Status int

const (
	StatusInactive Status = 0
	StatusActive   Status = 1
)

func (s Status) Valid() bool {
	return s == StatusInactive || s == StatusActive
}

func (s Status) Toggle() Status {
	if s == StatusActive {
		return StatusInactive
	}
	return StatusActive
}

func (s Status) Verb() string {
	if s == StatusActive {
		return "activated"
	}
	return "deactivated"
}

// EntityType names a master-data table, e.g. "country" or "agency_scheme".
type EntityType string

const (
	FieldID     = "id"
	FieldStatus = "status"
	FieldCompID = "comp_id"
)

// Record is a master-data row as served by the upstream API. ID, Status and CompID are
// lifted out of the payload; every other column stays in Fields.
type Record struct {
	ID     int64
	Status Status
	CompID int64
	Fields map[string]interface{}
}

func (r Record) Clone() Record {
	fields := make(map[string]interface{}, len(r.Fields))
	for k, v := range r.Fields {
		fields[k] = v
	}
	r.Fields = fields
	return r
}

// Int64Field reads an integer column such as a foreign key.
func (r Record) Int64Field(name string) (int64, bool) {
	value, ok := r.Fields[name]
	if !ok || value == nil {
		return 0, false
	}
	return toInt64(value)
}

func (r Record) StringField(name string) string {
	value, ok := r.Fields[name]
	if !ok || value == nil {
		return ""
	}
	switch typed := value.(type) {
	case string:
		return typed
	case json.Number:
		return typed.String()
	default:
		return fmt.Sprint(typed)
	}
}

func (r Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(r.Fields)+3)
	for k, v := range r.Fields {
		out[k] = v
	}
	out[FieldID] = r.ID
	out[FieldStatus] = int(r.Status)
	out[FieldCompID] = r.CompID
	return json.Marshal(out)
}

func (r *Record) UnmarshalJSON(data []byte) error {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	var raw map[string]interface{}
	if err := decoder.Decode(&raw); err != nil {
		return err
	}
	if raw == nil {
		return fmt.Errorf("record payload is null")
	}

	id, ok := toInt64(raw[FieldID])
	if !ok {
		return fmt.Errorf("record has invalid id %v", raw[FieldID])
	}
	status, _ := toInt64(raw[FieldStatus])
	compID, _ := toInt64(raw[FieldCompID])

	delete(raw, FieldID)
	delete(raw, FieldStatus)
	delete(raw, FieldCompID)

	*r = Record{
		ID:     id,
		Status: Status(status),
		CompID: compID,
		Fields: raw,
	}
	return nil
}

func toInt64(value interface{}) (int64, bool) {
	switch typed := value.(type) {
	case Status:
		return int64(typed), true
	case int:
		return int64(typed), true
	case int32:
		return int64(typed), true
	case int64:
		return typed, true
	case float64:
		return int64(typed), typed == float64(int64(typed))
	case json.Number:
		parsed, err := typed.Int64()
		return parsed, err == nil
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(typed), 10, 64)
		return parsed, err == nil
	case bool:
		// some endpoints serialise status as a boolean
		if typed {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

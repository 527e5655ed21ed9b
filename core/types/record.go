// Package types - Call detail record model
package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/shopspring/decimal"
)

// Field names of a Voice Connector call detail record
const (
	FieldUsageType               = "UsageType"
	FieldStartTimeEpochSeconds   = "StartTimeEpochSeconds"
	FieldEndTimeEpochSeconds     = "EndTimeEpochSeconds"
	FieldBillableDurationMinutes = "BillableDurationMinutes"
	FieldBillableDurationSeconds = "BillableDurationSeconds"
	FieldCallID                  = "CallId"
	FieldTransactionID           = "TransactionId"
	FieldVoiceConnectorID        = "VoiceConnectorId"

	// Enrichment fields
	FieldPricePerUnitUSD = "PricePerUnitUSD"
	FieldCostUSD         = "CostUSD"
)

// ErrNotObject is returned when a payload is not a single JSON object
var ErrNotObject = errors.New("payload is not a JSON object")

// Record is a call detail record: a JSON object whose fields keep their
// document order. Values are held as compact raw JSON so fields the
// enrichment never touches are written back byte for byte.
type Record struct {
	keys   []string
	fields map[string]json.RawMessage
}

// NewRecord creates an empty record
func NewRecord() *Record {
	return &Record{fields: make(map[string]json.RawMessage)}
}

// ParseRecord decodes a whole payload as exactly one JSON object.
func ParseRecord(data []byte) (*Record, error) {
	r := NewRecord()
	if err := r.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return r, nil
}

// UnmarshalJSON implements json.Unmarshaler
func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		if err == io.EOF {
			return ErrNotObject
		}
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return ErrNotObject
	}

	r.keys = r.keys[:0]
	r.fields = make(map[string]json.RawMessage)

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected token %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("field %s: %w", key, err)
		}
		if err := r.SetRaw(key, raw); err != nil {
			return err
		}
	}

	// closing brace
	if _, err := dec.Token(); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return fmt.Errorf("%w: trailing data after object", ErrNotObject)
	}
	return nil
}

// MarshalJSON implements json.Marshaler. Fields are written in record order.
func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(r.fields[key])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Keys returns the field names in record order
func (r *Record) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Len returns the number of fields
func (r *Record) Len() int {
	return len(r.keys)
}

// Has reports whether the field exists, including explicit nulls
func (r *Record) Has(key string) bool {
	_, ok := r.fields[key]
	return ok
}

// Raw returns the compact JSON of a field
func (r *Record) Raw(key string) (json.RawMessage, bool) {
	raw, ok := r.fields[key]
	return raw, ok
}

// SetRaw sets a field from JSON text. New fields are appended; existing
// fields keep their position.
func (r *Record) SetRaw(key string, raw json.RawMessage) error {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return fmt.Errorf("field %s: %w", key, err)
	}
	if r.fields == nil {
		r.fields = make(map[string]json.RawMessage)
	}
	if _, exists := r.fields[key]; !exists {
		r.keys = append(r.keys, key)
	}
	r.fields[key] = buf.Bytes()
	return nil
}

// Set marshals value and stores it under key
func (r *Record) Set(key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("field %s: %w", key, err)
	}
	return r.SetRaw(key, raw)
}

// String returns a field holding a JSON string
func (r *Record) String(key string) (string, bool) {
	raw, ok := r.fields[key]
	if !ok || len(raw) == 0 || raw[0] != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// Decimal reads a numeric field exactly from its JSON text. Numbers
// encoded as strings are accepted. found is false for absent or null
// fields; err is set when the field is present but not numeric.
func (r *Record) Decimal(key string) (d decimal.Decimal, found bool, err error) {
	raw, ok := r.fields[key]
	if !ok || string(raw) == "null" {
		return decimal.Zero, false, nil
	}

	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return decimal.Zero, true, err
		}
	}

	d, err = decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero, true, fmt.Errorf("field %s is not numeric: %s", key, raw)
	}
	return d, true, nil
}

// Text renders a field as flat text: strings unquoted, null empty,
// numbers and booleans as written, objects and arrays as compact JSON.
func (r *Record) Text(key string) string {
	raw, ok := r.fields[key]
	if !ok {
		return ""
	}
	switch {
	case string(raw) == "null":
		return ""
	case raw[0] == '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return string(raw)
		}
		return s
	default:
		return string(raw)
	}
}

// Clone returns a deep copy
func (r *Record) Clone() *Record {
	c := &Record{
		keys:   r.Keys(),
		fields: make(map[string]json.RawMessage, len(r.fields)),
	}
	for k, v := range r.fields {
		c.fields[k] = append(json.RawMessage(nil), v...)
	}
	return c
}

// Package scan enumerates the devices paired to a panel server gateway and
// reads their identity and diagnostic registers into flat records.
package scan

import (
	"encoding/json"
	"strconv"

	"panel_exporter/internal/protocol"
)

// ValueKind tags the variants of a diagnostic Value.
type ValueKind int

const (
	// KindMissing marks a field whose read or decode failed. The key stays
	// present so downstream column layouts remain stable.
	KindMissing ValueKind = iota
	KindNumber
	KindText
)

// Value is a small tagged union for diagnostic fields. It replaces the
// stringly-typed "N/A" sentinel so numeric processing never sees
// placeholder text.
type Value struct {
	kind   ValueKind
	number float64
	text   string
}

// Number wraps a numeric diagnostic value.
func Number(v float64) Value {
	return Value{kind: KindNumber, number: v}
}

// Text wraps a textual diagnostic value.
func Text(s string) Value {
	return Value{kind: KindText, text: s}
}

// Missing marks a failed field read.
func Missing() Value {
	return Value{kind: KindMissing}
}

// Kind returns the variant tag.
func (v Value) Kind() ValueKind { return v.kind }

// IsMissing reports whether the field read failed.
func (v Value) IsMissing() bool { return v.kind == KindMissing }

// Float returns the numeric payload if present.
func (v Value) Float() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	return v.number, true
}

// Int returns the numeric payload if it is an integral number.
func (v Value) Int() (int64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	if v.number != float64(int64(v.number)) {
		return 0, false
	}
	return int64(v.number), true
}

// String renders the value for presentation; missing fields render "N/A".
func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.number, 'f', -1, 64)
	case KindText:
		return v.text
	default:
		return "N/A"
	}
}

// MarshalJSON encodes numbers as JSON numbers, text as strings and missing
// values as null.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNumber:
		return json.Marshal(v.number)
	case KindText:
		return json.Marshal(v.text)
	default:
		return []byte("null"), nil
	}
}

// DeviceRecord is the flat per-device result of one export pass. It is
// created empty for each discovered device ID, populated field by field as
// reads succeed and frozen once emitted.
type DeviceRecord struct {
	DeviceID     uint16
	DeviceType   protocol.DeviceType
	RFID         string
	SerialNumber string
	DeviceName   string
	DeviceLabel  string
	ProductModel string
	Diagnostics  map[string]Value
}

// SignalQuality recomputes the link grade from the LQI and Gateway PER
// diagnostics. It is always derived, never stored.
func (r DeviceRecord) SignalQuality() protocol.SignalQuality {
	lqi, lqiOK := r.Diagnostics[protocol.FieldLQI].Float()
	per, perOK := r.Diagnostics[protocol.FieldGatewayPER].Float()
	return protocol.GradeSignal(lqi, lqiOK, per, perOK)
}

package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
)

// recordJSON keeps numbers as json.Number so ids survive without float rounding,
// and sorts map keys so encoded records are stable.
var recordJSON = sonic.Config{UseNumber: true, SortMapKeys: true}.Froze()

// Record is a single status reference entry.
//
// Fields the backend sends beyond the three known ones are kept in Extra and
// written back verbatim when the record is encoded.
type Record struct {
	// ID is the numeric status identifier (status_id). Unique within a List.
	ID int64 `json:"status_id"`

	// Code is the machine code of the status (status_code), e.g. "OPEN".
	Code string `json:"status_code"`

	// Name is the display name of the status (status_name).
	Name string `json:"status_name"`

	// Extra holds any additional fields from the backend response.
	Extra map[string]any `json:"-"`
}

// UnmarshalJSON decodes a status record, accepting status_id as a number or
// a decimal string.
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := recordJSON.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		return errors.New("status record must be a JSON object")
	}

	rawID, ok := raw["status_id"]
	if !ok {
		return errors.New("status record is missing status_id")
	}
	id, ok := NormalizeID(rawID)
	if !ok {
		return fmt.Errorf("status_id %v is not an integer", rawID)
	}

	code, err := stringField(raw, "status_code")
	if err != nil {
		return err
	}
	name, err := stringField(raw, "status_name")
	if err != nil {
		return err
	}

	delete(raw, "status_id")
	delete(raw, "status_code")
	delete(raw, "status_name")

	r.ID = id
	r.Code = code
	r.Name = name
	r.Extra = nil
	if len(raw) > 0 {
		r.Extra = raw
	}
	return nil
}

// MarshalJSON encodes the record with its extra fields merged back in.
func (r Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Extra)+3)
	for k, v := range r.Extra {
		out[k] = v
	}
	out["status_id"] = r.ID
	out["status_code"] = r.Code
	out["status_name"] = r.Name
	return recordJSON.Marshal(out)
}

func stringField(raw map[string]any, key string) (string, error) {
	v, ok := raw[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%s must be a string, got %T", key, v)
	}
	return s, nil
}

// NormalizeID converts an id value to int64.
//
// Accepted inputs are any integer kind, floats without a fractional part,
// json.Number, and decimal strings (surrounding spaces ignored). Anything else
// reports false.
func NormalizeID(v any) (int64, bool) {
	switch id := v.(type) {
	case int:
		return int64(id), true
	case int8:
		return int64(id), true
	case int16:
		return int64(id), true
	case int32:
		return int64(id), true
	case int64:
		return id, true
	case uint:
		return uintID(uint64(id))
	case uint8:
		return int64(id), true
	case uint16:
		return int64(id), true
	case uint32:
		return int64(id), true
	case uint64:
		return uintID(id)
	case float32:
		return floatID(float64(id))
	case float64:
		return floatID(id)
	case json.Number:
		return stringID(id.String())
	case string:
		return stringID(id)
	default:
		return 0, false
	}
}

func uintID(v uint64) (int64, bool) {
	if v > math.MaxInt64 {
		return 0, false
	}
	return int64(v), true
}

func floatID(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

func stringID(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if id, err := strconv.ParseInt(s, 10, 64); err == nil {
		return id, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return floatID(f)
}

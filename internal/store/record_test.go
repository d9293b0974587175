package store

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
)

func TestRecord_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Record
		wantErr string
	}{
		{
			name:  "numeric id",
			input: `{"status_id": 1, "status_code": "OPEN", "status_name": "เปิด"}`,
			want:  Record{ID: 1, Code: "OPEN", Name: "เปิด"},
		},
		{
			name:  "string id",
			input: `{"status_id": "7", "status_code": "DRAFT", "status_name": "ร่าง"}`,
			want:  Record{ID: 7, Code: "DRAFT", Name: "ร่าง"},
		},
		{
			name:  "missing name",
			input: `{"status_id": 3, "status_code": "X"}`,
			want:  Record{ID: 3, Code: "X"},
		},
		{
			name:    "missing id",
			input:   `{"status_code": "X"}`,
			wantErr: "missing status_id",
		},
		{
			name:    "fractional id",
			input:   `{"status_id": 1.5}`,
			wantErr: "not an integer",
		},
		{
			name:    "non-string code",
			input:   `{"status_id": 1, "status_code": 5}`,
			wantErr: "status_code must be a string",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Record
			err := json.Unmarshal([]byte(tt.input), &got)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("Unmarshal() error = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if got.ID != tt.want.ID || got.Code != tt.want.Code || got.Name != tt.want.Name {
				t.Errorf("Unmarshal() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestRecord_ExtraFieldsForwarded(t *testing.T) {
	input := `{"status_id": 4, "status_code": "PAID", "status_name": "จ่ายแล้ว", "color": "green", "sort_order": 3}`

	var rec Record
	if err := json.Unmarshal([]byte(input), &rec); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if rec.Extra["color"] != "green" {
		t.Errorf("Extra[color] = %v, want green", rec.Extra["color"])
	}

	out, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var back map[string]any
	if err := json.Unmarshal(out, &back); err != nil {
		t.Fatalf("Unmarshal(encoded) error = %v", err)
	}
	for _, key := range []string{"status_id", "status_code", "status_name", "color", "sort_order"} {
		if _, ok := back[key]; !ok {
			t.Errorf("encoded record missing %q: %s", key, out)
		}
	}
	if back["sort_order"] != float64(3) {
		t.Errorf("sort_order = %v, want 3", back["sort_order"])
	}
}

func TestNormalizeID(t *testing.T) {
	tests := []struct {
		name   string
		input  any
		want   int64
		wantOK bool
	}{
		{"int", 5, 5, true},
		{"int64", int64(9), 9, true},
		{"uint8", uint8(3), 3, true},
		{"integral float", 2.0, 2, true},
		{"fractional float", 2.5, 0, false},
		{"NaN", math.NaN(), 0, false},
		{"string", "12", 12, true},
		{"padded string", " 12 ", 12, true},
		{"float string", "3.0", 3, true},
		{"json number", json.Number("42"), 42, true},
		{"empty string", "", 0, false},
		{"word", "open", 0, false},
		{"nil", nil, 0, false},
		{"bool", true, 0, false},
		{"huge uint", uint64(math.MaxUint64), 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NormalizeID(tt.input)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("NormalizeID(%v) = %d, %v; want %d, %v", tt.input, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

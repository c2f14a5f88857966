package phsa

import (
	"encoding/json"
	"testing"
	"time"
)

func TestTime_Unmarshal(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{`"2021-03-04T05:06:07Z"`, time.Date(2021, 3, 4, 5, 6, 7, 0, time.UTC)},
		{`"2021-03-04T05:06:07-08:00"`, time.Date(2021, 3, 4, 13, 6, 7, 0, time.UTC)},
		{`"2021-03-04T05:06:07"`, time.Date(2021, 3, 4, 5, 6, 7, 0, time.UTC)},
		{`"2021-03-04T05:06:07.1234567"`, time.Date(2021, 3, 4, 5, 6, 7, 123456700, time.UTC)},
		{`"2021-03-04"`, time.Date(2021, 3, 4, 0, 0, 0, 0, time.UTC)},
		{`null`, time.Time{}},
		{`""`, time.Time{}},
	}
	for _, tt := range tests {
		var got Time
		if err := json.Unmarshal([]byte(tt.in), &got); err != nil {
			t.Errorf("%s: unexpected error: %v", tt.in, err)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("%s: got %v, want %v", tt.in, got.Time, tt.want)
		}
	}
}

func TestTime_UnmarshalRejectsGarbage(t *testing.T) {
	var got Time
	if err := json.Unmarshal([]byte(`"yesterday"`), &got); err == nil {
		t.Error("expected error for unrecognized timestamp")
	}
}

func TestTime_Ptr(t *testing.T) {
	if (Time{}).Ptr() != nil {
		t.Error("expected nil for zero time")
	}
	now := Time{time.Now()}
	if p := now.Ptr(); p == nil || !p.Equal(now.Time) {
		t.Errorf("expected pointer to %v, got %v", now.Time, p)
	}
}

package store

import (
	"testing"
	"time"
)

type sample struct {
	ID      string    `json:"id"`
	EventID string    `json:"eventId"`
	Count   int       `json:"count"`
	Active  bool      `json:"active"`
	At      time.Time `json:"at"`
}

func TestEncodeDecode(t *testing.T) {
	at := time.Date(2026, 2, 15, 9, 0, 0, 0, time.UTC)
	d, err := Encode(sample{ID: "s1", EventID: "E1", Count: 3, Active: true, At: at})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if d["eventId"] != "E1" {
		t.Fatalf("expected json field names, got %v", d)
	}

	var got sample
	if err := Decode(d, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Count != 3 || !got.At.Equal(at) {
		t.Fatalf("unexpected decode result %+v", got)
	}
}

func TestDecodeAllSkipsBadDocuments(t *testing.T) {
	docs := []Doc{
		{"id": "a", "count": 1},
		{"id": "b", "count": "not a number"},
		{"id": "c", "count": 2},
	}
	out, skipped := DecodeAll[sample](docs)
	if skipped != 1 {
		t.Fatalf("expected 1 skipped, got %d", skipped)
	}
	if len(out) != 2 || out[0].ID != "a" || out[1].ID != "c" {
		t.Fatalf("unexpected result %+v", out)
	}
}

func TestMerge(t *testing.T) {
	base := Doc{"status": "pending", "teamId": "t1"}
	got := Merge(base, Doc{"status": "cancelled"})
	if got["status"] != "cancelled" || got["teamId"] != "t1" {
		t.Fatalf("unexpected merge %v", got)
	}
	if Merge(nil, Doc{"a": 1})["a"] != 1 {
		t.Fatal("expected nil base to be allocated")
	}
}

func TestMatches(t *testing.T) {
	d, err := Encode(sample{ID: "s1", EventID: "E1", Count: 3, Active: true})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	cases := []struct {
		name    string
		filters []Filter
		want    bool
	}{
		{"no filters", nil, true},
		{"string", []Filter{Where("eventId", "E1")}, true},
		{"int against float", []Filter{Where("count", 3)}, true},
		{"bool", []Filter{Where("active", true)}, true},
		{"mismatch", []Filter{Where("eventId", "E2")}, false},
		{"missing field", []Filter{Where("nope", "x")}, false},
		{"all must hold", []Filter{Where("eventId", "E1"), Where("count", 4)}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Matches(d, tc.filters); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

package logging

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func sampleRecords(base time.Time) []Record {
	return []Record{
		{Timestamp: base, RideID: "42", DriverID: "d1", RequestID: "r1", Outcome: "won", Latency: 12 * time.Millisecond},
		{Timestamp: base.Add(time.Minute), RideID: "42", DriverID: "d2", RequestID: "r2", Outcome: "already_taken"},
		{Timestamp: base.Add(2 * time.Minute), RideID: "77", DriverID: "d1", RequestID: "r3", Outcome: "not_found"},
	}
}

func TestJSONLStore_AppendQuery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "claims.log")
	s, err := NewJSONLStore(path)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer func() { _ = s.Close() }()
	ctx := context.Background()
	base := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	for _, r := range sampleRecords(base) {
		if err := s.Append(ctx, r); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	got, err := s.Query(ctx, Query{RideID: "42"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	got, err = s.Query(ctx, Query{DriverID: "d1", End: base.Add(30 * time.Second)})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 1 || got[0].Outcome != "won" {
		t.Fatalf("unexpected records %#v", got)
	}
}

func TestSQLiteStore_AppendQuery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "claims.db")
	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer func() { _ = s.Close() }()
	ctx := context.Background()
	base := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	for _, r := range sampleRecords(base) {
		if err := s.Append(ctx, r); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	got, err := s.Query(ctx, Query{DriverID: "d1"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	got, err = s.Query(ctx, Query{Start: base.Add(90 * time.Second)})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 1 || got[0].RideID != "77" {
		t.Fatalf("unexpected records %#v", got)
	}
}

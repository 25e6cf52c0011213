package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeCounterStore struct {
	seq     int64
	lastKey string
	err     error
}

func (f *fakeCounterStore) Incr(ctx context.Context, key string) (int64, error) {
	f.lastKey = key
	if f.err != nil {
		return 0, f.err
	}
	f.seq++
	return f.seq, nil
}

func (f *fakeCounterStore) CounterKey(name string) string {
	return "counter:" + name
}

func TestNextIssuesSequentialStationNumbers(t *testing.T) {
	counters := &fakeCounterStore{}
	allocator := NewNumberAllocator(counters, "order_number")
	ctx := context.Background()

	if got := allocator.Next(ctx, "Station 1"); got != "STATION-1-0001" {
		t.Fatalf("first number = %s, want STATION-1-0001", got)
	}
	if got := allocator.Next(ctx, "Station 1"); got != "STATION-1-0002" {
		t.Fatalf("second number = %s, want STATION-1-0002", got)
	}
	if counters.lastKey != "counter:order_number:STATION-1" {
		t.Fatalf("counter key = %s", counters.lastKey)
	}
}

func TestNextFallsBackWhenCounterFails(t *testing.T) {
	counters := &fakeCounterStore{err: errors.New("redis down")}
	allocator := NewNumberAllocator(counters, "order_number")
	allocator.now = func() time.Time {
		return time.Date(2025, 6, 10, 12, 0, 0, 123_000_000, time.UTC)
	}

	got := allocator.Next(context.Background(), "Station 1")
	if got == "STATION-1-0001" {
		t.Fatal("counter failure must not produce a sequence number")
	}
	if len(got) <= len("STATION-1-") || got[:len("STATION-1-")] != "STATION-1-" {
		t.Fatalf("fallback number = %s, want STATION-1- prefix", got)
	}
}

func TestNextWithoutCountersUsesFallback(t *testing.T) {
	allocator := NewNumberAllocator(nil, "")
	allocator.now = func() time.Time {
		return time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	}

	got := allocator.Next(context.Background(), "")
	if got[:4] != "POS-" {
		t.Fatalf("number = %s, want POS- prefix for unnamed station", got)
	}
}

func TestSanitizeStation(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Station 1", "STATION-1"},
		{"  front counter ", "FRONT-COUNTER"},
		{"", "POS"},
		{"bar", "BAR"},
	}
	for _, tc := range cases {
		if got := sanitizeStation(tc.in); got != tc.want {
			t.Fatalf("sanitizeStation(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

package store

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type counterStore interface {
	Incr(ctx context.Context, key string) (int64, error)
	CounterKey(name string) string
}

// NumberAllocator issues station-prefixed human-readable order numbers.
// Sequencing runs through a redis counter; when redis is unavailable the
// allocator falls back to a time-derived suffix so preview publishing never
// blocks on the counter.
type NumberAllocator struct {
	counters counterStore
	prefix   string
	now      func() time.Time
}

// NewNumberAllocator builds an allocator. counters may be nil; the fallback
// then applies on every call.
func NewNumberAllocator(counters counterStore, keyPrefix string) *NumberAllocator {
	if keyPrefix == "" {
		keyPrefix = "order_number"
	}
	return &NumberAllocator{
		counters: counters,
		prefix:   keyPrefix,
		now:      time.Now,
	}
}

// Next returns the next order number for the station.
func (a *NumberAllocator) Next(ctx context.Context, stationName string) string {
	station := sanitizeStation(stationName)
	if a.counters != nil {
		key := a.counters.CounterKey(a.prefix + ":" + station)
		if seq, err := a.counters.Incr(ctx, key); err == nil {
			return fmt.Sprintf("%s-%04d", station, seq)
		}
	}
	return fmt.Sprintf("%s-%d", station, a.now().UnixMilli()%1_000_000)
}

func sanitizeStation(name string) string {
	cleaned := strings.ToUpper(strings.TrimSpace(name))
	cleaned = strings.ReplaceAll(cleaned, " ", "-")
	if cleaned == "" {
		return "POS"
	}
	return cleaned
}

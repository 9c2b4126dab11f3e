package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"edtcal/internal/model"
)

const snapshotKey = "cached_events"

// Cache persists the last successfully fetched schedule.
type Cache struct {
	kv KV
}

func NewCache(kv KV) *Cache {
	return &Cache{kv: kv}
}

// Save overwrites the stored snapshot.
func (c *Cache) Save(ctx context.Context, snap model.Snapshot) error {
	if snap.Entries == nil {
		snap.Entries = []model.ScheduleEntry{}
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return c.kv.Set(ctx, snapshotKey, data)
}

// Load returns the stored snapshot; ok is false when none was ever saved.
// A snapshot that no longer decodes is treated as absent.
func (c *Cache) Load(ctx context.Context) (model.Snapshot, bool, error) {
	data, ok, err := c.kv.Get(ctx, snapshotKey)
	if err != nil || !ok {
		return model.Snapshot{}, false, err
	}
	var snap model.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return model.Snapshot{}, false, nil
	}
	return snap, true, nil
}

// Fresh reports whether snap is younger than maxAge at now.
func Fresh(snap model.Snapshot, now time.Time, maxAge time.Duration) bool {
	if snap.FetchedAt.IsZero() {
		return false
	}
	age := now.Sub(snap.FetchedAt)
	return age >= 0 && age < maxAge
}

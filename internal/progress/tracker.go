package progress

import (
	"context"
)

// Tracker reads and writes one batch's progress in a [Store].
type Tracker struct {
	store Store
	keys  Keys
}

// NewTracker creates a Tracker for batchID backed by store.
func NewTracker(store Store, batchID string) *Tracker {
	return &Tracker{store: store, keys: KeysFor(batchID)}
}

// Keys returns the store keys the tracker uses.
func (t *Tracker) Keys() Keys {
	return t.keys
}

// ExcludedIDs returns the user ids snapshotted as already converted.
func (t *Tracker) ExcludedIDs(ctx context.Context) ([]int64, bool, error) {
	var ids []int64
	ok, err := readJSON(ctx, t.store, t.keys.ExcludedIDs, &ids)
	if err != nil || !ok {
		return nil, ok, err
	}
	if ids == nil {
		ids = []int64{}
	}
	return ids, true, nil
}

func (t *Tracker) SetExcludedIDs(ctx context.Context, ids []int64) error {
	if ids == nil {
		ids = []int64{}
	}
	return writeJSON(ctx, t.store, t.keys.ExcludedIDs, ids)
}

// TotalCount returns the number of candidates counted at snapshot time.
func (t *Tracker) TotalCount(ctx context.Context) (int64, bool, error) {
	return GetItemsTotal(ctx, t.store, t.keys.TotalCount)
}

func (t *Tracker) SetTotalCount(ctx context.Context, n int64) error {
	return writeJSON(ctx, t.store, t.keys.TotalCount, n)
}

// MigratedCount returns the running count of converted users. A missing key reads as zero.
func (t *Tracker) MigratedCount(ctx context.Context) (int64, error) {
	n, _, err := GetItemsTotal(ctx, t.store, t.keys.MigratedCount)
	return n, err
}

func (t *Tracker) SetMigratedCount(ctx context.Context, n int64) error {
	return writeJSON(ctx, t.store, t.keys.MigratedCount, n)
}

// Clear deletes every key of the batch, stopping at the first failure.
func (t *Tracker) Clear(ctx context.Context) error {
	for _, key := range t.keys.All() {
		if err := ClearItemsTotal(ctx, t.store, key); err != nil {
			return err
		}
	}
	return nil
}

// Record is a point-in-time view of a batch's progress.
type Record struct {
	ExcludedIDs      []int64 `json:"excluded_ids" yaml:"excluded_ids"`
	HasSnapshot      bool    `json:"has_snapshot" yaml:"has_snapshot"`
	TotalCount       int64   `json:"total_count" yaml:"total_count"`
	HasTotal         bool    `json:"has_total" yaml:"has_total"`
	MigratedCount    int64   `json:"migrated_count" yaml:"migrated_count"`
	HasMigratedCount bool    `json:"has_migrated_count" yaml:"has_migrated_count"`
}

// Remaining returns TotalCount - MigratedCount, floored at zero.
func (r Record) Remaining() int64 {
	return max(r.TotalCount-r.MigratedCount, 0)
}

// Percent returns the migrated share of the total in [0, 1]. An empty total counts as complete.
func (r Record) Percent() float64 {
	if r.TotalCount <= 0 {
		if r.HasTotal {
			return 1
		}
		return 0
	}
	return min(float64(r.MigratedCount)/float64(r.TotalCount), 1)
}

// Load reads the whole record.
func (t *Tracker) Load(ctx context.Context) (Record, error) {
	var (
		rec Record
		err error
	)

	if rec.ExcludedIDs, rec.HasSnapshot, err = t.ExcludedIDs(ctx); err != nil {
		return rec, err
	}
	if rec.TotalCount, rec.HasTotal, err = t.TotalCount(ctx); err != nil {
		return rec, err
	}
	if rec.MigratedCount, rec.HasMigratedCount, err = GetItemsTotal(ctx, t.store, t.keys.MigratedCount); err != nil {
		return rec, err
	}
	return rec, nil
}

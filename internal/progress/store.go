package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/desertthunder/affmigrate/internal/shared"
)

// Store is a string key/value store for batch progress.
//
// Get reports absence with ok=false rather than an error.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Write(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Keys are the store keys holding one batch's progress.
type Keys struct {
	ExcludedIDs   string
	TotalCount    string
	MigratedCount string
}

// KeysFor derives the progress keys for batchID, e.g. migrate_users_total_count for "migrate-users".
func KeysFor(batchID string) Keys {
	base := strings.ReplaceAll(batchID, "-", "_")
	return Keys{
		ExcludedIDs:   base + "_user_ids",
		TotalCount:    base + "_total_count",
		MigratedCount: base + "_current_count",
	}
}

// All returns the keys in a fixed order.
func (k Keys) All() []string {
	return []string{k.ExcludedIDs, k.TotalCount, k.MigratedCount}
}

// GetItems returns the raw value stored under key, whatever its shape.
// A missing key returns ok=false.
func GetItems(ctx context.Context, store Store, key string) (string, bool, error) {
	return store.Get(ctx, key)
}

// GetItemsTotal reads an integer counter stored under key. It only reads counters such as
// the total and migrated counts; use [GetItems] for the excluded-ids list.
//
// A missing key returns ok=false. A value that is not an integer returns [shared.ErrNotCounter].
func GetItemsTotal(ctx context.Context, store Store, key string) (int64, bool, error) {
	raw, ok, err := GetItems(ctx, store, key)
	if err != nil || !ok {
		return 0, false, err
	}

	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, true, fmt.Errorf("%w: %s=%q", shared.ErrNotCounter, key, raw)
	}
	return n, true, nil
}

// ClearItemsTotal removes key. Clearing a missing key is not an error.
func ClearItemsTotal(ctx context.Context, store Store, key string) error {
	return store.Delete(ctx, key)
}

func writeJSON(ctx context.Context, store Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return store.Write(ctx, key, string(data))
}

func readJSON(ctx context.Context, store Store, key string, v any) (bool, error) {
	raw, ok, err := GetItems(ctx, store, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return true, fmt.Errorf("%w: %s: %v", shared.ErrCorruptProgress, key, err)
	}
	return true, nil
}

// Package lock serialises writers per key. Incident fan-out holds one key per
// (bus, channel) slot while it updates the projection.
package lock

import (
	"context"
	"errors"
	"sort"
)

// ErrNotAcquired is returned when a key stays held past the wait budget.
var ErrNotAcquired = errors.New("lock: not acquired")

// Release frees a held key. Calling it more than once is a no-op.
type Release func()

// Locker acquires exclusive keys.
type Locker interface {
	Acquire(ctx context.Context, key string) (Release, error)
}

// AcquireAll takes every key in lexical order so concurrent callers with
// overlapping sets cannot deadlock. On failure all keys taken so far are freed.
func AcquireAll(ctx context.Context, l Locker, keys []string) (Release, error) {
	sorted := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	releases := make([]Release, 0, len(sorted))
	releaseAll := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}
	for _, key := range sorted {
		release, err := l.Acquire(ctx, key)
		if err != nil {
			releaseAll()
			return nil, err
		}
		releases = append(releases, release)
	}
	return once(releaseAll), nil
}

// SlotKey names the lock guarding one equipment slot of a bus.
func SlotKey(busID, slot string) string {
	return "fleet:lock:" + busID + ":" + slot
}

func once(fn func()) Release {
	done := false
	return func() {
		if done {
			return
		}
		done = true
		fn()
	}
}

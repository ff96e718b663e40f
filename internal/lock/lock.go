// Package lock provides per-resource mutual exclusion around the ledger's
// check-then-write sequences.
package lock

import (
	"context"
	"sort"
)

// Locker acquires a set of named locks. The returned function releases all of
// them and is safe to call more than once.
type Locker interface {
	Lock(ctx context.Context, keys ...string) (unlock func(), err error)
}

// normalize sorts and deduplicates keys so that every caller acquires locks
// in the same order.
func normalize(keys []string) []string {
	out := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

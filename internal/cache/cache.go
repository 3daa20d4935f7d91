// Package cache holds read-through caches for availability lookups. Entries
// are grouped by date so a write can drop everything it may have affected.
package cache

import (
	"context"
	"sort"
	"strings"
)

// Key identifies one availability lookup.
type Key struct {
	Date    string
	Labs    []string
	Exclude string
}

// String renders the key with labs sorted, so lab order does not matter.
func (k Key) String() string {
	labs := append([]string(nil), k.Labs...)
	sort.Strings(labs)
	return k.Date + "|" + strings.Join(labs, ",") + "|" + k.Exclude
}

// AvailabilityCache stores occupied block values per lookup. Implementations
// treat backend failures as misses.
type AvailabilityCache interface {
	Get(ctx context.Context, key Key) ([]string, bool)
	Set(ctx context.Context, key Key, blocks []string)
	InvalidateDate(ctx context.Context, date string)
}

// Nop never stores anything.
type Nop struct{}

func (Nop) Get(context.Context, Key) ([]string, bool) { return nil, false }
func (Nop) Set(context.Context, Key, []string)        {}
func (Nop) InvalidateDate(context.Context, string)    {}

func cloneBlocks(blocks []string) []string {
	if blocks == nil {
		return []string{}
	}
	out := make([]string, len(blocks))
	copy(out, blocks)
	return out
}

package storage

import "sort"

func sortByCreatedAsc[T any](items []*T, created func(*T) int64) {
	sort.SliceStable(items, func(i, j int) bool {
		return created(items[i]) < created(items[j])
	})
}

func sortByCreatedDesc[T any](items []*T, created func(*T) int64) {
	sort.SliceStable(items, func(i, j int) bool {
		return created(items[i]) > created(items[j])
	})
}

func limitSlice[T any](items []*T, limit int) []*T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}

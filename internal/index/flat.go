package index

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Flat is an in-process Index that scans every stored vector on each query.
// Exact and dependency-free, it is the default backend for small datasets
// and for tests; swap in Qdrant or Postgres when the dataset outgrows it.
type Flat struct {
	// dims is the expected vector dimensionality; all inserts must match.
	dims int

	mu sync.RWMutex
	// entries preserves insertion order so equal-distance results are
	// returned deterministically.
	entries []flatEntry
	// pos maps merchant id to its slot in entries for in-place upserts.
	pos map[string]int
}

type flatEntry struct {
	id  string
	vec []float32
}

// NewFlat returns an empty Flat index for vectors of the given dimensionality.
func NewFlat(dims int) *Flat {
	return &Flat{dims: dims, pos: make(map[string]int)}
}

// Upsert stores or replaces the vector for the given merchant id.
func (f *Flat) Upsert(_ context.Context, id string, vector []float32) error {
	if id == "" {
		return fmt.Errorf("index: upsert: empty id")
	}
	if len(vector) != f.dims {
		return fmt.Errorf("index: upsert %s: dimension mismatch: want %d, got %d", id, f.dims, len(vector))
	}
	vec := make([]float32, len(vector))
	copy(vec, vector)

	f.mu.Lock()
	defer f.mu.Unlock()
	if i, ok := f.pos[id]; ok {
		f.entries[i].vec = vec
		return nil
	}
	f.pos[id] = len(f.entries)
	f.entries = append(f.entries, flatEntry{id: id, vec: vec})
	return nil
}

// Search scans all stored vectors and returns the k nearest ids by squared
// Euclidean distance, nearest first.
func (f *Flat) Search(_ context.Context, query []float32, k int, exclude string) ([]string, error) {
	if len(query) != f.dims {
		return nil, fmt.Errorf("index: search: dimension mismatch: want %d, got %d", f.dims, len(query))
	}
	if k <= 0 {
		return nil, nil
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	type scored struct {
		id   string
		dist float32
	}
	candidates := make([]scored, 0, len(f.entries))
	for _, e := range f.entries {
		if e.id == exclude {
			continue
		}
		candidates = append(candidates, scored{id: e.id, dist: sqDist(query, e.vec)})
	}
	// Stable sort keeps insertion order for equal distances.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].dist < candidates[j].dist
	})

	if k > len(candidates) {
		k = len(candidates)
	}
	ids := make([]string, k)
	for i := range k {
		ids[i] = candidates[i].id
	}
	return ids, nil
}

// Len reports the number of stored vectors.
func (f *Flat) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.entries)
}

// Close is a no-op for the in-process index.
func (f *Flat) Close() error { return nil }

// sqDist returns the squared Euclidean distance between two equal-length
// vectors. The square root is skipped since only the ordering matters.
func sqDist(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

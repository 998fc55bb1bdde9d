package store

import (
	"context"
	"fmt"
	"math"
	"sync"

	"docqa/types"
)

type memoryCollection struct {
	dimensions int
	ids        map[string]int
	records    []types.StoredRecord
}

// MemoryStore is a brute-force cosine store for development and tests.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memoryCollection
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]*memoryCollection)}
}

func (m *MemoryStore) CollectionExists(_ context.Context, name string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.collections[name]
	return ok, nil
}

func (m *MemoryStore) CreateCollection(_ context.Context, name string, dimensions int, metric types.Metric) error {
	if metric != types.MetricCosine {
		return fmt.Errorf("unsupported metric %q", metric)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.collections[name]; !ok {
		m.collections[name] = &memoryCollection{dimensions: dimensions, ids: make(map[string]int)}
	}
	return nil
}

func (m *MemoryStore) Upsert(_ context.Context, collection string, records []types.StoredRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.collections[collection]
	if !ok {
		return fmt.Errorf("collection %s not found", collection)
	}
	for _, r := range records {
		if len(r.Vector) != c.dimensions {
			return fmt.Errorf("vector dimension mismatch: got %d, want %d", len(r.Vector), c.dimensions)
		}
	}
	for _, r := range records {
		if i, ok := c.ids[r.ID]; ok {
			c.records[i] = r
			continue
		}
		c.ids[r.ID] = len(c.records)
		c.records = append(c.records, r)
	}
	return nil
}

func (m *MemoryStore) Search(_ context.Context, collection string, vector []float32, limit int) ([]types.SearchHit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.collections[collection]
	if !ok {
		return nil, fmt.Errorf("collection %s not found", collection)
	}
	if len(vector) != c.dimensions {
		return nil, fmt.Errorf("vector dimension mismatch: got %d, want %d", len(vector), c.dimensions)
	}

	hits := make([]types.SearchHit, 0, len(c.records))
	for _, r := range c.records {
		hits = append(hits, types.SearchHit{Record: r, Score: cosine(r.Vector, vector)})
	}
	// the VectorStore orders and truncates
	return hits, nil
}

func (m *MemoryStore) Count(collection string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c, ok := m.collections[collection]; ok {
		return len(c.records)
	}
	return 0
}

func (m *MemoryStore) Close() error {
	return nil
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

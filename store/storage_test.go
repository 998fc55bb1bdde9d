package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"docqa/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDB struct {
	mu        sync.Mutex
	exists    bool
	existsErr error
	createErr error
	upsertErr error
	searchErr error

	checks   atomic.Int32
	creates  atomic.Int32
	upserted [][]types.StoredRecord
	hits     []types.SearchHit
	limit    int
}

func (f *fakeDB) CollectionExists(context.Context, string) (bool, error) {
	f.checks.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.exists, f.existsErr
}

func (f *fakeDB) CreateCollection(context.Context, string, int, types.Metric) error {
	f.creates.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.exists = true
	return nil
}

func (f *fakeDB) Upsert(_ context.Context, _ string, records []types.StoredRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserted = append(f.upserted, records)
	return nil
}

func (f *fakeDB) Search(_ context.Context, _ string, _ []float32, limit int) ([]types.SearchHit, error) {
	f.limit = limit
	return f.hits, f.searchErr
}

func (f *fakeDB) Close() error { return nil }

func TestEnsureCollection_CreatesOnce(t *testing.T) {
	db := &fakeDB{}
	vs := NewVectorStore(db, nil)
	ctx := context.Background()

	require.NoError(t, vs.EnsureCollection(ctx, "docs", 4, types.MetricCosine))
	require.NoError(t, vs.EnsureCollection(ctx, "docs", 4, types.MetricCosine))

	assert.Equal(t, int32(1), db.creates.Load())
	assert.Equal(t, int32(1), db.checks.Load())
}

func TestEnsureCollection_ExistingIsLeftAlone(t *testing.T) {
	db := &fakeDB{exists: true}
	vs := NewVectorStore(db, nil)

	require.NoError(t, vs.EnsureCollection(context.Background(), "docs", 4, types.MetricCosine))
	assert.Zero(t, db.creates.Load())
}

func TestEnsureCollection_Concurrent(t *testing.T) {
	db := &fakeDB{}
	vs := NewVectorStore(db, nil)

	var wg sync.WaitGroup
	errs := make([]error, 16)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = vs.EnsureCollection(context.Background(), "docs", 4, types.MetricCosine)
		}()
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), db.creates.Load())
}

func TestEnsureCollection_ToleratesLostRace(t *testing.T) {
	db := &raceDB{fakeDB: &fakeDB{createErr: errors.New("already exists")}}
	vs := NewVectorStore(db, nil)

	require.NoError(t, vs.EnsureCollection(context.Background(), "docs", 4, types.MetricCosine))
}

func TestEnsureCollection_Errors(t *testing.T) {
	t.Run("check fails", func(t *testing.T) {
		vs := NewVectorStore(&fakeDB{existsErr: errors.New("connection refused")}, nil)
		err := vs.EnsureCollection(context.Background(), "docs", 4, types.MetricCosine)
		assert.ErrorIs(t, err, types.ErrVectorStore)
	})

	t.Run("create fails", func(t *testing.T) {
		vs := NewVectorStore(&fakeDB{createErr: errors.New("disk full")}, nil)
		err := vs.EnsureCollection(context.Background(), "docs", 4, types.MetricCosine)
		assert.ErrorIs(t, err, types.ErrVectorStore)
		assert.Contains(t, err.Error(), "disk full")
	})

	t.Run("bad dimensionality", func(t *testing.T) {
		vs := NewVectorStore(&fakeDB{}, nil)
		err := vs.EnsureCollection(context.Background(), "docs", 0, types.MetricCosine)
		assert.ErrorIs(t, err, types.ErrVectorStore)
	})

	t.Run("failure is retried", func(t *testing.T) {
		db := &fakeDB{existsErr: errors.New("timeout")}
		vs := NewVectorStore(db, nil)
		require.Error(t, vs.EnsureCollection(context.Background(), "docs", 4, types.MetricCosine))

		db.mu.Lock()
		db.existsErr = nil
		db.mu.Unlock()
		require.NoError(t, vs.EnsureCollection(context.Background(), "docs", 4, types.MetricCosine))
	})
}

// blockingDB holds the first existence check until released.
type blockingDB struct {
	*fakeDB
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingDB) CollectionExists(ctx context.Context, name string) (bool, error) {
	b.once.Do(func() { close(b.entered) })
	select {
	case <-b.release:
	case <-ctx.Done():
		return false, ctx.Err()
	}
	return b.fakeDB.CollectionExists(ctx, name)
}

func TestEnsureCollection_CanceledCallerDoesNotFailOthers(t *testing.T) {
	db := &blockingDB{fakeDB: &fakeDB{}, entered: make(chan struct{}), release: make(chan struct{})}
	vs := NewVectorStore(db, nil)

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() { first <- vs.EnsureCollection(ctx, "docs", 4, types.MetricCosine) }()
	<-db.entered

	second := make(chan error, 1)
	go func() { second <- vs.EnsureCollection(context.Background(), "docs", 4, types.MetricCosine) }()

	cancel()
	err := <-first
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, types.ErrVectorStore)

	close(db.release)
	require.NoError(t, <-second)
	require.NoError(t, vs.EnsureCollection(context.Background(), "docs", 4, types.MetricCosine))
	assert.Equal(t, int32(1), db.creates.Load())
}

// raceDB reports the collection as existing only after a create attempt.
type raceDB struct {
	*fakeDB
	attempted atomic.Bool
}

func (r *raceDB) CollectionExists(ctx context.Context, name string) (bool, error) {
	if r.attempted.Load() {
		return true, nil
	}
	return r.fakeDB.CollectionExists(ctx, name)
}

func (r *raceDB) CreateCollection(ctx context.Context, name string, dims int, metric types.Metric) error {
	r.attempted.Store(true)
	return r.fakeDB.CreateCollection(ctx, name, dims, metric)
}

func TestUpsert_AssignsIDs(t *testing.T) {
	db := &fakeDB{}
	vs := NewVectorStore(db, nil)

	records := []types.StoredRecord{
		{Vector: []float32{1, 0}},
		{ID: "fixed", Vector: []float32{0, 1}},
		{Vector: []float32{1, 1}},
	}
	require.NoError(t, vs.Upsert(context.Background(), "docs", records))

	require.Len(t, db.upserted, 1, "records are written in a single batch")
	batch := db.upserted[0]
	require.Len(t, batch, 3)
	assert.NotEmpty(t, batch[0].ID)
	assert.Equal(t, "fixed", batch[1].ID)
	assert.NotEqual(t, batch[0].ID, batch[2].ID)
}

func TestUpsert_Empty(t *testing.T) {
	db := &fakeDB{}
	require.NoError(t, NewVectorStore(db, nil).Upsert(context.Background(), "docs", nil))
	assert.Empty(t, db.upserted)
}

func TestUpsert_WrapsError(t *testing.T) {
	vs := NewVectorStore(&fakeDB{upsertErr: errors.New("boom")}, nil)
	err := vs.Upsert(context.Background(), "docs", []types.StoredRecord{{Vector: []float32{1}}})
	assert.ErrorIs(t, err, types.ErrVectorStore)
}

func TestSearch_SortsAndCaps(t *testing.T) {
	db := &fakeDB{hits: []types.SearchHit{
		{Record: types.StoredRecord{ID: "a"}, Score: 0.1},
		{Record: types.StoredRecord{ID: "b"}, Score: 0.9},
		{Record: types.StoredRecord{ID: "c"}, Score: 0.5},
		{Record: types.StoredRecord{ID: "d"}, Score: 0.7},
	}}
	vs := NewVectorStore(db, nil)

	hits, err := vs.Search(context.Background(), "docs", []float32{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, 3, db.limit)

	ids := []string{hits[0].Record.ID, hits[1].Record.ID, hits[2].Record.ID}
	assert.Equal(t, []string{"b", "d", "c"}, ids)
}

func TestSearch_EdgeCases(t *testing.T) {
	vs := NewVectorStore(&fakeDB{}, nil)

	hits, err := vs.Search(context.Background(), "docs", []float32{1}, 0)
	require.NoError(t, err)
	assert.Empty(t, hits)

	_, err = vs.Search(context.Background(), "docs", nil, 5)
	assert.ErrorIs(t, err, types.ErrInvalidInput)

	hits, err = vs.Search(context.Background(), "docs", []float32{1}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)

	vs = NewVectorStore(&fakeDB{searchErr: errors.New("unavailable")}, nil)
	_, err = vs.Search(context.Background(), "docs", []float32{1}, 5)
	assert.ErrorIs(t, err, types.ErrVectorStore)
}

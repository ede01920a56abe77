// Package mirror holds the authoritative in-memory snapshot of the watchlist
// and mediates every mutation through the store. The snapshot only changes
// after the store confirms a write; nothing is applied speculatively.
//
// Mutations on the same record id are serialized: at most one store call per
// id is in flight, and queued mutations run in submission order. Load waits
// for in-flight mutations and holds new ones back while it replaces the
// snapshot.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/mesh-intelligence/watchlist/internal/metrics"
	"github.com/mesh-intelligence/watchlist/internal/update"
	"github.com/mesh-intelligence/watchlist/pkg/types"
)

// opLoad labels a full reload in logs and errors.
const opLoad = "load"

// Config tunes a Mirror. Zero values select defaults.
type Config struct {
	// OpTimeout bounds each operation, lock waits included.
	OpTimeout time.Duration
	// MaxInFlight bounds concurrent mutations across all ids.
	MaxInFlight int
	// Logger receives debug lines for confirmed mutations and warnings for
	// failures. Defaults to a logger that discards everything.
	Logger logrus.FieldLogger
	// NewID generates ids for candidates that have none. Defaults to UUID v7.
	NewID func() string
}

// Mirror is the client-visible snapshot of the watchlist table.
type Mirror struct {
	store   types.Store
	log     logrus.FieldLogger
	timeout time.Duration
	newID   func() string

	gate     *semaphore.Weighted
	gateSize int64
	locks    *keyedLock
	loads    singleflight.Group

	mu      sync.RWMutex
	loaded  bool
	order   []string
	records map[string]types.Record
}

// New creates an unloaded mirror over store. Call Load to fill it.
func New(store types.Store, cfg Config) *Mirror {
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = types.DefaultOpTimeout
	}
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = types.DefaultMaxInFlight
	}
	if cfg.Logger == nil {
		l := logrus.New()
		l.SetOutput(discard{})
		cfg.Logger = l
	}
	if cfg.NewID == nil {
		cfg.NewID = newUUID
	}
	return &Mirror{
		store:    store,
		log:      cfg.Logger,
		timeout:  cfg.OpTimeout,
		newID:    cfg.NewID,
		gate:     semaphore.NewWeighted(int64(cfg.MaxInFlight)),
		gateSize: int64(cfg.MaxInFlight),
		locks:    newKeyedLock(),
		records:  make(map[string]types.Record),
	}
}

// newUUID generates a UUID v7 string.
func newUUID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// Load replaces the snapshot with a full scan of the table. On failure the
// snapshot is emptied and marked unloaded; stale data is never kept.
// Concurrent calls share one scan.
func (m *Mirror) Load(ctx context.Context) error {
	_, err, _ := m.loads.Do(opLoad, func() (any, error) {
		return nil, m.load(ctx)
	})
	return err
}

func (m *Mirror) load(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	if err := m.gate.Acquire(ctx, m.gateSize); err != nil {
		err = types.Unavailable(opLoad, "", fmt.Errorf("waiting for in-flight mutations: %w", err))
		m.clear(err)
		return err
	}
	defer m.gate.Release(m.gateSize)

	recs, err := call(ctx, opLoad, "", func(ctx context.Context) ([]types.Record, error) {
		return m.store.Scan(ctx)
	})
	if err != nil {
		m.clear(err)
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = make(map[string]types.Record, len(recs))
	m.order = m.order[:0]
	for _, r := range recs {
		if _, dup := m.records[r.ID]; !dup {
			m.order = append(m.order, r.ID)
		}
		m.records[r.ID] = r
	}
	m.loaded = true
	metrics.SetSnapshotSize(len(m.order))
	m.log.WithField("op", opLoad).WithField("records", len(m.order)).Debug("snapshot loaded")
	return nil
}

// clear empties the snapshot and marks it unloaded after a failed load.
func (m *Mirror) clear(cause error) {
	m.mu.Lock()
	m.records = make(map[string]types.Record)
	m.order = m.order[:0]
	m.loaded = false
	m.mu.Unlock()
	metrics.SetSnapshotSize(0)
	m.log.WithError(cause).WithField("op", opLoad).Warn("load failed, snapshot cleared")
}

// Add validates and normalizes c, persists it, and inserts the confirmed
// record. Validation failures never reach the store.
func (m *Mirror) Add(ctx context.Context, c types.Candidate) (types.Record, error) {
	rec, err := c.Normalize()
	if err != nil {
		return types.Record{}, err
	}
	return m.create(ctx, rec)
}

// Restore creates a previously exported record in one store call, keeping
// its watched flag. The other fields are normalized as in Add.
func (m *Mirror) Restore(ctx context.Context, r types.Record) (types.Record, error) {
	rec, err := types.Candidate{
		ID:     r.ID,
		Title:  r.Title,
		Genre:  r.Genre,
		Review: r.Review,
		Rating: r.Rating,
	}.Normalize()
	if err != nil {
		return types.Record{}, err
	}
	rec.Watched = r.Watched
	return m.create(ctx, rec)
}

func (m *Mirror) create(ctx context.Context, rec types.Record) (types.Record, error) {
	if rec.ID == "" {
		rec.ID = m.newID()
	}

	ctx, done, err := m.begin(ctx, types.OpCreate, rec.ID)
	if err != nil {
		return types.Record{}, err
	}
	defer done()

	if _, ok := m.Get(rec.ID); ok {
		return types.Record{}, fmt.Errorf("%w: %s", types.ErrDuplicateID, rec.ID)
	}

	saved, err := call(ctx, types.OpCreate, rec.ID, func(ctx context.Context) (types.Record, error) {
		return m.store.Create(ctx, rec)
	})
	if err != nil {
		m.warn(types.OpCreate, rec.ID, err)
		return types.Record{}, err
	}

	m.mu.Lock()
	if _, ok := m.records[saved.ID]; !ok {
		m.order = append(m.order, saved.ID)
	}
	m.records[saved.ID] = saved
	metrics.SetSnapshotSize(len(m.order))
	m.mu.Unlock()

	m.debug(types.OpCreate, saved.ID, "record added")
	return saved, nil
}

// ToggleWatched flips the watched flag of id. The store's returned
// attributes are merged over the prior record.
func (m *Mirror) ToggleWatched(ctx context.Context, id string) (types.Record, error) {
	ctx, done, err := m.begin(ctx, types.OpUpdate, id)
	if err != nil {
		return types.Record{}, err
	}
	defer done()

	prior, ok := m.Get(id)
	if !ok {
		return types.Record{}, fmt.Errorf("%w: %s", types.ErrNotFound, id)
	}
	return m.apply(ctx, prior, types.Changes{types.FieldWatched: !prior.Watched})
}

// Update applies a partial update to id. A change set that sets nothing
// returns the current record without contacting the store.
func (m *Mirror) Update(ctx context.Context, id string, changes types.Changes) (types.Record, error) {
	stmt, err := update.Build(changes)
	if err != nil {
		return types.Record{}, err
	}

	ctx, done, err := m.begin(ctx, types.OpUpdate, id)
	if err != nil {
		return types.Record{}, err
	}
	defer done()

	prior, ok := m.Get(id)
	if !ok {
		return types.Record{}, fmt.Errorf("%w: %s", types.ErrNotFound, id)
	}
	if stmt.Empty() {
		return prior, nil
	}
	return m.apply(ctx, prior, changes)
}

// apply sends changes for prior.ID and merges the result. The caller holds
// the id lock.
func (m *Mirror) apply(ctx context.Context, prior types.Record, changes types.Changes) (types.Record, error) {
	attrs, err := call(ctx, types.OpUpdate, prior.ID, func(ctx context.Context) (types.Attributes, error) {
		return m.store.Update(ctx, prior.ID, changes)
	})
	if err != nil {
		m.warn(types.OpUpdate, prior.ID, err)
		if errors.Is(err, types.ErrItemMissing) {
			m.reconcile(ctx, prior.ID)
		}
		return types.Record{}, err
	}

	merged := prior.Overlay(attrs)
	m.mu.Lock()
	if _, ok := m.records[prior.ID]; ok {
		m.records[prior.ID] = merged
	}
	m.mu.Unlock()

	m.debug(types.OpUpdate, prior.ID, "record updated")
	return merged, nil
}

// reconcile re-reads id after the store reported it missing. A confirmed
// absence drops the stale entry; a record that exists again replaces it.
// A failed read leaves the snapshot alone. The caller holds the id lock.
func (m *Mirror) reconcile(ctx context.Context, id string) {
	rec, err := call(ctx, types.OpGet, id, func(ctx context.Context) (types.Record, error) {
		return m.store.Get(ctx, id)
	})
	switch {
	case errors.Is(err, types.ErrItemMissing):
		m.drop(id)
		m.debug(types.OpGet, id, "record gone remotely, dropped")
	case err != nil:
		m.warn(types.OpGet, id, err)
	default:
		m.mu.Lock()
		if _, ok := m.records[id]; ok {
			m.records[id] = rec
		}
		m.mu.Unlock()
	}
}

// drop removes id from the snapshot.
func (m *Mirror) drop(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[id]; ok {
		delete(m.records, id)
		for i, o := range m.order {
			if o == id {
				m.order = append(m.order[:i], m.order[i+1:]...)
				break
			}
		}
	}
	metrics.SetSnapshotSize(len(m.order))
}

// Remove deletes id from the store and then from the snapshot. An item the
// store no longer has counts as deleted.
func (m *Mirror) Remove(ctx context.Context, id string) error {
	ctx, done, err := m.begin(ctx, types.OpDelete, id)
	if err != nil {
		return err
	}
	defer done()

	_, err = call(ctx, types.OpDelete, id, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, m.store.Delete(ctx, id)
	})
	if err != nil && !errors.Is(err, types.ErrItemMissing) {
		m.warn(types.OpDelete, id, err)
		return err
	}

	m.drop(id)
	m.debug(types.OpDelete, id, "record removed")
	return nil
}

// Snapshot returns a copy of the records in snapshot order.
func (m *Mirror) Snapshot() []types.Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]types.Record, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.records[id])
	}
	return out
}

// Get returns the snapshot entry for id.
func (m *Mirror) Get(id string) (types.Record, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[id]
	return r, ok
}

// Len returns the number of records in the snapshot.
func (m *Mirror) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.order)
}

// Loaded reports whether the last Load succeeded.
func (m *Mirror) Loaded() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loaded
}

// begin applies the operation timeout and takes the id lock, then a gate
// slot. Waiters queued on a busy id hold no slot, so one hot id cannot starve
// the others. The returned func releases both and cancels the context.
func (m *Mirror) begin(ctx context.Context, op, id string) (context.Context, func(), error) {
	if id == "" {
		return nil, nil, fmt.Errorf("%w: empty id", types.ErrNotFound)
	}
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	unlock, err := m.locks.Lock(ctx, id)
	if err != nil {
		cancel()
		return nil, nil, types.Unavailable(op, id, fmt.Errorf("waiting for record lock: %w", err))
	}
	if err := m.gate.Acquire(ctx, 1); err != nil {
		unlock()
		cancel()
		return nil, nil, types.Unavailable(op, id, fmt.Errorf("waiting for reload: %w", err))
	}
	return ctx, func() {
		m.gate.Release(1)
		unlock()
		cancel()
	}, nil
}

// call runs fn and gives up when ctx is done, so a store that never answers
// cannot hold a record lock past the operation timeout.
func call[T any](ctx context.Context, op, id string, fn func(context.Context) (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		ch <- result{v, err}
	}()
	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, types.Unavailable(op, id, ctx.Err())
	}
}

func (m *Mirror) warn(op, id string, err error) {
	m.log.WithFields(logrus.Fields{"op": op, "id": id}).WithError(err).Warn("store call failed")
}

func (m *Mirror) debug(op, id, msg string) {
	m.log.WithFields(logrus.Fields{"op": op, "id": id}).Debug(msg)
}

// discard swallows log output.
type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

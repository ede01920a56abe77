package metrics

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/watchlist/pkg/types"
)

// stubStore answers every call with err.
type stubStore struct{ err error }

func (s stubStore) Scan(context.Context) ([]types.Record, error) { return nil, s.err }
func (s stubStore) Get(context.Context, string) (types.Record, error) {
	return types.Record{}, s.err
}
func (s stubStore) Create(_ context.Context, r types.Record) (types.Record, error) { return r, s.err }
func (s stubStore) Update(context.Context, string, types.Changes) (types.Attributes, error) {
	return nil, s.err
}
func (s stubStore) Delete(context.Context, string) error { return s.err }
func (s stubStore) Close() error                         { return nil }

func TestOutcome(t *testing.T) {
	assert.Equal(t, OutcomeOK, Outcome(nil))
	assert.Equal(t, OutcomeMissing, Outcome(types.WriteRejected(types.OpDelete, "a", types.ErrItemMissing)))
	assert.Equal(t, OutcomeWriteError, Outcome(types.WriteRejected(types.OpCreate, "a", errors.New("x"))))
	assert.Equal(t, OutcomeUnavailable, Outcome(types.Unavailable(types.OpScan, "", errors.New("x"))))
	assert.Equal(t, OutcomeInvalid, Outcome(types.ErrUnknownField))
}

func TestInstrumentStore_CountsOutcomes(t *testing.T) {
	ok := InstrumentStore(stubStore{}, "test-ok")
	failing := InstrumentStore(stubStore{err: types.Unavailable(types.OpScan, "", errors.New("down"))}, "test-fail")

	_, err := ok.Create(context.Background(), types.Record{ID: "a"})
	require.NoError(t, err)
	_, err = failing.Scan(context.Background())
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(storeOperations.WithLabelValues("test-ok", types.OpCreate, OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(storeOperations.WithLabelValues("test-fail", types.OpScan, OutcomeUnavailable)))
}

func TestSetSnapshotSize(t *testing.T) {
	SetSnapshotSize(7)
	assert.Equal(t, 7.0, testutil.ToFloat64(snapshotRecords))
}

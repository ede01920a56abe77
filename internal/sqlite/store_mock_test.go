package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/watchlist/pkg/types"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return newStore(db, "items"), mock
}

func TestStore_ScanFailureIsUnavailable(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT id, doc FROM "items"`).WillReturnError(errors.New("disk I/O error"))

	got, err := s.Scan(context.Background())
	assert.Nil(t, got, "a failed scan must not look like an empty table")
	assert.ErrorIs(t, err, types.ErrStoreUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ScanRowErrorIsUnavailable(t *testing.T) {
	s, mock := newMockStore(t)
	rows := sqlmock.NewRows([]string{"id", "doc"}).
		AddRow("a", `{"title":"Up"}`).
		RowError(0, errors.New("corrupt page"))
	mock.ExpectQuery(`SELECT id, doc FROM "items"`).WillReturnRows(rows)

	_, err := s.Scan(context.Background())
	assert.ErrorIs(t, err, types.ErrStoreUnavailable)
}

func TestStore_CreateFailureIsWriteError(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec(`INSERT INTO "items"`).WillReturnError(errors.New("constraint failed"))

	_, err := s.Create(context.Background(), types.Record{ID: "a", Title: "Up"})
	assert.ErrorIs(t, err, types.ErrStoreWrite)
	assert.NotErrorIs(t, err, types.ErrStoreUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_UpdateRollsBackOnFailure(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "items" SET doc = json_set`).
		WithArgs("true", "a").
		WillReturnError(errors.New("readonly database"))
	mock.ExpectRollback()

	_, err := s.Update(context.Background(), "a", types.Changes{types.FieldWatched: true})
	assert.ErrorIs(t, err, types.ErrStoreWrite)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_WriteAfterDeadlineIsUnavailable(t *testing.T) {
	s, mock := newMockStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	mock.ExpectExec(`DELETE FROM "items"`).WillReturnError(context.Canceled)

	err := s.Delete(ctx, "a")
	assert.ErrorIs(t, err, types.ErrStoreUnavailable)
}

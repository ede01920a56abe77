// Package sqlite implements the watchlist table on a local SQLite database.
// Each item is one JSON document keyed by id, so the table is as schemaless as
// the remote one; partial updates are applied with json_set.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/watchlist/internal/update"
	"github.com/mesh-intelligence/watchlist/pkg/types"
)

// errClosed is the cause reported after Close.
var errClosed = errors.New("sqlite store is closed")

// Store implements types.Store on SQLite.
type Store struct {
	mu     sync.RWMutex
	db     *sql.DB
	table  string // quoted table name
	closed bool
}

// Open creates DataDir if needed, opens watchlist.db inside it and ensures the
// items table exists.
func Open(cfg types.Config) (*Store, error) {
	dataDir := cfg.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dataDir, dbFileName))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection keeps writers from tripping over SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	table := cfg.Table
	if table == "" {
		table = types.DefaultTable
	}
	s := newStore(db, table)
	if _, err := db.Exec(fmt.Sprintf(createItems, s.table)); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}
	return s, nil
}

// newStore wraps an open database. The table must already exist.
func newStore(db *sql.DB, table string) *Store {
	return &Store{db: db, table: quoteIdent(table)}
}

// Scan returns every item in insertion order.
func (s *Store) Scan(ctx context.Context) ([]types.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, types.Unavailable(types.OpScan, "", errClosed)
	}

	rows, err := s.db.QueryContext(ctx, "SELECT id, doc FROM "+s.table+" ORDER BY rowid")
	if err != nil {
		return nil, types.Unavailable(types.OpScan, "", errors.Wrap(err, "query items"))
	}
	defer rows.Close()

	var records []types.Record
	for rows.Next() {
		var id, doc string
		if err := rows.Scan(&id, &doc); err != nil {
			return nil, types.Unavailable(types.OpScan, "", errors.Wrap(err, "scan item"))
		}
		records = append(records, decodeDoc(id, doc))
	}
	if err := rows.Err(); err != nil {
		return nil, types.Unavailable(types.OpScan, "", errors.Wrap(err, "iterate items"))
	}
	if records == nil {
		records = []types.Record{}
	}
	return records, nil
}

// Get returns a single item.
func (s *Store) Get(ctx context.Context, id string) (types.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return types.Record{}, types.Unavailable(types.OpGet, id, errClosed)
	}

	var doc string
	err := s.db.QueryRowContext(ctx, "SELECT doc FROM "+s.table+" WHERE id = ?", id).Scan(&doc)
	if err == sql.ErrNoRows {
		return types.Record{}, &types.StoreError{Op: types.OpGet, ID: id, Kind: types.ErrItemMissing}
	}
	if err != nil {
		return types.Record{}, types.Unavailable(types.OpGet, id, errors.Wrap(err, "query item"))
	}
	return decodeDoc(id, doc), nil
}

// Create writes rec, replacing any item with the same id.
func (s *Store) Create(ctx context.Context, rec types.Record) (types.Record, error) {
	if rec.ID == "" {
		return types.Record{}, types.WriteRejected(types.OpCreate, "", types.ErrInvalidID)
	}
	doc, err := json.Marshal(rec.Attributes())
	if err != nil {
		return types.Record{}, types.WriteRejected(types.OpCreate, rec.ID, errors.Wrap(err, "marshal item"))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return types.Record{}, types.Unavailable(types.OpCreate, rec.ID, errClosed)
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO `+s.table+` (id, doc) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET doc = excluded.doc`, rec.ID, string(doc))
	if err != nil {
		return types.Record{}, classifyWrite(ctx, types.OpCreate, rec.ID, errors.Wrap(err, "insert item"))
	}
	return rec, nil
}

// Update applies changes to an existing item and returns the stored document.
func (s *Store) Update(ctx context.Context, id string, changes types.Changes) (types.Attributes, error) {
	stmt, err := update.Build(changes)
	if err != nil {
		return nil, err
	}
	if stmt.Empty() {
		return nil, nil
	}

	sets := make([]string, 0, len(stmt.Assignments))
	args := make([]any, 0, len(stmt.Assignments)+1)
	for _, a := range stmt.Assignments {
		v, err := json.Marshal(a.Value)
		if err != nil {
			return nil, types.WriteRejected(types.OpUpdate, id, errors.Wrap(err, "marshal value"))
		}
		sets = append(sets, fmt.Sprintf("'$.%s', json(?)", stmt.Names[a.Name]))
		args = append(args, string(v))
	}
	args = append(args, id)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, types.Unavailable(types.OpUpdate, id, errClosed)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, classifyWrite(ctx, types.OpUpdate, id, errors.Wrap(err, "begin"))
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"UPDATE "+s.table+" SET doc = json_set(doc, "+strings.Join(sets, ", ")+") WHERE id = ?", args...)
	if err != nil {
		return nil, classifyWrite(ctx, types.OpUpdate, id, errors.Wrap(err, "update item"))
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, classifyWrite(ctx, types.OpUpdate, id, errors.Wrap(err, "rows affected"))
	} else if n == 0 {
		return nil, types.WriteRejected(types.OpUpdate, id, types.ErrItemMissing)
	}

	var doc string
	if err := tx.QueryRowContext(ctx, "SELECT doc FROM "+s.table+" WHERE id = ?", id).Scan(&doc); err != nil {
		return nil, classifyWrite(ctx, types.OpUpdate, id, errors.Wrap(err, "read back item"))
	}
	if err := tx.Commit(); err != nil {
		return nil, classifyWrite(ctx, types.OpUpdate, id, errors.Wrap(err, "commit"))
	}

	var attrs types.Attributes
	if err := json.Unmarshal([]byte(doc), &attrs); err != nil {
		return nil, types.WriteRejected(types.OpUpdate, id, errors.Wrap(err, "decode item"))
	}
	return attrs, nil
}

// Delete removes an item. A missing item is reported as ErrItemMissing.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return types.Unavailable(types.OpDelete, id, errClosed)
	}

	res, err := s.db.ExecContext(ctx, "DELETE FROM "+s.table+" WHERE id = ?", id)
	if err != nil {
		return classifyWrite(ctx, types.OpDelete, id, errors.Wrap(err, "delete item"))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return classifyWrite(ctx, types.OpDelete, id, errors.Wrap(err, "rows affected"))
	}
	if n == 0 {
		return types.WriteRejected(types.OpDelete, id, types.ErrItemMissing)
	}
	return nil
}

// Close releases the database. Idempotent.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// classifyWrite maps a failed write to ErrStoreUnavailable when the context
// ran out and ErrStoreWrite otherwise.
func classifyWrite(ctx context.Context, op, id string, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return types.Unavailable(op, id, err)
	}
	return types.WriteRejected(op, id, err)
}

// decodeDoc turns a stored document into a record. Unparseable documents
// decode to a record carrying only the id and defaults.
func decodeDoc(id, doc string) types.Record {
	var attrs map[string]any
	_ = json.Unmarshal([]byte(doc), &attrs)
	rec := types.RecordFromAttributes(attrs)
	rec.ID = id
	return rec
}

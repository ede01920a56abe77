package sqlite

import "strings"

// dbFileName is the database file created inside the data directory.
const dbFileName = "watchlist.db"

// createItems holds one JSON document per item. The table has no schema
// beyond the key; attribute shape is whatever the writer stored.
const createItems = `CREATE TABLE IF NOT EXISTS %s (
    id TEXT PRIMARY KEY,
    doc TEXT NOT NULL
);`

// quoteIdent quotes a table name for use in SQL text.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

package jsonl

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/watchlist/pkg/types"
)

func TestRead_SkipsMalformedLines(t *testing.T) {
	input := strings.Join([]string{
		`{"id":"a","title":"Up","genre":"Family","watched":true,"review":"","rating":5}`,
		``,
		`not json`,
		`{"title":"no id"}`,
		`[1,2,3]`,
		`{"id":"b","title":"Heat","rating":"9"}`,
	}, "\n")

	got, err := Read(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []types.Record{
		{ID: "a", Title: "Up", Genre: "Family", Watched: true, Rating: 5},
		{ID: "b", Title: "Heat", Genre: types.DefaultGenre, Rating: 5},
	}, got)
}

func TestWrite_OneRecordPerLine(t *testing.T) {
	var buf bytes.Buffer
	err := Write(&buf, []types.Record{
		{ID: "a", Title: "Up", Genre: "Family", Rating: 5},
		{ID: "b", Title: "Heat", Genre: "Action", Rating: 2},
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.JSONEq(t, `{"id":"a","title":"Up","genre":"Family","watched":false,"review":"","rating":5}`, lines[0])
}

func TestWriteFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watchlist.jsonl")
	records := []types.Record{
		{ID: "a", Title: "Up", Genre: "Family", Watched: true, Review: "sweet", Rating: 5},
		{ID: "b", Title: "Heat", Genre: "Action", Rating: 2},
	}
	require.NoError(t, WriteFile(path, records))

	got, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, records, got)

	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestReadFile_Missing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "absent.jsonl"))
	assert.Error(t, err)
}

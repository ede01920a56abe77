package view

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/watchlist/pkg/types"
)

var (
	up   = types.Record{ID: "a", Title: "Up", Genre: "Family", Rating: 5}
	heat = types.Record{ID: "b", Title: "Heat", Genre: "Action", Rating: 2}
	coco = types.Record{ID: "c", Title: "Coco", Genre: "Family", Rating: 2}
	ran  = types.Record{ID: "d", Title: "Ran", Genre: "Drama", Rating: 4}
)

func TestParseSortOrder(t *testing.T) {
	tests := []struct {
		in   string
		want SortOrder
	}{
		{"", SortDefault},
		{"default", SortDefault},
		{"highest", SortHighest},
		{" Lowest ", SortLowest},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSortOrder(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseSortOrder("newest")
	assert.ErrorIs(t, err, types.ErrInvalidSortOrder)
	assert.ErrorIs(t, err, types.ErrValidation)
}

func TestFilter(t *testing.T) {
	in := []types.Record{up, heat, coco}

	assert.Equal(t, in, Filter(in, ""))
	assert.Equal(t, []types.Record{up, coco}, Filter(in, "Family"))
	assert.Empty(t, Filter(in, "family"))
	assert.Empty(t, Filter(nil, "Family"))
}

func TestSort(t *testing.T) {
	in := []types.Record{heat, up, ran, coco}

	assert.Equal(t, in, Sort(in, SortDefault))
	assert.Equal(t, []types.Record{up, ran, heat, coco}, Sort(in, SortHighest))
	assert.Equal(t, []types.Record{heat, coco, ran, up}, Sort(in, SortLowest))
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	in := []types.Record{up, heat}
	before := append([]types.Record(nil), in...)

	assert.Equal(t, []types.Record{heat, up}, Apply(in, "", SortLowest))
	assert.Equal(t, []types.Record{up}, Apply(in, "Family", SortLowest))
	assert.Equal(t, []types.Record{heat}, Apply(in, "Action", SortDefault))
	assert.Equal(t, before, in)
}

func TestApply_FilterThenSort(t *testing.T) {
	in := []types.Record{up, heat, coco, ran}
	assert.Equal(t, []types.Record{coco, up}, Apply(in, "Family", SortLowest))
	assert.Equal(t, []types.Record{up, coco}, Apply(in, "Family", SortHighest))
}

func TestGenres(t *testing.T) {
	assert.Equal(t, []string{"Family", "Action", "Drama"}, Genres([]types.Record{up, heat, coco, ran}))
	assert.Equal(t, []string{}, Genres(nil))
}

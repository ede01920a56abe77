package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCandidateNormalize(t *testing.T) {
	tests := []struct {
		name    string
		in      Candidate
		want    Record
		wantErr error
	}{
		{
			name: "trims and defaults genre",
			in:   Candidate{ID: "a", Title: "  Heat ", Genre: "  ", Review: " tense ", Rating: 4},
			want: Record{ID: "a", Title: "Heat", Genre: DefaultGenre, Review: "tense", Rating: 4},
		},
		{
			name: "clamps rating high",
			in:   Candidate{Title: "Up", Genre: "Family", Rating: 9},
			want: Record{Title: "Up", Genre: "Family", Rating: 5},
		},
		{
			name: "clamps rating low",
			in:   Candidate{Title: "Up", Genre: "Family", Rating: -2},
			want: Record{Title: "Up", Genre: "Family", Rating: 0},
		},
		{
			name:    "empty title rejected",
			in:      Candidate{Title: ""},
			wantErr: ErrEmptyTitle,
		},
		{
			name:    "whitespace title rejected",
			in:      Candidate{Title: " \t\n"},
			wantErr: ErrEmptyTitle,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.in.Normalize()
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.True(t, errors.Is(err, ErrValidation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.False(t, got.Watched)
		})
	}
}

func TestParseRating(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"3", 3},
		{" 4 ", 4},
		{"4.7", 4},
		{"3 stars", 3},
		{"abc", 0},
		{"", 0},
		{"-1", 0},
		{"+2", 2},
		{"7", 5},
		{"99999999999999999999", 5},
		{"5", 5},
		{"0", 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := ParseRating(tt.in)
			assert.Equal(t, tt.want, got)
			assert.GreaterOrEqual(t, got, MinRating)
			assert.LessOrEqual(t, got, MaxRating)
		})
	}
}

func TestCoerceRating(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want int
	}{
		{"int", 3, 3},
		{"int64 huge", int64(1 << 40), 5},
		{"float truncates", 4.9, 4},
		{"negative float", -0.5, 0},
		{"string", "2", 2},
		{"bool", true, 0},
		{"nil", nil, 0},
		{"uint64", uint64(7), 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CoerceRating(tt.in))
		})
	}
}

func TestRecordFromAttributes(t *testing.T) {
	t.Run("complete item", func(t *testing.T) {
		got := RecordFromAttributes(map[string]any{
			"id": "a", "title": "Up", "genre": "Family", "watched": true, "review": "sweet", "rating": float64(5),
		})
		assert.Equal(t, Record{ID: "a", Title: "Up", Genre: "Family", Watched: true, Review: "sweet", Rating: 5}, got)
	})

	t.Run("malformed item gets defaults", func(t *testing.T) {
		got := RecordFromAttributes(map[string]any{
			"id": "b", "title": "X", "watched": "yes", "rating": float64(12), "year": float64(1999),
		})
		assert.Equal(t, Record{ID: "b", Title: "X", Genre: DefaultGenre, Watched: false, Rating: 5}, got)
	})
}

func TestRecordOverlay(t *testing.T) {
	prior := Record{ID: "a", Title: "Up", Genre: "Family", Review: "sweet", Rating: 5}

	t.Run("returned attributes win", func(t *testing.T) {
		got := prior.Overlay(map[string]any{"watched": true, "rating": float64(3)})
		assert.True(t, got.Watched)
		assert.Equal(t, 3, got.Rating)
		assert.Equal(t, "sweet", got.Review)
	})

	t.Run("missing attributes are kept", func(t *testing.T) {
		got := prior.Overlay(map[string]any{"watched": true})
		assert.Equal(t, "Up", got.Title)
		assert.Equal(t, "Family", got.Genre)
	})

	t.Run("id is immutable", func(t *testing.T) {
		got := prior.Overlay(map[string]any{"id": "z"})
		assert.Equal(t, "a", got.ID)
	})
}

func TestRecordAttributesRoundTrip(t *testing.T) {
	rec := Record{ID: "a", Title: "Up", Genre: "Family", Watched: true, Review: "r", Rating: 2}
	assert.Equal(t, rec, RecordFromAttributes(rec.Attributes()))
}

func TestFieldValid(t *testing.T) {
	assert.True(t, FieldRating.Valid())
	assert.True(t, FieldID.Valid())
	assert.False(t, Field("year").Valid())
}

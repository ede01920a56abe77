package types

import (
	"math"
	"strings"
)

// Field names a Record attribute. The set is closed; anything else is rejected
// at the update boundary.
type Field string

// Record fields as stored in the table.
const (
	FieldID      Field = "id"
	FieldTitle   Field = "title"
	FieldGenre   Field = "genre"
	FieldWatched Field = "watched"
	FieldReview  Field = "review"
	FieldRating  Field = "rating"
)

// knownFields is the set of recognized field names.
var knownFields = map[Field]bool{
	FieldID:      true,
	FieldTitle:   true,
	FieldGenre:   true,
	FieldWatched: true,
	FieldReview:  true,
	FieldRating:  true,
}

// Valid reports whether f is one of the Record fields.
func (f Field) Valid() bool {
	return knownFields[f]
}

// Rating bounds and the genre used when none is given.
const (
	MinRating    = 0
	MaxRating    = 5
	DefaultGenre = "Unspecified"
)

// Record is one watchlist entry, keyed by ID.
type Record struct {
	ID      string `json:"id" dynamodbav:"id"`
	Title   string `json:"title" dynamodbav:"title"`
	Genre   string `json:"genre" dynamodbav:"genre"`
	Watched bool   `json:"watched" dynamodbav:"watched"`
	Review  string `json:"review" dynamodbav:"review"`
	Rating  int    `json:"rating" dynamodbav:"rating"`
}

// Candidate holds caller input for a record that does not exist yet.
// ID may be left empty; the mirror assigns one.
type Candidate struct {
	ID     string
	Title  string
	Genre  string
	Review string
	Rating int
}

// Changes is a sparse set of field updates keyed by field name.
type Changes map[Field]any

// Attributes is the attribute set a store returns after an update.
type Attributes map[string]any

// Normalize validates the candidate and returns the record to persist.
// The title must be non-empty after trimming (ErrEmptyTitle). A blank genre
// becomes DefaultGenre and the rating is clamped. Watched is always false.
func (c Candidate) Normalize() (Record, error) {
	title := strings.TrimSpace(c.Title)
	if title == "" {
		return Record{}, ErrEmptyTitle
	}
	return Record{
		ID:      strings.TrimSpace(c.ID),
		Title:   title,
		Genre:   NormalizeGenre(c.Genre),
		Watched: false,
		Review:  strings.TrimSpace(c.Review),
		Rating:  ClampRating(c.Rating),
	}, nil
}

// NormalizeGenre trims g and substitutes DefaultGenre when it is blank.
func NormalizeGenre(g string) string {
	g = strings.TrimSpace(g)
	if g == "" {
		return DefaultGenre
	}
	return g
}

// ClampRating forces r into [MinRating, MaxRating].
func ClampRating(r int) int {
	if r < MinRating {
		return MinRating
	}
	if r > MaxRating {
		return MaxRating
	}
	return r
}

// ParseRating converts raw textual input to a rating. The leading integer is
// used ("4.7" is 4, "3 stars" is 3); input without one yields 0. The result is
// clamped.
func ParseRating(s string) int {
	s = strings.TrimSpace(s)
	neg := false
	if s != "" && (s[0] == '-' || s[0] == '+') {
		neg = s[0] == '-'
		s = s[1:]
	}
	n := 0
	digits := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			break
		}
		digits++
		// Anything past two digits is already out of range.
		if n < 100 {
			n = n*10 + int(r-'0')
		}
	}
	if digits == 0 {
		return MinRating
	}
	if neg {
		n = -n
	}
	return ClampRating(n)
}

// CoerceRating converts an arbitrary decoded value to a rating. Integer and
// floating point numbers are truncated toward zero, strings go through
// ParseRating, and anything else yields 0.
func CoerceRating(v any) int {
	switch n := v.(type) {
	case int:
		return ClampRating(n)
	case int8:
		return ClampRating(int(n))
	case int16:
		return ClampRating(int(n))
	case int32:
		return ClampRating(int(n))
	case int64:
		return ClampRating(clampInt64(n))
	case uint:
		return ClampRating(clampUint64(uint64(n)))
	case uint8:
		return ClampRating(int(n))
	case uint16:
		return ClampRating(int(n))
	case uint32:
		return ClampRating(clampUint64(uint64(n)))
	case uint64:
		return ClampRating(clampUint64(n))
	case float32:
		return coerceFloat(float64(n))
	case float64:
		return coerceFloat(n)
	case string:
		return ParseRating(n)
	default:
		return MinRating
	}
}

func coerceFloat(f float64) int {
	if math.IsNaN(f) {
		return MinRating
	}
	f = math.Trunc(f)
	if f < MinRating {
		return MinRating
	}
	if f > MaxRating {
		return MaxRating
	}
	return int(f)
}

func clampInt64(n int64) int {
	if n > MaxRating {
		return MaxRating
	}
	if n < MinRating {
		return MinRating
	}
	return int(n)
}

func clampUint64(n uint64) int {
	if n > MaxRating {
		return MaxRating
	}
	return int(n)
}

// RecordFromAttributes decodes an item read from a table. Values of the wrong
// shape fall back to field defaults: genre to DefaultGenre, watched to false,
// rating to a clamped coercion. Unknown attributes are ignored.
func RecordFromAttributes(attrs map[string]any) Record {
	r := Record{Genre: DefaultGenre}
	if id, ok := attrs[string(FieldID)].(string); ok {
		r.ID = id
	}
	return r.Overlay(attrs)
}

// Overlay returns r with every known attribute present in attrs applied on
// top. The id never changes. Fields absent from attrs keep their prior value.
func (r Record) Overlay(attrs map[string]any) Record {
	out := r
	if v, ok := attrs[string(FieldTitle)]; ok {
		if s, ok := v.(string); ok {
			out.Title = s
		}
	}
	if v, ok := attrs[string(FieldGenre)]; ok {
		s, _ := v.(string)
		out.Genre = NormalizeGenre(s)
	}
	if v, ok := attrs[string(FieldWatched)]; ok {
		b, _ := v.(bool)
		out.Watched = b
	}
	if v, ok := attrs[string(FieldReview)]; ok {
		if s, ok := v.(string); ok {
			out.Review = s
		}
	}
	if v, ok := attrs[string(FieldRating)]; ok {
		out.Rating = CoerceRating(v)
	}
	return out
}

// Attributes returns the record as a table item.
func (r Record) Attributes() Attributes {
	return Attributes{
		string(FieldID):      r.ID,
		string(FieldTitle):   r.Title,
		string(FieldGenre):   r.Genre,
		string(FieldWatched): r.Watched,
		string(FieldReview):  r.Review,
		string(FieldRating):  r.Rating,
	}
}

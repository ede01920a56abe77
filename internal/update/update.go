// Package update translates a sparse set of record field changes into a
// key-value store partial update: a SET expression plus name and value
// placeholder tables. Field names are always referenced through placeholders
// because stores reserve many plain words ("name", "year", "rating" in some
// dialects) as keywords.
package update

import (
	"fmt"
	"slices"
	"strings"

	"github.com/mesh-intelligence/watchlist/pkg/types"
)

// Placeholder prefixes for attribute names and values.
const (
	namePrefix  = "#"
	valuePrefix = ":"
)

// existsCondition guards an update so it never creates a missing item.
const existsCondition = "attribute_exists(" + namePrefix + "id)"

// Assignment is one "name = value" clause of a Statement.
type Assignment struct {
	Field       types.Field
	Name        string // name placeholder, e.g. "#watched"
	Placeholder string // value placeholder, e.g. ":watched"
	Value       any
}

// Statement is the store-native form of a partial update.
type Statement struct {
	Expression  string
	Condition   string
	Names       map[string]string
	Values      map[string]any
	Assignments []Assignment
}

// Empty reports whether the statement sets nothing. Stores must not send an
// empty statement to the backend.
func (s Statement) Empty() bool {
	return len(s.Assignments) == 0
}

// Build returns the statement that sets exactly the fields in changes.
// The primary key is dropped silently. Unknown fields fail with
// types.ErrUnknownField and values of the wrong type with
// types.ErrInvalidValue. Assignments are ordered by field name so the same
// input always yields the same expression.
func Build(changes types.Changes) (Statement, error) {
	fields := make([]types.Field, 0, len(changes))
	for f := range changes {
		if !f.Valid() {
			return Statement{}, fmt.Errorf("%w: %q", types.ErrUnknownField, string(f))
		}
		if f == types.FieldID {
			continue
		}
		fields = append(fields, f)
	}
	if len(fields) == 0 {
		return Statement{}, nil
	}
	slices.Sort(fields)

	stmt := Statement{
		Condition: existsCondition,
		Names:     map[string]string{namePrefix + string(types.FieldID): string(types.FieldID)},
		Values:    make(map[string]any, len(fields)),
	}
	clauses := make([]string, 0, len(fields))
	for _, f := range fields {
		v, err := normalizeValue(f, changes[f])
		if err != nil {
			return Statement{}, err
		}
		a := Assignment{
			Field:       f,
			Name:        namePrefix + string(f),
			Placeholder: valuePrefix + string(f),
			Value:       v,
		}
		stmt.Names[a.Name] = string(f)
		stmt.Values[a.Placeholder] = v
		stmt.Assignments = append(stmt.Assignments, a)
		clauses = append(clauses, a.Name+" = "+a.Placeholder)
	}
	stmt.Expression = "SET " + strings.Join(clauses, ", ")
	return stmt, nil
}

// normalizeValue checks the value type for f and applies the same
// normalization a new record gets.
func normalizeValue(f types.Field, v any) (any, error) {
	switch f {
	case types.FieldTitle:
		s, ok := v.(string)
		if !ok {
			return nil, invalid(f, v)
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, types.ErrEmptyTitle
		}
		return s, nil
	case types.FieldGenre:
		s, ok := v.(string)
		if !ok {
			return nil, invalid(f, v)
		}
		return types.NormalizeGenre(s), nil
	case types.FieldReview:
		s, ok := v.(string)
		if !ok {
			return nil, invalid(f, v)
		}
		return strings.TrimSpace(s), nil
	case types.FieldWatched:
		b, ok := v.(bool)
		if !ok {
			return nil, invalid(f, v)
		}
		return b, nil
	case types.FieldRating:
		switch v.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
			return types.CoerceRating(v), nil
		default:
			return nil, invalid(f, v)
		}
	default:
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownField, string(f))
	}
}

func invalid(f types.Field, v any) error {
	return fmt.Errorf("%w: %s cannot be %T", types.ErrInvalidValue, f, v)
}

package remote

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
)

// Matches reports whether row satisfies the filter and id set of q.
// Embeds are ignored.
func (q Query) Matches(row Row) bool {
	for field, want := range q.Filter {
		if !SameValue(row[field], want) {
			return false
		}
	}
	if q.IDs != nil {
		field := q.IDField
		if field == "" {
			field = DefaultIDField
		}
		key := ValueKey(row[field])
		if !slices.Contains(q.IDs, key) {
			return false
		}
	}
	return true
}

// SameValue compares two decoded column values. Numbers compare by value
// regardless of their Go type.
func SameValue(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return ValueKey(a) == ValueKey(b)
}

// ValueKey renders a column value the way id sets compare it. Numbers are
// written without exponent so 1e6 and 1000000 share a key.
func ValueKey(v any) string {
	switch n := v.(type) {
	case nil:
		return ""
	case string:
		return n
	case int:
		return strconv.FormatInt(int64(n), 10)
	case int32:
		return strconv.FormatInt(int64(n), 10)
	case int64:
		return strconv.FormatInt(n, 10)
	case float32:
		return strconv.FormatFloat(float64(n), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// Join stores into parent the rows of related whose ForeignField equals
// parent's LocalField: a list for Many embeds, otherwise the first match or
// nil. Joined rows are stored as plain maps so they encode like any other
// column value.
func (e Embed) Join(parent Row, related []Row) {
	local, ok := parent[e.LocalField]
	if !ok || local == nil {
		if e.Many {
			parent[e.Key()] = []any{}
		} else {
			parent[e.Key()] = nil
		}
		return
	}

	if !e.Many {
		parent[e.Key()] = nil
		for _, r := range related {
			if SameValue(r[e.ForeignField], local) {
				parent[e.Key()] = map[string]any(maps.Clone(r))
				return
			}
		}
		return
	}

	matches := []any{}
	for _, r := range related {
		if SameValue(r[e.ForeignField], local) {
			matches = append(matches, map[string]any(maps.Clone(r)))
		}
	}
	parent[e.Key()] = matches
}

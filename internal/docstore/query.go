package docstore

import (
	"sort"
	"strings"
)

// Op is a filter comparison operator.
type Op string

const (
	OpEq  Op = "=="
	OpLt  Op = "<"
	OpLte Op = "<="
	OpGt  Op = ">"
	OpGte Op = ">="
	OpIn  Op = "in"
)

// Filter restricts a query on a dotted field path. OpIn expects a []any or
// []string value.
type Filter struct {
	Field string
	Op    Op
	Value any
}

// Order sorts query results by a dotted field path. Documents missing the
// field sort last.
type Order struct {
	Field string
	Desc  bool
}

// Query selects documents of one collection. Results are ordered by OrderBy
// then by path.
type Query struct {
	Collection string
	Filters    []Filter
	OrderBy    []Order
	Limit      int
}

// Where appends a filter.
func (q Query) Where(field string, op Op, value any) Query {
	q.Filters = append(append([]Filter(nil), q.Filters...), Filter{Field: field, Op: op, Value: value})
	return q
}

// Lookup resolves a dotted field path in a document.
func Lookup(data map[string]any, field string) (any, bool) {
	var cur any = data
	for _, seg := range strings.Split(field, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Matches evaluates the query filters against a document using the same
// ordering rules as Postgres jsonb comparison.
func (q Query) Matches(data map[string]any) bool {
	for _, f := range q.Filters {
		v, ok := Lookup(data, f.Field)
		if !ok || v == nil {
			return false
		}
		if f.Op == OpIn {
			if !inValues(v, f.Value) {
				return false
			}
			continue
		}
		want, err := normalize(f.Value)
		if err != nil {
			return false
		}
		c := Compare(v, want)
		switch f.Op {
		case OpEq:
			if c != 0 {
				return false
			}
		case OpLt:
			if c >= 0 {
				return false
			}
		case OpLte:
			if c > 0 {
				return false
			}
		case OpGt:
			if c <= 0 {
				return false
			}
		case OpGte:
			if c < 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// Sort orders snapshots per the query and applies the limit.
func (q Query) Sort(snaps []Snapshot) []Snapshot {
	sort.SliceStable(snaps, func(i, j int) bool {
		for _, o := range q.OrderBy {
			a, aok := Lookup(snaps[i].Data, o.Field)
			b, bok := Lookup(snaps[j].Data, o.Field)
			if aok != bok {
				return aok
			}
			if !aok {
				continue
			}
			c := Compare(a, b)
			if c == 0 {
				continue
			}
			if o.Desc {
				return c > 0
			}
			return c < 0
		}
		return snaps[i].Path < snaps[j].Path
	})
	if q.Limit > 0 && len(snaps) > q.Limit {
		snaps = snaps[:q.Limit]
	}
	return snaps
}

// InValues normalizes the operand of an OpIn filter.
func InValues(value any) []any {
	switch t := value.(type) {
	case []any:
		return normalizeSlice(t)
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	default:
		return normalizeSlice([]any{value})
	}
}

func inValues(v any, operand any) bool {
	for _, candidate := range InValues(operand) {
		if Compare(v, candidate) == 0 {
			return true
		}
	}
	return false
}

func typeRank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case string:
		return 1
	case float64:
		return 2
	case bool:
		return 3
	case []any:
		return 4
	default:
		return 5
	}
}

// Compare orders two JSON values: null < string < number < bool < array < object.
// Arrays and objects of equal rank compare equal.
func Compare(a, b any) int {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	switch av := a.(type) {
	case string:
		return strings.Compare(av, b.(string))
	case float64:
		bv := b.(float64)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
	case bool:
		bv := b.(bool)
		if av == bv {
			return 0
		}
		if !av {
			return -1
		}
		return 1
	}
	return 0
}

package docstore

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

type transformKind int

const (
	transformIncrement transformKind = iota + 1
	transformArrayUnion
	transformArrayRemove
)

// Transform is a server-side field operation. Use it as a field value in
// SetMerge or Update.
type Transform struct {
	kind   transformKind
	amount float64
	values []any
}

// Increment adds n to a numeric field, treating a missing or non-numeric
// field as zero.
func Increment(n int) Transform {
	return Transform{kind: transformIncrement, amount: float64(n)}
}

// ArrayUnion appends values not already present in the array field.
func ArrayUnion(values ...any) Transform {
	return Transform{kind: transformArrayUnion, values: normalizeSlice(values)}
}

// ArrayRemove removes every occurrence of values from the array field.
func ArrayRemove(values ...any) Transform {
	return Transform{kind: transformArrayRemove, values: normalizeSlice(values)}
}

// IsIncrement reports whether the transform is an increment and its amount.
func (t Transform) IsIncrement() (float64, bool) {
	return t.amount, t.kind == transformIncrement
}

// ArrayValues returns the operand of an array transform and whether it removes.
func (t Transform) ArrayValues() ([]any, bool) {
	return t.values, t.kind == transformArrayRemove
}

// FieldOp is one leaf operation of a write.
type FieldOp struct {
	Path      []string
	Value     any
	Transform *Transform
}

// WriteKind distinguishes the three write flavours.
type WriteKind int

const (
	WriteSet WriteKind = iota + 1
	WriteMerge
	WriteUpdate
)

// Write is a buffered mutation of one document.
type Write struct {
	Path   string
	Kind   WriteKind
	Fields []FieldOp
}

// HasTransforms reports whether any field op is a transform.
func (w Write) HasTransforms() bool {
	for _, f := range w.Fields {
		if f.Transform != nil {
			return true
		}
	}
	return false
}

func newSetWrite(path string, data any) (Write, error) {
	m, err := toMap(data)
	if err != nil {
		return Write{}, err
	}
	return Write{Path: path, Kind: WriteSet, Fields: flatten(nil, m)}, nil
}

func newMergeWrite(path string, data any) (Write, error) {
	m, err := toMap(data)
	if err != nil {
		return Write{}, err
	}
	return Write{Path: path, Kind: WriteMerge, Fields: flatten(nil, m)}, nil
}

func newUpdateWrite(path string, fields map[string]any) (Write, error) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	ops := make([]FieldOp, 0, len(fields))
	for _, k := range keys {
		segs := strings.Split(k, ".")
		for _, s := range segs {
			if s == "" {
				return Write{}, fmt.Errorf("docstore: invalid field path %q", k)
			}
		}
		op, err := leafOp(segs, fields[k])
		if err != nil {
			return Write{}, err
		}
		ops = append(ops, op)
	}
	return Write{Path: path, Kind: WriteUpdate, Fields: ops}, nil
}

func leafOp(path []string, v any) (FieldOp, error) {
	switch t := v.(type) {
	case Transform:
		tt := t
		return FieldOp{Path: path, Transform: &tt}, nil
	case *Transform:
		return FieldOp{Path: path, Transform: t}, nil
	}
	nv, err := normalize(v)
	if err != nil {
		return FieldOp{}, err
	}
	return FieldOp{Path: path, Value: nv}, nil
}

// flatten turns nested maps into leaf ops so merges are deep. Empty maps are
// kept as explicit values.
func flatten(prefix []string, m map[string]any) []FieldOp {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var ops []FieldOp
	for _, k := range keys {
		path := append(append([]string(nil), prefix...), k)
		switch v := m[k].(type) {
		case map[string]any:
			if len(v) == 0 {
				ops = append(ops, FieldOp{Path: path, Value: map[string]any{}})
				continue
			}
			ops = append(ops, flatten(path, v)...)
		case Transform:
			tt := v
			ops = append(ops, FieldOp{Path: path, Transform: &tt})
		case *Transform:
			ops = append(ops, FieldOp{Path: path, Transform: v})
		default:
			ops = append(ops, FieldOp{Path: path, Value: v})
		}
	}
	return ops
}

// toMap converts structs to JSON-shaped maps while keeping Transform leaves
// that appear in map inputs.
func toMap(data any) (map[string]any, error) {
	if data == nil {
		return map[string]any{}, nil
	}
	if m, ok := data.(map[string]any); ok {
		return normalizeMap(m)
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("docstore: encode document: %w", err)
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("docstore: document must encode to an object: %w", err)
	}
	return out, nil
}

func normalizeMap(m map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(m))
	for k, v := range m {
		switch t := v.(type) {
		case Transform, *Transform:
			out[k] = t
		case map[string]any:
			nested, err := normalizeMap(t)
			if err != nil {
				return nil, err
			}
			out[k] = nested
		default:
			nv, err := normalize(v)
			if err != nil {
				return nil, err
			}
			out[k] = nv
		}
	}
	return out, nil
}

// normalize round-trips a value through JSON so stored data only holds
// JSON-native types (float64, string, bool, nil, []any, map[string]any).
func normalize(v any) (any, error) {
	switch t := v.(type) {
	case nil, string, bool, float64:
		return t, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("docstore: encode value: %w", err)
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func normalizeSlice(values []any) []any {
	out := make([]any, 0, len(values))
	for _, v := range values {
		nv, err := normalize(v)
		if err != nil {
			continue
		}
		out = append(out, nv)
	}
	return out
}

// Apply computes the document produced by w on top of base. base may be nil
// for a missing document.
func Apply(base map[string]any, w Write) map[string]any {
	var doc map[string]any
	if w.Kind == WriteSet || base == nil {
		doc = map[string]any{}
	} else {
		doc = DeepCopy(base)
	}
	for _, op := range w.Fields {
		applyOp(doc, op)
	}
	return doc
}

func applyOp(doc map[string]any, op FieldOp) {
	parent := doc
	for _, seg := range op.Path[:len(op.Path)-1] {
		next, ok := parent[seg].(map[string]any)
		if !ok {
			next = map[string]any{}
			parent[seg] = next
		}
		parent = next
	}
	leaf := op.Path[len(op.Path)-1]
	if op.Transform == nil {
		parent[leaf] = deepCopyValue(op.Value)
		return
	}
	t := op.Transform
	switch t.kind {
	case transformIncrement:
		current, _ := parent[leaf].(float64)
		parent[leaf] = current + t.amount
	case transformArrayUnion:
		arr, _ := parent[leaf].([]any)
		arr = append([]any(nil), arr...)
		for _, v := range t.values {
			if !containsValue(arr, v) {
				arr = append(arr, v)
			}
		}
		parent[leaf] = arr
	case transformArrayRemove:
		arr, _ := parent[leaf].([]any)
		kept := make([]any, 0, len(arr))
		for _, existing := range arr {
			if !containsValue(t.values, existing) {
				kept = append(kept, existing)
			}
		}
		parent[leaf] = kept
	}
}

func containsValue(arr []any, v any) bool {
	for _, existing := range arr {
		if reflect.DeepEqual(existing, v) {
			return true
		}
	}
	return false
}

// DeepCopy copies a JSON-shaped map.
func DeepCopy(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return DeepCopy(t)
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = deepCopyValue(t[i])
		}
		return out
	default:
		return t
	}
}

package codec

import (
	"fmt"
	"reflect"
	"strings"

	"olympos.io/encoding/edn"

	"github.com/vitaliisemenov/datomic-client/pkg/types"
)

// prepare lowers native values into their transported form: keywords become
// prefixed strings, nested containers are walked. Datoms pass through and
// are handled by the msgpack extension.
func prepare(v any) any {
	switch t := v.(type) {
	case types.Keyword:
		return keywordPrefix + string(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = prepare(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = prepare(val)
		}
		return out
	default:
		return v
	}
}

// revive lifts decoded wire values into the native value space: tagged fact
// tuples become Datoms, prefixed strings become keywords, integers are
// normalized to int64, and EDN's key and tag types are folded in.
func revive(v any) any {
	switch t := v.(type) {
	case string:
		if strings.HasPrefix(t, keywordPrefix) {
			return types.Keyword(t[len(keywordPrefix):])
		}
		return t
	case map[string]any:
		if raw, ok := t[datomTag]; ok && len(t) == 1 {
			if d, err := datomFromSeq(asSlice(raw)); err == nil {
				return d
			}
		}
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = revive(val)
		}
		return out
	case map[any]any:
		// EDN maps decode with interface keys.
		if raw, ok := t[edn.Keyword(datomTag)]; ok && len(t) == 1 {
			if d, err := datomFromSeq(asSlice(raw)); err == nil {
				return d
			}
		}
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[keyString(k)] = revive(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = revive(val)
		}
		return out
	case edn.Keyword:
		return types.Keyword(t)
	case edn.Tag:
		if t.Tagname == "datom" {
			if d, err := datomFromSeq(asSlice(t.Value)); err == nil {
				return d
			}
		}
		return map[string]any{"~#" + t.Tagname: revive(t.Value)}
	case uint64:
		return int64(t)
	case int:
		return int64(t)
	case int32:
		return int64(t)
	default:
		return reviveReflect(v)
	}
}

// reviveReflect folds map and slice shapes the typed cases above do not
// cover, such as EDN maps keyed by keywords.
func reviveReflect(v any) any {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return v
	}
	switch rv.Kind() {
	case reflect.Map:
		out := make(map[string]any, rv.Len())
		for _, k := range rv.MapKeys() {
			out[keyString(k.Interface())] = revive(rv.MapIndex(k).Interface())
		}
		if raw, ok := out[datomTag]; ok && len(out) == 1 {
			if d, err := datomFromSeq(asSlice(raw)); err == nil {
				return d
			}
		}
		return out
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return v
		}
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = revive(rv.Index(i).Interface())
		}
		return out
	default:
		return v
	}
}

func keyString(k any) string {
	switch t := k.(type) {
	case string:
		return t
	case edn.Keyword:
		return string(t)
	case types.Keyword:
		return string(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func asSlice(v any) []any {
	s, _ := v.([]any)
	return s
}

// datomFromSeq reconstructs a fact tuple from its transported 5-element
// sequence.
func datomFromSeq(seq []any) (types.Datom, error) {
	if len(seq) != 5 {
		return types.Datom{}, fmt.Errorf("datom: expected 5 elements, got %d", len(seq))
	}
	t, ok := AsInt64(seq[3])
	if !ok {
		return types.Datom{}, fmt.Errorf("datom: non-integer t %v", seq[3])
	}
	added, ok := seq[4].(bool)
	if !ok {
		return types.Datom{}, fmt.Errorf("datom: non-boolean added %v", seq[4])
	}
	return types.Datom{
		E:     revive(seq[0]),
		A:     revive(seq[1]),
		V:     revive(seq[2]),
		T:     t,
		Added: added,
	}, nil
}

// AsInt64 normalizes any decoded numeric representation to int64. Floats
// convert only when integral.
func AsInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case uint64:
		return int64(n), true
	case uint32:
		return int64(n), true
	case float64:
		if n == float64(int64(n)) {
			return int64(n), true
		}
		return 0, false
	case float32:
		return AsInt64(float64(n))
	default:
		return 0, false
	}
}

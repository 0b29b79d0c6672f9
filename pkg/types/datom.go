package types

import (
	"fmt"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Datom is the server's unit of factual data: an (entity, attribute, value,
// transaction, added) 5-tuple. Datoms are produced by the unmarshal layer and
// never mutated.
type Datom struct {
	E     any
	A     any
	V     any
	T     int64
	Added bool
}

// At returns the field at position i, in (e, a, v, t, added) order.
// Positions outside 0..4 panic.
func (d Datom) At(i int) any {
	switch i {
	case 0:
		return d.E
	case 1:
		return d.A
	case 2:
		return d.V
	case 3:
		return d.T
	case 4:
		return d.Added
	default:
		panic(fmt.Sprintf("datom index out of range: %d", i))
	}
}

// Equal reports field-wise equality. The value slot is compared by numeric
// value when both sides are numbers, so an int64 7 and a float64 7.0 read
// back from different wire formats compare equal. T participates in
// equality: otherwise-identical facts at different transactions are distinct.
func (d Datom) Equal(o Datom) bool {
	return valueEqual(d.E, o.E) &&
		valueEqual(d.A, o.A) &&
		valueEqual(d.V, o.V) &&
		d.T == o.T &&
		d.Added == o.Added
}

// Hash returns a digest over (e, a, v, added). T is deliberately excluded,
// so the hash is compatible with Equal: datoms that differ only in t collide,
// datoms that compare equal always agree.
func (d Datom) Hash() uint64 {
	h := xxhash.New()
	_, _ = h.WriteString(canonical(d.E))
	_, _ = h.WriteString("\x00")
	_, _ = h.WriteString(canonical(d.A))
	_, _ = h.WriteString("\x00")
	_, _ = h.WriteString(canonical(d.V))
	_, _ = h.WriteString("\x00")
	_, _ = h.WriteString(strconv.FormatBool(d.Added))
	return h.Sum64()
}

// String renders the datom in its printed form: #datom[e a v t added].
func (d Datom) String() string {
	return fmt.Sprintf("#datom[%v %v %v %d %t]", d.E, d.A, d.V, d.T, d.Added)
}

// valueEqual compares two decoded values, normalizing numeric
// representations to a total order.
func valueEqual(a, b any) bool {
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	if aok && bok {
		return af == bf
	}
	if aok != bok {
		return false
	}
	return a == b
}

// canonical renders a value such that numerically equal values render
// identically regardless of their Go representation.
func canonical(v any) string {
	if f, ok := asFloat(v); ok {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return fmt.Sprintf("%v", v)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

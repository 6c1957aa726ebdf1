package dirtry

import (
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Identifier is implemented by opaque identity-like values. Two values are
// considered the same identifier when their Identifier strings match.
type Identifier interface {
	Identifier() string
}

// Policy is the default should-change rule, parameterised by what counts as
// blank and what counts as an opaque identifier.
type Policy struct {
	Blank  func(v any) bool
	Opaque func(v any) bool
}

// DefaultPolicy is the rule used when Config.Policy is left empty.
var DefaultPolicy = Policy{Blank: IsBlank, Opaque: IsOpaque}

// ShouldChange reports whether next replacing current is a real change:
// equal values never are, blank over blank never is, and an opaque
// identifier compares by string form.
func (p Policy) ShouldChange(current, next any) bool {
	if Equal(current, next) {
		return false
	}
	blank := p.Blank
	if blank == nil {
		blank = IsBlank
	}
	if blank(current) && blank(next) {
		return false
	}
	opaque := p.Opaque
	if opaque == nil {
		opaque = IsOpaque
	}
	if opaque(current) && identifierString(current) == identifierString(next) {
		return false
	}
	return true
}

// Equal compares two stored values. Types with an Equal method of their own
// (time.Time and friends) are compared with it. Numbers compare by value
// across Go numeric types, so int(30), int64(30) and float64(30) are equal,
// and maps and slices compare element-wise under the same rule.
func Equal(a, b any) bool {
	if a == nil || b == nil {
		return isNil(a) && isNil(b)
	}
	switch x := a.(type) {
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Equal(y)
		}
		return false
	case interface{ Equal(any) bool }:
		return x.Equal(b)
	}
	av, bv := reflect.ValueOf(a), reflect.ValueOf(b)
	if eq, ok := numberEqual(av, bv); ok {
		return eq
	}
	switch {
	case av.Kind() == reflect.Map && bv.Kind() == reflect.Map:
		return mapEqual(av, bv)
	case isSeq(av) && isSeq(bv):
		return seqEqual(av, bv)
	}
	return reflect.DeepEqual(a, b)
}

func mapEqual(a, b reflect.Value) bool {
	if a.Type().Key() != b.Type().Key() {
		return reflect.DeepEqual(a.Interface(), b.Interface())
	}
	if a.IsNil() != b.IsNil() || a.Len() != b.Len() {
		return false
	}
	iter := a.MapRange()
	for iter.Next() {
		bv := b.MapIndex(iter.Key())
		if !bv.IsValid() || !Equal(iter.Value().Interface(), bv.Interface()) {
			return false
		}
	}
	return true
}

func seqEqual(a, b reflect.Value) bool {
	if a.Kind() == reflect.Slice && b.Kind() == reflect.Slice && a.IsNil() != b.IsNil() {
		return false
	}
	if a.Len() != b.Len() {
		return false
	}
	for i := 0; i < a.Len(); i++ {
		if !Equal(a.Index(i).Interface(), b.Index(i).Interface()) {
			return false
		}
	}
	return true
}

func isSeq(v reflect.Value) bool {
	return v.Kind() == reflect.Slice || v.Kind() == reflect.Array
}

type numClass int

const (
	notNumber numClass = iota
	signed
	unsigned
	floating
)

func classify(v reflect.Value) numClass {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return signed
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return unsigned
	case reflect.Float32, reflect.Float64:
		return floating
	}
	return notNumber
}

// numberEqual compares a and b by numeric value. ok is false unless both are numbers.
func numberEqual(a, b reflect.Value) (eq, ok bool) {
	ca, cb := classify(a), classify(b)
	if ca == notNumber || cb == notNumber {
		return false, false
	}
	if ca > cb {
		a, b, ca, cb = b, a, cb, ca
	}
	switch {
	case ca == signed && cb == signed:
		return a.Int() == b.Int(), true
	case ca == unsigned && cb == unsigned:
		return a.Uint() == b.Uint(), true
	case ca == signed && cb == unsigned:
		return a.Int() >= 0 && uint64(a.Int()) == b.Uint(), true
	case ca == floating && cb == floating:
		return a.Float() == b.Float(), true
	case ca == signed:
		f := b.Float()
		return f == math.Trunc(f) && f >= -(1<<63) && f < 1<<63 && int64(f) == a.Int(), true
	default:
		f := b.Float()
		return f == math.Trunc(f) && f >= 0 && f < 1<<64 && uint64(f) == a.Uint(), true
	}
}

// IsBlank reports whether v is empty or unset: nil, false, a whitespace-only
// string, an empty collection, uuid.Nil, or a value whose IsZero reports true.
func IsBlank(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case bool:
		return !x
	case string:
		return strings.TrimSpace(x) == ""
	case []byte:
		return len(x) == 0
	case uuid.UUID:
		return x == uuid.Nil
	case interface{ IsZero() bool }:
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Pointer && rv.IsNil() {
			return true
		}
		return x.IsZero()
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return true
		}
		return IsBlank(rv.Elem().Interface())
	case reflect.Slice, reflect.Map, reflect.Array, reflect.String:
		return rv.Len() == 0
	}
	return false
}

// IsOpaque reports whether v is a generated identifier rather than a plain value.
func IsOpaque(v any) bool {
	switch x := v.(type) {
	case uuid.UUID, Identifier:
		return true
	case *uuid.UUID:
		return x != nil
	}
	return false
}

func identifierString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case Identifier:
		return x.Identifier()
	case *uuid.UUID:
		if x == nil {
			return ""
		}
		return x.String()
	case fmt.Stringer:
		return x.String()
	case []byte:
		return string(x)
	}
	return fmt.Sprint(v)
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

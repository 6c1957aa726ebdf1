package dirtry

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

type hexID string

func (h hexID) Identifier() string { return string(h) }

func TestIsBlank(t *testing.T) {
	t.Parallel()

	var nilMap map[string]any
	var nilTime *time.Time
	tcs := []struct {
		name string
		in   any
		want bool
	}{
		{name: "nil", in: nil, want: true},
		{name: "false", in: false, want: true},
		{name: "true", in: true, want: false},
		{name: "empty string", in: "", want: true},
		{name: "whitespace", in: " \t\n", want: true},
		{name: "string", in: "a", want: false},
		{name: "zero int", in: 0, want: false},
		{name: "nil map", in: nilMap, want: true},
		{name: "empty slice", in: []string{}, want: true},
		{name: "slice", in: []int{1}, want: false},
		{name: "nil uuid", in: uuid.Nil, want: true},
		{name: "uuid", in: uuid.New(), want: false},
		{name: "zero time", in: time.Time{}, want: true},
		{name: "nil time pointer", in: nilTime, want: true},
		{name: "time", in: time.Unix(1, 0), want: false},
	}
	for _, tc := range tcs {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if got := IsBlank(tc.in); got != tc.want {
				t.Fatalf("IsBlank(%#v) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestPolicy_ShouldChange(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	now := time.Now()
	tcs := []struct {
		name    string
		current any
		next    any
		want    bool
	}{
		{name: "equal strings", current: "a", next: "a", want: false},
		{name: "different strings", current: "a", next: "b", want: true},
		{name: "nil to empty", current: nil, next: "", want: false},
		{name: "empty to nil", current: "", next: nil, want: false},
		{name: "false to nil", current: false, next: nil, want: false},
		{name: "nil to false", current: nil, next: false, want: false},
		{name: "nil to value", current: nil, next: "a", want: true},
		{name: "value to nil", current: "a", next: nil, want: true},
		{name: "zero to one", current: 0, next: 1, want: true},
		{name: "uuid to its string", current: id, next: id.String(), want: false},
		{name: "uuid to other uuid", current: id, next: uuid.New(), want: true},
		{name: "identifier to its string", current: hexID("abc"), next: "abc", want: false},
		{name: "string to uuid", current: id.String(), next: id, want: true},
		{name: "same instant", current: now, next: now.UTC(), want: false},
		{name: "equal maps", current: map[string]any{"a": 1}, next: map[string]any{"a": 1}, want: false},
		{name: "int64 to int", current: int64(30), next: 30, want: false},
	}
	for _, tc := range tcs {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if got := DefaultPolicy.ShouldChange(tc.current, tc.next); got != tc.want {
				t.Fatalf("ShouldChange(%#v, %#v) = %v, want %v", tc.current, tc.next, got, tc.want)
			}
		})
	}
}

func TestEqual(t *testing.T) {
	t.Parallel()

	tcs := []struct {
		name string
		a    any
		b    any
		want bool
	}{
		{name: "int and int64", a: int64(30), b: 30, want: true},
		{name: "int and float64", a: 30, b: float64(30), want: true},
		{name: "int and fractional float", a: 30, b: 30.5, want: false},
		{name: "uint and int", a: uint8(7), b: 7, want: true},
		{name: "negative int and uint", a: -1, b: uint64(1<<64 - 1), want: false},
		{name: "float32 and float64", a: float32(0.5), b: 0.5, want: true},
		{name: "different ints", a: int64(30), b: 31, want: false},
		{name: "number and string", a: 30, b: "30", want: false},
		{name: "decoded map", a: map[string]any{"zip": float64(1)}, b: map[string]any{"zip": 1}, want: true},
		{name: "nested map", a: map[string]any{"geo": map[string]any{"lat": 1.5}}, b: map[string]any{"geo": map[string]any{"lat": 1.5}}, want: true},
		{name: "map missing key", a: map[string]any{"zip": 1}, b: map[string]any{"zap": 1}, want: false},
		{name: "decoded slice", a: []any{float64(1), float64(2)}, b: []int{1, 2}, want: true},
		{name: "slice length", a: []any{1}, b: []any{1, 2}, want: false},
		{name: "nil and empty slice", a: []int(nil), b: []int{}, want: false},
	}
	for _, tc := range tcs {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if got := Equal(tc.a, tc.b); got != tc.want {
				t.Fatalf("Equal(%#v, %#v) = %v, want %v", tc.a, tc.b, got, tc.want)
			}
			if got := Equal(tc.b, tc.a); got != tc.want {
				t.Fatalf("Equal(%#v, %#v) = %v, want %v", tc.b, tc.a, got, tc.want)
			}
		})
	}
}

func TestPolicy_ShouldChange_Custom(t *testing.T) {
	t.Parallel()

	p := Policy{Blank: func(v any) bool { return v == nil || v == 0 }}
	if p.ShouldChange(0, nil) {
		t.Fatalf("ShouldChange(0, nil) = true with zero as blank")
	}
	if !p.ShouldChange("", nil) {
		t.Fatalf("ShouldChange(\"\", nil) = false with only nil and zero blank")
	}
}

func TestShallowCopy(t *testing.T) {
	t.Parallel()

	m := map[string]int{"a": 1}
	c := shallowCopy(m).(map[string]int)
	m["a"] = 2
	if c["a"] != 1 {
		t.Fatalf("shallowCopy(map) shares storage: %v", c)
	}
	s := []int{1}
	cs := shallowCopy(s).([]int)
	s[0] = 2
	if cs[0] != 1 {
		t.Fatalf("shallowCopy(slice) shares storage: %v", cs)
	}
}

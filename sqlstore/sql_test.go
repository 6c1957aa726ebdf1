package sqlstore

import (
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestRowToMap(t *testing.T) {
	t.Parallel()

	got := rowToMap(
		[]string{"_id", "address", "tags", "note", "quoted", "age"},
		[]any{"p-1", []byte(`{"city":"Osaka"}`), []byte(`["a"]`), []byte("plain"), []byte(`"x"`), int64(3)},
	)
	want := map[string]any{
		"_id":     "p-1",
		"address": map[string]any{"city": "Osaka"},
		"tags":    []any{"a"},
		"note":    "plain",
		"quoted":  `"x"`,
		"age":     int64(3),
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("rowToMap() = %#v, want %#v", got, want)
	}
}

func TestEncodeValue(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	now := time.Now()
	tcs := []struct {
		name string
		in   any
		want any
	}{
		{name: "nil", in: nil, want: nil},
		{name: "string", in: "a", want: "a"},
		{name: "int", in: 3, want: 3},
		{name: "bytes", in: []byte("raw"), want: []byte("raw")},
		{name: "uuid", in: id, want: id},
		{name: "time", in: now, want: now},
		{name: "map", in: map[string]any{"a": 1}, want: []byte(`{"a":1}`)},
		{name: "slice", in: []string{"a", "b"}, want: []byte(`["a","b"]`)},
	}
	for _, tc := range tcs {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := encodeValue(tc.in)
			if err != nil {
				t.Fatalf("encodeValue(%#v) error = %v", tc.in, err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("encodeValue(%#v) = %#v, want %#v", tc.in, got, tc.want)
			}
		})
	}
}

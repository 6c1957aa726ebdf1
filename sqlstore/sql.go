package sqlstore

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"reflect"
	"time"
)

// scanOne consumes exactly one row from *sql.Rows into a map.
func scanOne(rows *sql.Rows) (map[string]any, error) {
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, sql.ErrNoRows
	}
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	return rowToMap(cols, vals), nil
}

// rowToMap converts a single row (columns + values) to a map.
func rowToMap(cols []string, vals []any) map[string]any {
	m := make(map[string]any, len(cols))
	for i, c := range cols {
		v := vals[i]
		if b, ok := v.([]byte); ok {
			// JSON objects and arrays decode; anything else stays a string.
			var js any
			if json.Unmarshal(b, &js) == nil {
				switch js.(type) {
				case map[string]any, []any:
					m[c] = js
					continue
				}
			}
			m[c] = string(b)
			continue
		}
		m[c] = v
	}
	return m
}

// encodeValue converts maps, slices and structs without a driver encoding to JSON.
func encodeValue(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if _, ok := v.(driver.Valuer); ok {
		return v, nil
	}
	switch v.(type) {
	case []byte, time.Time:
		return v, nil
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct:
		return json.Marshal(v)
	}
	return v, nil
}

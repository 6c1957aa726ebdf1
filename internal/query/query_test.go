package query_test

import (
	"testing"

	"github.com/mickamy/dirtry/internal/query"
)

func TestInsert(t *testing.T) {
	t.Parallel()

	tcs := []struct {
		name  string
		table string
		cols  []string
		want  string
	}{
		{
			name:  "simple",
			table: "people",
			cols:  []string{"_id", "name"},
			want:  `INSERT INTO "people" ("_id", "name") VALUES ($1, $2)`,
		},
		{
			name:  "schema qualified",
			table: "crm.people",
			cols:  []string{"_id"},
			want:  `INSERT INTO "crm"."people" ("_id") VALUES ($1)`,
		},
	}

	for _, tc := range tcs {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := query.Insert(tc.table, tc.cols); got != tc.want {
				t.Fatalf("Insert(%q, %#v) = %q, want %q", tc.table, tc.cols, got, tc.want)
			}
		})
	}
}

func TestUpdate(t *testing.T) {
	t.Parallel()

	tcs := []struct {
		name  string
		table string
		cols  []string
		key   string
		want  string
	}{
		{
			name:  "one column",
			table: "people",
			cols:  []string{"name"},
			key:   "_id",
			want:  `UPDATE "people" SET "name" = $1 WHERE "_id" = $2`,
		},
		{
			name:  "several columns",
			table: "people",
			cols:  []string{"age", "name"},
			key:   "id",
			want:  `UPDATE "people" SET "age" = $1, "name" = $2 WHERE "id" = $3`,
		},
	}

	for _, tc := range tcs {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := query.Update(tc.table, tc.cols, tc.key); got != tc.want {
				t.Fatalf("Update(%q, %#v, %q) = %q, want %q", tc.table, tc.cols, tc.key, got, tc.want)
			}
		})
	}
}

func TestSelectByKey(t *testing.T) {
	t.Parallel()

	got := query.SelectByKey("crm.people", "_id")
	want := `SELECT * FROM "crm"."people" WHERE "_id" = $1`
	if got != want {
		t.Fatalf("SelectByKey() = %q, want %q", got, want)
	}
}

func TestTableExists(t *testing.T) {
	t.Parallel()

	got := query.TableExists("people_changes")
	want := `SELECT to_regclass('"people_changes"') IS NOT NULL`
	if got != want {
		t.Fatalf("TableExists() = %q, want %q", got, want)
	}
}

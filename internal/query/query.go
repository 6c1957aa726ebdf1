package query

import (
	"fmt"
	"strings"

	"github.com/mickamy/dirtry/internal/ident"
)

// Operations recorded in the change journal.
const (
	OpInsert = "INSERT"
	OpUpdate = "UPDATE"
)

// Insert renders an INSERT of cols into table with positional placeholders.
func Insert(table string, cols []string) string {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(ident.QuoteTable(table))
	b.WriteString(" (")
	b.WriteString(columnList(cols))
	b.WriteString(") VALUES (")
	for i := range cols {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "$%d", i+1)
	}
	b.WriteString(")")
	return b.String()
}

// Update renders an UPDATE of cols on the row whose key column matches the
// placeholder following the SET values.
func Update(table string, cols []string, key string) string {
	var b strings.Builder
	b.WriteString("UPDATE ")
	b.WriteString(ident.QuoteTable(table))
	b.WriteString(" SET ")
	for i, c := range cols {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s = $%d", ident.Quote(c), i+1)
	}
	fmt.Fprintf(&b, " WHERE %s = $%d", ident.Quote(key), len(cols)+1)
	return b.String()
}

// SelectByKey renders a single-row lookup on the key column.
func SelectByKey(table, key string) string {
	return fmt.Sprintf("SELECT * FROM %s WHERE %s = $1", ident.QuoteTable(table), ident.Quote(key))
}

// InsertJournal renders the insert of one change journal row.
func InsertJournal(table string) string {
	return fmt.Sprintf(`INSERT INTO %s (id, operation, operated_at, operated_by, trace_id, reason, before, after)
VALUES ($1, $2, now(), $3, $4, $5, $6, $7)`, ident.QuoteTable(table))
}

// TableExists renders a query reporting whether the table is present.
func TableExists(table string) string {
	return fmt.Sprintf("SELECT to_regclass(%s) IS NOT NULL", ident.RegclassLiteral(ident.SplitQualified(table)))
}

func columnList(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = ident.Quote(c)
	}
	return strings.Join(quoted, ", ")
}

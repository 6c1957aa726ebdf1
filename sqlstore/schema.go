package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mickamy/dirtry/document"
	"github.com/mickamy/dirtry/internal/ident"
)

// Migrate creates the changes table of every schema's base table.
// Base tables must already exist.
func Migrate(ctx context.Context, db *sql.DB, cfg Config, schemas ...*document.Schema) error {
	cfg = cfg.withDefaults()
	for _, s := range schemas {
		if s == nil {
			return errors.New("sqlstore: nil schema")
		}
		base, err := selectBaseTable(ctx, db, TableName(s), s.IdentityKey())
		if err != nil {
			return err
		}
		if err := createChangesTable(ctx, db, cfg, base); err != nil {
			return err
		}
		cfg.Logger.Debug("changes table ready", zap.String("table", base.ident))
	}
	return nil
}

type tableInfo struct {
	schema string
	table  string
	ident  string
	idType string
}

func selectBaseTable(ctx context.Context, db *sql.DB, name, key string) (tableInfo, error) {
	parts := ident.SplitQualified(name)
	var schemaName, tableName string
	switch len(parts) {
	case 1:
		schemaName = "public"
		tableName = parts[0]
	case 2:
		schemaName = parts[0]
		tableName = parts[1]
	default:
		return tableInfo{}, fmt.Errorf("sqlstore: unsupported identifier %q", name)
	}

	row := db.QueryRowContext(ctx, `
        SELECT
            n.nspname,
            r.relname,
            pg_catalog.format_type(a.atttypid, a.atttypmod) AS id_type
        FROM pg_class r
        JOIN pg_namespace n ON n.oid = r.relnamespace
        LEFT JOIN (
            SELECT attrelid, atttypid, atttypmod
            FROM pg_attribute
            WHERE attname = $3
              AND attnum > 0
              AND NOT attisdropped
        ) AS a ON a.attrelid = r.oid
        WHERE n.nspname = $1 AND r.relname = $2
    `, schemaName, tableName, key)

	var info tableInfo
	var idType sql.NullString
	if err := row.Scan(&info.schema, &info.table, &idType); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return tableInfo{}, fmt.Errorf("sqlstore: table %s.%s not found", schemaName, tableName)
		}
		return tableInfo{}, err
	}
	info.ident = ident.QuoteQualified([]string{info.schema, info.table})
	if idType.Valid {
		info.idType = idType.String
	}
	return info, nil
}

func createChangesTable(ctx context.Context, db *sql.DB, cfg Config, base tableInfo) error {
	changesParts := []string{base.schema, base.table + cfg.ChangesSuffix}
	changesIdent := ident.QuoteQualified(changesParts)
	idType := base.idType
	if idType == "" {
		idType = "TEXT"
	}
	columns := []string{
		"change_id BIGSERIAL PRIMARY KEY",
		fmt.Sprintf("id %s", idType),
		"operation TEXT NOT NULL",
		"operated_at TIMESTAMPTZ NOT NULL",
		"operated_by TEXT",
		"trace_id TEXT",
		"reason TEXT",
		"before JSONB",
		"after JSONB",
	}

	ddl := fmt.Sprintf(`
    CREATE TABLE IF NOT EXISTS %s (
        %s
    );
    `, changesIdent, strings.Join(columns, ",\n\t"))

	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("sqlstore: failed to create %s: %w", changesIdent, err)
	}
	if cfg.CreateIDIndex {
		indexName := fmt.Sprintf("idx_%s_id", ident.BaseName(changesIdent))
		stmt := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (id);`, ident.Quote(indexName), changesIdent)
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlstore: failed to index %s: %w", changesIdent, err)
		}
	}
	return nil
}

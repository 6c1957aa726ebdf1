package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jinzhu/inflection"
	"go.uber.org/zap"

	"github.com/mickamy/dirtry/document"
	"github.com/mickamy/dirtry/internal/ident"
	"github.com/mickamy/dirtry/internal/query"
)

// ErrNotFound is returned when no row matches a document's identity.
var ErrNotFound = errors.New("sqlstore: not found")

// RedactFunc defines a function used to sanitize or mask values before journaling.
type RedactFunc func(key string, v any) any

// RedactMap maps key names to specific redaction functions.
type RedactMap map[string]RedactFunc

// Config defines the options of a Store.
type Config struct {
	ChangesSuffix   string      // e.g. "_changes" (default)
	Redact          RedactMap   // optional key-based redaction of journal values
	SkipIfNotExists bool        // skip journaling when the changes table does not exist
	CreateIDIndex   bool        // Migrate creates an index on the journal id column
	Logger          *zap.Logger // defaults to a no-op logger
}

func (c Config) withDefaults() Config {
	if c.ChangesSuffix == "" {
		c.ChangesSuffix = "_changes"
	}
	if c.Redact == nil {
		c.Redact = RedactMap{}
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}

// ChangesTableName returns the journal table of a base table.
func (c Config) ChangesTableName(base string) string {
	parts := ident.SuffixParts(base, c.withDefaults().ChangesSuffix)
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, ".")
}

// TableName returns the table documents of schema s are stored in. A
// schema-qualified name is used as is; otherwise the name is snake-cased and
// pluralised, so "LineItem" becomes "line_items".
func TableName(s *document.Schema) string {
	name := strings.TrimSpace(s.Name())
	if len(ident.SplitQualified(name)) > 1 {
		return name
	}
	return inflection.Plural(ident.SnakeCase(name))
}

// Store persists documents through database/sql and journals every save.
// It implements document.Persister and document.Loader.
type Store struct {
	db  *sql.DB
	cfg Config
	log *zap.Logger
}

// New creates a Store on db.
func New(db *sql.DB, cfg Config) *Store {
	cfg = cfg.withDefaults()
	return &Store{db: db, cfg: cfg, log: cfg.Logger.Named("sqlstore")}
}

// Persist saves d in its own transaction.
func (s *Store) Persist(ctx context.Context, d *document.Document) error {
	tx, err := s.Begin(ctx, nil)
	if err != nil {
		return err
	}
	if err := tx.Persist(ctx, d); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Load reads the stored attributes of the document with identity id.
func (s *Store) Load(ctx context.Context, schema *document.Schema, id any) (map[string]any, error) {
	rows, err := s.db.QueryContext(ctx, query.SelectByKey(TableName(schema), schema.IdentityKey()), id)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: failed to query %s: %w", TableName(schema), err)
	}
	m, err := scanOne(rows)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s %v", ErrNotFound, TableName(schema), id)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlstore: failed to scan %s: %w", TableName(schema), err)
	}
	return m, nil
}

// Find loads the document of schema with identity id.
func (s *Store) Find(ctx context.Context, schema *document.Schema, id any) (*document.Document, error) {
	attrs, err := s.Load(ctx, schema, id)
	if err != nil {
		return nil, err
	}
	return document.Load(schema, attrs)
}

// applyRedact returns a redacted copy of the given map using cfg.Redact.
func (s *Store) applyRedact(m map[string]any) map[string]any {
	if m == nil || len(s.cfg.Redact) == 0 {
		return m
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if fn, ok := s.cfg.Redact[k]; ok && fn != nil {
			out[k] = fn(k, v)
		} else {
			out[k] = v
		}
	}
	return out
}

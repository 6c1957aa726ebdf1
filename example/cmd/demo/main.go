package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/mickamy/dirtry"
	"github.com/mickamy/dirtry/document"
	"github.com/mickamy/dirtry/sqlstore"
)

func main() {
	cfg, found, err := loadConfig(".")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := newLogger(cfg.LogMode)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("config loaded", zap.Bool("file", found))

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("open", zap.Error(err))
	}
	defer func(db *sql.DB) {
		_ = db.Close()
	}(db)

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS people (
    _id UUID PRIMARY KEY,
    name TEXT,
    email TEXT,
    address JSONB
)`); err != nil {
		logger.Fatal("create people", zap.Error(err))
	}

	tracker := dirtry.New(dirtry.Config{Logger: logger})
	people := document.NewSchema("Person", tracker).
		Key("name").
		Key("email", document.Cast(func(v any) (any, error) {
			return strings.ToLower(fmt.Sprint(v)), nil
		})).
		Embedded("address").
		Validate(func(d *document.Document) error {
			if d.Get("name") == nil {
				return fmt.Errorf("name is required")
			}
			return nil
		})

	storeCfg := sqlstore.Config{CreateIDIndex: true, Logger: logger}
	if err := sqlstore.Migrate(ctx, db, storeCfg, people); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}
	store := sqlstore.New(db, storeCfg)

	ctx = dirtry.WithOperator(ctx, "demo-user")
	ctx = dirtry.WithTraceID(ctx, "trace-"+uuid.NewString())
	ctx = dirtry.WithReason(ctx, "demo run")

	// Identity is generated and never reported as a change.
	d, err := document.New(people, map[string]any{"email": "Alice@Example.com"})
	if err != nil {
		logger.Fatal("new", zap.Error(err))
	}
	fmt.Printf("new: changed=%v\n", d.ChangedKeys())

	// Rejected by validation: the pending changes stay.
	if ok, err := d.Save(ctx, store); err != nil || ok {
		logger.Fatal("expected rejected save", zap.Bool("ok", ok), zap.Error(err))
	}
	fmt.Printf("rejected: changed=%v errors=%v\n", d.ChangedKeys(), d.Errors())

	if err := d.Set("name", "Alice"); err != nil {
		logger.Fatal("set", zap.Error(err))
	}
	if _, err := d.Save(ctx, store); err != nil {
		logger.Fatal("insert", zap.Error(err))
	}
	fmt.Printf("inserted: previous=%v\n", d.PreviousChanges())

	// Only the dirty column is written.
	if err := d.Set("name", "Alice Liddell"); err != nil {
		logger.Fatal("set", zap.Error(err))
	}
	if err := d.Set("address", map[string]any{"city": "Oxford"}); err != nil {
		logger.Fatal("set", zap.Error(err))
	}
	fmt.Printf("editing: changes=%v\n", d.Changes())
	if _, err := d.Save(ctx, store); err != nil {
		logger.Fatal("update", zap.Error(err))
	}

	if err := d.Set("name", "scratch"); err != nil {
		logger.Fatal("set", zap.Error(err))
	}
	if err := d.Reload(ctx, store); err != nil {
		logger.Fatal("reload", zap.Error(err))
	}
	fmt.Printf("reloaded: name=%v changed=%v\n", d.Get("name"), d.Changed())

	var cnt int
	if err := db.QueryRowContext(context.Background(), `SELECT COUNT(*) FROM people_changes`).Scan(&cnt); err != nil {
		logger.Fatal("count changes", zap.Error(err))
	}
	fmt.Printf("change rows = %d (expected >= 2)\n", cnt)
}

func newLogger(mode string) (*zap.Logger, error) {
	switch strings.ToLower(mode) {
	case "prod", "production":
		return zap.NewProduction()
	default:
		return zap.NewDevelopment()
	}
}

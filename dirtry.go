package dirtry

import (
	"reflect"

	"go.uber.org/zap"
)

// ShouldChangeFunc reports whether assigning next over current counts as a change.
type ShouldChangeFunc func(current, next any) bool

// FieldMap maps field names to specific should-change rules.
type FieldMap map[string]ShouldChangeFunc

// KindMap maps value types to specific should-change rules.
type KindMap map[reflect.Type]ShouldChangeFunc

// Config defines the main configuration options for dirtry.
type Config struct {
	IdentityKey string      // e.g. "_id" (default)
	Policy      Policy      // fallback rule when no field or kind rule matches
	Fields      FieldMap    // optional per-field rules, keyed by canonical name
	Kinds       KindMap     // optional per-type rules, keyed by the stored value's type
	Logger      *zap.Logger // defaults to a no-op logger
}

// Tracker holds the change policy shared by every record of a type.
// It is immutable after New and safe for concurrent use.
type Tracker struct {
	cfg Config
	log *zap.Logger
}

// New creates a new Tracker instance with sensible defaults.
func New(cfg Config) *Tracker {
	if cfg.IdentityKey == "" {
		cfg.IdentityKey = "_id"
	}
	if cfg.Policy.Blank == nil {
		cfg.Policy.Blank = IsBlank
	}
	if cfg.Policy.Opaque == nil {
		cfg.Policy.Opaque = IsOpaque
	}
	if cfg.Fields == nil {
		cfg.Fields = FieldMap{}
	}
	if cfg.Kinds == nil {
		cfg.Kinds = KindMap{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Tracker{cfg: cfg, log: cfg.Logger.Named("dirtry")}
}

// IdentityKey returns the name of the field that construction never reports as changed.
func (t *Tracker) IdentityKey() string {
	return t.cfg.IdentityKey
}

// Attach creates the ledger for a single record.
func (t *Tracker) Attach(rec Record) *Ledger {
	return &Ledger{
		t:        t,
		rec:      rec,
		changed:  map[string]any{},
		previous: map[string]any{},
	}
}

// shouldChange resolves the rule for key and applies it.
func (t *Tracker) shouldChange(key string, current, next any) bool {
	if fn, ok := t.cfg.Fields[key]; ok && fn != nil {
		return fn(current, next)
	}
	if current != nil {
		if fn, ok := t.cfg.Kinds[reflect.TypeOf(current)]; ok && fn != nil {
			return fn(current, next)
		}
	}
	return t.cfg.Policy.ShouldChange(current, next)
}

package document

import (
	"context"
	"sort"

	"github.com/mickamy/dirtry"
)

// CastFunc converts an assigned value to the key's stored form.
type CastFunc func(v any) (any, error)

// Key describes a declared field.
type Key struct {
	Name    string
	Alias   string
	Default any
	Cast    CastFunc
}

// KeyOption configures a Key.
type KeyOption func(*Key)

// Default sets the value a new document starts with.
func Default(v any) KeyOption {
	return func(k *Key) { k.Default = v }
}

// As registers an alternative name that resolves to the key.
func As(alias string) KeyOption {
	return func(k *Key) { k.Alias = alias }
}

// Cast converts every value assigned to the key.
func Cast(fn CastFunc) KeyOption {
	return func(k *Key) { k.Cast = fn }
}

// Hook runs around persistence. Returning ErrHalt stops the save without an error.
type Hook func(ctx context.Context, d *Document) error

// Validator checks a document before it is saved.
type Validator func(d *Document) error

// Schema declares the keys, aliases, embedded associations and save pipeline
// shared by every document of a kind. Declare everything before creating
// documents; a Schema is read-only afterwards.
type Schema struct {
	name       string
	tracker    *dirtry.Tracker
	keys       map[string]Key
	aliases    map[string]string
	embedded   map[string]struct{}
	validators []Validator
	before     []Hook
	after      []Hook
}

// NewSchema creates a schema whose documents are tracked by t.
// A nil tracker uses dirtry defaults.
func NewSchema(name string, t *dirtry.Tracker) *Schema {
	if t == nil {
		t = dirtry.New(dirtry.Config{})
	}
	s := &Schema{
		name:     name,
		tracker:  t,
		keys:     map[string]Key{},
		aliases:  map[string]string{},
		embedded: map[string]struct{}{},
	}
	return s.Key(t.IdentityKey())
}

// Key declares a field.
func (s *Schema) Key(name string, opts ...KeyOption) *Schema {
	k := Key{Name: name}
	for _, opt := range opts {
		opt(&k)
	}
	s.keys[name] = k
	if k.Alias != "" {
		s.aliases[k.Alias] = name
	}
	return s
}

// Embedded declares an embedded association stored inline with the document.
func (s *Schema) Embedded(name string) *Schema {
	s.embedded[name] = struct{}{}
	return s
}

// Validate appends a validator.
func (s *Schema) Validate(v Validator) *Schema {
	s.validators = append(s.validators, v)
	return s
}

// BeforeSave appends a hook run after validation and before persisting.
func (s *Schema) BeforeSave(h Hook) *Schema {
	s.before = append(s.before, h)
	return s
}

// AfterSave appends a hook run after persisting.
func (s *Schema) AfterSave(h Hook) *Schema {
	s.after = append(s.after, h)
	return s
}

// Name returns the schema name.
func (s *Schema) Name() string {
	return s.name
}

// IdentityKey returns the canonical name of the identity field.
func (s *Schema) IdentityKey() string {
	return s.tracker.IdentityKey()
}

// Columns returns the identity key followed by the other declared keys and
// embedded associations in sorted order.
func (s *Schema) Columns() []string {
	id := s.IdentityKey()
	rest := make([]string, 0, len(s.keys)+len(s.embedded))
	for name := range s.keys {
		if name != id {
			rest = append(rest, name)
		}
	}
	for name := range s.embedded {
		if _, ok := s.keys[name]; !ok {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append([]string{id}, rest...)
}

// IsAttribute reports whether name is a declared key or an embedded association.
func (s *Schema) IsAttribute(name string) bool {
	if _, ok := s.keys[name]; ok {
		return true
	}
	_, ok := s.embedded[name]
	return ok
}

// Unalias resolves an alias to its key name. Other names are returned as is.
func (s *Schema) Unalias(name string) string {
	if k, ok := s.aliases[name]; ok {
		return k
	}
	return name
}

func (s *Schema) cast(name string, v any) (any, error) {
	k, ok := s.keys[name]
	if !ok || k.Cast == nil || v == nil {
		return v, nil
	}
	return k.Cast(v)
}

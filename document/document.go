package document

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/mickamy/dirtry"
)

var (
	// ErrInvalid wraps the validation errors of a rejected save.
	ErrInvalid = errors.New("document: invalid")
	// ErrHalt is returned by a Hook to stop a save without failing it.
	ErrHalt = errors.New("document: halted")
)

// Persister writes a document to its store.
type Persister interface {
	Persist(ctx context.Context, d *Document) error
}

// Loader reads the stored attributes of the document with the given identity.
type Loader interface {
	Load(ctx context.Context, s *Schema, id any) (map[string]any, error)
}

// Document is a record of a Schema whose writes are tracked.
// A Document is not safe for concurrent use.
type Document struct {
	schema    *Schema
	attrs     map[string]any
	ledger    *dirtry.Ledger
	persisted bool
	errs      []error
}

// New builds an unsaved document. Every assigned attribute is a pending
// change except the identity, which is generated when attrs has none.
func New(s *Schema, attrs map[string]any) (*Document, error) {
	d := newDocument(s)
	id := s.IdentityKey()
	var v any
	for _, name := range sortedNames(attrs) {
		if s.Unalias(name) == id && attrs[name] != nil {
			v = attrs[name]
			break
		}
	}
	if v == nil {
		v = uuid.New()
	}
	if err := d.Set(id, v); err != nil {
		return nil, err
	}
	for _, name := range sortedNames(attrs) {
		if s.Unalias(name) == id {
			continue
		}
		if err := d.Set(name, attrs[name]); err != nil {
			return nil, err
		}
	}
	d.ledger.Construct()
	return d, nil
}

// Load builds a persisted document from stored attributes. It has no pending changes.
func Load(s *Schema, attrs map[string]any) (*Document, error) {
	d := newDocument(s)
	if err := d.populate(attrs); err != nil {
		return nil, err
	}
	d.persisted = true
	d.ledger.Construct()
	return d, nil
}

func newDocument(s *Schema) *Document {
	d := &Document{schema: s, attrs: map[string]any{}}
	for name, k := range s.keys {
		if k.Default != nil {
			d.attrs[name] = k.Default
		}
	}
	d.ledger = s.tracker.Attach(record{d})
	return d
}

func (d *Document) populate(attrs map[string]any) error {
	fresh := map[string]any{}
	for name, k := range d.schema.keys {
		if k.Default != nil {
			fresh[name] = k.Default
		}
	}
	for name, v := range attrs {
		name = d.schema.Unalias(name)
		cv, err := d.schema.cast(name, v)
		if err != nil {
			return fmt.Errorf("document: failed to load %q: %w", name, err)
		}
		fresh[name] = cv
	}
	d.attrs = fresh
	return nil
}

// Get returns the value of name, resolving aliases.
func (d *Document) Get(name string) any {
	return d.attrs[d.schema.Unalias(name)]
}

// Set assigns v to name. Declared keys and embedded associations are tracked;
// other names are stored as untracked dynamic attributes.
func (d *Document) Set(name string, v any) error {
	_, err := d.ledger.Write(name, v)
	return err
}

// ID returns the identity value.
func (d *Document) ID() any {
	return d.attrs[d.schema.IdentityKey()]
}

// Schema returns the schema d was built from.
func (d *Document) Schema() *Schema {
	return d.schema
}

// Persisted reports whether the document has been saved or loaded.
func (d *Document) Persisted() bool {
	return d.persisted
}

// Attributes returns a copy of every stored value.
func (d *Document) Attributes() map[string]any {
	out := make(map[string]any, len(d.attrs))
	for k, v := range d.attrs {
		out[k] = v
	}
	return out
}

// Errors returns the validation errors of the last save attempt.
func (d *Document) Errors() []error {
	return d.errs
}

// Ledger exposes the full change-tracking API.
func (d *Document) Ledger() *dirtry.Ledger {
	return d.ledger
}

// Changed reports whether any field has a pending change.
func (d *Document) Changed() bool {
	return d.ledger.Changed()
}

// FieldChanged reports whether name has a pending change.
func (d *Document) FieldChanged(name string) bool {
	return d.ledger.FieldChanged(name)
}

// ChangedKeys returns the names of changed fields in sorted order.
func (d *Document) ChangedKeys() []string {
	return d.ledger.ChangedKeys()
}

// Changes returns the old and new value of every changed field.
func (d *Document) Changes() map[string]dirtry.Change {
	return d.ledger.Changes()
}

// PreviousChanges returns the changes applied by the last save or reload.
func (d *Document) PreviousChanges() map[string]dirtry.Change {
	return d.ledger.PreviousChanges()
}

// FieldWas returns the value name held before its pending change, or its
// current value when it is unchanged.
func (d *Document) FieldWas(name string) any {
	return d.ledger.FieldWas(name)
}

// Validate runs the schema validators and keeps their errors.
func (d *Document) Validate() error {
	d.errs = nil
	for _, v := range d.schema.validators {
		if err := v(d); err != nil {
			d.errs = append(d.errs, err)
		}
	}
	if len(d.errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(d.errs...))
}

// Save validates, runs the before hooks, persists through p and runs the after
// hooks. It returns false when validation fails or a before hook halts; pending
// changes are then kept. Once p has persisted the document the save counts:
// ErrHalt from an after hook is ignored and any other after hook error is
// returned alongside true.
func (d *Document) Save(ctx context.Context, p Persister) (bool, error) {
	var afterErr error
	ok, err := d.ledger.Commit(ctx, func(ctx context.Context) (bool, error) {
		if err := d.Validate(); err != nil {
			return false, nil
		}
		for _, h := range d.schema.before {
			if err := h(ctx, d); err != nil {
				return halted(err)
			}
		}
		if err := p.Persist(ctx, d); err != nil {
			return false, err
		}
		d.persisted = true
		for _, h := range d.schema.after {
			if err := h(ctx, d); err != nil {
				if !errors.Is(err, ErrHalt) {
					afterErr = fmt.Errorf("document: after save: %w", err)
				}
				break
			}
		}
		return true, nil
	})
	if err != nil {
		return ok, err
	}
	return ok, afterErr
}

// Checkpoint captures the persisted flag and the ledger state. The returned
// func restores both; transactional persisters call it when the surrounding
// transaction does not commit.
func (d *Document) Checkpoint() func() {
	persisted := d.persisted
	rewind := d.ledger.Checkpoint()
	return func() {
		d.persisted = persisted
		rewind()
	}
}

// Reload replaces every attribute with the stored values and clears pending changes.
func (d *Document) Reload(ctx context.Context, l Loader) error {
	return d.ledger.Reload(ctx, func(ctx context.Context) error {
		attrs, err := l.Load(ctx, d.schema, d.ID())
		if err != nil {
			return err
		}
		if err := d.populate(attrs); err != nil {
			return err
		}
		d.persisted = true
		return nil
	})
}

func halted(err error) (bool, error) {
	if errors.Is(err, ErrHalt) {
		return false, nil
	}
	return false, err
}

// record adapts a Document to dirtry.Record.
type record struct{ d *Document }

func (r record) ReadKey(key string) any { return r.d.attrs[key] }

func (r record) WriteKey(key string, v any) (any, error) {
	cv, err := r.d.schema.cast(key, v)
	if err != nil {
		return nil, fmt.Errorf("document: failed to assign %q: %w", key, err)
	}
	r.d.attrs[key] = cv
	return cv, nil
}

func (r record) IsAttribute(key string) bool { return r.d.schema.IsAttribute(key) }

func (r record) UnaliasKey(key string) string { return r.d.schema.Unalias(key) }

func sortedNames(m map[string]any) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

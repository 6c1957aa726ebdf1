package dirtry

import (
	"context"
	"maps"
	"reflect"
	"sort"

	"go.uber.org/zap"
)

// Record is the host a Ledger tracks.
type Record interface {
	// ReadKey returns the value currently stored under key.
	ReadKey(key string) any
	// WriteKey stores v under key and returns whatever the host's write returns.
	WriteKey(key string, v any) (any, error)
	// IsAttribute reports whether key is a declared field or an embedded association.
	IsAttribute(key string) bool
	// UnaliasKey resolves an alias to its canonical field name.
	UnaliasKey(key string) string
}

// CommitFunc is the save procedure wrapped by Commit. Returning false without
// an error means the save was rejected, typically by validation.
type CommitFunc func(ctx context.Context) (bool, error)

// ReloadFunc repopulates the record from its store.
type ReloadFunc func(ctx context.Context) error

// Ledger records which fields of a single record changed since it was last
// loaded or saved. A Ledger is owned by its record and is not safe for
// concurrent use.
type Ledger struct {
	t        *Tracker
	rec      Record
	changed  map[string]any // canonical key -> value before the first change
	previous map[string]any // changed as of the last commit
}

// Construct is called once the record's fields are initialised. The identity
// key assigned during construction is never a pending change.
func (l *Ledger) Construct() {
	l.Forget(l.t.cfg.IdentityKey)
}

// Write assigns value to key through the record, tracking the change when key
// is an attribute. Writes to other names pass through untracked.
func (l *Ledger) Write(key string, value any) (any, error) {
	key = l.rec.UnaliasKey(key)
	if !l.rec.IsAttribute(key) {
		return l.rec.WriteKey(key, value)
	}
	current := l.rec.ReadKey(key)
	if _, ok := l.changed[key]; !ok && l.t.shouldChange(key, current, value) {
		l.changed[key] = current
	}
	out, err := l.rec.WriteKey(key, value)
	if orig, ok := l.changed[key]; ok && Equal(orig, l.rec.ReadKey(key)) {
		delete(l.changed, key)
	}
	return out, err
}

// WillChange marks key as changing before an in-place mutation of its value.
// A shallow copy of the current value is kept as the original.
func (l *Ledger) WillChange(key string) {
	key = l.rec.UnaliasKey(key)
	if !l.rec.IsAttribute(key) {
		return
	}
	if _, ok := l.changed[key]; ok {
		return
	}
	l.changed[key] = shallowCopy(l.rec.ReadKey(key))
}

// Commit runs action and, unless it fails or returns false, makes the current
// values the new baseline. The pending changes become the previous changes.
// A nil action is a successful no-op.
func (l *Ledger) Commit(ctx context.Context, action CommitFunc) (bool, error) {
	previous := l.ChangedAttributes()
	ok := true
	if action != nil {
		var err error
		ok, err = action(ctx)
		if err != nil {
			return ok, err
		}
	}
	if !ok {
		l.t.log.Debug("commit rejected", zap.Strings("pending", sortedKeys(l.changed)))
		return false, nil
	}
	l.previous = previous
	l.changed = map[string]any{}
	l.t.log.Debug("commit applied", zap.Strings("changed", sortedKeys(previous)))
	return true, nil
}

// Reload runs action and then clears every pending change. There is no
// rejected outcome: the reload either fails with an error or succeeds.
func (l *Ledger) Reload(ctx context.Context, action ReloadFunc) error {
	if action != nil {
		if err := action(ctx); err != nil {
			return err
		}
	}
	l.previous = l.ChangedAttributes()
	l.changed = map[string]any{}
	l.t.log.Debug("reloaded", zap.Strings("discarded", sortedKeys(l.previous)))
	return nil
}

// Checkpoint captures the pending and previous changes. Calling the returned
// func puts both back, undoing any Commit or Reload made since. Record values
// are not touched.
func (l *Ledger) Checkpoint() func() {
	changed, previous := maps.Clone(l.changed), maps.Clone(l.previous)
	return func() {
		l.changed, l.previous = maps.Clone(changed), maps.Clone(previous)
	}
}

// Restore writes the original values of keys back to the record. With no
// keys, every changed field is restored.
func (l *Ledger) Restore(keys ...string) error {
	if len(keys) == 0 {
		keys = l.ChangedKeys()
	}
	for _, key := range keys {
		key = l.rec.UnaliasKey(key)
		orig, ok := l.changed[key]
		if !ok {
			continue
		}
		if _, err := l.rec.WriteKey(key, orig); err != nil {
			return err
		}
		delete(l.changed, key)
	}
	return nil
}

// Forget drops keys from the pending changes without touching their values.
func (l *Ledger) Forget(keys ...string) {
	for _, key := range keys {
		delete(l.changed, l.rec.UnaliasKey(key))
	}
}

// Changed reports whether any field has a pending change.
func (l *Ledger) Changed() bool {
	return len(l.changed) > 0
}

// FieldChanged reports whether key has a pending change.
func (l *Ledger) FieldChanged(key string) bool {
	_, ok := l.changed[l.rec.UnaliasKey(key)]
	return ok
}

// ChangedKeys returns the names of changed fields in sorted order.
func (l *Ledger) ChangedKeys() []string {
	return sortedKeys(l.changed)
}

// ChangedAttributes returns a copy of the original values of changed fields.
func (l *Ledger) ChangedAttributes() map[string]any {
	out := make(map[string]any, len(l.changed))
	for k, v := range l.changed {
		out[k] = v
	}
	return out
}

// Changes returns the old and new value of every changed field.
func (l *Ledger) Changes() map[string]Change {
	return l.pairs(l.changed)
}

// FieldChange returns the pending change of key, if any.
func (l *Ledger) FieldChange(key string) (Change, bool) {
	key = l.rec.UnaliasKey(key)
	orig, ok := l.changed[key]
	if !ok {
		return Change{}, false
	}
	return Change{Old: orig, New: l.rec.ReadKey(key)}, true
}

// FieldWas returns the value key held before the pending change, or its
// current value when it is unchanged. It returns nil for names that are not
// attributes.
func (l *Ledger) FieldWas(key string) any {
	key = l.rec.UnaliasKey(key)
	if orig, ok := l.changed[key]; ok {
		return orig
	}
	if !l.rec.IsAttribute(key) {
		return nil
	}
	return l.rec.ReadKey(key)
}

// PreviousChanges returns the changes as they stood at the last commit. The
// new side is read from the record now.
func (l *Ledger) PreviousChanges() map[string]Change {
	return l.pairs(l.previous)
}

// FieldPreviouslyChanged reports whether key was changed at the last commit.
func (l *Ledger) FieldPreviouslyChanged(key string) bool {
	_, ok := l.previous[l.rec.UnaliasKey(key)]
	return ok
}

// PreviousFieldChange returns key's change as of the last commit, if any.
func (l *Ledger) PreviousFieldChange(key string) (Change, bool) {
	key = l.rec.UnaliasKey(key)
	orig, ok := l.previous[key]
	if !ok {
		return Change{}, false
	}
	return Change{Old: orig, New: l.rec.ReadKey(key)}, true
}

func (l *Ledger) pairs(m map[string]any) map[string]Change {
	out := make(map[string]Change, len(m))
	for k, orig := range m {
		out[k] = Change{Old: orig, New: l.rec.ReadKey(k)}
	}
	return out
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// shallowCopy copies maps and slices one level deep so later in-place
// mutation of v does not reach the copy.
func shallowCopy(v any) any {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		if rv.IsNil() {
			return v
		}
		out := reflect.MakeMapWithSize(rv.Type(), rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), iter.Value())
		}
		return out.Interface()
	case reflect.Slice:
		if rv.IsNil() {
			return v
		}
		out := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
		reflect.Copy(out, rv)
		return out.Interface()
	}
	return v
}

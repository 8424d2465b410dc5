package testutil

import (
	"context"
	"fmt"
	"reflect"

	"github.com/tetherhq/tether"
	"github.com/tetherhq/tether/mapping"
	"github.com/tetherhq/tether/store"
)

// Session is a minimal tether.Session backed by a mapping document and a
// live database. It keeps an in-memory identity map, the way a real
// persistence context does during a flush, and answers store probes
// through the snapshot source.
type Session struct {
	doc      *mapping.Document
	registry *tether.Registry
	src      *store.SnapshotSource
	pc       *persistenceContext
	ic       tether.Interceptor
	dialect  dialect
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithInterceptor installs a transience interceptor.
func WithInterceptor(ic tether.Interceptor) SessionOption {
	return func(s *Session) { s.ic = ic }
}

// WithSelfReferentialFKBug makes the session's dialect report the
// self-referential foreign key defect.
func WithSelfReferentialFKBug() SessionOption {
	return func(s *Session) { s.dialect.selfRefBug = true }
}

// NewSession creates a session over the given mapping, registry, and
// database handle.
func NewSession(doc *mapping.Document, reg *tether.Registry, q store.Querier, opts ...SessionOption) *Session {
	s := &Session{
		doc:      doc,
		registry: reg,
		src:      store.NewSnapshotSource(q),
	}
	s.pc = &persistenceContext{session: s, entries: make(map[any]*entry)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Manage adds an entity to the session's identity map, as if it had been
// loaded or scheduled for deletion during the current flush.
func (s *Session) Manage(entity, id any, nullifiable bool) {
	s.pc.entries[entity] = &entry{id: id, nullifiable: nullifiable}
}

// Persistence returns the session's persistence context.
func (s *Session) Persistence() tether.PersistenceContext { return s.pc }

// Interceptor returns the configured interceptor, or nil.
func (s *Session) Interceptor() tether.Interceptor { return s.ic }

// Dialect returns the session's dialect.
func (s *Session) Dialect() tether.Dialect { return s.dialect }

// Descriptor resolves a descriptor by entity name, guessing the name
// from the instance when empty.
func (s *Session) Descriptor(entityName string, entity any) (tether.Descriptor, error) {
	if entityName == "" {
		entityName = s.GuessEntityName(entity)
	}
	d, ok := s.registry.Lookup(entityName)
	if !ok {
		return nil, fmt.Errorf("%w: %q", tether.ErrUnknownEntity, entityName)
	}
	return d, nil
}

// GuessEntityName derives the entity name from the instance's Go type.
func (s *Session) GuessEntityName(entity any) string {
	t := reflect.TypeOf(entity)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return ""
	}
	return t.Name()
}

// ContextIdentifier returns the identifier recorded in the identity map,
// or nil when the instance is not managed.
func (s *Session) ContextIdentifier(entity any) any {
	if e, ok := s.pc.entries[entity]; ok {
		return e.id
	}
	return nil
}

type entry struct {
	id          any
	nullifiable bool
}

func (e *entry) IsNullifiable(earlyInsert bool) bool { return e.nullifiable }

type persistenceContext struct {
	session *Session
	entries map[any]*entry
}

func (p *persistenceContext) EntryFor(entity any) (tether.EntityEntry, bool) {
	e, ok := p.entries[entity]
	return e, ok
}

func (p *persistenceContext) HasNullifiableEntities() bool {
	for _, e := range p.entries {
		if e.nullifiable {
			return true
		}
	}
	return false
}

func (p *persistenceContext) Snapshot(ctx context.Context, id any, d tether.Descriptor) ([]any, error) {
	e, ok := p.session.doc.Entity(d.EntityName())
	if !ok {
		return nil, fmt.Errorf("%w: %q", tether.ErrUnknownEntity, d.EntityName())
	}
	return p.session.src.Snapshot(ctx, e.Table, e.IDColumn, nil, id)
}

type dialect struct {
	selfRefBug bool
}

func (d dialect) HasSelfReferentialForeignKeyBug() bool { return d.selfRefBug }

package tether_test

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/tetherhq/tether"
)

// fakeEntity is a pointer-shaped entity instance. name selects the
// descriptor; a nil id marks the instance unsaved for descriptors built
// with unsavedStrategy.
type fakeEntity struct {
	name string
	id   any
}

func savedEntity(name string) *fakeEntity {
	return &fakeEntity{name: name, id: uuid.NewString()}
}

func unsavedEntity(name string) *fakeEntity {
	return &fakeEntity{name: name}
}

// entityIdentifier is the identifier accessor shared by test descriptors.
func entityIdentifier(entity any) (any, error) {
	fe, ok := entity.(*fakeEntity)
	if !ok {
		return nil, fmt.Errorf("not a fake entity: %T", entity)
	}
	return fe.id, nil
}

// unsavedStrategy answers transient for nil identifiers and persistent
// otherwise, mirroring a zero-valued unsaved-id strategy.
func unsavedStrategy(entity any) tether.Verdict {
	fe, ok := entity.(*fakeEntity)
	if !ok {
		return tether.VerdictUnknown
	}
	return tether.VerdictOf(fe.id == nil)
}

// fakeEntry is an identity-map entry with a fixed nullifiability answer.
type fakeEntry struct {
	nullifiable bool
}

func (e fakeEntry) IsNullifiable(earlyInsert bool) bool {
	return e.nullifiable
}

// fakePersistence is an identity map over instance pointers plus a row set
// keyed by identifier. probes counts store round trips.
type fakePersistence struct {
	entries     map[any]tether.EntityEntry
	rows        map[any]bool
	nullifiable bool
	probes      int
}

func newFakePersistence() *fakePersistence {
	return &fakePersistence{
		entries: make(map[any]tether.EntityEntry),
		rows:    make(map[any]bool),
	}
}

func (p *fakePersistence) EntryFor(entity any) (tether.EntityEntry, bool) {
	e, ok := p.entries[entity]
	return e, ok
}

func (p *fakePersistence) HasNullifiableEntities() bool {
	return p.nullifiable
}

func (p *fakePersistence) Snapshot(ctx context.Context, id any, d tether.Descriptor) ([]any, error) {
	p.probes++
	if p.rows[id] {
		return []any{id}, nil
	}
	return nil, nil
}

type fakeDialect struct {
	selfRefBug bool
}

func (d fakeDialect) HasSelfReferentialForeignKeyBug() bool {
	return d.selfRefBug
}

// verdictFunc adapts a function to tether.Interceptor.
type verdictFunc func(entity any) tether.Verdict

func (f verdictFunc) Transience(entity any) tether.Verdict {
	return f(entity)
}

// fakeSession implements tether.Session without the lazy-loading
// capability. loaderSession adds it.
type fakeSession struct {
	pc          *fakePersistence
	registry    *tether.Registry
	interceptor tether.Interceptor
	dialect     fakeDialect
	contextIDs  map[any]any
}

func newFakeSession(registry *tether.Registry) *fakeSession {
	return &fakeSession{
		pc:         newFakePersistence(),
		registry:   registry,
		contextIDs: make(map[any]any),
	}
}

func (s *fakeSession) Persistence() tether.PersistenceContext {
	return s.pc
}

func (s *fakeSession) Interceptor() tether.Interceptor {
	return s.interceptor
}

func (s *fakeSession) Dialect() tether.Dialect {
	return s.dialect
}

func (s *fakeSession) Descriptor(entityName string, entity any) (tether.Descriptor, error) {
	name := entityName
	if name == "" {
		if fe, ok := entity.(*fakeEntity); ok {
			name = fe.name
		}
	}
	if d, ok := s.registry.Lookup(name); ok {
		return d, nil
	}
	return nil, fmt.Errorf("%w: %q", tether.ErrUnknownEntity, name)
}

func (s *fakeSession) GuessEntityName(entity any) string {
	if fe, ok := entity.(*fakeEntity); ok {
		return fe.name
	}
	return fmt.Sprintf("%T", entity)
}

func (s *fakeSession) ContextIdentifier(entity any) any {
	return s.contextIDs[entity]
}

// loaderSession is a fakeSession that also implements
// tether.LazyPropertyLoader.
type loaderSession struct {
	*fakeSession
	load func(ctx context.Context, property string, owner any) (any, error)
}

func (s *loaderSession) InitializeLazyProperty(ctx context.Context, property string, owner any) (any, error) {
	return s.load(ctx, property, owner)
}

// fakeLazy implements tether.LazyReference.
type fakeLazy struct {
	uninitialized bool
	target        any
	resolveErr    error
}

func (l *fakeLazy) Uninitialized() bool {
	return l.uninitialized
}

func (l *fakeLazy) Resolve(ctx context.Context) (any, error) {
	if l.resolveErr != nil {
		return nil, l.resolveErr
	}
	return l.target, nil
}

// fakeComposite implements tether.CompositeValue over an ordered slice.
type fakeComposite struct {
	values []any
}

func (c *fakeComposite) PropertyValues() []any {
	return c.values
}

func (c *fakeComposite) SetPropertyValues(values []any) {
	c.values = values
}

// mustRegistry registers the descriptors or fails loudly at test setup.
func mustRegistry(descriptors ...tether.Descriptor) *tether.Registry {
	r := tether.NewRegistry()
	for _, d := range descriptors {
		if err := r.Register(d); err != nil {
			panic(err)
		}
	}
	return r
}

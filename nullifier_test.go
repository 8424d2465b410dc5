package tether_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/tetherhq/tether"
)

// nullifierRegistry declares an Order owning a scalar, a many-to-one
// Customer, a one-to-one Profile, a polymorphic attachment, and a
// composite shipping address with a nested many-to-one Country.
func nullifierRegistry() *tether.Registry {
	opts := []tether.TypeOption{
		tether.WithIdentifierFunc(entityIdentifier),
		tether.WithTransienceFunc(unsavedStrategy),
	}
	order := tether.NewType("Order", []tether.Property{
		{Name: "reference", Type: tether.Scalar()},
		{Name: "customer", Type: tether.ManyToOneRef("Customer")},
		{Name: "profile", Type: tether.OneToOneRef("Profile")},
		{Name: "attachment", Type: tether.AnyRef()},
		{Name: "shipping", Type: tether.CompositeOf(
			tether.Property{Name: "street", Type: tether.Scalar()},
			tether.Property{Name: "country", Type: tether.ManyToOneRef("Country")},
		)},
	}, opts...)
	customer := tether.NewType("Customer", []tether.Property{
		{Name: "name", Type: tether.Scalar()},
	}, opts...)
	profile := tether.NewType("Profile", []tether.Property{
		{Name: "bio", Type: tether.Scalar()},
	}, opts...)
	country := tether.NewType("Country", []tether.Property{
		{Name: "code", Type: tether.Scalar()},
	}, opts...)
	return mustRegistry(order, customer, profile, country)
}

func newOrderNullifier(s *fakeSession, isDelete, isEarlyInsert bool, opts ...tether.NullifierOption) (*tether.Nullifier, *fakeEntity) {
	self := savedEntity("Order")
	d, ok := s.registry.Lookup("Order")
	if !ok {
		panic("Order descriptor missing")
	}
	return tether.NewNullifier(s, self, d, isDelete, isEarlyInsert, opts...), self
}

func orderValues(customer, profile, attachment any, shipping any) []any {
	return []any{"ref-1", customer, profile, attachment, shipping}
}

func TestNullifier_TransientManyToOneIsNulled(t *testing.T) {
	s := newFakeSession(nullifierRegistry())
	n, _ := newOrderNullifier(s, false, false)

	values := orderValues(unsavedEntity("Customer"), nil, nil, nil)
	if err := n.NullifyTransientReferences(context.Background(), values); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if values[1] != nil {
		t.Errorf("transient customer should be nulled, got %v", values[1])
	}
	if values[0] != "ref-1" {
		t.Errorf("scalar value changed: %v", values[0])
	}
}

func TestNullifier_PersistentManyToOneIsKept(t *testing.T) {
	s := newFakeSession(nullifierRegistry())
	n, _ := newOrderNullifier(s, false, false)

	customer := savedEntity("Customer")
	values := orderValues(customer, nil, nil, nil)
	if err := n.NullifyTransientReferences(context.Background(), values); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if values[1] != customer {
		t.Errorf("persistent customer should be kept, got %v", values[1])
	}
}

func TestNullifier_ScalarsPassThrough(t *testing.T) {
	s := newFakeSession(nullifierRegistry())

	var tracked []string
	n, _ := newOrderNullifier(s, false, false, tether.WithChangeTracker(func(p string) {
		tracked = append(tracked, p)
	}))

	values := orderValues(nil, nil, nil, nil)
	if err := n.NullifyTransientReferences(context.Background(), values); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if values[0] != "ref-1" {
		t.Errorf("scalar should be returned unchanged, got %v", values[0])
	}
	if s.pc.probes != 0 {
		t.Errorf("scalars must never trigger a store access, got %d probes", s.pc.probes)
	}
	if len(tracked) != 0 {
		t.Errorf("nothing was nulled, but tracker saw %v", tracked)
	}
}

func TestNullifier_OneToOneNeverNulled(t *testing.T) {
	// Even a provably transient one-to-one target stays untouched: the
	// dependent side owns no foreign key column.
	s := newFakeSession(nullifierRegistry())
	n, _ := newOrderNullifier(s, false, false)

	profile := unsavedEntity("Profile")
	values := orderValues(nil, profile, nil, nil)
	if err := n.NullifyTransientReferences(context.Background(), values); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if values[2] != profile {
		t.Errorf("one-to-one reference must never be nulled, got %v", values[2])
	}
}

func TestNullifier_PolymorphicReference(t *testing.T) {
	s := newFakeSession(nullifierRegistry())
	ctx := context.Background()

	t.Run("transient target nulled", func(t *testing.T) {
		n, _ := newOrderNullifier(s, false, false)
		values := orderValues(nil, nil, unsavedEntity("Customer"), nil)
		if err := n.NullifyTransientReferences(ctx, values); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if values[3] != nil {
			t.Errorf("transient polymorphic target should be nulled, got %v", values[3])
		}
	})

	t.Run("persistent target kept", func(t *testing.T) {
		n, _ := newOrderNullifier(s, false, false)
		attachment := savedEntity("Customer")
		values := orderValues(nil, nil, attachment, nil)
		if err := n.NullifyTransientReferences(ctx, values); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if values[3] != attachment {
			t.Errorf("persistent polymorphic target should be kept, got %v", values[3])
		}
	})
}

func TestNullifier_SelfReferenceRule(t *testing.T) {
	// Self-references are nulled iff early insert, or delete on a dialect
	// with the self-referential foreign key defect.
	for _, tc := range []struct {
		name          string
		isDelete      bool
		isEarlyInsert bool
		dialectBug    bool
		wantNulled    bool
	}{
		{"plain update keeps self", false, false, false, false},
		{"early insert nulls self", false, true, false, true},
		{"delete without defect keeps self", true, false, false, false},
		{"delete with defect nulls self", true, false, true, true},
		{"update with defect keeps self", false, false, true, false},
		{"early insert with defect nulls self", true, true, true, true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			s := newFakeSession(nullifierRegistry())
			s.dialect = fakeDialect{selfRefBug: tc.dialectBug}
			n, self := newOrderNullifier(s, tc.isDelete, tc.isEarlyInsert)

			// Self referenced through the polymorphic slot so its own
			// descriptor strategy is never consulted.
			values := orderValues(nil, nil, self, nil)
			if err := n.NullifyTransientReferences(context.Background(), values); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			nulled := values[3] == nil
			if nulled != tc.wantNulled {
				t.Errorf("self nulled = %v, want %v", nulled, tc.wantNulled)
			}
			if s.pc.probes != 0 {
				t.Errorf("self-reference rule must not probe the store, got %d probes", s.pc.probes)
			}
		})
	}
}

func TestNullifier_LazyReferences(t *testing.T) {
	ctx := context.Background()

	t.Run("uninitialized wrapper kept without store access", func(t *testing.T) {
		s := newFakeSession(nullifierRegistry())
		n, _ := newOrderNullifier(s, false, false)

		ref := &fakeLazy{uninitialized: true}
		values := orderValues(ref, nil, nil, nil)
		if err := n.NullifyTransientReferences(ctx, values); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if values[1] != ref {
			t.Errorf("uninitialized lazy reference must be kept, got %v", values[1])
		}
		if s.pc.probes != 0 {
			t.Errorf("uninitialized lazy reference must not probe the store, got %d probes", s.pc.probes)
		}
	})

	t.Run("initialized wrapper unwrapped to its target", func(t *testing.T) {
		s := newFakeSession(nullifierRegistry())
		n, _ := newOrderNullifier(s, false, false)

		ref := &fakeLazy{target: unsavedEntity("Customer")}
		values := orderValues(ref, nil, nil, nil)
		if err := n.NullifyTransientReferences(ctx, values); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if values[1] != nil {
			t.Errorf("wrapper around transient target should be nulled, got %v", values[1])
		}
	})

	t.Run("resolve failure aborts the pass", func(t *testing.T) {
		s := newFakeSession(nullifierRegistry())
		n, _ := newOrderNullifier(s, false, false)

		wantErr := errors.New("connection reset")
		values := orderValues(&fakeLazy{resolveErr: wantErr}, nil, nil, nil)
		err := n.NullifyTransientReferences(ctx, values)
		if !errors.Is(err, wantErr) {
			t.Errorf("store failure should propagate unchanged, got %v", err)
		}
	})
}

func TestNullifier_IdentityMapEntryDecides(t *testing.T) {
	ctx := context.Background()

	for _, tc := range []struct {
		name        string
		nullifiable bool
	}{
		{"nullifiable entry nulls the reference", true},
		{"non-nullifiable entry keeps the reference", false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			s := newFakeSession(nullifierRegistry())
			n, _ := newOrderNullifier(s, false, false)

			customer := savedEntity("Customer")
			s.pc.entries[customer] = fakeEntry{nullifiable: tc.nullifiable}

			values := orderValues(customer, nil, nil, nil)
			if err := n.NullifyTransientReferences(ctx, values); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			nulled := values[1] == nil
			if nulled != tc.nullifiable {
				t.Errorf("nulled = %v, want %v", nulled, tc.nullifiable)
			}
			if s.pc.probes != 0 {
				t.Errorf("a tracked entry must decide without a probe, got %d probes", s.pc.probes)
			}
		})
	}
}

func TestNullifier_CompositePropagation(t *testing.T) {
	s := newFakeSession(nullifierRegistry())

	var tracked []string
	n, _ := newOrderNullifier(s, false, false, tether.WithChangeTracker(func(p string) {
		tracked = append(tracked, p)
	}))

	shipping := &fakeComposite{values: []any{"main st", unsavedEntity("Country")}}
	values := orderValues(nil, nil, nil, shipping)
	if err := n.NullifyTransientReferences(context.Background(), values); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if values[4] != shipping {
		t.Fatalf("composite replacement must be the mutated composite itself, got %v", values[4])
	}
	if shipping.values[0] != "main st" {
		t.Errorf("sibling sub-value changed: %v", shipping.values[0])
	}
	if shipping.values[1] != nil {
		t.Errorf("transient sub-reference should be nulled, got %v", shipping.values[1])
	}
	if want := []string{"shipping.country"}; !reflect.DeepEqual(tracked, want) {
		t.Errorf("tracked changes = %v, want %v", tracked, want)
	}
}

func TestNullifier_TrackerOrderMatchesDeclarationOrder(t *testing.T) {
	s := newFakeSession(nullifierRegistry())

	var tracked []string
	n, _ := newOrderNullifier(s, false, false, tether.WithChangeTracker(func(p string) {
		tracked = append(tracked, p)
	}))

	shipping := &fakeComposite{values: []any{"main st", unsavedEntity("Country")}}
	values := orderValues(unsavedEntity("Customer"), nil, unsavedEntity("Customer"), shipping)
	if err := n.NullifyTransientReferences(context.Background(), values); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"customer", "attachment", "shipping.country"}
	if !reflect.DeepEqual(tracked, want) {
		t.Errorf("tracked order = %v, want declared order %v", tracked, want)
	}
}

func TestNullifier_CompositeValueContract(t *testing.T) {
	s := newFakeSession(nullifierRegistry())
	n, _ := newOrderNullifier(s, false, false)

	values := orderValues(nil, nil, nil, nil)
	values[4] = "not a composite"
	err := n.NullifyTransientReferences(context.Background(), values)
	if !errors.Is(err, tether.ErrNotComposite) {
		t.Errorf("want ErrNotComposite, got %v", err)
	}
}

func TestNullifier_ValueCountMismatch(t *testing.T) {
	s := newFakeSession(nullifierRegistry())
	n, _ := newOrderNullifier(s, false, false)

	err := n.NullifyTransientReferences(context.Background(), []any{"ref-1"})
	if !tether.IsInvalidDescriptorErr(err) {
		t.Errorf("want ErrInvalidDescriptor, got %v", err)
	}
}

func TestNullifier_DeleteTimeInitialization(t *testing.T) {
	ctx := context.Background()

	t.Run("not armed outside delete", func(t *testing.T) {
		s := newFakeSession(nullifierRegistry())
		s.pc.nullifiable = true
		n, _ := newOrderNullifier(s, false, false)

		values := orderValues(tether.Unfetched, nil, nil, nil)
		if err := n.NullifyTransientReferences(ctx, values); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if values[1] != tether.Unfetched {
			t.Errorf("unfetched value must pass through outside delete, got %v", values[1])
		}
	})

	t.Run("not armed without nullifiable entities", func(t *testing.T) {
		s := newFakeSession(nullifierRegistry())
		n, _ := newOrderNullifier(s, true, false)

		values := orderValues(tether.Unfetched, nil, nil, nil)
		if err := n.NullifyTransientReferences(ctx, values); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if values[1] != tether.Unfetched {
			t.Errorf("empty nullifiable set must skip initialization, got %v", values[1])
		}
	})

	t.Run("capability gap aborts the delete", func(t *testing.T) {
		s := newFakeSession(nullifierRegistry())
		s.pc.nullifiable = true
		n, _ := newOrderNullifier(s, true, false)

		values := orderValues(tether.Unfetched, nil, nil, nil)
		err := n.NullifyTransientReferences(ctx, values)
		if !tether.IsLazyInitializationErr(err) {
			t.Errorf("want ErrLazyInitialization, got %v", err)
		}
	})

	t.Run("loader initializes and the result decides", func(t *testing.T) {
		base := newFakeSession(nullifierRegistry())
		base.pc.nullifiable = true
		var loadedProperty string
		s := &loaderSession{
			fakeSession: base,
			load: func(ctx context.Context, property string, owner any) (any, error) {
				loadedProperty = property
				return unsavedEntity("Customer"), nil
			},
		}
		self := savedEntity("Order")
		d, _ := base.registry.Lookup("Order")

		var tracked []string
		n := tether.NewNullifier(s, self, d, true, false,
			tether.WithChangeTracker(func(p string) { tracked = append(tracked, p) }))

		values := orderValues(tether.Unfetched, nil, nil, nil)
		if err := n.NullifyTransientReferences(ctx, values); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if loadedProperty != "customer" {
			t.Errorf("loader called for %q, want customer", loadedProperty)
		}
		if values[1] != nil {
			t.Errorf("initialized transient target should be nulled, got %v", values[1])
		}
		if want := []string{"customer"}; !reflect.DeepEqual(tracked, want) {
			t.Errorf("tracked = %v, want %v", tracked, want)
		}
	})

	t.Run("loader yielding nil nulls the property", func(t *testing.T) {
		base := newFakeSession(nullifierRegistry())
		base.pc.nullifiable = true
		s := &loaderSession{
			fakeSession: base,
			load: func(ctx context.Context, property string, owner any) (any, error) {
				return nil, nil
			},
		}
		self := savedEntity("Order")
		d, _ := base.registry.Lookup("Order")
		n := tether.NewNullifier(s, self, d, true, false)

		values := orderValues(tether.Unfetched, nil, nil, nil)
		if err := n.NullifyTransientReferences(ctx, values); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if values[1] != nil {
			t.Errorf("nil-initialized value should stay nil, got %v", values[1])
		}
	})
}

func TestNullifier_NilValuesStayNil(t *testing.T) {
	s := newFakeSession(nullifierRegistry())

	var tracked []string
	n, _ := newOrderNullifier(s, false, false, tether.WithChangeTracker(func(p string) {
		tracked = append(tracked, p)
	}))

	values := orderValues(nil, nil, nil, nil)
	if err := n.NullifyTransientReferences(context.Background(), values); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, v := range values[1:4] {
		if v != nil {
			t.Errorf("slot %d: nil value should stay nil, got %v", i+1, v)
		}
	}
	if len(tracked) != 0 {
		t.Errorf("nil slots are not changes, but tracker saw %v", tracked)
	}
}

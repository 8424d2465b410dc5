package tether_test

import (
	"context"
	"errors"
	"testing"

	"github.com/tetherhq/tether"
)

func orderRegistry(opts ...tether.TypeOption) *tether.Registry {
	props := []tether.Property{
		{Name: "reference", Type: tether.Scalar()},
		{Name: "total", Type: tether.Scalar()},
	}
	base := []tether.TypeOption{tether.WithIdentifierFunc(entityIdentifier)}
	return mustRegistry(tether.NewType("Order", props, append(base, opts...)...))
}

func TestOracle_IsTransient_UnfetchedNeverTransient(t *testing.T) {
	s := newFakeSession(orderRegistry())
	oracle := tether.NewOracle(s)

	transient, err := oracle.IsTransient(context.Background(), "Order", tether.Unfetched, tether.VerdictUnknown)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if transient {
		t.Error("an unfetched value can only point at an existing row; want not transient")
	}
	if s.pc.probes != 0 {
		t.Errorf("unfetched sentinel must not probe the store, got %d probes", s.pc.probes)
	}
}

func TestOracle_IsTransient_InterceptorWins(t *testing.T) {
	// The descriptor would answer persistent; the interceptor answers
	// first and verbatim.
	s := newFakeSession(orderRegistry(tether.WithTransienceFunc(unsavedStrategy)))
	s.interceptor = verdictFunc(func(any) tether.Verdict { return tether.VerdictTransient })
	oracle := tether.NewOracle(s)

	transient, err := oracle.IsTransient(context.Background(), "Order", savedEntity("Order"), tether.VerdictUnknown)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !transient {
		t.Error("interceptor verdict must be used verbatim")
	}
	if s.pc.probes != 0 {
		t.Errorf("definite interceptor verdict must not probe the store, got %d probes", s.pc.probes)
	}
}

func TestOracle_IsTransient_DescriptorStrategy(t *testing.T) {
	s := newFakeSession(orderRegistry(tether.WithTransienceFunc(unsavedStrategy)))
	oracle := tether.NewOracle(s)
	ctx := context.Background()

	t.Run("unsaved id means transient", func(t *testing.T) {
		transient, err := oracle.IsTransient(ctx, "Order", unsavedEntity("Order"), tether.VerdictUnknown)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !transient {
			t.Error("nil identifier should mean transient")
		}
	})

	t.Run("saved id means persistent", func(t *testing.T) {
		transient, err := oracle.IsTransient(ctx, "Order", savedEntity("Order"), tether.VerdictUnknown)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if transient {
			t.Error("non-nil identifier should mean persistent")
		}
	})

	if s.pc.probes != 0 {
		t.Errorf("definite descriptor verdicts must not probe the store, got %d probes", s.pc.probes)
	}
}

func TestOracle_IsTransient_AssumedShortCircuit(t *testing.T) {
	// No interceptor and no descriptor strategy: the assumption decides
	// without touching the store.
	s := newFakeSession(orderRegistry())
	oracle := tether.NewOracle(s)
	ctx := context.Background()

	for _, tc := range []struct {
		assumed tether.Verdict
		want    bool
	}{
		{tether.VerdictTransient, true},
		{tether.VerdictPersistent, false},
	} {
		transient, err := oracle.IsTransient(ctx, "Order", savedEntity("Order"), tc.assumed)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if transient != tc.want {
			t.Errorf("assumed %v: got %v, want %v", tc.assumed, transient, tc.want)
		}
	}
	if s.pc.probes != 0 {
		t.Errorf("assumed verdicts must not probe the store, got %d probes", s.pc.probes)
	}
}

func TestOracle_IsTransient_StoreProbeLastResort(t *testing.T) {
	s := newFakeSession(orderRegistry())
	oracle := tether.NewOracle(s)
	ctx := context.Background()

	t.Run("row present", func(t *testing.T) {
		e := savedEntity("Order")
		s.pc.rows[e.id] = true

		transient, err := oracle.IsTransient(ctx, "Order", e, tether.VerdictUnknown)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if transient {
			t.Error("existing row should mean not transient")
		}
	})

	t.Run("row absent", func(t *testing.T) {
		transient, err := oracle.IsTransient(ctx, "Order", savedEntity("Order"), tether.VerdictUnknown)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !transient {
			t.Error("absence of a row should mean transient")
		}
	})

	if s.pc.probes != 2 {
		t.Errorf("want exactly one probe per undecided check, got %d", s.pc.probes)
	}
}

func TestOracle_IsTransient_UnknownEntity(t *testing.T) {
	s := newFakeSession(orderRegistry())
	oracle := tether.NewOracle(s)

	_, err := oracle.IsTransient(context.Background(), "Invoice", savedEntity("Invoice"), tether.VerdictUnknown)
	if !tether.IsUnknownEntityErr(err) {
		t.Errorf("want ErrUnknownEntity, got %v", err)
	}
}

func TestOracle_IsNotTransient(t *testing.T) {
	ctx := context.Background()

	t.Run("lazy wrapper is never transient", func(t *testing.T) {
		s := newFakeSession(orderRegistry())
		oracle := tether.NewOracle(s)

		// Even an uninitialized wrapper answers immediately.
		ref := &fakeLazy{uninitialized: true}
		notTransient, err := oracle.IsNotTransient(ctx, "Order", ref, tether.VerdictUnknown)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !notTransient {
			t.Error("lazy wrappers are never transient")
		}
		if s.pc.probes != 0 {
			t.Errorf("lazy wrapper must not probe the store, got %d probes", s.pc.probes)
		}
	})

	t.Run("tracked entry is never transient", func(t *testing.T) {
		s := newFakeSession(orderRegistry())
		oracle := tether.NewOracle(s)
		e := savedEntity("Order")
		s.pc.entries[e] = fakeEntry{}

		notTransient, err := oracle.IsNotTransient(ctx, "Order", e, tether.VerdictUnknown)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !notTransient {
			t.Error("a tracked object is persistent or detached by definition")
		}
		if s.pc.probes != 0 {
			t.Errorf("tracked entry must not probe the store, got %d probes", s.pc.probes)
		}
	})

	t.Run("otherwise negates IsTransient", func(t *testing.T) {
		s := newFakeSession(orderRegistry(tether.WithTransienceFunc(unsavedStrategy)))
		oracle := tether.NewOracle(s)

		notTransient, err := oracle.IsNotTransient(ctx, "Order", unsavedEntity("Order"), tether.VerdictUnknown)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if notTransient {
			t.Error("unsaved entity should be transient")
		}
	})

	t.Run("assumed verdict passes through unchanged", func(t *testing.T) {
		s := newFakeSession(orderRegistry())
		oracle := tether.NewOracle(s)

		// Assuming persistent yields "not transient" true; the verdict is
		// not inverted on the way through.
		notTransient, err := oracle.IsNotTransient(ctx, "Order", savedEntity("Order"), tether.VerdictPersistent)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !notTransient {
			t.Error("assumed persistent should answer not transient")
		}
		if s.pc.probes != 0 {
			t.Errorf("assumption must avoid the store, got %d probes", s.pc.probes)
		}
	})

	t.Run("propagates lookup errors", func(t *testing.T) {
		s := newFakeSession(orderRegistry())
		oracle := tether.NewOracle(s)

		_, err := oracle.IsNotTransient(ctx, "Invoice", savedEntity("Invoice"), tether.VerdictUnknown)
		if !errors.Is(err, tether.ErrUnknownEntity) {
			t.Errorf("want ErrUnknownEntity, got %v", err)
		}
	})
}

package authz

import (
	"context"
	"io"
	"log/slog"
	"testing"
)

func newBenchEngine(b *testing.B) (*Engine, *fakeCatalog) {
	b.Helper()
	catalog := newFakeCatalog()
	catalog.grantRole(roleRecruiter, "candidates.view.own", "candidates.edit.own", "jobs.view.all")
	legacy, err := NewLegacyProvider(DefaultLegacyTable)
	if err != nil {
		b.Fatal(err)
	}
	return NewEngine(Options{
		RBAC:   NewRBACProvider(catalog),
		Legacy: legacy,
		Owners: &fakeOwners{ids: map[string]int64{"U-ALICE": 1}},
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}), catalog
}

// BenchmarkDecideCached measures repeated checks inside one request.
func BenchmarkDecideCached(b *testing.B) {
	engine, _ := newBenchEngine(b)
	dc := engine.ForActor(rbacActor(1, roleRecruiter))
	ctx := context.Background()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if !dc.Can(ctx, ModuleCandidates, "edit.own", OwnerCode("U-ALICE")) {
			b.Fatal("expected allow")
		}
	}
}

// BenchmarkDecideCold measures the first check of a fresh request.
func BenchmarkDecideCold(b *testing.B) {
	engine, catalog := newBenchEngine(b)
	actor := rbacActor(1, roleRecruiter)
	ctx := context.Background()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if !engine.ForActor(actor).Can(ctx, ModuleJobs, "view", NoOwner) {
			b.Fatal("expected allow")
		}
	}
	b.StopTimer()
	if reads := catalog.roleReads.Load(); reads != int64(b.N) {
		b.Fatalf("role reads = %d, want one per request (%d)", reads, b.N)
	}
}

func BenchmarkAccessiblePredicateParallel(b *testing.B) {
	engine, _ := newBenchEngine(b)
	dc := engine.ForActor(rbacActor(1, roleRecruiter))
	b.RunParallel(func(pb *testing.PB) {
		ctx := context.Background()
		for pb.Next() {
			if p := dc.AccessiblePredicate(ctx, ModuleCandidates); p.Kind != OwnedByActor {
				b.Error("unexpected predicate", p.Kind)
				return
			}
		}
	})
}

package routetable

import (
	"testing"

	"routerd/internal/nht"
)

func ip(a, b, c, d byte) uint32 {
	return uint32(a)<<24 | uint32(b)<<16 | uint32(c)<<8 | uint32(d)
}

func TestRouteInsertAndLookup(t *testing.T) {
	nhs := nht.New()
	idx := nhs.LookupOrInsert(ip(10, 0, 0, 1))
	rt := New(nhs)

	if err := rt.RouteInsert(ip(10, 0, 0, 0), 24, idx, true); err != nil {
		t.Fatalf("RouteInsert: %v", err)
	}
	got := rt.RouteLookup(ip(10, 0, 0, 42))
	if got != idx {
		t.Fatalf("expected LPM hit idx %d, got %d", idx, got)
	}
	if nhs.Get(idx).RefCount != 1 {
		t.Fatalf("expected refcount 1 after insert, got %d", nhs.Get(idx).RefCount)
	}
}

func TestRouteLookupMiss(t *testing.T) {
	nhs := nht.New()
	rt := New(nhs)
	if got := rt.RouteLookup(ip(192, 168, 1, 1)); got != nht.NotFound {
		t.Fatalf("expected NotFound, got %d", got)
	}
}

func TestRouteInsertSamePrefixSameIndexIsNoop(t *testing.T) {
	nhs := nht.New()
	idx := nhs.LookupOrInsert(ip(10, 0, 0, 1))
	rt := New(nhs)

	if err := rt.RouteInsert(ip(10, 0, 0, 0), 24, idx, true); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if err := rt.RouteInsert(ip(10, 0, 0, 0), 24, idx, true); err != nil {
		t.Fatalf("second insert: %v", err)
	}
	if nhs.Get(idx).RefCount != 1 {
		t.Fatalf("expected refcount unchanged at 1, got %d", nhs.Get(idx).RefCount)
	}
}

func TestRouteInsertDifferentIndexReplacesAndDecrefs(t *testing.T) {
	nhs := nht.New()
	idx1 := nhs.LookupOrInsert(ip(10, 0, 0, 1))
	idx2 := nhs.LookupOrInsert(ip(10, 0, 0, 2))
	rt := New(nhs)

	if err := rt.RouteInsert(ip(10, 0, 0, 0), 24, idx1, true); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if err := rt.RouteInsert(ip(10, 0, 0, 0), 24, idx2, true); err != nil {
		t.Fatalf("replace insert: %v", err)
	}
	if nhs.Get(idx2).RefCount != 1 {
		t.Fatalf("expected new index refcount 1, got %d", nhs.Get(idx2).RefCount)
	}
	if rt.RouteLookup(ip(10, 0, 0, 5)) != idx2 {
		t.Fatal("expected lookup to return replacement index")
	}
}

func TestRouteInsertDifferentIndexWithoutExistOkRejected(t *testing.T) {
	nhs := nht.New()
	idx1 := nhs.LookupOrInsert(ip(10, 0, 0, 1))
	idx2 := nhs.LookupOrInsert(ip(10, 0, 0, 2))
	rt := New(nhs)

	if err := rt.RouteInsert(ip(10, 0, 0, 0), 24, idx1, true); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if err := rt.RouteInsert(ip(10, 0, 0, 0), 24, idx2, false); err == nil {
		t.Fatal("expected EEXIST replacing a route's next-hop without existOk")
	}
	if rt.RouteLookup(ip(10, 0, 0, 5)) != idx1 {
		t.Fatal("expected the original next-hop to survive a rejected replace")
	}
}

func TestRouteDeleteDecrefsAndErrorsOnMissing(t *testing.T) {
	nhs := nht.New()
	idx := nhs.LookupOrInsert(ip(10, 0, 0, 1))
	rt := New(nhs)

	if err := rt.RouteInsert(ip(10, 0, 0, 0), 24, idx, true); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := rt.RouteDelete(ip(10, 0, 0, 0), 24); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if nhs.Get(idx).RefCount != 0 {
		t.Fatalf("expected refcount 0 after delete, got %d", nhs.Get(idx).RefCount)
	}
	if err := rt.RouteDelete(ip(10, 0, 0, 0), 24); err == nil {
		t.Fatal("expected ENOENT deleting an already-removed route")
	}
}

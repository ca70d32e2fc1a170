package nht

import (
	"net"
	"testing"
	"time"

	"routerd/internal/ctlerr"
	"routerd/internal/ifaceregistry"
)

// fakeResolver is a minimal Resolver for exercising Add/Del without a
// real routetable.Table (kept dependency-free, matching how bart's own
// tests avoid large fixtures for unit-level behavior).
type fakeResolver struct {
	nh       *Table
	inserted map[uint32]uint32
}

func newFakeResolver(nh *Table) *fakeResolver {
	return &fakeResolver{nh: nh, inserted: make(map[uint32]uint32)}
}

func (f *fakeResolver) InsertHostRoute(ip uint32, nhIdx uint32) error {
	f.inserted[ip] = nhIdx
	f.nh.Incref(nhIdx)
	return nil
}

func (f *fakeResolver) DeleteHostRoute(ip uint32) error {
	idx, ok := f.inserted[ip]
	if !ok {
		return ctlerr.NoEnt("route.del", "no such route")
	}
	delete(f.inserted, ip)
	f.nh.Decref(idx)
	return nil
}

// failingResolver always rejects InsertHostRoute, for exercising Add's
// orphaned-slot cleanup path.
type failingResolver struct{}

func (failingResolver) InsertHostRoute(ip uint32, nhIdx uint32) error {
	return ctlerr.Invalid("route.add", "rejected")
}

func (failingResolver) DeleteHostRoute(ip uint32) error {
	return ctlerr.NoEnt("route.del", "no such route")
}

func TestAddCleansUpIndexWhenRouteInsertFails(t *testing.T) {
	table := New()
	mac := net.HardwareAddr{1, 2, 3, 4, 5, 6}
	if err := table.Add(time.Unix(0, 0), failingResolver{}, 0x0A000001, 5, mac, false); err == nil {
		t.Fatal("expected error propagated from InsertHostRoute")
	}
	if table.Lookup(0x0A000001) != NotFound {
		t.Fatal("expected no leftover index entry for a slot that never committed")
	}

	// the freed slot must be recyclable rather than permanently orphaned.
	resolver := newFakeResolver(table)
	if err := table.Add(time.Unix(0, 0), resolver, 0x0A000002, 5, mac, false); err != nil {
		t.Fatalf("Add after cleanup: %v", err)
	}
	if len(table.slots) != 1 {
		t.Fatalf("expected the orphaned slot to be recycled, got %d slots", len(table.slots))
	}
}

func TestLookupOrInsertThenLookup(t *testing.T) {
	table := New()
	idx := table.LookupOrInsert(0x0A000001)
	if got := table.Lookup(0x0A000001); got != idx {
		t.Fatalf("expected lookup to return %d, got %d", idx, got)
	}
	if table.Lookup(0x0A000002) != NotFound {
		t.Fatal("expected miss for unrelated address")
	}
}

func TestAddRejectsZeroHost(t *testing.T) {
	table := New()
	resolver := newFakeResolver(table)
	err := table.Add(time.Unix(0, 0), resolver, 0, 1, net.HardwareAddr{1, 2, 3, 4, 5, 6}, false)
	if err == nil {
		t.Fatal("expected error for zero host address")
	}
}

func TestAddThenDelFreesSlot(t *testing.T) {
	table := New()
	resolver := newFakeResolver(table)
	mac := net.HardwareAddr{1, 2, 3, 4, 5, 6}
	if err := table.Add(time.Unix(0, 0), resolver, 0x0A000001, 5, mac, false); err != nil {
		t.Fatalf("Add: %v", err)
	}
	idx := table.Lookup(0x0A000001)
	if idx == NotFound {
		t.Fatal("expected next-hop installed")
	}
	if table.Get(idx).RefCount != 1 {
		t.Fatalf("expected refcount 1, got %d", table.Get(idx).RefCount)
	}

	if err := table.Del(resolver, 0x0A000001, false); err != nil {
		t.Fatalf("Del: %v", err)
	}
	if table.Lookup(0x0A000001) != NotFound {
		t.Fatal("expected slot freed after del")
	}
}

func TestAddDuplicateWithoutExistOkFails(t *testing.T) {
	table := New()
	resolver := newFakeResolver(table)
	mac := net.HardwareAddr{1, 2, 3, 4, 5, 6}
	if err := table.Add(time.Unix(0, 0), resolver, 0x0A000001, 5, mac, false); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := table.Add(time.Unix(0, 0), resolver, 0x0A000001, 5, mac, false); err == nil {
		t.Fatal("expected EEXIST without exist_ok")
	}
}

func TestAddDuplicateWithExistOkMatchingIsIdempotent(t *testing.T) {
	table := New()
	resolver := newFakeResolver(table)
	mac := net.HardwareAddr{1, 2, 3, 4, 5, 6}
	if err := table.Add(time.Unix(0, 0), resolver, 0x0A000001, 5, mac, false); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := table.Add(time.Unix(0, 0), resolver, 0x0A000001, 5, mac, true); err != nil {
		t.Fatalf("expected idempotent success with matching exist_ok, got %v", err)
	}
}

func TestDelMissingWithMissingOkSucceeds(t *testing.T) {
	table := New()
	resolver := newFakeResolver(table)
	if err := table.Del(resolver, 0x0A000001, true); err != nil {
		t.Fatalf("expected missing_ok to suppress error, got %v", err)
	}
}

func TestDelMissingWithoutMissingOkFails(t *testing.T) {
	table := New()
	resolver := newFakeResolver(table)
	if err := table.Del(resolver, 0x0A000001, false); err == nil {
		t.Fatal("expected ENOENT")
	}
}

func TestDelRejectsResidualRefcount(t *testing.T) {
	table := New()
	resolver := newFakeResolver(table)
	mac := net.HardwareAddr{1, 2, 3, 4, 5, 6}
	if err := table.Add(time.Unix(0, 0), resolver, 0x0A000001, 5, mac, false); err != nil {
		t.Fatalf("Add: %v", err)
	}
	idx := table.Lookup(0x0A000001)
	table.Incref(idx) // simulate a second route pointing at this next-hop

	if err := table.Del(resolver, 0x0A000001, false); err == nil {
		t.Fatal("expected EBUSY for residual references")
	}
}

func TestListReportsValidAndAge(t *testing.T) {
	table := New()
	resolver := newFakeResolver(table)
	mac := net.HardwareAddr{1, 2, 3, 4, 5, 6}
	now := time.Unix(1000, 0)
	if err := table.Add(now, resolver, 0x0A000001, ifaceregistry.ID(1), mac, false); err != nil {
		t.Fatalf("Add: %v", err)
	}
	views := table.List(now.Add(5 * time.Second))
	if len(views) != 1 {
		t.Fatalf("expected 1 view, got %d", len(views))
	}
	if !views[0].Valid {
		t.Fatal("expected Valid true for a reachable slot")
	}
	if views[0].AgeSeconds != 5 {
		t.Fatalf("expected age 5s, got %d", views[0].AgeSeconds)
	}
}

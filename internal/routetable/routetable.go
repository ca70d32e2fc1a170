// Package routetable implements the IPv4 route table (C7): an LPM trie
// backed by github.com/gaissmai/bart, whose entries reference next-hop
// slots by stable index and keep the next-hop table's refcounts
// consistent on insert/replace/delete.
package routetable

import (
	"net/netip"
	"sync"

	"github.com/gaissmai/bart"

	"routerd/internal/ctlerr"
	"routerd/internal/nht"
)

// Table wraps a bart.Table[uint32] (the prefix's next-hop slot index)
// and keeps it consistent with the next-hop table's refcounts.
type Table struct {
	mu    sync.Mutex
	trie  bart.Table[uint32]
	nexthops *nht.Table
}

// New returns an empty route table bound to nexthops: route_insert
// calls nexthops.Incref, route_delete calls nexthops.Decref.
func New(nexthops *nht.Table) *Table {
	return &Table{nexthops: nexthops}
}

// RouteInsert installs an LPM entry for prefix/prefixLen pointing at
// nhIdx. Re-inserting the same prefix with the same index is always a
// no-op. Re-inserting it with a different index replaces and decrefs
// the previous entry if existOk is set; otherwise it is rejected with
// ctlerr.Exists, mirroring the idempotence law ip4.nh.add's existOk
// already follows.
func (t *Table) RouteInsert(prefixAddr uint32, prefixLen int, nhIdx uint32, existOk bool) error {
	pfx, err := toPrefix(prefixAddr, prefixLen)
	if err != nil {
		return ctlerr.Invalid("ip4.route.add", err.Error())
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, ok := t.trie.Get(pfx); ok {
		if existing == nhIdx {
			return nil
		}
		if !existOk {
			return ctlerr.Exists("ip4.route.add", "route already exists with a different next-hop")
		}
		t.trie.Insert(pfx, nhIdx)
		t.nexthops.Incref(nhIdx)
		t.nexthops.Decref(existing)
		return nil
	}

	t.trie.Insert(pfx, nhIdx)
	t.nexthops.Incref(nhIdx)
	return nil
}

// RouteDelete removes the exact prefix entry and decrefs its next-hop.
func (t *Table) RouteDelete(prefixAddr uint32, prefixLen int) error {
	pfx, err := toPrefix(prefixAddr, prefixLen)
	if err != nil {
		return ctlerr.Invalid("ip4.route.del", err.Error())
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	idx, ok := t.trie.Get(pfx)
	if !ok {
		return ctlerr.NoEnt("ip4.route.del", "no such route")
	}
	t.trie.Delete(pfx)
	t.nexthops.Decref(idx)
	return nil
}

// RouteLookup performs a longest-prefix match for addr, returning
// nht.NotFound on a miss.
func (t *Table) RouteLookup(addr uint32) uint32 {
	a := netip.AddrFrom4([4]byte{byte(addr >> 24), byte(addr >> 16), byte(addr >> 8), byte(addr)})

	t.mu.Lock()
	defer t.mu.Unlock()

	idx, ok := t.trie.Lookup(a)
	if !ok {
		return nht.NotFound
	}
	return idx
}

// InsertHostRoute implements nht.Resolver: installs prefixAddr/32. A
// host route's existence is governed by ip4.nh.add's own existOk
// handling one layer up, so a stale /32 pointing at a different
// next-hop is always replaced here.
func (t *Table) InsertHostRoute(ip uint32, nhIdx uint32) error {
	return t.RouteInsert(ip, 32, nhIdx, true)
}

// DeleteHostRoute implements nht.Resolver: removes prefixAddr/32.
func (t *Table) DeleteHostRoute(ip uint32) error {
	return t.RouteDelete(ip, 32)
}

var _ nht.Resolver = (*Table)(nil)

func toPrefix(addr uint32, prefixLen int) (netip.Prefix, error) {
	if prefixLen < 0 || prefixLen > 32 {
		return netip.Prefix{}, ctlerr.Invalid("ip4.route", "prefix length out of range")
	}
	a := netip.AddrFrom4([4]byte{byte(addr >> 24), byte(addr >> 16), byte(addr >> 8), byte(addr)})
	return a.Prefix(prefixLen)
}

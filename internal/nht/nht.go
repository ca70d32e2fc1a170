// Package nht implements the IPv4 next-hop table (C6): a dense array of
// next-hop slots addressed by stable index, paired with
// an address→index hash. The datapath reads nh_array[idx] directly; the
// control plane is the sole writer and serializes all mutation.
package nht

import (
	"net"
	"sync"
	"time"

	"routerd/internal/ctlerr"
	"routerd/internal/ifaceregistry"
)

// NotFound is the sentinel index returned by Lookup on a miss.
const NotFound = ^uint32(0)

// Flags classifies a next-hop slot.
type Flags uint32

const (
	// Static marks a slot installed by the control plane (as opposed to
	// one learned dynamically, which this spec does not implement).
	Static Flags = 1 << iota
	// Reachable marks a slot the datapath has confirmed is usable.
	Reachable
	// Local marks a slot for an address owned by the router itself.
	Local
	// Link marks a slot representing an on-link/connected route.
	Link
)

// Slot is one next-hop table entry. The datapath reads it without
// locking; the control plane is the only writer and never mutates a
// slot's IP/refcount pair outside lookup_or_insert/incref/decref and
// the failed-add cleanup in removeOrphanLocked.
type Slot struct {
	IP       uint32 // host byte order IPv4 address
	IfaceID  ifaceregistry.ID
	MAC      net.HardwareAddr
	Flags    Flags
	RefCount uint32
	lastSeen time.Time
	valid    bool // true once this slot has ever carried Reachable
}

// Table is the arena + secondary hash index pair.
type Table struct {
	mu    sync.Mutex
	slots []Slot
	free  []uint32       // recycled slot indices
	index map[uint32]uint32 // IP -> slot index
}

// New returns an empty next-hop table.
func New() *Table {
	return &Table{index: make(map[uint32]uint32)}
}

// Lookup returns the slot index for ip, or NotFound.
func (t *Table) Lookup(ip uint32) uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	idx, ok := t.index[ip]
	if !ok {
		return NotFound
	}
	return idx
}

// LookupOrInsert returns ip's existing index, or allocates a fresh
// zero-refcount slot with IP set and returns its index.
func (t *Table) LookupOrInsert(ip uint32) uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if idx, ok := t.index[ip]; ok {
		return idx
	}
	idx := t.allocLocked()
	t.slots[idx] = Slot{IP: ip}
	t.index[ip] = idx
	return idx
}

func (t *Table) allocLocked() uint32 {
	if n := len(t.free); n > 0 {
		idx := t.free[n-1]
		t.free = t.free[:n-1]
		return idx
	}
	t.slots = append(t.slots, Slot{})
	return uint32(len(t.slots) - 1)
}

// Incref bumps idx's refcount.
func (t *Table) Incref(idx uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if int(idx) < len(t.slots) {
		t.slots[idx].RefCount++
	}
}

// Decref drops idx's refcount; a 1→0 transition erases the hash entry
// and zeroes the slot, recycling its index.
func (t *Table) Decref(idx uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if int(idx) >= len(t.slots) || t.slots[idx].RefCount == 0 {
		return
	}
	t.slots[idx].RefCount--
	if t.slots[idx].RefCount == 0 {
		delete(t.index, t.slots[idx].IP)
		t.slots[idx] = Slot{}
		t.free = append(t.free, idx)
	}
}

// Get returns a copy of slot idx with no bounds check beyond the slice
// length (datapath-only accessor).
func (t *Table) Get(idx uint32) Slot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.slots[idx]
}

// touchReachable marks a slot observed reachable; called once a next-hop
// is successfully installed.
func (t *Table) touchReachable(idx uint32, now time.Time) {
	t.slots[idx].Flags |= Reachable
	t.slots[idx].lastSeen = now
	t.slots[idx].valid = true
}

// View is the read-only shape reported by ip4.nh.list. AgeSeconds is
// the number of seconds since the slot was last marked reachable; it is
// only meaningful when Valid is true (the slot has carried Reachable at
// least once) and is zero otherwise.
type View struct {
	Index      uint32
	IP         uint32
	IfaceID    ifaceregistry.ID
	MAC        net.HardwareAddr
	Flags      Flags
	RefCount   uint32
	AgeSeconds int64
	Valid      bool
}

// List returns a snapshot of every occupied slot, for ip4.nh.list.
func (t *Table) List(now time.Time) []View {
	t.mu.Lock()
	defer t.mu.Unlock()
	views := make([]View, 0, len(t.index))
	for ip, idx := range t.index {
		s := t.slots[idx]
		var age int64
		if s.valid {
			age = now.Unix() - s.lastSeen.Unix()
		}
		views = append(views, View{
			Index: idx, IP: ip, IfaceID: s.IfaceID, MAC: s.MAC,
			Flags: s.Flags, RefCount: s.RefCount, AgeSeconds: age, Valid: s.valid,
		})
	}
	return views
}

// Resolver is the subset of the route table's API that add/del
// next-hop needs to delegate route installation to C7. It is
// implemented by internal/routetable.Table; declared here, not there,
// to avoid an import cycle (routetable depends on nht, not vice versa).
type Resolver interface {
	InsertHostRoute(ip uint32, nhIdx uint32) error
	DeleteHostRoute(ip uint32) error
}

// Add implements ip4.nh.add.
func (t *Table) Add(now time.Time, routes Resolver, ip uint32, ifaceID ifaceregistry.ID, mac net.HardwareAddr, existOk bool) error {
	if ip == 0 {
		return ctlerr.Invalid("ip4.nh.add", "host address must be non-zero")
	}
	if ifaceID == ifaceregistry.InvalidID {
		return ctlerr.Invalid("ip4.nh.add", "iface_id does not resolve")
	}

	t.mu.Lock()
	if idx, ok := t.index[ip]; ok {
		s := t.slots[idx]
		t.mu.Unlock()
		if existOk && s.IfaceID == ifaceID && macEqual(s.MAC, mac) {
			return nil
		}
		return ctlerr.Exists("ip4.nh.add", "address already has a next-hop")
	}
	t.mu.Unlock()

	idx := t.LookupOrInsert(ip)
	t.mu.Lock()
	t.slots[idx].IfaceID = ifaceID
	t.slots[idx].MAC = mac
	t.slots[idx].Flags = Static | Reachable
	t.touchReachable(idx, now)
	t.mu.Unlock()

	if err := routes.InsertHostRoute(ip, idx); err != nil {
		t.removeOrphanLocked(ip, idx)
		return err
	}
	return nil
}

// removeOrphanLocked erases idx's index entry and frees its slot directly,
// for a slot that was just allocated by LookupOrInsert but never made it to
// a successful RouteInsert (so its refcount is still zero and Decref would
// no-op instead of reclaiming it). Keeps the "index entry exists iff
// occupied" invariant intact even though it is not reachable today, since
// toPrefix(ip, 32) never errors.
func (t *Table) removeOrphanLocked(ip uint32, idx uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if cur, ok := t.index[ip]; !ok || cur != idx {
		return
	}
	delete(t.index, ip)
	t.slots[idx] = Slot{}
	t.free = append(t.free, idx)
}

// Del implements ip4.nh.del.
func (t *Table) Del(routes Resolver, ip uint32, missingOk bool) error {
	t.mu.Lock()
	idx, ok := t.index[ip]
	if !ok {
		t.mu.Unlock()
		if missingOk {
			return nil
		}
		return ctlerr.NoEnt("ip4.nh.del", "no next-hop for address")
	}
	s := t.slots[idx]
	t.mu.Unlock()

	if s.Flags&(Local|Link) != 0 {
		return ctlerr.Occupied("ip4.nh.del", "next-hop is LOCAL or LINK")
	}
	if s.RefCount > 1 {
		return ctlerr.Occupied("ip4.nh.del", "next-hop has residual references")
	}
	return routes.DeleteHostRoute(ip)
}

func macEqual(a, b net.HardwareAddr) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

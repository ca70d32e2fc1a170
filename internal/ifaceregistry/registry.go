package ifaceregistry

import (
	"fmt"
	"sync"

	"routerd/internal/ctlerr"
)

type nameKey struct {
	t    Type
	name string
}

// Registry is the process-wide interface table, modeled as an explicit
// state handle passed to components at initialization rather than a
// package-level global. It is mutated only on the single control thread.
type Registry struct {
	mu          sync.Mutex
	ifaces      map[ID]*Iface
	byName      map[nameKey]ID
	nextID      ID
	descriptors [numTypes]*Descriptor
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		ifaces: make(map[ID]*Iface),
		byName: make(map[nameKey]ID),
		nextID: 1,
	}
}

// RegisterType installs the descriptor for a given Type. Must be called
// once per type before Add is used for that type; handler registration
// is one-shot at process init.
func (r *Registry) RegisterType(t Type, d *Descriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.descriptors[t] = d
}

func (r *Registry) descriptorFor(t Type) (*Descriptor, error) {
	d := r.descriptors[t]
	if d == nil {
		return nil, ctlerr.Invalid("iface", fmt.Sprintf("no descriptor registered for type %s", t))
	}
	return d, nil
}

// Add allocates the next free id and calls the type's Init. On failure
// the id is freed and the underlying error returned.
//
// d.Init runs with the registry unlocked: a descriptor's Init commonly
// re-enters the registry itself (vlanmgr resolves and attaches to its
// parent via FromID/AddSubinterface while initializing). The id is
// reserved in r.ifaces before Init runs, so it is never handed out
// twice, and the name is only published to byName once Init succeeds.
func (r *Registry) Add(t Type, name string, flags Flags, mtu, vrf uint16, info any) (ID, error) {
	r.mu.Lock()
	d, err := r.descriptorFor(t)
	if err != nil {
		r.mu.Unlock()
		return InvalidID, err
	}
	key := nameKey{t, name}
	if _, exists := r.byName[key]; exists {
		r.mu.Unlock()
		return InvalidID, ctlerr.Exists("iface.add", fmt.Sprintf("interface %q already exists", name))
	}

	id := r.allocID()
	iface := &Iface{ID: id, Type: t, Name: name, Flags: flags, MTU: mtu, VRF: vrf, Info: info}
	r.ifaces[id] = iface
	r.mu.Unlock()

	if err := d.Init(iface, info); err != nil {
		r.mu.Lock()
		delete(r.ifaces, id)
		r.mu.Unlock()
		return InvalidID, err
	}

	r.mu.Lock()
	r.byName[key] = id
	r.mu.Unlock()
	return id, nil
}

// allocID returns the next unused id, wrapping the 16-bit space if
// necessary. Ids are never reused while still referenced by a live
// interface.
func (r *Registry) allocID() ID {
	for {
		id := r.nextID
		r.nextID++
		if r.nextID == InvalidID {
			r.nextID = 1 // wrap past zero
		}
		if _, taken := r.ifaces[id]; !taken && id != InvalidID {
			return id
		}
	}
}

// Set dispatches to the type's Reconfig. mask enumerates which fields
// are meaningful; unset fields must be ignored by the descriptor.
//
// d.Reconfig runs with the registry unlocked, for the same reentrancy
// reason as Add: vlanmgr's Reconfig re-resolves parent/child links
// through the registry's locking methods.
func (r *Registry) Set(id ID, mask SetMask, flags Flags, mtu, vrf uint16, info any) error {
	r.mu.Lock()
	iface, ok := r.ifaces[id]
	if !ok {
		r.mu.Unlock()
		return ctlerr.NoDevice("iface.set", fmt.Sprintf("no interface with id %d", id))
	}
	d, err := r.descriptorFor(iface.Type)
	if err != nil {
		r.mu.Unlock()
		return err
	}
	r.mu.Unlock()

	return d.Reconfig(iface, mask, flags, mtu, vrf, info)
}

// Del calls fini, removes the interface from the registry, and detaches
// it from its parent's child list if any. A parent with live children
// refuses fini with a busy error.
//
// d.Fini runs with the registry unlocked: portmgr's Fini may shrink the
// worker pool and reconfigure every remaining port, which walks the
// registry via Next; vlanmgr's Fini detaches from its parent via
// DelSubinterface. Both re-enter the registry's locking methods.
func (r *Registry) Del(id ID) error {
	r.mu.Lock()
	iface, ok := r.ifaces[id]
	if !ok {
		r.mu.Unlock()
		return ctlerr.NoDevice("iface.del", fmt.Sprintf("no interface with id %d", id))
	}
	if len(iface.Children) > 0 {
		r.mu.Unlock()
		return ctlerr.Occupied("iface.del", fmt.Sprintf("interface %d has %d children", id, len(iface.Children)))
	}
	d, err := r.descriptorFor(iface.Type)
	if err != nil {
		r.mu.Unlock()
		return err
	}
	r.mu.Unlock()

	if err := d.Fini(iface); err != nil {
		return err
	}

	r.mu.Lock()
	if iface.ParentID != InvalidID {
		r.removeChildLocked(iface.ParentID, id)
	}
	delete(r.ifaces, id)
	delete(r.byName, nameKey{iface.Type, iface.Name})
	r.mu.Unlock()
	return nil
}

// ToAPI renders iface through its type's descriptor, for handlers that
// report interfaces back to a caller (port.get, port.list).
func (r *Registry) ToAPI(iface *Iface) any {
	r.mu.Lock()
	d := r.descriptors[iface.Type]
	r.mu.Unlock()
	if d == nil || d.ToAPI == nil {
		return iface
	}
	return d.ToAPI(iface)
}

// FromID is an O(1) lookup by id.
func (r *Registry) FromID(id ID) (*Iface, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	iface, ok := r.ifaces[id]
	return iface, ok
}

// ByName looks up an interface by (type, name).
func (r *Registry) ByName(t Type, name string) (*Iface, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byName[nameKey{t, name}]
	if !ok {
		return nil, false
	}
	return r.ifaces[id], true
}

// Next returns the next interface of the given type whose id is greater
// than cursor (pass InvalidID to start iteration), in ascending id
// order, or (nil, false) when iteration is exhausted.
func (r *Registry) Next(t Type, cursor ID) (*Iface, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var best *Iface
	for id, iface := range r.ifaces {
		if iface.Type != t || id <= cursor {
			continue
		}
		if best == nil || id < best.ID {
			best = iface
		}
	}
	if best == nil {
		return nil, false
	}
	return best, true
}

// AddSubinterface records child as parent's child, validating that
// parent exists.
func (r *Registry) AddSubinterface(parent, child ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.ifaces[parent]
	if !ok {
		return ctlerr.NoDevice("iface.add_subinterface", fmt.Sprintf("no interface with id %d", parent))
	}
	p.Children = append(p.Children, child)
	return nil
}

// DelSubinterface removes child from parent's child list.
func (r *Registry) DelSubinterface(parent, child ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeChildLocked(parent, child)
}

func (r *Registry) removeChildLocked(parent, child ID) error {
	p, ok := r.ifaces[parent]
	if !ok {
		return ctlerr.NoDevice("iface.del_subinterface", fmt.Sprintf("no interface with id %d", parent))
	}
	for i, c := range p.Children {
		if c == child {
			p.Children = append(p.Children[:i], p.Children[i+1:]...)
			return nil
		}
	}
	return nil
}

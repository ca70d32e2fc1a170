// Package vlanmgr implements the VLAN sub-interface manager (C5): it
// creates interfaces parented to a Port, keyed by (parent_port_id,
// vlan_id), and programs the parent's VLAN filter and multicast MAC
// filter.
package vlanmgr

import (
	"log"
	"net"
	"sync"

	"routerd/internal/ctlerr"
	"routerd/internal/ifaceregistry"
	"routerd/internal/nicdriver"
	"routerd/internal/portmgr"
)

// Info is the type-specific block the ifaceregistry stores for a Vlan
// interface.
type Info struct {
	ParentID ifaceregistry.ID
	VlanID   int
	MAC      net.HardwareAddr
}

type vlanKey struct {
	parentPortID int
	vlanID       int
}

// Manager wires a nicdriver.Driver to the interface registry,
// implementing the Vlan type descriptor.
type Manager struct {
	mu       sync.Mutex
	driver   nicdriver.Driver
	registry *ifaceregistry.Registry
	byKey    map[vlanKey]ifaceregistry.ID
}

// New wires a Manager and registers the Vlan descriptor with registry.
func New(driver nicdriver.Driver, registry *ifaceregistry.Registry) *Manager {
	m := &Manager{driver: driver, registry: registry, byKey: make(map[vlanKey]ifaceregistry.ID)}
	registry.RegisterType(ifaceregistry.TypeVlan, &ifaceregistry.Descriptor{
		Init:     m.init,
		Reconfig: m.reconfig,
		Fini:     m.fini,
		GetMAC:   m.getMAC,
		AddMAC:   m.addMAC,
		DelMAC:   m.delMAC,
		ToAPI:    m.toAPI,
	})
	return m
}

// AddParams carries iface.add request fields specific to a VLAN
// sub-interface.
type AddParams struct {
	ParentID ifaceregistry.ID
	VlanID   int
	MAC      net.HardwareAddr
}

// Add creates a VLAN sub-interface.
func (m *Manager) Add(name string, flags ifaceregistry.Flags, mtu, vrf uint16, p AddParams) (ifaceregistry.ID, error) {
	if p.VlanID < 1 || p.VlanID > 4094 {
		return ifaceregistry.InvalidID, ctlerr.Invalid("iface.add", "vlan id out of range")
	}
	if p.MAC != nil && !isMulticast(p.MAC) {
		return ifaceregistry.InvalidID, ctlerr.Invalid("iface.add", "MAC must be multicast")
	}
	info := &Info{ParentID: p.ParentID, VlanID: p.VlanID, MAC: p.MAC}
	return m.registry.Add(ifaceregistry.TypeVlan, name, flags, mtu, vrf, info)
}

func (m *Manager) init(iface *ifaceregistry.Iface, raw any) error {
	info := raw.(*Info)
	iface.Info = info
	return m.applyReconfig(iface, info, ifaceregistry.SetInfo, info)
}

// SetParams carries iface.set request fields specific to a VLAN
// sub-interface; nil fields mean "unchanged".
type SetParams struct {
	ParentID *ifaceregistry.ID
	VlanID   *int
	MAC      net.HardwareAddr
}

func (m *Manager) reconfig(iface *ifaceregistry.Iface, mask ifaceregistry.SetMask, flags ifaceregistry.Flags, mtu, vrf uint16, raw any) error {
	info := iface.Info.(*Info)

	if mask&ifaceregistry.SetFlags != 0 {
		iface.Flags = flags
	}
	if mask&ifaceregistry.SetMTU != 0 {
		iface.MTU = mtu
	}
	if mask&ifaceregistry.SetVRF != 0 {
		iface.VRF = vrf
	}

	return m.applyReconfig(iface, info, mask, raw)
}

// applyReconfig handles the §4.5 cross-product of {initial, reconfig} ×
// {parent/vlan change, mac change}. initial is signaled by
// iface.ParentID still being InvalidID (the registry's zero value);
// mask is not consulted.
func (m *Manager) applyReconfig(iface *ifaceregistry.Iface, info *Info, mask ifaceregistry.SetMask, raw any) error {
	initial := iface.ParentID == ifaceregistry.InvalidID

	sp, _ := raw.(*SetParams)
	newParentID, newVlanID := info.ParentID, info.VlanID
	var newMAC net.HardwareAddr = info.MAC
	parentOrVlanChanged := initial
	macChanged := initial

	if !initial && sp != nil {
		if sp.ParentID != nil {
			newParentID = *sp.ParentID
			parentOrVlanChanged = true
		}
		if sp.VlanID != nil {
			newVlanID = *sp.VlanID
			parentOrVlanChanged = true
		}
		if sp.MAC != nil {
			newMAC = sp.MAC
			macChanged = true
		}
	}

	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if parentOrVlanChanged {
		if newVlanID < 1 || newVlanID > 4094 {
			return ctlerr.Invalid("iface.set", "vlan id out of range")
		}
		newParent, ok := m.registry.FromID(newParentID)
		if !ok || newParent.Type != ifaceregistry.TypePort {
			return ctlerr.NoDevice("iface.set", "parent must be an existing port")
		}
		newPortID, ok := portmgr.PortIDOf(newParent)
		if !ok {
			return ctlerr.NoDevice("iface.set", "parent has no driver port")
		}

		m.mu.Lock()
		key := vlanKey{newPortID, newVlanID}
		if existing, taken := m.byKey[key]; taken && existing != iface.ID {
			m.mu.Unlock()
			return ctlerr.AddrInUse("iface.set", "parent/vlan pair already in use")
		}
		m.mu.Unlock()

		if !initial {
			oldParent, ok := m.registry.FromID(info.ParentID)
			if ok {
				if oldPortID, ok := portmgr.PortIDOf(oldParent); ok {
					m.mu.Lock()
					delete(m.byKey, vlanKey{oldPortID, info.VlanID})
					m.mu.Unlock()
					record(m.registry.DelSubinterface(info.ParentID, iface.ID))
					record(translate("iface.set", m.driver.VLANFilterDel(oldPortID, info.VlanID)))
				}
			}
		}

		record(translate("iface.set", m.driver.VLANFilterAdd(newPortID, newVlanID)))
		record(m.registry.AddSubinterface(newParentID, iface.ID))

		info.ParentID, info.VlanID = newParentID, newVlanID
		iface.ParentID = newParentID
		m.mu.Lock()
		m.byKey[key] = iface.ID
		m.mu.Unlock()
	}

	if macChanged {
		parent, ok := m.registry.FromID(info.ParentID)
		if !ok {
			return ctlerr.NoDevice("iface.set", "parent not found")
		}
		parentPortID, ok := portmgr.PortIDOf(parent)
		if !ok {
			return ctlerr.NoDevice("iface.set", "parent has no driver port")
		}
		if !initial && info.MAC != nil {
			record(translate("iface.set", m.driver.MACFilterDel(parentPortID, info.MAC)))
		}
		if newMAC != nil {
			record(translate("iface.set", m.driver.MACFilterAdd(parentPortID, newMAC)))
		}
		info.MAC = newMAC
	}

	_ = mask
	return firstErr
}

func (m *Manager) fini(iface *ifaceregistry.Iface) error {
	info := iface.Info.(*Info)

	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	parent, ok := m.registry.FromID(info.ParentID)
	var parentPortID int
	if ok {
		parentPortID, ok = portmgr.PortIDOf(parent)
	}

	m.mu.Lock()
	delete(m.byKey, vlanKey{parentPortID, info.VlanID})
	m.mu.Unlock()

	if ok {
		record(translate("iface.del", m.driver.VLANFilterDel(parentPortID, info.VlanID)))
		if info.MAC != nil {
			record(translate("iface.del", m.driver.MACFilterDel(parentPortID, info.MAC)))
		}
	}
	record(m.registry.DelSubinterface(info.ParentID, iface.ID))

	return firstErr
}

func (m *Manager) getMAC(iface *ifaceregistry.Iface) (net.HardwareAddr, error) {
	info := iface.Info.(*Info)
	return info.MAC, nil
}

// addMAC/delMAC require a multicast MAC and delegate to the parent
// interface's MAC filter operations.
func (m *Manager) addMAC(iface *ifaceregistry.Iface, mac net.HardwareAddr) error {
	if !isMulticast(mac) {
		return ctlerr.Invalid("iface.add_eth_addr", "MAC must be multicast")
	}
	info := iface.Info.(*Info)
	parent, ok := m.registry.FromID(info.ParentID)
	if !ok {
		return ctlerr.NoDevice("iface.add_eth_addr", "parent not found")
	}
	portID, ok := portmgr.PortIDOf(parent)
	if !ok {
		return ctlerr.NoDevice("iface.add_eth_addr", "parent has no driver port")
	}
	return translate("iface.add_eth_addr", m.driver.MACFilterAdd(portID, mac))
}

func (m *Manager) delMAC(iface *ifaceregistry.Iface, mac net.HardwareAddr) error {
	if !isMulticast(mac) {
		return ctlerr.Invalid("iface.del_eth_addr", "MAC must be multicast")
	}
	info := iface.Info.(*Info)
	parent, ok := m.registry.FromID(info.ParentID)
	if !ok {
		return ctlerr.NoDevice("iface.del_eth_addr", "parent not found")
	}
	portID, ok := portmgr.PortIDOf(parent)
	if !ok {
		return ctlerr.NoDevice("iface.del_eth_addr", "parent has no driver port")
	}
	return translate("iface.del_eth_addr", m.driver.MACFilterDel(portID, mac))
}

// View is the read-only shape the Vlan descriptor's ToAPI renders.
type View struct {
	ID       ifaceregistry.ID
	Name     string
	ParentID ifaceregistry.ID
	VlanID   int
	MAC      net.HardwareAddr
	Flags    ifaceregistry.Flags
	MTU      uint16
	VRF      uint16
}

func (m *Manager) toAPI(iface *ifaceregistry.Iface) any {
	info := iface.Info.(*Info)
	return View{
		ID: iface.ID, Name: iface.Name, ParentID: info.ParentID, VlanID: info.VlanID,
		MAC: info.MAC, Flags: iface.Flags, MTU: iface.MTU, VRF: iface.VRF,
	}
}

func isMulticast(mac net.HardwareAddr) bool {
	return len(mac) > 0 && mac[0]&0x01 != 0
}

// translate logs and swallows best-effort driver limitations
// (ENOTSUP/ENOSYS from the VLAN filter and MAC filter calls) and
// otherwise maps the error to the control-plane error taxonomy.
func translate(op string, err error) error {
	if err == nil {
		return nil
	}
	if ctlerr.IsBestEffort(err) {
		log.Printf("vlanmgr: %s: driver limitation ignored: %v", op, err)
		return nil
	}
	return ctlerr.New(ctlerr.Driver, ctlerr.Errno(err), op, err.Error())
}

package vlanmgr

import (
	"net"
	"testing"

	"routerd/internal/ifaceregistry"
	"routerd/internal/nicdriver"
	"routerd/internal/portmgr"
	"routerd/internal/worker"
)

func newTestSetup(t *testing.T) (*Manager, *ifaceregistry.Registry, ifaceregistry.ID) {
	t.Helper()
	reg := ifaceregistry.New()
	driver := nicdriver.NewFake(nicdriver.SocketAny)
	pm := portmgr.New(driver, reg, worker.NewManager())
	vm := New(driver, reg)

	parentID, err := pm.Add("eth0", ifaceregistry.FlagUp, 0, 0, portmgr.AddParams{DevArgs: "a"})
	if err != nil {
		t.Fatalf("port add: %v", err)
	}
	return vm, reg, parentID
}

func TestAddVlanAttachesToParent(t *testing.T) {
	vm, reg, parent := newTestSetup(t)
	id, err := vm.Add("eth0.100", 0, 0, 0, AddParams{ParentID: parent, VlanID: 100})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	p, _ := reg.FromID(parent)
	found := false
	for _, c := range p.Children {
		if c == id {
			found = true
		}
	}
	if !found {
		t.Fatal("expected vlan attached to parent's children")
	}
}

func TestAddVlanRejectsOutOfRangeID(t *testing.T) {
	vm, _, parent := newTestSetup(t)
	if _, err := vm.Add("eth0.0", 0, 0, 0, AddParams{ParentID: parent, VlanID: 0}); err == nil {
		t.Fatal("expected vlan id 0 to be rejected")
	}
	if _, err := vm.Add("eth0.9999", 0, 0, 0, AddParams{ParentID: parent, VlanID: 9999}); err == nil {
		t.Fatal("expected vlan id 9999 to be rejected")
	}
}

func TestAddVlanDuplicateParentVlanPairRejected(t *testing.T) {
	vm, _, parent := newTestSetup(t)
	if _, err := vm.Add("eth0.100", 0, 0, 0, AddParams{ParentID: parent, VlanID: 100}); err != nil {
		t.Fatalf("first Add: %v", err)
	}
	if _, err := vm.Add("eth0.100b", 0, 0, 0, AddParams{ParentID: parent, VlanID: 100}); err == nil {
		t.Fatal("expected duplicate (parent,vlan) to be rejected")
	}
}

func TestAddVlanRejectsNonMulticastMAC(t *testing.T) {
	vm, _, parent := newTestSetup(t)
	unicast := net.HardwareAddr{0x02, 0, 0, 0, 0, 1}
	if _, err := vm.Add("eth0.100", 0, 0, 0, AddParams{ParentID: parent, VlanID: 100, MAC: unicast}); err == nil {
		t.Fatal("expected non-multicast MAC to be rejected")
	}
}

func TestDelVlanDetachesFromParent(t *testing.T) {
	vm, reg, parent := newTestSetup(t)
	id, err := vm.Add("eth0.100", 0, 0, 0, AddParams{ParentID: parent, VlanID: 100})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := reg.Del(id); err != nil {
		t.Fatalf("Del: %v", err)
	}
	p, _ := reg.FromID(parent)
	for _, c := range p.Children {
		if c == id {
			t.Fatal("expected vlan detached from parent's children")
		}
	}
}

func TestAddEthAddrRequiresMulticast(t *testing.T) {
	vm, reg, parent := newTestSetup(t)
	id, err := vm.Add("eth0.100", 0, 0, 0, AddParams{ParentID: parent, VlanID: 100})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	iface, _ := reg.FromID(id)
	unicast := net.HardwareAddr{0x02, 0, 0, 0, 0, 1}
	if err := vm.addMAC(iface, unicast); err == nil {
		t.Fatal("expected non-multicast MAC to be rejected")
	}
	multicast := net.HardwareAddr{0x01, 0, 0, 0, 0, 1}
	if err := vm.addMAC(iface, multicast); err != nil {
		t.Fatalf("addMAC with multicast: %v", err)
	}
}

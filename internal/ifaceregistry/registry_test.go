package ifaceregistry

import (
	"errors"
	"net"
	"testing"

	"routerd/internal/ctlerr"
)

type stubInfo struct{ inited, finied bool }

func stubDescriptor() *Descriptor {
	return &Descriptor{
		Init: func(iface *Iface, info any) error {
			if info != nil {
				info.(*stubInfo).inited = true
			}
			return nil
		},
		Reconfig: func(iface *Iface, mask SetMask, flags Flags, mtu, vrf uint16, info any) error {
			if mask&SetFlags != 0 {
				iface.Flags = flags
			}
			if mask&SetMTU != 0 {
				iface.MTU = mtu
			}
			return nil
		},
		Fini: func(iface *Iface) error {
			if iface.Info != nil {
				iface.Info.(*stubInfo).finied = true
			}
			return nil
		},
		GetMAC: func(iface *Iface) (net.HardwareAddr, error) { return nil, nil },
		ToAPI:  func(iface *Iface) any { return iface.Name },
	}
}

func newTestRegistry() *Registry {
	r := New()
	r.RegisterType(TypePort, stubDescriptor())
	r.RegisterType(TypeVlan, stubDescriptor())
	return r
}

func TestAddAssignsStableNonZeroID(t *testing.T) {
	r := newTestRegistry()
	id, err := r.Add(TypePort, "eth0", FlagUp, 1500, 0, &stubInfo{})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if id == InvalidID {
		t.Fatal("expected non-zero id")
	}
	iface, ok := r.FromID(id)
	if !ok {
		t.Fatal("expected to find interface by id")
	}
	if iface.Name != "eth0" || iface.Info.(*stubInfo) == nil {
		t.Fatal("iface not populated")
	}
}

func TestAddDuplicateNameRejected(t *testing.T) {
	r := newTestRegistry()
	if _, err := r.Add(TypePort, "eth0", 0, 1500, 0, &stubInfo{}); err != nil {
		t.Fatalf("first Add: %v", err)
	}
	_, err := r.Add(TypePort, "eth0", 0, 1500, 0, &stubInfo{})
	var ce *ctlerr.Error
	if !errors.As(err, &ce) || ce.Kind != ctlerr.Conflict {
		t.Fatalf("expected Conflict error, got %v", err)
	}
}

func TestSameNameDifferentTypeAllowed(t *testing.T) {
	r := newTestRegistry()
	if _, err := r.Add(TypePort, "x0", 0, 1500, 0, &stubInfo{}); err != nil {
		t.Fatalf("Add port: %v", err)
	}
	if _, err := r.Add(TypeVlan, "x0", 0, 1500, 0, &stubInfo{}); err != nil {
		t.Fatalf("expected (type,name) uniqueness, got %v", err)
	}
}

func TestDelRefusedWhileChildrenExist(t *testing.T) {
	r := newTestRegistry()
	parent, _ := r.Add(TypePort, "eth0", 0, 1500, 0, &stubInfo{})
	child, _ := r.Add(TypeVlan, "eth0.100", 0, 1500, 0, &stubInfo{})
	if err := r.AddSubinterface(parent, child); err != nil {
		t.Fatalf("AddSubinterface: %v", err)
	}

	err := r.Del(parent)
	var ce *ctlerr.Error
	if !errors.As(err, &ce) || ce.Kind != ctlerr.Busy {
		t.Fatalf("expected Busy error, got %v", err)
	}

	if err := r.DelSubinterface(parent, child); err != nil {
		t.Fatalf("DelSubinterface: %v", err)
	}
	if err := r.Del(child); err != nil {
		t.Fatalf("Del child: %v", err)
	}
	if err := r.Del(parent); err != nil {
		t.Fatalf("Del parent after children cleared: %v", err)
	}
}

func TestSetDispatchesReconfigRespectingMask(t *testing.T) {
	r := newTestRegistry()
	id, _ := r.Add(TypePort, "eth0", 0, 1500, 0, &stubInfo{})
	if err := r.Set(id, SetMTU, 0, 9000, 0, nil); err != nil {
		t.Fatalf("Set: %v", err)
	}
	iface, _ := r.FromID(id)
	if iface.MTU != 9000 {
		t.Fatalf("expected MTU updated to 9000, got %d", iface.MTU)
	}
	if iface.Flags != 0 {
		t.Fatalf("expected Flags untouched, got %v", iface.Flags)
	}
}

func TestNextIteratesInAscendingIDOrderByType(t *testing.T) {
	r := newTestRegistry()
	p1, _ := r.Add(TypePort, "p1", 0, 1500, 0, &stubInfo{})
	_, _ = r.Add(TypeVlan, "v1", 0, 1500, 0, &stubInfo{})
	p2, _ := r.Add(TypePort, "p2", 0, 1500, 0, &stubInfo{})

	first, ok := r.Next(TypePort, InvalidID)
	if !ok || first.ID != p1 {
		t.Fatalf("expected first port %d, got %+v", p1, first)
	}
	second, ok := r.Next(TypePort, first.ID)
	if !ok || second.ID != p2 {
		t.Fatalf("expected second port %d, got %+v", p2, second)
	}
	if _, ok := r.Next(TypePort, second.ID); ok {
		t.Fatal("expected iteration exhausted")
	}
}

func TestDelUnknownIDReturnsNotFound(t *testing.T) {
	r := newTestRegistry()
	err := r.Del(ID(999))
	var ce *ctlerr.Error
	if !errors.As(err, &ce) || ce.Kind != ctlerr.NotFound {
		t.Fatalf("expected NotFound error, got %v", err)
	}
}

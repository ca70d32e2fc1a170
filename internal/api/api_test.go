package api

import (
	"net"
	"testing"

	"routerd/internal/ifaceregistry"
	"routerd/internal/nht"
	"routerd/internal/nicdriver"
	"routerd/internal/portmgr"
	"routerd/internal/routetable"
	"routerd/internal/vlanmgr"
	"routerd/internal/worker"
)

func newTestDispatcher(t *testing.T) (*Dispatcher, Deps) {
	t.Helper()
	reg := ifaceregistry.New()
	driver := nicdriver.NewFake(nicdriver.SocketAny)
	ports := portmgr.New(driver, reg, worker.NewManager())
	vlans := vlanmgr.New(driver, reg)
	nhs := nht.New()
	routes := routetable.New(nhs)

	deps := Deps{Registry: reg, Ports: ports, Vlans: vlans, NextHops: nhs, Routes: routes}
	return New(deps), deps
}

func ip(a, b, c, d byte) uint32 {
	return uint32(a)<<24 | uint32(b)<<16 | uint32(c)<<8 | uint32(d)
}

func TestPortAddGetDel(t *testing.T) {
	disp, _ := newTestDispatcher(t)

	resp, err := disp.Dispatch(PortAdd, "eth0", PortAddRequest{Name: "eth0", DevArgs: "a", Flags: ifaceregistry.FlagUp})
	if err != nil {
		t.Fatalf("PortAdd: %v", err)
	}
	if _, ok := resp.(ifaceregistry.ID); !ok {
		t.Fatalf("expected ID response, got %T", resp)
	}

	if _, err := disp.Dispatch(PortGet, "eth0", "eth0"); err != nil {
		t.Fatalf("PortGet: %v", err)
	}

	if _, err := disp.Dispatch(PortDel, "eth0", "eth0"); err != nil {
		t.Fatalf("PortDel: %v", err)
	}

	if _, err := disp.Dispatch(PortGet, "eth0", "eth0"); err == nil {
		t.Fatal("expected PortGet to fail after delete")
	}
}

func TestUnknownKindRejected(t *testing.T) {
	disp, _ := newTestDispatcher(t)
	if _, err := disp.Dispatch(Kind("bogus"), "", nil); err == nil {
		t.Fatal("expected error for unknown request kind")
	}
}

func TestRouteAddRequiresExistingGatewayUnlessExistOk(t *testing.T) {
	disp, _ := newTestDispatcher(t)
	req := RouteAddRequest{PrefixAddr: ip(10, 0, 0, 0), PrefixLen: 24, GatewayIP: ip(10, 0, 0, 1)}
	if _, err := disp.Dispatch(RouteAdd, "10.0.0.0/24", req); err == nil {
		t.Fatal("expected error when gateway has no next-hop")
	}
	req.ExistOk = true
	if _, err := disp.Dispatch(RouteAdd, "10.0.0.0/24", req); err != nil {
		t.Fatalf("expected success with ExistOk, got %v", err)
	}
}

func TestNHAddThenRouteGet(t *testing.T) {
	disp, _ := newTestDispatcher(t)

	portResp, err := disp.Dispatch(PortAdd, "eth0", PortAddRequest{Name: "eth0", DevArgs: "a"})
	if err != nil {
		t.Fatalf("PortAdd: %v", err)
	}
	portID := portResp.(ifaceregistry.ID)

	mac := net.HardwareAddr{1, 2, 3, 4, 5, 6}
	nhReq := NHAddRequest{Host: ip(10, 0, 0, 1), IfaceID: portID, MAC: mac}
	if _, err := disp.Dispatch(NHAdd, "10.0.0.1", nhReq); err != nil {
		t.Fatalf("NHAdd: %v", err)
	}

	if resp, err := disp.Dispatch(RouteGet, "10.0.0.1", ip(10, 0, 0, 1)); err != nil {
		t.Fatalf("RouteGet: %v", err)
	} else if slot, ok := resp.(nht.Slot); !ok || slot.IfaceID != portID {
		t.Fatalf("expected matching next-hop slot, got %+v", resp)
	}

	if _, err := disp.Dispatch(NHList, "", nil); err != nil {
		t.Fatalf("NHList: %v", err)
	}
}

func TestPortStatsAndIfaceStats(t *testing.T) {
	disp, _ := newTestDispatcher(t)

	portResp, err := disp.Dispatch(PortAdd, "eth0", PortAddRequest{Name: "eth0", DevArgs: "a", Flags: ifaceregistry.FlagUp})
	if err != nil {
		t.Fatalf("PortAdd: %v", err)
	}
	portID := portResp.(ifaceregistry.ID)

	if _, err := disp.Dispatch(PortStats, "eth0", "eth0"); err != nil {
		t.Fatalf("PortStats: %v", err)
	}

	resp, err := disp.Dispatch(IfaceStats, "eth0", portID)
	if err != nil {
		t.Fatalf("IfaceStats: %v", err)
	}
	view, ok := resp.(IfaceStatsView)
	if !ok || view.Queue == nil {
		t.Fatalf("expected IfaceStatsView with queue detail, got %+v", resp)
	}
}

func TestRouteGetMissReturnsUnreachable(t *testing.T) {
	disp, _ := newTestDispatcher(t)
	if _, err := disp.Dispatch(RouteGet, "192.168.1.1", ip(192, 168, 1, 1)); err == nil {
		t.Fatal("expected ENETUNREACH for a miss")
	}
}

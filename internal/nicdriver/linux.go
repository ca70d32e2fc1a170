package nicdriver

import (
	"fmt"
	"net"
	"sync"
	"syscall"

	"routerd/internal/netlinkx"
)

type linuxPort struct {
	name     string
	socketID int
}

// Linux is a netlink-backed stand-in Driver: it treats devargs as an
// already-existing Linux interface name (e.g. "eth0") rather than
// probing a PCI device the way a real poll-mode driver would. It exists
// to give the control plane something runnable to drive end to end on a
// development box; it is not a substitute for the poll-mode driver a
// production deployment would bind.
//
// Queue and pool operations are no-ops here: Linux's native stack, not
// this control plane, owns the interface's RX/TX rings. Configure,
// SetupRxQueue, SetupTxQueue, PoolAllocate, and PoolFree succeed
// trivially so that the port manager's configuration sequence can be
// exercised without a real poll-mode NIC.
type Linux struct {
	mu       sync.Mutex
	nextPort int
	ports    map[int]*linuxPort
	pools    map[uint32]*Pool
	nextPool uint32
}

// NewLinux returns a Driver backed by internal/netlinkx.
func NewLinux() *Linux {
	return &Linux{
		ports: make(map[int]*linuxPort),
		pools: make(map[uint32]*Pool),
	}
}

func (d *Linux) Probe(devargs string) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.nextPort
	d.nextPort++
	d.ports[id] = &linuxPort{name: devargs, socketID: netlinkx.NumaNode(devargs)}
	return id, nil
}

func (d *Linux) get(portID int) (*linuxPort, error) {
	p, ok := d.ports[portID]
	if !ok {
		return nil, syscall.ENODEV
	}
	return p, nil
}

func (d *Linux) Remove(portID int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := d.get(portID); err != nil {
		return err
	}
	delete(d.ports, portID)
	return nil
}

func (d *Linux) Info(portID int) (Info, error) {
	d.mu.Lock()
	p, err := d.get(portID)
	d.mu.Unlock()
	if err != nil {
		return Info{}, err
	}
	mac, _ := d.GetMAC(portID)
	return Info{
		MAC:                 mac,
		DefaultRxqSize:      512,
		DefaultTxqSize:      512,
		MaxRxQueues:         1,
		MaxTxQueues:         1,
		FlowTypeRSSOffloads: 0,
		RxOffloadCapa:       0,
		SocketID:            p.socketID,
	}, nil
}

func (d *Linux) Configure(portID int, nRxq, nTxq int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, err := d.get(portID)
	return err
}

func (d *Linux) SetupRxQueue(portID, qid, size int, pool *Pool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, err := d.get(portID)
	return err
}

func (d *Linux) SetupTxQueue(portID, qid, size int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, err := d.get(portID)
	return err
}

func (d *Linux) PoolAllocate(socketID int, size, cacheSize uint32) (*Pool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.nextPool
	d.nextPool++
	pool := &Pool{ID: id, SocketID: socketID, Size: size, CacheSize: cacheSize}
	d.pools[id] = pool
	return pool, nil
}

func (d *Linux) PoolFree(pool *Pool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if pool == nil {
		return nil
	}
	delete(d.pools, pool.ID)
	return nil
}

func (d *Linux) Start(portID int) error {
	p, err := d.portName(portID)
	if err != nil {
		return err
	}
	return netlinkx.LinkSetUp(p)
}

func (d *Linux) Stop(portID int) error {
	p, err := d.portName(portID)
	if err != nil {
		return err
	}
	return netlinkx.LinkSetDown(p)
}

func (d *Linux) Close(portID int) error { return nil }

func (d *Linux) portName(portID int) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, err := d.get(portID)
	if err != nil {
		return "", err
	}
	return p.name, nil
}

func (d *Linux) SetPromiscuous(portID int, on bool) error {
	name, err := d.portName(portID)
	if err != nil {
		return err
	}
	return netlinkx.LinkSetPromisc(name, on)
}

func (d *Linux) GetPromiscuous(portID int) (bool, error) {
	// net.Flags does not expose IFF_PROMISC; like GetAllmulti, this
	// stand-in driver reports ENOTSUP rather than re-reading kernel
	// state, so the control plane keeps its cached flag after a
	// successful SetPromiscuous.
	if _, err := d.portName(portID); err != nil {
		return false, err
	}
	return false, syscall.ENOTSUP
}

func (d *Linux) SetAllmulti(portID int, on bool) error {
	name, err := d.portName(portID)
	if err != nil {
		return err
	}
	return netlinkx.LinkSetAllmulti(name, on)
}

func (d *Linux) GetAllmulti(portID int) (bool, error) {
	// net.Flags does not expose IFF_ALLMULTI; callers needing the exact
	// kernel state should read /sys/class/net/<name>/flags directly. This
	// stand-in driver reports ENOTSUP, so the control plane's
	// set-then-reconcile path skips the read-back and its cached flag
	// stays authoritative after SetAllmulti succeeds.
	if _, err := d.portName(portID); err != nil {
		return false, err
	}
	return false, syscall.ENOTSUP
}

func (d *Linux) LinkUp(portID int) (bool, error) {
	name, err := d.portName(portID)
	if err != nil {
		return false, err
	}
	links, err := netlinkx.LinkList()
	if err != nil {
		return false, err
	}
	for _, l := range links {
		if l.Name == name {
			return l.Flags&net.FlagUp != 0, nil
		}
	}
	return false, fmt.Errorf("interface %q not found", name)
}

func (d *Linux) SetMTU(portID, mtu int) error {
	name, err := d.portName(portID)
	if err != nil {
		return err
	}
	return netlinkx.LinkSetMTU(name, mtu)
}

func (d *Linux) GetMTU(portID int) (int, error) {
	name, err := d.portName(portID)
	if err != nil {
		return 0, err
	}
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return 0, err
	}
	return iface.MTU, nil
}

func (d *Linux) SetMAC(portID int, mac net.HardwareAddr) error {
	name, err := d.portName(portID)
	if err != nil {
		return err
	}
	return netlinkx.LinkSetAddr(name, mac)
}

func (d *Linux) GetMAC(portID int) (net.HardwareAddr, error) {
	name, err := d.portName(portID)
	if err != nil {
		return nil, err
	}
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return nil, err
	}
	return iface.HardwareAddr, nil
}

// VLANFilterAdd/Del: plain Linux netdevs accept 802.1Q VLAN sub-interfaces
// unconditionally (the kernel, not the NIC, does the tagging), so there
// is no hardware filter to program. Reported as ENOTSUP so callers take
// the best-effort path already required for drivers that lack VLAN
// filter support.
func (d *Linux) VLANFilterAdd(portID, vlanID int) error {
	d.mu.Lock()
	_, err := d.get(portID)
	d.mu.Unlock()
	if err != nil {
		return err
	}
	return syscall.ENOTSUP
}

func (d *Linux) VLANFilterDel(portID, vlanID int) error {
	d.mu.Lock()
	_, err := d.get(portID)
	d.mu.Unlock()
	if err != nil {
		return err
	}
	return syscall.ENOTSUP
}

func (d *Linux) MACFilterAdd(portID int, mac net.HardwareAddr) error {
	d.mu.Lock()
	_, err := d.get(portID)
	d.mu.Unlock()
	if err != nil {
		return err
	}
	return syscall.ENOTSUP
}

func (d *Linux) MACFilterDel(portID int, mac net.HardwareAddr) error {
	d.mu.Lock()
	_, err := d.get(portID)
	d.mu.Unlock()
	if err != nil {
		return err
	}
	return syscall.ENOTSUP
}

var _ Driver = (*Linux)(nil)

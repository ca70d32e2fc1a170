package nicdriver

import (
	"net"
	"sync"
	"syscall"
)

type fakePort struct {
	devargs    string
	mac        net.HardwareAddr
	mtu        int
	promisc    bool
	allmulti   bool
	linkUp     bool
	nRxq, nTxq int
	socketID   int
	vlans      map[int]bool
	macFilters map[string]bool
}

// Fake is an in-memory Driver used by unit tests. It never fails unless
// told to via SetVLANFilterErrno (or asked about an unknown port), and
// reports deterministic defaults.
type Fake struct {
	mu        sync.Mutex
	nextPort  int
	nextPool  uint32
	ports     map[int]*fakePort
	pools     map[uint32]*Pool
	socketID  int // NUMA socket reported for every probed port; -1 for SocketAny
	rssOffloads uint64
	rxOffloadCapa uint64
	vlanFilterErrno syscall.Errno // if non-zero, VLANFilterAdd/Del return this
}

// NewFake returns a ready-to-use Fake driver. socketID is reported by
// Info for every probed port (use SocketAny to simulate a driver with no
// NUMA affinity information).
func NewFake(socketID int) *Fake {
	return &Fake{
		ports:         make(map[int]*fakePort),
		pools:         make(map[uint32]*Pool),
		socketID:      socketID,
		rssOffloads:   0xFFFF,
		rxOffloadCapa: 0xFFFF,
	}
}

// SetVLANFilterErrno makes subsequent VLANFilterAdd/Del calls fail with
// errno (e.g. syscall.ENOTSUP), simulating a driver without VLAN filter
// support.
func (f *Fake) SetVLANFilterErrno(errno syscall.Errno) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vlanFilterErrno = errno
}

func (f *Fake) Probe(devargs string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextPort
	f.nextPort++
	mac := net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, byte(id + 1)}
	f.ports[id] = &fakePort{
		devargs:    devargs,
		mac:        mac,
		mtu:        1500,
		linkUp:     true,
		socketID:   f.socketID,
		vlans:      make(map[int]bool),
		macFilters: make(map[string]bool),
	}
	return id, nil
}

func (f *Fake) get(portID int) (*fakePort, error) {
	p, ok := f.ports[portID]
	if !ok {
		return nil, syscall.ENODEV
	}
	return p, nil
}

func (f *Fake) Remove(portID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := f.get(portID); err != nil {
		return err
	}
	delete(f.ports, portID)
	return nil
}

func (f *Fake) Info(portID int) (Info, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, err := f.get(portID)
	if err != nil {
		return Info{}, err
	}
	return Info{
		MAC:                 p.mac,
		DefaultRxqSize:      512,
		DefaultTxqSize:      512,
		MaxRxQueues:         64,
		MaxTxQueues:         64,
		FlowTypeRSSOffloads: f.rssOffloads,
		RxOffloadCapa:       f.rxOffloadCapa,
		SocketID:            p.socketID,
	}, nil
}

func (f *Fake) Configure(portID int, nRxq, nTxq int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, err := f.get(portID)
	if err != nil {
		return err
	}
	p.nRxq, p.nTxq = nRxq, nTxq
	return nil
}

func (f *Fake) SetupRxQueue(portID, qid, size int, pool *Pool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, err := f.get(portID)
	return err
}

func (f *Fake) SetupTxQueue(portID, qid, size int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, err := f.get(portID)
	return err
}

func (f *Fake) PoolAllocate(socketID int, size, cacheSize uint32) (*Pool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextPool
	f.nextPool++
	pool := &Pool{ID: id, SocketID: socketID, Size: size, CacheSize: cacheSize}
	f.pools[id] = pool
	return pool, nil
}

func (f *Fake) PoolFree(pool *Pool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if pool == nil {
		return nil
	}
	delete(f.pools, pool.ID)
	return nil
}

func (f *Fake) Start(portID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, err := f.get(portID)
	if err != nil {
		return err
	}
	p.linkUp = true
	return nil
}

func (f *Fake) Stop(portID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, err := f.get(portID)
	if err != nil {
		return err
	}
	p.linkUp = false
	return nil
}

func (f *Fake) Close(portID int) error {
	return nil
}

func (f *Fake) SetPromiscuous(portID int, on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, err := f.get(portID)
	if err != nil {
		return err
	}
	p.promisc = on
	return nil
}

func (f *Fake) GetPromiscuous(portID int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, err := f.get(portID)
	if err != nil {
		return false, err
	}
	return p.promisc, nil
}

func (f *Fake) SetAllmulti(portID int, on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, err := f.get(portID)
	if err != nil {
		return err
	}
	p.allmulti = on
	return nil
}

func (f *Fake) GetAllmulti(portID int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, err := f.get(portID)
	if err != nil {
		return false, err
	}
	return p.allmulti, nil
}

func (f *Fake) LinkUp(portID int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, err := f.get(portID)
	if err != nil {
		return false, err
	}
	return p.linkUp, nil
}

func (f *Fake) SetMTU(portID, mtu int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, err := f.get(portID)
	if err != nil {
		return err
	}
	p.mtu = mtu
	return nil
}

func (f *Fake) GetMTU(portID int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, err := f.get(portID)
	if err != nil {
		return 0, err
	}
	return p.mtu, nil
}

func (f *Fake) SetMAC(portID int, mac net.HardwareAddr) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, err := f.get(portID)
	if err != nil {
		return err
	}
	p.mac = mac
	return nil
}

func (f *Fake) GetMAC(portID int) (net.HardwareAddr, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, err := f.get(portID)
	if err != nil {
		return nil, err
	}
	return p.mac, nil
}

func (f *Fake) VLANFilterAdd(portID, vlanID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, err := f.get(portID)
	if err != nil {
		return err
	}
	if f.vlanFilterErrno != 0 {
		return f.vlanFilterErrno
	}
	p.vlans[vlanID] = true
	return nil
}

func (f *Fake) VLANFilterDel(portID, vlanID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, err := f.get(portID)
	if err != nil {
		return err
	}
	if f.vlanFilterErrno != 0 {
		return f.vlanFilterErrno
	}
	delete(p.vlans, vlanID)
	return nil
}

func (f *Fake) MACFilterAdd(portID int, mac net.HardwareAddr) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, err := f.get(portID)
	if err != nil {
		return err
	}
	p.macFilters[mac.String()] = true
	return nil
}

func (f *Fake) MACFilterDel(portID int, mac net.HardwareAddr) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, err := f.get(portID)
	if err != nil {
		return err
	}
	delete(p.macFilters, mac.String())
	return nil
}

var _ Driver = (*Fake)(nil)

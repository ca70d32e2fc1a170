// Package nicdriver declares the interface the control plane demands of
// the external poll-mode NIC driver runtime (probe, configure, queue
// setup, MAC/VLAN filter, link query), treated as an external
// collaborator: this package only describes the boundary and
// ships two concrete backends — Fake (in-memory, for tests) and Linux (a
// netlink-backed stand-in, see linux.go) — neither of which is "the"
// driver a real DPDK-class deployment would use.
package nicdriver

import "net"

// SocketAny marks a port with no NUMA affinity (driver reports "any").
const SocketAny = -1

// Info is what Probe/Info report about a device: its defaults and
// capabilities, consulted by the port manager when sizing queues and
// pools.
type Info struct {
	MAC                  net.HardwareAddr
	DefaultRxqSize       int
	DefaultTxqSize       int
	MaxRxQueues          int
	MaxTxQueues          int
	FlowTypeRSSOffloads  uint64 // bitmask of RSS hash functions the NIC supports
	RxOffloadCapa        uint64 // bitmask of RX offloads the NIC supports
	SocketID             int    // NUMA node, or SocketAny
}

// Pool is an opaque packet-buffer pool handle owned by a single port.
type Pool struct {
	ID        uint32
	SocketID  int
	Size      uint32
	CacheSize uint32
}

// Driver is the boundary the control plane requires. All methods are
// blocking and may take milliseconds; the control thread
// accepts that cost since no other control work can usefully proceed
// during a device transition.
type Driver interface {
	// Probe attaches a device by its devargs string and returns the NIC
	// port id the driver assigned it.
	Probe(devargs string) (portID int, err error)
	// Remove detaches and releases a previously probed device.
	Remove(portID int) error

	// Info reports the device's current capabilities and defaults.
	Info(portID int) (Info, error)

	// Configure applies the RX/TX queue counts negotiated by the port
	// manager. Must be called before queue setup.
	Configure(portID int, nRxq, nTxq int) error
	// SetupRxQueue configures RX queue qid of the given ring size, backed
	// by pool.
	SetupRxQueue(portID, qid, size int, pool *Pool) error
	// SetupTxQueue configures TX queue qid of the given ring size.
	SetupTxQueue(portID, qid, size int) error

	// PoolAllocate creates a packet buffer pool on the given NUMA socket.
	PoolAllocate(socketID int, size, cacheSize uint32) (*Pool, error)
	// PoolFree releases a pool created by PoolAllocate.
	PoolFree(pool *Pool) error

	Start(portID int) error
	Stop(portID int) error
	Close(portID int) error

	SetPromiscuous(portID int, on bool) error
	GetPromiscuous(portID int) (bool, error)
	SetAllmulti(portID int, on bool) error
	GetAllmulti(portID int) (bool, error)
	// LinkUp reports the current physical link status.
	LinkUp(portID int) (bool, error)

	SetMTU(portID int, mtu int) error
	GetMTU(portID int) (int, error)
	SetMAC(portID int, mac net.HardwareAddr) error
	GetMAC(portID int) (net.HardwareAddr, error)

	// VLANFilterAdd/Del program the parent port's 802.1Q VLAN filter for a
	// sub-interface. May return ENOTSUP/ENOSYS, which callers must treat
	// as best-effort.
	VLANFilterAdd(portID, vlanID int) error
	VLANFilterDel(portID, vlanID int) error
	// MACFilterAdd/Del program an additional (typically multicast) MAC
	// address the port should receive.
	MACFilterAdd(portID int, mac net.HardwareAddr) error
	MACFilterDel(portID int, mac net.HardwareAddr) error
}

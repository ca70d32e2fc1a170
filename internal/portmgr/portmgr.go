// Package portmgr implements the port manager (C3): it probes NIC
// devices through internal/nicdriver, sizes queues and
// buffer pools, drives the configure sequence, and applies runtime
// attribute updates (flags, MTU, MAC).
package portmgr

import (
	"errors"
	"log"
	"net"
	"syscall"

	"routerd/internal/ctlerr"
	"routerd/internal/ifaceregistry"
	"routerd/internal/nicdriver"
	"routerd/internal/worker"
)

// defaultQueueSize is the fixed fallback used when neither the caller
// nor the driver supplies a queue size.
const defaultQueueSize = 512

// poolCacheSize is a fixed per-port pool cache size.
const poolCacheSize = 256

// Info is the type-specific block the ifaceregistry stores for a Port
// interface.
type Info struct {
	DevArgs      string
	PortID       int
	NUMANode     int
	Configured   bool
	RxqSize      int
	TxqSize      int
	BurstSize    int
	RequestedRSS uint64
	NRxq         int
	NTxq         int
	Pool         *nicdriver.Pool
	Running      bool
}

// Manager wires a nicdriver.Driver and a worker.Manager to the
// interface registry, implementing the Port type descriptor.
type Manager struct {
	driver   nicdriver.Driver
	registry *ifaceregistry.Registry
	workers  *worker.Manager
}

// New wires a Manager and registers the Port descriptor with registry.
func New(driver nicdriver.Driver, registry *ifaceregistry.Registry, workers *worker.Manager) *Manager {
	m := &Manager{driver: driver, registry: registry, workers: workers}
	registry.RegisterType(ifaceregistry.TypePort, &ifaceregistry.Descriptor{
		Init:     m.init,
		Reconfig: m.reconfig,
		Fini:     m.fini,
		GetMAC:   m.getMAC,
		ToAPI:    m.toAPI,
	})
	return m
}

// AddParams carries port.add request fields not modeled by the generic
// ifaceregistry.Add signature (devargs, requested RSS hash mask).
type AddParams struct {
	DevArgs      string
	RxqSize      int
	TxqSize      int
	BurstSize    int
	RequestedRSS uint64
}

// Add probes a NIC device and registers it as a Port interface.
func (m *Manager) Add(name string, flags ifaceregistry.Flags, mtu, vrf uint16, p AddParams) (ifaceregistry.ID, error) {
	info := &Info{
		DevArgs:      p.DevArgs,
		RxqSize:      p.RxqSize,
		TxqSize:      p.TxqSize,
		BurstSize:    p.BurstSize,
		RequestedRSS: p.RequestedRSS,
	}
	return m.registry.Add(ifaceregistry.TypePort, name, flags, mtu, vrf, info)
}

func (m *Manager) init(iface *ifaceregistry.Iface, raw any) error {
	info := raw.(*Info)
	portID, err := m.driver.Probe(info.DevArgs)
	if err != nil {
		return translateDriverErr("port.add", err)
	}
	info.PortID = portID

	drvInfo, err := m.driver.Info(portID)
	if err != nil {
		_ = m.driver.Remove(portID)
		return translateDriverErr("port.add", err)
	}
	info.NUMANode = drvInfo.SocketID
	iface.Info = info

	if err := m.configure(iface, info, drvInfo); err != nil {
		_ = m.driver.Remove(portID)
		return err
	}
	if err := m.applyRuntimeAttrs(iface, info, true); err != nil {
		return err
	}
	return nil
}

// configure runs the configuration sequence, in order.
func (m *Manager) configure(iface *ifaceregistry.Iface, info *Info, drvInfo nicdriver.Info) error {
	numaNode := info.NUMANode
	if numaNode == nicdriver.SocketAny {
		numaNode = worker.NoNUMAAffinity
	}

	// Step 1: ensure a worker exists on the port's NUMA socket.
	def := m.workers.EnsureDefault(numaNode)

	// Step 2: recompute n_txq from worker count; n_rxq floor of 1.
	nTxq := len(m.workers.Workers())
	nRxq := info.NRxq
	if nRxq < 1 {
		nRxq = 1
	}

	// Step 3: free any prior pool; recompute queue sizes from driver info.
	if info.Pool != nil {
		_ = m.driver.PoolFree(info.Pool)
		info.Pool = nil
	}
	rxqSize := queueSize(info.RxqSize, drvInfo.DefaultRxqSize)
	txqSize := queueSize(info.TxqSize, drvInfo.DefaultTxqSize)

	// Step 4: mask the requested RSS hash functions by driver capability;
	// an empty mask forces a single RX queue. RX offloads are neither
	// requested nor masked here.
	rss := info.RequestedRSS & drvInfo.FlowTypeRSSOffloads
	if rss == 0 {
		nRxq = 1
	}

	// Step 5: device configure.
	if err := m.driver.Configure(info.PortID, nRxq, nTxq); err != nil {
		return translateDriverErr("port.add", err)
	}

	// Step 6: allocate pool, set up queues.
	poolSize := nextPow2Minus1(uint64(nRxq)*uint64(rxqSize) + uint64(nTxq)*uint64(txqSize) + uint64(info.BurstSize))
	poolSocket := numaNode
	if info.NUMANode == nicdriver.SocketAny {
		poolSocket = def.NUMANode
	}
	pool, err := m.driver.PoolAllocate(poolSocket, uint32(poolSize), poolCacheSize)
	if err != nil {
		return translateDriverErr("port.add", err)
	}
	info.Pool = pool

	for q := 0; q < nRxq; q++ {
		if err := m.driver.SetupRxQueue(info.PortID, q, rxqSize, pool); err != nil {
			return translateDriverErr("port.add", err)
		}
	}
	for q := 0; q < nTxq; q++ {
		if err := m.driver.SetupTxQueue(info.PortID, q, txqSize); err != nil {
			return translateDriverErr("port.add", err)
		}
	}

	// Step 7: worker/queue assignment.
	if err := m.workers.AssignPort(info.PortID, numaNode, nRxq); err != nil {
		return err
	}

	info.NRxq, info.NTxq = nRxq, nTxq
	info.Configured = true // Step 8
	return nil
}

func queueSize(requested, driverDefault int) int {
	if requested != 0 {
		return requested
	}
	if driverDefault != 0 {
		return driverDefault
	}
	return defaultQueueSize
}

// nextPow2Minus1 rounds n up to the next power of two, then subtracts
// one — the mbuf-pool sizing convention this port manager follows.
func nextPow2Minus1(n uint64) uint32 {
	if n == 0 {
		return 0
	}
	p := uint64(1)
	for p < n {
		p <<= 1
	}
	return uint32(p - 1)
}

// SetParams carries port.set request fields.
type SetParams struct {
	DevArgsChanged bool // unused: devargs is immutable post-add; kept for symmetry with spec's request shape
	MAC            net.HardwareAddr
}

func (m *Manager) reconfig(iface *ifaceregistry.Iface, mask ifaceregistry.SetMask, flags ifaceregistry.Flags, mtu, vrf uint16, raw any) error {
	info := iface.Info.(*Info)

	wasRunning := info.Running
	if wasRunning {
		if err := m.driver.Stop(info.PortID); err != nil {
			return translateDriverErr("port.set", err)
		}
	}

	if mask&ifaceregistry.SetFlags != 0 {
		iface.Flags = flags
	}
	if mask&ifaceregistry.SetMTU != 0 {
		iface.MTU = mtu
	}
	if mask&ifaceregistry.SetVRF != 0 {
		iface.VRF = vrf
	}
	if mask&ifaceregistry.SetInfo != 0 {
		if sp, ok := raw.(*SetParams); ok && sp != nil && sp.MAC != nil {
			if err := m.driver.SetMAC(info.PortID, sp.MAC); err != nil {
				return translateDriverErr("port.set", err)
			}
		}
	}

	if err := m.applyRuntimeAttrs(iface, info, false); err != nil {
		return err
	}

	if wasRunning || iface.Flags&ifaceregistry.FlagUp != 0 {
		if err := m.driver.Start(info.PortID); err != nil {
			return translateDriverErr("port.set", err)
		}
	}
	return nil
}

// applyRuntimeAttrs applies the FLAGS and MTU runtime updates. A
// requested MAC is set by reconfig; the MAC is not cached here.
func (m *Manager) applyRuntimeAttrs(iface *ifaceregistry.Iface, info *Info, initial bool) error {
	wantPromisc := iface.Flags&ifaceregistry.FlagPromisc != 0
	if err := m.driver.SetPromiscuous(info.PortID, wantPromisc); err != nil {
		if !ctlerr.IsBestEffort(err) {
			return translateDriverErr("port.set", err)
		}
		log.Printf("portmgr: port %d: promiscuous mode not supported: %v", info.PortID, err)
	}
	if got, err := m.driver.GetPromiscuous(info.PortID); err == nil && got != wantPromisc {
		iface.Flags = setFlagBit(iface.Flags, ifaceregistry.FlagPromisc, got)
	}

	wantAllmulti := iface.Flags&ifaceregistry.FlagAllmulti != 0
	if err := m.driver.SetAllmulti(info.PortID, wantAllmulti); err != nil {
		if !ctlerr.IsBestEffort(err) {
			return translateDriverErr("port.set", err)
		}
		log.Printf("portmgr: port %d: allmulti mode not supported: %v", info.PortID, err)
	}
	if got, err := m.driver.GetAllmulti(info.PortID); err == nil && got != wantAllmulti {
		iface.Flags = setFlagBit(iface.Flags, ifaceregistry.FlagAllmulti, got)
	}

	if iface.Flags&ifaceregistry.FlagUp != 0 {
		if err := m.driver.Start(info.PortID); err != nil {
			return translateDriverErr("port.set", err)
		}
		info.Running = true
	} else if !initial {
		if err := m.driver.Stop(info.PortID); err != nil {
			return translateDriverErr("port.set", err)
		}
		info.Running = false
	}
	if up, err := m.driver.LinkUp(info.PortID); err == nil && up {
		iface.State |= ifaceregistry.StateRunning
	} else {
		iface.State &^= ifaceregistry.StateRunning
	}

	if iface.MTU != 0 {
		if err := m.driver.SetMTU(info.PortID, int(iface.MTU)); err != nil {
			return translateDriverErr("port.set", err)
		}
	} else if got, err := m.driver.GetMTU(info.PortID); err == nil {
		iface.MTU = uint16(got)
	}

	return nil
}

func setFlagBit(flags ifaceregistry.Flags, bit ifaceregistry.Flags, on bool) ifaceregistry.Flags {
	if on {
		return flags | bit
	}
	return flags &^ bit
}

func (m *Manager) fini(iface *ifaceregistry.Iface) error {
	info := iface.Info.(*Info)

	shrank := m.workers.Unplug(info.PortID)
	_ = m.driver.Stop(info.PortID)
	_ = m.driver.Close(info.PortID)
	if err := m.driver.Remove(info.PortID); err != nil {
		return translateDriverErr("port.del", err)
	}
	if info.Pool != nil {
		_ = m.driver.PoolFree(info.Pool)
		info.Pool = nil
	}

	if shrank {
		m.reconfigureAllTxQueueCounts()
	}
	return nil
}

// reconfigureAllTxQueueCounts re-issues a configure for every remaining
// port's TX-queue set after a worker was destroyed, since the number of
// live workers determines how many TX queues each port must carry.
func (m *Manager) reconfigureAllTxQueueCounts() {
	for cursor := ifaceregistry.InvalidID; ; {
		iface, ok := m.registry.Next(ifaceregistry.TypePort, cursor)
		if !ok {
			return
		}
		cursor = iface.ID
		info, ok := iface.Info.(*Info)
		if !ok || !info.Configured {
			continue
		}
		nTxq := len(m.workers.Workers())
		_ = m.driver.Configure(info.PortID, info.NRxq, nTxq)
		info.NTxq = nTxq
	}
}

func (m *Manager) getMAC(iface *ifaceregistry.Iface) (net.HardwareAddr, error) {
	info := iface.Info.(*Info)
	return m.driver.GetMAC(info.PortID)
}

// View is the read-only shape reported by port.get/port.list.
type View struct {
	ID       ifaceregistry.ID
	Name     string
	Flags    ifaceregistry.Flags
	State    ifaceregistry.State
	MTU      uint16
	VRF      uint16
	NUMANode int
	NRxq     int
	NTxq     int
	MAC      net.HardwareAddr
}

func (m *Manager) toAPI(iface *ifaceregistry.Iface) any {
	info := iface.Info.(*Info)
	mac, _ := m.driver.GetMAC(info.PortID)
	return View{
		ID: iface.ID, Name: iface.Name, Flags: iface.Flags, State: iface.State,
		MTU: iface.MTU, VRF: iface.VRF, NUMANode: info.NUMANode,
		NRxq: info.NRxq, NTxq: info.NTxq, MAC: mac,
	}
}

// Stats is the read-only queue/pool counter shape reported by
// port.stats. There being no real dataplane to sample packet/byte
// counters from, these are the control plane's own queue bookkeeping:
// how many queues of each kind are configured, at what size, and
// whether the port is currently running.
type Stats struct {
	ID        ifaceregistry.ID
	Name      string
	Running   bool
	NRxq      int
	NTxq      int
	RxqSize   int
	TxqSize   int
	BurstSize int
	PoolSize  uint32
}

// Stats looks a port up by name and reports its queue/pool counters.
func (m *Manager) Stats(name string) (Stats, error) {
	iface, ok := m.registry.ByName(ifaceregistry.TypePort, name)
	if !ok {
		return Stats{}, ctlerr.NoDevice("port.stats", "no such port: "+name)
	}
	info := iface.Info.(*Info)
	var poolSize uint32
	if info.Pool != nil {
		poolSize = info.Pool.Size
	}
	rxqSize, txqSize := info.RxqSize, info.TxqSize
	if drvInfo, err := m.driver.Info(info.PortID); err == nil {
		rxqSize = queueSize(info.RxqSize, drvInfo.DefaultRxqSize)
		txqSize = queueSize(info.TxqSize, drvInfo.DefaultTxqSize)
	}
	return Stats{
		ID: iface.ID, Name: iface.Name, Running: info.Running,
		NRxq: info.NRxq, NTxq: info.NTxq, RxqSize: rxqSize,
		TxqSize: txqSize, BurstSize: info.BurstSize, PoolSize: poolSize,
	}, nil
}

// PortIDOf returns the NIC driver port id backing a Port interface, for
// collaborators (internal/vlanmgr) that need to drive filter operations
// against the parent port without reaching into portmgr's private Info
// block themselves.
func PortIDOf(iface *ifaceregistry.Iface) (int, bool) {
	if iface == nil || iface.Type != ifaceregistry.TypePort {
		return 0, false
	}
	info, ok := iface.Info.(*Info)
	if !ok {
		return 0, false
	}
	return info.PortID, true
}

// Delete looks the port up by name and removes it (resolves the
// "port.del double loop" open question by a single ByName lookup).
func (m *Manager) Delete(name string) error {
	iface, ok := m.registry.ByName(ifaceregistry.TypePort, name)
	if !ok {
		return ctlerr.NoDevice("port.del", "no such port: "+name)
	}
	return m.registry.Del(iface.ID)
}

// translateDriverErr maps a raw driver error to the nearest errno.
// ENOTSUP/ENOSYS are swallowed as best-effort successes by the caller
// via ctlerr.IsBestEffort, so they are returned unchanged here rather
// than translated away.
func translateDriverErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return ctlerr.FromDriver(op, errno)
	}
	return ctlerr.New(ctlerr.Driver, 0, op, err.Error())
}

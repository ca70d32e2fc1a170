// Package worker implements the datapath worker/queue assigner (C4): it
// keeps the set of worker threads and, for each NIC port, decides which
// worker owns which RX/TX queue.
package worker

import (
	"routerd/internal/ctlerr"
)

// MaxRxQueues is the hard cap on RX queues per port: one occupancy word
// tracks queue ids 0..63.
const MaxRxQueues = 64

// NoNUMAAffinity marks a port with no NUMA preference; the assigner may
// place it on any worker.
const NoNUMAAffinity = -1

// RxMap assigns RX queue Queue of port Port to a worker.
type RxMap struct {
	Port    int
	Queue   int
	Enabled bool
}

// TxMap assigns the single TX queue of port Port to a worker.
type TxMap struct {
	Port    int
	Queue   int
	Enabled bool
}

// Worker is one datapath thread, pinned to a NUMA node.
type Worker struct {
	ID       int
	NUMANode int
	RxQueues []RxMap
	TxQueues []TxMap
}

// Manager owns the set of workers in registration order.
type Manager struct {
	topology *Topology
	workers  []*Worker
	nextID   int
}

// NewManager builds a Manager against the host's detected NUMA topology.
func NewManager() *Manager {
	return &Manager{topology: DetectTopology()}
}

// Workers returns the current worker set in registration order. Callers
// must not mutate the returned slice.
func (m *Manager) Workers() []*Worker {
	return m.workers
}

// EnsureDefault guarantees at least one worker exists on numaNode (or
// any node, if numaNode is NoNUMAAffinity), creating one if necessary,
// and returns it.
func (m *Manager) EnsureDefault(numaNode int) *Worker {
	if w := m.defaultWorker(numaNode); w != nil {
		return w
	}
	node := numaNode
	if node == NoNUMAAffinity {
		node = 0
		if nodes := m.topology.Nodes(); len(nodes) > 0 {
			node = nodes[0]
		}
	}
	w := &Worker{ID: m.nextID, NUMANode: node}
	m.nextID++
	m.workers = append(m.workers, w)
	return w
}

// defaultWorker returns the first worker on numaNode, or any worker if
// numaNode is NoNUMAAffinity. Returns nil if no
// worker exists yet.
func (m *Manager) defaultWorker(numaNode int) *Worker {
	if len(m.workers) == 0 {
		return nil
	}
	if numaNode == NoNUMAAffinity {
		return m.workers[0]
	}
	for _, w := range m.workers {
		if w.NUMANode == numaNode {
			return w
		}
	}
	return m.workers[0]
}

// AssignPort applies the worker/queue assignment algorithm for port
// with n_rxq RX queues and the given NUMA affinity. It
// is idempotent: applying it twice for the same (port, n_rxq) yields
// the same set of maps.
func (m *Manager) AssignPort(port, numaNode, nRxq int) error {
	if nRxq > MaxRxQueues {
		return ctlerr.TooMany("worker.assign", "n_rxq exceeds 64-queue occupancy bitmap")
	}
	if len(m.workers) == 0 {
		return ctlerr.Invalid("worker.assign", "no worker exists; call EnsureDefault first")
	}

	// Step 1: exactly one TX queue per worker, in worker order.
	for i, w := range m.workers {
		filtered := w.TxQueues[:0]
		for _, tx := range w.TxQueues {
			if tx.Port != port {
				filtered = append(filtered, tx)
			}
		}
		w.TxQueues = filtered
		w.TxQueues = append(w.TxQueues, TxMap{Port: port, Queue: i, Enabled: false})
	}

	// Step 2: survivors are already-assigned RX queue ids < n_rxq; stale
	// ones (id >= n_rxq) are dropped.
	covered := make(map[int]bool, nRxq)
	for _, w := range m.workers {
		filtered := w.RxQueues[:0]
		for _, rx := range w.RxQueues {
			if rx.Port != port {
				filtered = append(filtered, rx)
				continue
			}
			if rx.Queue < nRxq {
				filtered = append(filtered, rx)
				covered[rx.Queue] = true
			}
		}
		w.RxQueues = filtered
	}

	// Step 3: default worker for any uncovered queue ids.
	def := m.defaultWorker(numaNode)
	if def == nil {
		return ctlerr.Invalid("worker.assign", "no default worker available")
	}

	// Step 4: assign every uncovered queue id to the default worker.
	for id := 0; id < nRxq; id++ {
		if !covered[id] {
			def.RxQueues = append(def.RxQueues, RxMap{Port: port, Queue: id, Enabled: false})
		}
	}
	return nil
}

// Unplug removes every RX/TX queue mapping for port from all workers,
// then destroys any worker left with an empty RX queue list. It
// reports whether the worker count dropped, which
// tells the port manager to reconfigure remaining ports' TX-queue set.
func (m *Manager) Unplug(port int) (shrank bool) {
	for _, w := range m.workers {
		w.RxQueues = removeByPort(w.RxQueues, port)
		w.TxQueues = removeTxByPort(w.TxQueues, port)
	}

	before := len(m.workers)
	kept := m.workers[:0]
	for _, w := range m.workers {
		if len(w.RxQueues) > 0 {
			kept = append(kept, w)
		}
	}
	m.workers = kept
	return len(m.workers) != before
}

func removeByPort(in []RxMap, port int) []RxMap {
	out := in[:0]
	for _, rx := range in {
		if rx.Port != port {
			out = append(out, rx)
		}
	}
	return out
}

func removeTxByPort(in []TxMap, port int) []TxMap {
	out := in[:0]
	for _, tx := range in {
		if tx.Port != port {
			out = append(out, tx)
		}
	}
	return out
}

// SetEnabled flips the enabled bit for a specific RX queue mapping,
// a separate step from assignment so the packet graph can plug a
// port in only once its queues are actually ready.
func (w *Worker) SetEnabled(port, queue int, enabled bool) bool {
	for i := range w.RxQueues {
		if w.RxQueues[i].Port == port && w.RxQueues[i].Queue == queue {
			w.RxQueues[i].Enabled = enabled
			return true
		}
	}
	return false
}

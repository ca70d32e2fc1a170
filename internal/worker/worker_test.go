package worker

import (
	"fmt"
	"testing"
)

func newManagerWithWorkers(n int) *Manager {
	m := &Manager{topology: &Topology{NodeOfCPU: map[int]int{}, CPUsOfNode: map[int][]int{0: {0}}}}
	for i := 0; i < n; i++ {
		m.workers = append(m.workers, &Worker{ID: m.nextID, NUMANode: 0})
		m.nextID++
	}
	return m
}

func TestAssignPortOneTxQueuePerWorker(t *testing.T) {
	m := newManagerWithWorkers(3)
	if err := m.AssignPort(1, NoNUMAAffinity, 2); err != nil {
		t.Fatalf("AssignPort: %v", err)
	}
	for i, w := range m.Workers() {
		if len(w.TxQueues) != 1 || w.TxQueues[0].Queue != i {
			t.Fatalf("worker %d: expected exactly TX queue %d, got %+v", i, i, w.TxQueues)
		}
	}
}

func TestAssignPortRXQueuesGoToDefaultWorker(t *testing.T) {
	m := newManagerWithWorkers(2)
	if err := m.AssignPort(5, NoNUMAAffinity, 3); err != nil {
		t.Fatalf("AssignPort: %v", err)
	}
	def := m.Workers()[0]
	if len(def.RxQueues) != 3 {
		t.Fatalf("expected 3 RX queues on default worker, got %d", len(def.RxQueues))
	}
	for _, other := range m.Workers()[1:] {
		if len(other.RxQueues) != 0 {
			t.Fatalf("expected no RX queues on non-default worker, got %+v", other.RxQueues)
		}
	}
}

func TestAssignPortIsIdempotent(t *testing.T) {
	m := newManagerWithWorkers(2)
	if err := m.AssignPort(1, NoNUMAAffinity, 4); err != nil {
		t.Fatalf("first AssignPort: %v", err)
	}
	first := snapshot(m)
	if err := m.AssignPort(1, NoNUMAAffinity, 4); err != nil {
		t.Fatalf("second AssignPort: %v", err)
	}
	second := snapshot(m)
	if first != second {
		t.Fatalf("assignment not idempotent:\nfirst:  %s\nsecond: %s", first, second)
	}
}

func TestAssignPortDropsStaleQueuesOnShrink(t *testing.T) {
	m := newManagerWithWorkers(1)
	if err := m.AssignPort(1, NoNUMAAffinity, 4); err != nil {
		t.Fatalf("AssignPort: %v", err)
	}
	if err := m.AssignPort(1, NoNUMAAffinity, 2); err != nil {
		t.Fatalf("shrink AssignPort: %v", err)
	}
	w := m.Workers()[0]
	if len(w.RxQueues) != 2 {
		t.Fatalf("expected stale RX queue ids dropped, got %+v", w.RxQueues)
	}
	for _, rx := range w.RxQueues {
		if rx.Queue >= 2 {
			t.Fatalf("stale queue id %d survived shrink", rx.Queue)
		}
	}
}

func TestAssignPortRejectsOverCap(t *testing.T) {
	m := newManagerWithWorkers(1)
	if err := m.AssignPort(1, NoNUMAAffinity, MaxRxQueues+1); err == nil {
		t.Fatal("expected error for n_rxq exceeding cap")
	}
}

func TestUnplugDestroysEmptyWorkers(t *testing.T) {
	m := newManagerWithWorkers(2)
	if err := m.AssignPort(1, NoNUMAAffinity, 2); err != nil {
		t.Fatalf("AssignPort: %v", err)
	}
	before := len(m.Workers())
	shrank := m.Unplug(1)
	if !shrank {
		t.Fatal("expected worker count to shrink after unplugging only port")
	}
	if len(m.Workers()) >= before {
		t.Fatalf("expected fewer workers after unplug, had %d now %d", before, len(m.Workers()))
	}
}

func snapshot(m *Manager) string {
	s := ""
	for _, w := range m.Workers() {
		s += "W"
		for _, rx := range w.RxQueues {
			s += fmt.Sprintf("r%d.%d.%v;", rx.Port, rx.Queue, rx.Enabled)
		}
		for _, tx := range w.TxQueues {
			s += fmt.Sprintf("t%d.%d.%v;", tx.Port, tx.Queue, tx.Enabled)
		}
	}
	return s
}

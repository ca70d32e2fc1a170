package worker

import (
	"bufio"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// Topology reports the set of NUMA nodes present on the host and which
// CPUs belong to each, for deciding which node a newly created worker
// should pin to. Detection falls back gracefully (single node 0 holding
// the CPUs of the affinity mask, or CPU 0 alone if the mask cannot be
// read) when /sys is unavailable: best-effort reads of pseudo-files,
// never a hard error.
type Topology struct {
	// NodeOfCPU maps a logical CPU id to its NUMA node.
	NodeOfCPU map[int]int
	// CPUsOfNode maps a NUMA node to its logical CPU ids, ascending.
	CPUsOfNode map[int][]int
}

const sysNodePath = "/sys/devices/system/node"

// DetectTopology reads /sys/devices/system/node/node*/cpulist. If the
// path is absent (containers, non-NUMA hosts, non-Linux test runs) it
// reports a single node 0 owning every CPU reported by the running
// goroutine's affinity mask.
func DetectTopology() *Topology {
	t := &Topology{NodeOfCPU: make(map[int]int), CPUsOfNode: make(map[int][]int)}

	entries, err := os.ReadDir(sysNodePath)
	if err != nil {
		t.fallback()
		return t
	}

	found := false
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, "node") {
			continue
		}
		node, err := strconv.Atoi(strings.TrimPrefix(name, "node"))
		if err != nil {
			continue
		}
		cpus, err := readCPUList(filepath.Join(sysNodePath, name, "cpulist"))
		if err != nil || len(cpus) == 0 {
			continue
		}
		found = true
		t.CPUsOfNode[node] = cpus
		for _, cpu := range cpus {
			t.NodeOfCPU[cpu] = node
		}
	}

	if !found {
		t.fallback()
	}
	return t
}

func (t *Topology) fallback() {
	var mask unix.CPUSet
	cpus := []int{0}
	if err := unix.SchedGetaffinity(0, &mask); err == nil {
		cpus = cpus[:0]
		for cpu := 0; cpu < unix.CPU_SETSIZE; cpu++ {
			if mask.IsSet(cpu) {
				cpus = append(cpus, cpu)
			}
		}
		if len(cpus) == 0 {
			cpus = []int{0}
		}
	}
	t.CPUsOfNode[0] = cpus
	for _, cpu := range cpus {
		t.NodeOfCPU[cpu] = 0
	}
}

// readCPUList parses a Linux cpulist ("0-3,8,10-11") into individual ids.
func readCPUList(path string) ([]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	var cpus []int
	for scanner.Scan() {
		for _, field := range strings.Split(strings.TrimSpace(scanner.Text()), ",") {
			if field == "" {
				continue
			}
			if dash := strings.IndexByte(field, '-'); dash >= 0 {
				lo, err1 := strconv.Atoi(field[:dash])
				hi, err2 := strconv.Atoi(field[dash+1:])
				if err1 != nil || err2 != nil {
					continue
				}
				for c := lo; c <= hi; c++ {
					cpus = append(cpus, c)
				}
			} else {
				c, err := strconv.Atoi(field)
				if err == nil {
					cpus = append(cpus, c)
				}
			}
		}
	}
	return cpus, scanner.Err()
}

// Nodes returns the sorted set of NUMA node ids present.
func (t *Topology) Nodes() []int {
	nodes := make([]int, 0, len(t.CPUsOfNode))
	for n := range t.CPUsOfNode {
		nodes = append(nodes, n)
	}
	for i := 1; i < len(nodes); i++ {
		for j := i; j > 0 && nodes[j-1] > nodes[j]; j-- {
			nodes[j-1], nodes[j] = nodes[j], nodes[j-1]
		}
	}
	return nodes
}

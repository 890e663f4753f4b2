package machine

import (
	"fmt"
	"runtime"

	"go.uber.org/zap"

	"github.com/parlang/parnet/pkg/cell"
	"github.com/parlang/parnet/pkg/heap"
	"github.com/parlang/parnet/pkg/prog"
)

// DefaultHeapSize is the total cell count used when the config leaves
// it zero.
const DefaultHeapSize = uint64(1) << 26

// Config tunes a Machine.
type Config struct {
	HeapSize uint64 // total cells, split evenly into worker bands
	Workers  int    // parallel workers; 0 means NumCPU
	Logger   *zap.Logger
}

// Machine is one runtime instance: a shared heap, a compiled program,
// and a fixed worker pool. It is not safe to drive one Machine from
// multiple goroutines; parallelism happens inside Normalize.
type Machine struct {
	heap    *heap.Heap
	prog    *prog.Program
	locks   *heap.LockTable
	seen    *heap.Bitset
	workers []*Worker
	log     *zap.Logger
}

// New builds a machine for the given program.
func New(p *prog.Program, cfg Config) *Machine {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.HeapSize == 0 {
		cfg.HeapSize = DefaultHeapSize
	}
	// The continuation stack packs a host into 31 bits next to the
	// descend marker, which caps addressable locations.
	if cfg.HeapSize > 1<<31 {
		panic(fmt.Sprintf("machine: heap size %d exceeds 2^31 cells", cfg.HeapSize))
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	h := heap.New(cfg.HeapSize, cfg.Workers)
	m := &Machine{
		heap:  h,
		prog:  p,
		locks: heap.NewLockTable(0),
		seen:  heap.NewBitset(h.Size()),
		log:   cfg.Logger,
	}
	// Disjoint label ranges keep fresh dups from colliding across
	// workers without any coordination.
	span := uint64(cell.MaxLabel+1) / uint64(cfg.Workers)
	for tid := 0; tid < cfg.Workers; tid++ {
		m.workers = append(m.workers, &Worker{
			m:    m,
			tid:  tid,
			area: h.Area(tid),
			lab:  uint64(tid) * span,
		})
	}
	return m
}

// Heap exposes the cell arena, mainly for readback and tests.
func (m *Machine) Heap() *heap.Heap { return m.heap }

// Program returns the loaded program.
func (m *Machine) Program() *prog.Program { return m.prog }

// Build returns a builder allocating in worker 0's band, for seeding
// graphs before normalization.
func (m *Machine) Build() prog.Builder { return m.workers[0] }

// Boot seeds the root cell: the entry function (id 0) applied to the
// given NUM arguments. Returns the root location.
func (m *Machine) Boot(args ...uint64) (uint32, error) {
	entry := m.prog.Fun(0)
	if entry == nil {
		return 0, fmt.Errorf("program has no entry function")
	}
	if uint32(len(args)) != entry.Arity {
		return 0, fmt.Errorf("%s takes %d argument(s), got %d", entry.Name, entry.Arity, len(args))
	}
	w := m.workers[0]
	argLoc := w.Alloc(uint32(len(args)))
	for i, a := range args {
		w.Link(argLoc+uint32(i), cell.Num(a))
	}
	root := w.Alloc(1)
	w.Link(root, cell.Fun(0, argLoc))
	return root, nil
}

// Reduce drives host to weak head normal form on worker 0, without
// parallelism.
func (m *Machine) Reduce(host uint32) cell.Ptr {
	return m.workers[0].Reduce(host, 1)
}

// Stats summarizes one Normalize call.
type Stats struct {
	Cost      uint64 `json:"cost"`       // total interaction count
	Size      uint64 `json:"size"`       // cells consumed across all bands
	Passes    int    `json:"passes"`     // traversals until the cost settled
	Workers   int    `json:"workers"`    // pool size
	LockSkips uint64 `json:"lock_skips"` // dup lock attempts lost to a peer
}

// Normalize drives the graph at root to normal form. The first pass
// runs with the full worker slice so independent children fork across
// the pool; follow-up passes run serially with a slice of one, forcing
// the operators the parallel pass left behind, until a whole pass fires
// no rewrite.
func (m *Machine) Normalize(root uint32) (cell.Ptr, Stats) {
	m.start()
	w0 := m.workers[0]
	term := m.heap.Get(root)
	slen := len(m.workers)
	passes := 0
	for {
		before := m.totalCost()
		m.seen.Reset()
		term = w0.normalGo(root, 0, slen)
		passes++
		m.log.Debug("normalization pass",
			zap.Int("pass", passes),
			zap.Int("slice", slen),
			zap.Uint64("cost", m.totalCost()),
			zap.Uint64("skips", m.totalSkips()))
		slen = 1
		if m.totalCost() == before {
			break
		}
	}
	m.stop()
	return term, m.stats(passes)
}

// Cost returns the interactions fired so far, summed over workers.
func (m *Machine) Cost() uint64 { return m.totalCost() }

// Snapshot captures the heap image, root and cost, e.g. after a run.
func (m *Machine) Snapshot(root uint32) *heap.Snapshot {
	used := make([]uint32, len(m.workers))
	for i, w := range m.workers {
		used[i] = w.area.Used()
	}
	return m.heap.Snapshot(used, root, m.totalCost())
}

func (m *Machine) totalCost() uint64 {
	var sum uint64
	for _, w := range m.workers {
		sum += w.cost
	}
	return sum
}

func (m *Machine) totalSkips() uint64 {
	var sum uint64
	for _, w := range m.workers {
		sum += w.skips
	}
	return sum
}

func (m *Machine) stats(passes int) Stats {
	var size uint64
	for _, w := range m.workers {
		size += uint64(w.area.Used())
	}
	return Stats{
		Cost:      m.totalCost(),
		Size:      size,
		Passes:    passes,
		Workers:   len(m.workers),
		LockSkips: m.totalSkips(),
	}
}

// start launches workers 1..N-1; worker 0 runs on the caller.
func (m *Machine) start() {
	for _, w := range m.workers[1:] {
		w.work = make(chan packet, 1)
		w.done = make(chan cell.Ptr, 1)
		go w.run()
	}
}

// stop sends every worker back out of its loop.
func (m *Machine) stop() {
	for _, w := range m.workers[1:] {
		close(w.work)
	}
}

// fork hands a normalization slice to a waiting worker.
func (m *Machine) fork(tid int, host uint32, sidx, slen int) {
	m.workers[tid].work <- packet{host: host, sidx: sidx, slen: slen}
}

// join consumes a forked worker's published result.
func (m *Machine) join(tid int) cell.Ptr {
	return <-m.workers[tid].done
}

package heap

import (
	"fmt"
	"sync/atomic"

	"github.com/parlang/parnet/pkg/cell"
)

// MaxArity is the largest node size the allocator manages. Free lists
// are indexed by block size up to this bound.
const MaxArity = 16

// Heap is the shared cell arena. It is logically partitioned into one
// band per worker: worker T bump-allocates only inside band T, but any
// worker may read or write any location. All cell access is atomic so
// cross-band links published by one worker are visible to the others.
type Heap struct {
	data     []uint64
	workers  int
	bandSize uint32
}

// New allocates a heap of size cells split evenly into workers bands.
func New(size uint64, workers int) *Heap {
	if workers <= 0 {
		workers = 1
	}
	band := size / uint64(workers)
	if band == 0 {
		panic(fmt.Sprintf("heap: size %d too small for %d workers", size, workers))
	}
	return &Heap{
		data:     make([]uint64, uint64(workers)*band),
		workers:  workers,
		bandSize: uint32(band),
	}
}

// Get reads the cell at loc.
func (h *Heap) Get(loc uint32) cell.Ptr {
	return cell.Ptr(atomic.LoadUint64(&h.data[loc]))
}

// Set writes the cell at loc.
func (h *Heap) Set(loc uint32, p cell.Ptr) {
	atomic.StoreUint64(&h.data[loc], uint64(p))
}

// Size returns the total number of cells.
func (h *Heap) Size() uint64 { return uint64(len(h.data)) }

// Workers returns the number of bands.
func (h *Heap) Workers() int { return h.workers }

// BandSize returns the number of cells in one band.
func (h *Heap) BandSize() uint32 { return h.bandSize }

// Area creates the allocator for worker tid's band.
func (h *Heap) Area(tid int) *Area {
	if tid < 0 || tid >= h.workers {
		panic(fmt.Sprintf("heap: no band for worker %d", tid))
	}
	return &Area{heap: h, tid: tid, base: uint32(tid) * h.bandSize}
}

package machine

import (
	"github.com/parlang/parnet/pkg/cell"
	"github.com/parlang/parnet/pkg/heap"
)

// packet is one unit of normalization work handed to a waiting worker:
// a host location plus the (sidx, slen) worker slice it may spend.
type packet struct {
	host uint32
	sidx int
	slen int
}

// Worker executes reductions. It owns one heap band for allocation but
// reads and links cells anywhere. Workers other than 0 sit in run until
// a packet arrives; worker 0 is driven by the calling goroutine.
type Worker struct {
	m    *Machine
	tid  int
	area *heap.Area

	cost  uint64 // interaction count; summed across workers after joins
	skips uint64 // dup lock attempts lost to a peer
	lab   uint64 // rolling 24-bit dup label, seeded from a per-worker range

	work chan packet
	done chan cell.Ptr
}

// Worker implements prog.Builder so compiled rule bodies can
// materialize right-hand sides directly through it.

// Alloc returns a fresh block in this worker's band.
func (w *Worker) Alloc(size uint32) uint32 { return w.area.Alloc(size) }

// Clear returns a block to this worker's free list.
func (w *Worker) Clear(loc, size uint32) { w.area.Clear(loc, size) }

// Ask reads the cell at loc.
func (w *Worker) Ask(loc uint32) cell.Ptr { return w.m.heap.Get(loc) }

// Arg reads field i of the node term points at.
func (w *Worker) Arg(term cell.Ptr, i uint32) cell.Ptr {
	return w.Ask(cell.Loc(term, i))
}

// Link stores a cell at loc. When the cell is a variable (VAR, DP0 or
// DP1) the binder's ARG slot is repaired to point back at loc, keeping
// the back-edge invariant.
func (w *Worker) Link(loc uint32, term cell.Ptr) cell.Ptr {
	w.m.heap.Set(loc, term)
	switch cell.Tag(term) {
	case cell.VAR, cell.DP0:
		w.m.heap.Set(cell.Loc(term, 0), cell.Arg(loc))
	case cell.DP1:
		w.m.heap.Set(cell.Loc(term, 1), cell.Arg(loc))
	}
	return term
}

// Subst replaces the variable behind a binder slot with val. An erased
// binder means the variable was never used: val becomes garbage and is
// collected instead.
func (w *Worker) Subst(bind, val cell.Ptr) {
	if cell.Tag(bind) != cell.ERA {
		w.Link(cell.Val(bind), val)
	} else {
		w.Collect(val)
	}
}

// Cpy hands out two references to v. Numbers are unboxed and copied
// directly; anything else goes behind a fresh DUP.
func (w *Worker) Cpy(v cell.Ptr) (cell.Ptr, cell.Ptr) {
	if cell.Tag(v) == cell.NUM {
		return v, v
	}
	dup := w.Alloc(3)
	lab := w.freshLabel()
	w.Link(dup+2, v)
	return cell.Dp0(lab, dup), cell.Dp1(lab, dup)
}

func (w *Worker) freshLabel() uint64 {
	w.lab = (w.lab + 1) & cell.MaxLabel
	return w.lab
}

// run is the loop of workers 1..N-1: take a packet, normalize the
// slice, publish the result, go back to waiting. Closing work stops it.
func (w *Worker) run() {
	for pkt := range w.work {
		w.done <- w.normalGo(pkt.host, pkt.sidx, pkt.slen)
	}
}

// normalGo normalizes the graph under host using the worker slice
// [sidx, sidx+slen). Locations already in weak head normal form this
// pass are skipped via the shared visited set. When a node has several
// children and the slice has room, the children are split across
// workers; the results are linked back into the argument slots.
func (w *Worker) normalGo(host uint32, sidx, slen int) cell.Ptr {
	term := w.Ask(host)
	if w.m.seen.Get(host) {
		return term
	}
	term = w.Reduce(host, slen)
	w.m.seen.Set(host)

	var locs [heap.MaxArity]uint32
	n := 0
	switch cell.Tag(term) {
	case cell.LAM:
		locs[0] = cell.Loc(term, 1)
		n = 1
	case cell.APP, cell.SUP:
		locs[0] = cell.Loc(term, 0)
		locs[1] = cell.Loc(term, 1)
		n = 2
	case cell.OP2:
		// With a single-worker slice Reduce already forced this node;
		// with a wider slice it was left as a fork point.
		if slen > 1 {
			locs[0] = cell.Loc(term, 0)
			locs[1] = cell.Loc(term, 1)
			n = 2
		}
	case cell.DP0, cell.DP1:
		locs[0] = cell.Loc(term, 2)
		n = 1
	case cell.CTR, cell.FUN:
		arity := int(w.m.prog.Arity(cell.Ext(term)))
		for i := 0; i < arity; i++ {
			locs[i] = cell.Loc(term, uint32(i))
		}
		n = arity
	}

	if n >= 2 && slen >= n {
		div := slen / n
		for i := 1; i < n; i++ {
			w.m.fork(sidx+i*div, locs[i], sidx+i*div, div)
		}
		w.Link(locs[0], w.normalGo(locs[0], sidx, div))
		for i := 1; i < n; i++ {
			w.Link(locs[i], w.m.join(sidx+i*div))
		}
	} else {
		for i := 0; i < n; i++ {
			w.Link(locs[i], w.normalGo(locs[i], sidx, slen))
		}
	}
	return term
}

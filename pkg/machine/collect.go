package machine

import "github.com/parlang/parnet/pkg/cell"

// Collect frees a subterm that a rewrite dropped. Variables mark their
// binder slot erased; the DUP node itself is reclaimed by the next
// interaction that consumes the surviving side. NUM and ERA have no
// heap body.
func (w *Worker) Collect(term cell.Ptr) {
	switch cell.Tag(term) {
	case cell.DP0:
		w.Link(cell.Loc(term, 0), cell.Era())
	case cell.DP1:
		w.Link(cell.Loc(term, 1), cell.Era())
	case cell.VAR:
		w.Link(cell.Loc(term, 0), cell.Era())
	case cell.LAM:
		if bind := w.Arg(term, 0); cell.Tag(bind) != cell.ERA {
			w.Link(cell.Val(bind), cell.Era())
		}
		w.Collect(w.Arg(term, 1))
		w.Clear(cell.Loc(term, 0), 2)
	case cell.APP, cell.SUP, cell.OP2:
		w.Collect(w.Arg(term, 0))
		w.Collect(w.Arg(term, 1))
		w.Clear(cell.Loc(term, 0), 2)
	case cell.CTR, cell.FUN:
		arity := w.m.prog.Arity(cell.Ext(term))
		for i := uint32(0); i < arity; i++ {
			w.Collect(w.Arg(term, i))
		}
		w.Clear(cell.Loc(term, 0), arity)
	}
}

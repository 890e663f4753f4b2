package machine

import (
	"github.com/parlang/parnet/pkg/cell"
	"github.com/parlang/parnet/pkg/heap"
)

// opMark flags a continuation entry holding a location to descend into
// next, as opposed to a host to re-examine for a redex.
const opMark = uint64(1) << 31

// Reduce drives the term at root to weak head normal form and returns
// the cell left there. The loop alternates two phases over a host
// location: descend (init) walks toward a redex pushing return hosts,
// reduce fires the interaction rule for (tag, argument tag).
//
// slen is the caller's parallel budget. With more than one worker in
// the slice and an empty continuation stack, an OP2 at the head is left
// unreduced so the normalizer can fork its operands instead.
func (w *Worker) Reduce(root uint32, slen int) cell.Ptr {
	var stack heap.Stack
	host := root
	init := true

	for {
		term := w.Ask(host)

		if init {
			switch cell.Tag(term) {
			case cell.APP:
				stack.Push(uint64(host))
				host = cell.Loc(term, 0)
				continue

			case cell.DP0, cell.DP1:
				dup := cell.Val(term)
				if !w.m.locks.TryLock(dup) {
					// A peer owns this dup. Don't block: the node stays
					// as-is and a later pass picks it up.
					w.skips++
				} else if w.Ask(host) != term {
					// Rewritten between the read and the lock; retry.
					w.m.locks.Unlock(dup)
					continue
				} else {
					stack.Push(uint64(host))
					host = cell.Loc(term, 2)
					continue
				}

			case cell.OP2:
				if slen == 1 || stack.Len() > 0 {
					stack.Push(uint64(host))
					stack.Push(uint64(cell.Loc(term, 0)) | opMark)
					host = cell.Loc(term, 1)
					continue
				}

			case cell.FUN:
				if fn := w.m.prog.Fun(cell.Ext(term)); fn != nil {
					if len(fn.Strict) > 0 {
						stack.Push(uint64(host))
						for i := len(fn.Strict) - 1; i >= 1; i-- {
							stack.Push(uint64(cell.Loc(term, uint32(fn.Strict[i]))) | opMark)
						}
						host = cell.Loc(term, uint32(fn.Strict[0]))
						continue
					}
					init = false
					continue
				}
			}
		} else {
			switch cell.Tag(term) {
			case cell.APP:
				arg0 := w.Arg(term, 0)
				switch cell.Tag(arg0) {
				case cell.LAM:
					w.appLam(host, term, arg0)
					init = true
					continue
				case cell.SUP:
					w.appSup(host, term, arg0)
				}

			case cell.DP0, cell.DP1:
				// The lock was taken on the way down.
				dup := cell.Val(term)
				arg0 := w.Ask(cell.Loc(term, 2))
				rewritten := true
				switch cell.Tag(arg0) {
				case cell.LAM:
					w.dupLam(host, term, arg0)
				case cell.SUP:
					w.dupSup(host, term, arg0)
				case cell.NUM:
					w.dupNum(host, term, arg0)
				case cell.CTR:
					w.dupCtr(host, term, arg0)
				case cell.ERA:
					w.dupEra(host, term)
				default:
					rewritten = false
				}
				w.m.locks.Unlock(dup)
				if rewritten {
					init = true
					continue
				}

			case cell.OP2:
				arg0 := w.Arg(term, 0)
				arg1 := w.Arg(term, 1)
				switch {
				case cell.Tag(arg0) == cell.NUM && cell.Tag(arg1) == cell.NUM:
					w.op2Num(host, term, arg0, arg1)
				case cell.Tag(arg0) == cell.SUP:
					w.op2SupL(host, term, arg0, arg1)
				case cell.Tag(arg1) == cell.SUP:
					w.op2SupR(host, term, arg0, arg1)
				}

			case cell.FUN:
				if w.funDispatch(host, term) {
					init = true
					continue
				}
			}
		}

		// Weak head normal form for this host: return to the caller.
		item, ok := stack.Pop()
		if !ok {
			break
		}
		init = item&opMark != 0
		host = uint32(item &^ opMark)
	}

	return w.Ask(root)
}

// funDispatch handles a FUN head: superposed strict arguments commute
// the call first; otherwise the rule table is tried in order. Reports
// whether a rule rewrote the call in place (the caller then re-descends).
func (w *Worker) funDispatch(host uint32, term cell.Ptr) bool {
	fn := w.m.prog.Fun(cell.Ext(term))
	if fn == nil {
		return false
	}
	for _, i := range fn.Strict {
		if argi := w.Arg(term, uint32(i)); cell.Tag(argi) == cell.SUP {
			w.funSup(host, term, argi, uint32(i), fn.Arity)
			return false
		}
	}
	for r := range fn.Rules {
		rule := &fn.Rules[r]
		if rule.Matches(w, term) {
			w.cost++
			rule.Body(w, host, term)
			return true
		}
	}
	return false
}

package machine

import "github.com/parlang/parnet/pkg/cell"

// The interaction rules. Each rewrites the node at host in place,
// reusing the consumed nodes where the shape allows and freeing the
// rest. Read-before-overwrite ordering is load-bearing throughout:
// several rules reuse a node they are still reading fields from.

// appLam: (λx.B a) — substitute the binder with a, the app with B.
func (w *Worker) appLam(host uint32, term, arg0 cell.Ptr) {
	w.cost++
	w.Subst(w.Arg(arg0, 0), w.Arg(term, 1))
	// Body is read after the subst: for λx.x the binder's use site is
	// the body slot itself.
	w.Link(host, w.Arg(arg0, 1))
	w.Clear(cell.Loc(term, 0), 2)
	w.Clear(cell.Loc(arg0, 0), 2)
}

// appSup: ({a b} c) — duplicate c with the sup's label and distribute
// the copies into two applications. The app node is reused as the first
// application, the sup node as the second.
func (w *Worker) appSup(host uint32, term, arg0 cell.Ptr) {
	w.cost++
	lab := cell.Ext(arg0)
	app0 := cell.Val(term)
	app1 := cell.Val(arg0)
	let0 := w.Alloc(3)
	par0 := w.Alloc(2)
	w.Link(let0+2, w.Arg(term, 1))
	w.Link(app0+1, cell.Dp0(lab, let0))
	w.Link(app0+0, w.Arg(arg0, 0))
	w.Link(app1+0, w.Arg(arg0, 1))
	w.Link(app1+1, cell.Dp1(lab, let0))
	w.Link(par0+0, cell.App(app0))
	w.Link(par0+1, cell.App(app1))
	w.Link(host, cell.Sup(lab, par0))
}

// dupLam: dup r s = λx.F — make two lambdas whose bodies share a dup of
// F and whose variables rejoin as a superposition substituted for x.
// The dup node becomes the body dup, the lam node the variable sup.
func (w *Worker) dupLam(host uint32, term, arg0 cell.Ptr) {
	w.cost++
	lab := cell.Ext(term)
	let0 := cell.Val(term)
	par0 := cell.Val(arg0)
	lam0 := w.Alloc(2)
	lam1 := w.Alloc(2)
	w.Link(let0+2, w.Arg(arg0, 1))
	w.Link(par0+1, cell.Var(lam1))
	bind := w.Arg(arg0, 0)
	w.Link(par0+0, cell.Var(lam0))
	w.Subst(bind, cell.Sup(lab, par0))
	bind0 := w.Arg(term, 0)
	w.Link(lam0+1, cell.Dp0(lab, let0))
	w.Subst(bind0, cell.Lam(lam0))
	bind1 := w.Arg(term, 1)
	w.Link(lam1+1, cell.Dp1(lab, let0))
	w.Subst(bind1, cell.Lam(lam1))
	if cell.Tag(term) == cell.DP0 {
		w.Link(host, cell.Lam(lam0))
	} else {
		w.Link(host, cell.Lam(lam1))
	}
}

// dupSup: dup r s = {a b}. Matching labels annihilate: r and s take the
// two branches. Distinct labels commute: the dup sinks under both
// branches and the sup rises over both outputs.
func (w *Worker) dupSup(host uint32, term, arg0 cell.Ptr) {
	w.cost++
	if cell.Ext(term) == cell.Ext(arg0) {
		w.Subst(w.Arg(term, 0), w.Arg(arg0, 0))
		w.Subst(w.Arg(term, 1), w.Arg(arg0, 1))
		var side uint32
		if cell.Tag(term) == cell.DP1 {
			side = 1
		}
		w.Link(host, w.Arg(arg0, side))
		w.Clear(cell.Loc(term, 0), 3)
		w.Clear(cell.Loc(arg0, 0), 2)
		return
	}
	dupLab := cell.Ext(term)
	supLab := cell.Ext(arg0)
	par0 := w.Alloc(2)
	let0 := cell.Val(term)
	par1 := cell.Val(arg0)
	let1 := w.Alloc(3)
	w.Link(let0+2, w.Arg(arg0, 0))
	w.Link(let1+2, w.Arg(arg0, 1))
	bind0 := w.Arg(term, 0)
	bind1 := w.Arg(term, 1)
	w.Link(par1+0, cell.Dp1(dupLab, let0))
	w.Link(par1+1, cell.Dp1(dupLab, let1))
	w.Link(par0+0, cell.Dp0(dupLab, let0))
	w.Link(par0+1, cell.Dp0(dupLab, let1))
	w.Subst(bind0, cell.Sup(supLab, par0))
	w.Subst(bind1, cell.Sup(supLab, par1))
	if cell.Tag(term) == cell.DP0 {
		w.Link(host, cell.Sup(supLab, par0))
	} else {
		w.Link(host, cell.Sup(supLab, par1))
	}
}

// dupNum: numbers are unboxed; both outputs get the value.
func (w *Worker) dupNum(host uint32, term, arg0 cell.Ptr) {
	w.cost++
	w.Subst(w.Arg(term, 0), arg0)
	w.Subst(w.Arg(term, 1), arg0)
	w.Link(host, arg0)
	w.Clear(cell.Loc(term, 0), 3)
}

// dupCtr: dup r s = (K a0 … an) — one fresh dup per argument, with the
// original dup node reused for the last one and the ctr node reused as
// the first copy.
func (w *Worker) dupCtr(host uint32, term, arg0 cell.Ptr) {
	w.cost++
	fid := cell.Ext(arg0)
	arity := uint32(w.m.prog.Arity(fid))
	lab := cell.Ext(term)
	if arity == 0 {
		w.Subst(w.Arg(term, 0), cell.Ctr(fid, 0))
		w.Subst(w.Arg(term, 1), cell.Ctr(fid, 0))
		w.Clear(cell.Loc(term, 0), 3)
		w.Link(host, cell.Ctr(fid, 0))
		return
	}
	ctr0 := cell.Val(arg0)
	ctr1 := w.Alloc(arity)
	for i := uint32(0); i+1 < arity; i++ {
		leti := w.Alloc(3)
		argi := w.Arg(arg0, i)
		w.Link(ctr0+i, cell.Dp0(lab, leti))
		w.Link(ctr1+i, cell.Dp1(lab, leti))
		w.Link(leti+2, argi)
	}
	leti := cell.Val(term)
	w.Link(leti+2, w.Arg(arg0, arity-1))
	bind0 := w.Arg(term, 0)
	w.Link(ctr0+arity-1, cell.Dp0(lab, leti))
	w.Subst(bind0, cell.Ctr(fid, ctr0))
	bind1 := w.Arg(term, 1)
	w.Link(ctr1+arity-1, cell.Dp1(lab, leti))
	w.Subst(bind1, cell.Ctr(fid, ctr1))
	if cell.Tag(term) == cell.DP0 {
		w.Link(host, cell.Ctr(fid, ctr0))
	} else {
		w.Link(host, cell.Ctr(fid, ctr1))
	}
}

// dupEra: both sides of the dup are erased.
func (w *Worker) dupEra(host uint32, term cell.Ptr) {
	w.cost++
	w.Subst(w.Arg(term, 0), cell.Era())
	w.Subst(w.Arg(term, 1), cell.Era())
	w.Link(host, cell.Era())
	w.Clear(cell.Loc(term, 0), 3)
}

// op2Num: both operands are numbers; compute and free the node.
func (w *Worker) op2Num(host uint32, term, arg0, arg1 cell.Ptr) {
	w.cost++
	a := cell.NumVal(arg0)
	b := cell.NumVal(arg1)
	w.Link(host, cell.Num(opEval(cell.Ext(term), a, b)))
	w.Clear(cell.Loc(term, 0), 2)
}

// op2SupL: ({a b} ⊕ c) — duplicate c across the two branches.
func (w *Worker) op2SupL(host uint32, term, arg0, arg1 cell.Ptr) {
	w.cost++
	lab := cell.Ext(arg0)
	op := cell.Ext(term)
	op20 := cell.Val(term)
	op21 := cell.Val(arg0)
	let0 := w.Alloc(3)
	par0 := w.Alloc(2)
	w.Link(let0+2, arg1)
	w.Link(op20+1, cell.Dp0(lab, let0))
	w.Link(op20+0, w.Arg(arg0, 0))
	w.Link(op21+0, w.Arg(arg0, 1))
	w.Link(op21+1, cell.Dp1(lab, let0))
	w.Link(par0+0, cell.Op2(op, op20))
	w.Link(par0+1, cell.Op2(op, op21))
	w.Link(host, cell.Sup(lab, par0))
}

// op2SupR: (a ⊕ {b c}) — symmetric right commutation.
func (w *Worker) op2SupR(host uint32, term, arg0, arg1 cell.Ptr) {
	w.cost++
	lab := cell.Ext(arg1)
	op := cell.Ext(term)
	op20 := cell.Val(term)
	op21 := cell.Val(arg1)
	let0 := w.Alloc(3)
	par0 := w.Alloc(2)
	w.Link(let0+2, arg0)
	w.Link(op20+0, cell.Dp0(lab, let0))
	w.Link(op20+1, w.Arg(arg1, 0))
	w.Link(op21+1, w.Arg(arg1, 1))
	w.Link(op21+0, cell.Dp1(lab, let0))
	w.Link(par0+0, cell.Op2(op, op20))
	w.Link(par0+1, cell.Op2(op, op21))
	w.Link(host, cell.Sup(lab, par0))
}

// funSup: (F … {a b} …) — commute the call through the superposed
// argument, duplicating every other argument. The call node is reused
// for the first branch, the sup node for the result.
func (w *Worker) funSup(host uint32, term, argn cell.Ptr, n, arity uint32) {
	w.cost++
	fid := cell.Ext(term)
	lab := cell.Ext(argn)
	fun0 := cell.Val(term)
	fun1 := w.Alloc(arity)
	par0 := cell.Val(argn)
	for i := uint32(0); i < arity; i++ {
		if i != n {
			leti := w.Alloc(3)
			argi := w.Arg(term, i)
			w.Link(fun0+i, cell.Dp0(lab, leti))
			w.Link(fun1+i, cell.Dp1(lab, leti))
			w.Link(leti+2, argi)
		} else {
			w.Link(fun0+i, w.Arg(argn, 0))
			w.Link(fun1+i, w.Arg(argn, 1))
		}
	}
	w.Link(par0+0, cell.Fun(fid, fun0))
	w.Link(par0+1, cell.Fun(fid, fun1))
	w.Link(host, cell.Sup(lab, par0))
}

// opEval computes one OP2 over 60-bit operands. Arithmetic and bitwise
// results are truncated to 60 bits; comparisons yield 0 or 1. Division
// and modulo by zero yield 0.
func opEval(op, a, b uint64) uint64 {
	var c uint64
	switch op {
	case cell.OpAdd:
		c = a + b
	case cell.OpSub:
		c = a - b
	case cell.OpMul:
		c = a * b
	case cell.OpDiv:
		if b != 0 {
			c = a / b
		}
	case cell.OpMod:
		if b != 0 {
			c = a % b
		}
	case cell.OpAnd:
		c = a & b
	case cell.OpOr:
		c = a | b
	case cell.OpXor:
		c = a ^ b
	case cell.OpShl:
		c = a << b
	case cell.OpShr:
		c = a >> b
	case cell.OpLtn:
		c = b2u(a < b)
	case cell.OpLte:
		c = b2u(a <= b)
	case cell.OpEql:
		c = b2u(a == b)
	case cell.OpGte:
		c = b2u(a >= b)
	case cell.OpGtn:
		c = b2u(a > b)
	case cell.OpNeq:
		c = b2u(a != b)
	}
	return c & cell.NumMask
}

func b2u(v bool) uint64 {
	if v {
		return 1
	}
	return 0
}

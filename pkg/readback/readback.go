// Package readback turns a normal-form graph back into a textual term.
//
// Duplication variables are transparent: reading through a DP0 or DP1
// pushes a direction for that dup's label, and any superposition with
// the same label picks the side the direction dictates. Superpositions
// with no enclosing dup print both branches.
package readback

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/parlang/parnet/pkg/cell"
	"github.com/parlang/parnet/pkg/heap"
	"github.com/parlang/parnet/pkg/prog"
)

// DefaultLimit bounds the output of Show when the caller passes 0.
const DefaultLimit = 1 << 16

type reader struct {
	h     *heap.Heap
	p     *prog.Program
	names map[uint32]string // lam location → variable name
	count int
	dirs  map[uint64]*heap.Stack // label → direction stack
	sb    strings.Builder
	limit int
	full  bool
}

// Show renders the graph rooted at host. Output beyond limit bytes is
// truncated; limit 0 selects DefaultLimit.
func Show(h *heap.Heap, p *prog.Program, host uint32, limit int) string {
	if limit <= 0 {
		limit = DefaultLimit
	}
	r := &reader{
		h:     h,
		p:     p,
		names: make(map[uint32]string),
		dirs:  make(map[uint64]*heap.Stack),
		limit: limit,
	}
	r.walk(h.Get(host))
	return r.sb.String()
}

func (r *reader) write(s string) {
	if r.full {
		return
	}
	if r.sb.Len()+len(s) > r.limit {
		s = s[:r.limit-r.sb.Len()]
		r.full = true
	}
	r.sb.WriteString(s)
}

func (r *reader) walk(term cell.Ptr) {
	if r.full {
		return
	}
	switch cell.Tag(term) {
	case cell.LAM:
		name := "_"
		if cell.Tag(r.h.Get(cell.Loc(term, 0))) != cell.ERA {
			name = "x" + strconv.Itoa(r.count)
			r.count++
			r.names[cell.Val(term)] = name
		}
		r.write("λ" + name + ".")
		r.walk(r.h.Get(cell.Loc(term, 1)))

	case cell.VAR:
		if name, ok := r.names[cell.Val(term)]; ok {
			r.write(name)
		} else {
			r.write("?")
		}

	case cell.APP:
		r.write("(")
		r.walk(r.h.Get(cell.Loc(term, 0)))
		r.write(" ")
		r.walk(r.h.Get(cell.Loc(term, 1)))
		r.write(")")

	case cell.DP0, cell.DP1:
		lab := cell.Ext(term)
		st := r.dirs[lab]
		if st == nil {
			st = &heap.Stack{}
			r.dirs[lab] = st
		}
		var side uint64
		if cell.Tag(term) == cell.DP1 {
			side = 1
		}
		st.Push(side)
		r.walk(r.h.Get(cell.Loc(term, 2)))
		st.Pop()

	case cell.SUP:
		lab := cell.Ext(term)
		if st := r.dirs[lab]; st != nil && st.Len() > 0 {
			side, _ := st.Pop()
			r.walk(r.h.Get(cell.Loc(term, uint32(side))))
			st.Push(side)
		} else {
			r.write("{")
			r.walk(r.h.Get(cell.Loc(term, 0)))
			r.write(" ")
			r.walk(r.h.Get(cell.Loc(term, 1)))
			r.write("}")
		}

	case cell.CTR, cell.FUN:
		id := cell.Ext(term)
		name := r.p.Name(id)
		if name == "" {
			name = fmt.Sprintf("$%d", id)
		}
		r.write("(" + name)
		arity := r.p.Arity(id)
		for i := uint32(0); i < arity; i++ {
			r.write(" ")
			r.walk(r.h.Get(cell.Loc(term, i)))
		}
		r.write(")")

	case cell.OP2:
		r.write("(")
		r.walk(r.h.Get(cell.Loc(term, 0)))
		r.write(" " + cell.OpName(cell.Ext(term)) + " ")
		r.walk(r.h.Get(cell.Loc(term, 1)))
		r.write(")")

	case cell.NUM:
		r.write(strconv.FormatUint(cell.NumVal(term), 10))

	case cell.ERA:
		r.write("*")

	default:
		r.write("<" + cell.TagName(cell.Tag(term)) + ">")
	}
}

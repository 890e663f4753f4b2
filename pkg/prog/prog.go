package prog

import "github.com/parlang/parnet/pkg/cell"

// Program is the compiled form the runtime consumes: one Fun entry per
// function or constructor id. By convention id 0 is the entry point the
// boot sequence applies to its NUM arguments.
//
// Constructor ids carry only a name and an arity; function ids add the
// strict-argument set driving pre-match reduction and an ordered rule
// table. The rule bodies are closures standing in for generated code:
// they materialize the right-hand-side graph through a Builder.
type Program struct {
	Funs []Fun
}

// Fun describes one function or constructor id.
type Fun struct {
	Name   string
	Arity  uint32
	Strict []int  // argument indexes forced to WHNF before matching
	Rules  []Rule // tried in order; first match fires
}

// Rule pairs an argument pattern row with a body that rewrites the
// matched call in place.
type Rule struct {
	Pats []Pattern
	Body Body
}

// PatKind selects how one argument is tested.
type PatKind uint8

const (
	// PatAny matches anything, including unreduced terms.
	PatAny PatKind = iota
	// PatCtr matches a constructor with a specific id.
	PatCtr
	// PatLit matches a NUM with a specific payload.
	PatLit
	// PatWhnf matches any constructor or number. Used by fallback rules
	// that must not fire on free variables or stuck terms.
	PatWhnf
)

// Pattern tests one argument cell.
type Pattern struct {
	Kind PatKind
	ID   uint64 // constructor id, for PatCtr
	Lit  uint64 // literal payload, for PatLit
}

// Builder is the allocation and linking surface a rule body runs
// against. The runtime's worker implements it; bodies stay decoupled
// from the reduction engine.
type Builder interface {
	// Alloc returns a fresh block of size cells in the worker's band.
	Alloc(size uint32) uint32
	// Link stores a cell and repairs the binder back-edge for variables.
	Link(loc uint32, term cell.Ptr) cell.Ptr
	// Clear returns a block to the worker's free list.
	Clear(loc, size uint32)
	// Ask reads the cell at loc.
	Ask(loc uint32) cell.Ptr
	// Arg reads field i of the node term points at.
	Arg(term cell.Ptr, i uint32) cell.Ptr
	// Subst replaces the variable behind a binder slot with val, or
	// collects val when the slot is erased.
	Subst(bind, val cell.Ptr)
	// Collect frees a subterm dropped by a rewrite.
	Collect(term cell.Ptr)
	// Cpy returns two handles on v: the value itself twice when it is a
	// NUM, otherwise the two sides of a fresh DUP of v.
	Cpy(v cell.Ptr) (cell.Ptr, cell.Ptr)
}

// Body materializes a rule's right-hand side over the call at host.
type Body func(b Builder, host uint32, term cell.Ptr)

// Arity returns the arity registered for id, or 0 for unknown ids.
func (p *Program) Arity(id uint64) uint32 {
	if id < uint64(len(p.Funs)) {
		return p.Funs[id].Arity
	}
	return 0
}

// Name returns the display name for id, or "" for unknown ids.
func (p *Program) Name(id uint64) string {
	if id < uint64(len(p.Funs)) {
		return p.Funs[id].Name
	}
	return ""
}

// Fun returns the entry for id, or nil for unknown ids.
func (p *Program) Fun(id uint64) *Fun {
	if id < uint64(len(p.Funs)) {
		return &p.Funs[id]
	}
	return nil
}

// Matches reports whether the rule's pattern row accepts the argument
// cells of the call term, read through b.
func (r *Rule) Matches(b Builder, term cell.Ptr) bool {
	for i := range r.Pats {
		arg := b.Arg(term, uint32(i))
		switch r.Pats[i].Kind {
		case PatAny:
		case PatCtr:
			if cell.Tag(arg) != cell.CTR || cell.Ext(arg) != r.Pats[i].ID {
				return false
			}
		case PatLit:
			if cell.Tag(arg) != cell.NUM || cell.NumVal(arg) != r.Pats[i].Lit {
				return false
			}
		case PatWhnf:
			if t := cell.Tag(arg); t != cell.CTR && t != cell.NUM {
				return false
			}
		}
	}
	return true
}

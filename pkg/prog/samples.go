package prog

import (
	"fmt"
	"sort"

	"github.com/parlang/parnet/pkg/cell"
)

// Built-in programs. The runtime normally consumes tables emitted by
// the compiler; these hand-compiled ones give the engine and the CLI
// something to run without it.

// GenTree program ids.
const (
	GenMain uint64 = iota
	GenTree
	GenSum
	GenLeaf
	GenBoth
)

// GenTreeProgram builds a perfectly balanced binary tree and folds it:
//
//	(Main n)      = (Sum (GenTree n (Leaf 1)))
//	(GenTree 0 x) = x
//	(GenTree 1 x) = x
//	(GenTree n x) = (Both (GenTree (- n 1) x) (GenTree (- n 1) x))
//	(Sum (Leaf x))   = x
//	(Sum (Both a b)) = (+ (Sum a) (Sum b))
func GenTreeProgram() *Program {
	return &Program{Funs: []Fun{
		GenMain: {
			Name:  "Main",
			Arity: 1,
			Rules: []Rule{{
				Pats: []Pattern{{Kind: PatAny}},
				Body: func(b Builder, host uint32, term cell.Ptr) {
					n := b.Arg(term, 0)
					leaf := b.Alloc(1)
					b.Link(leaf+0, cell.Num(1))
					gen := b.Alloc(2)
					b.Link(gen+0, n)
					b.Link(gen+1, cell.Ctr(GenLeaf, leaf))
					sum := b.Alloc(1)
					b.Link(sum+0, cell.Fun(GenTree, gen))
					b.Link(host, cell.Fun(GenSum, sum))
					b.Clear(cell.Loc(term, 0), 1)
				},
			}},
		},
		GenTree: {
			Name:   "GenTree",
			Arity:  2,
			Strict: []int{0},
			Rules: []Rule{
				{
					Pats: []Pattern{{Kind: PatLit, Lit: 0}, {Kind: PatAny}},
					Body: genTreeDone,
				},
				{
					Pats: []Pattern{{Kind: PatLit, Lit: 1}, {Kind: PatAny}},
					Body: genTreeDone,
				},
				{
					Pats: []Pattern{{Kind: PatWhnf}, {Kind: PatAny}},
					Body: func(b Builder, host uint32, term cell.Ptr) {
						n0, n1 := b.Cpy(b.Arg(term, 0))
						x0, x1 := b.Cpy(b.Arg(term, 1))
						op0 := b.Alloc(2)
						b.Link(op0+0, n0)
						b.Link(op0+1, cell.Num(1))
						op1 := b.Alloc(2)
						b.Link(op1+0, n1)
						b.Link(op1+1, cell.Num(1))
						g0 := b.Alloc(2)
						b.Link(g0+0, cell.Op2(cell.OpSub, op0))
						b.Link(g0+1, x0)
						g1 := b.Alloc(2)
						b.Link(g1+0, cell.Op2(cell.OpSub, op1))
						b.Link(g1+1, x1)
						both := b.Alloc(2)
						b.Link(both+0, cell.Fun(GenTree, g0))
						b.Link(both+1, cell.Fun(GenTree, g1))
						b.Link(host, cell.Ctr(GenBoth, both))
						b.Clear(cell.Loc(term, 0), 2)
					},
				},
			},
		},
		GenSum: {
			Name:   "Sum",
			Arity:  1,
			Strict: []int{0},
			Rules: []Rule{
				{
					Pats: []Pattern{{Kind: PatCtr, ID: GenLeaf}},
					Body: func(b Builder, host uint32, term cell.Ptr) {
						leaf := b.Arg(term, 0)
						b.Link(host, b.Arg(leaf, 0))
						b.Clear(cell.Loc(leaf, 0), 1)
						b.Clear(cell.Loc(term, 0), 1)
					},
				},
				{
					Pats: []Pattern{{Kind: PatCtr, ID: GenBoth}},
					Body: func(b Builder, host uint32, term cell.Ptr) {
						both := b.Arg(term, 0)
						s0 := b.Alloc(1)
						b.Link(s0+0, b.Arg(both, 0))
						s1 := b.Alloc(1)
						b.Link(s1+0, b.Arg(both, 1))
						op := b.Alloc(2)
						b.Link(op+0, cell.Fun(GenSum, s0))
						b.Link(op+1, cell.Fun(GenSum, s1))
						b.Link(host, cell.Op2(cell.OpAdd, op))
						b.Clear(cell.Loc(both, 0), 2)
						b.Clear(cell.Loc(term, 0), 1)
					},
				},
			},
		},
		GenLeaf: {Name: "Leaf", Arity: 1},
		GenBoth: {Name: "Both", Arity: 2},
	}}
}

// genTreeDone is the 0 and 1 base case: both return the second argument
// unchanged.
func genTreeDone(b Builder, host uint32, term cell.Ptr) {
	b.Link(host, b.Arg(term, 1))
	b.Clear(cell.Loc(term, 0), 2)
}

// Fib program ids.
const (
	FibMain uint64 = iota
	FibFib
)

// FibProgram is the naive doubly-recursive Fibonacci:
//
//	(Main n) = (Fib n)
//	(Fib 0)  = 0
//	(Fib 1)  = 1
//	(Fib n)  = (+ (Fib (- n 1)) (Fib (- n 2)))
func FibProgram() *Program {
	return &Program{Funs: []Fun{
		FibMain: {
			Name:  "Main",
			Arity: 1,
			Rules: []Rule{{
				Pats: []Pattern{{Kind: PatAny}},
				Body: func(b Builder, host uint32, term cell.Ptr) {
					f := b.Alloc(1)
					b.Link(f+0, b.Arg(term, 0))
					b.Link(host, cell.Fun(FibFib, f))
					b.Clear(cell.Loc(term, 0), 1)
				},
			}},
		},
		FibFib: {
			Name:   "Fib",
			Arity:  1,
			Strict: []int{0},
			Rules: []Rule{
				{
					Pats: []Pattern{{Kind: PatLit, Lit: 0}},
					Body: func(b Builder, host uint32, term cell.Ptr) {
						b.Link(host, cell.Num(0))
						b.Clear(cell.Loc(term, 0), 1)
					},
				},
				{
					Pats: []Pattern{{Kind: PatLit, Lit: 1}},
					Body: func(b Builder, host uint32, term cell.Ptr) {
						b.Link(host, cell.Num(1))
						b.Clear(cell.Loc(term, 0), 1)
					},
				},
				{
					Pats: []Pattern{{Kind: PatWhnf}},
					Body: func(b Builder, host uint32, term cell.Ptr) {
						n0, n1 := b.Cpy(b.Arg(term, 0))
						op0 := b.Alloc(2)
						b.Link(op0+0, n0)
						b.Link(op0+1, cell.Num(1))
						op1 := b.Alloc(2)
						b.Link(op1+0, n1)
						b.Link(op1+1, cell.Num(2))
						f0 := b.Alloc(1)
						b.Link(f0+0, cell.Op2(cell.OpSub, op0))
						f1 := b.Alloc(1)
						b.Link(f1+0, cell.Op2(cell.OpSub, op1))
						op := b.Alloc(2)
						b.Link(op+0, cell.Fun(FibFib, f0))
						b.Link(op+1, cell.Fun(FibFib, f1))
						b.Link(host, cell.Op2(cell.OpAdd, op))
						b.Clear(cell.Loc(term, 0), 1)
					},
				},
			},
		},
	}}
}

var registry = map[string]func() *Program{
	"gentree": GenTreeProgram,
	"fib":     FibProgram,
}

// Lookup returns a fresh instance of a registered program.
func Lookup(name string) (*Program, error) {
	mk, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown program %q (have: %v)", name, Names())
	}
	return mk(), nil
}

// Names lists the registered program names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

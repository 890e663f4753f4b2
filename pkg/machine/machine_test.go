package machine

import (
	"testing"

	"github.com/parlang/parnet/pkg/cell"
	"github.com/parlang/parnet/pkg/prog"
	"github.com/parlang/parnet/pkg/readback"
)

// TestGenTree runs the sample program end to end: a balanced tree of
// 2^(n-1) leaves (a single leaf for n <= 1) folded back into a leaf count.
func TestGenTree(t *testing.T) {
	tests := []struct {
		arg  uint64
		want uint64
	}{
		{0, 1}, // GenTree 0 returns the leaf unchanged
		{1, 1}, // so does GenTree 1
		{2, 2},
		{3, 4},
		{6, 32},
	}
	for _, tc := range tests {
		m := testMachine(prog.GenTreeProgram(), 1)
		root, err := m.Boot(tc.arg)
		if err != nil {
			t.Fatal(err)
		}
		got, stats := m.Normalize(root)
		if cell.Tag(got) != cell.NUM || cell.NumVal(got) != tc.want {
			t.Errorf("Main(%d): got %s %d want %d",
				tc.arg, cell.TagName(cell.Tag(got)), cell.NumVal(got), tc.want)
		}
		if stats.Cost == 0 {
			t.Errorf("Main(%d): zero cost", tc.arg)
		}
		t.Logf("Main(%d) = %d (cost %d, size %d, passes %d)",
			tc.arg, cell.NumVal(got), stats.Cost, stats.Size, stats.Passes)
	}
}

func TestFib(t *testing.T) {
	tests := []struct {
		arg  uint64
		want uint64
	}{
		{0, 0}, {1, 1}, {2, 1}, {7, 13}, {10, 55},
	}
	for _, tc := range tests {
		m := testMachine(prog.FibProgram(), 1)
		root, err := m.Boot(tc.arg)
		if err != nil {
			t.Fatal(err)
		}
		got, _ := m.Normalize(root)
		if cell.NumVal(got) != tc.want {
			t.Errorf("Fib(%d): got %d want %d", tc.arg, cell.NumVal(got), tc.want)
		}
	}
}

func TestBootArity(t *testing.T) {
	m := testMachine(prog.GenTreeProgram(), 1)
	if _, err := m.Boot(); err == nil {
		t.Error("expected arity error for missing argument")
	}
	if _, err := m.Boot(1, 2); err == nil {
		t.Error("expected arity error for extra argument")
	}
	m2 := testMachine(&prog.Program{}, 1)
	if _, err := m2.Boot(); err == nil {
		t.Error("expected error for empty program")
	}
}

// TestNormalizeFixedPoint: normalization is idempotent — a second run
// over the same graph fires nothing.
func TestNormalizeFixedPoint(t *testing.T) {
	m := testMachine(prog.GenTreeProgram(), 1)
	root, err := m.Boot(4)
	if err != nil {
		t.Fatal(err)
	}
	_, stats1 := m.Normalize(root)
	_, stats2 := m.Normalize(root)
	if stats2.Cost != stats1.Cost {
		t.Errorf("cost moved after fixed point: %d -> %d", stats1.Cost, stats2.Cost)
	}
	if stats1.Passes < 1 || stats2.Passes != 1 {
		t.Errorf("passes: got %d then %d", stats1.Passes, stats2.Passes)
	}
}

// TestParallelEquivalence: the readback must not depend on the worker
// count.
func TestParallelEquivalence(t *testing.T) {
	programs := []struct {
		name string
		mk   func() *prog.Program
		arg  uint64
	}{
		{"gentree", prog.GenTreeProgram, 6},
		{"fib", prog.FibProgram, 12},
	}
	for _, pc := range programs {
		t.Run(pc.name, func(t *testing.T) {
			var want string
			var wantCost uint64
			for _, workers := range []int{1, 2, 4, 8} {
				m := testMachine(pc.mk(), workers)
				root, err := m.Boot(pc.arg)
				if err != nil {
					t.Fatal(err)
				}
				_, stats := m.Normalize(root)
				out := readback.Show(m.heap, m.prog, root, 0)
				if workers == 1 {
					want = out
					wantCost = stats.Cost
					continue
				}
				if out != want {
					t.Errorf("%d workers: got %q want %q", workers, out, want)
				}
				if stats.Cost != wantCost {
					t.Errorf("%d workers: cost %d want %d", workers, stats.Cost, wantCost)
				}
				if stats.Workers != workers {
					t.Errorf("stats.Workers: got %d want %d", stats.Workers, workers)
				}
			}
		})
	}
}

// TestParallelBackEdges: the invariant survives a multi-worker run.
func TestParallelBackEdges(t *testing.T) {
	m := testMachine(prog.GenTreeProgram(), 4)
	root, err := m.Boot(5)
	if err != nil {
		t.Fatal(err)
	}
	m.Normalize(root)
	checkBackEdges(t, m, root)
}

// TestStatsSize: the reported size is the sum of band bump pointers.
func TestStatsSize(t *testing.T) {
	m := testMachine(prog.GenTreeProgram(), 1)
	root, err := m.Boot(3)
	if err != nil {
		t.Fatal(err)
	}
	_, stats := m.Normalize(root)
	if stats.Size != uint64(m.workers[0].area.Used()) {
		t.Errorf("size: got %d want %d", stats.Size, m.workers[0].area.Used())
	}
}

// TestSnapshotRestore: a snapshot taken after a run reads back the
// same normal form.
func TestSnapshotRestore(t *testing.T) {
	m := testMachine(prog.GenTreeProgram(), 1)
	root, err := m.Boot(4)
	if err != nil {
		t.Fatal(err)
	}
	m.Normalize(root)
	want := readback.Show(m.heap, m.prog, root, 0)

	snap := m.Snapshot(root)
	if snap.Cost != m.Cost() {
		t.Errorf("snapshot cost: got %d want %d", snap.Cost, m.Cost())
	}
	h2 := snap.Restore()
	if got := readback.Show(h2, m.prog, snap.Root, 0); got != want {
		t.Errorf("restored readback: got %q want %q", got, want)
	}
}

// TestFreshLabelsDisjoint: workers draw dup labels from ranges that
// cannot collide.
func TestFreshLabelsDisjoint(t *testing.T) {
	m := testMachine(&prog.Program{}, 4)
	span := uint64(cell.MaxLabel+1) / 4
	for tid, w := range m.workers {
		first := w.freshLabel()
		want := uint64(tid)*span + 1
		if first != want {
			t.Errorf("worker %d first label: got %d want %d", tid, first, want)
		}
	}
}

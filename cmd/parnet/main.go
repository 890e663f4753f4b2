package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/parlang/parnet/pkg/cell"
	"github.com/parlang/parnet/pkg/heap"
	"github.com/parlang/parnet/pkg/machine"
	"github.com/parlang/parnet/pkg/prog"
	"github.com/parlang/parnet/pkg/readback"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "parnet",
		Short: "parnet — parallel interaction-net runtime",
	}

	// run command
	var workers int
	var heapSize uint64
	var showStats bool
	var dump string
	var verbose bool
	var limit int

	runCmd := &cobra.Command{
		Use:   "run [program] [args...]",
		Short: "Normalize a program applied to numeric arguments",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := prog.Lookup(args[0])
			if err != nil {
				return err
			}
			nums, err := parseNums(args[1:])
			if err != nil {
				return err
			}

			logger, err := buildLogger(verbose)
			if err != nil {
				return err
			}
			defer logger.Sync()

			m := machine.New(p, machine.Config{
				HeapSize: heapSize,
				Workers:  workers,
				Logger:   logger,
			})
			root, err := m.Boot(nums...)
			if err != nil {
				return err
			}
			_, stats := m.Normalize(root)

			fmt.Println(readback.Show(m.Heap(), p, root, limit))

			if showStats {
				out, err := json.MarshalIndent(stats, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(os.Stderr, string(out))
			}
			if dump != "" {
				if err := heap.SaveSnapshot(dump, m.Snapshot(root)); err != nil {
					return fmt.Errorf("dump heap: %w", err)
				}
				fmt.Fprintf(os.Stderr, "heap written to %s\n", dump)
			}
			return nil
		},
	}
	runCmd.Flags().IntVar(&workers, "workers", 0, "Number of workers (0 = NumCPU)")
	runCmd.Flags().Uint64Var(&heapSize, "heap", 0, "Heap size in cells (0 = default)")
	runCmd.Flags().BoolVar(&showStats, "stats", false, "Print run statistics as JSON to stderr")
	runCmd.Flags().StringVar(&dump, "dump", "", "Write a heap snapshot to this file after the run")
	runCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Verbose (debug) logging")
	runCmd.Flags().IntVar(&limit, "limit", 0, "Readback output limit in bytes (0 = default)")

	// compare command: the parallel-equivalence property as a tool.
	var cmpWorkers int

	compareCmd := &cobra.Command{
		Use:   "compare [program] [args...]",
		Short: "Run with 1 worker and with N workers, then diff the readbacks",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			nums, err := parseNums(args[1:])
			if err != nil {
				return err
			}
			if cmpWorkers <= 1 {
				cmpWorkers = runtime.NumCPU()
			}

			outs := make([]string, 2)
			costs := make([]uint64, 2)
			g, _ := errgroup.WithContext(context.Background())
			for i, n := range []int{1, cmpWorkers} {
				g.Go(func() error {
					p, err := prog.Lookup(args[0])
					if err != nil {
						return err
					}
					m := machine.New(p, machine.Config{Workers: n, HeapSize: heapSize})
					root, err := m.Boot(nums...)
					if err != nil {
						return err
					}
					_, stats := m.Normalize(root)
					outs[i] = readback.Show(m.Heap(), p, root, 0)
					costs[i] = stats.Cost
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			fmt.Printf("1 worker:   %s (cost %d)\n", outs[0], costs[0])
			fmt.Printf("%d workers: %s (cost %d)\n", cmpWorkers, outs[1], costs[1])
			if outs[0] != outs[1] {
				return fmt.Errorf("readbacks differ")
			}
			fmt.Println("readbacks agree")
			return nil
		},
	}
	compareCmd.Flags().IntVar(&cmpWorkers, "workers", 0, "Parallel side worker count (0 = NumCPU)")
	compareCmd.Flags().Uint64Var(&heapSize, "heap", 0, "Heap size in cells (0 = default)")

	// ops command
	opsCmd := &cobra.Command{
		Use:   "ops",
		Short: "List numeric operators and registered programs",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("operators:")
			for op := uint64(0); op < cell.OpCount; op++ {
				fmt.Printf("  %2d  %s\n", op, cell.OpName(op))
			}
			fmt.Println("programs:")
			for _, name := range prog.Names() {
				fmt.Printf("  %s\n", name)
			}
		},
	}

	rootCmd.AddCommand(runCmd, compareCmd, opsCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func buildLogger(verbose bool) (*zap.Logger, error) {
	if !verbose {
		return zap.NewNop(), nil
	}
	return zap.NewDevelopment()
}

// parseNums converts decimal CLI arguments into NUM payloads.
func parseNums(args []string) ([]uint64, error) {
	nums := make([]uint64, 0, len(args))
	for _, a := range args {
		v, err := strconv.ParseUint(a, 10, 60)
		if err != nil {
			return nil, fmt.Errorf("argument %q is not a number: %w", a, err)
		}
		nums = append(nums, v)
	}
	return nums, nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"math/bits"
	"math/rand"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/joshuapare/kheap/heap/alloc"
	"github.com/joshuapare/kheap/heap/global"
	"github.com/joshuapare/kheap/internal/logger"
)

// workload describes a random alloc/free mix.
type workload struct {
	Preset   string
	Backing  string
	Region   int
	MinGrow  int
	MaxBytes uint64
	Steps    int
	Seed     int64
	MaxSize  int
	MaxAlign int
	FreePct  int
	Workers  int
	Verify   bool
	Drain    bool
}

// workloadResult summarises one run.
type workloadResult struct {
	Preset   string      `json:"preset"`
	Backing  string      `json:"backing"`
	Steps    int         `json:"steps"`
	Workers  int         `json:"workers"`
	Allocs   int         `json:"allocs"`
	Frees    int         `json:"frees"`
	Failures int         `json:"failures"`
	Grows    int         `json:"grows"`
	Live     int         `json:"live"`
	Stats    alloc.Stats `json:"stats"`
}

func addWorkloadFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("backing", "mmap", "Region backing: mmap or go")
	f.Int("region", 1<<20, "Initial region size in bytes")
	f.Int("min-grow", 1<<20, "Smallest region added when the heap grows")
	f.Uint64("max-bytes", 0, "Cap on region bytes, 0 for no cap")
	f.Int("steps", 10000, "Operations per worker")
	f.Int64("seed", 42, "Random seed")
	f.Int("max-size", 4096, "Largest allocation size")
	f.Int("max-align", 64, "Largest alignment (power of two)")
	f.Int("free-pct", 45, "Percent of steps that free a live allocation")
	f.Int("workers", 1, "Concurrent workers sharing the heap")
	f.Bool("verify", false, "Verify heap invariants after every step (single worker) or at the end")
	f.Bool("drain", false, "Free every live allocation before reporting")
}

func workloadFromConfig(v *viper.Viper) (workload, error) {
	w := workload{
		Preset:   v.GetString("preset"),
		Backing:  v.GetString("backing"),
		Region:   v.GetInt("region"),
		MinGrow:  v.GetInt("min-grow"),
		MaxBytes: v.GetUint64("max-bytes"),
		Steps:    v.GetInt("steps"),
		Seed:     v.GetInt64("seed"),
		MaxSize:  v.GetInt("max-size"),
		MaxAlign: v.GetInt("max-align"),
		FreePct:  v.GetInt("free-pct"),
		Workers:  v.GetInt("workers"),
		Verify:   v.GetBool("verify"),
		Drain:    v.GetBool("drain"),
	}
	switch {
	case w.Steps < 0:
		return w, fmt.Errorf("steps must not be negative, got %d", w.Steps)
	case w.MaxSize < 1:
		return w, fmt.Errorf("max-size must be positive, got %d", w.MaxSize)
	case w.MaxAlign < 1 || w.MaxAlign&(w.MaxAlign-1) != 0:
		return w, fmt.Errorf("max-align must be a power of two, got %d", w.MaxAlign)
	case w.FreePct < 0 || w.FreePct > 100:
		return w, fmt.Errorf("free-pct must be within 0..100, got %d", w.FreePct)
	case w.Workers < 1:
		return w, fmt.Errorf("workers must be at least 1, got %d", w.Workers)
	}
	return w, nil
}

func (w workload) source() (global.Source, error) {
	switch w.Backing {
	case "mmap":
		return global.MmapSource, nil
	case "go":
		return global.GoSource, nil
	default:
		return nil, fmt.Errorf("unknown backing %q (want mmap or go)", w.Backing)
	}
}

// openHeap builds the Heap a workload runs against.
func (w workload) openHeap() (*global.Heap, error) {
	cfg, err := alloc.ConfigByName(w.Preset)
	if err != nil {
		return nil, err
	}
	src, err := w.source()
	if err != nil {
		return nil, err
	}
	return global.New(global.Options{
		Config:      &cfg,
		InitialSize: w.Region,
		MinGrow:     w.MinGrow,
		MaxBytes:    w.MaxBytes,
		Source:      src,
		Logger:      logger.L,
	})
}

type liveBlock struct {
	ptr         alloc.Addr
	size, align uint64
}

type workerTally struct {
	allocs, frees, failures, live int
}

// run drives the workload against h. Each worker owns its allocations and
// its own seeded generator, so a single-worker run is reproducible.
func (w workload) run(ctx context.Context, h *global.Heap) (workloadResult, error) {
	tallies := make([]workerTally, w.Workers)
	alignShift := bits.TrailingZeros(uint(w.MaxAlign))

	g, ctx := errgroup.WithContext(ctx)
	for id := 0; id < w.Workers; id++ {
		g.Go(func() error {
			rng := rand.New(rand.NewSource(w.Seed + int64(id)))
			t := &tallies[id]
			var live []liveBlock

			for step := 0; step < w.Steps; step++ {
				if step%256 == 0 {
					if err := ctx.Err(); err != nil {
						return err
					}
				}

				if len(live) > 0 && rng.Intn(100) < w.FreePct {
					i := rng.Intn(len(live))
					b := live[i]
					h.Dealloc(b.ptr, b.size, b.align)
					live[i] = live[len(live)-1]
					live = live[:len(live)-1]
					t.frees++
				} else {
					size := uint64(rng.Intn(w.MaxSize) + 1)
					align := uint64(1) << rng.Intn(alignShift+1)
					ptr, buf, err := h.Alloc(size, align)
					switch {
					case errors.Is(err, alloc.ErrNoMemory):
						t.failures++
					case err != nil:
						return err
					default:
						buf[0], buf[len(buf)-1] = byte(step), byte(step)
						live = append(live, liveBlock{ptr, size, align})
						t.allocs++
					}
				}

				if w.Verify && w.Workers == 1 {
					if err := h.Verify(); err != nil {
						return fmt.Errorf("step %d: %w", step, err)
					}
				}
			}

			if w.Drain {
				for _, b := range live {
					h.Dealloc(b.ptr, b.size, b.align)
					t.frees++
				}
				live = nil
			}
			t.live = len(live)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return workloadResult{}, err
	}
	if w.Verify {
		if err := h.Verify(); err != nil {
			return workloadResult{}, err
		}
	}

	res := workloadResult{
		Preset:  w.Preset,
		Backing: w.Backing,
		Steps:   w.Steps,
		Workers: w.Workers,
		Grows:   h.Grows(),
		Stats:   h.Stats(),
	}
	for _, t := range tallies {
		res.Allocs += t.allocs
		res.Frees += t.frees
		res.Failures += t.failures
		res.Live += t.live
	}
	logger.Info("workload finished",
		"preset", res.Preset, "allocs", res.Allocs, "frees", res.Frees,
		"failures", res.Failures, "grows", res.Grows)
	return res, nil
}

package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"

	"campaignbot/retry"
	"campaignbot/types"
)

// Exec runs a single generation unit to completion and reports its
// outcome. Implementations must not panic; if they do, the scheduler
// converts the panic into a failure outcome for that unit alone.
type Exec func(ctx context.Context, unit types.GenerationUnit) types.UnitOutcome

// Batcher drains an ordered list of pending units in bounded-size
// concurrent batches: all units of batch N run concurrently, and batch
// N+1 never starts before batch N has fully drained. The bound keeps
// peak load under provider rate limits while overlapping network-bound
// latency within a batch.
type Batcher struct {
	// Size is the concurrency bound K.
	Size int
	// Halt, when raised, stops new batches from launching; units
	// already in flight finish.
	Halt *retry.Halt
}

// Run executes units in batches of at most Size. It returns the
// outcomes of every unit that was actually started; units never
// started (halt raised or context canceled between batches) are not
// represented.
func (b *Batcher) Run(ctx context.Context, units []types.GenerationUnit, exec Exec) []types.UnitOutcome {
	size := b.Size
	if size < 1 {
		size = 1
	}

	outcomes := make([]types.UnitOutcome, 0, len(units))
	for start := 0; start < len(units); start += size {
		if b.Halt != nil && b.Halt.Raised() {
			log.Printf("  🛑 Halt raised, %d unit(s) left unscheduled", len(units)-start)
			break
		}
		if ctx.Err() != nil {
			break
		}

		end := start + size
		if end > len(units) {
			end = len(units)
		}
		batch := units[start:end]

		results := make([]types.UnitOutcome, len(batch))
		var wg sync.WaitGroup
		for i, unit := range batch {
			wg.Add(1)
			go func(i int, unit types.GenerationUnit) {
				defer wg.Done()
				results[i] = b.runOne(ctx, unit, exec)
			}(i, unit)
		}
		wg.Wait()

		outcomes = append(outcomes, results...)
	}
	return outcomes
}

// runOne executes a single unit, converting a panic into a failure
// outcome so one bad unit never takes down its batch siblings.
func (b *Batcher) runOne(ctx context.Context, unit types.GenerationUnit, exec Exec) (out types.UnitOutcome) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("  ❌ Unit %s/%s#%d panicked: %v",
				unit.Campaign.ID, unit.ContentType, unit.Sequence, r)
			out = types.UnitOutcome{
				Unit:      unit,
				ClassName: types.ClassGenerated.String(),
				Error:     fmt.Sprintf("panic: %v", r),
			}
		}
	}()
	return exec(ctx, unit)
}

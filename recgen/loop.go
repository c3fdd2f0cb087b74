// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package recgen

import (
	"context"
	"log"
	"runtime"
	"sync"
	"time"

	"github.com/emer/empi/v2/mpi"
	"github.com/emer/etable/v2/minmax"
	"golang.org/x/sync/errgroup"

	"github.com/emer/spikesim/chunk"
	"github.com/emer/spikesim/output"
)

// Loop runs a chunk Func over the chunks of a recording
type Loop struct {

	// number of parallel goroutines: 0 = number of CPUs
	Workers int

	// if true, chunks are split across MPI processes: each process runs
	// the chunks whose index modulo the world size is its rank
	MPI bool

	// if true, log the time of each chunk and a summary
	Verbose bool

	// compute time of the chunks run by this process, in msec
	Times minmax.AvgMax32 `view:"inline"`

	mu sync.Mutex
}

// NWorkers returns the number of goroutines used
func (lp *Loop) NWorkers() int {
	if lp.Workers <= 0 {
		return runtime.NumCPU()
	}
	return lp.Workers
}

// Own returns the chunks run by this process
func (lp *Loop) Own(chunks []chunk.Chunk) []chunk.Chunk {
	if !lp.MPI {
		return chunks
	}
	rank, size := mpi.WorldRank(), mpi.WorldSize()
	if size <= 1 {
		return chunks
	}
	var own []chunk.Chunk
	for i, c := range chunks {
		if i%size == rank {
			own = append(own, c)
		}
	}
	return own
}

// Run calls fn on each chunk owned by this process, returning the results
// in the order of chunks (nil for chunks run by other processes).
// The first error stops the run: remaining chunks are not started and
// there are no retries.
func (lp *Loop) Run(ctx context.Context, chunks []chunk.Chunk, fn Func) ([]*output.Result, error) {
	if err := chunk.CheckPartition(chunks, chunkTotal(chunks)); err != nil {
		return nil, err
	}
	pos := make(map[int]int, len(chunks))
	for i, c := range chunks {
		pos[c.ID] = i
	}
	res := make([]*output.Result, len(chunks))
	lp.Times.Init()
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(lp.NWorkers())
	own := lp.Own(chunks)
	for _, c := range own {
		c := c
		if ctx.Err() != nil {
			break
		}
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			st := time.Now()
			r, err := fn(c)
			if err != nil {
				return err
			}
			dur := time.Since(st)
			lp.mu.Lock()
			res[pos[c.ID]] = r
			lp.Times.UpdateValue(float32(dur.Seconds()*1000), int32(c.ID))
			lp.mu.Unlock()
			if lp.Verbose {
				log.Printf("%v done in %v\n", c, dur)
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	lp.Times.CalcAvg()
	if lp.Verbose {
		log.Printf("%d chunks: avg %.1f ms, max %.1f ms\n", len(own), lp.Times.Avg, lp.Times.Max)
	}
	return res, nil
}

func chunkTotal(chunks []chunk.Chunk) int {
	total := 0
	for _, c := range chunks {
		total = max(total, c.Stop)
	}
	return total
}

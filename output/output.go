// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package output decouples computing the numeric result of a recordings chunk
from where that result is stored.

A chunk operation returns a Result: a mapping from output key (e.g.,
"recordings", "spike_traces", "additive_noise") to a channels x samples block.
A Target then commits the Result:

* PassThrough keeps nothing: the caller assembles the returned blocks.

* FileWriter writes each configured key into a new per-chunk file, for later
assembly.  Files are write-once: there is no accumulation.

* BufferAdder adds each configured key into the [Start, Stop) column range of
a destination Buffer shared by all chunks.  It always reads-then-adds, so the
order of chunks does not matter, but two commits touching the same columns of
one buffer must never run concurrently, and committing a chunk twice counts it
twice.
*/
package output

import (
	"errors"
	"fmt"
	"slices"

	"golang.org/x/exp/maps"
	"gonum.org/v1/gonum/mat"

	"github.com/emer/spikesim/chunk"
)

var (
	// ErrShape is returned when a block does not fit its destination
	ErrShape = errors.New("output: block shape does not match destination")

	// ErrMissingKey is returned when a configured output key is not in the result
	ErrMissingKey = errors.New("output: missing output key")

	// ErrExists is returned when a chunk file already exists
	ErrExists = errors.New("output: chunk file already exists")
)

// Standard output keys
const (
	Recordings    = "recordings"
	SpikeTraces   = "spike_traces"
	AdditiveNoise = "additive_noise"
	Filtered      = "filtered_chunk"
)

// Result is the output of one chunk operation
type Result struct {

	// output blocks by key, each channels x chunk samples
	Blocks map[string]*mat.Dense

	// per unit, the drift template index used for each spike placed in the
	// chunk (drifting convolution only, nil otherwise)
	TemplateIdxs [][]int
}

// NewResult returns an empty Result
func NewResult() *Result {
	return &Result{Blocks: make(map[string]*mat.Dense)}
}

// Target commits chunk results to their storage.  Commit removes the keys it
// stored from r.Blocks; anything left is for the caller.  A failed Commit
// stores nothing and leaves r as it was.
type Target interface {
	Commit(c chunk.Chunk, r *Result) error
}

// PassThrough is the in-memory Target: nothing is stored and the whole
// Result is left to the caller.
type PassThrough struct{}

func (pt PassThrough) Commit(c chunk.Chunk, r *Result) error { return nil }

// BufferAdder is the shared-buffer Target: each block in Dest is added into
// the chunk's column range of the destination buffer.  Every block is checked
// before any is added, so a failed Commit leaves the buffers and r unchanged.
type BufferAdder struct {

	// destination buffer for each output key to accumulate
	Dest map[string]Buffer

	// set when each worker holds its own handle to the destination buffers:
	// buffers that implement Reopener are written through a view rebuilt
	// for each commit, leaving the shared buffer untouched
	Parallel bool
}

func (ba *BufferAdder) Commit(c chunk.Chunk, r *Result) error {
	keys := maps.Keys(ba.Dest)
	slices.Sort(keys)
	blks := make([]*mat.Dense, len(keys))
	for i, key := range keys {
		blk, ok := r.Blocks[key]
		if !ok || blk == nil {
			return fmt.Errorf("%w: %q", ErrMissingKey, key)
		}
		rows, cols := ba.Dest[key].Dims()
		br, bc := blk.Dims()
		if br != rows || bc != c.Len() || c.Start < 0 || c.Stop > cols {
			return fmt.Errorf("%w: %q block %dx%d into %dx%d at %v", ErrShape, key, br, bc, rows, cols, c)
		}
		blks[i] = blk
	}
	dests := make([]Buffer, len(keys))
	var views []View
	for i, key := range keys {
		dests[i] = ba.Dest[key]
		if !ba.Parallel {
			continue
		}
		ro, ok := dests[i].(Reopener)
		if !ok {
			continue
		}
		vw, err := ro.Reopen()
		if err != nil {
			return errors.Join(err, closeViews(views))
		}
		views = append(views, vw)
		dests[i] = vw
	}
	for i, key := range keys {
		dests[i].AddCols(c.Start, blks[i])
		delete(r.Blocks, key)
	}
	return closeViews(views)
}

func closeViews(views []View) error {
	var errs []error
	for _, vw := range views {
		errs = append(errs, vw.Close())
	}
	return errors.Join(errs...)
}

// Mode is the output strategy
type Mode int32

const (
	// None returns results to the caller (PassThrough)
	None Mode = iota

	// File writes each chunk to its own file (FileWriter)
	File

	// Add adds each chunk into shared buffers (BufferAdder)
	Add

	ModeN
)

func (md Mode) String() string {
	switch md {
	case None:
		return "None"
	case File:
		return "File"
	case Add:
		return "Add"
	}
	return fmt.Sprintf("Mode(%d)", int32(md))
}

// Config selects and configures the output strategy
type Config struct {

	// output strategy
	Mode Mode

	// keys written to file in File mode
	Keys []string

	// per chunk file path in File mode
	Path func(c chunk.Chunk) string

	// destination buffers by key in Add mode
	Dest map[string]Buffer

	// set when chunks run in parallel workers with their own buffer handles
	Parallel bool
}

// NewTarget returns the Target for the config
func NewTarget(cfg *Config) (Target, error) {
	switch cfg.Mode {
	case None:
		return PassThrough{}, nil
	case File:
		if cfg.Path == nil {
			return nil, errors.New("output: File mode requires a Path function")
		}
		return &FileWriter{Keys: cfg.Keys, Path: cfg.Path}, nil
	case Add:
		if len(cfg.Dest) == 0 {
			return nil, errors.New("output: Add mode requires destination buffers")
		}
		return &BufferAdder{Dest: cfg.Dest, Parallel: cfg.Parallel}, nil
	}
	return nil, fmt.Errorf("output: invalid mode %v", cfg.Mode)
}

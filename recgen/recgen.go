// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package recgen provides the chunk operations that synthesize a recording:
template convolution (Convolution), additive noise (UncorrelatedNoise,
CorrelatedNoise) and filtering (Filter).

Each operation computes the numeric result of one chunk and knows nothing
about where it goes: Wrap binds an operation to an output.Target, and Loop
runs the wrapped operation over all chunks of a recording, in parallel
goroutines and optionally striped across MPI processes.

All random draws are seeded from a recording-level base seed, the chunk ID
and the unit (see chunk.Seed), so results do not depend on the order or
parallelism in which chunks are run.
*/
package recgen

import (
	"errors"

	"github.com/emer/spikesim/chunk"
	"github.com/emer/spikesim/output"
)

// ErrConfig is returned for an inconsistent operation configuration
var ErrConfig = errors.New("recgen: invalid configuration")

// Op is a chunk operation
type Op interface {

	// Chunk computes the result of chunk c
	Chunk(c chunk.Chunk) (*output.Result, error)
}

// Func computes and stores one chunk, returning whatever the target left
// in the result.
type Func func(c chunk.Chunk) (*output.Result, error)

// Wrap returns the Func that computes chunk c with op and commits it to
// tg.  Nothing is committed if op fails.
func Wrap(op Op, tg output.Target) Func {
	return func(c chunk.Chunk) (*output.Result, error) {
		r, err := op.Chunk(c)
		if err != nil {
			return nil, err
		}
		if err := tg.Commit(c, r); err != nil {
			return nil, err
		}
		return r, nil
	}
}

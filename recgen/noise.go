// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package recgen

import (
	"fmt"
	"log"

	"gonum.org/v1/gonum/mat"

	"github.com/emer/spikesim/chunk"
	"github.com/emer/spikesim/filt"
	"github.com/emer/spikesim/noise"
	"github.com/emer/spikesim/output"
)

// UncorrelatedNoise generates independent noise on each electrode, as
// output.AdditiveNoise.
type UncorrelatedNoise struct {

	// number of electrodes
	NChan int

	// noise parameters
	Noise noise.Params `view:"inline"`

	// base seed of all random draws
	Seed uint64

	// if true, log a summary of each chunk
	Verbose bool
}

func (un *UncorrelatedNoise) Defaults() {
	un.Noise.Defaults()
}

func (un *UncorrelatedNoise) Chunk(c chunk.Chunk) (*output.Result, error) {
	blk, err := noise.Uncorrelated(un.NChan, c.Len(), &un.Noise, chunk.Seed(un.Seed, c.ID, -1))
	if err != nil {
		return nil, fmt.Errorf("recgen: noise in %v: %w", c, err)
	}
	if un.Verbose {
		log.Printf("uncorrelated noise %v done\n", c)
	}
	res := output.NewResult()
	res.Blocks[output.AdditiveNoise] = blk
	return res, nil
}

// CorrelatedNoise generates noise with the given electrode covariance, as
// output.AdditiveNoise.
type CorrelatedNoise struct {

	// electrode covariance, see noise.DistanceCov
	Cov *mat.SymDense

	// noise parameters
	Noise noise.Params `view:"inline"`

	// base seed of all random draws
	Seed uint64

	// if true, log a summary of each chunk
	Verbose bool
}

func (cn *CorrelatedNoise) Defaults() {
	cn.Noise.Defaults()
}

func (cn *CorrelatedNoise) Chunk(c chunk.Chunk) (*output.Result, error) {
	blk, err := noise.Correlated(cn.Cov, c.Len(), &cn.Noise, chunk.Seed(cn.Seed, c.ID, -1))
	if err != nil {
		return nil, fmt.Errorf("recgen: correlated noise in %v: %w", c, err)
	}
	if cn.Verbose {
		log.Printf("correlated noise %v done\n", c)
	}
	res := output.NewResult()
	res.Blocks[output.AdditiveNoise] = blk
	return res, nil
}

// Filter filters the chunk columns of a full recording, as output.Filtered.
// Source must not be the destination of the same run.
type Filter struct {

	// full recording to filter
	Source output.Buffer

	// filter parameters
	Filt filt.Params `view:"inline"`

	// if true, log a summary of each chunk
	Verbose bool
}

func (fl *Filter) Defaults() {
	fl.Filt.Defaults()
}

func (fl *Filter) Chunk(c chunk.Chunk) (*output.Result, error) {
	if fl.Source == nil {
		return nil, fmt.Errorf("%w: no filter source", ErrConfig)
	}
	_, cols := fl.Source.Dims()
	if err := c.Validate(cols); err != nil {
		return nil, err
	}
	blk, err := filt.Apply(fl.Source.Cols(c.Start, c.Stop), &fl.Filt)
	if err != nil {
		return nil, err
	}
	if fl.Verbose {
		log.Printf("filter %v done\n", c)
	}
	res := output.NewResult()
	res.Blocks[output.Filtered] = blk
	return res, nil
}

// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package noise generates the additive electrode noise of synthesized
recordings, one chunk at a time.

Uncorrelated noise is independent Gaussian noise on each electrode.
Correlated noise is drawn from a multivariate Gaussian whose covariance
encodes the spatial correlation between electrodes (see DistanceCov).

Either can be spectrally colored: a peak filter emphasizes a frequency band,
a noise floor proportional to the filtered noise is added back, and the block
is rescaled so that its standard deviation is exactly the configured noise
level, since filtering changes the variance.
*/
package noise

import (
	"errors"
	"fmt"
	"math"

	"github.com/goki/mat32"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distmv"

	"github.com/emer/spikesim/chunk"
	"github.com/emer/spikesim/filt"
)

var (
	// ErrParams is returned for invalid noise parameters
	ErrParams = errors.New("noise: invalid parameters")

	// ErrDegenerate is returned when a noise block has zero or non-finite
	// standard deviation, so it cannot be renormalized
	ErrDegenerate = errors.New("noise: degenerate noise block")
)

// Params are the noise generation parameters
type Params struct {

	// standard deviation of the noise, in uV
	Level float64 `def:"10" min:"0"`

	// if true, noise is spectrally colored with a peak filter
	Color bool

	// center frequency of the coloring peak filter, in Hz
	ColorPeak float64 `def:"300"`

	// quality factor of the coloring peak filter
	ColorQ float64 `def:"2"`

	// amplitude of the white noise floor added after coloring, relative to
	// the standard deviation of the colored noise
	ColorFloor float64 `def:"1"`

	// sampling rate in Hz
	Fs float64 `def:"32000"`

	// storage precision of the noise
	DType chunk.DType

	// odd extension length of the coloring filter
	PadLen int `def:"1000"`
}

func (ns *Params) Defaults() {
	ns.Level = 10
	ns.Color = false
	ns.ColorPeak = 300
	ns.ColorQ = 2
	ns.ColorFloor = 1
	ns.Fs = 32000
	ns.DType = chunk.Float32
	ns.PadLen = 1000
}

// Validate checks the parameters
func (ns *Params) Validate() error {
	if ns.Level < 0 || math.IsNaN(ns.Level) || math.IsInf(ns.Level, 0) {
		return fmt.Errorf("%w: noise level %v", ErrParams, ns.Level)
	}
	if ns.Color {
		if _, err := ns.ColorFilter(); err != nil {
			return fmt.Errorf("%w: %w", ErrParams, err)
		}
		if ns.ColorFloor < 0 {
			return fmt.Errorf("%w: color noise floor %v", ErrParams, ns.ColorFloor)
		}
	}
	return nil
}

// ColorFilter returns the coloring peak filter
func (ns *Params) ColorFilter() (filt.Sos, error) {
	bq, err := filt.Peak(ns.ColorPeak, ns.ColorQ, ns.Fs)
	if err != nil {
		return nil, err
	}
	return filt.Sos{bq}, nil
}

// Uncorrelated returns a block of nch x length independent Gaussian noise
// with standard deviation Level, colored if Color is set.
func Uncorrelated(nch, length int, ns *Params, seed uint64) (*mat.Dense, error) {
	if nch <= 0 || length <= 0 {
		return nil, fmt.Errorf("%w: block %dx%d", ErrParams, nch, length)
	}
	if err := ns.Validate(); err != nil {
		return nil, err
	}
	rnd := rand.New(rand.NewSource(seed))
	block := mat.NewDense(nch, length, nil)
	if ns.Level == 0 {
		return block, nil
	}
	data := block.RawMatrix().Data
	for i := range data {
		data[i] = ns.Level * rnd.NormFloat64()
	}
	ns.DType.Cast(block)
	if !ns.Color {
		return block, nil
	}
	floor := func(dst []float64) {
		for i := range dst {
			dst[i] = rnd.NormFloat64()
		}
	}
	if err := color(block, ns, floor); err != nil {
		return nil, err
	}
	return block, nil
}

// Correlated returns a block of electrodes x length noise drawn from a
// multivariate Gaussian with covariance cov, scaled by Level and always
// renormalized to standard deviation Level.  When colored, the noise floor is
// drawn from the same correlated distribution to preserve spatial structure.
func Correlated(cov *mat.SymDense, length int, ns *Params, seed uint64) (*mat.Dense, error) {
	if cov == nil || length <= 0 {
		return nil, fmt.Errorf("%w: missing covariance or zero length", ErrParams)
	}
	if err := ns.Validate(); err != nil {
		return nil, err
	}
	nel, _ := cov.Dims()
	block := mat.NewDense(nel, length, nil)
	if ns.Level == 0 {
		return block, nil
	}
	mvn, ok := distmv.NewNormal(make([]float64, nel), cov, rand.NewSource(seed))
	if !ok {
		return nil, fmt.Errorf("%w: covariance is not positive definite", ErrParams)
	}
	sample := make([]float64, nel)
	for j := 0; j < length; j++ {
		mvn.Rand(sample)
		for i, v := range sample {
			block.Set(i, j, ns.Level*v)
		}
	}
	ns.DType.Cast(block)
	if ns.Color {
		floor := func(dst []float64) {
			for j := 0; j < length; j++ {
				mvn.Rand(sample)
				for i, v := range sample {
					dst[i*length+j] = v
				}
			}
		}
		if err := color(block, ns, floor); err != nil {
			return nil, err
		}
		return block, nil
	}
	if err := renormalize(block, ns); err != nil {
		return nil, err
	}
	return block, nil
}

// color applies the peak filter to each row of block, adds a noise floor
// drawn by floor (which fills a row-major buffer of the block size) and
// renormalizes.
func color(block *mat.Dense, ns *Params, floor func(dst []float64)) error {
	sos, err := ns.ColorFilter()
	if err != nil {
		return err
	}
	r, c := block.Dims()
	for i := 0; i < r; i++ {
		block.SetRow(i, filt.FiltFilt(sos, block.RawRowView(i), ns.PadLen))
	}
	ns.DType.Cast(block)
	data := block.RawMatrix().Data
	std := stat.PopStdDev(data, nil)
	fl := make([]float64, r*c)
	floor(fl)
	for i, v := range fl {
		data[i] += ns.ColorFloor * std * v
	}
	return renormalize(block, ns)
}

// renormalize rescales block so that its standard deviation is Level
func renormalize(block *mat.Dense, ns *Params) error {
	data := block.RawMatrix().Data
	std := stat.PopStdDev(data, nil)
	if std == 0 || math.IsNaN(std) || math.IsInf(std, 0) {
		return fmt.Errorf("%w: standard deviation %v", ErrDegenerate, std)
	}
	block.Scale(ns.Level/std, block)
	ns.DType.Cast(block)
	return nil
}

// DistanceCov returns the electrode covariance matrix for spatially correlated
// noise: correlation decays exponentially with distance between electrodes,
// halving every halfDist um.
func DistanceCov(locs []mat32.Vec3, halfDist float32) (*mat.SymDense, error) {
	if len(locs) == 0 || halfDist <= 0 {
		return nil, fmt.Errorf("%w: %d electrodes, half distance %v", ErrParams, len(locs), halfDist)
	}
	n := len(locs)
	cov := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			d := float64(locs[i].DistTo(locs[j]))
			cov.SetSym(i, j, math.Exp(-d*math.Ln2/float64(halfDist)))
		}
	}
	return cov, nil
}

// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package filt designs and applies the digital filters used in recording
synthesis: Butterworth high-pass and band-pass filters applied to assembled
recordings chunks, and the peak filter used to color noise.

Filters are cascades of second-order sections (Sos) applied forward and
backward (FiltFilt), which gives zero phase distortion so spike waveforms
keep their alignment.
*/
package filt

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/emer/spikesim/chunk"
)

// ErrCutoff is returned for invalid cutoff frequencies or filter order
var ErrCutoff = errors.New("filt: invalid cutoff")

// Params are the recordings filter parameters
type Params struct {

	// cutoff frequencies in Hz: one value for high-pass, two band edges for band-pass.
	// If the upper band edge is above the Nyquist frequency, the filter falls
	// back to high-pass at the lower edge.
	Cutoff []float64 `def:"[300, 6000]"`

	// order of the Butterworth filters
	Order int `def:"3" min:"1"`

	// sampling rate in Hz
	Fs float64 `def:"32000"`

	// storage precision of the filtered output
	DType chunk.DType

	// odd extension length for FiltFilt: 0 = default for the filter order
	PadLen int
}

func (fp *Params) Defaults() {
	fp.Cutoff = []float64{300, 6000}
	fp.Order = 3
	fp.Fs = 32000
	fp.DType = chunk.Float32
	fp.PadLen = 0
}

// Nyquist returns half the sampling rate
func (fp *Params) Nyquist() float64 { return fp.Fs / 2 }

// HighPassOnly returns true if the configured cutoff results in high-pass
// filtering only: a single cutoff, or two with the upper above Nyquist.
func (fp *Params) HighPassOnly() bool {
	return len(fp.Cutoff) == 1 || (len(fp.Cutoff) == 2 && fp.Cutoff[1] > fp.Nyquist())
}

// Design returns the filter sections for the configured cutoff.
// A band-pass is a high-pass at the lower edge cascaded with a low-pass
// at the upper edge, each of Order.
func (fp *Params) Design() (Sos, error) {
	switch len(fp.Cutoff) {
	case 1:
		return Butter(fp.Order, fp.Cutoff[0], fp.Fs, HighPass)
	case 2:
		lo, hi := fp.Cutoff[0], fp.Cutoff[1]
		if lo >= hi {
			return nil, fmt.Errorf("%w: band edges %v must be ascending", ErrCutoff, fp.Cutoff)
		}
		if hi > fp.Nyquist() {
			return Butter(fp.Order, lo, fp.Fs, HighPass)
		}
		hp, err := Butter(fp.Order, lo, fp.Fs, HighPass)
		if err != nil {
			return nil, err
		}
		lp, err := Butter(fp.Order, hi, fp.Fs, LowPass)
		if err != nil {
			return nil, err
		}
		return append(hp, lp...), nil
	}
	return nil, fmt.Errorf("%w: %d cutoff frequencies, need 1 or 2", ErrCutoff, len(fp.Cutoff))
}

// Apply filters each row of block (channels x samples) with zero phase,
// returning a new block cast to the storage precision.
func Apply(block *mat.Dense, fp *Params) (*mat.Dense, error) {
	sos, err := fp.Design()
	if err != nil {
		return nil, err
	}
	padlen := fp.PadLen
	if padlen <= 0 {
		padlen = sos.PadLen()
	}
	r, c := block.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		out.SetRow(i, FiltFilt(sos, block.RawRowView(i), padlen))
	}
	fp.DType.Cast(out)
	return out, nil
}

// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package modul

import (
	"github.com/chewxy/math32"
	"gonum.org/v1/gonum/interp"

	"github.com/emer/spikesim/templ"
)

// StretchParams parameterize the shape modulation of bursting units.
// Spikes later in a burst have lower amplitude and wider waveforms:
// the waveform is widened around its peak by a factor that is a saturating
// sigmoidal function of how far the spike amplitude is below 1.
type StretchParams struct {

	// gain of the sigmoid mapping amplitude to stretch strength: larger values
	// make the transition from no stretch to full stretch sharper
	Range float32 `def:"30" min:"0"`

	// amplitude at which the stretch is half of its maximum
	Mid float32 `def:"0.5"`

	// maximum relative widening: the waveform is at most 1+Max times wider
	Max float32 `def:"1" min:"0"`
}

func (sp *StretchParams) Defaults() {
	sp.Range = 30
	sp.Mid = 0.5
	sp.Max = 1
}

// Sigmoid returns the stretch strength in (0, 1) for given spike amplitude
func (sp *StretchParams) Sigmoid(amp float32) float32 {
	return 1 / (1 + math32.Exp(-(sp.Mid-amp)*sp.Range))
}

// Factor returns the widening factor for given spike amplitude
func (sp *StretchParams) Factor(amp float32) float32 {
	return 1 + sp.Max*sp.Sigmoid(amp)
}

// Stretch writes into dst the waveform src widened around its absolute peak
// by the factor for given amplitude, using linear interpolation.  dst must
// have the same length as src.  The result is a deterministic function of
// the inputs, so repeated calls give bit-identical waveforms.
func (sp *StretchParams) Stretch(dst, src []float32, amp float32) {
	sp.NewStretcher(1, len(src)).Stretch(dst, 0, src, amp)
}

// NewStretcher returns a Stretcher for nrows source waveforms of n samples
func (sp *StretchParams) NewStretcher(nrows, n int) *Stretcher {
	st := &Stretcher{Params: sp, xs: make([]float64, n), ys: make([]float64, n), fits: make([]*rowFit, nrows)}
	for i := range st.xs {
		st.xs[i] = float64(i)
	}
	return st
}

// Stretcher stretches the waveforms of many spikes drawn from a fixed set of
// source waveforms (rows), fitting the interpolation of each row only once.
// It is not safe for concurrent use.
type Stretcher struct {
	Params *StretchParams
	xs     []float64
	ys     []float64
	fits   []*rowFit
}

type rowFit struct {
	pl   interp.PiecewiseLinear
	peak float64
}

// Stretch writes into dst the waveform src, which is row of the source
// waveforms, stretched for given amplitude as StretchParams.Stretch.
func (st *Stretcher) Stretch(dst []float32, row int, src []float32, amp float32) {
	if len(src) < 2 {
		copy(dst, src)
		return
	}
	rf := st.fits[row]
	if rf == nil {
		rf = &rowFit{peak: float64(templ.PeakIndex(src))}
		for i, v := range src {
			st.ys[i] = float64(v)
		}
		if err := rf.pl.Fit(st.xs, st.ys); err != nil { // only fails for bad xs, which cannot happen here
			copy(dst, src)
			return
		}
		st.fits[row] = rf
	}
	fact := float64(st.Params.Factor(amp))
	for i := range dst {
		x := rf.peak + (float64(i)-rf.peak)/fact
		dst[i] = float32(rf.pl.Predict(x))
	}
}

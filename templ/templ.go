// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package templ provides access to the template tensor: the precomputed
extracellular voltage waveforms of each unit on each electrode.

Two layouts are supported, both row-major with time innermost:

	rank 4: unit x jitter x electrode x time
	rank 5: unit x drift x jitter x electrode x time

The jitter axis holds sub-sample shifted copies of the same waveform, from
which one is drawn at random for each spike.  The drift axis holds the
waveform at each discrete position along the unit's drift trajectory.
*/
package templ

import (
	"errors"
	"fmt"

	"github.com/chewxy/math32"
	"github.com/emer/etable/v2/etensor"
)

// ErrRank is returned for a template tensor that is neither rank 4 nor rank 5
var ErrRank = errors.New("templ: wrong templates shape")

// dimension names for the two layouts
var (
	Names4 = []string{"Unit", "Jitter", "Electrode", "Time"}
	Names5 = []string{"Unit", "Drift", "Jitter", "Electrode", "Time"}
)

// Templates wraps a rank 4 or rank 5 float32 tensor of template waveforms.
type Templates struct {
	Tsr *etensor.Float32
}

// New wraps an existing tensor, returning ErrRank if its rank is not 4 or 5
func New(tsr *etensor.Float32) (*Templates, error) {
	if tsr == nil {
		return nil, fmt.Errorf("%w: nil tensor", ErrRank)
	}
	nd := tsr.NumDims()
	if nd != 4 && nd != 5 {
		return nil, fmt.Errorf("%w: rank %d, must be 4 (unit x jitter x electrode x time) or 5 (unit x drift x jitter x electrode x time)", ErrRank, nd)
	}
	return &Templates{Tsr: tsr}, nil
}

// NewShape allocates a zero tensor of given shape and wraps it
func NewShape(shape ...int) (*Templates, error) {
	var names []string
	switch len(shape) {
	case 4:
		names = Names4
	case 5:
		names = Names5
	default:
		return nil, fmt.Errorf("%w: rank %d", ErrRank, len(shape))
	}
	return New(etensor.NewFloat32(shape, nil, names))
}

// Drifting returns true for the rank 5 layout with a drift axis
func (tp *Templates) Drifting() bool { return tp.Tsr.NumDims() == 5 }

// NUnits returns the number of units
func (tp *Templates) NUnits() int { return tp.Tsr.Dim(0) }

// NDrift returns the number of drift positions (1 for rank 4)
func (tp *Templates) NDrift() int {
	if tp.Drifting() {
		return tp.Tsr.Dim(1)
	}
	return 1
}

// NJitter returns the number of jittered copies per waveform
func (tp *Templates) NJitter() int { return tp.Tsr.Dim(tp.Tsr.NumDims() - 3) }

// NElectrodes returns the number of electrodes
func (tp *Templates) NElectrodes() int { return tp.Tsr.Dim(tp.Tsr.NumDims() - 2) }

// NSamples returns the number of time samples per waveform
func (tp *Templates) NSamples() int { return tp.Tsr.Dim(tp.Tsr.NumDims() - 1) }

// Offset returns the flat offset of the first time sample of the given waveform.
// drift is ignored for rank 4 tensors.
func (tp *Templates) Offset(unit, drift, jitter, elec int) int {
	if tp.Drifting() {
		return tp.Tsr.Offset([]int{unit, drift, jitter, elec, 0})
	}
	return tp.Tsr.Offset([]int{unit, jitter, elec, 0})
}

// Row returns the waveform of one unit on one electrode, as a view into the
// tensor values (no copy).
func (tp *Templates) Row(unit, drift, jitter, elec int) []float32 {
	off := tp.Offset(unit, drift, jitter, elec)
	return tp.Tsr.Values[off : off+tp.NSamples()]
}

// SetRow copies wave into the waveform of one unit on one electrode
func (tp *Templates) SetRow(unit, drift, jitter, elec int, wave []float32) {
	copy(tp.Row(unit, drift, jitter, elec), wave)
}

// PeakElectrode returns the electrode on which the unit's waveform
// (drift position 0, jitter 0) reaches the largest absolute amplitude.
func (tp *Templates) PeakElectrode(unit int) int {
	best := 0
	var bestAmp float32
	for e := 0; e < tp.NElectrodes(); e++ {
		amp := PeakAmp(tp.Row(unit, 0, 0, e))
		if amp > bestAmp {
			best, bestAmp = e, amp
		}
	}
	return best
}

// PeakAmp returns the largest absolute value of wave
func PeakAmp(wave []float32) float32 {
	var mx float32
	for _, v := range wave {
		mx = math32.Max(mx, math32.Abs(v))
	}
	return mx
}

// PeakIndex returns the index of the largest absolute value of wave
func PeakIndex(wave []float32) int {
	idx := 0
	var mx float32
	for i, v := range wave {
		if a := math32.Abs(v); a > mx {
			mx, idx = a, i
		}
	}
	return idx
}

// ArgMax returns the index of the largest value of peaks,
// used to select the peak electrode from externally supplied voltage peaks.
func ArgMax(peaks []float32) int {
	idx := 0
	for i, v := range peaks {
		if v > peaks[idx] {
			idx = i
		}
	}
	return idx
}

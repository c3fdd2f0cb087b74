// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package recgen

import (
	"fmt"
	"log"
	"slices"

	"github.com/emer/etable/v2/minmax"
	"github.com/goki/mat32"
	"gonum.org/v1/gonum/mat"

	"github.com/emer/spikesim/chunk"
	"github.com/emer/spikesim/conv"
	"github.com/emer/spikesim/drift"
	"github.com/emer/spikesim/modul"
	"github.com/emer/spikesim/output"
	"github.com/emer/spikesim/spikes"
	"github.com/emer/spikesim/templ"
)

// Convolution synthesizes the spiking activity of all units in a chunk:
// output.Recordings (electrodes x samples) and, if ExtractSpikeTraces,
// output.SpikeTraces (units x samples, each unit on its peak electrode).
type Convolution struct {

	// spike trains of all units
	Spikes *spikes.Matrix

	// unit templates: rank 4 (non-drifting) or rank 5 (drifting)
	Templates *templ.Templates

	// amplitude and shape modulation
	Mod modul.Params

	// drift dynamics, for DriftingUnits
	Drift drift.Params

	// units that drift; requires rank 5 templates
	DriftingUnits []int

	// per unit, the drift locations of its drift templates, in um
	Locs [][]mat32.Vec3

	// samples before and after the peak in each template
	Cut [2]int

	// sampling rate in Hz
	Fs float64 `def:"32000"`

	// if true, the spike trace of each unit is extracted
	ExtractSpikeTraces bool `def:"true"`

	// per unit, the peak voltage on each electrode, used to choose the
	// spike trace electrode.  If nil, the templates are used.
	VoltagePeaks [][]float32

	// storage precision of the outputs
	DType chunk.DType

	// base seed of all random draws
	Seed uint64

	// if true, log a summary of each chunk
	Verbose bool
}

func (cv *Convolution) Defaults() {
	cv.Mod.Defaults()
	cv.Drift.Defaults()
	cv.Fs = 32000
	cv.ExtractSpikeTraces = true
	cv.DType = chunk.Float32
}

// IsDrifting returns true if unit u drifts
func (cv *Convolution) IsDrifting(u int) bool {
	return slices.Contains(cv.DriftingUnits, u)
}

// Validate checks the configuration
func (cv *Convolution) Validate() error {
	if cv.Spikes == nil || cv.Templates == nil || cv.Templates.Tsr == nil {
		return fmt.Errorf("%w: missing spikes or templates", ErrConfig)
	}
	tp := cv.Templates
	if nd := tp.Tsr.NumDims(); nd != 4 && nd != 5 {
		return fmt.Errorf("%w: rank %d", templ.ErrRank, nd)
	}
	if cv.Spikes.NUnits() != tp.NUnits() {
		return fmt.Errorf("%w: %d spike trains for %d templates", ErrConfig, cv.Spikes.NUnits(), tp.NUnits())
	}
	if cv.Fs <= 0 {
		return fmt.Errorf("%w: sampling rate %v", ErrConfig, cv.Fs)
	}
	if len(cv.DriftingUnits) > 0 {
		if !tp.Drifting() {
			return fmt.Errorf("%w: drifting units need rank 5 templates", templ.ErrRank)
		}
		if err := cv.Drift.Validate(); err != nil {
			return err
		}
		for _, u := range cv.DriftingUnits {
			if u < 0 || u >= tp.NUnits() || u >= len(cv.Locs) {
				return fmt.Errorf("%w: drifting unit %d has no drift locations", ErrConfig, u)
			}
		}
	}
	if cv.ExtractSpikeTraces && cv.VoltagePeaks != nil && len(cv.VoltagePeaks) != tp.NUnits() {
		return fmt.Errorf("%w: %d voltage peaks for %d units", ErrConfig, len(cv.VoltagePeaks), tp.NUnits())
	}
	return nil
}

// TraceElectrode returns the electrode of the spike trace of unit u
func (cv *Convolution) TraceElectrode(u int) int {
	if cv.VoltagePeaks != nil {
		return templ.ArgMax(cv.VoltagePeaks[u])
	}
	return cv.Templates.PeakElectrode(u)
}

func (cv *Convolution) Chunk(c chunk.Chunk) (*output.Result, error) {
	if err := cv.Validate(); err != nil {
		return nil, err
	}
	if err := c.Validate(cv.Spikes.NSamples); err != nil {
		return nil, err
	}
	tp := cv.Templates
	nunits := tp.NUnits()
	nsamp := tp.NSamples()
	rec := mat.NewDense(tp.NElectrodes(), c.Len(), nil)
	var traces *mat.Dense
	if cv.ExtractSpikeTraces {
		traces = mat.NewDense(nunits, c.Len(), nil)
	}
	res := output.NewResult()
	res.TemplateIdxs = make([][]int, nunits)
	nspk := 0
	for u := 0; u < nunits; u++ {
		mu, err := cv.Mod.Unit(u, cv.Spikes.Count(u), tp.NElectrodes())
		if err != nil {
			return nil, err
		}
		k := conv.Kernel{Cut: cv.Cut, Mod: mu, Stretch: cv.Mod.Stretch, Seed: chunk.Seed(cv.Seed, c.ID, u)}
		if err := k.Validate(nsamp); err != nil {
			return nil, err
		}
		sp := conv.Window(cv.Spikes, u, c, k.Before(nsamp), nsamp)
		nspk += len(sp.Idxs)
		var didx []int
		if cv.IsDrifting(u) {
			didx, err = conv.Drifting(rec, tp, u, sp, &k, &cv.Drift, cv.Locs[u], cv.Fs)
		} else {
			err = conv.Templates(rec, tp, u, sp, &k)
		}
		if err != nil {
			return nil, fmt.Errorf("recgen: unit %d in %v: %w", u, c, err)
		}
		res.TemplateIdxs[u] = didx
		if traces != nil {
			if err := conv.Single(traces.RawRowView(u), tp, u, cv.TraceElectrode(u), sp, &k, didx); err != nil {
				return nil, fmt.Errorf("recgen: spike trace of unit %d in %v: %w", u, c, err)
			}
		}
	}
	cv.DType.Cast(rec)
	res.Blocks[output.Recordings] = rec
	if traces != nil {
		cv.DType.Cast(traces)
		res.Blocks[output.SpikeTraces] = traces
	}
	if cv.Verbose {
		am := BlockAvgMax(rec)
		log.Printf("convolution %v: %d spikes, electrode peak avg %.2f max %.2f\n", c, nspk, am.Avg, am.Max)
	}
	return res, nil
}

// BlockAvgMax returns the average and max over rows of the absolute peak
// of each row of block.
func BlockAvgMax(block *mat.Dense) minmax.AvgMax32 {
	var am minmax.AvgMax32
	am.Init()
	r, _ := block.Dims()
	for i := 0; i < r; i++ {
		var pk float64
		for _, v := range block.RawRowView(i) {
			pk = max(pk, v, -v)
		}
		am.UpdateValue(float32(pk), int32(i))
	}
	am.CalcAvg()
	return am
}

// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package conv convolves spike trains with template waveforms, one chunk at a
time.

Each spike places one template waveform, aligned so that the sample Cut[0]
of the waveform (the peak) falls on the spike, scaled by the spike's
modulation amplitude and, for bursting units, stretched in shape.  Every
spike whose placement intersects the chunk contributes, clipped to the chunk
at both ends, so the sum over chunks equals the convolution of the full
recording.

All random draws (the jittered copy used for each spike) come from a
generator seeded with Kernel.Seed, in spike order.  Two calls with the same
Kernel therefore make identical draws, which is what keeps the single
electrode trace of a unit bit-identical to its row in the full block.
*/
package conv

import (
	"errors"
	"fmt"

	"github.com/goki/mat32"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	"github.com/emer/spikesim/chunk"
	"github.com/emer/spikesim/drift"
	"github.com/emer/spikesim/modul"
	"github.com/emer/spikesim/spikes"
	"github.com/emer/spikesim/templ"
)

var (
	// ErrShape is returned when the destination does not match the chunk and templates
	ErrShape = errors.New("conv: destination shape mismatch")

	// ErrCut is returned for a cut-out window inconsistent with the templates
	ErrCut = errors.New("conv: invalid cut-out window")
)

// Kernel holds the per-unit, per-chunk convolution settings
type Kernel struct {

	// number of samples before and after the spike peak in each waveform.
	// Must sum to the template length; zero means half of the template each.
	Cut [2]int

	// modulation state of the unit
	Mod modul.Unit

	// shape stretch parameters, used for bursting units
	Stretch modul.StretchParams

	// seed of all random draws of this unit in this chunk
	Seed uint64
}

// Before returns the number of waveform samples before the peak for
// templates of n samples
func (k *Kernel) Before(n int) int {
	if k.Cut[0] == 0 && k.Cut[1] == 0 {
		return n / 2
	}
	return k.Cut[0]
}

// Validate checks the cut-out window against a template length of n samples
func (k *Kernel) Validate(n int) error {
	if k.Cut[0] == 0 && k.Cut[1] == 0 {
		return nil
	}
	if k.Cut[0] < 0 || k.Cut[1] < 0 || k.Cut[0]+k.Cut[1] != n {
		return fmt.Errorf("%w: cut out %v for templates of %d samples", ErrCut, k.Cut, n)
	}
	return nil
}

// Spikes is the set of spikes of one unit whose waveform placement
// intersects a chunk
type Spikes struct {

	// the chunk being synthesized
	Chunk chunk.Chunk

	// ordinal of the first spike in the unit's full spike train
	First int

	// absolute sample indices of the spikes
	Idxs []int
}

// Window selects the spikes of unit whose waveforms of n samples, with
// before samples before the peak, intersect chunk c.
func Window(sm *spikes.Matrix, unit int, c chunk.Chunk, before, n int) Spikes {
	lo := c.Start + before - n + 1
	hi := c.Stop + before
	first, idxs := sm.Window(unit, lo, hi)
	return Spikes{Chunk: c, First: first, Idxs: idxs}
}

// DriftIdxs returns the drift position index of each spike, evaluated at the
// absolute time of the spike.
func DriftIdxs(sp Spikes, dp *drift.Params, locs []mat32.Vec3, unit int, fs float64) []int {
	idxs := make([]int, len(sp.Idxs))
	for i, s := range sp.Idxs {
		idxs[i] = dp.Index(locs, unit, sp.Chunk.SampleTime(s, fs))
	}
	return idxs
}

// Templates adds the waveforms of all spikes of a non-drifting unit into rec,
// an electrodes x chunk-length block.  For drifting templates, drift
// position 0 is used.
func Templates(rec *mat.Dense, tp *templ.Templates, unit int, sp Spikes, k *Kernel) error {
	return convolve(rec, nil, tp, unit, sp, k, nil)
}

// Drifting adds the waveforms of all spikes of a drifting unit into rec,
// using for each spike the template at the unit's drift position at the
// time of the spike.  It returns the drift index used for each spike.
func Drifting(rec *mat.Dense, tp *templ.Templates, unit int, sp Spikes, k *Kernel, dp *drift.Params, locs []mat32.Vec3, fs float64) ([]int, error) {
	if !tp.Drifting() {
		return nil, fmt.Errorf("%w: drifting convolution needs rank 5 templates", templ.ErrRank)
	}
	if len(locs) != tp.NDrift() {
		return nil, fmt.Errorf("%w: unit %d has %d drift locations for %d drift templates", ErrShape, unit, len(locs), tp.NDrift())
	}
	didx := DriftIdxs(sp, dp, locs, unit, fs)
	return didx, convolve(rec, nil, tp, unit, sp, k, didx)
}

// Single adds the waveforms of all spikes of unit on one electrode only
// into trace, of chunk length.  didx are the drift indexes returned by
// Drifting, or nil.  Called with the same Kernel as the full convolution it
// reproduces that convolution's row for elec exactly.
func Single(trace []float64, tp *templ.Templates, unit, elec int, sp Spikes, k *Kernel, didx []int) error {
	if elec < 0 || elec >= tp.NElectrodes() {
		return fmt.Errorf("%w: electrode %d of %d", ErrShape, elec, tp.NElectrodes())
	}
	return convolve(nil, trace, tp, unit, sp, k, didx, elec)
}

// convolve is the shared kernel: adds into all rows of rec, or only into
// trace for the electrode elecs[0].
func convolve(rec *mat.Dense, trace []float64, tp *templ.Templates, unit int, sp Spikes, k *Kernel, didx []int, elecs ...int) error {
	nsamp := tp.NSamples()
	nlen := sp.Chunk.Len()
	if err := k.Validate(nsamp); err != nil {
		return err
	}
	if unit < 0 || unit >= tp.NUnits() {
		return fmt.Errorf("%w: unit %d of %d", ErrShape, unit, tp.NUnits())
	}
	if didx != nil && len(didx) != len(sp.Idxs) {
		return fmt.Errorf("%w: %d drift indexes for %d spikes", ErrShape, len(didx), len(sp.Idxs))
	}
	if rec != nil {
		r, c := rec.Dims()
		if r != tp.NElectrodes() || c != nlen {
			return fmt.Errorf("%w: block %dx%d, need %dx%d", ErrShape, r, c, tp.NElectrodes(), nlen)
		}
		elecs = make([]int, r)
		for e := range elecs {
			elecs[e] = e
		}
	} else if len(trace) != nlen {
		return fmt.Errorf("%w: trace of %d samples, need %d", ErrShape, len(trace), nlen)
	}

	before := k.Before(nsamp)
	njit := tp.NJitter()
	burst := k.Mod.Burst()
	nelec := tp.NElectrodes()
	var wbuf []float32
	var st *modul.Stretcher
	if burst {
		wbuf = make([]float32, nsamp)
		st = k.Stretch.NewStretcher(tp.NDrift()*njit*nelec, nsamp)
	}
	rnd := rand.New(rand.NewSource(k.Seed))
	for p, s := range sp.Idxs {
		jit := 0
		if njit > 1 {
			jit = rnd.Intn(njit)
		}
		ord := sp.First + p
		drf := 0
		if didx != nil {
			drf = didx[p]
		}
		off := s - before - sp.Chunk.Start
		for _, e := range elecs {
			wave := tp.Row(unit, drf, jit, e)
			if burst {
				st.Stretch(wbuf, (drf*njit+jit)*nelec+e, wave, k.Mod.BurstAmp(ord))
				wave = wbuf
			}
			dst := trace
			if rec != nil {
				dst = rec.RawRowView(e)
			}
			AddWave(dst, wave, k.Mod.Scale(ord, e), off)
		}
	}
	return nil
}

// AddWave adds scale * wave into dst starting at offset off (which can be
// negative), clipping the waveform to the bounds of dst at both ends.
func AddWave(dst []float64, wave []float32, scale float64, off int) {
	i0 := max(0, -off)
	i1 := min(len(wave), len(dst)-off)
	for i := i0; i < i1; i++ {
		dst[off+i] += scale * float64(wave[i])
	}
}

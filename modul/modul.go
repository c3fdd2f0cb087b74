// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package modul provides per-spike modulation of template waveforms:
amplitude scaling, either uniform across electrodes (Template mode) or
independently per electrode (Electrode mode), and for bursting units an
additional shape modulation that widens the waveform as its amplitude drops
within a burst.
*/
package modul

import (
	"errors"
	"fmt"
	"slices"

	"gonum.org/v1/gonum/mat"
)

// ErrModulation is returned for inconsistent modulation arrays
var ErrModulation = errors.New("modul: invalid modulation")

// Mode is the type of amplitude modulation
type Mode int32

const (
	// None applies no modulation: every spike has unit amplitude
	None Mode = iota

	// Electrode scales each spike independently on each electrode
	Electrode

	// Template scales each spike by one value on all electrodes
	Template

	ModeN
)

func (md Mode) String() string {
	switch md {
	case None:
		return "none"
	case Electrode:
		return "electrode"
	case Template:
		return "template"
	}
	return fmt.Sprintf("Mode(%d)", int32(md))
}

// ParseMode returns the Mode named by s
func ParseMode(s string) (Mode, error) {
	for md := None; md < ModeN; md++ {
		if md.String() == s {
			return md, nil
		}
	}
	return None, fmt.Errorf("%w: unknown mode %q", ErrModulation, s)
}

// Params are the modulation parameters for all units of a recording
type Params struct {

	// type of amplitude modulation
	Mode Mode

	// per-unit, per-spike amplitudes, for Template mode
	Amps [][]float32

	// per-unit spikes x electrodes amplitudes, for Electrode mode
	ElecAmps []*mat.Dense

	// units that fire in bursts
	Bursting []int

	// if true, bursting units are also modulated in shape
	ShapeMod bool

	// shape stretching parameters for bursting units
	Stretch StretchParams `view:"inline"`
}

func (mp *Params) Defaults() {
	mp.Mode = None
	mp.Stretch.Defaults()
}

// IsBursting returns true if unit u is listed as bursting
func (mp *Params) IsBursting(u int) bool {
	return slices.Contains(mp.Bursting, u)
}

// Unit returns the modulation state of unit u, which has nSpikes spikes
// over the full recording, for templates of nElec electrodes.
// Amplitude arrays must cover every spike (and every electrode).
func (mp *Params) Unit(u, nSpikes, nElec int) (Unit, error) {
	un := Unit{Mode: mp.Mode}
	switch mp.Mode {
	case None:
		return un, nil
	case Template:
		if u >= len(mp.Amps) || len(mp.Amps[u]) < nSpikes {
			return un, fmt.Errorf("%w: unit %d needs %d template amplitudes", ErrModulation, u, nSpikes)
		}
		un.Amp = mp.Amps[u]
	case Electrode:
		if u >= len(mp.ElecAmps) || mp.ElecAmps[u] == nil {
			return un, fmt.Errorf("%w: unit %d has no electrode amplitudes", ErrModulation, u)
		}
		r, c := mp.ElecAmps[u].Dims()
		if r < nSpikes {
			return un, fmt.Errorf("%w: unit %d needs %d electrode amplitude rows, has %d", ErrModulation, u, nSpikes, r)
		}
		if c != nElec {
			return un, fmt.Errorf("%w: unit %d has %d electrode amplitude columns for %d electrodes", ErrModulation, u, c, nElec)
		}
		un.ElecAmp = mp.ElecAmps[u]
	default:
		return un, fmt.Errorf("%w: %v", ErrModulation, mp.Mode)
	}
	un.Bursting = mp.IsBursting(u)
	un.ShapeMod = mp.ShapeMod
	return un, nil
}

// Unit is the modulation state of a single unit
type Unit struct {
	Mode     Mode
	Amp      []float32
	ElecAmp  *mat.Dense
	Bursting bool
	ShapeMod bool
}

// On returns true if amplitudes are modulated
func (un *Unit) On() bool { return un.Mode != None }

// Burst returns true if the waveform shape is modulated for this unit:
// only bursting units with shape modulation and an amplitude mode enabled.
func (un *Unit) Burst() bool {
	return un.On() && un.Bursting && un.ShapeMod
}

// Scale returns the amplitude of the spike with given ordinal on electrode elec
func (un *Unit) Scale(spike, elec int) float64 {
	switch un.Mode {
	case Template:
		return float64(un.Amp[spike])
	case Electrode:
		return un.ElecAmp.At(spike, elec)
	}
	return 1
}

// BurstAmp returns the amplitude that drives shape stretching for given spike:
// the template amplitude, or the mean across electrodes in Electrode mode.
func (un *Unit) BurstAmp(spike int) float32 {
	switch un.Mode {
	case Template:
		return un.Amp[spike]
	case Electrode:
		row := un.ElecAmp.RawRowView(spike)
		var sum float64
		for _, v := range row {
			sum += v
		}
		return float32(sum / float64(len(row)))
	}
	return 1
}

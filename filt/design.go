// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package filt

import (
	"fmt"
	"math"
	"math/cmplx"
)

// Kind is the type of a Butterworth filter
type Kind int32

const (
	// LowPass passes frequencies below the cutoff
	LowPass Kind = iota

	// HighPass passes frequencies above the cutoff
	HighPass

	KindN
)

func (kd Kind) String() string {
	switch kd {
	case LowPass:
		return "lowpass"
	case HighPass:
		return "highpass"
	}
	return fmt.Sprintf("Kind(%d)", int32(kd))
}

// Biquad is one second-order section, with A[0] == 1.
// First-order sections have B[2] == A[2] == 0.
type Biquad struct {
	B [3]float64
	A [3]float64
}

// Gain returns the DC gain of the section
func (bq *Biquad) Gain() float64 {
	return (bq.B[0] + bq.B[1] + bq.B[2]) / (bq.A[0] + bq.A[1] + bq.A[2])
}

// Butter designs a Butterworth filter of given order and cutoff fc (Hz) for
// sampling rate fs (Hz), as a cascade of second-order sections obtained by
// bilinear transform with frequency prewarping.  Each section is normalized
// to unit gain in its pass band (DC for LowPass, Nyquist for HighPass).
func Butter(order int, fc, fs float64, kind Kind) (Sos, error) {
	if order < 1 {
		return nil, fmt.Errorf("%w: order %d", ErrCutoff, order)
	}
	if fs <= 0 || fc <= 0 || fc >= fs/2 {
		return nil, fmt.Errorf("%w: cutoff %v Hz must be in (0, %v)", ErrCutoff, fc, fs/2)
	}
	k2 := 2 * fs
	wc := k2 * math.Tan(math.Pi*fc/fs)
	sos := make(Sos, 0, (order+1)/2)
	for k := 0; k < order/2; k++ {
		theta := math.Pi * float64(2*k+1+order) / float64(2*order)
		p := cmplx.Rect(1, theta)
		var s complex128
		if kind == HighPass {
			s = complex(wc, 0) / p
		} else {
			s = complex(wc, 0) * p
		}
		z := (complex(k2, 0) + s) / (complex(k2, 0) - s)
		bq := Biquad{A: [3]float64{1, -2 * real(z), real(z)*real(z) + imag(z)*imag(z)}}
		if kind == HighPass {
			g := (1 - bq.A[1] + bq.A[2]) / 4
			bq.B = [3]float64{g, -2 * g, g}
		} else {
			g := (1 + bq.A[1] + bq.A[2]) / 4
			bq.B = [3]float64{g, 2 * g, g}
		}
		sos = append(sos, bq)
	}
	if order%2 == 1 {
		// the real analog pole is -wc for both kinds
		zp := (k2 - wc) / (k2 + wc)
		if kind == HighPass {
			g := (1 + zp) / 2
			sos = append(sos, Biquad{B: [3]float64{g, -g, 0}, A: [3]float64{1, -zp, 0}})
		} else {
			g := (1 - zp) / 2
			sos = append(sos, Biquad{B: [3]float64{g, g, 0}, A: [3]float64{1, -zp, 0}})
		}
	}
	return sos, nil
}

// Peak designs a second-order peak (resonator) filter centered on f0 Hz with
// quality factor q, for sampling rate fs: the band-emphasis filter used to
// color noise.  Its gain is 1 at f0 and 0 at DC and Nyquist.
func Peak(f0, q, fs float64) (Biquad, error) {
	if fs <= 0 || f0 <= 0 || f0 >= fs/2 {
		return Biquad{}, fmt.Errorf("%w: peak frequency %v Hz must be in (0, %v)", ErrCutoff, f0, fs/2)
	}
	if q <= 0 {
		return Biquad{}, fmt.Errorf("%w: quality factor %v", ErrCutoff, q)
	}
	w0 := 2 * f0 / fs
	bw := math.Pi * w0 / q
	w0 *= math.Pi
	beta := math.Tan(bw / 2)
	gain := 1 / (1 + beta)
	return Biquad{
		B: [3]float64{1 - gain, 0, -(1 - gain)},
		A: [3]float64{1, -2 * gain * math.Cos(w0), 2*gain - 1},
	}, nil
}

// Response returns the magnitude of the frequency response of sos at f Hz
func (sos Sos) Response(f, fs float64) float64 {
	w := 2 * math.Pi * f / fs
	z1 := cmplx.Rect(1, -w)
	z2 := z1 * z1
	h := complex(1, 0)
	for _, bq := range sos {
		num := complex(bq.B[0], 0) + complex(bq.B[1], 0)*z1 + complex(bq.B[2], 0)*z2
		den := complex(bq.A[0], 0) + complex(bq.A[1], 0)*z1 + complex(bq.A[2], 0)*z2
		h *= num / den
	}
	return cmplx.Abs(h)
}

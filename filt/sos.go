// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package filt

import "slices"

// Sos is a cascade of second-order sections
type Sos []Biquad

// Zi returns the initial conditions of each section (direct form II
// transposed) for the steady state of a unit step input, so that filtering
// a signal starting at value x0 with x0 * Zi has no start-up transient.
func (sos Sos) Zi() [][2]float64 {
	zi := make([][2]float64, len(sos))
	scale := 1.0
	for i, bq := range sos {
		g := bq.Gain()
		zi[i][0] = scale * (g - bq.B[0])
		zi[i][1] = scale * (bq.B[2] - bq.A[2]*g)
		scale *= g
	}
	return zi
}

// Filter applies the cascade causally to x in place, with section states
// initialized to x0 * zi (zi may be nil for zero initial state).
func (sos Sos) Filter(x []float64, zi [][2]float64, x0 float64) {
	for i, bq := range sos {
		var z1, z2 float64
		if zi != nil {
			z1, z2 = x0*zi[i][0], x0*zi[i][1]
		}
		b0, b1, b2 := bq.B[0], bq.B[1], bq.B[2]
		a1, a2 := bq.A[1], bq.A[2]
		for j, v := range x {
			y := b0*v + z1
			z1 = b1*v - a1*y + z2
			z2 = b2*v - a2*y
			x[j] = y
		}
	}
}

// PadLen returns the default odd-extension length used by FiltFilt
func (sos Sos) PadLen() int {
	return 3 * (2*len(sos) + 1)
}

// FiltFilt applies the cascade forward and backward to x, giving a zero-phase
// result with squared magnitude response.  The signal is extended at both ends
// by odd reflection of padlen samples (limited to len(x)-1) to reduce edge
// transients.  x is not modified.
func FiltFilt(sos Sos, x []float64, padlen int) []float64 {
	n := len(x)
	out := make([]float64, n)
	if n < 2 || len(sos) == 0 {
		copy(out, x)
		return out
	}
	padlen = max(0, min(padlen, n-1))
	ext := make([]float64, n+2*padlen)
	for i := 0; i < padlen; i++ {
		ext[i] = 2*x[0] - x[padlen-i]
		ext[padlen+n+i] = 2*x[n-1] - x[n-2-i]
	}
	copy(ext[padlen:], x)

	zi := sos.Zi()
	sos.Filter(ext, zi, ext[0])
	slices.Reverse(ext)
	sos.Filter(ext, zi, ext[0])
	slices.Reverse(ext)
	copy(out, ext[padlen:padlen+n])
	return out
}

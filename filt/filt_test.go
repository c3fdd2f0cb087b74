// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package filt

import (
	"errors"
	"math"
	"testing"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	"github.com/emer/spikesim/chunk"
)

const fs = 32000.0

func near(a, b, tol float64) bool { return math.Abs(a-b) <= tol }

func TestButterResponse(t *testing.T) {
	for order := 1; order <= 6; order++ {
		lp, err := Butter(order, 1000, fs, LowPass)
		if err != nil {
			t.Fatal(err)
		}
		if len(lp) != (order+1)/2 {
			t.Errorf("order %d: %d sections", order, len(lp))
		}
		if g := lp.Response(0, fs); !near(g, 1, 1.0e-9) {
			t.Errorf("order %d lowpass DC gain %v", order, g)
		}
		if g := lp.Response(1000, fs); !near(g, math.Sqrt2/2, 1.0e-6) {
			t.Errorf("order %d lowpass cutoff gain %v", order, g)
		}
		if g := lp.Response(8000, fs); g > 0.5 {
			t.Errorf("order %d lowpass stopband gain %v", order, g)
		}

		hp, err := Butter(order, 300, fs, HighPass)
		if err != nil {
			t.Fatal(err)
		}
		if g := hp.Response(fs/2, fs); !near(g, 1, 1.0e-9) {
			t.Errorf("order %d highpass Nyquist gain %v", order, g)
		}
		if g := hp.Response(300, fs); !near(g, math.Sqrt2/2, 1.0e-6) {
			t.Errorf("order %d highpass cutoff gain %v", order, g)
		}
		if g := hp.Response(0, fs); g > 1.0e-9 {
			t.Errorf("order %d highpass DC gain %v", order, g)
		}
	}
	if _, err := Butter(3, 20000, fs, LowPass); !errors.Is(err, ErrCutoff) {
		t.Errorf("cutoff above Nyquist accepted")
	}
	if _, err := Butter(0, 100, fs, LowPass); !errors.Is(err, ErrCutoff) {
		t.Errorf("order 0 accepted")
	}
}

func TestPeak(t *testing.T) {
	bq, err := Peak(500, 1, fs)
	if err != nil {
		t.Fatal(err)
	}
	sos := Sos{bq}
	if g := sos.Response(500, fs); !near(g, 1, 1.0e-9) {
		t.Errorf("peak gain %v", g)
	}
	if g := sos.Response(0, fs); g > 1.0e-12 {
		t.Errorf("DC gain %v", g)
	}
	if g := sos.Response(8000, fs); g > 0.2 {
		t.Errorf("off-peak gain %v", g)
	}
	if _, err := Peak(500, 0, fs); !errors.Is(err, ErrCutoff) {
		t.Errorf("zero Q accepted")
	}
}

func TestFiltFiltConstant(t *testing.T) {
	lp, _ := Butter(4, 2000, fs, LowPass)
	x := make([]float64, 500)
	for i := range x {
		x[i] = 3.5
	}
	y := FiltFilt(lp, x, lp.PadLen())
	for i, v := range y {
		if !near(v, 3.5, 1.0e-9) {
			t.Fatalf("constant input changed at %d: %v", i, v)
		}
	}
	if x[0] != 3.5 {
		t.Errorf("input modified")
	}
}

// TestFiltFiltZeroPhase checks that a pass band sine keeps its phase and amplitude
func TestFiltFiltZeroPhase(t *testing.T) {
	fp := Params{}
	fp.Defaults()
	sos, err := fp.Design()
	if err != nil {
		t.Fatal(err)
	}
	n := 3200
	x := make([]float64, n)
	for i := range x {
		x[i] = math.Sin(2 * math.Pi * 1000 * float64(i) / fs)
	}
	y := FiltFilt(sos, x, 1000)
	for i := 800; i < 2400; i++ {
		if !near(y[i], x[i], 0.02) {
			t.Fatalf("sample %d: %v vs %v", i, y[i], x[i])
		}
	}
}

// TestFallback checks that a band with upper edge above Nyquist filters
// exactly as the high-pass at the lower edge alone.
func TestFallback(t *testing.T) {
	rnd := rand.New(rand.NewSource(3))
	block := mat.NewDense(4, 2000, nil)
	for i := 0; i < 4; i++ {
		for j := 0; j < 2000; j++ {
			block.Set(i, j, rnd.NormFloat64())
		}
	}
	band := Params{}
	band.Defaults()
	band.Cutoff = []float64{300, 20000}
	if !band.HighPassOnly() {
		t.Errorf("band above Nyquist not detected")
	}
	hp := band
	hp.Cutoff = []float64{300}

	fb, err := Apply(block, &band)
	if err != nil {
		t.Fatal(err)
	}
	fh, err := Apply(block, &hp)
	if err != nil {
		t.Fatal(err)
	}
	if !mat.Equal(fb, fh) {
		t.Errorf("fallback differs from high-pass")
	}

	bp := band
	bp.Cutoff = []float64{300, 6000}
	fbp, err := Apply(block, &bp)
	if err != nil {
		t.Fatal(err)
	}
	if mat.Equal(fbp, fh) {
		t.Errorf("genuine band-pass equals high-pass")
	}
}

func TestApplyCast(t *testing.T) {
	block := mat.NewDense(1, 100, nil)
	for j := 0; j < 100; j++ {
		block.Set(0, j, math.Sin(float64(j)))
	}
	fp := Params{}
	fp.Defaults()
	fp.DType = chunk.Float32
	out, err := Apply(block, &fp)
	if err != nil {
		t.Fatal(err)
	}
	for _, v := range out.RawRowView(0) {
		if v != float64(float32(v)) {
			t.Fatalf("output not cast to float32: %v", v)
		}
	}
}

func TestCutoffErrors(t *testing.T) {
	block := mat.NewDense(1, 10, nil)
	for _, cut := range [][]float64{nil, {100, 200, 300}, {6000, 300}, {0}, {-5, 300}} {
		fp := Params{}
		fp.Defaults()
		fp.Cutoff = cut
		if _, err := Apply(block, &fp); !errors.Is(err, ErrCutoff) {
			t.Errorf("cutoff %v accepted: %v", cut, err)
		}
	}
}

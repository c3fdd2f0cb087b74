// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package noise

import (
	"errors"
	"math"
	"testing"

	"github.com/goki/mat32"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/emer/spikesim/chunk"
)

func blockStd(m *mat.Dense) float64 {
	return stat.PopStdDev(m.RawMatrix().Data, nil)
}

func TestUncorrelated(t *testing.T) {
	ns := Params{}
	ns.Defaults()
	ns.Level = 15
	blk, err := Uncorrelated(4, 20000, &ns, 1)
	if err != nil {
		t.Fatal(err)
	}
	if r, c := blk.Dims(); r != 4 || c != 20000 {
		t.Fatalf("block %dx%d", r, c)
	}
	if std := blockStd(blk); math.Abs(std-15) > 0.3 {
		t.Errorf("std %v, want about 15", std)
	}
	again, _ := Uncorrelated(4, 20000, &ns, 1)
	if !mat.Equal(blk, again) {
		t.Errorf("same seed gives different noise")
	}
	other, _ := Uncorrelated(4, 20000, &ns, 2)
	if mat.Equal(blk, other) {
		t.Errorf("different seeds give same noise")
	}
	for _, v := range blk.RawMatrix().Data {
		if v != float64(float32(v)) {
			t.Fatalf("not cast to float32")
		}
	}
}

// TestRenormalization checks that colored noise has exactly the configured
// standard deviation even though filtering changes the variance.
func TestRenormalization(t *testing.T) {
	for _, dt := range []chunk.DType{chunk.Float64, chunk.Float32} {
		ns := Params{}
		ns.Defaults()
		ns.Color = true
		ns.Level = 7
		ns.DType = dt
		blk, err := Uncorrelated(3, 5000, &ns, 9)
		if err != nil {
			t.Fatal(err)
		}
		tol := 1.0e-9
		if dt == chunk.Float32 {
			tol = 1.0e-4
		}
		if std := blockStd(blk); math.Abs(std-7) > tol {
			t.Errorf("%v colored std %v, want 7", dt, std)
		}
	}
}

func TestCorrelated(t *testing.T) {
	locs := []mat32.Vec3{{}, {Y: 10}, {Y: 20}, {Y: 300}}
	cov, err := DistanceCov(locs, 30)
	if err != nil {
		t.Fatal(err)
	}
	if cov.At(0, 0) != 1 || math.Abs(cov.At(0, 1)-math.Pow(0.5, 1.0/3)) > 1.0e-6 {
		t.Errorf("covariance %v %v", cov.At(0, 0), cov.At(0, 1))
	}
	ns := Params{}
	ns.Defaults()
	ns.DType = chunk.Float64
	ns.Level = 5
	blk, err := Correlated(cov, 20000, &ns, 4)
	if err != nil {
		t.Fatal(err)
	}
	if std := blockStd(blk); math.Abs(std-5) > 1.0e-9 {
		t.Errorf("correlated std %v, want 5", std)
	}
	near := stat.Correlation(blk.RawRowView(0), blk.RawRowView(1), nil)
	far := stat.Correlation(blk.RawRowView(0), blk.RawRowView(3), nil)
	if near < 0.6 {
		t.Errorf("neighbor correlation %v too low", near)
	}
	if math.Abs(far) > 0.1 {
		t.Errorf("distant correlation %v too high", far)
	}

	ns.Color = true
	cblk, err := Correlated(cov, 20000, &ns, 4)
	if err != nil {
		t.Fatal(err)
	}
	if std := blockStd(cblk); math.Abs(std-5) > 1.0e-9 {
		t.Errorf("colored correlated std %v, want 5", std)
	}
	if c := stat.Correlation(cblk.RawRowView(0), cblk.RawRowView(1), nil); c < 0.5 {
		t.Errorf("coloring lost spatial correlation: %v", c)
	}
}

func TestErrors(t *testing.T) {
	ns := Params{}
	ns.Defaults()
	ns.DType = chunk.Float64
	cov := mat.NewSymDense(1, []float64{1})
	if _, err := Correlated(cov, 1, &ns, 1); !errors.Is(err, ErrDegenerate) {
		t.Errorf("zero variance block not detected: %v", err)
	}
	bad := mat.NewSymDense(2, []float64{1, 2, 2, 1})
	if _, err := Correlated(bad, 10, &ns, 1); !errors.Is(err, ErrParams) {
		t.Errorf("indefinite covariance accepted: %v", err)
	}
	ns.Level = -1
	if _, err := Uncorrelated(2, 10, &ns, 1); !errors.Is(err, ErrParams) {
		t.Errorf("negative level accepted")
	}
	ns.Level = 1
	ns.Color = true
	ns.ColorPeak = 20000
	if _, err := Uncorrelated(2, 10, &ns, 1); !errors.Is(err, ErrParams) {
		t.Errorf("color peak above Nyquist accepted")
	}
	ns.Color = false
	ns.Level = 0
	blk, err := Uncorrelated(2, 10, &ns, 1)
	if err != nil || mat.Sum(blk) != 0 {
		t.Errorf("zero level: %v", err)
	}
	if _, err := DistanceCov(nil, 10); !errors.Is(err, ErrParams) {
		t.Errorf("empty locations accepted")
	}
}

// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package conv

import (
	"errors"
	"testing"
	"time"

	"github.com/goki/mat32"
	"gonum.org/v1/gonum/mat"

	"github.com/emer/spikesim/chunk"
	"github.com/emer/spikesim/drift"
	"github.com/emer/spikesim/modul"
	"github.com/emer/spikesim/spikes"
	"github.com/emer/spikesim/templ"
)

const nsamp = 8

// testTemplates returns templates with distinct values for every
// unit, drift, jitter and electrode, peaking at sample 3
func testTemplates(t *testing.T, shape ...int) *templ.Templates {
	tp, err := templ.NewShape(shape...)
	if err != nil {
		t.Fatal(err)
	}
	base := []float32{0, -1, -3, -10, -4, 2, 1, 0}
	for u := 0; u < tp.NUnits(); u++ {
		for d := 0; d < tp.NDrift(); d++ {
			for j := 0; j < tp.NJitter(); j++ {
				for e := 0; e < tp.NElectrodes(); e++ {
					row := tp.Row(u, d, j, e)
					gain := float32(1+u) * (1 + 0.1*float32(d)) * (1 + 0.01*float32(j)) / float32(1+e)
					for i := range row {
						row[i] = base[i] * gain
					}
				}
			}
		}
	}
	return tp
}

func TestPlacement(t *testing.T) {
	tp := testTemplates(t, 1, 1, 2, nsamp)
	sm, _ := spikes.NewMatrix(40, [][]int{{10}})
	c := chunk.Chunk{ID: 0, Start: 0, Stop: 40}
	k := &Kernel{Cut: [2]int{3, 5}}
	sp := Window(sm, 0, c, k.Before(nsamp), nsamp)
	rec := mat.NewDense(2, 40, nil)
	if err := Templates(rec, tp, 0, sp, k); err != nil {
		t.Fatal(err)
	}
	if rec.At(0, 10) != -10 || rec.At(1, 10) != -5 {
		t.Errorf("peak not aligned on spike: %v %v", rec.At(0, 10), rec.At(1, 10))
	}
	if rec.At(0, 7) != 0 || rec.At(0, 8) != -1 || rec.At(0, 12) != 2 {
		t.Errorf("waveform misplaced: %v", mat.Formatted(rec.Slice(0, 1, 6, 16)))
	}
}

// TestChunkSum checks that spikes straddling chunk boundaries contribute to
// both chunks, so the chunked result equals the unchunked one.
func TestChunkSum(t *testing.T) {
	tp := testTemplates(t, 1, 1, 3, nsamp)
	sm, _ := spikes.NewMatrix(100, [][]int{{1, 20, 48, 50, 52, 75, 98}})
	k := &Kernel{Cut: [2]int{3, 5}}

	full := mat.NewDense(3, 100, nil)
	whole := chunk.Chunk{ID: 0, Start: 0, Stop: 100}
	if err := Templates(full, tp, 0, Window(sm, 0, whole, 3, nsamp), k); err != nil {
		t.Fatal(err)
	}
	chunks, _ := chunk.Partition(100, 17, 1000)
	for _, c := range chunks {
		blk := mat.NewDense(3, c.Len(), nil)
		if err := Templates(blk, tp, 0, Window(sm, 0, c, 3, nsamp), k); err != nil {
			t.Fatal(err)
		}
		for e := 0; e < 3; e++ {
			for i := 0; i < c.Len(); i++ {
				if blk.At(e, i) != full.At(e, c.Start+i) {
					t.Errorf("chunk %d electrode %d sample %d: %v vs %v", c.ID, e, c.Start+i, blk.At(e, i), full.At(e, c.Start+i))
				}
			}
		}
	}
}

// TestSeedConsistency checks that the single electrode trace reproduces the
// full convolution exactly when jitter draws and shape modulation are on.
func TestSeedConsistency(t *testing.T) {
	tp := testTemplates(t, 1, 5, 4, nsamp)
	sm, _ := spikes.NewMatrix(200, [][]int{{5, 30, 33, 36, 90, 150, 151, 199}})
	mp := modul.Params{}
	mp.Defaults()
	mp.Mode = modul.Template
	mp.Amps = [][]float32{{1, 0.9, 0.6, 0.3, 1.1, 0.8, 0.5, 1}}
	mp.Bursting = []int{0}
	mp.ShapeMod = true
	un, err := mp.Unit(0, sm.Count(0), 4)
	if err != nil {
		t.Fatal(err)
	}
	c := chunk.Chunk{ID: 3, Start: 20, Stop: 160}
	k := &Kernel{Cut: [2]int{3, 5}, Mod: un, Stretch: mp.Stretch, Seed: chunk.Seed(99, c.ID, 0)}
	sp := Window(sm, 0, c, 3, nsamp)

	rec := mat.NewDense(4, c.Len(), nil)
	if err := Templates(rec, tp, 0, sp, k); err != nil {
		t.Fatal(err)
	}
	for e := 0; e < 4; e++ {
		trace := make([]float64, c.Len())
		if err := Single(trace, tp, 0, e, sp, k, nil); err != nil {
			t.Fatal(err)
		}
		for i, v := range trace {
			if v != rec.At(e, i) {
				t.Fatalf("electrode %d sample %d: trace %v != full %v", e, i, v, rec.At(e, i))
			}
		}
	}

	// a different seed draws different jitters
	k2 := *k
	k2.Seed++
	other := make([]float64, c.Len())
	if err := Single(other, tp, 0, 0, sp, &k2, nil); err != nil {
		t.Fatal(err)
	}
	same := true
	for i, v := range other {
		if v != rec.At(0, i) {
			same = false
		}
	}
	if same {
		t.Errorf("trace independent of seed")
	}
}

func TestElectrodeModulation(t *testing.T) {
	tp := testTemplates(t, 1, 1, 2, nsamp)
	sm, _ := spikes.NewMatrix(30, [][]int{{10, 20}})
	mp := modul.Params{Mode: modul.Electrode}
	mp.ElecAmps = []*mat.Dense{mat.NewDense(2, 2, []float64{0.5, 2, 1, 1})}
	un, err := mp.Unit(0, 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	c := chunk.Chunk{Start: 0, Stop: 30}
	k := &Kernel{Cut: [2]int{3, 5}, Mod: un}
	rec := mat.NewDense(2, 30, nil)
	if err := Templates(rec, tp, 0, Window(sm, 0, c, 3, nsamp), k); err != nil {
		t.Fatal(err)
	}
	if rec.At(0, 10) != -5 || rec.At(1, 10) != -10 || rec.At(0, 20) != -10 {
		t.Errorf("electrode amplitudes not applied: %v %v %v", rec.At(0, 10), rec.At(1, 10), rec.At(0, 20))
	}
}

func TestDrifting(t *testing.T) {
	tp := testTemplates(t, 1, 4, 1, 2, nsamp)
	sm, _ := spikes.NewMatrix(4000, [][]int{{100, 1100, 2100, 3100}})
	locs := []mat32.Vec3{{Z: 0}, {Z: 10}, {Z: 20}, {Z: 30}}
	dp := &drift.Params{}
	dp.Defaults()
	dp.Velocity = mat32.Vec3{Z: 10}
	c := chunk.Chunk{ID: 0, Start: 0, Stop: 4000}
	k := &Kernel{Cut: [2]int{3, 5}}
	sp := Window(sm, 0, c, 3, nsamp)
	rec := mat.NewDense(2, 4000, nil)
	didx, err := Drifting(rec, tp, 0, sp, k, dp, locs, 1000)
	if err != nil {
		t.Fatal(err)
	}
	want := []int{0, 1, 2, 3}
	for i := range want {
		if didx[i] != want[i] {
			t.Errorf("spike %d drift index %d, want %d", i, didx[i], want[i])
		}
	}
	for i, s := range sm.Units[0] {
		exp := -10 * (1 + 0.1*float64(want[i]))
		if d := rec.At(0, s) - exp; d > 1.0e-5 || d < -1.0e-5 {
			t.Errorf("spike %d peak %v, want %v", i, rec.At(0, s), exp)
		}
	}

	// drift indexes depend only on spike time, not on the chunk
	c2 := chunk.Chunk{ID: 5, Start: 2000, Stop: 4000, StartTime: 2 * time.Second}
	didx2 := DriftIdxs(Window(sm, 0, c2, 3, nsamp), dp, locs, 0, 1000)
	if len(didx2) != 2 || didx2[0] != 2 || didx2[1] != 3 {
		t.Errorf("chunk drift indexes %v", didx2)
	}

	trace := make([]float64, 4000)
	if err := Single(trace, tp, 0, 1, sp, k, didx); err != nil {
		t.Fatal(err)
	}
	for i, v := range trace {
		if v != rec.At(1, i) {
			t.Fatalf("drifting trace differs at %d", i)
		}
	}
}

func TestErrors(t *testing.T) {
	tp := testTemplates(t, 1, 1, 2, nsamp)
	sm, _ := spikes.NewMatrix(30, [][]int{{10}})
	c := chunk.Chunk{Start: 0, Stop: 30}
	k := &Kernel{Cut: [2]int{3, 4}}
	sp := Window(sm, 0, c, 3, nsamp)
	if err := Templates(mat.NewDense(2, 30, nil), tp, 0, sp, k); !errors.Is(err, ErrCut) {
		t.Errorf("bad cut accepted: %v", err)
	}
	k.Cut = [2]int{3, 5}
	if err := Templates(mat.NewDense(3, 30, nil), tp, 0, sp, k); !errors.Is(err, ErrShape) {
		t.Errorf("bad block accepted: %v", err)
	}
	if _, err := Drifting(mat.NewDense(2, 30, nil), tp, 0, sp, k, &drift.Params{}, nil, 1000); !errors.Is(err, templ.ErrRank) {
		t.Errorf("rank 4 drifting accepted: %v", err)
	}
	if err := Single(make([]float64, 30), tp, 0, 5, sp, k, nil); !errors.Is(err, ErrShape) {
		t.Errorf("bad electrode accepted: %v", err)
	}
}

func TestAddWave(t *testing.T) {
	dst := make([]float64, 5)
	AddWave(dst, []float32{1, 2, 3}, 2, -1)
	AddWave(dst, []float32{1, 2, 3}, 1, 4)
	want := []float64{4, 6, 0, 0, 1}
	for i := range want {
		if dst[i] != want[i] {
			t.Errorf("dst %v, want %v", dst, want)
			break
		}
	}
}

// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package spikes holds the spike matrix: for each unit, the ordered sample
indices at which that unit fires over the full recording timeline.

This is the sparse equivalent of a units x samples binary indicator matrix,
which can be converted to and from with FromIndicator and Indicator.
The matrix is read-only during synthesis.
*/
package spikes

import (
	"errors"
	"fmt"
	"sort"
)

// ErrSpikes is returned for malformed spike trains
var ErrSpikes = errors.New("spikes: invalid spike matrix")

// Matrix is the set of spike trains of all units, as sorted sample indices.
type Matrix struct {

	// total number of samples of the timeline
	NSamples int

	// per-unit spike sample indices, sorted ascending, each in [0, NSamples)
	Units [][]int
}

// NewMatrix returns a matrix for given spike trains, after validating them
func NewMatrix(nSamples int, units [][]int) (*Matrix, error) {
	sm := &Matrix{NSamples: nSamples, Units: units}
	if err := sm.Validate(); err != nil {
		return nil, err
	}
	return sm, nil
}

// FromIndicator builds a Matrix from per-unit binary indicator rows,
// which must all have the same length.
func FromIndicator(rows [][]bool) (*Matrix, error) {
	sm := &Matrix{Units: make([][]int, len(rows))}
	for u, row := range rows {
		if u == 0 {
			sm.NSamples = len(row)
		} else if len(row) != sm.NSamples {
			return nil, fmt.Errorf("%w: unit %d has %d samples, expected %d", ErrSpikes, u, len(row), sm.NSamples)
		}
		for i, on := range row {
			if on {
				sm.Units[u] = append(sm.Units[u], i)
			}
		}
	}
	return sm, nil
}

// NUnits returns the number of units
func (sm *Matrix) NUnits() int { return len(sm.Units) }

// Validate checks that all spike indices are in range and strictly ascending
func (sm *Matrix) Validate() error {
	for u, st := range sm.Units {
		prev := -1
		for _, s := range st {
			if s < 0 || s >= sm.NSamples {
				return fmt.Errorf("%w: unit %d spike at %d out of [0, %d)", ErrSpikes, u, s, sm.NSamples)
			}
			if s <= prev {
				return fmt.Errorf("%w: unit %d spikes not strictly ascending at %d", ErrSpikes, u, s)
			}
			prev = s
		}
	}
	return nil
}

// Window returns the spikes of unit u with sample index in [lo, hi),
// along with the ordinal (position in the unit's full spike train) of the
// first returned spike.  The ordinal is what indexes per-spike arrays such
// as amplitude modulation values.  The returned slice shares memory with sm.
func (sm *Matrix) Window(u, lo, hi int) (first int, idxs []int) {
	st := sm.Units[u]
	first = sort.SearchInts(st, lo)
	last := sort.SearchInts(st, hi)
	if last < first {
		last = first
	}
	return first, st[first:last]
}

// Indicator returns the binary indicator of unit u over samples [lo, hi)
func (sm *Matrix) Indicator(u, lo, hi int) []bool {
	ind := make([]bool, hi-lo)
	_, idxs := sm.Window(u, lo, hi)
	for _, s := range idxs {
		ind[s-lo] = true
	}
	return ind
}

// Count returns the number of spikes of unit u
func (sm *Matrix) Count(u int) int { return len(sm.Units[u]) }

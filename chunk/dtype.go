// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package chunk

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// DType is the storage precision of synthesized blocks.
// Blocks are always computed as float64 gonum matrices, and
// Cast rounds them to the storage precision.
type DType int32

const (
	// Float32 rounds values to single precision
	Float32 DType = iota

	// Float64 keeps full double precision
	Float64

	DTypeN
)

func (dt DType) String() string {
	switch dt {
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	}
	return fmt.Sprintf("DType(%d)", int32(dt))
}

// Size returns the number of bytes per stored element
func (dt DType) Size() int {
	if dt == Float64 {
		return 8
	}
	return 4
}

// Cast rounds all values of m to the storage precision, in place.
func (dt DType) Cast(m *mat.Dense) {
	if dt != Float32 || m == nil {
		return
	}
	r, c := m.Dims()
	raw := m.RawMatrix()
	for i := 0; i < r; i++ {
		row := raw.Data[i*raw.Stride : i*raw.Stride+c]
		for j, v := range row {
			row[j] = float64(float32(v))
		}
	}
}

// Value rounds a single value to the storage precision
func (dt DType) Value(v float64) float64 {
	if dt == Float32 {
		return float64(float32(v))
	}
	return v
}

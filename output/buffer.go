// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package output

import (
	"io"
	"sync"

	"gonum.org/v1/gonum/mat"
)

// Buffer is a full-length channels x samples destination that chunks are
// added into.
type Buffer interface {

	// Dims returns the number of channels and samples
	Dims() (rows, cols int)

	// AddCols adds block into columns [i0, i0+cols of block)
	AddCols(i0 int, block mat.Matrix)

	// Cols returns a copy of columns [i0, i1)
	Cols(i0, i1 int) *mat.Dense
}

// View is a Buffer opened for a single commit, closed when done
type View interface {
	Buffer
	io.Closer
}

// Reopener is a Buffer whose view can be rebuilt from its backing storage,
// used when a worker's handle may not have the right memory layout.
// Reopen returns a new View and must not modify the receiver, which other
// workers may be using.
type Reopener interface {
	Buffer
	Reopen() (View, error)
}

// DenseBuffer is an in-process Buffer.  Goroutines may add into disjoint
// column ranges concurrently.
type DenseBuffer struct {
	Mat *mat.Dense
}

// NewDenseBuffer returns a zeroed rows x cols buffer
func NewDenseBuffer(rows, cols int) *DenseBuffer {
	return &DenseBuffer{Mat: mat.NewDense(rows, cols, nil)}
}

func (db *DenseBuffer) Dims() (rows, cols int) { return db.Mat.Dims() }

func (db *DenseBuffer) AddCols(i0 int, block mat.Matrix) {
	r, c := block.Dims()
	view := db.Mat.Slice(0, r, i0, i0+c).(*mat.Dense)
	view.Add(view, block)
}

func (db *DenseBuffer) Cols(i0, i1 int) *mat.Dense {
	r, _ := db.Mat.Dims()
	return mat.DenseCopyOf(db.Mat.Slice(0, r, i0, i1))
}

// LockedBuffer serializes all access to a Buffer, for chunk operations
// whose column ranges may overlap.
type LockedBuffer struct {
	Buffer
	mu sync.Mutex
}

func (lb *LockedBuffer) AddCols(i0 int, block mat.Matrix) {
	lb.mu.Lock()
	lb.Buffer.AddCols(i0, block)
	lb.mu.Unlock()
}

func (lb *LockedBuffer) Cols(i0, i1 int) *mat.Dense {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return lb.Buffer.Cols(i0, i1)
}

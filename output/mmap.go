// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package output

import (
	"errors"
	"fmt"
	"os"
	"unsafe"

	"github.com/c2h5oh/datasize"
	"golang.org/x/sys/unix"
	"gonum.org/v1/gonum/mat"

	"github.com/emer/spikesim/chunk"
)

// Handle identifies a file-backed buffer so that other workers can open
// their own view of it.
type Handle struct {

	// backing file
	Path string

	// number of channels and samples
	Rows, Cols int

	// element type
	DType chunk.DType

	// element offsets between successive rows and columns.
	// Zero means the native sample-major layout: {1, Rows}.
	Strides [2]int
}

// SampleMajor returns the strides of the native file layout, in which
// all channels of one sample are contiguous.
func (h *Handle) SampleMajor() [2]int { return [2]int{1, h.Rows} }

// Size returns the size of the backing file in bytes
func (h *Handle) Size() int { return h.Rows * h.Cols * h.DType.Size() }

// MmapBuffer is a Buffer backed by a memory-mapped file, shared by all
// workers that open its Handle.  The file holds the channels x samples
// matrix in sample-major order (element (r, c) at c*Rows + r).
type MmapBuffer struct {
	hnd  Handle
	file *os.File
	data []byte
	f32  []float32
	f64  []float64
}

// CreateMmap creates (or truncates) the backing file, zero-filled, and maps it
func CreateMmap(path string, rows, cols int, dt chunk.DType) (*MmapBuffer, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("%w: buffer %dx%d", ErrShape, rows, cols)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0666)
	if err != nil {
		return nil, err
	}
	h := Handle{Path: path, Rows: rows, Cols: cols, DType: dt}
	if err := f.Truncate(int64(h.Size())); err != nil {
		f.Close()
		return nil, err
	}
	f.Close()
	return OpenMmap(h)
}

// OpenMmap maps an existing buffer file with the layout given by h
func OpenMmap(h Handle) (*MmapBuffer, error) {
	mb := &MmapBuffer{hnd: h}
	if mb.hnd.Strides == [2]int{} {
		mb.hnd.Strides = h.SampleMajor()
	}
	if err := mb.mmap(); err != nil {
		return nil, err
	}
	return mb, nil
}

func (mb *MmapBuffer) mmap() error {
	h := &mb.hnd
	f, err := os.OpenFile(h.Path, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}
	if st.Size() != int64(h.Size()) {
		f.Close()
		return fmt.Errorf("%w: %s is %d bytes, want %d for %dx%d %v", ErrShape, h.Path, st.Size(), h.Size(), h.Rows, h.Cols, h.DType)
	}
	data, err := unix.Mmap(int(f.Fd()), 0, h.Size(), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return fmt.Errorf("output: mmap %s: %w", h.Path, err)
	}
	mb.file = f
	mb.data = data
	n := h.Rows * h.Cols
	switch h.DType {
	case chunk.Float32:
		mb.f32 = unsafe.Slice((*float32)(unsafe.Pointer(&data[0])), n)
	default:
		mb.f64 = unsafe.Slice((*float64)(unsafe.Pointer(&data[0])), n)
	}
	return nil
}

// Handle returns the handle for opening this buffer in another worker
func (mb *MmapBuffer) Handle() Handle { return mb.hnd }

func (mb *MmapBuffer) Dims() (rows, cols int) { return mb.hnd.Rows, mb.hnd.Cols }

func (mb *MmapBuffer) index(r, c int) int {
	return r*mb.hnd.Strides[0] + c*mb.hnd.Strides[1]
}

func (mb *MmapBuffer) At(r, c int) float64 {
	i := mb.index(r, c)
	if mb.f32 != nil {
		return float64(mb.f32[i])
	}
	return mb.f64[i]
}

func (mb *MmapBuffer) AddCols(i0 int, block mat.Matrix) {
	r, c := block.Dims()
	for j := 0; j < c; j++ {
		for i := 0; i < r; i++ {
			k := mb.index(i, i0+j)
			if mb.f32 != nil {
				mb.f32[k] += float32(block.At(i, j))
			} else {
				mb.f64[k] += block.At(i, j)
			}
		}
	}
}

func (mb *MmapBuffer) Cols(i0, i1 int) *mat.Dense {
	out := mat.NewDense(mb.hnd.Rows, i1-i0, nil)
	for i := 0; i < mb.hnd.Rows; i++ {
		for j := i0; j < i1; j++ {
			out.Set(i, j-i0, mb.At(i, j))
		}
	}
	return out
}

// Reopen returns a new view of the backing file: the file is mapped as a
// row-major array with the dimensions reversed (samples x channels), then
// transposed.  Worker-side handle materialization is known to canonicalize
// the strides to row-major channels x samples, which would put column slice
// writes at the wrong offsets.  The receiver is left as is.
func (mb *MmapBuffer) Reopen() (View, error) {
	h := mb.hnd
	rev := [2]int{h.Cols, h.Rows}
	rowMajor := [2]int{rev[1], 1}
	h.Strides = [2]int{rowMajor[1], rowMajor[0]}
	vw, err := OpenMmap(h)
	if err != nil {
		return nil, err
	}
	return vw, nil
}

// Flush writes modified pages back to the file
func (mb *MmapBuffer) Flush() error {
	if mb.data == nil {
		return nil
	}
	return unix.Msync(mb.data, unix.MS_SYNC)
}

func (mb *MmapBuffer) unmap() error {
	if mb.data == nil {
		return nil
	}
	err := unix.Munmap(mb.data)
	mb.data, mb.f32, mb.f64 = nil, nil, nil
	err = errors.Join(err, mb.file.Close())
	mb.file = nil
	return err
}

// Close flushes and unmaps the buffer.  The backing file is kept.
func (mb *MmapBuffer) Close() error {
	return errors.Join(mb.Flush(), mb.unmap())
}

func (mb *MmapBuffer) String() string {
	h := &mb.hnd
	return fmt.Sprintf("%s: %d x %d %v (%s)", h.Path, h.Rows, h.Cols, h.DType, datasize.ByteSize(h.Size()).HumanReadable())
}

// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package chunk defines the unit of independent work for recording synthesis:
a contiguous, bounded range of time samples [Start, Stop) together with its
absolute start time.

A recording of arbitrary length is partitioned into chunks that are processed
independently (possibly in parallel) and whose results are accumulated into a
common destination.  Chunks of a valid partition are contiguous, ascending and
non-overlapping, which is what makes additive accumulation race-free.
*/
package chunk

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrChunkBounds is returned for a chunk outside of [0, total) or with Start >= Stop.
	ErrChunkBounds = errors.New("chunk: invalid chunk bounds")

	// ErrPartition is returned when a set of chunks does not tile the timeline.
	ErrPartition = errors.New("chunk: chunks do not partition the timeline")
)

// Chunk describes one time-sample range processed as a unit of work.
type Chunk struct {

	// absolute index of the chunk in the partition
	ID int

	// first sample of the chunk (inclusive)
	Start int

	// last sample of the chunk (exclusive)
	Stop int

	// absolute time of sample Start from the beginning of the recording
	StartTime time.Duration
}

// Len returns the number of samples in the chunk
func (c Chunk) Len() int { return c.Stop - c.Start }

// SampleTime returns the absolute time of sample index i (which may lie
// outside of the chunk), given sampling rate fs in Hz.
func (c Chunk) SampleTime(i int, fs float64) time.Duration {
	return c.StartTime + SamplesToDuration(i-c.Start, fs)
}

// Validate checks that 0 <= Start < Stop <= total
func (c Chunk) Validate(total int) error {
	if c.Start < 0 || c.Start >= c.Stop || c.Stop > total {
		return fmt.Errorf("%w: chunk %d [%d, %d) of %d samples", ErrChunkBounds, c.ID, c.Start, c.Stop, total)
	}
	return nil
}

func (c Chunk) String() string {
	return fmt.Sprintf("chunk %d [%d:%d) @ %v", c.ID, c.Start, c.Stop, c.StartTime)
}

// SamplesToDuration converts a number of samples at rate fs (Hz) to a duration.
func SamplesToDuration(n int, fs float64) time.Duration {
	return time.Duration(float64(n) / fs * float64(time.Second))
}

// Partition splits total samples into contiguous chunks of size samples each
// (the last one may be shorter).  fs is the sampling rate in Hz, used to
// compute each chunk's StartTime.  A size <= 0 or >= total yields a single chunk.
func Partition(total, size int, fs float64) ([]Chunk, error) {
	if total <= 0 {
		return nil, fmt.Errorf("%w: total length %d", ErrPartition, total)
	}
	if fs <= 0 {
		return nil, fmt.Errorf("%w: sampling rate %v", ErrPartition, fs)
	}
	if size <= 0 || size > total {
		size = total
	}
	nch := (total + size - 1) / size
	chunks := make([]Chunk, nch)
	for i := range chunks {
		st := i * size
		sp := min(st+size, total)
		chunks[i] = Chunk{ID: i, Start: st, Stop: sp, StartTime: SamplesToDuration(st, fs)}
	}
	return chunks, nil
}

// CheckPartition verifies that chunks are valid, ascending, contiguous and
// non-overlapping, and that together they cover exactly [0, total).
func CheckPartition(chunks []Chunk, total int) error {
	if len(chunks) == 0 {
		return fmt.Errorf("%w: no chunks", ErrPartition)
	}
	next := 0
	sum := 0
	for _, c := range chunks {
		if err := c.Validate(total); err != nil {
			return err
		}
		if c.Start != next {
			return fmt.Errorf("%w: %v starts at %d, expected %d", ErrPartition, c, c.Start, next)
		}
		next = c.Stop
		sum += c.Len()
	}
	if next != total || sum != total {
		return fmt.Errorf("%w: covered %d of %d samples", ErrPartition, sum, total)
	}
	return nil
}

// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package chunk

// Seed derives the random seed for one unit within one chunk from a
// recording-level base seed.  The result depends only on its arguments,
// never on which chunks ran before, so parallel and sequential runs draw
// identical random values.  Use unit = -1 for chunk-level (non-unit) draws
// such as noise.
func Seed(base uint64, chunkID, unit int) uint64 {
	s := Mix(base ^ Mix(uint64(int64(chunkID))+0x9e3779b97f4a7c15))
	return Mix(s ^ Mix(uint64(int64(unit))+0xbf58476d1ce4e5b9))
}

// Mix is the splitmix64 finalizer: a bijective scrambling of x
func Mix(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}

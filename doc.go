// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package spikesim is the overall repository for synthesizing extracellular
recordings: multi-electrode voltage traces built from unit templates and spike
trains, with drift, amplitude and shape modulation, noise and filtering.

This top-level of the repository has no functional code -- everything is organized
into the following sub-repositories:

* chunk: the chunk descriptor that all processing is organized around, the
partition of a recording into chunks, storage precision and per-chunk seeds.

* spikes, templ: the inputs -- spike trains of all units, and their templates
(with optional drift positions and jittered copies) as an etensor.

* modul, drift: per-spike amplitude and shape modulation, and the drift of
units over time, which selects the template of each spike.

* conv: convolution of spike trains with templates, one chunk at a time.

* noise, filt: additive noise (independent or spatially correlated, optionally
colored) and zero-phase Butterworth filtering.

* output: where chunk results go -- returned to the caller, written to per chunk
files, or added into shared (memory-mapped) buffers.

* recgen: the chunk operations combining all of the above, and a parallel chunk
loop (goroutines and MPI).

* examples/synth: runnable program generating a recording from synthetic templates
and spike trains, and the place to start.
*/
package spikesim

// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package drift computes the position of drifting units over time, and from
it the index of the drift-position template to use for a spike.

Slow drift moves a unit at constant velocity from its first drift location.
Fast drift adds sudden jumps along the drift axis, one per fast drift period,
with pseudo-random amplitude within a jump range.  Both are pure functions of
the elapsed time since the drift start: the same time always yields the same
position, regardless of which chunks were processed before, so chunks can be
synthesized in any order.
*/
package drift

import (
	"errors"
	"fmt"
	"time"

	"github.com/emer/etable/v2/minmax"
	"github.com/goki/mat32"
	"golang.org/x/exp/rand"

	"github.com/emer/spikesim/chunk"
)

// ErrDrift is returned for invalid drift parameters
var ErrDrift = errors.New("drift: invalid drift parameters")

// Mode is the type of drift dynamics
type Mode int32

const (
	// Slow is constant velocity drift
	Slow Mode = iota

	// Fast is periodic sudden jumps
	Fast

	// SlowFast combines both
	SlowFast

	ModeN
)

func (md Mode) String() string {
	switch md {
	case Slow:
		return "slow"
	case Fast:
		return "fast"
	case SlowFast:
		return "slow+fast"
	}
	return fmt.Sprintf("Mode(%d)", int32(md))
}

// ParseMode returns the Mode named by s
func ParseMode(s string) (Mode, error) {
	for md := Slow; md < ModeN; md++ {
		if md.String() == s {
			return md, nil
		}
	}
	return Slow, fmt.Errorf("%w: unknown mode %q", ErrDrift, s)
}

// HasSlow returns true if the mode includes slow drift
func (md Mode) HasSlow() bool { return md == Slow || md == SlowFast }

// HasFast returns true if the mode includes fast drift
func (md Mode) HasFast() bool { return md == Fast || md == SlowFast }

// Params are the drift dynamics parameters, shared by all drifting units
type Params struct {

	// drift dynamics
	Mode Mode

	// slow drift velocity, in um/s
	Velocity mat32.Vec3

	// time between fast drift jumps
	FastPeriod time.Duration `def:"20s"`

	// range of fast drift jump amplitudes, in um
	FastJump minmax.F32 `view:"inline"`

	// time at which drift starts; units are at their first drift location before
	Start time.Duration

	// seed of the fast drift jumps
	Seed uint64
}

func (dp *Params) Defaults() {
	dp.Mode = Slow
	dp.Velocity = mat32.Vec3{X: 0, Y: 0, Z: 5}
	dp.FastPeriod = 20 * time.Second
	dp.FastJump = minmax.F32{Min: 5, Max: 20}
	dp.Start = 0
}

// Validate checks the parameters
func (dp *Params) Validate() error {
	if dp.Mode < 0 || dp.Mode >= ModeN {
		return fmt.Errorf("%w: mode %v", ErrDrift, dp.Mode)
	}
	if dp.Mode.HasFast() {
		if dp.FastPeriod <= 0 {
			return fmt.Errorf("%w: fast drift period %v", ErrDrift, dp.FastPeriod)
		}
		if dp.FastJump.Min < 0 || dp.FastJump.Max < dp.FastJump.Min {
			return fmt.Errorf("%w: fast drift jump range [%v, %v]", ErrDrift, dp.FastJump.Min, dp.FastJump.Max)
		}
	}
	return nil
}

// slowPos returns the slow drift position at elapsed time el since Start
func (dp *Params) slowPos(locs []mat32.Vec3, el time.Duration) mat32.Vec3 {
	if !dp.Mode.HasSlow() {
		return locs[0]
	}
	return locs[0].Add(dp.Velocity.MulScalar(float32(el.Seconds())))
}

// axis returns the unit direction and length of the drift range of locs
func axis(locs []mat32.Vec3) (mat32.Vec3, float32) {
	d := locs[len(locs)-1].Sub(locs[0])
	ln := d.Length()
	if ln == 0 {
		return d, 0
	}
	return d.MulScalar(1 / ln), ln
}

// jump returns the pseudo-random signed amplitude of fast drift event k
// (k >= 1) for given unit
func (dp *Params) jump(unit, k int) float32 {
	rnd := rand.New(rand.NewSource(chunk.Seed(dp.Seed, k, unit)))
	mag := dp.FastJump.Min + (dp.FastJump.Max-dp.FastJump.Min)*rnd.Float32()
	if rnd.Intn(2) == 0 {
		return -mag
	}
	return mag
}

// fastOffset returns the accumulated fast drift displacement along the drift
// axis after elapsed time el.  Jumps that would leave the drift range are
// reflected back into it.
func (dp *Params) fastOffset(locs []mat32.Vec3, unit int, el time.Duration) float32 {
	if !dp.Mode.HasFast() || dp.FastPeriod <= 0 {
		return 0
	}
	ax, span := axis(locs)
	if span == 0 {
		return 0
	}
	nev := int(el / dp.FastPeriod)
	var off float32
	for k := 1; k <= nev; k++ {
		s0 := dp.slowPos(locs, time.Duration(k)*dp.FastPeriod).Sub(locs[0]).Dot(ax)
		j := dp.jump(unit, k)
		if s := s0 + off + j; s < 0 || s > span {
			j = -j
		}
		off += j
	}
	return off
}

// Position returns the location of the unit at absolute time t, given its
// drift locations (locs[0] is the initial location).
func (dp *Params) Position(locs []mat32.Vec3, unit int, t time.Duration) mat32.Vec3 {
	if len(locs) == 0 {
		return mat32.Vec3{}
	}
	if t < dp.Start {
		return locs[0]
	}
	el := t - dp.Start
	pos := dp.slowPos(locs, el)
	if off := dp.fastOffset(locs, unit, el); off != 0 {
		ax, _ := axis(locs)
		pos = pos.Add(ax.MulScalar(off))
	}
	return pos
}

// Index returns the index of the drift location closest to the unit's
// position at time t.  Positions beyond the drift range saturate at the
// nearest end location.
func (dp *Params) Index(locs []mat32.Vec3, unit int, t time.Duration) int {
	if len(locs) <= 1 || t < dp.Start {
		return 0
	}
	return Nearest(locs, dp.Position(locs, unit, t))
}

// Nearest returns the index of the location in locs closest to pos
func Nearest(locs []mat32.Vec3, pos mat32.Vec3) int {
	best := 0
	bestDist := locs[0].DistTo(pos)
	for i := 1; i < len(locs); i++ {
		if d := locs[i].DistTo(pos); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package timerwheel

import (
	"fmt"
	"math"
	"math/bits"
	"time"
)

// Level 0 addresses the low 2 bits of the tick counter. Every level
// above it addresses the next 6 bits.
const (
	level0Bits = 2
	level0Size = 1 << level0Bits
	level0Mask = level0Size - 1

	levelBits = 6
	levelSize = 1 << levelBits
	levelMask = levelSize - 1

	// maxTickBits bounds the addressable tick range so tick
	// arithmetic never reaches the sign bit of a Duration product.
	maxTickBits = 62
)

// DefaultHorizon is how far ahead a wheel can address without
// clamping when Config.Horizon is zero: four years of 365.25 days.
const DefaultHorizon = 4 * 8766 * time.Hour

// levelCount returns the smallest number of levels L such that
// precision × 4 × 64^(L-1) strictly exceeds horizon. A span equal to
// the horizon is not enough: a delay of exactly the horizon lands one
// tick past the last addressable one and needs the next level.
func levelCount(precision, horizon time.Duration) (int, error) {
	levels := 1
	tickBits := level0Bits
	span := saturatingMul(precision, level0Size)
	for span <= horizon {
		if tickBits+levelBits > maxTickBits {
			return 0, fmt.Errorf("%w: precision %v cannot cover horizon %v within %d tick bits",
				ErrDegenerateTopology, precision, horizon, maxTickBits)
		}
		tickBits += levelBits
		levels++
		span = saturatingMul(span, levelSize)
	}
	return levels, nil
}

func saturatingMul(d time.Duration, factor int64) time.Duration {
	if d > time.Duration(math.MaxInt64/factor) {
		return time.Duration(math.MaxInt64)
	}
	return d * time.Duration(factor)
}

// levelShift returns the position of the lowest tick bit addressed
// by level.
func levelShift(level int) uint {
	if level == 0 {
		return 0
	}
	return uint(level0Bits + levelBits*(level-1))
}

// levelMaskOf returns the slot index mask of level.
func levelMaskOf(level int) uint64 {
	if level == 0 {
		return level0Mask
	}
	return levelMask
}

// group returns the bit group of tick addressed by level, which is
// also the cursor of that level when tick is the current tick.
func group(tick uint64, level int) uint64 {
	return (tick >> levelShift(level)) & levelMaskOf(level)
}

// differingLevel returns the level owning the highest bit in which a
// and b differ. The result can exceed the wheel's top level.
func differingLevel(a, b uint64) int {
	diff := (a ^ b) >> level0Bits
	if diff == 0 {
		return 0
	}
	return 1 + (bits.Len64(diff)-1)/levelBits
}

// locate returns the (level, slot) that due belongs in when the
// wheel's current tick is current.
//
// The level is the one whose bit group is the highest to differ
// between due and current; due agrees with current above it, so its
// group at that level lies ahead of the cursor and the slot is
// reached within the level's current revolution. The slot index is
// (cursor + offset) mod size where offset is the distance between
// the two groups, which is the due tick's own group.
//
// A due tick at or before current goes to the next level-0 slot.
//
// A due tick whose bits differ above the top level is clamped: it
// goes to the top-level slot its own bit group selects and is located
// again every time that slot cascades. The slot is visited once per
// top-level revolution, and the visit in the due tick's revolution
// comes no later than the due tick, so the timer is never late.
func locate(due, current uint64, levels int) (level int, index uint64) {
	if due <= current {
		return 0, (current + 1) & level0Mask
	}

	level = differingLevel(due, current)
	if level >= levels {
		level = levels - 1
	}
	return level, group(due, level)
}

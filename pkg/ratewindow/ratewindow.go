/*
This file is part of Fleet Rollout.

Copyright (C) 2025-2026 The Fleet Rollout Authors.
*/

// Package ratewindow paces actions over time without any coordination.
// The number of actions allowed depends only on the wall clock, so that
// replicas running the same job compute the same answer.
package ratewindow

import (
	"math"
	"time"
)

const millisPerMinute = 60_000

// MaxRatePerMinute is the highest rate a user may configure
const MaxRatePerMinute = 1_000_000

// ActionsAllowed is the number of actions that may start in the time
// bucket of intervalMillis containing nowMillis, when ratePerMinute
// actions per minute are wanted on average. The result is never negative
// and saturates at math.MaxInt for huge rates.
func ActionsAllowed(intervalMillis, nowMillis int64, ratePerMinute float64) int {
	if intervalMillis <= 0 || !(ratePerMinute > 0) {
		return 0
	}
	if math.IsInf(ratePerMinute, 1) {
		return math.MaxInt
	}

	start := nowMillis - floorMod(nowMillis, intervalMillis)
	end := start + intervalMillis
	dueByStart := math.Floor(float64(start) * ratePerMinute / millisPerMinute)
	dueByEnd := math.Floor(float64(end) * ratePerMinute / millisPerMinute)
	if math.IsInf(dueByEnd, 0) || math.IsInf(dueByStart, 0) {
		return math.MaxInt
	}

	allowed := dueByEnd - dueByStart
	switch {
	case allowed <= 0:
		return 0
	case allowed >= math.MaxInt:
		return math.MaxInt
	}
	return int(allowed)
}

// ValidRate is true for a finite rate between zero and MaxRatePerMinute
func ValidRate(ratePerMinute float64) bool {
	return ratePerMinute >= 0 && ratePerMinute <= MaxRatePerMinute
}

// ActionsAllowedAt is ActionsAllowed on time values
func ActionsAllowedAt(interval time.Duration, now time.Time, ratePerMinute float64) int {
	return ActionsAllowed(interval.Milliseconds(), now.UnixMilli(), ratePerMinute)
}

func floorMod(x, y int64) int64 {
	mod := x % y
	if mod < 0 {
		mod += y
	}
	return mod
}

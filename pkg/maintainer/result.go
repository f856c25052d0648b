/*
This file is part of Fleet Rollout.

Copyright (C) 2025-2026 The Fleet Rollout Authors.
*/

package maintainer

// RunResult counts the attempts and failures of a maintenance pass
type RunResult struct {
	Attempts int
	Failures int
}

// Failed is the result of a pass which failed as a whole
func Failed() RunResult {
	return RunResult{Attempts: 1, Failures: 1}
}

// SuccessRatio reduces the result to a value in [0,1]. A pass without
// attempts is fully successful.
func (r RunResult) SuccessRatio() float64 {
	if r.Attempts == 0 {
		return 1
	}
	return float64(r.Attempts-r.Failures) / float64(r.Attempts)
}

// Add sums two results
func (r RunResult) Add(other RunResult) RunResult {
	return RunResult{
		Attempts: r.Attempts + other.Attempts,
		Failures: r.Failures + other.Failures,
	}
}

// Record adds one attempt, which failed when err is not nil
func (r *RunResult) Record(err error) {
	r.Attempts++
	if err != nil {
		r.Failures++
	}
}

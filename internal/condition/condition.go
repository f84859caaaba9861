// Package condition reduces runnable status/result pairs to the five display
// conditions and aggregates them.
package condition

import "github.com/waabox/changesdeck/internal/domain"

// Condition is the display reduction of a (status, result) pair.
type Condition string

const (
	Passed  Condition = "passed"
	Failed  Condition = "failed"
	Nothing Condition = "nothing"
	Unknown Condition = "unknown"
	Waiting Condition = "waiting"
)

// Severity orders conditions for summaries: higher is worse.
// failed > nothing > unknown > waiting > passed.
func (c Condition) Severity() int {
	switch c {
	case Failed:
		return 4
	case Nothing:
		return 3
	case Unknown:
		return 2
	case Waiting:
		return 1
	case Passed:
		return 0
	default:
		return Unknown.Severity()
	}
}

// Classify maps a status/result pair to its condition. Anything still queued
// or running is waiting; otherwise the result decides.
func Classify(status domain.Status, result domain.Result) Condition {
	if status == domain.StatusQueued || status == domain.StatusInProgress {
		return Waiting
	}
	switch result {
	case domain.ResultPassed:
		return Passed
	case domain.ResultFailed:
		return Failed
	case domain.ResultAborted, domain.ResultInfraFailed:
		return Nothing
	default:
		return Unknown
	}
}

// Of classifies a runnable.
func Of(r domain.Runnable) Condition {
	return Classify(r.RunStatus(), r.RunResult())
}

// All classifies each runnable, preserving order.
func All[T domain.Runnable](rs []T) []Condition {
	out := make([]Condition, len(rs))
	for i, r := range rs {
		out[i] = Of(r)
	}
	return out
}

// Summarize returns the most severe condition present. An empty set is
// vacuously Passed.
func Summarize(conditions []Condition) Condition {
	summary := Passed
	for _, c := range conditions {
		if c.Severity() > summary.Severity() {
			summary = c
		}
	}
	return summary
}

// SummarizeRunnables classifies and summarizes in one step.
func SummarizeRunnables[T domain.Runnable](rs []T) Condition {
	return Summarize(All(rs))
}

// Run is a stretch of adjacent equal conditions.
type Run struct {
	Condition Condition `json:"condition" yaml:"condition"`
	Count     int       `json:"count" yaml:"count"`
}

// Compress run-length encodes adjacent equal conditions. Equal conditions
// separated by a different one stay in separate runs.
func Compress(conditions []Condition) []Run {
	var runs []Run
	for _, c := range conditions {
		if n := len(runs); n > 0 && runs[n-1].Condition == c {
			runs[n-1].Count++
			continue
		}
		runs = append(runs, Run{Condition: c, Count: 1})
	}
	return runs
}

// Expand reverses Compress.
func Expand(runs []Run) []Condition {
	var out []Condition
	for _, r := range runs {
		for i := 0; i < r.Count; i++ {
			out = append(out, r.Condition)
		}
	}
	return out
}

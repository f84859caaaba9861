package condition_test

import (
	"math/rand"
	"reflect"
	"testing"

	"github.com/waabox/changesdeck/internal/condition"
	"github.com/waabox/changesdeck/internal/domain"
)

func TestClassify_Table(t *testing.T) {
	cases := []struct {
		status domain.Status
		result domain.Result
		want   condition.Condition
	}{
		{domain.StatusInProgress, domain.ResultPassed, condition.Waiting},
		{domain.StatusQueued, domain.ResultFailed, condition.Waiting},
		{domain.StatusQueued, "", condition.Waiting},
		{domain.StatusFinished, domain.ResultPassed, condition.Passed},
		{domain.StatusFinished, domain.ResultFailed, condition.Failed},
		{domain.StatusFinished, domain.ResultAborted, condition.Nothing},
		{domain.StatusFinished, domain.ResultInfraFailed, condition.Nothing},
		{domain.StatusFinished, "bogus", condition.Unknown},
		{domain.StatusFinished, "", condition.Unknown},
		{domain.StatusFinished, domain.ResultUnknown, condition.Unknown},
	}
	for _, tc := range cases {
		if got := condition.Classify(tc.status, tc.result); got != tc.want {
			t.Errorf("Classify(%q, %q) = %q, want %q", tc.status, tc.result, got, tc.want)
		}
	}
}

func TestOf_AppliesSameTableToEveryRunnable(t *testing.T) {
	rs := []domain.Runnable{
		domain.Build{Status: domain.StatusFinished, Result: domain.ResultFailed},
		domain.Job{Status: domain.StatusFinished, Result: domain.ResultFailed},
		domain.Shard{Status: domain.StatusFinished, Result: domain.ResultFailed},
		domain.Phase{Status: domain.StatusFinished, Result: domain.ResultFailed},
	}
	for _, r := range rs {
		if got := condition.Of(r); got != condition.Failed {
			t.Errorf("%T classified as %q", r, got)
		}
	}
}

func TestSummarize_Precedence(t *testing.T) {
	cases := []struct {
		in   []condition.Condition
		want condition.Condition
	}{
		{nil, condition.Passed},
		{[]condition.Condition{condition.Passed, condition.Passed}, condition.Passed},
		{[]condition.Condition{condition.Passed, condition.Waiting}, condition.Waiting},
		{[]condition.Condition{condition.Waiting, condition.Unknown}, condition.Unknown},
		{[]condition.Condition{condition.Unknown, condition.Nothing, condition.Waiting}, condition.Nothing},
		{[]condition.Condition{condition.Nothing, condition.Failed, condition.Passed}, condition.Failed},
	}
	for _, tc := range cases {
		if got := condition.Summarize(tc.in); got != tc.want {
			t.Errorf("Summarize(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

var all = []condition.Condition{
	condition.Passed, condition.Failed, condition.Nothing, condition.Unknown, condition.Waiting,
}

func randomSequence(r *rand.Rand) []condition.Condition {
	n := r.Intn(30)
	out := make([]condition.Condition, n)
	for i := range out {
		out[i] = all[r.Intn(len(all))]
	}
	return out
}

func TestSummarize_ResultIsPresentAndMostSevere(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		seq := randomSequence(r)
		if len(seq) == 0 {
			continue
		}
		got := condition.Summarize(seq)
		present := false
		for _, c := range seq {
			if c == got {
				present = true
			}
			if c.Severity() > got.Severity() {
				t.Fatalf("Summarize(%v) = %q but %q is more severe", seq, got, c)
			}
		}
		if !present {
			t.Fatalf("Summarize(%v) = %q which is not in the input", seq, got)
		}
	}
}

func TestCompress_MergesOnlyAdjacent(t *testing.T) {
	in := []condition.Condition{
		condition.Passed, condition.Passed, condition.Failed, condition.Passed,
	}
	want := []condition.Run{
		{Condition: condition.Passed, Count: 2},
		{Condition: condition.Failed, Count: 1},
		{Condition: condition.Passed, Count: 1},
	}
	if got := condition.Compress(in); !reflect.DeepEqual(got, want) {
		t.Errorf("Compress(%v) = %v, want %v", in, got, want)
	}
	if got := condition.Compress(nil); len(got) != 0 {
		t.Errorf("expected no runs for empty input, got %v", got)
	}
}

func TestCompress_RoundTripsAndCountsMatch(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		seq := randomSequence(r)
		runs := condition.Compress(seq)
		sum := 0
		for j, run := range runs {
			sum += run.Count
			if j > 0 && runs[j-1].Condition == run.Condition {
				t.Fatalf("adjacent runs share a condition: %v", runs)
			}
		}
		if sum != len(seq) {
			t.Fatalf("sum of counts %d != len %d", sum, len(seq))
		}
		expanded := condition.Expand(runs)
		if len(seq) == 0 && len(expanded) == 0 {
			continue
		}
		if !reflect.DeepEqual(expanded, seq) {
			t.Fatalf("Expand(Compress(%v)) = %v", seq, expanded)
		}
	}
}

func TestSummarizeRunnables(t *testing.T) {
	jobs := []domain.Job{
		{Status: domain.StatusFinished, Result: domain.ResultPassed},
		{Status: domain.StatusInProgress},
	}
	if got := condition.SummarizeRunnables(jobs); got != condition.Waiting {
		t.Errorf("expected waiting, got %q", got)
	}
}

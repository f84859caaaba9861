package condition_test

import (
	"reflect"
	"testing"

	"github.com/waabox/changesdeck/internal/condition"
	"github.com/waabox/changesdeck/internal/domain"
)

func job(status domain.Status, result domain.Result) domain.Job {
	return domain.Job{Status: status, Result: result}
}

func TestJobStrip_CompressesAdjacentJobs(t *testing.T) {
	d := domain.BuildDetail{Jobs: []domain.Job{
		job(domain.StatusFinished, domain.ResultPassed),
		job(domain.StatusFinished, domain.ResultPassed),
		job(domain.StatusInProgress, domain.ResultUnknown),
		job(domain.StatusFinished, domain.ResultPassed),
	}}

	got := condition.JobStrip(d)
	want := []condition.Run{
		{Condition: condition.Passed, Count: 2},
		{Condition: condition.Waiting, Count: 1},
		{Condition: condition.Passed, Count: 1},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %+v, got %+v", want, got)
	}
}

func TestShardConditions_FlattensPhases(t *testing.T) {
	phases := []domain.Phase{
		{Shards: []domain.Shard{
			{Status: domain.StatusFinished, Result: domain.ResultPassed},
			{Status: domain.StatusFinished, Result: domain.ResultFailed},
		}},
		{Shards: []domain.Shard{
			{Status: domain.StatusQueued},
		}},
	}

	got := condition.ShardConditions(phases)
	want := []condition.Condition{condition.Passed, condition.Failed, condition.Waiting}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestOverall(t *testing.T) {
	passedBuild := domain.BuildDetail{Build: domain.Build{Status: domain.StatusFinished, Result: domain.ResultPassed}}
	runningWithFailedJob := domain.BuildDetail{
		Build: domain.Build{Status: domain.StatusInProgress},
		Jobs: []domain.Job{
			job(domain.StatusFinished, domain.ResultFailed),
			job(domain.StatusInProgress, domain.ResultUnknown),
		},
	}
	waitingBuild := domain.BuildDetail{Build: domain.Build{Status: domain.StatusQueued}}

	cases := []struct {
		name   string
		builds []domain.BuildDetail
		want   condition.Condition
	}{
		{"no builds", nil, condition.Passed},
		{"all passed", []domain.BuildDetail{passedBuild}, condition.Passed},
		{"waiting build", []domain.BuildDetail{passedBuild, waitingBuild}, condition.Waiting},
		{"failed job wins over running build", []domain.BuildDetail{passedBuild, runningWithFailedJob}, condition.Failed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := condition.Overall(tc.builds); got != tc.want {
				t.Errorf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

package domain

import "context"

// TestQuery filters and pages a build's test listing.
type TestQuery struct {
	FailuresOnly bool
	Query        string
	Sort         string
	Reverse      bool
	Page         int
	PerPage      int
}

// TestPage is one page of a test listing.
type TestPage struct {
	Tests   []TestCase
	Page    int
	HasNext bool
}

// CIProvider is the port every backend adapter implements.
// The rest of the application does not know about HTTP or URL layouts.
type CIProvider interface {
	CommitBuilds(ctx context.Context, project, source string) ([]Build, error)
	DiffBuilds(ctx context.Context, diffID string) (Diff, []DiffUpdate, error)
	GetBuild(ctx context.Context, id string) (BuildDetail, error)
	RetryBuild(ctx context.Context, id string) (Build, error)
	GetJobPhases(ctx context.Context, jobID string) ([]Phase, error)
	GetLog(ctx context.Context, jobID, logID string) (string, error)
	GetTest(ctx context.Context, id string) (TestCase, error)
	ListTests(ctx context.Context, buildID string, q TestQuery) (TestPage, error)
}

// LoadSeed fetches the stage-0 payload for an anchor through p.
func LoadSeed(ctx context.Context, p CIProvider, a Anchor) (Seed, error) {
	if err := a.Validate(); err != nil {
		return Seed{}, err
	}
	if a.Kind == AnchorDiff {
		diff, updates, err := p.DiffBuilds(ctx, a.DiffID)
		if err != nil {
			return Seed{}, err
		}
		return Seed{Diff: &diff, Updates: updates}, nil
	}
	builds, err := p.CommitBuilds(ctx, a.Project, a.Source)
	if err != nil {
		return Seed{}, err
	}
	seed := Seed{Builds: builds}
	if len(builds) > 0 {
		commit := builds[0].Source.Revision
		seed.Commit = &commit
	}
	return seed, nil
}

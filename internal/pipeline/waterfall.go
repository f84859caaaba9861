// Package pipeline fetches a page's build hierarchy in three gated stages:
// the anchor's build list, each build's detail, then each job's phases.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/waabox/changesdeck/internal/domain"
	"github.com/waabox/changesdeck/internal/fetch"
	"github.com/waabox/changesdeck/internal/observability"
)

const (
	StageSeed = iota
	StageBuilds
	StageJobs
	TotalStages
)

const (
	buildsBatch = "builds"
	jobsBatch   = "jobs"
)

// Source is the subset of the backend the pipeline reads from.
type Source interface {
	GetBuild(ctx context.Context, id string) (domain.BuildDetail, error)
	GetJobPhases(ctx context.Context, jobID string) ([]domain.Phase, error)
}

// SeedFunc loads the stage-0 payload for an anchor.
type SeedFunc func(ctx context.Context, anchor domain.Anchor) (domain.Seed, error)

// Outcome tags what Advance reported.
type Outcome int

const (
	Pending Outcome = iota
	PartialFailure
	Complete
)

func (o Outcome) String() string {
	switch o {
	case PartialFailure:
		return "partial_failure"
	case Complete:
		return "complete"
	default:
		return "pending"
	}
}

// Result is what one Advance call observed. Builds and Jobs hold whatever
// has loaded so far, also for Pending and PartialFailure.
type Result struct {
	Outcome Outcome
	// Stage is the stage being waited on or that failed; TotalStages once complete.
	Stage int
	// Settled is set when no key of Stage is still loading, so another
	// Advance cannot change the result.
	Settled bool
	Errors  []error
	Seed   domain.Seed
	Builds []domain.BuildDetail
	// Jobs maps job ID to its phases.
	Jobs map[string][]domain.Phase
}

// Progress renders the "stage K of N" indicator.
func (r Result) Progress() string {
	stage := r.Stage + 1
	if stage > TotalStages {
		stage = TotalStages
	}
	return fmt.Sprintf("stage %d of %d", stage, TotalStages)
}

// PageBuilds lists every build the seed references in BuildIDs order,
// using the loaded detail where available and the seed's copy otherwise.
func (r Result) PageBuilds() []domain.Build {
	details := make(map[string]domain.Build, len(r.Builds))
	for _, d := range r.Builds {
		details[d.ID] = d.Build
	}
	listed := make(map[string]domain.Build)
	for _, b := range r.Seed.Builds {
		listed[b.ID] = b
	}
	for _, u := range r.Seed.Updates {
		for _, b := range u.Builds {
			if _, ok := listed[b.ID]; !ok {
				listed[b.ID] = b
			}
		}
	}
	ids := r.Seed.BuildIDs()
	out := make([]domain.Build, 0, len(ids))
	for _, id := range ids {
		if b, ok := details[id]; ok {
			out = append(out, b)
			continue
		}
		out = append(out, listed[id])
	}
	return out
}

// Detail returns the loaded detail of build id.
func (r Result) Detail(id string) (domain.BuildDetail, bool) {
	for _, d := range r.Builds {
		if d.ID == id {
			return d, true
		}
	}
	return domain.BuildDetail{}, false
}

// Waterfall is the three-stage pipeline for one anchor on one page cache.
// Advance may be called any number of times; each key is fetched once.
type Waterfall struct {
	anchor domain.Anchor
	src    Source
	seedFn SeedFunc
	cache  *fetch.Cache
	logger *slog.Logger

	seeds  *fetch.Coordinator[domain.Seed]
	builds *fetch.Coordinator[domain.BuildDetail]
	jobs   *fetch.Coordinator[[]domain.Phase]
}

// New creates the pipeline. seedFn loads stage 0; src loads stages 1 and 2.
func New(cache *fetch.Cache, anchor domain.Anchor, seedFn SeedFunc, src Source) *Waterfall {
	return &Waterfall{
		anchor: anchor,
		src:    src,
		seedFn: seedFn,
		cache:  cache,
		logger: observability.WithAnchor(cache.Logger(), anchor.Key()),
		seeds:  fetch.NewCoordinator[domain.Seed](cache, "seed"),
		builds: fetch.NewCoordinator[domain.BuildDetail](cache, "builds"),
		jobs:   fetch.NewCoordinator[[]domain.Phase](cache, "jobs"),
	}
}

// ForProvider wires a pipeline straight to a CIProvider.
func ForProvider(cache *fetch.Cache, anchor domain.Anchor, p domain.CIProvider) *Waterfall {
	seed := func(ctx context.Context, a domain.Anchor) (domain.Seed, error) {
		return domain.LoadSeed(ctx, p, a)
	}
	return New(cache, anchor, seed, p)
}

// Anchor returns the anchor the pipeline was built for.
func (w *Waterfall) Anchor() domain.Anchor { return w.anchor }

// Close tears the page down; see fetch.Cache.Close.
func (w *Waterfall) Close() { w.cache.Close() }

// Advance dispatches whatever the current stage needs and reports progress.
func (w *Waterfall) Advance() Result {
	res := w.advance()
	w.cache.Metrics().IncAdvance(res.Outcome.String())
	return res
}

func (w *Waterfall) advance() Result {
	seedKey := w.anchor.Key()
	w.seeds.FetchOnce(seedKey, func(ctx context.Context) (domain.Seed, error) {
		return w.seedFn(ctx, w.anchor)
	})
	seed := w.seeds.Get(seedKey)
	switch {
	case seed.IsErrored():
		return Result{Outcome: PartialFailure, Stage: StageSeed, Settled: true, Errors: []error{seed.Err}}
	case !seed.IsLoaded():
		return Result{Outcome: Pending, Stage: StageSeed}
	}

	res := Result{Seed: seed.Payload, Jobs: map[string][]domain.Phase{}}

	buildIDs := seed.Payload.BuildIDs()
	w.builds.FetchMapOnce(buildsBatch, buildIDs, w.loadBuild)
	buildStates := w.builds.States(buildIDs)
	res.Builds = fetch.Payloads(buildStates)
	if errs := fetch.Errors(buildStates); len(errs) > 0 {
		res.Outcome, res.Stage, res.Errors = PartialFailure, StageBuilds, errs
		res.Settled = !fetch.AnyPending(buildStates)
		return res
	}
	if !fetch.AllLoaded(buildStates) {
		res.Outcome, res.Stage = Pending, StageBuilds
		return res
	}

	jobIDs := unionJobIDs(res.Builds)
	if !w.jobs.Dispatched(jobsBatch) {
		w.logger.Debug("builds loaded, dispatching jobs", "builds", len(buildIDs), "jobs", len(jobIDs))
	}
	w.jobs.FetchMapOnce(jobsBatch, jobIDs, w.loadJob)
	jobStates := w.jobs.States(jobIDs)
	for i, s := range jobStates {
		if s.IsLoaded() {
			res.Jobs[jobIDs[i]] = s.Payload
		}
	}
	if errs := fetch.Errors(jobStates); len(errs) > 0 {
		res.Outcome, res.Stage, res.Errors = PartialFailure, StageJobs, errs
		res.Settled = !fetch.AnyPending(jobStates)
		return res
	}
	if !fetch.AllLoaded(jobStates) {
		res.Outcome, res.Stage = Pending, StageJobs
		return res
	}

	res.Outcome, res.Stage, res.Settled = Complete, TotalStages, true
	return res
}

func (w *Waterfall) loadBuild(id string) fetch.Loader[domain.BuildDetail] {
	return func(ctx context.Context) (domain.BuildDetail, error) {
		d, err := w.src.GetBuild(ctx, id)
		if err != nil {
			return domain.BuildDetail{}, fmt.Errorf("loading build %s: %w", id, err)
		}
		return d, nil
	}
}

func (w *Waterfall) loadJob(id string) fetch.Loader[[]domain.Phase] {
	return func(ctx context.Context) ([]domain.Phase, error) {
		phases, err := w.src.GetJobPhases(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("loading phases of job %s: %w", id, err)
		}
		return phases, nil
	}
}

// unionJobIDs returns every job ID referenced by builds, without duplicates,
// in first-appearance order.
func unionJobIDs(builds []domain.BuildDetail) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, b := range builds {
		for _, id := range b.JobIDs() {
			if id == "" {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids
}

// Package timeline merges a page's builds and anchor entities into one
// newest-first sequence.
package timeline

import (
	"sort"
	"time"

	"github.com/waabox/changesdeck/internal/domain"
)

// Kind tags what a Renderable carries.
type Kind string

const (
	KindBuild      Kind = "build"
	KindCommit     Kind = "commit"
	KindDiff       Kind = "diff"
	KindDiffUpdate Kind = "diff_update"
)

// Renderable is one timeline row. Exactly one entity pointer matching Kind is set.
type Renderable struct {
	Kind      Kind
	Timestamp time.Time
	Build     *domain.Build
	Commit    *domain.Commit
	Diff      *domain.Diff
	Update    *domain.DiffUpdate
}

// Assemble tags builds, the seed's commit or diff, and the seed's diff
// updates with their display times and orders them newest first. Entries
// with equal timestamps keep input order: builds, then the anchor, then updates.
func Assemble(builds []domain.Build, seed domain.Seed) []Renderable {
	items := make([]Renderable, 0, len(builds)+len(seed.Updates)+1)
	for i := range builds {
		b := builds[i]
		items = append(items, Renderable{Kind: KindBuild, Timestamp: b.DateCreated.Time, Build: &b})
	}
	if seed.Commit != nil {
		c := *seed.Commit
		items = append(items, Renderable{Kind: KindCommit, Timestamp: c.CommittedAt(), Commit: &c})
	}
	if seed.Diff != nil {
		d := *seed.Diff
		items = append(items, Renderable{Kind: KindDiff, Timestamp: d.DateCreated.Time, Diff: &d})
	}
	for i := range seed.Updates {
		u := seed.Updates[i]
		u.Builds = nil
		items = append(items, Renderable{Kind: KindDiffUpdate, Timestamp: u.UpdatedAt(), Update: &u})
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Timestamp.After(items[j].Timestamp)
	})
	return items
}

// Builds extracts the build entries in timeline order.
func Builds(items []Renderable) []domain.Build {
	var out []domain.Build
	for _, it := range items {
		if it.Kind == KindBuild {
			out = append(out, *it.Build)
		}
	}
	return out
}

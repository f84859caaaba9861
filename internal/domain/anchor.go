package domain

import (
	"errors"
	"time"
)

// Repository represents the git working copy the dashboard was started from.
type Repository struct {
	Owner     string
	Name      string
	RemoteURL string
}

// AnchorKind tells which page an anchor seeds.
type AnchorKind string

const (
	AnchorCommit AnchorKind = "commit"
	AnchorDiff   AnchorKind = "diff"
)

// Anchor is the entity a timeline page is built around: either a commit
// (project slug plus source id) or a code-review diff.
type Anchor struct {
	Kind    AnchorKind
	Project string
	Source  string
	DiffID  string
}

// CommitAnchor builds an anchor for a commit page.
func CommitAnchor(project, source string) Anchor {
	return Anchor{Kind: AnchorCommit, Project: project, Source: source}
}

// DiffAnchor builds an anchor for a diff page.
func DiffAnchor(diffID string) Anchor {
	return Anchor{Kind: AnchorDiff, DiffID: diffID}
}

// Key is the seed-stage cache key of the anchor.
func (a Anchor) Key() string {
	if a.Kind == AnchorDiff {
		return "diff:" + a.DiffID
	}
	return "commit:" + a.Project + "/" + a.Source
}

// Validate reports whether the anchor names enough to fetch a seed.
func (a Anchor) Validate() error {
	switch a.Kind {
	case AnchorCommit:
		if a.Project == "" || a.Source == "" {
			return errors.New("commit anchor needs both a project and a source")
		}
	case AnchorDiff:
		if a.DiffID == "" {
			return errors.New("diff anchor needs a diff id")
		}
	default:
		return errors.New("anchor kind must be commit or diff")
	}
	return nil
}

// Diff is a code-review revision whose updates were built.
type Diff struct {
	ID          string    `json:"id"`
	RevisionID  int       `json:"revision_id"`
	DiffID      int       `json:"diff_id"`
	Title       string    `json:"title"`
	Author      string    `json:"author"`
	URI         string    `json:"uri"`
	DateCreated Timestamp `json:"dateCreated"`
}

// DiffUpdate is one uploaded iteration of a diff and the builds it triggered.
type DiffUpdate struct {
	DiffID      int       `json:"diff_id"`
	DateCreated Timestamp `json:"dateCreated"`
	Builds      []Build   `json:"builds"`
}

// UpdatedAt is the display time of the update.
func (u DiffUpdate) UpdatedAt() time.Time { return u.DateCreated.Time }

// Seed is the stage-0 payload: the anchor entity plus the builds that
// reference it. Exactly one of Commit or Diff is set once loaded, except
// for a commit with no builds, where the commit cannot be resolved.
type Seed struct {
	Commit  *Commit
	Diff    *Diff
	Updates []DiffUpdate
	Builds  []Build
}

// BuildIDs returns the de-duplicated build IDs referenced by the seed, in
// first-appearance order: direct builds first, then each diff update's.
func (s Seed) BuildIDs() []string {
	seen := make(map[string]struct{})
	var ids []string
	add := func(builds []Build) {
		for _, b := range builds {
			if b.ID == "" {
				continue
			}
			if _, ok := seen[b.ID]; ok {
				continue
			}
			seen[b.ID] = struct{}{}
			ids = append(ids, b.ID)
		}
	}
	add(s.Builds)
	for _, u := range s.Updates {
		add(u.Builds)
	}
	return ids
}

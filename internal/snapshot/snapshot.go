// Package snapshot drives a pipeline to a terminal outcome without a
// terminal UI and renders the page as a YAML or JSON report.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/waabox/changesdeck/internal/condition"
	"github.com/waabox/changesdeck/internal/domain"
	"github.com/waabox/changesdeck/internal/pipeline"
	"github.com/waabox/changesdeck/internal/timeline"
)

// Advancer is the part of the pipeline snapshot mode drives.
type Advancer interface {
	Advance() pipeline.Result
}

// Wait calls Advance every interval until the outcome is Complete, or
// PartialFailure with every sibling of the failed stage settled. If ctx ends
// first the last result is returned with ctx's error.
func Wait(ctx context.Context, a Advancer, interval time.Duration) (pipeline.Result, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		res := a.Advance()
		if res.Outcome == pipeline.Complete || (res.Outcome == pipeline.PartialFailure && res.Settled) {
			return res, nil
		}
		select {
		case <-ctx.Done():
			return res, fmt.Errorf("waiting for %s: %w", res.Progress(), ctx.Err())
		case <-ticker.C:
		}
	}
}

// Report is the rendered page.
type Report struct {
	Anchor   string              `json:"anchor" yaml:"anchor"`
	Outcome  string              `json:"outcome" yaml:"outcome"`
	Progress string              `json:"progress" yaml:"progress"`
	Summary  condition.Condition `json:"summary" yaml:"summary"`
	Timeline []Entry             `json:"timeline" yaml:"timeline"`
	Errors   []string            `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// Entry is one timeline row.
type Entry struct {
	Kind  timeline.Kind `json:"kind" yaml:"kind"`
	Time  time.Time     `json:"time" yaml:"time"`
	Title string        `json:"title" yaml:"title"`
	Build *BuildEntry   `json:"build,omitempty" yaml:"build,omitempty"`
}

// BuildEntry summarizes one build and its jobs.
type BuildEntry struct {
	ID        string              `json:"id" yaml:"id"`
	Number    int                 `json:"number" yaml:"number"`
	Condition condition.Condition `json:"condition" yaml:"condition"`
	Jobs      []condition.Run     `json:"jobs,omitempty" yaml:"jobs,omitempty"`
	Shards    []condition.Run     `json:"shards,omitempty" yaml:"shards,omitempty"`
	Failures  []string            `json:"failures,omitempty" yaml:"failures,omitempty"`
}

// Build turns a pipeline result into a report.
func Build(anchor domain.Anchor, res pipeline.Result) Report {
	rep := Report{
		Anchor:   anchor.Key(),
		Outcome:  res.Outcome.String(),
		Progress: res.Progress(),
		Summary:  condition.Overall(res.Builds),
	}
	switch res.Outcome {
	case pipeline.Complete:
		rep.Progress = "complete"
	case pipeline.PartialFailure:
		// Unloaded builds may hide anything.
		rep.Summary = condition.Summarize([]condition.Condition{rep.Summary, condition.Unknown})
	}

	for _, item := range timeline.Assemble(res.PageBuilds(), res.Seed) {
		entry := Entry{Kind: item.Kind, Time: item.Timestamp, Title: title(item)}
		if item.Kind == timeline.KindBuild {
			entry.Build = buildEntry(*item.Build, res)
		}
		rep.Timeline = append(rep.Timeline, entry)
	}
	for _, err := range res.Errors {
		rep.Errors = append(rep.Errors, domain.Describe(err))
	}
	return rep
}

func buildEntry(b domain.Build, res pipeline.Result) *BuildEntry {
	entry := &BuildEntry{ID: b.ID, Number: b.Number, Condition: condition.Of(b)}
	d, ok := res.Detail(b.ID)
	if !ok {
		return entry
	}
	entry.Jobs = condition.JobStrip(d)
	var shards []condition.Condition
	for _, id := range d.JobIDs() {
		shards = append(shards, condition.ShardConditions(res.Jobs[id])...)
	}
	entry.Shards = condition.Compress(shards)
	for _, t := range d.TestFailures.Tests {
		entry.Failures = append(entry.Failures, t.Name)
	}
	return entry
}

func title(item timeline.Renderable) string {
	switch item.Kind {
	case timeline.KindBuild:
		if item.Build.Name != "" {
			return item.Build.Name
		}
		return fmt.Sprintf("#%d", item.Build.Number)
	case timeline.KindCommit:
		first, _, _ := strings.Cut(item.Commit.Message, "\n")
		return fmt.Sprintf("%s %s", shortSHA(item.Commit.SHA), first)
	case timeline.KindDiff:
		return fmt.Sprintf("D%d %s", item.Diff.RevisionID, item.Diff.Title)
	case timeline.KindDiffUpdate:
		return fmt.Sprintf("diff %d uploaded", item.Update.DiffID)
	default:
		return string(item.Kind)
	}
}

func shortSHA(sha string) string {
	if len(sha) > 12 {
		return sha[:12]
	}
	return sha
}

// Render writes the report in the given format: "yaml" or "json".
func Render(w io.Writer, format string, rep Report) error {
	switch format {
	case "yaml", "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rep); err != nil {
			return fmt.Errorf("encoding yaml report: %w", err)
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rep); err != nil {
			return fmt.Errorf("encoding json report: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unsupported report format %q", format)
	}
}

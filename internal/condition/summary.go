package condition

import "github.com/waabox/changesdeck/internal/domain"

// JobStrip is the compressed row of job conditions shown next to a build.
func JobStrip(d domain.BuildDetail) []Run {
	return Compress(All(d.Jobs))
}

// ShardConditions classifies every shard of a job's phases in phase order.
func ShardConditions(phases []domain.Phase) []Condition {
	var out []Condition
	for _, p := range phases {
		out = append(out, All(p.Shards)...)
	}
	return out
}

// Overall is the page-level summary across builds. A build that has loaded
// its jobs contributes the summary of its jobs; otherwise its own condition.
func Overall(builds []domain.BuildDetail) Condition {
	conds := make([]Condition, 0, len(builds))
	for _, b := range builds {
		own := Of(b.Build)
		if len(b.Jobs) > 0 {
			if jobs := SummarizeRunnables(b.Jobs); jobs.Severity() > own.Severity() {
				own = jobs
			}
		}
		conds = append(conds, own)
	}
	return Summarize(conds)
}

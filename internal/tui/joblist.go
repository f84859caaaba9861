package tui

import (
	"fmt"
	"strings"

	"github.com/waabox/changesdeck/internal/condition"
	"github.com/waabox/changesdeck/internal/domain"
)

// JobListModel is an immutable model for the jobs of one build.
type JobListModel struct {
	jobs   []domain.Job
	phases map[string][]domain.Phase
	cursor int
}

// NewJobListModel creates a job list. phases maps job ID to its loaded
// phases; jobs missing from it render without a shard strip.
func NewJobListModel(jobs []domain.Job, phases map[string][]domain.Phase) JobListModel {
	return JobListModel{jobs: jobs, phases: phases}
}

// Refresh replaces the jobs, keeping the cursor position.
func (m JobListModel) Refresh(jobs []domain.Job, phases map[string][]domain.Phase) JobListModel {
	next := NewJobListModel(jobs, phases)
	next.cursor = clampCursor(m.cursor, len(jobs))
	return next
}

// MoveDown returns a new model with the cursor moved down by one.
func (m JobListModel) MoveDown() JobListModel {
	if m.cursor < len(m.jobs)-1 {
		m.cursor++
	}
	return m
}

// MoveUp returns a new model with the cursor moved up by one.
func (m JobListModel) MoveUp() JobListModel {
	if m.cursor > 0 {
		m.cursor--
	}
	return m
}

// Cursor returns the current cursor position.
func (m JobListModel) Cursor() int {
	return m.cursor
}

// Jobs returns the full job slice.
func (m JobListModel) Jobs() []domain.Job {
	return m.jobs
}

// SelectedJob returns the highlighted job.
func (m JobListModel) SelectedJob() (domain.Job, bool) {
	if len(m.jobs) == 0 {
		return domain.Job{}, false
	}
	return m.jobs[m.cursor], true
}

// View renders the job list with cursor indicators.
func (m JobListModel) View() string {
	if len(m.jobs) == 0 {
		return "No jobs found."
	}
	var sb strings.Builder
	for i, j := range m.jobs {
		prefix := "  "
		if i == m.cursor {
			prefix = "> "
		}
		shards := dimStyle.Render("…")
		if phases, ok := m.phases[j.ID]; ok {
			shards = renderStrip(condition.Compress(condition.ShardConditions(phases)))
		}
		sb.WriteString(fmt.Sprintf("%s%s %-30s %-8s %s\n",
			prefix,
			conditionIcon(condition.Of(j)),
			truncate(j.Name, 30),
			formatDuration(j.Elapsed()),
			shards,
		))
	}
	return sb.String()
}

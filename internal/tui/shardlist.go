package tui

import (
	"fmt"
	"strings"

	"github.com/waabox/changesdeck/internal/condition"
	"github.com/waabox/changesdeck/internal/domain"
)

type shardRow struct {
	phase string
	shard domain.Shard
}

// ShardListModel is an immutable model for the shards of one job, listed
// phase by phase.
type ShardListModel struct {
	rows   []shardRow
	cursor int
}

// NewShardListModel flattens phases into one shard list.
func NewShardListModel(phases []domain.Phase) ShardListModel {
	var rows []shardRow
	for _, p := range phases {
		for _, s := range p.Shards {
			rows = append(rows, shardRow{phase: p.Name, shard: s})
		}
	}
	return ShardListModel{rows: rows}
}

// Refresh replaces the shards, keeping the cursor position.
func (m ShardListModel) Refresh(phases []domain.Phase) ShardListModel {
	next := NewShardListModel(phases)
	next.cursor = clampCursor(m.cursor, len(next.rows))
	return next
}

// MoveDown returns a new model with the cursor moved down by one.
func (m ShardListModel) MoveDown() ShardListModel {
	if m.cursor < len(m.rows)-1 {
		m.cursor++
	}
	return m
}

// MoveUp returns a new model with the cursor moved up by one.
func (m ShardListModel) MoveUp() ShardListModel {
	if m.cursor > 0 {
		m.cursor--
	}
	return m
}

// Cursor returns the current cursor position.
func (m ShardListModel) Cursor() int {
	return m.cursor
}

// Len returns the number of shards.
func (m ShardListModel) Len() int {
	return len(m.rows)
}

// SelectedShard returns the highlighted shard.
func (m ShardListModel) SelectedShard() (domain.Shard, bool) {
	if len(m.rows) == 0 {
		return domain.Shard{}, false
	}
	return m.rows[m.cursor].shard, true
}

// View renders the shard list with cursor indicators.
func (m ShardListModel) View() string {
	if len(m.rows) == 0 {
		return "No shards found."
	}
	var sb strings.Builder
	for i, r := range m.rows {
		prefix := "  "
		if i == m.cursor {
			prefix = "> "
		}
		s := r.shard
		tests := "--"
		if s.TestCount > 0 {
			tests = fmt.Sprintf("%d/%d failed", s.FailureCount, s.TestCount)
		}
		sb.WriteString(fmt.Sprintf("%s%s %-32s %-16s %-8s %s\n",
			prefix,
			conditionIcon(condition.Of(s)),
			truncate(r.phase+" / "+s.Name, 32),
			truncate(s.Node.Name, 16),
			formatDuration(s.Elapsed()),
			tests,
		))
	}
	return sb.String()
}

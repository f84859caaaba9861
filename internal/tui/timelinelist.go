package tui

import (
	"fmt"
	"strings"

	"github.com/waabox/changesdeck/internal/condition"
	"github.com/waabox/changesdeck/internal/domain"
	"github.com/waabox/changesdeck/internal/timeline"
)

// TimelineModel is an immutable model for the page timeline panel.
type TimelineModel struct {
	items  []timeline.Renderable
	strips map[string][]condition.Run
	cursor int
}

// NewTimelineModel creates a timeline model. strips maps build ID to its
// compressed job conditions; builds without an entry show no strip.
func NewTimelineModel(items []timeline.Renderable, strips map[string][]condition.Run) TimelineModel {
	return TimelineModel{items: items, strips: strips}
}

// Refresh replaces the rows, keeping the cursor on the same build when it
// is still present.
func (m TimelineModel) Refresh(items []timeline.Renderable, strips map[string][]condition.Run) TimelineModel {
	selected, hadBuild := m.SelectedBuild()
	next := NewTimelineModel(items, strips)
	next.cursor = clampCursor(m.cursor, len(items))
	if hadBuild {
		for i, it := range items {
			if it.Kind == timeline.KindBuild && it.Build.ID == selected.ID {
				next.cursor = i
				break
			}
		}
	}
	return next
}

// MoveDown returns a new model with the cursor moved down by one.
func (m TimelineModel) MoveDown() TimelineModel {
	if m.cursor < len(m.items)-1 {
		m.cursor++
	}
	return m
}

// MoveUp returns a new model with the cursor moved up by one.
func (m TimelineModel) MoveUp() TimelineModel {
	if m.cursor > 0 {
		m.cursor--
	}
	return m
}

// Cursor returns the current cursor position.
func (m TimelineModel) Cursor() int {
	return m.cursor
}

// Items returns the rows in display order.
func (m TimelineModel) Items() []timeline.Renderable {
	return m.items
}

// SelectedBuild returns the highlighted build, if the cursor is on one.
func (m TimelineModel) SelectedBuild() (domain.Build, bool) {
	if len(m.items) == 0 || m.items[m.cursor].Kind != timeline.KindBuild {
		return domain.Build{}, false
	}
	return *m.items[m.cursor].Build, true
}

// View renders the timeline as a string.
func (m TimelineModel) View() string {
	if len(m.items) == 0 {
		return "No builds found."
	}
	var sb strings.Builder
	for i, it := range m.items {
		prefix := "  "
		if i == m.cursor {
			prefix = "> "
		}
		sb.WriteString(prefix)
		sb.WriteString(m.row(it))
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m TimelineModel) row(it timeline.Renderable) string {
	age := formatAge(it.Timestamp)
	switch it.Kind {
	case timeline.KindBuild:
		b := it.Build
		name := b.Name
		if name == "" {
			name = b.Target
		}
		return fmt.Sprintf("%s #%-5d %-28s %-16s %s",
			conditionIcon(condition.Of(*b)), b.Number, truncate(name, 28),
			renderStrip(m.strips[b.ID]), dimStyle.Render(age))
	case timeline.KindCommit:
		return dimStyle.Render(fmt.Sprintf("◆ commit %s %s  %s",
			shortSHA(it.Commit.SHA), truncate(firstLine(it.Commit.Message), 40), age))
	case timeline.KindDiff:
		return dimStyle.Render(fmt.Sprintf("◆ D%d %s  %s",
			it.Diff.RevisionID, truncate(it.Diff.Title, 40), age))
	case timeline.KindDiffUpdate:
		return dimStyle.Render(fmt.Sprintf("↑ diff %d uploaded  %s", it.Update.DiffID, age))
	default:
		return string(it.Kind)
	}
}

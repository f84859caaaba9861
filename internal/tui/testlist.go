package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/waabox/changesdeck/internal/condition"
	"github.com/waabox/changesdeck/internal/domain"
)

// TestListModel is an immutable model for a build's failing tests.
type TestListModel struct {
	tests  []domain.TestCase
	cursor int
}

// NewTestListModel creates a test list model.
func NewTestListModel(tests []domain.TestCase) TestListModel {
	return TestListModel{tests: tests}
}

// Refresh replaces the tests, keeping the cursor position.
func (m TestListModel) Refresh(tests []domain.TestCase) TestListModel {
	next := NewTestListModel(tests)
	next.cursor = clampCursor(m.cursor, len(tests))
	return next
}

// MoveDown returns a new model with the cursor moved down by one.
func (m TestListModel) MoveDown() TestListModel {
	if m.cursor < len(m.tests)-1 {
		m.cursor++
	}
	return m
}

// MoveUp returns a new model with the cursor moved up by one.
func (m TestListModel) MoveUp() TestListModel {
	if m.cursor > 0 {
		m.cursor--
	}
	return m
}

// Cursor returns the current cursor position.
func (m TestListModel) Cursor() int {
	return m.cursor
}

// SelectedTest returns the highlighted test.
func (m TestListModel) SelectedTest() (domain.TestCase, bool) {
	if len(m.tests) == 0 {
		return domain.TestCase{}, false
	}
	return m.tests[m.cursor], true
}

// View renders the test list with cursor indicators.
func (m TestListModel) View() string {
	if len(m.tests) == 0 {
		return "No failing tests."
	}
	var sb strings.Builder
	for i, t := range m.tests {
		prefix := "  "
		if i == m.cursor {
			prefix = "> "
		}
		retries := ""
		if t.NumRetries > 0 {
			retries = fmt.Sprintf("retried %d", t.NumRetries)
		}
		sb.WriteString(fmt.Sprintf("%s%s %-50s %-8s %s\n",
			prefix,
			conditionIcon(condition.Classify(domain.StatusFinished, t.Result)),
			truncate(t.Name, 50),
			formatDuration(time.Duration(t.Duration)*time.Millisecond),
			retries,
		))
	}
	return sb.String()
}

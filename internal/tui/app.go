package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/waabox/changesdeck/internal/condition"
	"github.com/waabox/changesdeck/internal/domain"
	"github.com/waabox/changesdeck/internal/fetch"
	"github.com/waabox/changesdeck/internal/pipeline"
	"github.com/waabox/changesdeck/internal/timeline"
)

const (
	defaultPollInterval = 5 * time.Second
	actionTimeout       = 30 * time.Second
	maxShownErrors      = 3
)

// AdvanceMsg asks the model to advance the pipeline and re-render.
// It is exported so that tests can drive AppModel.Update directly.
type AdvanceMsg struct{}

// RetryResultMsg is sent when a retry request completes.
type RetryResultMsg struct {
	Build domain.Build
	Err   error
}

// updateMsg is sent when a fetch on page settles.
type updateMsg struct {
	page *page
}

// tickMsg is sent by the auto-refresh ticker.
type tickMsg struct{}

// viewState indicates the current navigation level.
type viewState int

const (
	viewTimeline viewState = iota
	viewJobs
	viewShards
	viewTests
	viewLogs
)

type logKind int

const (
	logShard logKind = iota
	logTest
)

// logTarget is what the log viewer shows: a shard log or a test's output.
type logTarget struct {
	kind   logKind
	title  string
	jobID  string
	logID  string
	testID string
}

// AppModel is the root Bubbletea model for changesdeck. Every re-render
// calls Advance on the page pipeline, which dispatches whatever the current
// stage still needs; fetch completions wake the model up again.
type AppModel struct {
	ctx       context.Context
	provider  domain.CIProvider
	anchor    domain.Anchor
	cacheOpts []fetch.Option
	poll      time.Duration
	page      *page

	// Navigation
	view          viewState
	testsReturn   viewState
	logReturnView viewState
	selectedBuild string
	selectedJob   string
	// Panels
	timeline TimelineModel
	jobs     JobListModel
	shards   ShardListModel
	tests    TestListModel
	// Pipeline state
	result     pipeline.Result
	summary    condition.Condition
	refreshing bool
	// General state
	err          error
	notice       string
	confirmRetry bool
	retryTarget  domain.Build
	width        int
	height       int
	// Log viewer state
	log       logTarget
	logOffset int
}

// NewAppModel creates the root model and the first page for anchor.
// opts configure every page cache the model creates.
func NewAppModel(ctx context.Context, p domain.CIProvider, anchor domain.Anchor, poll time.Duration, opts ...fetch.Option) AppModel {
	if poll <= 0 {
		poll = defaultPollInterval
	}
	return AppModel{
		ctx:       ctx,
		provider:  p,
		anchor:    anchor,
		cacheOpts: opts,
		poll:      poll,
		page:      newPage(ctx, p, anchor, opts),
		summary:   condition.Passed,
	}
}

// Init starts the pipeline, the update listener and the refresh ticker.
func (m AppModel) Init() tea.Cmd {
	return tea.Batch(advanceCmd, m.page.waitForUpdate(), tickEvery(m.poll))
}

func advanceCmd() tea.Msg { return AdvanceMsg{} }

func tickEvery(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(_ time.Time) tea.Msg {
		return tickMsg{}
	})
}

func (m AppModel) retryBuild(b domain.Build) tea.Cmd {
	ctx, p := m.ctx, m.provider
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, actionTimeout)
		defer cancel()
		build, err := p.RetryBuild(ctx, b.ID)
		return RetryResultMsg{Build: build, Err: err}
	}
}

// advance runs one pipeline step. While a refresh is loading, the previous
// result stays on screen until the new page settles.
func (m AppModel) advance() AppModel {
	res := m.page.waterfall.Advance()
	if m.refreshing && res.Outcome == pipeline.Pending {
		return m
	}
	m.refreshing = false
	m.result = res
	m.summary = condition.Overall(res.Builds)
	m.syncPanels()
	return m
}

func (m *AppModel) syncPanels() {
	items := timeline.Assemble(m.result.PageBuilds(), m.result.Seed)
	strips := make(map[string][]condition.Run, len(m.result.Builds))
	for _, d := range m.result.Builds {
		strips[d.ID] = condition.JobStrip(d)
	}
	m.timeline = m.timeline.Refresh(items, strips)

	if m.selectedBuild != "" {
		d, _ := m.result.Detail(m.selectedBuild)
		m.jobs = m.jobs.Refresh(d.Jobs, m.result.Jobs)
		if st := m.page.tests.Get(m.selectedBuild); st.IsLoaded() {
			m.tests = m.tests.Refresh(st.Payload.Tests)
		}
	}
	if m.selectedJob != "" {
		m.shards = m.shards.Refresh(m.result.Jobs[m.selectedJob])
	}
}

// refresh tears the page down and starts a new pipeline for the same anchor.
func (m AppModel) refresh() (AppModel, tea.Cmd) {
	m.page.close()
	m.page = newPage(m.ctx, m.provider, m.anchor, m.cacheOpts)
	m.refreshing = true
	m.err = nil
	switch m.view {
	case viewTests:
		m.page.fetchFailures(m.selectedBuild)
	case viewLogs:
		m.fetchLogTarget()
	}
	return m, tea.Batch(advanceCmd, m.page.waitForUpdate())
}

func (m AppModel) fetchLogTarget() {
	switch m.log.kind {
	case logShard:
		m.page.fetchLog(m.log.jobID, m.log.logID)
	case logTest:
		m.page.fetchTest(m.log.testID)
	}
}

func (m AppModel) quit() (tea.Model, tea.Cmd) {
	m.page.close()
	return m, tea.Quit
}

// Update handles all incoming messages and key events.
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case updateMsg:
		if msg.page != m.page {
			return m, nil
		}
		return m.advance(), m.page.waitForUpdate()

	case AdvanceMsg:
		return m.advance(), nil

	case tickMsg:
		m = m.advance()
		next := tickEvery(m.poll)
		if !m.refreshing && m.result.Outcome != pipeline.Pending && m.summary == condition.Waiting {
			var cmd tea.Cmd
			m, cmd = m.refresh()
			return m, tea.Batch(cmd, next)
		}
		return m, next

	case RetryResultMsg:
		if msg.Err != nil {
			m.err = fmt.Errorf("retry failed: %w", msg.Err)
			return m, nil
		}
		m.notice = fmt.Sprintf("Retry started: build #%d", msg.Build.Number)
		return m.refresh()

	case tea.KeyMsg:
		if m.confirmRetry {
			m.confirmRetry = false
			switch msg.String() {
			case "y":
				if m.retryTarget.ID == "" {
					return m, nil
				}
				return m, m.retryBuild(m.retryTarget)
			case "q", "ctrl+c":
				return m.quit()
			default:
				return m, nil
			}
		}
		switch msg.String() {
		case "q", "ctrl+c":
			return m.quit()
		case "ctrl+r":
			return m.refresh()
		}
		m.notice = ""
		switch m.view {
		case viewTimeline:
			return m.updateTimeline(msg)
		case viewJobs:
			return m.updateJobs(msg)
		case viewShards:
			return m.updateShards(msg)
		case viewTests:
			return m.updateTests(msg)
		case viewLogs:
			return m.updateLogs(msg)
		}
	}
	return m, nil
}

func (m AppModel) askRetry(b domain.Build) AppModel {
	m.confirmRetry = true
	m.retryTarget = b
	return m
}

func (m AppModel) openTests(buildID string) AppModel {
	m.testsReturn = m.view
	m.selectedBuild = buildID
	m.tests = NewTestListModel(nil)
	m.page.fetchFailures(buildID)
	if st := m.page.tests.Get(buildID); st.IsLoaded() {
		m.tests = NewTestListModel(st.Payload.Tests)
	}
	m.view = viewTests
	return m
}

func (m AppModel) openLog(target logTarget) AppModel {
	m.logReturnView = m.view
	m.log = target
	m.logOffset = 0
	m.fetchLogTarget()
	m.view = viewLogs
	return m
}

func (m AppModel) selectedBuildEntity() (domain.Build, bool) {
	for _, b := range m.result.PageBuilds() {
		if b.ID == m.selectedBuild {
			return b, true
		}
	}
	return domain.Build{}, false
}

func (m AppModel) updateTimeline(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "down":
		m.timeline = m.timeline.MoveDown()
	case "up":
		m.timeline = m.timeline.MoveUp()
	case "enter":
		if b, ok := m.timeline.SelectedBuild(); ok {
			m.selectedBuild = b.ID
			d, _ := m.result.Detail(b.ID)
			m.jobs = NewJobListModel(d.Jobs, m.result.Jobs)
			m.view = viewJobs
		}
	case "t":
		if b, ok := m.timeline.SelectedBuild(); ok {
			return m.openTests(b.ID), nil
		}
	case "r":
		if b, ok := m.timeline.SelectedBuild(); ok {
			return m.askRetry(b), nil
		}
	}
	return m, nil
}

func (m AppModel) updateJobs(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "down":
		m.jobs = m.jobs.MoveDown()
	case "up":
		m.jobs = m.jobs.MoveUp()
	case "enter":
		if j, ok := m.jobs.SelectedJob(); ok {
			m.selectedJob = j.ID
			m.shards = NewShardListModel(m.result.Jobs[j.ID])
			m.view = viewShards
		}
	case "t":
		return m.openTests(m.selectedBuild), nil
	case "r":
		if b, ok := m.selectedBuildEntity(); ok {
			return m.askRetry(b), nil
		}
	case "esc":
		m.view = viewTimeline
		m.selectedBuild = ""
	}
	return m, nil
}

func (m AppModel) updateShards(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "down":
		m.shards = m.shards.MoveDown()
	case "up":
		m.shards = m.shards.MoveUp()
	case "enter", "l":
		s, ok := m.shards.SelectedShard()
		if !ok {
			return m, nil
		}
		if len(s.LogSources) == 0 {
			m.notice = fmt.Sprintf("No logs for %s", s.Name)
			return m, nil
		}
		src := s.LogSources[0]
		return m.openLog(logTarget{
			kind:  logShard,
			title: fmt.Sprintf("%s / %s", s.Name, src.Name),
			jobID: m.selectedJob,
			logID: src.ID,
		}), nil
	case "esc":
		m.view = viewJobs
		m.selectedJob = ""
	}
	return m, nil
}

func (m AppModel) updateTests(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "down":
		m.tests = m.tests.MoveDown()
	case "up":
		m.tests = m.tests.MoveUp()
	case "enter":
		if t, ok := m.tests.SelectedTest(); ok {
			return m.openLog(logTarget{kind: logTest, title: t.Name, testID: t.ID}), nil
		}
	case "esc":
		m.view = m.testsReturn
		if m.view == viewTimeline {
			m.selectedBuild = ""
		}
	}
	return m, nil
}

func (m AppModel) updateLogs(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	content, _ := m.logText()
	maxOffset := strings.Count(content, "\n")
	switch msg.String() {
	case "down":
		if m.logOffset < maxOffset {
			m.logOffset++
		}
	case "up":
		if m.logOffset > 0 {
			m.logOffset--
		}
	case "pgup":
		m.logOffset -= m.visibleLogLines()
		if m.logOffset < 0 {
			m.logOffset = 0
		}
	case "pgdown":
		m.logOffset += m.visibleLogLines()
		if m.logOffset > maxOffset {
			m.logOffset = maxOffset
		}
	case "g":
		m.logOffset = 0
	case "G":
		m.logOffset = maxOffset
	case "esc":
		m.view = m.logReturnView
		m.logOffset = 0
		if m.view == viewTests {
			m.page.fetchFailures(m.selectedBuild)
		}
	}
	return m, nil
}

// logText returns the viewer content and whether it has loaded.
func (m AppModel) logText() (string, bool) {
	switch m.log.kind {
	case logTest:
		st := m.page.testCases.Get(m.log.testID)
		return stateText(st, func(t domain.TestCase) string {
			if t.Message == "" {
				return "(no output captured)"
			}
			return t.Message
		})
	default:
		st := m.page.logs.Get(logKey(m.log.jobID, m.log.logID))
		return stateText(st, func(s string) string { return s })
	}
}

func stateText[T any](st fetch.State[T], text func(T) string) (string, bool) {
	switch {
	case st.IsLoaded():
		return text(st.Payload), true
	case st.IsErrored():
		return errorStyle.Render("Error: " + domain.Describe(st.Err)), false
	default:
		return "Loading...", false
	}
}

// View renders the full TUI.
func (m AppModel) View() string {
	if m.view == viewLogs {
		return m.renderLogView()
	}

	header := m.header()
	var title, body, footer string
	switch m.view {
	case viewJobs:
		title = fmt.Sprintf(" Jobs for build %s\n", m.buildLabel())
		body = m.renderJobs()
		footer = " ↑/↓: navigate   enter: shards   t: failed tests   r: retry   esc: back   ctrl+r: refresh   q: quit\n"
	case viewShards:
		title = fmt.Sprintf(" Shards for job %s\n", m.jobLabel())
		body = m.renderShards()
		footer = " ↑/↓: navigate   enter/l: log   esc: back   ctrl+r: refresh   q: quit\n"
	case viewTests:
		title = fmt.Sprintf(" Failing tests for build %s\n", m.buildLabel())
		body = m.renderTests()
		footer = " ↑/↓: navigate   enter: output   esc: back   ctrl+r: refresh   q: quit\n"
	default:
		title = " Timeline\n"
		body = m.renderTimeline()
		footer = " ↑/↓: navigate   enter: jobs   t: failed tests   r: retry   ctrl+r: refresh   q: quit\n"
	}
	if m.confirmRetry {
		footer = fmt.Sprintf(" Retry build #%d (%s)? [y/N] \n", m.retryTarget.Number, m.retryTarget.Name)
	}
	return header + separator + title + body + "\n" + separator + m.statusLine() + separator + footer
}

func (m AppModel) header() string {
	progress := "complete"
	switch m.result.Outcome {
	case pipeline.Pending:
		progress = m.result.Progress()
	case pipeline.PartialFailure:
		progress = "failed at " + m.result.Progress()
	}
	if m.refreshing {
		progress += " (refreshing)"
	}
	return fmt.Sprintf(" changesdeck | %s | %s %s | %s\n",
		describeAnchor(m.anchor), conditionIcon(m.summary), m.summary, progress)
}

func describeAnchor(a domain.Anchor) string {
	if a.Kind == domain.AnchorDiff {
		return "diff " + a.DiffID
	}
	return fmt.Sprintf("%s @ %s", a.Project, shortSHA(a.Source))
}

func (m AppModel) statusLine() string {
	var lines []string
	if m.err != nil {
		lines = append(lines, errorStyle.Render(" Error: "+domain.Describe(m.err)))
	}
	if m.result.Outcome == pipeline.PartialFailure {
		for i, err := range m.result.Errors {
			if i == maxShownErrors {
				lines = append(lines, fmt.Sprintf(" … and %d more", len(m.result.Errors)-i))
				break
			}
			lines = append(lines, errorStyle.Render(" "+domain.Describe(err)))
		}
	}
	if m.notice != "" {
		lines = append(lines, " "+m.notice)
	}
	if len(lines) == 0 {
		return " " + dimStyle.Render(fmt.Sprintf("%d builds", len(m.result.Seed.BuildIDs()))) + "\n"
	}
	return strings.Join(lines, "\n") + "\n"
}

func (m AppModel) buildLabel() string {
	if b, ok := m.selectedBuildEntity(); ok {
		return fmt.Sprintf("#%d %s", b.Number, b.Name)
	}
	return m.selectedBuild
}

func (m AppModel) jobLabel() string {
	for _, j := range m.jobs.Jobs() {
		if j.ID == m.selectedJob {
			return j.Name
		}
	}
	return m.selectedJob
}

func (m AppModel) renderTimeline() string {
	if m.result.Outcome == pipeline.Pending && m.result.Stage == pipeline.StageSeed {
		return "Loading builds...\n"
	}
	return m.timeline.View()
}

func (m AppModel) renderJobs() string {
	if _, ok := m.result.Detail(m.selectedBuild); !ok {
		if m.result.Outcome == pipeline.PartialFailure {
			return "Build could not be loaded.\n"
		}
		return "Loading jobs...\n"
	}
	return m.jobs.View()
}

func (m AppModel) renderShards() string {
	if _, ok := m.result.Jobs[m.selectedJob]; !ok {
		if m.result.Outcome == pipeline.PartialFailure {
			return "Shards could not be loaded.\n"
		}
		return "Loading shards...\n"
	}
	return m.shards.View()
}

func (m AppModel) renderTests() string {
	st := m.page.tests.Get(m.selectedBuild)
	if !st.IsLoaded() {
		text, _ := stateText(st, func(domain.TestPage) string { return "" })
		return text + "\n"
	}
	view := m.tests.View()
	if st.Payload.HasNext {
		view += dimStyle.Render(fmt.Sprintf("  showing the first %d failures", len(st.Payload.Tests))) + "\n"
	}
	return view
}

// visibleLogLines returns the number of log lines visible in the current terminal height.
func (m AppModel) visibleLogLines() int {
	lines := m.height - 4 // header, two separators, footer
	if lines < 10 {
		return 10
	}
	return lines
}

// renderLogView renders the fullscreen log viewer.
func (m AppModel) renderLogView() string {
	header := fmt.Sprintf(" changesdeck  %s  [logs] %s\n", describeAnchor(m.anchor), m.log.title)
	footer := " ↑/↓: scroll   PgUp/PgDn: page   g/G: top/bottom   esc: back\n"

	content, _ := m.logText()
	lines := strings.Split(content, "\n")
	start := clampCursor(m.logOffset, len(lines))
	end := start + m.visibleLogLines()
	if end > len(lines) {
		end = len(lines)
	}
	body := strings.Join(lines[start:end], "\n")
	return header + separator + body + "\n" + separator + footer
}

// Run starts the Bubbletea program and blocks until the user quits.
func Run(ctx context.Context, p domain.CIProvider, anchor domain.Anchor, poll time.Duration, opts ...fetch.Option) error {
	m := NewAppModel(ctx, p, anchor, poll, opts...)
	prog := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	final, err := prog.Run()
	if am, ok := final.(AppModel); ok {
		am.page.close()
	}
	if err != nil {
		return fmt.Errorf("running dashboard: %w", err)
	}
	return nil
}

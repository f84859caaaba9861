package tui

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/waabox/changesdeck/internal/domain"
	"github.com/waabox/changesdeck/internal/fetch"
	"github.com/waabox/changesdeck/internal/pipeline"
)

const testsPerPage = 100

// page is everything fetched for one anchor between two refreshes. All its
// coordinators share one cache, so closing the page drops every late result.
type page struct {
	provider  domain.CIProvider
	waterfall *pipeline.Waterfall
	logs      *fetch.Coordinator[string]
	tests     *fetch.Coordinator[domain.TestPage]
	testCases *fetch.Coordinator[domain.TestCase]

	updates   chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func newPage(ctx context.Context, p domain.CIProvider, anchor domain.Anchor, opts []fetch.Option) *page {
	pg := &page{
		provider: p,
		updates:  make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	notify := func(string, string) {
		select {
		case pg.updates <- struct{}{}:
		default:
		}
	}
	all := append(append([]fetch.Option(nil), opts...), fetch.WithNotify(notify))
	cache := fetch.NewCache(ctx, all...)
	pg.waterfall = pipeline.ForProvider(cache, anchor, p)
	pg.logs = fetch.NewCoordinator[string](cache, "logs")
	pg.tests = fetch.NewCoordinator[domain.TestPage](cache, "tests")
	pg.testCases = fetch.NewCoordinator[domain.TestCase](cache, "test_output")
	return pg
}

func (pg *page) close() {
	pg.closeOnce.Do(func() {
		pg.waterfall.Close()
		close(pg.done)
	})
}

// waitForUpdate blocks until some fetch on the page settles. It yields no
// message once the page is closed.
func (pg *page) waitForUpdate() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-pg.updates:
			return updateMsg{page: pg}
		case <-pg.done:
			return nil
		}
	}
}

func logKey(jobID, logID string) string { return jobID + "/" + logID }

func (pg *page) fetchLog(jobID, logID string) string {
	key := logKey(jobID, logID)
	pg.logs.FetchOnce(key, func(ctx context.Context) (string, error) {
		return pg.provider.GetLog(ctx, jobID, logID)
	})
	return key
}

func (pg *page) fetchFailures(buildID string) {
	pg.tests.FetchOnce(buildID, func(ctx context.Context) (domain.TestPage, error) {
		return pg.provider.ListTests(ctx, buildID, domain.TestQuery{
			FailuresOnly: true,
			Sort:         "duration",
			Reverse:      true,
			PerPage:      testsPerPage,
		})
	})
}

func (pg *page) fetchTest(testID string) {
	pg.testCases.FetchOnce(testID, func(ctx context.Context) (domain.TestCase, error) {
		return pg.provider.GetTest(ctx, testID)
	})
}

package tui

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/waabox/changesdeck/internal/condition"
	"github.com/waabox/changesdeck/internal/domain"
	"github.com/waabox/changesdeck/internal/fetch"
	"github.com/waabox/changesdeck/internal/pipeline"
)

// stubProvider serves one build with a fixed status. While gate is set,
// CommitBuilds blocks until it is closed.
type stubProvider struct {
	mu     sync.Mutex
	build  domain.Build
	gate   chan struct{}
	seeded int
}

func (s *stubProvider) CommitBuilds(_ context.Context, _, _ string) ([]domain.Build, error) {
	s.mu.Lock()
	s.seeded++
	gate := s.gate
	s.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return []domain.Build{s.build}, nil
}
func (s *stubProvider) DiffBuilds(_ context.Context, _ string) (domain.Diff, []domain.DiffUpdate, error) {
	return domain.Diff{}, nil, nil
}
func (s *stubProvider) GetBuild(_ context.Context, _ string) (domain.BuildDetail, error) {
	return domain.BuildDetail{Build: s.build}, nil
}
func (s *stubProvider) RetryBuild(_ context.Context, id string) (domain.Build, error) {
	return domain.Build{ID: id}, nil
}
func (s *stubProvider) GetJobPhases(_ context.Context, _ string) ([]domain.Phase, error) {
	return nil, nil
}
func (s *stubProvider) GetLog(_ context.Context, _, _ string) (string, error) { return "", nil }
func (s *stubProvider) GetTest(_ context.Context, id string) (domain.TestCase, error) {
	return domain.TestCase{ID: id}, nil
}
func (s *stubProvider) ListTests(_ context.Context, _ string, _ domain.TestQuery) (domain.TestPage, error) {
	return domain.TestPage{}, nil
}

func (s *stubProvider) hold() chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gate = make(chan struct{})
	return s.gate
}

func newStubModel(t *testing.T, status domain.Status, result domain.Result) (AppModel, *stubProvider) {
	t.Helper()
	p := &stubProvider{build: domain.Build{ID: "b1", Number: 1, Status: status, Result: result}}
	m := NewAppModel(context.Background(), p, domain.CommitAnchor("server", "abc"), time.Hour, fetch.WithStrict(true))
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		m = m.advance()
		if m.result.Outcome == pipeline.Complete {
			return m, p
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("page never completed, last outcome %v", m.result.Outcome)
	return m, p
}

func tick(m AppModel) AppModel {
	next, _ := m.Update(tickMsg{})
	return next.(AppModel)
}

func TestTick_RefreshesWhileWaiting(t *testing.T) {
	m, _ := newStubModel(t, domain.StatusInProgress, domain.ResultUnknown)
	if m.summary != condition.Waiting {
		t.Fatalf("expected waiting summary, got %s", m.summary)
	}
	before := m.page

	m = tick(m)
	if m.page == before {
		t.Fatal("expected a new page after the tick")
	}
	if !m.refreshing {
		t.Error("expected the model to be refreshing")
	}
}

func TestTick_NoRefreshWhenPassed(t *testing.T) {
	m, p := newStubModel(t, domain.StatusFinished, domain.ResultPassed)
	before := m.page

	m = tick(m)
	if m.page != before || m.refreshing {
		t.Error("a passed page must not be refreshed")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.seeded != 1 {
		t.Errorf("expected 1 seed call, got %d", p.seeded)
	}
}

func TestTick_NoRefreshWhileRefreshPending(t *testing.T) {
	m, p := newStubModel(t, domain.StatusInProgress, domain.ResultUnknown)
	gate := p.hold()
	defer close(gate)

	m, _ = m.refresh()
	pending := m.page

	m = tick(m)
	if m.page != pending {
		t.Fatal("tick must not start a second refresh while one is loading")
	}
	if !m.refreshing || m.result.Outcome != pipeline.Complete {
		t.Errorf("expected the previous result kept while refreshing, got refreshing=%v outcome=%v", m.refreshing, m.result.Outcome)
	}
}

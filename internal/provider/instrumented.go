// internal/provider/instrumented.go
package provider

import (
	"context"
	"log/slog"
	"time"

	"github.com/waabox/changesdeck/internal/domain"
	"github.com/waabox/changesdeck/internal/observability"
)

// InstrumentedProvider wraps a CIProvider and records every call: a debug
// log line with its duration, a warning on failure, and a metrics counter
// labelled by operation and error kind.
type InstrumentedProvider struct {
	inner   domain.CIProvider
	logger  *slog.Logger
	metrics *observability.Metrics
}

// Ensure InstrumentedProvider implements CIProvider.
var _ domain.CIProvider = (*InstrumentedProvider)(nil)

// NewInstrumentedProvider creates an InstrumentedProvider.
// logger and metrics may be nil.
func NewInstrumentedProvider(inner domain.CIProvider, logger *slog.Logger, metrics *observability.Metrics) *InstrumentedProvider {
	if logger == nil {
		logger = observability.Discard()
	}
	return &InstrumentedProvider{inner: inner, logger: logger, metrics: metrics}
}

func (ip *InstrumentedProvider) observe(op string, started time.Time, err error, attrs ...any) {
	kind := domain.ErrorKind(err)
	ip.metrics.IncProviderCall(op, kind)
	attrs = append(attrs, "operation", op, "duration", time.Since(started))
	if err != nil {
		ip.logger.Warn("backend call failed", append(attrs, "error_kind", kind, "error", err)...)
		return
	}
	ip.logger.Debug("backend call", attrs...)
}

func (ip *InstrumentedProvider) CommitBuilds(ctx context.Context, project, source string) ([]domain.Build, error) {
	started := time.Now()
	result, err := ip.inner.CommitBuilds(ctx, project, source)
	ip.observe("commit_builds", started, err, "project", project, "source", source)
	return result, err
}

func (ip *InstrumentedProvider) DiffBuilds(ctx context.Context, diffID string) (domain.Diff, []domain.DiffUpdate, error) {
	started := time.Now()
	diff, updates, err := ip.inner.DiffBuilds(ctx, diffID)
	ip.observe("diff_builds", started, err, "diff_id", diffID)
	return diff, updates, err
}

func (ip *InstrumentedProvider) GetBuild(ctx context.Context, id string) (domain.BuildDetail, error) {
	started := time.Now()
	result, err := ip.inner.GetBuild(ctx, id)
	ip.observe("get_build", started, err, "build_id", id)
	return result, err
}

func (ip *InstrumentedProvider) RetryBuild(ctx context.Context, id string) (domain.Build, error) {
	started := time.Now()
	result, err := ip.inner.RetryBuild(ctx, id)
	ip.observe("retry_build", started, err, "build_id", id)
	return result, err
}

func (ip *InstrumentedProvider) GetJobPhases(ctx context.Context, jobID string) ([]domain.Phase, error) {
	started := time.Now()
	result, err := ip.inner.GetJobPhases(ctx, jobID)
	ip.observe("get_job_phases", started, err, "job_id", jobID)
	return result, err
}

func (ip *InstrumentedProvider) GetLog(ctx context.Context, jobID, logID string) (string, error) {
	started := time.Now()
	result, err := ip.inner.GetLog(ctx, jobID, logID)
	ip.observe("get_log", started, err, "job_id", jobID, "log_id", logID)
	return result, err
}

func (ip *InstrumentedProvider) GetTest(ctx context.Context, id string) (domain.TestCase, error) {
	started := time.Now()
	result, err := ip.inner.GetTest(ctx, id)
	ip.observe("get_test", started, err, "test_id", id)
	return result, err
}

func (ip *InstrumentedProvider) ListTests(ctx context.Context, buildID string, q domain.TestQuery) (domain.TestPage, error) {
	started := time.Now()
	result, err := ip.inner.ListTests(ctx, buildID, q)
	ip.observe("list_tests", started, err, "build_id", buildID, "page", q.Page)
	return result, err
}

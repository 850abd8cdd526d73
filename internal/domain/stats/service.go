package stats

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/neurodash/neurodash/internal/analysis"
	"github.com/neurodash/neurodash/internal/platform/cache"
	"github.com/neurodash/neurodash/internal/platform/fetch"
)

type Service struct {
	repo    Repository
	exec    *fetch.Executor
	monitor *analysis.Monitor
	summary *fetch.Resource[*Summary]
}

// NewService wires the summary resource over the executor. monitor may be
// nil when the analyzer integration is disabled; the widget then reports
// unknown.
func NewService(repo Repository, exec *fetch.Executor, monitor *analysis.Monitor) *Service {
	s := &Service{repo: repo, exec: exec, monitor: monitor}
	s.summary = fetch.NewResource(exec, cache.Key("stats", map[string]string{"scope": "dashboard"}), s.collect)
	return s
}

// collect fans the four counter queries out concurrently; the summary is
// only as slow as the slowest count.
func (s *Service) collect(ctx context.Context) (*Summary, error) {
	sum := &Summary{GeneratedAt: time.Now().UTC()}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.repo.CountPatients(ctx)
		sum.Patients = n
		return err
	})
	g.Go(func() error {
		n, err := s.repo.CountDoctors(ctx)
		sum.Doctors = n
		return err
	})
	g.Go(func() error {
		n, err := s.repo.CountSessions(ctx)
		sum.Sessions = n
		return err
	})
	g.Go(func() error {
		byStatus, err := s.repo.CountSessionsByStatus(ctx)
		sum.SessionsByStatus = byStatus
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return sum, nil
}

// DashboardSummary serves the cached summary, fetching when stale.
func (s *Service) DashboardSummary(ctx context.Context) fetch.Result[*Summary] {
	return s.summary.Load(ctx)
}

// RefreshSummary bypasses the cache for an explicit dashboard refresh.
func (s *Service) RefreshSummary(ctx context.Context) fetch.Result[*Summary] {
	return s.summary.Refetch(ctx)
}

// AnalyzerHealth reports the monitor's latest sample.
func (s *Service) AnalyzerHealth() AnalyzerHealth {
	if s.monitor == nil {
		return AnalyzerHealth{State: analysis.StateUnknown, Reachable: true}
	}
	state, checkedAt := s.monitor.Snapshot()
	return AnalyzerHealth{
		State:     state,
		Reachable: state != analysis.StateUnhealthy,
		CheckedAt: checkedAt,
	}
}

// Package deploy runs reconciliation passes: collect the actual state,
// reconcile it against the desired state and apply the resulting changes.
package deploy

import (
	"context"
	"errors"
	"time"

	"github.com/containerd/log"

	"github.com/melih/lighthouse/internal/core/domain"
	"github.com/melih/lighthouse/internal/core/ports"
	"github.com/melih/lighthouse/internal/core/reconcile"
	"github.com/melih/lighthouse/internal/metrics"
)

// Report describes a pass.
type Report struct {
	Changes []domain.ServiceContainerChange `json:"changes"`
	Summary reconcile.Summary               `json:"summary"`
	Applied bool                            `json:"applied"`
}

// Service runs passes against one engine. It holds no state between passes,
// so every pass recomputes from scratch.
type Service struct {
	engine  ports.ContainerEngine
	metrics *metrics.Metrics
}

// NewService returns a Service. metrics may be nil.
func NewService(engine ports.ContainerEngine, m *metrics.Metrics) *Service {
	return &Service{engine: engine, metrics: m}
}

// Actual collects the actual state.
func (s *Service) Actual(ctx context.Context) (domain.ActualContainers, error) {
	actual, err := s.engine.CollectContainers(ctx)
	if err != nil {
		var collectionErr *domain.CollectionError
		if !errors.As(err, &collectionErr) {
			err = &domain.CollectionError{Err: err}
		}
		return domain.ActualContainers{}, err
	}
	s.metrics.ActualContainers(actual.Len())
	return actual, nil
}

// Plan computes the changes that would converge the host to desired.
func (s *Service) Plan(ctx context.Context, desired domain.DesiredServices) ([]domain.ServiceContainerChange, error) {
	if info, err := s.engine.Version(ctx); err != nil {
		log.G(ctx).WithError(err).Warn("unable to query engine version")
	} else {
		log.G(ctx).WithFields(log.Fields{
			"version":     info.Version,
			"api-version": info.APIVersion,
			"os":          info.Os,
		}).Debug("connected to engine")
	}

	actual, err := s.Actual(ctx)
	if err != nil {
		return nil, err
	}
	if err := reconcile.Validate(desired, actual); err != nil {
		return nil, err
	}
	return reconcile.Reconcile(desired, actual), nil
}

// Deploy runs one full pass. On failure the report still lists the planned
// changes; nothing that was applied is rolled back.
func (s *Service) Deploy(ctx context.Context, desired domain.DesiredServices) (report Report, retErr error) {
	start := time.Now()
	defer func() { s.metrics.ObservePass(start, retErr) }()

	changes, err := s.Plan(ctx, desired)
	if err != nil {
		return Report{}, err
	}
	report = Report{Changes: changes, Summary: reconcile.Summarize(changes)}
	logger := log.G(ctx).WithFields(log.Fields{
		"add":    report.Summary.Added,
		"keep":   report.Summary.Kept,
		"remove": report.Summary.Removed,
	})

	if reconcile.Converged(changes) {
		logger.Info("already converged")
		report.Applied = true
		return report, nil
	}

	logger.Info("applying changes")
	if err := NewApplier(s.engine, desired, s.metrics).Apply(ctx, changes); err != nil {
		return report, err
	}
	report.Applied = true
	logger.WithField("duration", time.Since(start)).Info("converged")
	return report, nil
}

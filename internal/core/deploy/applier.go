package deploy

import (
	"context"
	"fmt"

	"github.com/containerd/log"

	"github.com/melih/lighthouse/internal/core/domain"
	"github.com/melih/lighthouse/internal/core/ports"
	"github.com/melih/lighthouse/internal/metrics"
)

// Applier executes reconciliation changes against an engine, one at a time
// and in the given order.
type Applier struct {
	engine  ports.ContainerEngine
	desired domain.DesiredServices
	metrics *metrics.Metrics
}

// NewApplier returns an applier that starts containers from the templates
// in desired. metrics may be nil.
func NewApplier(engine ports.ContainerEngine, desired domain.DesiredServices, m *metrics.Metrics) *Applier {
	return &Applier{engine: engine, desired: desired, metrics: m}
}

// Apply walks changes in order. The first failure stops the walk and is
// returned as a *domain.ApplyError; changes applied before it stay applied.
func (a *Applier) Apply(ctx context.Context, changes []domain.ServiceContainerChange) error {
	for i, change := range changes {
		if err := ctx.Err(); err != nil {
			return &domain.ApplyError{Index: i, Change: change, Err: err}
		}
		if err := a.apply(ctx, change); err != nil {
			return &domain.ApplyError{Index: i, Change: change, Err: err}
		}
		if change.Kind != domain.ChangeKeep {
			a.metrics.ChangeApplied(change.Kind.String())
		}
	}
	return nil
}

func (a *Applier) apply(ctx context.Context, change domain.ServiceContainerChange) error {
	logger := log.G(ctx).WithFields(log.Fields{
		"service": change.ServiceName,
		"hash":    change.ServiceConfigHash,
	})

	switch change.Kind {
	case domain.ChangeKeep:
		logger.WithField("container", change.ContainerID).Debug("keeping container")
		return nil

	case domain.ChangeAdd:
		definition, ok := a.desired[change.ServiceName]
		if !ok || definition.ServiceConfigHash != change.ServiceConfigHash {
			return fmt.Errorf("no definition of service %q at %s", change.ServiceName, change.ServiceConfigHash)
		}
		id, err := a.engine.StartContainer(ctx, domain.StartRequest{
			ServiceName:       change.ServiceName,
			ServiceConfigHash: change.ServiceConfigHash,
			Template:          definition.Template,
		})
		if err != nil {
			return fmt.Errorf("failed to start container: %w", err)
		}
		logger.WithField("container", id).Info("started container")
		return nil

	case domain.ChangeRemove:
		if err := a.engine.StopContainer(ctx, change.ContainerID); err != nil {
			return fmt.Errorf("failed to stop container: %w", err)
		}
		if err := a.engine.RemoveContainer(ctx, change.ContainerID); err != nil {
			return fmt.Errorf("failed to remove container: %w", err)
		}
		logger.WithField("container", change.ContainerID).Info("removed container")
		return nil

	default:
		return fmt.Errorf("unknown change kind %v", change.Kind)
	}
}

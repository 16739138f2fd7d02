package ports

import (
	"context"

	"github.com/melih/lighthouse/internal/core/domain"
)

// StateCollector queries the containers lighthouse manages on the target host.
type StateCollector interface {
	// CollectContainers returns the actual state. Failures are
	// *domain.CollectionError.
	CollectContainers(ctx context.Context) (domain.ActualContainers, error)
}

// ContainerEngine is the container runtime on the target host. It can be the
// docker CLI, the Docker Engine API, or anything else that honours the
// lighthouse labels.
type ContainerEngine interface {
	StateCollector

	// Version describes the engine, for diagnostics.
	Version(ctx context.Context) (domain.EngineInfo, error)
	// StartContainer starts one replica and returns the new container ID.
	StartContainer(ctx context.Context, req domain.StartRequest) (string, error)
	StopContainer(ctx context.Context, id string) error
	RemoveContainer(ctx context.Context, id string) error
}

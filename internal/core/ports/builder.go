package ports

import (
	"context"

	"github.com/melih/lighthouse/internal/core/domain"
)

// BuilderService defines operations for building container images from source code.
type BuilderService interface {
	// BuildImage clones a repository and builds a Docker image from it.
	// It returns the tag of the built image or an error.
	BuildImage(ctx context.Context, src domain.BuildSource, imageName string) (string, error)
}

// ImageShipper copies a locally built image to the deployment host.
type ImageShipper interface {
	ShipImage(ctx context.Context, imageName string) error
}

package docker

import (
	"context"
	"fmt"
	"io"
	"maps"
	"slices"
	"time"

	"github.com/containerd/log"
	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"

	"github.com/melih/lighthouse/internal/core/domain"
	"github.com/melih/lighthouse/internal/host"
)

// Adapter implements ports.ContainerEngine using the Docker Engine API.
type Adapter struct {
	cli         *client.Client
	project     string
	stopTimeout time.Duration
}

// NewAdapter creates a new Docker adapter instance for a resolved host. The
// Engine API client has no ssh transport, so ssh hosts are rejected here.
func NewAdapter(h host.Host, project string, stopTimeout time.Duration) (*Adapter, error) {
	if h.SSH != nil {
		return nil, fmt.Errorf("the api engine cannot reach %s over ssh, use the cli engine", h.URL)
	}
	cli, err := client.NewClientWithOpts(
		client.FromEnv,
		client.WithHost(h.URL),
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return &Adapter{cli: cli, project: project, stopTimeout: stopTimeout}, nil
}

// Close releases the client's connections.
func (a *Adapter) Close() error {
	return a.cli.Close()
}

// CollectContainers returns the running containers of the project.
func (a *Adapter) CollectContainers(ctx context.Context) (domain.ActualContainers, error) {
	containers, err := a.cli.ContainerList(ctx, container.ListOptions{
		Filters: filters.NewArgs(
			filters.Arg("label", domain.LabelProject+"="+a.project),
			filters.Arg("label", domain.LabelService),
			filters.Arg("label", domain.LabelConfigHash),
		),
	})
	if err != nil {
		return domain.ActualContainers{}, &domain.CollectionError{Err: fmt.Errorf("failed to list containers: %w", err)}
	}

	var actual domain.ActualContainers
	for _, c := range containers {
		actual.Insert(domain.ActualContainer{
			ContainerID:       c.ID,
			ServiceConfigHash: c.Labels[domain.LabelConfigHash],
			ServiceName:       c.Labels[domain.LabelService],
		})
	}
	return actual, nil
}

// Version reports the engine server version.
func (a *Adapter) Version(ctx context.Context) (domain.EngineInfo, error) {
	v, err := a.cli.ServerVersion(ctx)
	if err != nil {
		return domain.EngineInfo{}, fmt.Errorf("failed to query server version: %w", err)
	}
	return domain.EngineInfo{Version: v.Version, APIVersion: v.APIVersion, Os: v.Os, Arch: v.Arch}, nil
}

// StartContainer creates and starts one replica, pulling its image when the
// engine does not have it yet.
func (a *Adapter) StartContainer(ctx context.Context, req domain.StartRequest) (string, error) {
	if req.Template.Image == "" {
		return "", fmt.Errorf("service %q has no image", req.ServiceName)
	}
	req.Project = a.project

	if err := a.ensureImage(ctx, req.Template.Image); err != nil {
		return "", err
	}

	env := make([]string, 0, len(req.Template.Environment))
	for _, k := range slices.Sorted(maps.Keys(req.Template.Environment)) {
		env = append(env, k+"="+req.Template.Environment[k])
	}

	resp, err := a.cli.ContainerCreate(ctx, &container.Config{
		Image:  req.Template.Image,
		Cmd:    req.Template.Command,
		Env:    env,
		Labels: req.Labels(),
	}, nil, nil, nil, domain.NewContainerName(req))
	if err != nil {
		return "", fmt.Errorf("failed to create container: %w", err)
	}

	if err := a.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return "", fmt.Errorf("failed to start container %s: %w", resp.ID, err)
	}
	return resp.ID, nil
}

func (a *Adapter) ensureImage(ctx context.Context, image string) error {
	_, _, err := a.cli.ImageInspectWithRaw(ctx, image)
	if err == nil {
		return nil
	}
	if !errdefs.IsNotFound(err) {
		return fmt.Errorf("failed to inspect image: %w", err)
	}

	log.G(ctx).WithField("image", image).Info("pulling image")
	reader, err := a.cli.ImagePull(ctx, image, types.ImagePullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image: %w", err)
	}
	defer reader.Close()
	// The pull only completes once the progress stream is drained.
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return fmt.Errorf("failed to pull image: %w", err)
	}
	return nil
}

// StopContainer stops a running container.
func (a *Adapter) StopContainer(ctx context.Context, id string) error {
	timeout := int(a.stopTimeout / time.Second)
	if err := a.cli.ContainerStop(ctx, id, container.StopOptions{Timeout: &timeout}); err != nil {
		return fmt.Errorf("failed to stop container: %w", err)
	}
	return nil
}

// RemoveContainer removes a stopped container. A container that is already
// gone counts as removed.
func (a *Adapter) RemoveContainer(ctx context.Context, id string) error {
	err := a.cli.ContainerRemove(ctx, id, container.RemoveOptions{})
	if err != nil && !errdefs.IsNotFound(err) {
		return fmt.Errorf("failed to remove container: %w", err)
	}
	return nil
}

// Package cli drives the container engine through its command line client.
package cli

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os/exec"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/containerd/log"

	"github.com/melih/lighthouse/internal/command"
	"github.com/melih/lighthouse/internal/core/domain"
)

// listColumns is the number of fields printed per container by listFormat.
const listColumns = 3

var listFormat = fmt.Sprintf(`{{.ID}} {{.Label %q}} {{.Label %q}}`, domain.LabelConfigHash, domain.LabelService)

// Engine implements ports.ContainerEngine with the docker CLI.
type Engine struct {
	binary      string
	host        string
	project     string
	stopTimeout time.Duration
}

// NewEngine returns an engine running binary (usually "docker"). A non-empty
// host is passed as --host, which lets the CLI reach remote engines too.
func NewEngine(binary, host, project string, stopTimeout time.Duration) *Engine {
	if binary == "" {
		binary = "docker"
	}
	return &Engine{binary: binary, host: host, project: project, stopTimeout: stopTimeout}
}

func (e *Engine) command(ctx context.Context, args ...string) *exec.Cmd {
	if e.host != "" {
		args = append([]string{"--host", e.host}, args...)
	}
	cmd := exec.CommandContext(ctx, e.binary, args...)
	log.G(ctx).WithField("command", command.String(cmd)).Debug("running engine command")
	return cmd
}

// CollectContainers lists the running containers of the project.
func (e *Engine) CollectContainers(ctx context.Context) (domain.ActualContainers, error) {
	rows, err := command.Table(e.command(ctx,
		"container", "ls",
		"--no-trunc",
		"--filter", "label="+domain.LabelProject+"="+e.project,
		"--filter", "label="+domain.LabelService,
		"--filter", "label="+domain.LabelConfigHash,
		"--format", listFormat,
	), listColumns)
	if err != nil {
		return domain.ActualContainers{}, &domain.CollectionError{Err: err}
	}

	var actual domain.ActualContainers
	for _, row := range rows {
		actual.Insert(domain.ActualContainer{
			ContainerID:       row[0],
			ServiceConfigHash: row[1],
			ServiceName:       row[2],
		})
	}
	return actual, nil
}

// Version reports the engine server version.
func (e *Engine) Version(ctx context.Context) (domain.EngineInfo, error) {
	var info domain.EngineInfo
	if err := command.JSON(e.command(ctx, "version", "--format", "{{json .Server}}"), &info); err != nil {
		return domain.EngineInfo{}, err
	}
	return info, nil
}

// StartContainer runs a detached replica and returns its ID.
func (e *Engine) StartContainer(ctx context.Context, req domain.StartRequest) (string, error) {
	if req.Template.Image == "" {
		return "", fmt.Errorf("service %q has no image", req.ServiceName)
	}
	req.Project = e.project

	args := []string{"container", "run", "--detach", "--name", domain.NewContainerName(req)}
	labels := req.Labels()
	for _, k := range slices.Sorted(maps.Keys(labels)) {
		args = append(args, "--label", k+"="+labels[k])
	}
	for _, k := range slices.Sorted(maps.Keys(req.Template.Environment)) {
		args = append(args, "--env", k+"="+req.Template.Environment[k])
	}
	args = append(args, req.Template.Image)
	args = append(args, req.Template.Command...)

	out, err := command.Text(e.command(ctx, args...))
	if err != nil {
		return "", err
	}
	id := strings.TrimSpace(out)
	if id == "" {
		return "", errors.New("engine did not print a container ID")
	}
	return id, nil
}

// StopContainer stops a container, giving it the stop timeout to exit.
func (e *Engine) StopContainer(ctx context.Context, id string) error {
	timeout := strconv.Itoa(int(e.stopTimeout / time.Second))
	return command.Status(e.command(ctx, "container", "stop", "--time", timeout, id))
}

// RemoveContainer deletes a stopped container.
func (e *Engine) RemoveContainer(ctx context.Context, id string) error {
	return command.Status(e.command(ctx, "container", "rm", id))
}

package builder

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/containerd/log"
	"github.com/distribution/reference"
	"github.com/docker/docker/api/types"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/archive"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/sirupsen/logrus"

	"github.com/melih/lighthouse/internal/core/domain"
)

const defaultDockerfile = "Dockerfile"

type Adapter struct {
	cli *client.Client
}

func NewBuilderAdapter() (*Adapter, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return &Adapter{cli: cli}, nil
}

func (a *Adapter) Close() error {
	return a.cli.Close()
}

// BuildImage clones src and builds imageName from it.
func (a *Adapter) BuildImage(ctx context.Context, src domain.BuildSource, imageName string) (string, error) {
	named, err := reference.ParseNormalizedNamed(imageName)
	if err != nil {
		return "", fmt.Errorf("invalid image name %q: %w", imageName, err)
	}
	tag := reference.FamiliarString(reference.TagNameOnly(named))

	tmpDir, err := os.MkdirTemp("", "lighthouse-build-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	logger := log.G(ctx).WithFields(log.Fields{"repository": src.RepoURL, "image": tag})
	if err := checkout(ctx, src, tmpDir); err != nil {
		return "", err
	}

	buildContext, err := archive.TarWithOptions(tmpDir, &archive.TarOptions{
		ExcludePatterns: []string{".git"},
	})
	if err != nil {
		return "", fmt.Errorf("failed to create build context: %w", err)
	}
	defer buildContext.Close()

	dockerfile := src.Dockerfile
	if dockerfile == "" {
		dockerfile = defaultDockerfile
	}

	logger.Info("building image")
	resp, err := a.cli.ImageBuild(ctx, buildContext, types.ImageBuildOptions{
		Tags:       []string{tag},
		Dockerfile: dockerfile,
		Remove:     true,
	})
	if err != nil {
		return "", fmt.Errorf("failed to build image: %w", err)
	}
	defer resp.Body.Close()

	// The build only finishes once the stream is drained, and step failures
	// are only reported inside it.
	progress := logger.WriterLevel(logrus.DebugLevel)
	defer progress.Close()
	if err := jsonmessage.DisplayJSONMessagesStream(resp.Body, progress, 0, false, nil); err != nil {
		return "", fmt.Errorf("failed to build image: %w", err)
	}
	return tag, nil
}

func checkout(ctx context.Context, src domain.BuildSource, dir string) error {
	logger := log.G(ctx).WithField("repository", src.RepoURL)
	logger.WithField("dir", dir).Info("cloning repository")

	progress := logger.WriterLevel(logrus.DebugLevel)
	defer progress.Close()

	opts := &git.CloneOptions{
		URL:      src.RepoURL,
		Progress: progress,
		Depth:    1,
	}
	if src.Ref != "" {
		opts.ReferenceName = referenceName(src.Ref)
		opts.SingleBranch = true
	}
	if _, err := git.PlainCloneContext(ctx, dir, false, opts); err != nil {
		return fmt.Errorf("failed to clone %s: %w", src.RepoURL, err)
	}
	return nil
}

// referenceName expands a short branch name; full references pass through.
func referenceName(ref string) plumbing.ReferenceName {
	if strings.HasPrefix(ref, "refs/") {
		return plumbing.ReferenceName(ref)
	}
	return plumbing.NewBranchReferenceName(ref)
}

// Package remote drives another host over ssh: it runs lighthouse there and
// copies images to its engine.
package remote

import (
	"context"
	"os/exec"
	"strconv"
	"strings"

	"github.com/containerd/log"

	"github.com/melih/lighthouse/internal/command"
	"github.com/melih/lighthouse/internal/config"
	"github.com/melih/lighthouse/internal/host"
)

// Remote runs commands on one ssh destination.
type Remote struct {
	target host.SSH
	cfg    config.Remote
	// docker is the local docker binary images are saved with.
	docker string
}

// New returns a Remote for target. A user in target wins over cfg.User.
func New(target host.SSH, cfg config.Remote, dockerBinary string) *Remote {
	if target.User == "" {
		target.User = cfg.User
	}
	return &Remote{target: target, cfg: cfg, docker: dockerBinary}
}

func (r *Remote) ssh(ctx context.Context, remoteArgs ...string) *exec.Cmd {
	var args []string
	if r.cfg.SSHConfig != "" {
		args = append(args, "-F", r.cfg.SSHConfig)
	}
	if r.target.User != "" {
		args = append(args, "-l", r.target.User)
	}
	if r.target.Port != 0 {
		args = append(args, "-p", strconv.Itoa(r.target.Port))
	}
	args = append(args, r.target.Hostname, "--")
	args = append(args, remoteArgs...)

	cmd := exec.CommandContext(ctx, r.cfg.SSHBinary, args...)
	log.G(ctx).WithField("command", command.String(cmd)).Debug("running remote command")
	return cmd
}

// Deploy runs "lighthouse deploy" on the remote host with manifest on its
// standard input. A non-empty workbench is the remote working directory.
func (r *Remote) Deploy(ctx context.Context, manifest []byte, workbench string) error {
	remoteArgs := []string{r.cfg.Binary, "deploy", "--manifest", "-"}
	if workbench != "" {
		remoteArgs = append([]string{"cd", shellQuote(workbench), "&&"}, remoteArgs...)
	}
	log.G(ctx).WithFields(log.Fields{"host": r.target.Destination(), "bytes": len(manifest)}).Info("deploying remotely")
	return command.FeedStdin(manifest, r.ssh(ctx, remoteArgs...))
}

// ShipImage streams imageName from the local engine into the remote one.
func (r *Remote) ShipImage(ctx context.Context, imageName string) error {
	save := exec.CommandContext(ctx, r.docker, "image", "save", imageName)
	load := r.ssh(ctx, "docker", "image", "load")
	log.G(ctx).WithFields(log.Fields{"host": r.target.Destination(), "image": imageName}).Info("shipping image")
	return command.Pipe(save, load)
}

// ssh hands the remote command to a shell.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

package main

import (
	"context"
	"fmt"

	"github.com/containerd/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/melih/lighthouse/internal/adapters/cli"
	"github.com/melih/lighthouse/internal/adapters/docker"
	"github.com/melih/lighthouse/internal/config"
	"github.com/melih/lighthouse/internal/core/ports"
	"github.com/melih/lighthouse/internal/host"
	"github.com/melih/lighthouse/internal/logging"
	"github.com/melih/lighthouse/internal/manifest"
)

const flagConfigFile = "config"

type rootOptions struct {
	configFile string
	logLevel   string
	host       string
	engine     string
	project    string

	cfg config.Config
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "lighthouse",
		Short:         "Converge the containers of a host to a compose-style manifest.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.init(cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configFile, flagConfigFile, config.DefaultFile, "Configuration file")
	flags.StringVarP(&opts.logLevel, "log-level", "l", "", `Set the logging level ("debug"|"info"|"warn"|"error")`)
	flags.StringVarP(&opts.host, "host", "H", "", "Engine to deploy to (unix://, tcp:// or ssh://)")
	flags.StringVar(&opts.engine, "engine", "", `Engine driver ("cli"|"api")`)
	flags.StringVarP(&opts.project, "project", "p", "", "Project name (defaults to the manifest name)")

	cmd.AddCommand(
		newDeployCommand(opts),
		newPlanCommand(opts),
		newPsCommand(opts),
		newBuildCommand(opts),
		newServeCommand(opts),
	)
	return cmd
}

// init loads the configuration, applies flag overrides and installs the
// logger of this invocation on the command context.
func (opts *rootOptions) init(cmd *cobra.Command) error {
	flags := cmd.Flags()
	cfg, err := config.Load(opts.configFile, flags.Changed(flagConfigFile))
	if err != nil {
		return err
	}
	override(flags, "log-level", &cfg.LogLevel, opts.logLevel)
	override(flags, "host", &cfg.Host, opts.host)
	override(flags, "engine", &cfg.Engine, opts.engine)
	override(flags, "project", &cfg.Project, opts.project)
	if err := cfg.Validate(); err != nil {
		return err
	}
	opts.cfg = cfg

	ctx, err := logging.WithLogger(cmd.Context(), cfg.LogLevel, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	cmd.SetContext(ctx)
	return nil
}

func override(flags *pflag.FlagSet, name string, dst *string, value string) {
	if flags.Changed(name) {
		*dst = value
	}
}

// projectName prefers the configured project over the manifest name.
func (opts *rootOptions) projectName(p *manifest.Project) (string, error) {
	if opts.cfg.Project != "" {
		return opts.cfg.Project, nil
	}
	if p != nil && p.Name != "" {
		return p.Name, nil
	}
	return "", fmt.Errorf("no project name: set --project, project in %s or name in the manifest", opts.configFile)
}

// newEngine returns the configured engine and a function releasing it. The
// host is the configured one, else $DOCKER_HOST, else the local socket.
func (opts *rootOptions) newEngine(ctx context.Context, project string) (ports.ContainerEngine, func(), error) {
	cfg := opts.cfg
	h, err := host.Resolve(cfg.Host)
	if err != nil {
		return nil, nil, err
	}
	log.G(ctx).WithFields(log.Fields{"host": h.URL, "engine": cfg.Engine}).Debug("resolved engine host")

	switch cfg.Engine {
	case config.EngineAPI:
		adapter, err := docker.NewAdapter(h, project, cfg.StopTimeoutDuration())
		if err != nil {
			return nil, nil, err
		}
		return adapter, func() { adapter.Close() }, nil
	default:
		return cli.NewEngine(cfg.DockerBinary, h.URL, project, cfg.StopTimeoutDuration()), func() {}, nil
	}
}

// readManifest reads path, or standard input when path is "-".
func readManifest(cmd *cobra.Command, path string) ([]byte, *manifest.Project, error) {
	return manifest.Load(path, cmd.InOrStdin())
}

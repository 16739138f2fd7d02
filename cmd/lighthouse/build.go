package main

import (
	"fmt"
	"maps"
	"slices"

	"github.com/containerd/log"
	"github.com/spf13/cobra"

	"github.com/melih/lighthouse/internal/adapters/builder"
	"github.com/melih/lighthouse/internal/adapters/remote"
	"github.com/melih/lighthouse/internal/core/domain"
	"github.com/melih/lighthouse/internal/core/ports"
	"github.com/melih/lighthouse/internal/host"
)

type buildOptions struct {
	manifest string
	ship     bool
	sshHost  string
}

func newBuildCommand(root *rootOptions) *cobra.Command {
	var opts buildOptions
	cmd := &cobra.Command{
		Use:   "build [OPTIONS] [SERVICE...]",
		Short: "Build service images from their git repositories",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd, root, opts, args)
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&opts.manifest, "manifest", "f", defaultManifest, `Manifest file ("-" reads standard input)`)
	flags.BoolVar(&opts.ship, "ship", false, "Copy the built images to --ssh-host")
	flags.StringVar(&opts.sshHost, "ssh-host", "", "Host to ship images to ([user@]host or ssh://user@host:port)")
	return cmd
}

func runBuild(cmd *cobra.Command, root *rootOptions, opts buildOptions, services []string) error {
	if opts.ship && opts.sshHost == "" {
		return fmt.Errorf("--ship requires --ssh-host")
	}
	_, p, err := readManifest(cmd, opts.manifest)
	if err != nil {
		return err
	}
	for _, name := range services {
		if _, ok := p.Services[name]; !ok {
			return fmt.Errorf("no such service: %s", name)
		}
	}

	adapter, err := builder.NewBuilderAdapter()
	if err != nil {
		return err
	}
	defer adapter.Close()
	var b ports.BuilderService = adapter

	var shipper ports.ImageShipper
	if opts.ship {
		target, err := host.ParseSSH(opts.sshHost)
		if err != nil {
			return err
		}
		shipper = remote.New(target, root.cfg.Remote, root.cfg.DockerBinary)
	}

	ctx := cmd.Context()
	for _, name := range slices.Sorted(maps.Keys(p.Services)) {
		s := p.Services[name]
		if s.Build == nil || (len(services) > 0 && !slices.Contains(services, name)) {
			continue
		}
		if s.Build.Git == "" {
			return fmt.Errorf("service %q: build.git is required", name)
		}
		src := domain.BuildSource{RepoURL: s.Build.Git, Ref: s.Build.Ref, Dockerfile: s.Build.Dockerfile}
		image, err := b.BuildImage(ctx, src, s.Image)
		if err != nil {
			return fmt.Errorf("service %q: %w", name, err)
		}
		log.G(ctx).WithFields(log.Fields{"service": name, "image": image}).Info("built image")

		if shipper != nil {
			if err := shipper.ShipImage(ctx, image); err != nil {
				return fmt.Errorf("service %q: %w", name, err)
			}
		}
		fmt.Fprintln(cmd.OutOrStdout(), image)
	}
	return nil
}

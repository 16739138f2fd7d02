package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/melih/lighthouse/internal/adapters/remote"
	"github.com/melih/lighthouse/internal/core/deploy"
	"github.com/melih/lighthouse/internal/core/domain"
	"github.com/melih/lighthouse/internal/core/reconcile"
	"github.com/melih/lighthouse/internal/host"
	"github.com/melih/lighthouse/internal/manifest"
)

const defaultManifest = "compose.yaml"

type deployOptions struct {
	manifest string
	sshHost  string
	json     bool
}

func newDeployCommand(root *rootOptions) *cobra.Command {
	var opts deployOptions
	cmd := &cobra.Command{
		Use:   "deploy [OPTIONS]",
		Short: "Converge the host to the manifest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeploy(cmd, root, opts)
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&opts.manifest, "manifest", "f", defaultManifest, `Manifest file ("-" reads standard input)`)
	flags.StringVar(&opts.sshHost, "ssh-host", "", "Run the deploy on this host over ssh ([user@]host or ssh://user@host:port)")
	flags.BoolVar(&opts.json, "json", false, "Print the report as JSON")
	return cmd
}

func runDeploy(cmd *cobra.Command, root *rootOptions, opts deployOptions) error {
	data, p, err := readManifest(cmd, opts.manifest)
	if err != nil {
		return err
	}

	if opts.sshHost != "" {
		target, err := host.ParseSSH(opts.sshHost)
		if err != nil {
			return err
		}
		r := remote.New(target, root.cfg.Remote, root.cfg.DockerBinary)
		return r.Deploy(cmd.Context(), data, p.Lighthouse.RemoteWorkbench)
	}

	svc, desired, release, err := root.service(cmd.Context(), p)
	if err != nil {
		return err
	}
	defer release()

	report, err := svc.Deploy(cmd.Context(), desired)
	if opts.json {
		if perr := printJSON(cmd.OutOrStdout(), report); perr != nil {
			return perr
		}
	} else if err == nil {
		printSummary(cmd.OutOrStdout(), report.Summary)
	}
	return err
}

func newPlanCommand(root *rootOptions) *cobra.Command {
	var opts deployOptions
	cmd := &cobra.Command{
		Use:   "plan [OPTIONS]",
		Short: "Print the changes a deploy would make",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, p, err := readManifest(cmd, opts.manifest)
			if err != nil {
				return err
			}
			svc, desired, release, err := root.service(cmd.Context(), p)
			if err != nil {
				return err
			}
			defer release()

			changes, err := svc.Plan(cmd.Context(), desired)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if opts.json {
				if changes == nil {
					changes = []domain.ServiceContainerChange{}
				}
				return printJSON(out, changes)
			}
			for _, c := range changes {
				fmt.Fprintln(out, c)
			}
			printSummary(out, reconcile.Summarize(changes))
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&opts.manifest, "manifest", "f", defaultManifest, `Manifest file ("-" reads standard input)`)
	flags.BoolVar(&opts.json, "json", false, "Print the changes as JSON")
	return cmd
}

// service wires a deploy service for the project of p.
func (root *rootOptions) service(ctx context.Context, p *manifest.Project) (*deploy.Service, domain.DesiredServices, func(), error) {
	desired, err := p.Desired()
	if err != nil {
		return nil, nil, nil, err
	}
	project, err := root.projectName(p)
	if err != nil {
		return nil, nil, nil, err
	}
	engine, release, err := root.newEngine(ctx, project)
	if err != nil {
		return nil, nil, nil, err
	}
	return deploy.NewService(engine, nil), desired, release, nil
}

func printSummary(w io.Writer, s reconcile.Summary) {
	fmt.Fprintf(w, "%d to add, %d to keep, %d to remove\n", s.Added, s.Kept, s.Removed)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

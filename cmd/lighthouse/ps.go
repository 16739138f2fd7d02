package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newPsCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ps",
		Short: "List the containers of the project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			project, err := root.projectName(nil)
			if err != nil {
				return err
			}
			engine, release, err := root.newEngine(cmd.Context(), project)
			if err != nil {
				return err
			}
			defer release()

			actual, err := engine.CollectContainers(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CONTAINER ID\tSERVICE\tCONFIG HASH")
			for c := range actual.All() {
				fmt.Fprintf(w, "%s\t%s\t%s\n", c.ContainerID, c.ServiceName, c.ServiceConfigHash)
			}
			return w.Flush()
		},
	}
}

package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"fedsync/internal/app/bootstrap"

	"github.com/spf13/cobra"
)

func newPeersCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "peers",
		Short: "Inspect configured federation peers",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List peers and their key ids (secrets are never printed)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, func(ctx context.Context, rt *bootstrap.Runtime) error {
				peers, err := rt.Peers.ListPeers(ctx)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "DOMAIN\tBASE URL\tACTIVE KEY\tKEYS")
				for _, peer := range peers {
					fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", peer.Domain, peer.BaseURL, peer.ActiveKeyID, len(peer.Keys))
				}
				return w.Flush()
			})
		},
	})
	return cmd
}

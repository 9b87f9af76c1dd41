package main

import (
	"context"
	"fmt"

	"fedsync/contexts/federation/replication-service/adapters/peerclient"
	postgresadapter "fedsync/contexts/federation/replication-service/adapters/postgres"
	"fedsync/contexts/federation/replication-service/application/commands"
	"fedsync/contexts/federation/replication-service/application/queries"
	federationv1 "fedsync/contracts/gen/federation/v1"
	"fedsync/internal/app/bootstrap"

	"github.com/spf13/cobra"
)

func newSnapshotCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Build, import or push server snapshots",
	}
	cmd.AddCommand(newSnapshotExportCommand(), newSnapshotImportCommand(), newSnapshotPushCommand())
	return cmd
}

func newSnapshotExportCommand() *cobra.Command {
	var serverID string
	var messagesPerChannel int

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Print a snapshot of a local server as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, func(ctx context.Context, rt *bootstrap.Runtime) error {
				snapshot, err := rt.Module.BuildSnapshot.Execute(ctx, queries.BuildServerSnapshotQuery{
					ServerID:           serverID,
					MessagesPerChannel: messagesPerChannel,
				})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), snapshot)
			})
		},
	}
	cmd.Flags().StringVar(&serverID, "server-id", "", "Local server id")
	cmd.Flags().IntVar(&messagesPerChannel, "messages-per-channel", 0, "Newest messages per channel (default from config)")
	_ = cmd.MarkFlagRequired("server-id")
	return cmd
}

func newSnapshotImportCommand() *cobra.Command {
	var file string
	var origin string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a snapshot file as a mirror of the given origin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			body, err := readBody(file)
			if err != nil {
				return err
			}
			snapshot, err := federationv1.DecodeSnapshotEnvelope(body)
			if err != nil {
				return fmt.Errorf("decode snapshot: %w", err)
			}
			return withRuntime(cmd, func(ctx context.Context, rt *bootstrap.Runtime) error {
				result, err := rt.Module.ImportSnapshot.Execute(ctx, commands.ImportServerSnapshotCommand{
					Snapshot:     snapshot,
					OriginDomain: origin,
				})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), result)
			})
		},
	}
	cmd.Flags().StringVar(&file, "file", "-", "Snapshot JSON file (- for stdin)")
	cmd.Flags().StringVar(&origin, "origin", "", "Origin domain the snapshot came from")
	_ = cmd.MarkFlagRequired("origin")
	return cmd
}

func newSnapshotPushCommand() *cobra.Command {
	var serverID string
	var peerDomain string

	cmd := &cobra.Command{
		Use:   "push",
		Short: "Build a snapshot of a local server and push it to a peer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, func(ctx context.Context, rt *bootstrap.Runtime) error {
				peer, err := rt.Peers.PeerByDomain(ctx, peerDomain)
				if err != nil {
					return err
				}
				snapshot, err := rt.Module.BuildSnapshot.Execute(ctx, queries.BuildServerSnapshotQuery{
					ServerID:   serverID,
					PublicOnly: true,
				})
				if err != nil {
					return err
				}
				client := peerclient.New(rt.Config.Federation.LocalDomain, rt.Config.Federation.PeerTimeout, postgresadapter.SystemClock{}, nil)
				status, err := client.PushSnapshot(ctx, peer, snapshot)
				if err != nil {
					return err
				}
				if status < 200 || status > 299 {
					return fmt.Errorf("peer %s rejected snapshot: status %d", peer.Domain, status)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "pushed %s to %s (%d channels, %d messages)\n",
					serverID, peer.Domain, len(snapshot.Channels), len(snapshot.Messages))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&serverID, "server-id", "", "Local server id")
	cmd.Flags().StringVar(&peerDomain, "peer", "", "Peer domain to push to")
	_ = cmd.MarkFlagRequired("server-id")
	_ = cmd.MarkFlagRequired("peer")
	return cmd
}

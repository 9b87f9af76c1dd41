package main

import (
	"context"
	"fmt"

	"fedsync/contexts/federation/replication-service/application/commands"
	"fedsync/contexts/federation/replication-service/domain/entities"
	"fedsync/internal/app/bootstrap"

	"github.com/spf13/cobra"
)

func newPublishCommand() *cobra.Command {
	var opts commands.PublishServerEventCommand
	var eventType string

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Enqueue a federation event for a local server",
		Args:  cobra.NoArgs,
		Example: `  fedctl publish --server-id srv-1 --type server.upsert
  fedctl publish --server-id srv-1 --type message.create --channel-id ch-1 --message-id msg-9`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts.EventType = entities.EventType(eventType)
			if !opts.EventType.Known() {
				return fmt.Errorf("unknown event type %q", eventType)
			}
			return withRuntime(cmd, func(ctx context.Context, rt *bootstrap.Runtime) error {
				result, err := rt.Module.PublishEvent.Execute(ctx, opts)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s on %s at sequence %d for %d peers\n",
					result.EventID, result.StreamID, result.Sequence, result.Peers)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&opts.ServerID, "server-id", "", "Local server id")
	cmd.Flags().StringVar(&eventType, "type", string(entities.EventTypeServerUpsert), "Event type")
	cmd.Flags().StringVar(&opts.ChannelID, "channel-id", "", "Channel id for channel.upsert and message.create")
	cmd.Flags().StringVar(&opts.MessageID, "message-id", "", "Message id for message.create")
	_ = cmd.MarkFlagRequired("server-id")
	return cmd
}

func newReconcileCommand() *cobra.Command {
	var origin, serverID string

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Pull a mirrored server's snapshot from its origin and realign its cursor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, func(ctx context.Context, rt *bootstrap.Runtime) error {
				if err := rt.Module.Reconciler.ReconcileServer(ctx, origin, serverID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "reconciled %s from %s\n", serverID, origin)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&origin, "origin", "", "Origin domain")
	cmd.Flags().StringVar(&serverID, "server-id", "", "Origin's server id (federation id)")
	_ = cmd.MarkFlagRequired("origin")
	_ = cmd.MarkFlagRequired("server-id")
	return cmd
}

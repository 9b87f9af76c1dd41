package main

import (
	"context"
	"fmt"

	"fedsync/contexts/federation/replication-service/application/commands"
	"fedsync/contexts/federation/replication-service/application/queries"
	"fedsync/internal/app/bootstrap"

	"github.com/spf13/cobra"
)

func newCursorCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cursor",
		Short: "Inspect or reset sequence cursors",
	}
	cmd.AddCommand(newCursorShowCommand(), newCursorResetCommand())
	return cmd
}

func newCursorShowCommand() *cobra.Command {
	var origin, stream string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the cursor of one stream",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, func(ctx context.Context, rt *bootstrap.Runtime) error {
				result, err := rt.Module.GetCursor.Execute(ctx, queries.GetCursorQuery{
					OriginDomain: origin,
					StreamID:     stream,
				})
				if err != nil {
					return err
				}
				if !result.Found {
					fmt.Fprintf(cmd.OutOrStdout(), "no cursor for %s %s\n", origin, stream)
					return nil
				}
				return printJSON(cmd.OutOrStdout(), result.Cursor)
			})
		},
	}
	cmd.Flags().StringVar(&origin, "origin", "", "Origin domain")
	cmd.Flags().StringVar(&stream, "stream", "", "Stream id, e.g. server:<id>")
	_ = cmd.MarkFlagRequired("origin")
	_ = cmd.MarkFlagRequired("stream")
	return cmd
}

func newCursorResetCommand() *cobra.Command {
	var opts commands.ResetCursorCommand

	cmd := &cobra.Command{
		Use:     "reset",
		Short:   "Set a stream cursor after a manual resync",
		Args:    cobra.NoArgs,
		Example: `  fedctl cursor reset --origin remote.example --stream server:srv-1 --sequence 42`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, func(ctx context.Context, rt *bootstrap.Runtime) error {
				result, err := rt.Module.ResetCursor.Execute(ctx, opts)
				if err != nil {
					return err
				}
				if !result.Changed {
					fmt.Fprintf(cmd.OutOrStdout(), "cursor already at %d, unchanged\n", result.Cursor.LastAppliedSequence)
					return nil
				}
				return printJSON(cmd.OutOrStdout(), result.Cursor)
			})
		},
	}
	cmd.Flags().StringVar(&opts.OriginDomain, "origin", "", "Origin domain")
	cmd.Flags().StringVar(&opts.StreamID, "stream", "", "Stream id, e.g. server:<id>")
	cmd.Flags().Int64Var(&opts.Sequence, "sequence", 0, "Last applied sequence to record")
	cmd.Flags().BoolVar(&opts.ForwardOnly, "forward-only", false, "Never move the cursor backwards")
	_ = cmd.MarkFlagRequired("origin")
	_ = cmd.MarkFlagRequired("stream")
	_ = cmd.MarkFlagRequired("sequence")
	return cmd
}

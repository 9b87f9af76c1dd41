package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"

	"fedsync/internal/app/bootstrap"
	"fedsync/internal/platform/config"

	"github.com/spf13/cobra"
)

func NewFedctlCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "fedctl",
		Short:        "Operate federation replication for this instance",
		SilenceUsage: true,
		Example: `  fedctl peers list
  fedctl cursor show --origin remote.example --stream server:srv-1
  fedctl snapshot push --server-id srv-1 --peer remote.example`,
	}

	cmd.AddCommand(
		newSignCommand(),
		newSnapshotCommand(),
		newCursorCommand(),
		newPeersCommand(),
		newPublishCommand(),
		newReconcileCommand(),
	)
	return cmd
}

func main() {
	cmd := NewFedctlCommand()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// withRuntime loads configuration from the environment and hands a wired
// runtime to fn. Storage is released when fn returns.
func withRuntime(cmd *cobra.Command, fn func(context.Context, *bootstrap.Runtime) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelWarn}))
	rt, err := bootstrap.BuildRuntime(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(cmd.Context(), rt)
}

func printJSON(out io.Writer, value any) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}
